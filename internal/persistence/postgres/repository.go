// Package postgres provides the pgx-backed log store consumed by the
// sufficiency gate.
package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"example.com/forecast/internal/availability"
)

// undefinedFunction is the SQLSTATE raised when the aggregate helper function
// has not been installed; the gate treats that store as aggregate-incapable.
const undefinedFunction = "42883"

// Repository provides Postgres-backed access to contributed health logs.
type Repository struct {
	pool *pgxpool.Pool
}

// NewRepository constructs a Repository.
func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

// DistinctConditionDays calls the aggregate helper function. Deployments
// created before the function existed surface SQLSTATE 42883, which is
// reported as availability.ErrAggregateUnsupported so the gate falls back.
func (r *Repository) DistinctConditionDays(ctx context.Context, condition string) (int, error) {
	const query = `SELECT distinct_condition_days($1)`

	var days *int
	if err := r.pool.QueryRow(ctx, query, condition).Scan(&days); err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == undefinedFunction {
			return 0, availability.ErrAggregateUnsupported
		}
		return 0, err
	}
	if days == nil {
		return 0, availability.ErrAggregateUnsupported
	}
	return *days, nil
}

// LogDatesByCondition returns the raw date strings of every log row tagged
// with the exact condition string.
func (r *Repository) LogDatesByCondition(ctx context.Context, condition string) ([]string, error) {
	const query = `SELECT entry_date::text FROM health_logs WHERE medical_condition = $1`

	rows, err := r.pool.Query(ctx, query, condition)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var dates []string
	for rows.Next() {
		var date string
		if err := rows.Scan(&date); err != nil {
			return nil, err
		}
		dates = append(dates, date)
	}
	return dates, rows.Err()
}

// ConditionLabels returns up to limit condition labels, duplicates included;
// deduplication is the caller's concern.
func (r *Repository) ConditionLabels(ctx context.Context, limit int) ([]string, error) {
	const query = `SELECT medical_condition FROM health_logs WHERE medical_condition IS NOT NULL AND medical_condition <> '' LIMIT $1`

	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var labels []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		labels = append(labels, label)
	}
	return labels, rows.Err()
}
