//go:build integration

package postgres

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	postgrescontainer "github.com/testcontainers/testcontainers-go/modules/postgres"

	"example.com/forecast/internal/availability"
)

func TestRepositoryCountsDistinctConditionDays(t *testing.T) {
	ctx := context.Background()

	pg, err := postgrescontainer.RunContainer(ctx,
		postgrescontainer.WithDatabase("health"),
		postgrescontainer.WithUsername("platform"),
		postgrescontainer.WithPassword("platform"),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = pg.Terminate(ctx) })

	connStr, err := pg.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	require.NoError(t, waitForDatabase(ctx, connStr))

	pool, err := pgxpool.New(ctx, connStr)
	require.NoError(t, err)
	t.Cleanup(func() { pool.Close() })

	runMigration(t, ctx, pool, "../../../db/postgres/migrations/0001_init.up.sql")

	repo := NewRepository(pool)

	// Three contributors, overlapping days: 5 distinct dates for Asthma.
	users := []string{uuid.NewString(), uuid.NewString(), uuid.NewString()}
	insert := func(user, condition, date string) {
		_, execErr := pool.Exec(ctx,
			`INSERT INTO health_logs (user_id, medical_condition, entry_date) VALUES ($1, $2, $3)`,
			user, condition, date)
		require.NoError(t, execErr)
	}
	for _, date := range []string{"2024-01-01", "2024-01-02", "2024-01-03"} {
		insert(users[0], "Asthma", date)
	}
	for _, date := range []string{"2024-01-02", "2024-01-03", "2024-01-04"} {
		insert(users[1], "Asthma", date)
	}
	insert(users[2], "Asthma", "2024-01-05")
	insert(users[2], "Diabetes", "2024-01-05")

	// The aggregate function is not installed yet.
	_, err = repo.DistinctConditionDays(ctx, "Asthma")
	require.ErrorIs(t, err, availability.ErrAggregateUnsupported)

	dates, err := repo.LogDatesByCondition(ctx, "Asthma")
	require.NoError(t, err)
	require.Len(t, dates, 7)

	labels, err := repo.ConditionLabels(ctx, 1000)
	require.NoError(t, err)
	require.Contains(t, labels, "Asthma")
	require.Contains(t, labels, "Diabetes")

	runMigration(t, ctx, pool, "../../../db/postgres/migrations/0002_distinct_condition_days.up.sql")

	days, err := repo.DistinctConditionDays(ctx, "Asthma")
	require.NoError(t, err)
	require.Equal(t, 5, days)

	days, err = repo.DistinctConditionDays(ctx, "Diabetes")
	require.NoError(t, err)
	require.Equal(t, 1, days)

	// End to end through the gate: both counting paths agree.
	checker := availability.NewChecker(repo, zerolog.Nop())
	result := checker.Check(ctx, "Asthma")
	require.False(t, result.Available)
	require.Equal(t, 5, result.Days)
}

func runMigration(t *testing.T, ctx context.Context, pool *pgxpool.Pool, rel string) {
	t.Helper()
	contents, err := os.ReadFile(resolvePath(t, rel))
	require.NoError(t, err)

	_, err = pool.Exec(ctx, string(contents))
	require.NoError(t, err)
}

func resolvePath(t *testing.T, rel string) string {
	t.Helper()
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	return filepath.Join(filepath.Dir(file), rel)
}

func waitForDatabase(ctx context.Context, connStr string) error {
	deadline := time.Now().Add(30 * time.Second)
	for {
		pool, err := pgxpool.New(ctx, connStr)
		if err == nil {
			err = pool.Ping(ctx)
			pool.Close()
			if err == nil {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return err
		}
		time.Sleep(time.Second)
	}
}
