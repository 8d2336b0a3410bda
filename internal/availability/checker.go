// Package availability implements the data-sufficiency gate: deciding, per
// medical condition, whether enough distinct days of cross-population data
// exist to justify the optimised model.
package availability

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"example.com/forecast/internal/domain"
	"example.com/forecast/internal/observability"
)

const (
	// SufficiencyThreshold is the number of distinct calendar days, counted
	// across all contributors, required before the population-level model
	// may be used.
	SufficiencyThreshold = 90

	// conditionSampleLimit bounds the recovery scan. This is a bounded-sample
	// approximation: a store holding more than this many rows can hide labels
	// from the scan, under-counting conditions with many rows per day.
	conditionSampleLimit = 1000
)

// ErrAggregateUnsupported signals that the store cannot answer the aggregate
// distinct-day query and the gate must fall back to row-level counting.
var ErrAggregateUnsupported = errors.New("aggregate day count unsupported by store")

// LogStore is the query surface the gate consumes. All three operations are
// independent network calls with their own failure envelopes.
type LogStore interface {
	// DistinctConditionDays returns the count of distinct calendar dates,
	// across all users, for the condition. Returns ErrAggregateUnsupported
	// when the aggregate operation is unavailable.
	DistinctConditionDays(ctx context.Context, condition string) (int, error)
	// LogDatesByCondition returns the raw date strings of every log row
	// tagged with the exact condition string.
	LogDatesByCondition(ctx context.Context, condition string) ([]string, error)
	// ConditionLabels returns up to limit condition labels present in the
	// store, duplicates included.
	ConditionLabels(ctx context.Context, limit int) ([]string, error)
}

// countStrategy is one way of determining the distinct-day count. Strategies
// are tried in order; a strategy either answers definitively or passes.
type countStrategy interface {
	name() string
	// count returns (days, definitive, error). A non-definitive return with a
	// nil error hands over to the next strategy.
	count(ctx context.Context, condition string) (int, bool, error)
}

// Checker evaluates condition data sufficiency. Check never returns an
// error: every failure mode resolves to an advisory result.
type Checker struct {
	logger     zerolog.Logger
	strategies []countStrategy
}

// NewChecker constructs a Checker over the store with the ordered fallback
// chain: aggregate count, row-level scan, case-insensitive recovery scan.
func NewChecker(store LogStore, logger zerolog.Logger) *Checker {
	return &Checker{
		logger: logger,
		strategies: []countStrategy{
			&aggregateStrategy{store: store, logger: logger},
			&rowScanStrategy{store: store},
			&recoveryScanStrategy{store: store, logger: logger},
		},
	}
}

// Check reports whether the condition clears the sufficiency threshold.
// Results are computed fresh on every call; the underlying data grows over
// time and is never cached here.
func (c *Checker) Check(ctx context.Context, condition string) (result domain.ConditionAvailability) {
	defer func() {
		if r := recover(); r != nil {
			c.logger.Error().Interface("panic", r).Str("condition", condition).Msg("availability check panicked")
			result = errorResult(fmt.Errorf("%v", r))
		}
		recordCheck(result)
		observability.RecordAvailabilityChecked()
	}()

	trimmed := strings.TrimSpace(condition)

	for _, strategy := range c.strategies {
		days, definitive, err := strategy.count(ctx, trimmed)
		if err != nil {
			c.logger.Warn().Err(err).
				Str("condition", trimmed).
				Str("strategy", strategy.name()).
				Msg("availability query failed")
			return errorResult(err)
		}
		if !definitive {
			continue
		}
		c.logger.Debug().
			Str("condition", trimmed).
			Str("strategy", strategy.name()).
			Int("days", days).
			Msg("availability resolved")
		return thresholdResult(days)
	}

	return thresholdResult(0)
}

func thresholdResult(days int) domain.ConditionAvailability {
	if days >= SufficiencyThreshold {
		return domain.ConditionAvailability{
			Available: true,
			Days:      days,
			Message:   fmt.Sprintf("optimised model available (%d unique days from all contributors)", days),
		}
	}
	return domain.ConditionAvailability{
		Available: false,
		Days:      days,
		Message:   fmt.Sprintf("helping the model (%d/%d unique days collected)", days, SufficiencyThreshold),
	}
}

func errorResult(err error) domain.ConditionAvailability {
	return domain.ConditionAvailability{
		Available: false,
		Days:      0,
		Message:   "Error checking data: " + err.Error(),
	}
}

// aggregateStrategy asks the store for the distinct-day count directly. This
// is the common, efficient path; any store error here is recoverable by the
// row-level fallback, so it never aborts the chain.
type aggregateStrategy struct {
	store  LogStore
	logger zerolog.Logger
}

func (s *aggregateStrategy) name() string { return "aggregate" }

func (s *aggregateStrategy) count(ctx context.Context, condition string) (int, bool, error) {
	days, err := s.store.DistinctConditionDays(ctx, condition)
	if err != nil {
		if !errors.Is(err, ErrAggregateUnsupported) {
			s.logger.Warn().Err(err).Str("condition", condition).Msg("aggregate day count failed, falling back to row scan")
		}
		return 0, false, nil
	}
	return days, true, nil
}

// rowScanStrategy fetches every row for the exact condition string and counts
// distinct calendar dates. Zero rows is not definitive: the recovery scan may
// still find the condition under a differently-cased label.
type rowScanStrategy struct {
	store LogStore
}

func (s *rowScanStrategy) name() string { return "row-scan" }

func (s *rowScanStrategy) count(ctx context.Context, condition string) (int, bool, error) {
	dates, err := s.store.LogDatesByCondition(ctx, condition)
	if err != nil {
		return 0, false, err
	}
	if len(dates) == 0 {
		return 0, false, nil
	}
	return distinctDays(dates), true, nil
}

// recoveryScanStrategy recovers from case or whitespace drift between
// UI-entered and stored condition names: it samples stored labels, looks for
// a case-insensitive match, and re-runs the row query with the stored label.
// It always answers definitively, with zero when nothing matches.
type recoveryScanStrategy struct {
	store  LogStore
	logger zerolog.Logger
}

func (s *recoveryScanStrategy) name() string { return "recovery-scan" }

func (s *recoveryScanStrategy) count(ctx context.Context, condition string) (int, bool, error) {
	labels, err := s.store.ConditionLabels(ctx, conditionSampleLimit)
	if err != nil {
		return 0, false, err
	}

	stored, found := matchLabel(labels, condition)
	if !found || stored == condition {
		return 0, true, nil
	}

	s.logger.Info().
		Str("requested", condition).
		Str("stored", stored).
		Msg("recovered condition label via case-insensitive match")

	dates, err := s.store.LogDatesByCondition(ctx, stored)
	if err != nil {
		return 0, false, err
	}
	return distinctDays(dates), true, nil
}

// matchLabel finds the first stored label equal to the requested condition
// after trimming, ignoring case. The label is returned verbatim, whitespace
// included: the retry query must match rows exactly as they were tagged.
func matchLabel(labels []string, condition string) (string, bool) {
	seen := make(map[string]struct{}, len(labels))
	for _, label := range labels {
		trimmed := strings.TrimSpace(label)
		if trimmed == "" {
			continue
		}
		if _, dup := seen[trimmed]; dup {
			continue
		}
		seen[trimmed] = struct{}{}
		if strings.EqualFold(trimmed, condition) {
			return label, true
		}
	}
	return "", false
}

// distinctDays counts unique calendar dates, taking the date-only prefix of
// each raw value. Two users logging the same day contribute one day.
func distinctDays(dates []string) int {
	unique := make(map[string]struct{}, len(dates))
	for _, raw := range dates {
		day := domain.DateOnly(raw)
		if day == "" {
			continue
		}
		unique[day] = struct{}{}
	}
	return len(unique)
}
