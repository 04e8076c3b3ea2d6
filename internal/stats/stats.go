// Package stats computes adherence statistics over a reporting period.
// The five underlying metrics are queried independently and may fail
// independently; the aggregator degrades to a partial snapshot instead
// of discarding everything.
package stats

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/mgavrilo/dosetrack/internal/errors"
	"github.com/mgavrilo/dosetrack/internal/metrics"
)

// Period is the reporting window for a statistics load.
type Period string

const (
	Weekly    Period = "weekly"
	Monthly   Period = "monthly"
	Quarterly Period = "quarterly"
)

func ParsePeriod(s string) (Period, error) {
	switch Period(s) {
	case Weekly, Monthly, Quarterly:
		return Period(s), nil
	}
	return "", apperrors.New(apperrors.ErrBadRequest.Code, fmt.Sprintf("unknown period %q", s))
}

// Days returns the period length in calendar days.
func (p Period) Days() int {
	switch p {
	case Monthly:
		return 30
	case Quarterly:
		return 90
	default:
		return 7
	}
}

// SeriesPoint is one labeled value in a histogram or trend series.
type SeriesPoint struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Compliance is the headline adherence figure. Rate is nil when no
// doses were scheduled in the period; unknown is not the same as 0%.
type Compliance struct {
	Rate       *float64 `json:"rate"`
	TakenDoses int      `json:"taken_doses"`
	TotalDoses int      `json:"total_doses"`
}

// Snapshot is one normalized statistics result. Metrics whose query
// failed stay at their zero value; UsingFallback marks the snapshot as
// partial.
type Snapshot struct {
	Period            Period        `json:"period"`
	Rate              *float64      `json:"rate"`
	TakenDoses        int           `json:"taken_doses"`
	TotalDoses        int           `json:"total_doses"`
	History           []SeriesPoint `json:"history"`
	CategoryBreakdown []SeriesPoint `json:"category_breakdown"`
	MissedDoses       []SeriesPoint `json:"missed_doses"`
	PeakTimes         []SeriesPoint `json:"peak_times"`
	UsingFallback     bool          `json:"using_fallback"`
}

// Source answers the five statistics queries for one profile.
type Source interface {
	Compliance(ctx context.Context, profileID string, period Period) (Compliance, error)
	Trend(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error)
	Categories(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error)
	MissedDoses(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error)
	PeakTimes(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error)
}

// LoadState is the aggregator's per-cycle state machine.
type LoadState string

const (
	StateIdle              LoadState = "idle"
	StateLoading           LoadState = "loading"
	StateComplete          LoadState = "complete"
	StatePartiallyComplete LoadState = "partially_complete"
	StateFailed            LoadState = "failed"
)

// Aggregator fans the five queries out concurrently against a Source
// and applies the failure policy: all five failing is a hard error
// with a known-empty snapshot, anything less degrades to a partial
// result. Superseding loads are not cancelled; the last applied
// generation wins.
type Aggregator struct {
	source Source
	logger *zap.Logger

	mu         sync.Mutex
	state      LoadState
	current    *Snapshot
	generation uint64
	appliedGen uint64
}

func NewAggregator(source Source, logger *zap.Logger) *Aggregator {
	return &Aggregator{
		source: source,
		logger: logger,
		state:  StateIdle,
	}
}

// State returns the most recent load-cycle state.
func (a *Aggregator) State() LoadState {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// Current returns the last applied snapshot, if any.
func (a *Aggregator) Current() *Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.current
}

// Aggregate runs one load cycle. Re-entering while a prior load is in
// flight is always permitted; whichever load applies last wins.
func (a *Aggregator) Aggregate(ctx context.Context, profileID string, period Period) (*Snapshot, error) {
	a.mu.Lock()
	a.generation++
	gen := a.generation
	a.state = StateLoading
	a.mu.Unlock()

	snap := &Snapshot{Period: period}

	var (
		wg       sync.WaitGroup
		resultMu sync.Mutex
		failures int
	)

	run := func(name string, query func() error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := query(); err != nil {
				metrics.StatsQueryFailures.WithLabelValues(name).Inc()
				a.logger.Warn("statistics query failed",
					zap.String("metric", name),
					zap.String("period", string(period)),
					zap.Error(err),
				)
				resultMu.Lock()
				failures++
				resultMu.Unlock()
			}
		}()
	}

	run("compliance", func() error {
		c, err := a.source.Compliance(ctx, profileID, period)
		if err != nil {
			return err
		}
		resultMu.Lock()
		snap.Rate = c.Rate
		snap.TakenDoses = c.TakenDoses
		snap.TotalDoses = c.TotalDoses
		resultMu.Unlock()
		return nil
	})
	run("trend", func() error {
		pts, err := a.source.Trend(ctx, profileID, period)
		if err != nil {
			return err
		}
		resultMu.Lock()
		snap.History = pts
		resultMu.Unlock()
		return nil
	})
	run("categories", func() error {
		pts, err := a.source.Categories(ctx, profileID, period)
		if err != nil {
			return err
		}
		resultMu.Lock()
		snap.CategoryBreakdown = pts
		resultMu.Unlock()
		return nil
	})
	run("missed", func() error {
		pts, err := a.source.MissedDoses(ctx, profileID, period)
		if err != nil {
			return err
		}
		resultMu.Lock()
		snap.MissedDoses = pts
		resultMu.Unlock()
		return nil
	})
	run("peak_times", func() error {
		pts, err := a.source.PeakTimes(ctx, profileID, period)
		if err != nil {
			return err
		}
		resultMu.Lock()
		snap.PeakTimes = pts
		resultMu.Unlock()
		return nil
	})

	wg.Wait()

	const queries = 5
	var (
		state LoadState
		err   error
	)
	switch {
	case failures == queries:
		state = StateFailed
		snap = &Snapshot{Period: period}
		err = apperrors.New(apperrors.ErrStatsTotal.Code, "all statistics queries failed")
	case failures > 0:
		state = StatePartiallyComplete
		snap.UsingFallback = true
	default:
		state = StateComplete
	}

	a.mu.Lock()
	if gen > a.appliedGen {
		a.appliedGen = gen
		a.state = state
		a.current = snap
	}
	a.mu.Unlock()

	if err != nil {
		return snap, err
	}
	return snap, nil
}
