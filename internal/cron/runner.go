// Package cron runs the nightly daily-aggregate job.
package cron

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mgavrilo/dosetrack/internal/ledger"
	"github.com/mgavrilo/dosetrack/internal/metrics"
	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// Runner rolls each profile's previous day into a DailyAggregate row
// once per night. Statistics queries read the aggregates instead of
// rescanning the intake ledger.
type Runner struct {
	cron   *cron.Cron
	store  *ledger.Store
	loc    *time.Location
	logger *zap.Logger
	hour   int
}

func NewRunner(store *ledger.Store, loc *time.Location, hour int, logger *zap.Logger) *Runner {
	if loc == nil {
		loc = time.Local
	}
	return &Runner{
		cron:   cron.New(cron.WithLocation(loc)),
		store:  store,
		loc:    loc,
		logger: logger,
		hour:   hour,
	}
}

// Start schedules the nightly run.
func (r *Runner) Start() error {
	spec := fmt.Sprintf("0 %d * * *", r.hour)
	_, err := r.cron.AddFunc(spec, func() {
		yesterday := time.Now().In(r.loc).AddDate(0, 0, -1)
		if err := r.AggregateDay(yesterday); err != nil {
			r.logger.Error("nightly aggregation failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule aggregation: %w", err)
	}
	r.cron.Start()
	r.logger.Info("aggregation job scheduled", zap.String("spec", spec))
	return nil
}

// Stop stops the scheduler and waits for a running job to finish.
func (r *Runner) Stop() {
	ctx := r.cron.Stop()
	<-ctx.Done()
	r.logger.Info("aggregation job stopped")
}

// AggregateDay computes and stores the daily aggregate for every
// profile for the given day. Per-profile failures are logged and do
// not stop the sweep.
func (r *Runner) AggregateDay(day time.Time) error {
	profiles, err := r.store.ListProfileIDs()
	if err != nil {
		metrics.AggregateRuns.WithLabelValues("error").Inc()
		return err
	}

	var failed int
	for _, profileID := range profiles {
		if err := r.aggregateProfile(profileID, day); err != nil {
			failed++
			r.logger.Error("profile aggregation failed",
				zap.String("profile_id", profileID),
				zap.Error(err),
			)
		}
	}

	if failed > 0 {
		metrics.AggregateRuns.WithLabelValues("partial").Inc()
		return fmt.Errorf("aggregation failed for %d of %d profiles", failed, len(profiles))
	}
	metrics.AggregateRuns.WithLabelValues("ok").Inc()
	r.logger.Info("daily aggregation complete",
		zap.String("date", ledger.DateOf(day)),
		zap.Int("profiles", len(profiles)),
	)
	return nil
}

func (r *Runner) aggregateProfile(profileID string, day time.Time) error {
	date := ledger.DateOf(day)
	weekday := schedule.WeekdayOf(day)

	assignments, err := r.store.ListAssignments(profileID)
	if err != nil {
		return err
	}
	records, err := r.store.DayRecords(profileID, date)
	if err != nil {
		return err
	}

	taken := make(map[string]map[schedule.TimeOfDay]bool)
	for _, rec := range records {
		if !rec.Taken {
			continue
		}
		byTime, ok := taken[rec.ProfileMedicationID]
		if !ok {
			byTime = make(map[schedule.TimeOfDay]bool)
			taken[rec.ProfileMedicationID] = byTime
		}
		byTime[rec.Time()] = true
	}

	agg := &ledger.DailyAggregate{ProfileID: profileID, Date: date}
	categories := make(map[string]int)
	hours := make(map[string]int)

	for _, a := range assignments {
		times := schedule.Expand(a.Schedule(), weekday)
		agg.Scheduled += len(times)
		for _, tod := range times {
			if !taken[a.ID][tod] {
				continue
			}
			agg.Taken++
			if a.Category != "" {
				categories[a.Category]++
			}
			hours[fmt.Sprintf("%02d", int(tod)/60)]++
		}
	}

	agg.CategoryJSON = ledger.EncodeCounts(categories)
	agg.HourJSON = ledger.EncodeCounts(hours)
	return r.store.UpsertDailyAggregate(agg)
}
