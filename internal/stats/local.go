package stats

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/mgavrilo/dosetrack/internal/ledger"
)

// LocalSource answers the statistics queries from the nightly
// per-day aggregates in the ledger store. It serves deployments that
// run without a statistics upstream, and it is what that upstream
// would itself compute.
type LocalSource struct {
	store  *ledger.Store
	loc    *time.Location
	logger *zap.Logger
	now    func() time.Time
}

func NewLocalSource(store *ledger.Store, loc *time.Location, logger *zap.Logger) *LocalSource {
	if loc == nil {
		loc = time.Local
	}
	return &LocalSource{store: store, loc: loc, logger: logger, now: time.Now}
}

func (s *LocalSource) load(profileID string, period Period) ([]ledger.DailyAggregate, error) {
	today := s.now().In(s.loc)
	from := today.AddDate(0, 0, -(period.Days() - 1))
	return s.store.GetDailyAggregates(profileID, ledger.DateOf(from), ledger.DateOf(today))
}

// bucketLabel groups a date into the period's natural trend bucket:
// weekdays for a week, week starts for a month, months for a quarter.
func bucketLabel(date string, period Period) string {
	t, err := time.Parse(ledger.DateLayout, date)
	if err != nil {
		return date
	}
	switch period {
	case Monthly:
		// Back up to Monday.
		offset := (int(t.Weekday()) + 6) % 7
		return t.AddDate(0, 0, -offset).Format("Jan 2")
	case Quarterly:
		return t.Format("Jan")
	default:
		return t.Format("Mon")
	}
}

type bucket struct {
	label     string
	scheduled int
	taken     int
}

func bucketize(aggs []ledger.DailyAggregate, period Period) []bucket {
	index := make(map[string]int)
	var out []bucket
	for _, agg := range aggs {
		label := bucketLabel(agg.Date, period)
		i, ok := index[label]
		if !ok {
			i = len(out)
			index[label] = i
			out = append(out, bucket{label: label})
		}
		out[i].scheduled += agg.Scheduled
		out[i].taken += agg.Taken
	}
	return out
}

func (s *LocalSource) Compliance(ctx context.Context, profileID string, period Period) (Compliance, error) {
	aggs, err := s.load(profileID, period)
	if err != nil {
		return Compliance{}, err
	}

	var out Compliance
	for _, agg := range aggs {
		out.TotalDoses += agg.Scheduled
		out.TakenDoses += agg.Taken
	}
	if out.TotalDoses > 0 {
		rate := float64(out.TakenDoses) / float64(out.TotalDoses)
		out.Rate = &rate
	}
	return out, nil
}

func (s *LocalSource) Trend(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	aggs, err := s.load(profileID, period)
	if err != nil {
		return nil, err
	}

	var out []SeriesPoint
	for _, b := range bucketize(aggs, period) {
		point := SeriesPoint{Label: b.label}
		if b.scheduled > 0 {
			point.Value = float64(b.taken) / float64(b.scheduled)
		}
		out = append(out, point)
	}
	return out, nil
}

func (s *LocalSource) Categories(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	aggs, err := s.load(profileID, period)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, agg := range aggs {
		for label, count := range ledger.DecodeCounts(agg.CategoryJSON) {
			totals[label] += count
		}
	}
	return sortedCounts(totals), nil
}

func (s *LocalSource) MissedDoses(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	aggs, err := s.load(profileID, period)
	if err != nil {
		return nil, err
	}

	var out []SeriesPoint
	for _, b := range bucketize(aggs, period) {
		out = append(out, SeriesPoint{Label: b.label, Value: float64(b.scheduled - b.taken)})
	}
	return out, nil
}

func (s *LocalSource) PeakTimes(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	aggs, err := s.load(profileID, period)
	if err != nil {
		return nil, err
	}

	totals := make(map[string]int)
	for _, agg := range aggs {
		for hour, count := range ledger.DecodeCounts(agg.HourJSON) {
			totals[fmt.Sprintf("%s:00", hour)] += count
		}
	}
	return sortedCounts(totals), nil
}

func sortedCounts(totals map[string]int) []SeriesPoint {
	out := make([]SeriesPoint, 0, len(totals))
	for label, count := range totals {
		out = append(out, SeriesPoint{Label: label, Value: float64(count)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out
}
