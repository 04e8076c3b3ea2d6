package stats

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	apperrors "github.com/mgavrilo/dosetrack/internal/errors"
	"github.com/mgavrilo/dosetrack/internal/ledger"
)

// stubSource fails the metrics named in fail and returns canned data
// for the rest.
type stubSource struct {
	fail map[string]bool
}

var errStub = errors.New("upstream down")

func (s *stubSource) Compliance(ctx context.Context, profileID string, period Period) (Compliance, error) {
	if s.fail["compliance"] {
		return Compliance{}, errStub
	}
	rate := 0.9
	return Compliance{Rate: &rate, TakenDoses: 45, TotalDoses: 50}, nil
}

func (s *stubSource) Trend(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	if s.fail["trend"] {
		return nil, errStub
	}
	return []SeriesPoint{{Label: "Mon", Value: 1}}, nil
}

func (s *stubSource) Categories(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	if s.fail["categories"] {
		return nil, errStub
	}
	return []SeriesPoint{{Label: "cardiovascular", Value: 3}}, nil
}

func (s *stubSource) MissedDoses(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	if s.fail["missed"] {
		return nil, errStub
	}
	return []SeriesPoint{{Label: "Mon", Value: 1}}, nil
}

func (s *stubSource) PeakTimes(ctx context.Context, profileID string, period Period) ([]SeriesPoint, error) {
	if s.fail["peak_times"] {
		return nil, errStub
	}
	return []SeriesPoint{{Label: "08:00", Value: 5}}, nil
}

func TestParsePeriod(t *testing.T) {
	for _, valid := range []string{"weekly", "monthly", "quarterly"} {
		p, err := ParsePeriod(valid)
		require.NoError(t, err)
		assert.Equal(t, Period(valid), p)
	}

	_, err := ParsePeriod("yearly")
	assert.Error(t, err)
}

func TestAggregate_AllSucceed(t *testing.T) {
	agg := NewAggregator(&stubSource{}, zap.NewNop())

	snap, err := agg.Aggregate(context.Background(), "profile_1", Weekly)
	require.NoError(t, err)

	assert.False(t, snap.UsingFallback)
	require.NotNil(t, snap.Rate)
	assert.InDelta(t, 0.9, *snap.Rate, 0.001)
	assert.Equal(t, 45, snap.TakenDoses)
	assert.Len(t, snap.History, 1)
	assert.Equal(t, StateComplete, agg.State())
	assert.Equal(t, snap, agg.Current())
}

func TestAggregate_PartialFailure(t *testing.T) {
	source := &stubSource{fail: map[string]bool{"trend": true, "peak_times": true}}
	agg := NewAggregator(source, zap.NewNop())

	snap, err := agg.Aggregate(context.Background(), "profile_1", Monthly)
	require.NoError(t, err)

	assert.True(t, snap.UsingFallback)
	assert.Equal(t, StatePartiallyComplete, agg.State())

	// Successful metrics populated, failed ones left at defaults.
	require.NotNil(t, snap.Rate)
	assert.Len(t, snap.CategoryBreakdown, 1)
	assert.Len(t, snap.MissedDoses, 1)
	assert.Empty(t, snap.History)
	assert.Empty(t, snap.PeakTimes)
}

func TestAggregate_TotalFailure(t *testing.T) {
	source := &stubSource{fail: map[string]bool{
		"compliance": true, "trend": true, "categories": true, "missed": true, "peak_times": true,
	}}
	agg := NewAggregator(source, zap.NewNop())

	snap, err := agg.Aggregate(context.Background(), "profile_1", Weekly)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrStatsTotal.Code))

	// Known-empty snapshot, not nil: nulls mean unknown, not zero.
	require.NotNil(t, snap)
	assert.Nil(t, snap.Rate)
	assert.Zero(t, snap.TotalDoses)
	assert.Equal(t, StateFailed, agg.State())
}

func TestAggregate_LaterLoadWins(t *testing.T) {
	agg := NewAggregator(&stubSource{}, zap.NewNop())

	_, err := agg.Aggregate(context.Background(), "profile_1", Weekly)
	require.NoError(t, err)
	snap, err := agg.Aggregate(context.Background(), "profile_1", Quarterly)
	require.NoError(t, err)

	assert.Equal(t, Quarterly, agg.Current().Period)
	assert.Equal(t, snap, agg.Current())
}

func TestDecodeSeries_Shapes(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"bare array", `[{"label":"Mon","count":2},{"label":"Tue","count":1}]`},
		{"labels and data", `{"labels":["Mon","Tue"],"data":[2,1]}`},
		{"history envelope", `{"history":[{"label":"Mon","rate":2},{"label":"Tue","value":1}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pts, err := decodeSeries([]byte(tt.input))
			require.NoError(t, err)
			require.Len(t, pts, 2)
			assert.Equal(t, SeriesPoint{Label: "Mon", Value: 2}, pts[0])
			assert.Equal(t, SeriesPoint{Label: "Tue", Value: 1}, pts[1])
		})
	}
}

func TestDecodeSeries_LengthMismatch(t *testing.T) {
	_, err := decodeSeries([]byte(`{"labels":["Mon"],"data":[1,2]}`))
	assert.Error(t, err)
}

func TestDecodeCompliance(t *testing.T) {
	c, err := decodeCompliance([]byte(`{"rate":0.85,"taken_doses":17,"total_doses":20}`))
	require.NoError(t, err)
	require.NotNil(t, c.Rate)
	assert.InDelta(t, 0.85, *c.Rate, 0.001)
	assert.Equal(t, 17, c.TakenDoses)
	assert.Equal(t, 20, c.TotalDoses)

	// Alternate key spelling, no rate: nil means unknown.
	c, err = decodeCompliance([]byte(`{"taken":3,"total":0}`))
	require.NoError(t, err)
	assert.Nil(t, c.Rate)
	assert.Equal(t, 3, c.TakenDoses)
}

func setupLocalSource(t *testing.T) (*LocalSource, *ledger.Store) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	store, err := ledger.NewStore(db)
	require.NoError(t, err)

	src := NewLocalSource(store, time.UTC, zap.NewNop())
	// Pin the clock so the period window covers the fixture dates.
	src.now = func() time.Time { return time.Date(2024, 1, 7, 12, 0, 0, 0, time.UTC) }
	return src, store
}

func TestLocalSource_Compliance(t *testing.T) {
	src, store := setupLocalSource(t)

	require.NoError(t, store.UpsertDailyAggregate(&ledger.DailyAggregate{
		ProfileID: "p1", Date: "2024-01-05", Scheduled: 4, Taken: 3,
	}))
	require.NoError(t, store.UpsertDailyAggregate(&ledger.DailyAggregate{
		ProfileID: "p1", Date: "2024-01-06", Scheduled: 4, Taken: 4,
	}))

	c, err := src.Compliance(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	assert.Equal(t, 8, c.TotalDoses)
	assert.Equal(t, 7, c.TakenDoses)
	require.NotNil(t, c.Rate)
	assert.InDelta(t, 0.875, *c.Rate, 0.001)
}

func TestLocalSource_ComplianceNoData(t *testing.T) {
	src, _ := setupLocalSource(t)

	c, err := src.Compliance(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	assert.Nil(t, c.Rate)
	assert.Zero(t, c.TotalDoses)
}

func TestLocalSource_TrendAndMissed(t *testing.T) {
	src, store := setupLocalSource(t)

	// 2024-01-05 was a Friday, 2024-01-06 a Saturday.
	require.NoError(t, store.UpsertDailyAggregate(&ledger.DailyAggregate{
		ProfileID: "p1", Date: "2024-01-05", Scheduled: 2, Taken: 1,
	}))
	require.NoError(t, store.UpsertDailyAggregate(&ledger.DailyAggregate{
		ProfileID: "p1", Date: "2024-01-06", Scheduled: 2, Taken: 2,
	}))

	trend, err := src.Trend(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	require.Len(t, trend, 2)
	assert.Equal(t, "Fri", trend[0].Label)
	assert.InDelta(t, 0.5, trend[0].Value, 0.001)
	assert.InDelta(t, 1.0, trend[1].Value, 0.001)

	missed, err := src.MissedDoses(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	require.Len(t, missed, 2)
	assert.InDelta(t, 1, missed[0].Value, 0.001)
	assert.InDelta(t, 0, missed[1].Value, 0.001)
}

func TestLocalSource_CategoriesAndPeaks(t *testing.T) {
	src, store := setupLocalSource(t)

	require.NoError(t, store.UpsertDailyAggregate(&ledger.DailyAggregate{
		ProfileID:    "p1",
		Date:         "2024-01-06",
		Scheduled:    3,
		Taken:        3,
		CategoryJSON: ledger.EncodeCounts(map[string]int{"cardiovascular": 2, "vitamins": 1}),
		HourJSON:     ledger.EncodeCounts(map[string]int{"08": 2, "20": 1}),
	}))

	cats, err := src.Categories(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	assert.Equal(t, []SeriesPoint{
		{Label: "cardiovascular", Value: 2},
		{Label: "vitamins", Value: 1},
	}, cats)

	peaks, err := src.PeakTimes(context.Background(), "p1", Weekly)
	require.NoError(t, err)
	assert.Equal(t, []SeriesPoint{
		{Label: "08:00", Value: 2},
		{Label: "20:00", Value: 1},
	}, peaks)
}
