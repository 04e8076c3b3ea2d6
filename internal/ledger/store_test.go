package ledger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/mgavrilo/dosetrack/internal/schedule"
)

func setupTestStore(t *testing.T) *Store {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	store, err := NewStore(db)
	require.NoError(t, err)
	return store
}

func mustTime(t *testing.T, s string) schedule.TimeOfDay {
	tod, err := schedule.ParseTimeOfDay(s)
	require.NoError(t, err)
	return tod
}

func TestStore_AssignmentRoundTrip(t *testing.T) {
	store := setupTestStore(t)

	sched, err := schedule.Normalize([]schedule.RawGroup{
		{Days: []string{"Mon", "Wed"}, Times: []string{"08:00", "20:00"}},
	})
	require.NoError(t, err)

	a := &Assignment{
		ProfileID:      "profile_1",
		MedicationName: "Lisinopril 10mg",
		Category:       "cardiovascular",
		Groups:         sched.Groups,
	}
	require.NoError(t, store.CreateAssignment(a))
	assert.NotEmpty(t, a.ID)

	got, err := store.GetAssignment(a.ID)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "Lisinopril 10mg", got.MedicationName)
	require.Len(t, got.Groups, 1)
	assert.Equal(t, "08:00", got.Groups[0].Times[0].String())
}

func TestStore_GetAssignmentMissing(t *testing.T) {
	store := setupTestStore(t)

	got, err := store.GetAssignment("nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestStore_SaveScheduleReplacesGroups(t *testing.T) {
	store := setupTestStore(t)

	initial, _ := schedule.Normalize([]schedule.RawGroup{
		{Days: []string{"Mon"}, Times: []string{"08:00"}},
	})
	a := &Assignment{ProfileID: "profile_1", MedicationName: "Metformin", Groups: initial.Groups}
	require.NoError(t, store.CreateAssignment(a))

	replacement, _ := schedule.Normalize([]schedule.RawGroup{
		{Days: []string{"Tue", "Thu"}, Times: []string{"12:00"}},
		{Days: []string{"Sat"}, Times: []string{"09:00"}},
	})
	saved, err := store.SaveSchedule(a.ID, replacement)
	require.NoError(t, err)
	assert.Len(t, saved.Groups, 2)

	reloaded, err := store.GetAssignment(a.ID)
	require.NoError(t, err)
	require.Len(t, reloaded.Groups, 2)
	assert.Equal(t, []schedule.Weekday{schedule.Tuesday, schedule.Thursday}, reloaded.Groups[0].Days)
}

func TestStore_SaveScheduleUnknownAssignment(t *testing.T) {
	store := setupTestStore(t)

	_, err := store.SaveSchedule("missing", schedule.Schedule{})
	require.Error(t, err)
}

func TestStore_RecordIntakeIdempotent(t *testing.T) {
	store := setupTestStore(t)
	at := mustTime(t, "08:00")

	require.NoError(t, store.RecordIntake("profile_1", "pm_1", "2024-03-04", at, true))

	taken, err := store.Lookup("pm_1", "2024-03-04", at)
	require.NoError(t, err)
	assert.True(t, taken)

	// Resubmission with the same key overwrites, no duplicate row.
	require.NoError(t, store.RecordIntake("profile_1", "pm_1", "2024-03-04", at, false))

	taken, err = store.Lookup("pm_1", "2024-03-04", at)
	require.NoError(t, err)
	assert.False(t, taken)

	recs, err := store.DayRecords("profile_1", "2024-03-04")
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStore_LookupUnrecordedIsFalse(t *testing.T) {
	store := setupTestStore(t)

	taken, err := store.Lookup("pm_1", "2024-03-04", mustTime(t, "20:00"))
	require.NoError(t, err)
	assert.False(t, taken)
}

func TestStore_RecordsScopedByDate(t *testing.T) {
	store := setupTestStore(t)
	at := mustTime(t, "23:55")

	require.NoError(t, store.RecordIntake("profile_1", "pm_1", "2024-03-04", at, true))

	// Same assignment and time the next day is a distinct occurrence.
	taken, err := store.Lookup("pm_1", "2024-03-05", at)
	require.NoError(t, err)
	assert.False(t, taken)

	require.NoError(t, store.RecordIntake("profile_1", "pm_1", "2024-03-05", at, false))

	recs, err := store.RangeRecords("profile_1", "2024-03-04", "2024-03-05")
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	assert.Equal(t, "2024-03-04", recs[0].Date)
	assert.Equal(t, "2024-03-05", recs[1].Date)
}

func TestStore_DeleteAssignmentRemovesHistory(t *testing.T) {
	store := setupTestStore(t)

	a := &Assignment{ProfileID: "profile_1", MedicationName: "Aspirin"}
	require.NoError(t, store.CreateAssignment(a))
	require.NoError(t, store.RecordIntake("profile_1", a.ID, "2024-03-04", mustTime(t, "08:00"), true))

	require.NoError(t, store.DeleteAssignment(a.ID))

	got, err := store.GetAssignment(a.ID)
	require.NoError(t, err)
	assert.Nil(t, got)

	recs, err := store.DayRecords("profile_1", "2024-03-04")
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestStore_DailyAggregateUpsert(t *testing.T) {
	store := setupTestStore(t)

	agg := &DailyAggregate{
		ProfileID:    "profile_1",
		Date:         "2024-03-04",
		Scheduled:    4,
		Taken:        3,
		CategoryJSON: EncodeCounts(map[string]int{"cardiovascular": 2}),
		HourJSON:     EncodeCounts(map[string]int{"08": 2, "20": 1}),
	}
	require.NoError(t, store.UpsertDailyAggregate(agg))

	// Re-running the rollup for the same day replaces, not appends.
	require.NoError(t, store.UpsertDailyAggregate(&DailyAggregate{
		ProfileID: "profile_1",
		Date:      "2024-03-04",
		Scheduled: 4,
		Taken:     4,
	}))

	aggs, err := store.GetDailyAggregates("profile_1", "2024-03-01", "2024-03-31")
	require.NoError(t, err)
	require.Len(t, aggs, 1)
	assert.Equal(t, 4, aggs[0].Taken)
}

func TestStore_ListProfileIDs(t *testing.T) {
	store := setupTestStore(t)

	require.NoError(t, store.CreateAssignment(&Assignment{ProfileID: "p1", MedicationName: "A"}))
	require.NoError(t, store.CreateAssignment(&Assignment{ProfileID: "p1", MedicationName: "B"}))
	require.NoError(t, store.CreateAssignment(&Assignment{ProfileID: "p2", MedicationName: "C"}))

	ids, err := store.ListProfileIDs()
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"p1", "p2"}, ids)
}

func TestEncodeDecodeCounts(t *testing.T) {
	in := map[string]int{"morning": 3, "evening": 1}
	out := DecodeCounts(EncodeCounts(in))
	assert.Equal(t, in, out)
	assert.Empty(t, DecodeCounts(""))
}
