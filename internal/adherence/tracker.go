package adherence

import (
	"time"

	"go.uber.org/zap"

	"github.com/mgavrilo/dosetrack/internal/ledger"
	"github.com/mgavrilo/dosetrack/internal/metrics"
	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// DayView is everything the today surfaces need in one payload.
type DayView struct {
	Date        string          `json:"date"`
	Medications []MedicationDay `json:"medications"`
	Missed      []Occurrence    `json:"missed"`
	Next        *Occurrence     `json:"next,omitempty"`
}

// Tracker assembles day views from fresh store reads. There is no
// incremental state: every call re-fetches, which is what keeps the
// view honest after a write from any client.
type Tracker struct {
	store  *ledger.Store
	loc    *time.Location
	logger *zap.Logger
}

func NewTracker(store *ledger.Store, loc *time.Location, logger *zap.Logger) *Tracker {
	if loc == nil {
		loc = time.Local
	}
	return &Tracker{store: store, loc: loc, logger: logger}
}

// TodayDate returns the current date in the tracker's timezone.
func (tr *Tracker) TodayDate() string {
	return ledger.DateOf(time.Now().In(tr.loc))
}

// Today builds the current day view for a profile.
func (tr *Tracker) Today(profileID string) (*DayView, error) {
	return tr.dayAt(profileID, time.Now().In(tr.loc))
}

// dayAt is Today with an injectable clock.
func (tr *Tracker) dayAt(profileID string, now time.Time) (*DayView, error) {
	date := ledger.DateOf(now)

	assignments, err := tr.store.ListAssignments(profileID)
	if err != nil {
		return nil, err
	}
	records, err := tr.store.DayRecords(profileID, date)
	if err != nil {
		return nil, err
	}

	days := BuildDay(assignments, records, schedule.WeekdayOf(now))
	nowTOD := schedule.FromClock(now)
	missed := DetectMissed(days, nowTOD)
	metrics.MissedDetected.Add(float64(len(missed)))

	view := &DayView{
		Date:        date,
		Medications: days,
		Missed:      missed,
	}
	if next, ok := SelectNext(days, nowTOD); ok {
		view.Next = &next
	}

	tr.logger.Debug("built day view",
		zap.String("profile_id", profileID),
		zap.String("date", date),
		zap.Int("medications", len(days)),
		zap.Int("missed", len(missed)),
	)
	return view, nil
}
