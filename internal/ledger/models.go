package ledger

import (
	"encoding/json"
	"time"

	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// Assignment is one profile-medication pairing and the reminder
// schedule attached to it. A profile owns at most one schedule per
// medication it tracks; saving replaces the whole group list.
type Assignment struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ProfileID string `json:"profile_id" gorm:"index"`

	MedicationName string `json:"medication_name"`
	Category       string `json:"category,omitempty"`

	Groups     []schedule.Group `json:"groups" gorm:"-"`
	GroupsJSON string           `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (a *Assignment) encodeGroups() error {
	if a.Groups == nil {
		a.GroupsJSON = ""
		return nil
	}
	data, err := json.Marshal(a.Groups)
	if err != nil {
		return err
	}
	a.GroupsJSON = string(data)
	return nil
}

func (a *Assignment) decodeGroups() error {
	a.Groups = nil
	if a.GroupsJSON == "" {
		return nil
	}
	return json.Unmarshal([]byte(a.GroupsJSON), &a.Groups)
}

// Schedule returns the assignment's validated schedule.
func (a *Assignment) Schedule() schedule.Schedule {
	return schedule.Schedule{Groups: a.Groups}
}

// Record is one intake entry. Uniqueness is the full
// (profile_medication_id, date, time) triple: the explicit calendar
// date keeps records from one day ever colliding with the next, and
// resubmitting the same key overwrites the taken flag instead of
// duplicating.
type Record struct {
	ID                  string `json:"id" gorm:"primaryKey"`
	ProfileID           string `json:"profile_id" gorm:"index"`
	ProfileMedicationID string `json:"profile_medication_id" gorm:"uniqueIndex:idx_intake_key"`

	Date    string `json:"date" gorm:"uniqueIndex:idx_intake_key;index"` // YYYY-MM-DD
	TimeMin int    `json:"-" gorm:"column:time_min;uniqueIndex:idx_intake_key"`

	Taken      bool      `json:"taken"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Time returns the scheduled minute of day the record resolves.
func (r *Record) Time() schedule.TimeOfDay {
	return schedule.TimeOfDay(r.TimeMin)
}

// DailyAggregate is one profile-day adherence rollup, materialized
// nightly and read by the local statistics source.
type DailyAggregate struct {
	ID        string `json:"id" gorm:"primaryKey"`
	ProfileID string `json:"profile_id" gorm:"uniqueIndex:idx_daily_agg"`
	Date      string `json:"date" gorm:"uniqueIndex:idx_daily_agg"` // YYYY-MM-DD

	Scheduled int `json:"scheduled"`
	Taken     int `json:"taken"`

	// Per-category taken counts and per-hour intake counts,
	// serialized the same way assignment groups are.
	CategoryJSON string `json:"-" gorm:"type:text"`
	HourJSON     string `json:"-" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// DateLayout is the calendar-date form used on records and aggregates.
const DateLayout = "2006-01-02"

// DateOf formats an instant as a ledger date in its own location.
func DateOf(t time.Time) string {
	return t.Format(DateLayout)
}
