package ledger

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "github.com/mgavrilo/dosetrack/internal/errors"
	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// Store is the intake ledger: the source of truth for schedules and
// taken/not-taken state, backed by the relational store.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) (*Store, error) {
	if err := db.AutoMigrate(&Assignment{}, &Record{}, &DailyAggregate{}); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to migrate ledger schemas")
	}
	return &Store{db: db}, nil
}

// Assignment operations

func (s *Store) CreateAssignment(a *Assignment) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if err := a.encodeGroups(); err != nil {
		return apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "failed to encode schedule")
	}
	a.CreatedAt = time.Now()
	a.UpdatedAt = time.Now()

	if err := s.db.Create(a).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to create assignment")
	}
	return nil
}

func (s *Store) GetAssignment(id string) (*Assignment, error) {
	var a Assignment
	err := s.db.Where("id = ?", id).First(&a).Error
	if err == gorm.ErrRecordNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to load assignment")
	}
	if err := a.decodeGroups(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "corrupt schedule payload")
	}
	return &a, nil
}

func (s *Store) ListAssignments(profileID string) ([]Assignment, error) {
	var out []Assignment
	err := s.db.Where("profile_id = ?", profileID).Order("created_at ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to list assignments")
	}
	for i := range out {
		if err := out[i].decodeGroups(); err != nil {
			return nil, apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "corrupt schedule payload")
		}
	}
	return out, nil
}

// SaveSchedule replaces the assignment's whole group list. The caller
// normalizes first; validation never reaches this layer.
func (s *Store) SaveSchedule(assignmentID string, sched schedule.Schedule) (*Assignment, error) {
	a, err := s.GetAssignment(assignmentID)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, apperrors.New(apperrors.ErrScheduleNotFound.Code, "no assignment "+assignmentID)
	}

	a.Groups = sched.Groups
	if err := a.encodeGroups(); err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "failed to encode schedule")
	}
	a.UpdatedAt = time.Now()

	if err := s.db.Save(a).Error; err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to save schedule")
	}
	return a, nil
}

func (s *Store) DeleteAssignment(id string) error {
	if err := s.db.Where("id = ?", id).Delete(&Assignment{}).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to delete assignment")
	}
	// Intake history for a removed medication goes with it.
	if err := s.db.Where("profile_medication_id = ?", id).Delete(&Record{}).Error; err != nil {
		return apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to delete intake records")
	}
	return nil
}

// Intake operations

// RecordIntake upserts the taken flag for one occurrence. Resubmitting
// the same (assignment, date, time) key overwrites rather than
// duplicates; failures surface as a recording error and the caller
// re-fetches the day instead of trusting local state.
func (s *Store) RecordIntake(profileID, assignmentID, date string, t schedule.TimeOfDay, taken bool) error {
	rec := &Record{
		ID:                  uuid.NewString(),
		ProfileID:           profileID,
		ProfileMedicationID: assignmentID,
		Date:                date,
		TimeMin:             int(t),
		Taken:               taken,
		RecordedAt:          time.Now(),
	}

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_medication_id"}, {Name: "date"}, {Name: "time_min"}},
		DoUpdates: clause.AssignmentColumns([]string{"taken", "recorded_at"}),
	}).Create(rec).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrRecordingFailed.Code, "failed to record intake")
	}
	return nil
}

// Lookup returns the recorded taken flag for one occurrence key; a
// never-recorded occurrence reads as not taken.
func (s *Store) Lookup(assignmentID, date string, t schedule.TimeOfDay) (bool, error) {
	var rec Record
	err := s.db.Where("profile_medication_id = ? AND date = ? AND time_min = ?",
		assignmentID, date, int(t)).First(&rec).Error
	if err == gorm.ErrRecordNotFound {
		return false, nil
	}
	if err != nil {
		return false, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to look up intake")
	}
	return rec.Taken, nil
}

// DayRecords returns every intake record for a profile on one date.
func (s *Store) DayRecords(profileID, date string) ([]Record, error) {
	var out []Record
	err := s.db.Where("profile_id = ? AND date = ?", profileID, date).
		Order("time_min ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to load day records")
	}
	return out, nil
}

// RangeRecords returns a profile's records for dates in [from, to],
// inclusive. Dates sort lexicographically in YYYY-MM-DD form.
func (s *Store) RangeRecords(profileID, from, to string) ([]Record, error) {
	var out []Record
	err := s.db.Where("profile_id = ? AND date >= ? AND date <= ?", profileID, from, to).
		Order("date ASC, time_min ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to load record range")
	}
	return out, nil
}

// Daily aggregate operations

// UpsertDailyAggregate writes one profile-day rollup, idempotently.
func (s *Store) UpsertDailyAggregate(agg *DailyAggregate) error {
	if agg.ID == "" {
		agg.ID = uuid.NewString()
	}
	now := time.Now()
	agg.CreatedAt = now
	agg.UpdatedAt = now

	err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "profile_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns([]string{"scheduled", "taken", "category_json", "hour_json", "updated_at"}),
	}).Create(agg).Error
	if err != nil {
		return apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to upsert daily aggregate")
	}
	return nil
}

func (s *Store) GetDailyAggregates(profileID, from, to string) ([]DailyAggregate, error) {
	var out []DailyAggregate
	err := s.db.Where("profile_id = ? AND date >= ? AND date <= ?", profileID, from, to).
		Order("date ASC").Find(&out).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to load daily aggregates")
	}
	return out, nil
}

// ListProfileIDs returns the distinct profiles with assignments; the
// nightly aggregate job iterates these.
func (s *Store) ListProfileIDs() ([]string, error) {
	var ids []string
	err := s.db.Model(&Assignment{}).Distinct().Pluck("profile_id", &ids).Error
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrLedgerUnavailable.Code, "failed to list profiles")
	}
	return ids, nil
}

// EncodeCounts serializes a label-count map for aggregate columns.
func EncodeCounts(counts map[string]int) string {
	if len(counts) == 0 {
		return ""
	}
	data, _ := json.Marshal(counts)
	return string(data)
}

// DecodeCounts reverses EncodeCounts; empty input yields an empty map.
func DecodeCounts(s string) map[string]int {
	out := make(map[string]int)
	if s == "" {
		return out
	}
	json.Unmarshal([]byte(s), &out)
	return out
}
