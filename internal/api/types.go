package api

import (
	"encoding/json"
	"fmt"

	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// scheduleRequest is the PUT schedule body.
type scheduleRequest struct {
	Groups []schedule.RawGroup `json:"groups"`
}

// scheduleResponse mirrors an assignment's stored schedule.
type scheduleResponse struct {
	ProfileMedicationID string              `json:"profile_medication_id"`
	MedicationName      string              `json:"medication_name"`
	Category            string              `json:"category,omitempty"`
	Groups              []schedule.RawGroup `json:"groups"`
}

// intakeRequest is the POST intake body. The current shape carries a
// single time; older clients send index-aligned times and taken
// arrays for one medication, which we still accept.
type intakeRequest struct {
	ProfileID           string `json:"profile_id"`
	ProfileMedicationID string `json:"profile_medication_id"`
	Date                string `json:"date"`

	Times []string
	Taken []bool
}

func (r *intakeRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		ProfileID           string          `json:"profile_id"`
		ProfileMedicationID string          `json:"profile_medication_id"`
		Date                string          `json:"date"`
		Time                json.RawMessage `json:"time"`
		Times               []string        `json:"times"`
		Taken               json.RawMessage `json:"taken"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	r.ProfileID = raw.ProfileID
	r.ProfileMedicationID = raw.ProfileMedicationID
	r.Date = raw.Date

	switch {
	case len(raw.Times) > 0:
		// Legacy shape: parallel times/taken arrays.
		r.Times = raw.Times
		if err := json.Unmarshal(raw.Taken, &r.Taken); err != nil {
			return fmt.Errorf("taken must be an array when times is: %w", err)
		}
		if len(r.Times) != len(r.Taken) {
			return fmt.Errorf("times and taken must have equal length")
		}
	case len(raw.Time) > 0:
		var t string
		if err := json.Unmarshal(raw.Time, &t); err != nil {
			return fmt.Errorf("time must be a string: %w", err)
		}
		var taken bool
		if len(raw.Taken) > 0 {
			if err := json.Unmarshal(raw.Taken, &taken); err != nil {
				return fmt.Errorf("taken must be a boolean: %w", err)
			}
		}
		r.Times = []string{t}
		r.Taken = []bool{taken}
	default:
		return fmt.Errorf("time is required")
	}

	return nil
}
