// Package adherence derives the "today" views from schedules and the
// intake ledger: which doses are due, which are overdue, and which
// single reminder comes next.
package adherence

import (
	"github.com/mgavrilo/dosetrack/internal/ledger"
	"github.com/mgavrilo/dosetrack/internal/schedule"
)

// Occurrence is one concrete dose slot on one day, with its taken flag
// resolved from the ledger. Never recorded means not taken.
type Occurrence struct {
	ProfileMedicationID string               `json:"profile_medication_id"`
	MedicationName      string               `json:"medication_name"`
	Time                schedule.TimeOfDay   `json:"time"`
	Taken               bool                 `json:"taken"`
}

// MedicationDay is one medication's occurrences for a date, sorted by
// time.
type MedicationDay struct {
	ProfileMedicationID string       `json:"profile_medication_id"`
	MedicationName      string       `json:"medication_name"`
	Category            string       `json:"category,omitempty"`
	Occurrences         []Occurrence `json:"occurrences"`
}

// BuildDay expands each assignment's schedule for the date's weekday
// and resolves taken flags from the day's records. Assignments not due
// that day are omitted.
func BuildDay(assignments []ledger.Assignment, records []ledger.Record, day schedule.Weekday) []MedicationDay {
	takenByKey := make(map[string]map[schedule.TimeOfDay]bool, len(assignments))
	for _, rec := range records {
		byTime := takenByKey[rec.ProfileMedicationID]
		if byTime == nil {
			byTime = make(map[schedule.TimeOfDay]bool)
			takenByKey[rec.ProfileMedicationID] = byTime
		}
		byTime[rec.Time()] = rec.Taken
	}

	var out []MedicationDay
	for _, a := range assignments {
		times := schedule.Expand(a.Schedule(), day)
		if len(times) == 0 {
			continue
		}

		md := MedicationDay{
			ProfileMedicationID: a.ID,
			MedicationName:      a.MedicationName,
			Category:            a.Category,
			Occurrences:         make([]Occurrence, 0, len(times)),
		}
		for _, t := range times {
			md.Occurrences = append(md.Occurrences, Occurrence{
				ProfileMedicationID: a.ID,
				MedicationName:      a.MedicationName,
				Time:                t,
				Taken:               takenByKey[a.ID][t],
			})
		}
		out = append(out, md)
	}
	return out
}

// DetectMissed returns every occurrence that is unresolved and already
// past. A taken occurrence never shows up here, no matter how late it
// was recorded. Missed doses live and die within their own day; the
// next day's expansion starts clean.
func DetectMissed(days []MedicationDay, now schedule.TimeOfDay) []Occurrence {
	var missed []Occurrence
	for _, md := range days {
		for _, occ := range md.Occurrences {
			if !occ.Taken && occ.Time < now {
				missed = append(missed, occ)
			}
		}
	}
	return missed
}

// SelectNext picks the single soonest unresolved occurrence on a
// circular 24-hour clock, so a dose already overdue today counts as
// tomorrow's and sorts last. Ties keep the first-seen medication.
// Returns false when everything is taken or nothing is scheduled.
func SelectNext(days []MedicationDay, now schedule.TimeOfDay) (Occurrence, bool) {
	var (
		best     Occurrence
		bestDiff = schedule.MinutesPerDay
		found    bool
	)

	for _, md := range days {
		for _, occ := range md.Occurrences {
			if occ.Taken {
				continue
			}
			diff := now.MinutesUntil(occ.Time)
			if !found || diff < bestDiff {
				best = occ
				bestDiff = diff
				found = true
			}
		}
	}
	return best, found
}
