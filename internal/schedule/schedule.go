package schedule

import (
	"sort"
	"strings"

	apperrors "github.com/mgavrilo/dosetrack/internal/errors"
)

// Group is one validated reminder group: the medication is due at each
// of Times on each of Days. A persisted group is never empty.
type Group struct {
	Days  []Weekday   `json:"days"`
	Times []TimeOfDay `json:"times"`
}

// Has reports whether the group fires on the given weekday.
func (g Group) Has(day Weekday) bool {
	for _, d := range g.Days {
		if d == day {
			return true
		}
	}
	return false
}

// Schedule is the recurring reminder schedule owned by one
// profile-medication assignment. Saves replace the whole group list;
// there is no group-level diffing.
type Schedule struct {
	Groups []Group `json:"groups"`
}

// Empty reports whether the schedule has no active groups.
func (s Schedule) Empty() bool {
	return len(s.Groups) == 0
}

// RawGroup is the unvalidated editor shape: day codes and time strings
// exactly as the user left them. Editor transforms operate on raw
// groups; Normalize is the only path to a Schedule.
type RawGroup struct {
	Days  []string `json:"days"`
	Times []string `json:"times"`
}

// Normalize validates raw editor groups into a Schedule.
//
// Whitespace-only time entries are stripped, duplicate days and times
// collapse, and a group left with no days or no times is discarded
// rather than persisted. Any remaining time that does not parse as
// strict HH:mm fails the whole normalization with a validation error,
// as does an unknown day code.
func Normalize(raw []RawGroup) (Schedule, error) {
	var out Schedule

	for _, rg := range raw {
		daySet := make(map[Weekday]bool, len(rg.Days))
		var days []Weekday
		for _, ds := range rg.Days {
			day, err := ParseWeekday(ds)
			if err != nil {
				return Schedule{}, apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "invalid weekday")
			}
			if !daySet[day] {
				daySet[day] = true
				days = append(days, day)
			}
		}

		timeSet := make(map[TimeOfDay]bool, len(rg.Times))
		var times []TimeOfDay
		for _, ts := range rg.Times {
			ts = strings.TrimSpace(ts)
			if ts == "" {
				continue
			}
			t, err := ParseTimeOfDay(ts)
			if err != nil {
				return Schedule{}, apperrors.Wrap(err, apperrors.ErrScheduleInvalid.Code, "invalid time of day")
			}
			if !timeSet[t] {
				timeSet[t] = true
				times = append(times, t)
			}
		}

		if len(days) == 0 || len(times) == 0 {
			continue
		}

		sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
		sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
		out.Groups = append(out.Groups, Group{Days: days, Times: times})
	}

	return out, nil
}

// Raw converts a validated schedule back to the editor shape.
func (s Schedule) Raw() []RawGroup {
	raw := make([]RawGroup, 0, len(s.Groups))
	for _, g := range s.Groups {
		rg := RawGroup{
			Days:  make([]string, 0, len(g.Days)),
			Times: make([]string, 0, len(g.Times)),
		}
		for _, d := range g.Days {
			rg.Days = append(rg.Days, d.String())
		}
		for _, t := range g.Times {
			rg.Times = append(rg.Times, t.String())
		}
		raw = append(raw, rg)
	}
	return raw
}
