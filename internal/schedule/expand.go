package schedule

import "sort"

// Expand returns the concrete due times for one calendar day: the
// union of Times across every group whose Days contains the weekday,
// deduplicated and ascending. Overlapping groups union rather than
// override. An empty result means the medication is not due that day
// and is not an error.
func Expand(s Schedule, day Weekday) []TimeOfDay {
	seen := make(map[TimeOfDay]bool)
	var times []TimeOfDay

	for _, g := range s.Groups {
		if !g.Has(day) {
			continue
		}
		for _, t := range g.Times {
			if !seen[t] {
				seen[t] = true
				times = append(times, t)
			}
		}
	}

	sort.Slice(times, func(i, j int) bool { return times[i] < times[j] })
	return times
}
