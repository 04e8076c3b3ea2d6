package schedule

// Editor transforms. Each returns a fresh slice and never mutates its
// input; the caller owns the draft and calls Normalize before
// submission. Out-of-range indices return the input unchanged.

func cloneGroups(groups []RawGroup) []RawGroup {
	out := make([]RawGroup, len(groups))
	for i, g := range groups {
		out[i] = RawGroup{
			Days:  append([]string(nil), g.Days...),
			Times: append([]string(nil), g.Times...),
		}
	}
	return out
}

// AddGroup appends an empty draft group with one blank time slot.
func AddGroup(groups []RawGroup) []RawGroup {
	out := cloneGroups(groups)
	return append(out, RawGroup{Times: []string{""}})
}

// RemoveGroup drops the group at index i.
func RemoveGroup(groups []RawGroup, i int) []RawGroup {
	if i < 0 || i >= len(groups) {
		return cloneGroups(groups)
	}
	out := cloneGroups(groups)
	return append(out[:i], out[i+1:]...)
}

// ToggleDay adds the day code to group i if absent, removes it if
// present.
func ToggleDay(groups []RawGroup, i int, day string) []RawGroup {
	out := cloneGroups(groups)
	if i < 0 || i >= len(out) {
		return out
	}

	days := out[i].Days
	for j, d := range days {
		if d == day {
			out[i].Days = append(days[:j], days[j+1:]...)
			return out
		}
	}
	out[i].Days = append(days, day)
	return out
}

// SetTime replaces the time string at slot j of group i.
func SetTime(groups []RawGroup, i, j int, value string) []RawGroup {
	out := cloneGroups(groups)
	if i < 0 || i >= len(out) {
		return out
	}
	if j < 0 || j >= len(out[i].Times) {
		return out
	}
	out[i].Times[j] = value
	return out
}

// AddTime appends a blank time slot to group i.
func AddTime(groups []RawGroup, i int) []RawGroup {
	out := cloneGroups(groups)
	if i < 0 || i >= len(out) {
		return out
	}
	out[i].Times = append(out[i].Times, "")
	return out
}

// RemoveTime drops the time slot at index j of group i.
func RemoveTime(groups []RawGroup, i, j int) []RawGroup {
	out := cloneGroups(groups)
	if i < 0 || i >= len(out) {
		return out
	}
	if j < 0 || j >= len(out[i].Times) {
		return out
	}
	out[i].Times = append(out[i].Times[:j], out[i].Times[j+1:]...)
	return out
}
