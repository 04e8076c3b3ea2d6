package schedule

import (
	"fmt"
	"strings"
	"time"
)

// TimeOfDay is minutes since midnight (0..1439). Schedules compare and
// sort times as plain integers; the HH:mm string form exists only at
// JSON and storage boundaries.
type TimeOfDay int

const MinutesPerDay = 1440

// ParseTimeOfDay parses a strict 24-hour "HH:mm" value. Both fields
// must be zero-padded to two digits; seconds are not accepted.
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	if len(s) != 5 || s[2] != ':' {
		return 0, fmt.Errorf("time %q is not in HH:mm format", s)
	}

	var hh, mm int
	for _, c := range s[0:2] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("time %q is not in HH:mm format", s)
		}
		hh = hh*10 + int(c-'0')
	}
	for _, c := range s[3:5] {
		if c < '0' || c > '9' {
			return 0, fmt.Errorf("time %q is not in HH:mm format", s)
		}
		mm = mm*10 + int(c-'0')
	}

	if hh > 23 {
		return 0, fmt.Errorf("time %q: hour out of range", s)
	}
	if mm > 59 {
		return 0, fmt.Errorf("time %q: minute out of range", s)
	}

	return TimeOfDay(hh*60 + mm), nil
}

// FromClock converts a wall-clock instant to its minute of day.
func FromClock(t time.Time) TimeOfDay {
	return TimeOfDay(t.Hour()*60 + t.Minute())
}

func (t TimeOfDay) Hour() int   { return int(t) / 60 }
func (t TimeOfDay) Minute() int { return int(t) % 60 }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return []byte(`"` + t.String() + `"`), nil
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseTimeOfDay(s)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// MinutesUntil returns the forward distance to other on a circular
// 24-hour clock. A time earlier in the day is treated as tomorrow's,
// so the result is always in [0, 1440).
func (t TimeOfDay) MinutesUntil(other TimeOfDay) int {
	d := (int(other) - int(t)) % MinutesPerDay
	if d < 0 {
		d += MinutesPerDay
	}
	return d
}

// Weekday uses ISO numbering: Monday is 1, Sunday is 7.
type Weekday int

const (
	Monday Weekday = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var weekdayNames = [...]string{"Mon", "Tue", "Wed", "Thu", "Fri", "Sat", "Sun"}

// ParseWeekday accepts the three-letter day codes used by schedule
// payloads ("Mon".."Sun"), case-insensitively.
func ParseWeekday(s string) (Weekday, error) {
	for i, name := range weekdayNames {
		if strings.EqualFold(s, name) {
			return Weekday(i + 1), nil
		}
	}
	return 0, fmt.Errorf("unknown weekday %q", s)
}

// WeekdayOf converts a wall-clock instant to its ISO weekday.
func WeekdayOf(t time.Time) Weekday {
	wd := int(t.Weekday())
	if wd == 0 {
		return Sunday
	}
	return Weekday(wd)
}

func (d Weekday) Valid() bool {
	return d >= Monday && d <= Sunday
}

func (d Weekday) String() string {
	if !d.Valid() {
		return fmt.Sprintf("Weekday(%d)", int(d))
	}
	return weekdayNames[d-1]
}

func (d Weekday) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

func (d *Weekday) UnmarshalJSON(data []byte) error {
	s := strings.Trim(string(data), `"`)
	parsed, err := ParseWeekday(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
