// Package plan contains the pure scheduling arithmetic: local time-of-day
// values, the local→UTC clock resolver, hydration dose schedules and bedtime
// planning. Nothing in this package touches I/O.
package plan

import (
	"fmt"
	"strconv"
	"strings"
)

const minutesPerDay = 24 * 60

// TimeOfDay is a wall-clock time as minutes from local midnight.
// Arithmetic wraps around midnight.
type TimeOfDay int

func At(hour, minute int) TimeOfDay {
	return TimeOfDay(((hour*60+minute)%minutesPerDay + minutesPerDay) % minutesPerDay)
}

// FromMinutes normalizes an arbitrary minute count into [0, 24h).
func FromMinutes(m int) TimeOfDay {
	return TimeOfDay((m%minutesPerDay + minutesPerDay) % minutesPerDay)
}

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(s string) (TimeOfDay, error) {
	parts := strings.Split(strings.TrimSpace(s), ":")
	if len(parts) != 2 {
		return 0, fmt.Errorf("invalid time %q, expected HH:MM", s)
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("invalid hour in %q", s)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("invalid minute in %q", s)
	}
	return At(h, m), nil
}

func (t TimeOfDay) Hour() int    { return int(t) / 60 }
func (t TimeOfDay) Minute() int  { return int(t) % 60 }
func (t TimeOfDay) Minutes() int { return int(t) }

// Add shifts by n minutes, wrapping around midnight.
func (t TimeOfDay) Add(n int) TimeOfDay { return FromMinutes(int(t) + n) }

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour(), t.Minute())
}

// DiffMinutes returns the signed distance from a to b in minutes, picking the
// shorter way around the clock (result in (-12h, +12h]).
func DiffMinutes(a, b TimeOfDay) int {
	diff := int(b) - int(a)
	if diff > minutesPerDay/2 {
		diff -= minutesPerDay
	} else if diff < -minutesPerDay/2 {
		diff += minutesPerDay
	}
	return diff
}
