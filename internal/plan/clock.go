package plan

import "time"

// ResolveLocal converts a local wall-clock time-of-day in the named timezone
// into the next matching UTC instant, relative to nowUTC.
//
// The time-of-day is interpreted on the calendar date nowUTC falls on within
// the zone. If that local instant is strictly earlier than the user's current
// local time, the result advances by one calendar day (AddDate, not +24h in
// UTC, so DST transitions keep the wall-clock time intact).
//
// An unrecognized timezone name falls back to UTC; ok reports whether the
// zone was valid so the caller can log the degraded condition.
func ResolveLocal(tod TimeOfDay, tz string, nowUTC time.Time) (utc time.Time, ok bool) {
	loc, err := time.LoadLocation(tz)
	ok = err == nil && tz != ""
	if !ok {
		loc = time.UTC
	}

	localNow := nowUTC.In(loc)
	target := time.Date(localNow.Year(), localNow.Month(), localNow.Day(),
		tod.Hour(), tod.Minute(), 0, 0, loc)
	if target.Before(localNow) {
		target = target.AddDate(0, 0, 1)
	}
	return target.UTC(), ok
}
