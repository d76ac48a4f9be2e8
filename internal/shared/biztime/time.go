// Package biztime provides the clock used for ticket timestamps.
// All storage and transport use UTC; implicit Local timezone is prohibited.
package biztime

import "time"

// NowUTC returns current time in UTC.
func NowUTC() time.Time {
	return time.Now().UTC()
}

// Later returns now when it is strictly after prev, otherwise prev advanced by
// one nanosecond. It keeps successive mutation timestamps strictly increasing
// even when the wall clock does not move between two updates.
func Later(prev, now time.Time) time.Time {
	if now.After(prev) {
		return now
	}
	return prev.Add(time.Nanosecond)
}
