package core

import "time"

// civilDate strips the clock from t, keeping the calendar date as observed in
// t's own location, and returns it as UTC midnight. All day arithmetic in the
// engine runs on civil dates so DST changes never skew day counts.
func civilDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// daysBetween returns the whole calendar days from a to b (negative when b is
// before a).
func daysBetween(a, b time.Time) int {
	return int(civilDate(b).Sub(civilDate(a)).Hours() / 24)
}

// sameDay reports whether a and b fall on the same calendar date.
func sameDay(a, b time.Time) bool {
	return civilDate(a).Equal(civilDate(b))
}

// addDays shifts a calendar date by n days.
func addDays(t time.Time, n int) time.Time {
	return civilDate(t).AddDate(0, 0, n)
}

// percent returns round(part/total*100), or 0 when total is 0.
func percent(part, total int) int {
	if total <= 0 {
		return 0
	}
	// Integer half-up rounding; part and total are non-negative.
	return (part*200 + total) / (total * 2)
}
