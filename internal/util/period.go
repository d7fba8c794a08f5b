package util

import "time"

// StartOfDay truncates t to midnight in its own location.
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// StartOfISOWeek returns midnight of the Monday of t's ISO week.
func StartOfISOWeek(t time.Time) time.Time {
	day := StartOfDay(t)
	weekday := int(day.Weekday())
	if weekday == 0 {
		weekday = 7 // Sunday belongs to the preceding Monday's week
	}
	return day.AddDate(0, 0, -(weekday - 1))
}
