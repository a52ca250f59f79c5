package analytics

import "time"

// InRange reports whether a date falls inside the [start, end] window. A
// nil date is never in range. A nil bound imposes no constraint on that
// side, so two nil bounds mean "all time".
func InRange(date, start, end *time.Time) bool {
	if date == nil {
		return false
	}
	if start != nil && date.Before(*start) {
		return false
	}
	if end != nil && date.After(*end) {
		return false
	}
	return true
}

// PreviousPeriod computes the window of equal length immediately preceding
// [start, end]: the new window ends one day before start at 23:59:59.999
// and spans the same number of days, starting at midnight. Used for
// period-over-period comparisons.
func PreviousPeriod(start, end time.Time) (time.Time, time.Time) {
	days := int(end.Sub(start).Hours() / 24)

	prevEnd := start.AddDate(0, 0, -1)
	prevEnd = time.Date(prevEnd.Year(), prevEnd.Month(), prevEnd.Day(), 23, 59, 59, 999000000, prevEnd.Location())

	prevStart := prevEnd.AddDate(0, 0, -days)
	prevStart = time.Date(prevStart.Year(), prevStart.Month(), prevStart.Day(), 0, 0, 0, 0, prevStart.Location())

	return prevStart, prevEnd
}

// dayStart truncates a timestamp to local midnight, the calendar-day bucket
// identity.
func dayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// weekStart returns the Monday of the timestamp's week. Sunday maps to the
// prior Monday (ISO-style week boundary).
func weekStart(t time.Time) time.Time {
	weekday := int(t.Weekday())
	if weekday == 0 {
		weekday = 7
	}
	return dayStart(t.AddDate(0, 0, -(weekday - 1)))
}
