package core

import "time"

// NextDue computes the following due date for a frequency, derived from
// the previous due date rather than the sweep time so a delayed sweep
// does not shift the cadence.
//
// Monthly and yearly advances keep the day-of-month of the previous due
// date and clamp to the last valid day when the target month is shorter:
// Jan 31 advances to Feb 28 (Feb 29 in leap years), and the advance
// after that derives from the clamped date, so Feb 28 goes to Mar 28.
// Feb 29 advances yearly to Feb 28 on non-leap years.
func NextDue(freq Frequency, from time.Time) (time.Time, error) {
	switch freq {
	case Daily:
		return from.AddDate(0, 0, 1), nil
	case Weekly:
		return from.AddDate(0, 0, 7), nil
	case Monthly:
		return addMonthsClamped(from, 1), nil
	case Yearly:
		return addMonthsClamped(from, 12), nil
	default:
		return time.Time{}, ErrUnknownFrequency
	}
}

// addMonthsClamped adds whole months, clamping the day to the target
// month's length. time.AddDate would normalize Jan 31 + 1 month into
// Mar 3, which is exactly the overflow this avoids.
func addMonthsClamped(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, minute, sec := t.Clock()

	// First of the target month, letting time.Date normalize the year.
	first := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	if last := lastDayOfMonth(first.Year(), first.Month()); day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, minute, sec, t.Nanosecond(), t.Location())
}

// lastDayOfMonth returns the number of days in the given month.
func lastDayOfMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this one.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
