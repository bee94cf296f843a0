package workflow

import "time"

// BusinessDaysBetween counts Monday–Friday calendar days from start to end,
// exclusive of end. The walk is over dates, not hours: a Friday-morning start
// and the following Monday-morning end yield exactly one business day.
// Holidays are intentionally not modeled.
func BusinessDaysBetween(start, end time.Time) int {
	days := 0
	current := start
	for beforeDate(current, end) {
		wd := current.Weekday()
		if wd != time.Saturday && wd != time.Sunday {
			days++
		}
		current = current.AddDate(0, 0, 1)
	}
	return days
}

func beforeDate(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	if ay != by {
		return ay < by
	}
	if am != bm {
		return am < bm
	}
	return ad < bd
}
