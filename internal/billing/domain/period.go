package domain

import "time"

// PeriodLabel formats the invoice period label for the month containing t.
func PeriodLabel(t time.Time) string {
	return t.Format("2006-01")
}

// MonthBounds returns the first instant of t's month and the first instant
// of the following month, in UTC.
func MonthBounds(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0)
}

// DaysInMonth returns the number of calendar days in t's month.
func DaysInMonth(t time.Time) int {
	return time.Date(t.Year(), t.Month()+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
