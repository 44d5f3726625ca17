package utils

import (
	"fmt"
	"time"
)

const DateLayout = "2006-01-02"

// ParseDate parses a calendar date in the wire format used by the API
// (fecha_solicitud, fecha_pago, fecha_corte, ...).
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// FormatDate renders a calendar date in the wire format.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// Truncate drops the time-of-day component; the engine reasons in whole days.
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// DaysBetween returns the number of whole days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(Truncate(b).Sub(Truncate(a)).Hours() / 24)
}

// AddMonths advances a date by n calendar months, clamping the day to the
// end of the target month (Jan 31 + 1 month = Feb 28, not Mar 3).
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	last := first.AddDate(0, 1, -1).Day()
	if day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, 0, 0, 0, 0, time.UTC)
}

// ConsecutiveNumber formats a monthly consecutive document number, e.g.
// CR-202608-000123 for credits or REC-202608-000045 for payment receipts.
func ConsecutiveNumber(prefix string, fecha time.Time, seq int64) string {
	return fmt.Sprintf("%s-%04d%02d-%06d", prefix, fecha.Year(), int(fecha.Month()), seq)
}
