package utils

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAndFormatDate(t *testing.T) {
	d, err := ParseDate("2026-03-15")
	require.NoError(t, err)
	assert.Equal(t, 2026, d.Year())
	assert.Equal(t, time.March, d.Month())
	assert.Equal(t, "2026-03-15", FormatDate(d))

	_, err = ParseDate("15/03/2026")
	assert.Error(t, err)
}

func TestDaysBetween(t *testing.T) {
	a := time.Date(2026, 1, 1, 23, 59, 0, 0, time.UTC)
	b := time.Date(2026, 2, 15, 0, 1, 0, 0, time.UTC)
	assert.Equal(t, 45, DaysBetween(a, b))
	assert.Equal(t, -45, DaysBetween(b, a))
	assert.Equal(t, 0, DaysBetween(a, a))
}

func TestAddMonthsClampsToMonthEnd(t *testing.T) {
	tests := []struct {
		name     string
		start    string
		months   int
		expected string
	}{
		{name: "regular month", start: "2026-01-15", months: 1, expected: "2026-02-15"},
		{name: "jan 31 to feb", start: "2026-01-31", months: 1, expected: "2026-02-28"},
		{name: "leap february", start: "2028-01-31", months: 1, expected: "2028-02-29"},
		{name: "year rollover", start: "2026-11-30", months: 3, expected: "2027-02-28"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, err := ParseDate(tt.start)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, FormatDate(AddMonths(start, tt.months)))
		})
	}
}

func TestConsecutiveNumber(t *testing.T) {
	fecha := time.Date(2026, 8, 30, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "CR-202608-000001", ConsecutiveNumber("CR", fecha, 1))
	assert.Equal(t, "REC-202608-001234", ConsecutiveNumber("REC", fecha, 1234))
}
