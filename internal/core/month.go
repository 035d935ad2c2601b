package core

import (
	"fmt"
	"time"
)

// monthKeyLayout renders "Sep2025".
const monthKeyLayout = "Jan2006"

// Month is an explicit calendar month. History ordering uses it instead of
// comparing keys as strings.
type Month struct {
	Year  int
	Month time.Month
}

// MonthOf returns the calendar month containing t, in t's location.
func MonthOf(t time.Time) Month {
	return Month{Year: t.Year(), Month: t.Month()}
}

// Key renders the month in its storage form.
func (m Month) Key() MonthKey {
	return MonthKey(time.Date(m.Year, m.Month, 1, 0, 0, 0, 0, time.UTC).Format(monthKeyLayout))
}

// Before reports whether m is an earlier calendar month than o.
func (m Month) Before(o Month) bool {
	if m.Year != o.Year {
		return m.Year < o.Year
	}
	return m.Month < o.Month
}

func (m Month) String() string { return string(m.Key()) }

// ParseMonthKey parses a canonical key such as "Jan2026". Keys that do not
// round-trip exactly (wrong case, full month names, separators) are rejected.
func ParseMonthKey(k MonthKey) (Month, error) {
	t, err := time.Parse(monthKeyLayout, string(k))
	if err != nil {
		return Month{}, fmt.Errorf("%w %q", ErrInvalidMonthKey, k)
	}
	m := MonthOf(t)
	if m.Key() != k {
		return Month{}, fmt.Errorf("%w %q", ErrInvalidMonthKey, k)
	}
	return m, nil
}
