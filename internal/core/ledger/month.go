// Package ledger contains the pure merge rules for per-month planning figures.
package ledger

import (
	"fmt"
	"regexp"
	"strconv"
	"time"
)

// MonthKey identifies a calendar month as "YYYY-MM".
type MonthKey string

var monthKeyPattern = regexp.MustCompile(`^\d{4}-(0[1-9]|1[0-2])$`)

// ParseMonthKey validates s and returns it as a MonthKey.
func ParseMonthKey(s string) (MonthKey, error) {
	if !monthKeyPattern.MatchString(s) {
		return "", fmt.Errorf("invalid month %q (expected YYYY-MM)", s)
	}
	return MonthKey(s), nil
}

// MonthOf returns the key for the month containing t.
func MonthOf(t time.Time) MonthKey {
	return MonthKey(t.Format("2006-01"))
}

// Valid reports whether m is well formed.
func (m MonthKey) Valid() bool {
	return monthKeyPattern.MatchString(string(m))
}

func (m MonthKey) String() string { return string(m) }

// Window returns the half-open interval [start, end) covered by m in loc.
func (m MonthKey) Window(loc *time.Location) (time.Time, time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	start, err := time.ParseInLocation("2006-01", string(m), loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid month %q: %w", m, err)
	}
	return start, start.AddDate(0, 1, 0), nil
}

// Next returns the following month. 9999-12 has no successor.
func (m MonthKey) Next() (MonthKey, error) {
	n, err := m.ordinal()
	if err != nil {
		return "", err
	}
	if n+1 > maxOrdinal {
		return "", fmt.Errorf("month %s has no successor", m)
	}
	return fromOrdinal(n + 1), nil
}

// maxOrdinal is the ordinal of 9999-12, the last four-digit month.
const maxOrdinal = 9999*12 + 11

// ordinal maps m to year*12 + (month-1).
func (m MonthKey) ordinal() (int, error) {
	if !m.Valid() {
		return 0, fmt.Errorf("invalid month %q (expected YYYY-MM)", string(m))
	}
	year, _ := strconv.Atoi(string(m[:4]))
	month, _ := strconv.Atoi(string(m[5:]))
	return year*12 + month - 1, nil
}

func fromOrdinal(n int) MonthKey {
	return MonthKey(fmt.Sprintf("%04d-%02d", n/12, n%12+1))
}

// MonthRange returns every month from first to last inclusive.
func MonthRange(first, last MonthKey) ([]MonthKey, error) {
	lo, err := first.ordinal()
	if err != nil {
		return nil, fmt.Errorf("invalid month range %q..%q", first, last)
	}
	hi, err := last.ordinal()
	if err != nil {
		return nil, fmt.Errorf("invalid month range %q..%q", first, last)
	}
	if hi < lo {
		return nil, fmt.Errorf("month range end %s is before start %s", last, first)
	}
	months := make([]MonthKey, 0, hi-lo+1)
	for n := lo; n <= hi; n++ {
		months = append(months, fromOrdinal(n))
	}
	return months, nil
}
