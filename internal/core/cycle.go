package core

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// CycleKey identifies a credit-card billing cycle by the month its payment
// is due, formatted "YYYY-MM". The statement for cycle "2026-02" closes in
// January and its payment falls due in February.
type CycleKey string

func (k CycleKey) String() string { return string(k) }

// Year and month of the key. Returns an error for malformed keys.
func (k CycleKey) Parse() (year int, month time.Month, err error) {
	parts := strings.SplitN(string(k), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("malformed cycle key %q", k)
	}
	y, err := strconv.Atoi(parts[0])
	if err != nil || y < 1 {
		return 0, 0, fmt.Errorf("malformed cycle key %q", k)
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 1 || m > 12 {
		return 0, 0, fmt.Errorf("malformed cycle key %q", k)
	}
	return y, time.Month(m), nil
}

// NewCycleKey builds a key for the given year and month.
func NewCycleKey(year int, month time.Month) CycleKey {
	return CycleKey(fmt.Sprintf("%04d-%02d", year, month))
}

// CurrentCycleKey returns the cycle a reference date falls into. Spending
// after the statement close day belongs to the next month's cycle.
func CurrentCycleKey(ref time.Time, statementCloseDay int) CycleKey {
	year, month, day := ref.Date()
	if day > clampDay(statementCloseDay, year, month) {
		month++
		if month > time.December {
			month = time.January
			year++
		}
	}
	return NewCycleKey(year, month)
}

// CycleDates returns the statement close and payment due dates for a cycle.
// The close date falls in the month before the cycle's name, the due date in
// the cycle's own month; both are clamped to the last day of their month when
// the configured day exceeds it (a close day of 31 in a "2026-02" cycle
// yields January 31; in a "2026-03" cycle it yields February 28).
func CycleDates(key CycleKey, statementCloseDay, paymentDueDay int) (closeDate, dueDate time.Time, err error) {
	year, month, err := key.Parse()
	if err != nil {
		return time.Time{}, time.Time{}, err
	}

	closeYear, closeMonth := year, month-1
	if closeMonth < time.January {
		closeMonth = time.December
		closeYear--
	}

	closeDate = time.Date(closeYear, closeMonth, clampDay(statementCloseDay, closeYear, closeMonth), 0, 0, 0, 0, time.UTC)
	dueDate = time.Date(year, month, clampDay(paymentDueDay, year, month), 0, 0, 0, 0, time.UTC)
	return closeDate, dueDate, nil
}

// clampDay limits a configured day-of-month to the last day of the given
// month, and raises non-positive days to 1.
func clampDay(day, year int, month time.Month) int {
	if day < 1 {
		return 1
	}
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
	if day > last {
		return last
	}
	return day
}
