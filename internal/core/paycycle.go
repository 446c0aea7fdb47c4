package core

import "time"

// Pay cycles for income sources.
const (
	PayWeekly      PayCycle = "weekly"
	PayFortnightly PayCycle = "fortnightly"
	PayMonthly     PayCycle = "monthly"
	PayCustom      PayCycle = "custom"
)

type PayCycle string

// AdvancePayDate computes the next expected pay date after a pay landed on
// the given date. Weekly advances 7 days, fortnightly 14, monthly one
// calendar month with the day clamped to the target month's last day (a
// 31 January pay next lands on 28 February, not 3 March). Unknown cycles
// (including custom without a rule) default to monthly.
func AdvancePayDate(from time.Time, cycle PayCycle) time.Time {
	switch cycle {
	case PayWeekly:
		return from.AddDate(0, 0, 7)
	case PayFortnightly:
		return from.AddDate(0, 0, 14)
	default:
		year, month, day := from.Date()
		month++
		if month > time.December {
			month = time.January
			year++
		}
		hour, min, sec := from.Clock()
		return time.Date(year, month, clampDay(day, year, month), hour, min, sec, from.Nanosecond(), from.Location())
	}
}
