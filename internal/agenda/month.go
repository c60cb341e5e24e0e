package agenda

import (
	"time"

	"deskcal/internal/model"
)

// MonthGrid is the day-indexed structure a calendar grid renders. Months are
// 1-indexed following time.Month.
type MonthGrid struct {
	Year  int
	Month time.Month

	// LeadingBlankDays is how many grid cells to pad before day 1 so that
	// day-of-week columns line up, relative to the configured first weekday.
	LeadingBlankDays int

	// DaysInMonth accounts for leap years via calendar arithmetic.
	DaysInMonth int

	// ByDay maps day-of-month to the items falling on that day, preserving
	// the insertion order of the merged input list. Days without items have
	// no entry.
	ByDay map[int][]model.CalendarItem
}

// DaysIn returns the number of days in the given month. Day 0 of the
// following month normalizes to the last day of this one.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// ProjectMonth buckets an already filtered and expanded item list by
// day-of-month for the target (year, month). Items dated outside the target
// month are ignored; no filtering beyond that happens here.
func ProjectMonth(items []model.CalendarItem, year int, month time.Month, weekStart time.Weekday) MonthGrid {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)

	grid := MonthGrid{
		Year:             year,
		Month:            month,
		LeadingBlankDays: (int(first.Weekday()) - int(weekStart) + 7) % 7,
		DaysInMonth:      DaysIn(year, month),
		ByDay:            make(map[int][]model.CalendarItem),
	}

	for _, it := range items {
		if it.Date.Year() != year || it.Date.Month() != month {
			continue
		}
		d := it.Date.Day()
		grid.ByDay[d] = append(grid.ByDay[d], it)
	}

	return grid
}
