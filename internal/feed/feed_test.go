package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskcal/internal/model"
)

func ics(lines ...string) []byte {
	all := append([]string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//deskcal test//EN",
	}, lines...)
	all = append(all, "END:VCALENDAR")
	return []byte(strings.Join(all, "\r\n") + "\r\n")
}

func utc(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestParse_YearlyRecurrenceExpandsPerYear(t *testing.T) {
	body := ics(
		"BEGIN:VEVENT",
		"UID:newyear@feed",
		"SUMMARY:New Year's Day",
		"DTSTART;VALUE=DATE:20240101",
		"DTEND;VALUE=DATE:20240102",
		"RRULE:FREQ=YEARLY",
		"END:VEVENT",
	)

	hs, err := Parse(Source{ID: "test"}, body, utc(2024, time.January, 1), utc(2025, time.December, 31))
	require.NoError(t, err)
	require.Len(t, hs, 2)

	assert.Equal(t, "newyear@feed-2024", hs[0].ID)
	assert.Equal(t, "newyear@feed-2025", hs[1].ID)
	assert.Equal(t, utc(2024, time.January, 1), hs[0].StartDate)
	assert.Equal(t, utc(2025, time.January, 1), hs[1].StartDate)
	// One-day holiday: the exclusive DTEND collapses onto the start day.
	assert.Equal(t, hs[0].StartDate, hs[0].EndDate)
	assert.Equal(t, model.HolidayTypePublic, hs[0].Type)
	assert.Equal(t, "New Year's Day", hs[0].Name)
}

func TestParse_MultiDayExclusiveDTEND(t *testing.T) {
	body := ics(
		"BEGIN:VEVENT",
		"UID:christmas@feed",
		"SUMMARY:Christmas Break",
		"DTSTART;VALUE=DATE:20241224",
		"DTEND;VALUE=DATE:20241227",
		"END:VEVENT",
	)

	hs, err := Parse(Source{ID: "test"}, body, utc(2024, time.January, 1), utc(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, hs, 1)

	assert.Equal(t, "christmas@feed", hs[0].ID)
	assert.Equal(t, utc(2024, time.December, 24), hs[0].StartDate)
	assert.Equal(t, utc(2024, time.December, 26), hs[0].EndDate)
}

func TestParse_NonRecurringOutsideWindowExcluded(t *testing.T) {
	body := ics(
		"BEGIN:VEVENT",
		"UID:old@feed",
		"SUMMARY:Past holiday",
		"DTSTART;VALUE=DATE:20200101",
		"END:VEVENT",
	)

	hs, err := Parse(Source{ID: "test"}, body, utc(2024, time.January, 1), utc(2024, time.December, 31))
	require.NoError(t, err)
	assert.Empty(t, hs)
}

func TestParse_SkipsEventWithoutUID(t *testing.T) {
	body := ics(
		"BEGIN:VEVENT",
		"SUMMARY:No UID",
		"DTSTART;VALUE=DATE:20240601",
		"END:VEVENT",
		"BEGIN:VEVENT",
		"UID:good@feed",
		"SUMMARY:Good",
		"DTSTART;VALUE=DATE:20240601",
		"END:VEVENT",
	)

	hs, err := Parse(Source{ID: "test"}, body, utc(2024, time.January, 1), utc(2024, time.December, 31))
	require.NoError(t, err)
	require.Len(t, hs, 1)
	assert.Equal(t, "good@feed", hs[0].ID)
}

func TestParse_ExdateRemovesOccurrence(t *testing.T) {
	body := ics(
		"BEGIN:VEVENT",
		"UID:mayday@feed",
		"SUMMARY:May Day",
		"DTSTART;VALUE=DATE:20240501",
		"RRULE:FREQ=YEARLY",
		"EXDATE;VALUE=DATE:20250501",
		"END:VEVENT",
	)

	hs, err := Parse(Source{ID: "test"}, body, utc(2024, time.January, 1), utc(2026, time.December, 31))
	require.NoError(t, err)
	require.Len(t, hs, 2)
	assert.Equal(t, 2024, hs[0].StartDate.Year())
	assert.Equal(t, 2026, hs[1].StartDate.Year())
}

func TestParse_EmptyBodyAndInvertedRange(t *testing.T) {
	_, err := Parse(Source{ID: "test"}, nil, utc(2024, time.January, 1), utc(2024, time.December, 31))
	assert.Error(t, err)

	_, err = Parse(Source{ID: "test"}, ics(), utc(2024, time.December, 31), utc(2024, time.January, 1))
	assert.Error(t, err)
}
