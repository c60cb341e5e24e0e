package agenda

import (
	"errors"
	"fmt"
	"time"

	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// maxExpandDays is a safety cap so a malformed multi-year range cannot blow
// up a single projection call.
const maxExpandDays = 366

// Default colors used when the source record carries none. Events bring
// their own color; everything else gets a per-kind default.
const (
	ticketColor       = "#f59e0b"
	defaultEventColor = "#3b82f6"
	holidayColor      = "#dc2626"
	vacationColor     = "#16a34a"
)

// dateOnly strips the time-of-day, returning midnight of the same calendar
// day in loc. Comparing and iterating on these values avoids off-by-one day
// counts from time-of-day or timezone drift.
func dateOnly(t time.Time, loc *time.Location) time.Time {
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}

// itemID derives a projection-unique id for one expanded day of a source
// record: "<sourceID>-<dayEpochMillis>".
func itemID(sourceID string, day time.Time) string {
	return fmt.Sprintf("%s-%d", sourceID, day.UnixMilli())
}

// ExpandTicket projects a ticket onto its request day. Tickets are
// single-day by design.
func ExpandTicket(t model.Ticket, loc *time.Location) []model.CalendarItem {
	day := dateOnly(t.RequestDate, loc)
	return []model.CalendarItem{{
		ID:       itemID(t.ID, day),
		Title:    t.Title,
		Date:     day,
		Kind:     model.KindTicket,
		Color:    ticketColor,
		SourceID: t.ID,
		Source:   t,
	}}
}

// ExpandEvent projects an event onto its start day. EndDate is deliberately
// ignored for placement: events are anchored to a start moment, unlike
// holidays, which cover every day of their range.
func ExpandEvent(e model.Event, loc *time.Location) []model.CalendarItem {
	day := dateOnly(e.StartDate, loc)
	color := e.Color
	if color == "" {
		color = defaultEventColor
	}
	return []model.CalendarItem{{
		ID:       itemID(e.ID, day),
		Title:    e.Title,
		Date:     day,
		Kind:     model.KindEvent,
		Color:    color,
		AllDay:   e.AllDay,
		SourceID: e.ID,
		Source:   e,
	}}
}

// ExpandHoliday projects a holiday or absence onto every day of its
// inclusive [StartDate, EndDate] range, one item per day. A zero EndDate
// collapses the range to the start day. A range ending before it starts
// yields no items at all: upstream data is imperfect and a broken record
// must not take down the whole view.
func ExpandHoliday(h model.Holiday, loc *time.Location) []model.CalendarItem {
	start := dateOnly(h.StartDate, loc)
	end := start
	if !h.EndDate.IsZero() {
		end = dateOnly(h.EndDate, loc)
	}

	if end.Before(start) {
		appLog.Debug("agenda: dropping holiday with inverted range",
			"id", h.ID,
			"start", start.Format("2006-01-02"),
			"end", end.Format("2006-01-02"),
		)
		return nil
	}

	kind := h.Kind()
	color := holidayColor
	if kind == model.KindVacation {
		color = vacationColor
	}

	items := make([]model.CalendarItem, 0, 1)
	for day := start; !day.After(end); day = day.AddDate(0, 0, 1) {
		items = append(items, model.CalendarItem{
			ID:       itemID(h.ID, day),
			Title:    h.Name,
			Date:     day,
			Kind:     kind,
			Color:    color,
			AllDay:   true,
			SourceID: h.ID,
			Source:   h,
		})
		if len(items) >= maxExpandDays {
			appLog.Error("agenda: holiday expansion hit day cap",
				errors.New("max expansion days reached"),
				"id", h.ID, "cap", maxExpandDays)
			break
		}
	}
	return items
}
