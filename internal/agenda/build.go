package agenda

import (
	"time"

	"deskcal/internal/model"
)

// Scope restricts a projection to a subset of source kinds. This is a
// relevance optimization for the caller's filter control, not a correctness
// step: excluded kinds are skipped before any per-record work.
type Scope string

const (
	ScopeAll      Scope = "all"
	ScopeTickets  Scope = "tickets"
	ScopeTasks    Scope = "tasks"
	ScopeHolidays Scope = "holidays"
)

// ParseScope maps a caller-supplied filter string onto a Scope. Unknown
// values widen to ScopeAll rather than failing the request.
func ParseScope(s string) Scope {
	switch Scope(s) {
	case ScopeTickets, ScopeTasks, ScopeHolidays:
		return Scope(s)
	default:
		return ScopeAll
	}
}

// Options carries the projection parameters shared by every record.
type Options struct {
	// Location is the display timezone. Nil means time.Local.
	Location *time.Location

	// WeekStart is the first day of the week for grid alignment
	// (conventionally Sunday).
	WeekStart time.Weekday

	// Scope restricts which kinds are projected. Empty means ScopeAll.
	Scope Scope
}

// MonthView is the complete projection result: the bucketed grid plus the
// flat merged list for list-style rendering.
type MonthView struct {
	MonthGrid
	Items []model.CalendarItem
}

// BuildMonthView merges tickets, events and holidays into a single per-day
// projection for the viewer and target month. Pure and stateless: inputs are
// never mutated, and repeated calls with the same arguments produce the same
// view.
//
// Per kind the pipeline is: terminal-status filter (tickets only), then
// visibility, then day expansion. The merged list keeps kind-group order —
// tickets, then events, then holidays — which ByDay sub-lists inherit.
func BuildMonthView(
	tickets []model.Ticket,
	events []model.Event,
	holidays []model.Holiday,
	viewer model.Viewer,
	year int,
	month time.Month,
	opts Options,
) MonthView {
	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	scope := ParseScope(string(opts.Scope))

	items := make([]model.CalendarItem, 0, len(tickets)+len(events)+len(holidays))

	if scope == ScopeAll || scope == ScopeTickets {
		for _, t := range tickets {
			if t.Terminal() {
				continue
			}
			if !ticketVisible(t, viewer) {
				continue
			}
			items = append(items, ExpandTicket(t, loc)...)
		}
	}

	if scope == ScopeAll || scope == ScopeTasks {
		for _, e := range events {
			if !eventVisible(e, viewer) {
				continue
			}
			items = append(items, ExpandEvent(e, loc)...)
		}
	}

	if scope == ScopeAll || scope == ScopeHolidays {
		for _, h := range holidays {
			items = append(items, ExpandHoliday(h, loc)...)
		}
	}

	return MonthView{
		MonthGrid: ProjectMonth(items, year, month, opts.WeekStart),
		Items:     items,
	}
}
