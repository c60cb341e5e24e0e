package model

import "time"

// Kind discriminates the source entity type of a projected calendar item.
type Kind string

const (
	KindTicket   Kind = "ticket"
	KindEvent    Kind = "event"
	KindHoliday  Kind = "holiday"
	KindVacation Kind = "vacation"
)

// TicketStatusFinished is the terminal ticket status. Finished tickets are
// never projected into calendar views.
const TicketStatusFinished = "Finished"

// HolidayTypePublic marks an organization-wide holiday record; any other
// Type value (typically "Vacation") is treated as a personal absence.
const HolidayTypePublic = "Holiday"

// Ticket is a service-desk ticket as supplied by the backend data service.
// A ticket occupies a single calendar day, keyed by RequestDate.
type Ticket struct {
	ID           string
	Title        string
	Status       string
	RequestDate  time.Time
	TechnicianID string // empty if unassigned
	TeamID       string // empty if not team-scoped
}

// Terminal reports whether the ticket has reached its terminal status.
func (t Ticket) Terminal() bool {
	return t.Status == TicketStatusFinished
}

// Event is a manual calendar entry (task, meeting) created by a collaborator.
//
// EndDate is informational only: events are anchored to StartDate for grid
// placement and are never range-expanded. Holidays behave differently on
// purpose; see Holiday.
type Event struct {
	ID        string
	Title     string
	StartDate time.Time
	EndDate   time.Time // zero if unset; not used for placement
	AllDay    bool
	Color     string
	Private   bool
	TeamID    string // empty if not team-scoped
	CreatedBy string
}

// Holiday covers both public holidays and personal absences, distinguished
// by Type. Every day in [StartDate, EndDate] inclusive produces a separate
// projected item; a zero EndDate collapses the range to StartDate alone.
type Holiday struct {
	ID        string
	Name      string
	StartDate time.Time
	EndDate   time.Time // zero means single-day
	Type      string
}

// Kind maps the holiday's Type tag onto a projection kind.
func (h Holiday) Kind() Kind {
	if h.Type == HolidayTypePublic {
		return KindHoliday
	}
	return KindVacation
}

// Viewer is the identity on whose behalf a projection is computed, as
// supplied by the external session subsystem.
type Viewer struct {
	ID      string
	TeamIDs []string
}

// InTeam reports whether the viewer belongs to the given team. An empty
// team id never matches.
func (v Viewer) InTeam(teamID string) bool {
	if teamID == "" {
		return false
	}
	for _, id := range v.TeamIDs {
		if id == teamID {
			return true
		}
	}
	return false
}

// CalendarItem is a derived, single-day display record. Multi-day source
// records are expanded into one item per covered day; ID stays unique across
// the expansion because it embeds the day's epoch milliseconds.
type CalendarItem struct {
	ID       string
	Title    string
	Date     time.Time // midnight in the display location
	Kind     Kind
	Color    string
	AllDay   bool
	SourceID string
	Source   any // original record, for click-through navigation only
}
