package agenda

import "deskcal/internal/model"

// Visibility rules decide whether a viewer may see a record in their
// calendar. Holidays and absences carry no rule on purpose: they are
// organization-wide.

// ticketVisible reports whether a ticket belongs in the viewer's calendar:
// either the viewer is the assigned technician, or the ticket is scoped to
// a team the viewer belongs to.
func ticketVisible(t model.Ticket, v model.Viewer) bool {
	if t.TechnicianID != "" && t.TechnicianID == v.ID {
		return true
	}
	return v.InTeam(t.TeamID)
}

// eventVisible reports whether a calendar event belongs in the viewer's
// calendar. The creator always sees their own events, private or not. Team
// members see team-scoped events. Events that are neither private nor
// team-scoped are public.
func eventVisible(e model.Event, v model.Viewer) bool {
	if e.CreatedBy != "" && e.CreatedBy == v.ID {
		return true
	}
	if v.InTeam(e.TeamID) {
		return true
	}
	return !e.Private && e.TeamID == ""
}
