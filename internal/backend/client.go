package backend

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"deskcal/internal/httpcache"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// Client reads ticket, event and holiday collections from the remote
// backend data service. The backend owns all entity lifecycles; this client
// is read-only and relies on httpcache for conditional requests and
// stale-body fallback.
type Client struct {
	fetcher *httpcache.Fetcher
	baseURL string
	token   string
}

// New creates a backend client for baseURL. token, if non-empty, is sent as
// a bearer token on every request.
func New(fetcher *httpcache.Fetcher, baseURL, token string) *Client {
	return &Client{
		fetcher: fetcher,
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
	}
}

// ticketDTO mirrors the backend's ticket JSON.
type ticketDTO struct {
	ID           string `json:"id"`
	Title        string `json:"title"`
	Status       string `json:"status"`
	RequestDate  string `json:"request_date"`
	TechnicianID string `json:"technician_id"`
	TeamID       string `json:"team_id"`
}

// eventDTO mirrors the backend's calendar event JSON.
type eventDTO struct {
	ID        string `json:"id"`
	Title     string `json:"title"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	AllDay    bool   `json:"is_all_day"`
	Color     string `json:"color"`
	Private   bool   `json:"is_private"`
	TeamID    string `json:"team_id"`
	CreatedBy string `json:"created_by"`
}

// holidayDTO mirrors the backend's holiday/absence JSON.
type holidayDTO struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	StartDate string `json:"start_date"`
	EndDate   string `json:"end_date"`
	Type      string `json:"type"`
}

// Tickets fetches all tickets from the backend.
func (c *Client) Tickets(ctx context.Context) ([]model.Ticket, error) {
	var dtos []ticketDTO
	if err := c.getJSON(ctx, "/api/tickets", &dtos); err != nil {
		return nil, err
	}

	out := make([]model.Ticket, 0, len(dtos))
	for _, d := range dtos {
		reqDate, err := parseDate(d.RequestDate)
		if err != nil {
			// Imperfect upstream data: skip the record, keep the rest.
			appLog.Error("backend: skipping ticket with bad request_date", err, "id", d.ID)
			continue
		}
		out = append(out, model.Ticket{
			ID:           d.ID,
			Title:        d.Title,
			Status:       d.Status,
			RequestDate:  reqDate,
			TechnicianID: d.TechnicianID,
			TeamID:       d.TeamID,
		})
	}
	return out, nil
}

// Events fetches all manual calendar events from the backend.
func (c *Client) Events(ctx context.Context) ([]model.Event, error) {
	var dtos []eventDTO
	if err := c.getJSON(ctx, "/api/events", &dtos); err != nil {
		return nil, err
	}

	out := make([]model.Event, 0, len(dtos))
	for _, d := range dtos {
		start, err := parseDate(d.StartDate)
		if err != nil {
			appLog.Error("backend: skipping event with bad start_date", err, "id", d.ID)
			continue
		}
		end, _ := parseDate(d.EndDate) // optional; zero on absence or parse failure
		out = append(out, model.Event{
			ID:        d.ID,
			Title:     d.Title,
			StartDate: start,
			EndDate:   end,
			AllDay:    d.AllDay,
			Color:     d.Color,
			Private:   d.Private,
			TeamID:    d.TeamID,
			CreatedBy: d.CreatedBy,
		})
	}
	return out, nil
}

// Holidays fetches all holiday and absence records from the backend.
func (c *Client) Holidays(ctx context.Context) ([]model.Holiday, error) {
	var dtos []holidayDTO
	if err := c.getJSON(ctx, "/api/holidays", &dtos); err != nil {
		return nil, err
	}

	out := make([]model.Holiday, 0, len(dtos))
	for _, d := range dtos {
		start, err := parseDate(d.StartDate)
		if err != nil {
			appLog.Error("backend: skipping holiday with bad start_date", err, "id", d.ID)
			continue
		}
		end, _ := parseDate(d.EndDate)
		out = append(out, model.Holiday{
			ID:        d.ID,
			Name:      d.Name,
			StartDate: start,
			EndDate:   end,
			Type:      d.Type,
		})
	}
	return out, nil
}

func (c *Client) getJSON(ctx context.Context, path string, v any) error {
	if c.baseURL == "" {
		return errors.New("backend base URL is empty")
	}

	header := http.Header{}
	header.Set("Accept", "application/json")
	if c.token != "" {
		header.Set("Authorization", "Bearer "+c.token)
	}

	res, err := c.fetcher.Fetch(ctx, c.baseURL+path, header)
	if err != nil {
		return err
	}
	return json.Unmarshal(res.Body, v)
}

// parseDate accepts the backend's date forms: plain dates ("2006-01-02")
// and RFC 3339 timestamps. An empty string maps to the zero time, which the
// projection treats as "unset".
func parseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}
