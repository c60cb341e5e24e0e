// Package web exposes the month projection over HTTP for the dashboard
// frontend. Endpoints:
//
//	GET  /health       liveness, always unauthenticated
//	GET  /api/month    bucketed month grid for a viewer
//	GET  /api/agenda   flat merged item list for a viewer (list view)
//	POST /api/refresh  force a snapshot refresh
package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"deskcal/internal/agenda"
	"deskcal/internal/config"
	appLog "deskcal/internal/log"
	"deskcal/internal/model"
	"deskcal/internal/store"
)

// SnapshotSource is the store surface the server needs.
type SnapshotSource interface {
	EnsureFresh(ctx context.Context, ttl time.Duration) error
	Snapshot() store.Snapshot
	Refresh(ctx context.Context) error
}

// Server provides the HTTP API over a snapshot source.
type Server struct {
	cfg   *config.Config
	store SnapshotSource
	mux   *http.ServeMux
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config, st SnapshotSource) *Server {
	s := &Server{
		cfg:   cfg,
		store: st,
		mux:   http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the fully wrapped http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		h = s.basicAuthMiddleware(h)
	}
	return requestIDMiddleware(h)
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/month", s.handleMonth)
	s.mux.HandleFunc("/api/agenda", s.handleAgenda)
	s.mux.HandleFunc("/api/refresh", s.handleRefresh)
}

// requestIDMiddleware tags every request with an id for log correlation.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get("X-Request-Id")
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set("X-Request-Id", id)

		started := time.Now()
		next.ServeHTTP(w, r)
		appLog.Debug("http request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"took_ms", time.Since(started).Milliseconds(),
		)
	})
}

func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password counts as disabled.
	return s.cfg.BasicAuth.Username != "" && s.cfg.BasicAuth.Password != ""
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="deskcal", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// itemDTO is a JSON-friendly view of a projected calendar item. SourceID
// plus Kind is what the frontend needs to navigate to the entity's detail
// view on click.
type itemDTO struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Date     string `json:"date"` // YYYY-MM-DD
	Kind     string `json:"kind"`
	Color    string `json:"color"`
	AllDay   bool   `json:"all_day"`
	SourceID string `json:"source_id"`
}

// monthResponse is the JSON response shape for /api/month. Month is
// 1-indexed (January = 1).
type monthResponse struct {
	Year             int               `json:"year"`
	Month            int               `json:"month"`
	WeekStart        string            `json:"week_start"`
	LeadingBlankDays int               `json:"leading_blank_days"`
	DaysInMonth      int               `json:"days_in_month"`
	Days             map[int][]itemDTO `json:"days"`
	RefreshedAt      time.Time         `json:"refreshed_at"`
}

// agendaResponse is the JSON response shape for /api/agenda.
type agendaResponse struct {
	Year        int       `json:"year"`
	Month       int       `json:"month"`
	Items       []itemDTO `json:"items"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

type refreshResponse struct {
	Tickets     int       `json:"tickets"`
	Events      int       `json:"events"`
	Holidays    int       `json:"holidays"`
	RefreshedAt time.Time `json:"refreshed_at"`
}

// handleMonth returns the bucketed month view for the requesting viewer.
//
// GET /api/month?year=2024&month=3&scope=all
//
// Viewer identity comes from the session layer in front of this service via
// the X-Viewer-Id and X-Viewer-Teams (comma-separated) headers, with
// "viewer"/"teams" query parameters as a development fallback.
func (s *Server) handleMonth(w http.ResponseWriter, r *http.Request) {
	view, snap, ok := s.buildView(w, r)
	if !ok {
		return
	}

	days := make(map[int][]itemDTO, len(view.ByDay))
	for d, items := range view.ByDay {
		days[d] = toDTOs(items)
	}

	writeJSON(w, http.StatusOK, monthResponse{
		Year:             view.Year,
		Month:            int(view.Month),
		WeekStart:        s.cfg.WeekStart,
		LeadingBlankDays: view.LeadingBlankDays,
		DaysInMonth:      view.DaysInMonth,
		Days:             days,
		RefreshedAt:      snap.RefreshedAt,
	})
}

// handleAgenda returns the flat merged item list for list-style rendering.
func (s *Server) handleAgenda(w http.ResponseWriter, r *http.Request) {
	view, snap, ok := s.buildView(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, agendaResponse{
		Year:        view.Year,
		Month:       int(view.Month),
		Items:       toDTOs(view.Items),
		RefreshedAt: snap.RefreshedAt,
	})
}

// handleRefresh forces a snapshot refresh, bypassing the TTL.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "POST required")
		return
	}

	if err := s.store.Refresh(r.Context()); err != nil {
		appLog.Error("api refresh failed", err)
		// Partial failures still updated what they could; report the
		// snapshot we have.
	}

	snap := s.store.Snapshot()
	writeJSON(w, http.StatusOK, refreshResponse{
		Tickets:     len(snap.Tickets),
		Events:      len(snap.Events),
		Holidays:    len(snap.Holidays),
		RefreshedAt: snap.RefreshedAt,
	})
}

// buildView parses the shared request parameters, freshens the snapshot and
// runs the projection. On failure it writes the error response itself and
// returns ok=false.
func (s *Server) buildView(w http.ResponseWriter, r *http.Request) (agenda.MonthView, store.Snapshot, bool) {
	loc := s.cfg.Location()
	now := time.Now().In(loc)

	q := r.URL.Query()
	year := parseIntDefault(q.Get("year"), now.Year())
	monthNum := parseIntDefault(q.Get("month"), int(now.Month()))
	if monthNum < 1 || monthNum > 12 {
		writeError(w, http.StatusBadRequest, "month must be between 1 and 12")
		return agenda.MonthView{}, store.Snapshot{}, false
	}

	viewer := viewerFromRequest(r)
	scope := agenda.ParseScope(q.Get("scope"))

	if err := s.store.EnsureFresh(r.Context(), s.cfg.SnapshotTTL()); err != nil {
		appLog.Error("api: snapshot refresh failed", err)
		writeError(w, http.StatusBadGateway, "backend data unavailable")
		return agenda.MonthView{}, store.Snapshot{}, false
	}
	snap := s.store.Snapshot()

	view := agenda.BuildMonthView(
		snap.Tickets, snap.Events, snap.Holidays,
		viewer, year, time.Month(monthNum),
		agenda.Options{
			Location:  loc,
			WeekStart: s.cfg.FirstWeekday(),
			Scope:     scope,
		},
	)
	return view, snap, true
}

// viewerFromRequest extracts the viewer identity supplied by the session
// layer.
func viewerFromRequest(r *http.Request) model.Viewer {
	id := r.Header.Get("X-Viewer-Id")
	teams := r.Header.Get("X-Viewer-Teams")
	if id == "" {
		id = r.URL.Query().Get("viewer")
	}
	if teams == "" {
		teams = r.URL.Query().Get("teams")
	}

	v := model.Viewer{ID: id}
	for _, t := range strings.Split(teams, ",") {
		if t = strings.TrimSpace(t); t != "" {
			v.TeamIDs = append(v.TeamIDs, t)
		}
	}
	return v
}

func toDTOs(items []model.CalendarItem) []itemDTO {
	out := make([]itemDTO, 0, len(items))
	for _, it := range items {
		out = append(out, itemDTO{
			ID:       it.ID,
			Title:    it.Title,
			Date:     it.Date.Format("2006-01-02"),
			Kind:     string(it.Kind),
			Color:    it.Color,
			AllDay:   it.AllDay,
			SourceID: it.SourceID,
		})
	}
	return out
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
