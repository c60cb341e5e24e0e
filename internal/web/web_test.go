package web

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskcal/internal/config"
	"deskcal/internal/model"
	"deskcal/internal/store"
)

// stubStore serves a fixed snapshot.
type stubStore struct {
	snap     store.Snapshot
	refreshs int
}

func (s *stubStore) EnsureFresh(context.Context, time.Duration) error { return nil }
func (s *stubStore) Snapshot() store.Snapshot                         { return s.snap }
func (s *stubStore) Refresh(context.Context) error {
	s.refreshs++
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.Timezone = "UTC"
	return cfg
}

func testSnapshot() store.Snapshot {
	day := time.Date(2024, time.March, 5, 0, 0, 0, 0, time.UTC)
	return store.Snapshot{
		Tickets: []model.Ticket{{
			ID: "t1", Title: "Printer jam", Status: "Open",
			RequestDate: day, TechnicianID: "U1",
		}},
		Events: []model.Event{{
			ID: "e1", Title: "1:1", StartDate: day,
			Private: true, CreatedBy: "U2",
		}},
		Holidays: []model.Holiday{{
			ID: "h1", Name: "Founders Day", StartDate: day,
			Type: model.HolidayTypePublic,
		}},
		RefreshedAt: time.Date(2024, time.March, 1, 12, 0, 0, 0, time.UTC),
	}
}

func doRequest(t *testing.T, srv *Server, req *http.Request) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHandleMonth_ProjectsForViewer(t *testing.T) {
	srv := NewServer(testConfig(), &stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/month?year=2024&month=3", nil)
	req.Header.Set("X-Viewer-Id", "U1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 2024, resp.Year)
	assert.Equal(t, 3, resp.Month)
	assert.Equal(t, 31, resp.DaysInMonth)
	assert.Equal(t, 5, resp.LeadingBlankDays) // 2024-03-01 is a Friday

	// U1 sees their ticket and the holiday, but not U2's private event.
	require.Len(t, resp.Days[5], 2)
	assert.Equal(t, "ticket", resp.Days[5][0].Kind)
	assert.Equal(t, "holiday", resp.Days[5][1].Kind)
	assert.Equal(t, "2024-03-05", resp.Days[5][0].Date)
	assert.Equal(t, "t1", resp.Days[5][0].SourceID)
}

func TestHandleMonth_ScopeFilter(t *testing.T) {
	srv := NewServer(testConfig(), &stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/month?year=2024&month=3&scope=holidays", nil)
	req.Header.Set("X-Viewer-Id", "U1")
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp monthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Days[5], 1)
	assert.Equal(t, "holiday", resp.Days[5][0].Kind)
}

func TestHandleMonth_InvalidMonth(t *testing.T) {
	srv := NewServer(testConfig(), &stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/month?year=2024&month=13", nil)
	rec := doRequest(t, srv, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleAgenda_FlatList(t *testing.T) {
	srv := NewServer(testConfig(), &stubStore{snap: testSnapshot()})

	req := httptest.NewRequest(http.MethodGet, "/api/agenda?year=2024&month=3&viewer=U2", nil)
	rec := doRequest(t, srv, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp agendaResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	// U2 sees their own private event and the holiday, not U1's ticket.
	require.Len(t, resp.Items, 2)
	assert.Equal(t, "event", resp.Items[0].Kind)
	assert.Equal(t, "holiday", resp.Items[1].Kind)
}

func TestHandleRefresh(t *testing.T) {
	st := &stubStore{snap: testSnapshot()}
	srv := NewServer(testConfig(), st)

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/refresh", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, 0, st.refreshs)

	rec = doRequest(t, srv, httptest.NewRequest(http.MethodPost, "/api/refresh", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, 1, st.refreshs)

	var resp refreshResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.Tickets)
}

func TestBasicAuth(t *testing.T) {
	cfg := testConfig()
	cfg.BasicAuth = &config.BasicAuthConfig{Username: "admin", Password: "pw"}
	srv := NewServer(cfg, &stubStore{snap: testSnapshot()})

	// /health stays open.
	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	// API requires credentials.
	rec = doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/api/month", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/api/month?year=2024&month=3", nil)
	req.SetBasicAuth("admin", "pw")
	rec = doRequest(t, srv, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequestIDHeader(t *testing.T) {
	srv := NewServer(testConfig(), &stubStore{snap: testSnapshot()})

	rec := doRequest(t, srv, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.NotEmpty(t, rec.Header().Get("X-Request-Id"))

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-Id", "abc-123")
	rec = doRequest(t, srv, req)
	assert.Equal(t, "abc-123", rec.Header().Get("X-Request-Id"))
}
