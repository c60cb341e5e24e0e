package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"deskcal/internal/model"
)

// --- Mock data client ---

type mockClient struct {
	tickets  []model.Ticket
	events   []model.Event
	holidays []model.Holiday

	ticketsErr  error
	eventsErr   error
	holidaysErr error

	calls int
}

func (m *mockClient) Tickets(_ context.Context) ([]model.Ticket, error) {
	m.calls++
	return m.tickets, m.ticketsErr
}

func (m *mockClient) Events(_ context.Context) ([]model.Event, error) {
	return m.events, m.eventsErr
}

func (m *mockClient) Holidays(_ context.Context) ([]model.Holiday, error) {
	return m.holidays, m.holidaysErr
}

func TestRefresh_MergesBackendAndFeedHolidays(t *testing.T) {
	client := &mockClient{
		tickets:  []model.Ticket{{ID: "t1"}},
		events:   []model.Event{{ID: "e1"}},
		holidays: []model.Holiday{{ID: "h1"}},
	}
	loadFeeds := func(_ context.Context, rangeStart, rangeEnd time.Time) ([]model.Holiday, []error) {
		assert.True(t, rangeEnd.After(rangeStart))
		return []model.Holiday{{ID: "feed-1"}}, nil
	}

	s := New(client, loadFeeds)
	require.NoError(t, s.Refresh(context.Background()))

	snap := s.Snapshot()
	assert.Len(t, snap.Tickets, 1)
	assert.Len(t, snap.Events, 1)
	require.Len(t, snap.Holidays, 2)
	assert.Equal(t, "h1", snap.Holidays[0].ID)
	assert.Equal(t, "feed-1", snap.Holidays[1].ID)
	assert.False(t, snap.RefreshedAt.IsZero())
}

func TestRefresh_KeepsPreviousCollectionOnFailure(t *testing.T) {
	client := &mockClient{
		tickets: []model.Ticket{{ID: "t1"}},
	}
	s := New(client, nil)
	require.NoError(t, s.Refresh(context.Background()))

	client.ticketsErr = errors.New("backend down")
	err := s.Refresh(context.Background())
	assert.Error(t, err)

	// The previously fetched tickets survive the failed refresh.
	snap := s.Snapshot()
	require.Len(t, snap.Tickets, 1)
	assert.Equal(t, "t1", snap.Tickets[0].ID)
}

func TestRefresh_AggregatesErrors(t *testing.T) {
	client := &mockClient{
		ticketsErr:  errors.New("tickets down"),
		holidaysErr: errors.New("holidays down"),
	}
	s := New(client, nil)

	err := s.Refresh(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tickets down")
	assert.Contains(t, err.Error(), "holidays down")
}

func TestStaleAndEnsureFresh(t *testing.T) {
	client := &mockClient{}
	s := New(client, nil)

	assert.True(t, s.Stale(time.Hour), "empty store must be stale")

	require.NoError(t, s.EnsureFresh(context.Background(), time.Hour))
	assert.Equal(t, 1, client.calls)
	assert.False(t, s.Stale(time.Hour))

	// Fresh snapshot: no second fetch.
	require.NoError(t, s.EnsureFresh(context.Background(), time.Hour))
	assert.Equal(t, 1, client.calls)
}

func TestEnsureFresh_FailureWithoutSnapshotPropagates(t *testing.T) {
	client := &mockClient{
		ticketsErr:  errors.New("down"),
		eventsErr:   errors.New("down"),
		holidaysErr: errors.New("down"),
	}
	s := New(client, nil)

	err := s.EnsureFresh(context.Background(), time.Hour)
	assert.Error(t, err)
	assert.True(t, s.Stale(time.Hour), "fully failed refresh must stay stale")
}
