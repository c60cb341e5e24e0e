// Package store holds the in-memory snapshot of backend collections that
// month projections are computed from. The snapshot is refreshed by cron
// and on demand when it goes stale; request handlers only ever read it.
package store

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	appLog "deskcal/internal/log"
	"deskcal/internal/model"
)

// DataClient reads the three source collections from the backend data
// service.
type DataClient interface {
	Tickets(ctx context.Context) ([]model.Ticket, error)
	Events(ctx context.Context) ([]model.Event, error)
	Holidays(ctx context.Context) ([]model.Holiday, error)
}

// FeedLoader supplies holiday records from subscribed ICS feeds for a time
// window. May be nil when no feeds are configured.
type FeedLoader func(ctx context.Context, rangeStart, rangeEnd time.Time) ([]model.Holiday, []error)

// Snapshot is one consistent read of all source collections. Consumers
// must treat the slices as read-only.
type Snapshot struct {
	Tickets     []model.Ticket
	Events      []model.Event
	Holidays    []model.Holiday
	RefreshedAt time.Time
}

// Store caches the latest Snapshot behind a RWMutex.
type Store struct {
	client    DataClient
	loadFeeds FeedLoader

	mu   sync.RWMutex
	snap Snapshot
}

// New creates a Store. loadFeeds may be nil.
func New(client DataClient, loadFeeds FeedLoader) *Store {
	return &Store{
		client:    client,
		loadFeeds: loadFeeds,
	}
}

// Snapshot returns the current snapshot. The zero Snapshot (RefreshedAt
// zero) means no refresh has succeeded yet.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Stale reports whether the snapshot is older than ttl (or was never
// populated).
func (s *Store) Stale(ttl time.Duration) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.snap.RefreshedAt.IsZero() {
		return true
	}
	return time.Since(s.snap.RefreshedAt) > ttl
}

// EnsureFresh refreshes the snapshot if it is stale. A refresh failure with
// a previously populated snapshot is logged and the stale data stays in
// service.
func (s *Store) EnsureFresh(ctx context.Context, ttl time.Duration) error {
	if !s.Stale(ttl) {
		return nil
	}
	if err := s.Refresh(ctx); err != nil {
		if s.Snapshot().RefreshedAt.IsZero() {
			return err
		}
		appLog.Error("store: refresh failed, serving stale snapshot", err)
	}
	return nil
}

// Refresh fetches all collections and swaps in a new snapshot. Collections
// that fail to fetch keep their previous contents so one broken upstream
// endpoint does not blank the others. The returned error aggregates all
// sub-failures.
func (s *Store) Refresh(ctx context.Context) error {
	started := time.Now()
	prev := s.Snapshot()
	next := Snapshot{RefreshedAt: started}

	var errs []error
	fetchFailures := 0

	if tickets, err := s.client.Tickets(ctx); err != nil {
		errs = append(errs, err)
		fetchFailures++
		next.Tickets = prev.Tickets
	} else {
		next.Tickets = tickets
	}

	if events, err := s.client.Events(ctx); err != nil {
		errs = append(errs, err)
		fetchFailures++
		next.Events = prev.Events
	} else {
		next.Events = events
	}

	holidays, herr := s.client.Holidays(ctx)
	if herr != nil {
		errs = append(errs, herr)
		fetchFailures++
		holidays = prev.Holidays
	}

	if fetchFailures == 3 {
		// Nothing fetched at all; keep the previous snapshot and its
		// timestamp so staleness checks keep retrying.
		return aggregate(errs)
	}

	if s.loadFeeds != nil && herr == nil {
		// Expand feed recurrences from the start of last year through the
		// end of next year; views outside that window rely on backend
		// holidays alone.
		now := started
		rangeStart := time.Date(now.Year()-1, time.January, 1, 0, 0, 0, 0, time.UTC)
		rangeEnd := time.Date(now.Year()+1, time.December, 31, 0, 0, 0, 0, time.UTC)

		feedHolidays, feedErrs := s.loadFeeds(ctx, rangeStart, rangeEnd)
		errs = append(errs, feedErrs...)
		holidays = append(holidays, feedHolidays...)
	}
	next.Holidays = holidays

	s.mu.Lock()
	s.snap = next
	s.mu.Unlock()

	appLog.Info("store: snapshot refreshed",
		"tickets", len(next.Tickets),
		"events", len(next.Events),
		"holidays", len(next.Holidays),
		"took_ms", time.Since(started).Milliseconds(),
		"errors", len(errs),
	)

	return aggregate(errs)
}

func aggregate(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	var b strings.Builder
	for i, e := range errs {
		if i > 0 {
			b.WriteString("; ")
		}
		b.WriteString(e.Error())
	}
	return errors.New(b.String())
}
