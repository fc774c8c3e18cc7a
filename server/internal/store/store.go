package store

import (
	"sync"
	"time"

	"github.com/sensordash/sensordash/pkg/types"
	"github.com/sensordash/sensordash/server/internal/status"
)

// Entry is one published evaluated list with its roll-up.
// Entries are never modified after Put.
type Entry struct {
	Sensors []types.EvaluatedSensor
	Summary status.Summary

	// UpdatedAt is the capture time of the snapshot the list was evaluated from.
	UpdatedAt time.Time
}

// Store is a thread-safe single slot holding the latest evaluated list.
// Every Put fully replaces the previous entry.
type Store struct {
	mu         sync.RWMutex
	latest     *Entry
	staleAfter time.Duration
	now        func() time.Time // injectable for deterministic tests
}

// New creates an empty Store. Entries older than staleAfter are reported
// stale; zero disables staleness.
func New(staleAfter time.Duration) *Store {
	return &Store{
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// Put replaces the slot with sensors captured at updatedAt.
// Callers must not modify sensors after calling Put.
func (s *Store) Put(sensors []types.EvaluatedSensor, updatedAt time.Time) *Entry {
	e := &Entry{
		Sensors:   sensors,
		Summary:   status.Summarize(sensors),
		UpdatedAt: updatedAt,
	}
	s.mu.Lock()
	s.latest = e
	s.mu.Unlock()
	return e
}

// Latest returns the current entry and whether one has been stored yet.
func (s *Store) Latest() (*Entry, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest, s.latest != nil
}

// Get returns the evaluated sensor with the given channel id from the
// current entry.
func (s *Store) Get(id string) (types.EvaluatedSensor, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil {
		return types.EvaluatedSensor{}, false
	}
	for _, es := range s.latest.Sensors {
		if es.ID == id {
			return es, true
		}
	}
	return types.EvaluatedSensor{}, false
}

// Stale reports whether the current entry is older than the stale threshold.
// An empty store is not stale. Stale entries are still served.
func (s *Store) Stale() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.latest == nil || s.staleAfter <= 0 {
		return false
	}
	return s.now().Sub(s.latest.UpdatedAt) > s.staleAfter
}

// SetStaleAfter changes the stale threshold.
func (s *Store) SetStaleAfter(d time.Duration) {
	s.mu.Lock()
	s.staleAfter = d
	s.mu.Unlock()
}
