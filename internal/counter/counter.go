// Package counter tracks the number of active subscribers per session.
// The count gates segment processing: a session at zero does no pipeline
// work at all.
package counter

import (
	"log/slog"
	"sync"
	"sync/atomic"
)

// Store holds one atomic counter per session. All mutation happens through
// atomic operations on the shared counter, never a caller-side
// read-modify-write.
type Store struct {
	counters sync.Map // sessionID -> *atomic.Int64
	log      *slog.Logger
}

func NewStore(log *slog.Logger) *Store {
	return &Store{log: log.With(slog.String("component", "subscriber-counter"))}
}

func (s *Store) counter(sessionID string) *atomic.Int64 {
	if c, ok := s.counters.Load(sessionID); ok {
		return c.(*atomic.Int64)
	}
	c, _ := s.counters.LoadOrStore(sessionID, &atomic.Int64{})
	return c.(*atomic.Int64)
}

// Increment adds one subscriber to the session and returns the new count.
func (s *Store) Increment(sessionID string) int64 {
	return s.counter(sessionID).Add(1)
}

// Decrement removes one subscriber from the session and returns the new
// count. The count never goes below zero; an attempt to do so is logged as
// an anomaly and ignored.
func (s *Store) Decrement(sessionID string) int64 {
	c := s.counter(sessionID)
	for {
		current := c.Load()
		if current <= 0 {
			s.log.Warn("decrement below zero ignored", slog.String("session_id", sessionID))
			return 0
		}
		if c.CompareAndSwap(current, current-1) {
			return current - 1
		}
	}
}

// Get returns the current count. It is a plain read used only as a gate.
func (s *Store) Get(sessionID string) int64 {
	if c, ok := s.counters.Load(sessionID); ok {
		return c.(*atomic.Int64).Load()
	}
	return 0
}

// Remove drops the session's counter entirely. Called when the session ends.
func (s *Store) Remove(sessionID string) {
	s.counters.Delete(sessionID)
}
