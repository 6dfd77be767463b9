// Package history debounces alerts: a key that was alerted recently is not
// alerted again until its TTL has passed.
package history

import (
	"maps"
	"slices"
	"time"
)

// DefaultTTL is the debounce window for a single key.
const DefaultTTL = 6000 * time.Millisecond

// Store maps debounce keys to the time they were last alerted.
//
// Store is not safe for concurrent use; it is owned by the engine actor.
type Store struct {
	ttl  time.Duration
	last map[string]time.Time
}

// NewStore creates an empty store. A non-positive ttl selects DefaultTTL.
func NewStore(ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{
		ttl:  ttl,
		last: make(map[string]time.Time),
	}
}

// TTL returns the debounce window.
func (s *Store) TTL() time.Duration {
	return s.ttl
}

// ShouldAlert reports whether key was never recorded or its last alert is
// strictly older than the TTL at now. It does not record anything.
func (s *Store) ShouldAlert(key string, now time.Time) bool {
	last, ok := s.last[key]
	return !ok || s.expired(last, now)
}

// RecordAlert marks key as alerted at now.
func (s *Store) RecordAlert(key string, now time.Time) {
	s.last[key] = now
}

// LastAlert returns when key was last recorded.
func (s *Store) LastAlert(key string) (time.Time, bool) {
	t, ok := s.last[key]
	return t, ok
}

// EvictExpired drops every key whose TTL has passed and returns how many
// were removed.
func (s *Store) EvictExpired(now time.Time) int {
	n := 0
	for key, last := range s.last {
		if s.expired(last, now) {
			delete(s.last, key)
			n++
		}
	}
	return n
}

// Len returns the number of tracked keys.
func (s *Store) Len() int {
	return len(s.last)
}

// Keys returns the tracked keys in sorted order.
func (s *Store) Keys() []string {
	return slices.Sorted(maps.Keys(s.last))
}

// Reset forgets every key.
func (s *Store) Reset() {
	clear(s.last)
}

func (s *Store) expired(last, now time.Time) bool {
	return now.Sub(last) > s.ttl
}
