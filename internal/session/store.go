package session

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// entry tracks one upload session. path is only set together with
// progress 100, under the same lock hold, so readers never observe a
// completed session without its storage path.
type entry struct {
	progress  int
	path      string
	updatedAt time.Time
}

// Store is the concurrent mapping from session id to upload progress and
// final storage path. It is the only shared in-memory mutable state in the
// process; it is created at startup, injected into the handlers that need
// it, and lives until shutdown.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
}

// NewStore creates a session store. Sessions idle for longer than ttl are
// dropped by the janitor started via StartJanitor; a zero ttl disables
// eviction.
func NewStore(ttl time.Duration) *Store {
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
	}
}

// Create registers a new session with progress 0. An existing session with
// the same id is reset and its prior storage path cleared, so a client may
// re-upload under the same id and restart tracking.
func (s *Store) Create(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = &entry{updatedAt: time.Now()}
}

// SetProgress records the current percentage for an existing session.
// Unknown ids are ignored.
func (s *Store) SetProgress(id string, pct int) {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return
	}
	e.progress = pct
	e.updatedAt = time.Now()
}

// SetComplete sets progress to 100 and records the storage path in a single
// critical section. A concurrent reader sees either the pre-completion or
// the post-completion state, never progress 100 without a path.
func (s *Store) SetComplete(id string, path string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.sessions[id]
	if !ok {
		return
	}
	e.progress = 100
	e.path = path
	e.updatedAt = time.Now()
}

// Progress returns the current percentage for id. The second return value
// reports whether the session exists.
func (s *Store) Progress(id string) (int, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok {
		return 0, false
	}
	return e.progress, true
}

// Path returns the final storage path for id. The second return value is
// false while the session is unknown or not yet complete.
func (s *Store) Path(id string) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.sessions[id]
	if !ok || e.path == "" {
		return "", false
	}
	return e.path, true
}

// Count returns the number of tracked sessions.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartJanitor launches a goroutine that periodically evicts sessions whose
// last update is older than the store TTL. It returns immediately; the
// goroutine stops when ctx is cancelled. No-op when eviction is disabled.
func (s *Store) StartJanitor(ctx context.Context, interval time.Duration) {
	if s.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n := s.evictStale(time.Now()); n > 0 {
					log.Debug().Int("evicted", n).Msg("expired upload sessions dropped")
				}
			}
		}
	}()
}

// evictStale removes sessions last touched before now minus the TTL and
// returns how many were dropped.
func (s *Store) evictStale(now time.Time) int {
	cutoff := now.Add(-s.ttl)
	s.mu.Lock()
	defer s.mu.Unlock()
	evicted := 0
	for id, e := range s.sessions {
		if e.updatedAt.Before(cutoff) {
			delete(s.sessions, id)
			evicted++
		}
	}
	return evicted
}
