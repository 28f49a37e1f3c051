// internal/session/store.go
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/common/metrics"
	"insurance-assistant/internal/models"
)

const (
	defaultTTL            = 30 * time.Minute
	defaultReaperInterval = time.Minute
)

// entry pairs one session with its own lock, so a mutator running on one
// conversation never stalls turns on another. evicted is a tombstone: once
// set, late writers see the session as gone instead of resurrecting it.
type entry struct {
	mu      sync.Mutex
	session *models.Session
	evicted bool
}

// Store keeps live sessions in memory, keyed by id. Sessions idle past the
// TTL are evicted by a background reaper and on access. All reads hand out
// clones; mutation goes through Update so concurrent turns on the same
// session merge instead of clobbering each other. The store lock only
// guards the index; session state is guarded per entry, and the two locks
// are never held together.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*entry
	ttl      time.Duration
	interval time.Duration
	logger   logger.Logger
}

// NewStore builds a store from configuration, falling back to defaults for
// unset durations.
func NewStore(cfg config.SessionConfig, log logger.Logger) *Store {
	ttl := time.Duration(cfg.TTL) * time.Millisecond
	if ttl <= 0 {
		ttl = defaultTTL
	}
	interval := time.Duration(cfg.ReaperInterval) * time.Millisecond
	if interval <= 0 {
		interval = defaultReaperInterval
	}
	return &Store{
		sessions: make(map[string]*entry),
		ttl:      ttl,
		interval: interval,
		logger:   log.WithFields(map[string]interface{}{"component": "session"}),
	}
}

func (s *Store) lookup(id string) (*entry, bool) {
	s.mu.RLock()
	e, ok := s.sessions[id]
	s.mu.RUnlock()
	return e, ok
}

// unlink removes a tombstoned entry from the index. The caller must have
// set evicted first, under the entry lock, so only one goroutine reaches
// here per entry.
func (s *Store) unlink(id string, e *entry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sessions[id] == e {
		delete(s.sessions, id)
		metrics.SessionsActive.Dec()
	}
}

// Acquire returns a clone of the session for id, minting a fresh session
// when id is empty, unknown, or expired. An unknown or expired id is not an
// error; the caller continues under the returned id. The live session's
// activity clock is bumped so an ongoing conversation never expires
// mid-dialogue.
func (s *Store) Acquire(id string) *models.Session {
	if id != "" {
		if clone := s.touch(id); clone != nil {
			return clone
		}
	}

	fresh := models.NewSession(uuid.New().String())
	s.mu.Lock()
	s.sessions[fresh.ID] = &entry{session: fresh}
	s.mu.Unlock()

	metrics.SessionsActive.Inc()
	s.logger.Debug("session created", map[string]interface{}{
		"sessionId": fresh.ID,
	})
	return fresh.Clone()
}

// touch bumps the activity clock and clones the live session for id,
// evicting it instead when the TTL has lapsed.
func (s *Store) touch(id string) *models.Session {
	e, ok := s.lookup(id)
	if !ok {
		return nil
	}

	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return nil
	}
	if e.session.IdleFor(s.ttl) {
		e.evicted = true
		e.mu.Unlock()
		s.unlink(id, e)
		metrics.SessionsEvicted.Inc()
		return nil
	}
	e.session.LastActivity = time.Now().UTC()
	clone := e.session.Clone()
	e.mu.Unlock()
	return clone
}

// Get returns a clone of the session for id. Expired sessions read as
// missing even before the reaper runs.
func (s *Store) Get(id string) (*models.Session, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted || e.session.IdleFor(s.ttl) {
		return nil, false
	}
	return e.session.Clone(), true
}

// Update applies mutate to the live session under that session's own lock
// and returns a clone of the result. Updates to different sessions proceed
// in parallel. When the session was evicted while the caller was off doing
// I/O, the update is discarded and ok is false.
func (s *Store) Update(id string, mutate func(*models.Session)) (*models.Session, bool) {
	e, ok := s.lookup(id)
	if !ok {
		return nil, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.evicted {
		return nil, false
	}
	mutate(e.session)
	e.session.LastActivity = time.Now().UTC()
	return e.session.Clone(), true
}

// Delete removes the session for id, reporting whether it existed.
func (s *Store) Delete(id string) bool {
	e, ok := s.lookup(id)
	if !ok {
		return false
	}

	e.mu.Lock()
	if e.evicted {
		e.mu.Unlock()
		return false
	}
	e.evicted = true
	e.mu.Unlock()

	s.unlink(id, e)
	return true
}

// Len returns the number of live sessions, expired ones included until the
// next reap.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// StartReaper launches the TTL sweep loop. It exits when ctx is canceled.
func (s *Store) StartReaper(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if evicted := s.reap(); evicted > 0 {
					s.logger.Info("evicted idle sessions", map[string]interface{}{
						"count": evicted,
					})
				}
			}
		}
	}()
}

// reap removes every session idle past the TTL and returns the count. The
// sweep works from an index snapshot so it never holds the store lock
// while waiting on an entry.
func (s *Store) reap() int {
	s.mu.RLock()
	entries := make(map[string]*entry, len(s.sessions))
	for id, e := range s.sessions {
		entries[id] = e
	}
	s.mu.RUnlock()

	evicted := 0
	for id, e := range entries {
		e.mu.Lock()
		idle := !e.evicted && e.session.IdleFor(s.ttl)
		if idle {
			e.evicted = true
		}
		e.mu.Unlock()

		if idle {
			s.unlink(id, e)
			metrics.SessionsEvicted.Inc()
			evicted++
		}
	}
	return evicted
}
