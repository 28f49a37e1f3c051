// internal/session/store_test.go
package session

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"insurance-assistant/internal/common/config"
	"insurance-assistant/internal/common/logger"
	"insurance-assistant/internal/models"
)

// ==========================
// Test Helper Functions
// ==========================

func createTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(config.SessionConfig{
		TTL:            60_000,
		ReaperInterval: 60_000,
	}, logger.NewTestLogger(t))
}

// backdate shifts a live session's activity clock into the past. Tests run
// in-package so they can reach the live object directly.
func backdate(store *Store, id string, by time.Duration) {
	e, ok := store.lookup(id)
	if !ok {
		return
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.session.LastActivity = e.session.LastActivity.Add(-by)
}

// ==========================
// Core Functionality Tests
// ==========================

func TestStore_Acquire_MintsNewSession(t *testing.T) {
	store := createTestStore(t)

	sess := store.Acquire("")

	require.NotNil(t, sess)
	assert.Len(t, sess.ID, 36, "ids are uuids")
	assert.Equal(t, models.StateNew, sess.State)
	assert.NotNil(t, sess.CollectedEntities)
	assert.Equal(t, 1, store.Len())
}

func TestStore_Acquire_UnknownIDStartsFresh(t *testing.T) {
	store := createTestStore(t)

	sess := store.Acquire("never-created")

	require.NotNil(t, sess)
	assert.NotEqual(t, "never-created", sess.ID, "stale ids are not resurrected")
	assert.Equal(t, 1, store.Len())
}

func TestStore_Acquire_ReturnsExistingSession(t *testing.T) {
	store := createTestStore(t)
	first := store.Acquire("")

	_, ok := store.Update(first.ID, func(s *models.Session) {
		s.SetEntity("insurer", "Molina")
	})
	require.True(t, ok)

	second := store.Acquire(first.ID)

	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Molina", second.CollectedEntities["insurer"])
	assert.Equal(t, 1, store.Len())
}

func TestStore_Acquire_ExpiredSessionStartsFresh(t *testing.T) {
	store := createTestStore(t)
	old := store.Acquire("")
	backdate(store, old.ID, 2*time.Hour)

	fresh := store.Acquire(old.ID)

	assert.NotEqual(t, old.ID, fresh.ID)
	assert.Empty(t, fresh.CollectedEntities)
	assert.Equal(t, 1, store.Len(), "expired session is gone")

	_, found := store.Get(old.ID)
	assert.False(t, found)
}

func TestStore_Acquire_ReturnsIsolatedClone(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	sess.CollectedEntities["insurer"] = "written to the clone"
	sess.State = models.StateAnswered

	stored, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Empty(t, stored.CollectedEntities, "clone writes never reach the store")
	assert.Equal(t, models.StateNew, stored.State)
}

func TestStore_Get(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	found, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, sess.ID, found.ID)

	_, ok = store.Get("missing")
	assert.False(t, ok)

	backdate(store, sess.ID, 2*time.Hour)
	_, ok = store.Get(sess.ID)
	assert.False(t, ok, "expired sessions read as missing before the reaper runs")
}

func TestStore_Update(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	updated, ok := store.Update(sess.ID, func(s *models.Session) {
		s.State = models.StateCollecting
		s.PendingEntity = "age"
		s.SetEntity("insurer", "Oscar")
	})

	require.True(t, ok)
	assert.Equal(t, models.StateCollecting, updated.State)
	assert.Equal(t, "age", updated.PendingEntity)
	assert.Equal(t, "Oscar", updated.CollectedEntities["insurer"])

	stored, _ := store.Get(sess.ID)
	assert.Equal(t, models.StateCollecting, stored.State)
}

func TestStore_Update_EvictedSessionDiscardsWrite(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	// the session vanishes while the turn is off calling the oracle
	require.True(t, store.Delete(sess.ID))

	result, ok := store.Update(sess.ID, func(s *models.Session) {
		s.SetEntity("insurer", "Molina")
	})

	assert.False(t, ok)
	assert.Nil(t, result)
	assert.Equal(t, 0, store.Len())
}

func TestStore_Delete(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	assert.True(t, store.Delete(sess.ID))
	assert.False(t, store.Delete(sess.ID), "second delete reports missing")
	assert.Equal(t, 0, store.Len())
}

// ==========================
// Reaper Tests
// ==========================

func TestStore_Reap_EvictsOnlyIdleSessions(t *testing.T) {
	store := createTestStore(t)
	idle := store.Acquire("")
	active := store.Acquire("")
	backdate(store, idle.ID, 2*time.Hour)

	evicted := store.reap()

	assert.Equal(t, 1, evicted)
	assert.Equal(t, 1, store.Len())

	_, ok := store.Get(active.ID)
	assert.True(t, ok)
	_, ok = store.Get(idle.ID)
	assert.False(t, ok)
}

func TestStore_StartReaper_SweepsInBackground(t *testing.T) {
	store := NewStore(config.SessionConfig{
		TTL:            25,
		ReaperInterval: 10,
	}, logger.NewTestLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	store.StartReaper(ctx)

	store.Acquire("")
	require.Equal(t, 1, store.Len())

	assert.Eventually(t, func() bool {
		return store.Len() == 0
	}, time.Second, 10*time.Millisecond, "reaper evicts the idle session")
}

// ==========================
// Concurrency Tests
// ==========================

func TestStore_ConcurrentTurnsMergeEntities(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			// each turn re-reads the session, then writes its own slot
			_ = store.Acquire(sess.ID)
			entity := "insurer"
			value := interface{}("Molina")
			if n == 1 {
				entity = "county"
				value = "Travis"
			}
			store.Update(sess.ID, func(s *models.Session) {
				s.SetEntity(entity, value)
			})
		}(i)
	}
	wg.Wait()

	final, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Equal(t, "Molina", final.CollectedEntities["insurer"])
	assert.Equal(t, "Travis", final.CollectedEntities["county"])
	assert.Equal(t, 1, store.Len(), "concurrent turns share one session")
}

func TestStore_ConcurrentUpdatesAllLand(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	const writers = 16
	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update(sess.ID, func(s *models.Session) {
				s.SetEntity(fmt.Sprintf("slot_%d", n), n)
			})
		}(i)
	}
	wg.Wait()

	final, ok := store.Get(sess.ID)
	require.True(t, ok)
	assert.Len(t, final.CollectedEntities, writers)
}

func TestStore_Update_SessionsLockIndependently(t *testing.T) {
	store := createTestStore(t)
	a := store.Acquire("")
	b := store.Acquire("")

	entered := make(chan struct{})
	release := make(chan struct{})
	slowDone := make(chan struct{})
	go func() {
		defer close(slowDone)
		store.Update(a.ID, func(s *models.Session) {
			close(entered)
			<-release
		})
	}()
	<-entered

	// with session A's mutator still in flight, session B stays usable
	fastDone := make(chan struct{})
	go func() {
		defer close(fastDone)
		store.Update(b.ID, func(s *models.Session) {
			s.SetEntity("state", "TX")
		})
		store.Acquire(b.ID)
	}()

	select {
	case <-fastDone:
	case <-time.After(time.Second):
		t.Fatal("update on one session stalled behind a mutator on another")
	}

	close(release)
	<-slowDone

	final, ok := store.Get(b.ID)
	require.True(t, ok)
	assert.Equal(t, "TX", final.CollectedEntities["state"])
}

func TestStore_SameSlotFirstWriterWins(t *testing.T) {
	store := createTestStore(t)
	sess := store.Acquire("")

	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			store.Update(sess.ID, func(s *models.Session) {
				s.SetEntity("age", 30+n)
			})
		}(i)
	}
	wg.Wait()

	final, _ := store.Get(sess.ID)
	age, ok := final.CollectedEntities["age"]
	require.True(t, ok)
	assert.Contains(t, []interface{}{30, 31}, age, "one writer wins, the value is never mixed")
	assert.Len(t, final.CollectedEntities, 1)
}
