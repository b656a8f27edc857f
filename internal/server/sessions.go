package server

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/myuser/txkv/internal/metrics"
	"github.com/myuser/txkv/internal/txn"
)

type sessionEntry struct {
	sess     *txn.Session
	lastUsed time.Time
}

// sessionTable maps session ids handed to HTTP clients onto session handles.
type sessionTable struct {
	mu       sync.Mutex
	sessions map[string]*sessionEntry
	now      func() time.Time
}

func newSessionTable() *sessionTable {
	return &sessionTable{
		sessions: make(map[string]*sessionEntry),
		now:      time.Now,
	}
}

func (t *sessionTable) add(s *txn.Session) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sessions[s.ID()] = &sessionEntry{sess: s, lastUsed: t.now()}
}

// lookup returns the session and marks it as used.
func (t *sessionTable) lookup(id string) (*txn.Session, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.sessions[id]
	if !ok {
		return nil, false
	}
	e.lastUsed = t.now()
	return e.sess, true
}

// remove drops the session from the table and closes it.
func (t *sessionTable) remove(id string) bool {
	t.mu.Lock()
	e, ok := t.sessions[id]
	delete(t.sessions, id)
	t.mu.Unlock()

	if ok {
		e.sess.Close()
	}
	return ok
}

func (t *sessionTable) len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.sessions)
}

// reap closes sessions idle for longer than idle and returns their ids.
func (t *sessionTable) reap(idle time.Duration) []string {
	cutoff := t.now().Add(-idle)

	t.mu.Lock()
	var stale []*sessionEntry
	for id, e := range t.sessions {
		if e.lastUsed.Before(cutoff) {
			stale = append(stale, e)
			delete(t.sessions, id)
		}
	}
	t.mu.Unlock()

	ids := make([]string, 0, len(stale))
	for _, e := range stale {
		e.sess.Close()
		ids = append(ids, e.sess.ID())
	}
	return ids
}

// closeAll closes every session, used on shutdown.
func (t *sessionTable) closeAll() {
	t.mu.Lock()
	entries := t.sessions
	t.sessions = make(map[string]*sessionEntry)
	t.mu.Unlock()

	for _, e := range entries {
		e.sess.Close()
	}
}

// runReaper closes idle sessions every interval until ctx is done.
func (t *sessionTable) runReaper(ctx context.Context, interval, idle time.Duration, logger *zap.Logger, m *metrics.Registry) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			ids := t.reap(idle)
			for _, id := range ids {
				m.SessionReaped()
				logger.Info("reaped idle session", zap.String("session", id))
			}
		}
	}
}
