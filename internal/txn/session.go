package txn

import (
	"sync"

	"go.uber.org/zap"

	"github.com/myuser/txkv/internal/storage"
)

// Session is one caller's view of the store. Operations issued through a
// session are applied in order; its transaction stack is never visible to
// other sessions.
type Session struct {
	id string
	m  *Manager

	mu     sync.Mutex
	stack  []*storage.MemoryStore // innermost last
	closed bool
}

var _ storage.Mapping = (*Session)(nil)

func (s *Session) ID() string {
	return s.id
}

// Depth returns the number of open transaction levels.
func (s *Session) Depth() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.stack)
}

// visible returns the mapping reads and writes go to. Caller holds s.mu.
func (s *Session) visible() *storage.MemoryStore {
	if n := len(s.stack); n > 0 {
		return s.stack[n-1]
	}
	return s.m.store
}

func (s *Session) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.metrics.Inc("GET", nil)
	return s.visible().Get(key)
}

func (s *Session) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.metrics.Inc("SET", nil)
	s.visible().Set(key, value)
}

func (s *Session) Delete(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.metrics.Inc("DELETE", nil)
	return s.visible().Delete(key)
}

func (s *Session) Count(value string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.m.metrics.Inc("COUNT", nil)
	return s.visible().Count(value)
}

// Range walks the visible mapping in key order.
func (s *Session) Range(fn func(key, value string) bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible().Range(fn)
}

// Begin pushes a copy of the visible mapping. Transactions nest without limit.
// Begin on a closed session does nothing.
func (s *Session) Begin() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		s.m.logger.Debug("begin on closed session ignored", zap.String("session", s.id))
		return
	}

	s.stack = append(s.stack, s.visible().Snapshot())
	depth := len(s.stack)

	s.m.metrics.Inc("BEGIN", nil)
	s.m.metrics.TxnBegun(depth)
	s.m.logger.Debug("transaction begun",
		zap.String("session", s.id),
		zap.Int("depth", depth))
}

// Commit merges the innermost snapshot into its target and pops it.
// The target's key set is reconciled against the snapshot, so keys deleted
// inside the transaction are deleted in the target too. Concurrent commits
// from other sessions are not detected; the last merge wins.
func (s *Session) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.stack)
	if n == 0 {
		s.m.metrics.Inc("COMMIT", ErrNoActiveTransaction)
		return ErrNoActiveTransaction
	}

	top := s.stack[n-1]
	target := s.m.store
	if n > 1 && s.m.target == CommitToParent {
		target = s.stack[n-2]
	}
	written, removed := target.Merge(top)

	s.stack[n-1] = nil
	s.stack = s.stack[:n-1]

	s.m.metrics.Inc("COMMIT", nil)
	s.m.metrics.TxnEnded(1)
	s.m.metrics.CommitMerged(written, removed)
	s.m.logger.Debug("transaction committed",
		zap.String("session", s.id),
		zap.Int("depth", n-1),
		zap.Stringer("target", s.m.target),
		zap.Int("written", written),
		zap.Int("removed", removed))
	return nil
}

// Rollback discards the innermost snapshot.
func (s *Session) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := len(s.stack)
	if n == 0 {
		s.m.metrics.Inc("ROLLBACK", ErrNoActiveTransaction)
		return ErrNoActiveTransaction
	}
	s.stack[n-1] = nil
	s.stack = s.stack[:n-1]

	s.m.metrics.Inc("ROLLBACK", nil)
	s.m.metrics.TxnEnded(1)
	s.m.logger.Debug("transaction rolled back",
		zap.String("session", s.id),
		zap.Int("depth", n-1))
	return nil
}

// Close discards every open transaction and releases the session.
// Calling Close more than once is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true

	dropped := len(s.stack)
	s.stack = nil

	s.m.sessions.Add(-1)
	s.m.metrics.TxnEnded(dropped)
	s.m.metrics.SessionClosed()
	s.m.logger.Debug("session closed",
		zap.String("session", s.id),
		zap.Int("discarded", dropped))
}
