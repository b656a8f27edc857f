package txn

import (
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/myuser/txkv/internal/metrics"
	"github.com/myuser/txkv/internal/storage"
)

// CommitTarget selects where a nested COMMIT merges its snapshot.
type CommitTarget int

const (
	// CommitToParent merges into the enclosing snapshot. Only a depth-1
	// commit reaches the shared store.
	CommitToParent CommitTarget = iota

	// CommitToRoot merges every commit straight into the shared store and
	// leaves any enclosing snapshot untouched.
	CommitToRoot
)

func (t CommitTarget) String() string {
	switch t {
	case CommitToParent:
		return "parent"
	case CommitToRoot:
		return "root"
	default:
		return "unknown"
	}
}

// Manager hands out sessions over one shared store.
type Manager struct {
	store   *storage.MemoryStore
	target  CommitTarget
	logger  *zap.Logger
	metrics *metrics.Registry

	sessions atomic.Int64
}

// Option configures a Manager.
type Option func(*Manager)

func WithCommitTarget(t CommitTarget) Option {
	return func(m *Manager) { m.target = t }
}

func WithLogger(l *zap.Logger) Option {
	return func(m *Manager) {
		if l != nil {
			m.logger = l
		}
	}
}

func WithMetrics(r *metrics.Registry) Option {
	return func(m *Manager) { m.metrics = r }
}

func NewManager(store *storage.MemoryStore, opts ...Option) *Manager {
	m := &Manager{
		store:  store,
		target: CommitToParent,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Store returns the shared store.
func (m *Manager) Store() *storage.MemoryStore {
	return m.store
}

// CommitTarget reports how nested commits are merged.
func (m *Manager) CommitTarget() CommitTarget {
	return m.target
}

// Sessions returns the number of sessions that have not been closed.
func (m *Manager) Sessions() int64 {
	return m.sessions.Load()
}

// NewSession opens an execution context with an empty transaction stack.
// The caller owns the handle and should Close it when done.
func (m *Manager) NewSession() *Session {
	s := &Session{
		id: uuid.Must(uuid.NewV7()).String(),
		m:  m,
	}
	m.sessions.Add(1)
	m.metrics.SessionOpened()
	m.logger.Debug("session opened", zap.String("session", s.id))
	return s
}
