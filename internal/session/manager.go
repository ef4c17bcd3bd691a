package session

import (
	"sync"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/store"
)

// Manager owns the process-wide handler registry and the live Session
// for each registered handler. gRPC's unary calls carry no
// connection-scoped server state, so every RPC after register_handler
// passes its handler_id explicitly and the handler looks the session up
// here (see DESIGN.md's resolution of the register_handler return-value
// question).
type Manager struct {
	registry  *Registry
	store     *store.Store
	batchSize int

	mu       sync.Mutex
	sessions map[int64]*Session
}

// NewManager creates a session manager backed by s, paginating new
// sessions' cursors batchSize entries at a time.
func NewManager(s *store.Store, batchSize int) *Manager {
	return &Manager{
		registry:  NewRegistry(),
		store:     s,
		batchSize: batchSize,
		sessions:  make(map[int64]*Session),
	}
}

// RegisterHandler creates a new session and returns its handler id.
func (m *Manager) RegisterHandler() int64 {
	id := m.registry.RegisterHandler()

	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[id] = New(id, m.store, m.batchSize)
	return id
}

// DeregisterHandler destroys the session (and every open cursor it
// holds) and reclaims its handler id.
func (m *Manager) DeregisterHandler(id int64) error {
	if err := m.registry.DeregisterHandler(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, id)
	return nil
}

// Get returns the live session for handlerID.
func (m *Manager) Get(handlerID int64) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[handlerID]
	if !ok {
		return nil, errors.InvalidOperation("handler_id mismatch")
	}
	return s, nil
}
