// Package store implements the table registry described in spec §4.8:
// a name- and id-addressed map of tables, with monotonically assigned
// ids and exclusive/shared locking matching the teacher's service
// wiring idiom.
package store

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/table"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

// Store is the process-wide registry of tables, shared across every
// session.
type Store struct {
	pool   *workerpool.WorkerPool
	logger *zap.Logger

	mu         sync.RWMutex
	byName     map[string]*table.Table
	byID       map[int64]*table.Table
	nextID     int64
	walFactory func(tableName string) (table.WriteAheadLogger, error)
}

// New creates an empty table registry.
func New(pool *workerpool.WorkerPool, logger *zap.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
		byName: make(map[string]*table.Table),
		byID:   make(map[int64]*table.Table),
	}
}

// SetWriteAheadFactory wires a constructor for the write-ahead log a
// DURABLE or DURABLE_RELAXED table is given when created. Called once
// during server startup; nil disables write-ahead logging entirely.
func (s *Store) SetWriteAheadFactory(f func(tableName string) (table.WriteAheadLogger, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.walFactory = f
}

// AddTable creates a table named name with the given schema and storage
// mode, assigns it the next monotonic id, and registers it. Fails if
// name already exists (spec §4.8).
func (s *Store) AddTable(name string, sch *schema.Schema, mode model.StorageMode) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.byName[name]; exists {
		return 0, errors.Management("table %q already exists", name)
	}

	id := s.nextID
	s.nextID++

	tbl := table.New(name, id, sch, mode, s.pool, s.logger)

	if mode != model.StorageModeInMemory && s.walFactory != nil {
		wal, err := s.walFactory(name)
		if err != nil {
			return 0, errors.Internal(err, "failed to create write-ahead log for table %q", name)
		}
		tbl.SetWriteAhead(wal)
	}

	s.byName[name] = tbl
	s.byID[id] = tbl

	s.logger.Info("table created", zap.String("name", name), zap.Int64("id", id), zap.Stringer("mode", mode))
	return id, nil
}

// GetTable returns the table named name.
func (s *Store) GetTable(name string) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tbl, ok := s.byName[name]
	if !ok {
		return nil, errors.Management("No such table %s", name)
	}
	return tbl, nil
}

// GetTableByID returns the table with the given id.
func (s *Store) GetTableByID(id int64) (*table.Table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tbl, ok := s.byID[id]
	if !ok {
		return nil, errors.Management("No such table with id %d", id)
	}
	return tbl, nil
}

// GetTableID returns the id of the table named name.
func (s *Store) GetTableID(name string) (int64, error) {
	tbl, err := s.GetTable(name)
	if err != nil {
		return 0, err
	}
	return tbl.ID(), nil
}

// RemoveTable drops the table named name, returning its id, or fails
// with the literal "No such table <name>" error spec.md's own test
// suite checks for.
func (s *Store) RemoveTable(name string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.byName[name]
	if !ok {
		return -1, errors.Management("No such table %s", name)
	}

	delete(s.byName, name)
	delete(s.byID, tbl.ID())
	s.logger.Info("table removed", zap.String("name", name), zap.Int64("id", tbl.ID()))
	return tbl.ID(), nil
}

// TableCount returns the number of registered tables.
func (s *Store) TableCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byName)
}

// Tables returns every registered table, keyed by name, for callers that
// need to snapshot per-table stats (metrics, health checks).
func (s *Store) Tables() map[string]*table.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]*table.Table, len(s.byName))
	for name, tbl := range s.byName {
		out[name] = tbl
	}
	return out
}

// RemoveTableByID drops the table with the given id.
func (s *Store) RemoveTableByID(id int64) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tbl, ok := s.byID[id]
	if !ok {
		return -1, errors.Management("No such table with id %d", id)
	}

	delete(s.byName, tbl.Name())
	delete(s.byID, id)
	s.logger.Info("table removed", zap.String("name", tbl.Name()), zap.Int64("id", id))
	return id, nil
}
