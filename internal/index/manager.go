package index

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/recordstore"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

// backfillShard is the number of records each worker-pool task scans
// during AddIndex's synchronous back-fill.
const backfillShard = 2048

// Manager owns every per-column index of one table. Index add/remove is
// an exclusive, table-level operation (spec §5); OnAppend is called on
// the hot append path and must stay cheap.
type Manager struct {
	schema *schema.Schema
	pool   *workerpool.WorkerPool
	logger *zap.Logger

	mu      sync.RWMutex
	indexes map[string]*Index
}

// NewManager creates an index manager for the given schema.
func NewManager(s *schema.Schema, pool *workerpool.WorkerPool, logger *zap.Logger) *Manager {
	return &Manager{
		schema:  s,
		pool:    pool,
		logger:  logger,
		indexes: make(map[string]*Index),
	}
}

// Get returns the index for column, if one exists, for use by the filter
// engine's index-assisted ad-hoc evaluation.
func (m *Manager) Get(column string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.indexes[column]
	return ix, ok
}

// OnAppend updates every registered index for the newly appended record.
// Called synchronously on the append path (spec §4.4: "after add_index
// returns, all future appends update the index").
func (m *Manager) OnAppend(offset int64, record []byte) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, ix := range m.indexes {
		ix.Insert(offset, record)
	}
}

// AddIndex creates a new index on column, synchronously back-filling it
// from every existing record in store before publishing it: the new
// index is not visible to Get (and therefore not visible to filter
// evaluation) until back-fill completes, per spec §4.4.
func (m *Manager) AddIndex(column string, bucketSize float64, store *recordstore.Store) error {
	col, ok := m.schema.Column(column)
	if !ok {
		return errors.Management("unknown column %q", column)
	}

	m.mu.Lock()
	if _, exists := m.indexes[column]; exists {
		m.mu.Unlock()
		return errors.Management("column %q is already indexed", column)
	}
	m.mu.Unlock()

	ix := newIndex(col, bucketSize)
	if err := m.backfill(ix, store); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.indexes[column]; exists {
		return errors.Management("column %q is already indexed", column)
	}
	m.indexes[column] = ix
	m.logger.Info("index published",
		zap.String("column", column),
		zap.Float64("bucket_size", bucketSize),
		zap.Int64("backfilled", ix.Count()))
	return nil
}

// backfill scans every existing record in shards, in parallel via the
// worker pool's ScanShardsOrdered, and inserts the merged, offset-ordered
// result into ix so insertion order matches append order regardless of
// which shard's worker finished first.
func (m *Manager) backfill(ix *Index, store *recordstore.Store) error {
	tail := store.Tail()
	recordSize := int64(store.RecordSize())
	if recordSize == 0 || tail == 0 {
		return nil
	}
	numRecords := tail / recordSize

	scan := func(_ context.Context, startOffset, count int64) ([][]byte, error) {
		blob, err := store.ReadRange(startOffset, int(count))
		if err != nil {
			return nil, err
		}
		records := make([][]byte, count)
		for i := int64(0); i < count; i++ {
			records[i] = blob[i*recordSize : (i+1)*recordSize]
		}
		return records, nil
	}

	records, err := m.pool.ScanShardsOrdered(context.Background(), recordSize, numRecords, backfillShard, scan)
	if err != nil {
		return errors.Internal(err, "index backfill failed")
	}

	offset := int64(0)
	for _, rec := range records {
		ix.Insert(offset, rec)
		offset += recordSize
	}
	return nil
}

// RemoveIndex drops the index on column.
func (m *Manager) RemoveIndex(column string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.indexes[column]; !ok {
		return errors.Management("column %q is not indexed", column)
	}
	delete(m.indexes, column)
	return nil
}
