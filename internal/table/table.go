// Package table composes the schema, record store, index manager,
// filter engine, and alert engine into the single orchestration layer
// spec §4.7 calls the Table: the object every session operation
// ultimately calls into.
package table

import (
	"sync"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/alert"
	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/filter"
	"github.com/dialogtable/dialogtable/internal/index"
	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/recordstore"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

// readCacheSize bounds the formatted-record cache each table keeps.
const readCacheSize = 4096

// WriteAheadLogger is the optional durability collaborator a DURABLE or
// DURABLE_RELAXED table writes through. Left nil for IN_MEMORY tables.
// Defined here (rather than importing internal/persist directly) so
// Table has no hard dependency on the persistence package, mirroring
// the teacher's SetStreamingManager late-bind to dodge a circular
// import when the collaborator is wired up after construction.
type WriteAheadLogger interface {
	Append(offset int64, record []byte) error
}

// Table is one schema-typed, append-only log table plus its live
// indexes, named filters, and triggers.
type Table struct {
	name        string
	id          int64
	schema      *schema.Schema
	storageMode model.StorageMode

	store      *recordstore.Store
	indexMgr   *index.Manager
	filterMgr  *filter.Manager
	alertEng   *alert.Engine
	readCache  *readCache
	workerPool *workerpool.WorkerPool
	logger     *zap.Logger

	appendMu sync.Mutex

	writeAheadMu sync.RWMutex
	writeAhead   WriteAheadLogger
}

// New creates a table named name with id id over schema s, running in
// storageMode.
func New(name string, id int64, s *schema.Schema, storageMode model.StorageMode, pool *workerpool.WorkerPool, logger *zap.Logger) *Table {
	store := recordstore.New(s.RecordSize)
	indexMgr := index.NewManager(s, pool, logger)
	filterMgr := filter.NewManager(s, store, indexMgr, logger)
	alertEng := alert.NewEngine(s, logger)

	return &Table{
		name:        name,
		id:          id,
		schema:      s,
		storageMode: storageMode,
		store:       store,
		indexMgr:    indexMgr,
		filterMgr:   filterMgr,
		alertEng:    alertEng,
		readCache:   newReadCache(readCacheSize),
		workerPool:  pool,
		logger:      logger,
	}
}

// SetWriteAhead wires up the table's durability collaborator. Called
// after construction (never from New) for tables whose storage mode is
// DURABLE or DURABLE_RELAXED; left unset for IN_MEMORY.
func (t *Table) SetWriteAhead(w WriteAheadLogger) {
	t.writeAheadMu.Lock()
	defer t.writeAheadMu.Unlock()
	t.writeAhead = w
}

// Name returns the table's name.
func (t *Table) Name() string { return t.name }

// ID returns the table's store-assigned id.
func (t *Table) ID() int64 { return t.id }

// Schema returns the table's schema (C7's get_schema).
func (t *Table) Schema() *schema.Schema { return t.schema }

// RecordSize returns the fixed per-record byte width (C7's record_size).
func (t *Table) RecordSize() int { return t.schema.RecordSize }

// NumRecords returns the number of records appended so far.
func (t *Table) NumRecords() int64 { return t.store.NumRecords() }

// Append appends one record and runs it through the index/filter/alert
// pipeline before returning its offset. Held under the table's append
// lock for the whole pipeline so index/filter/alert processing observes
// records in append order (spec §5: "an append-lock scoped to a single
// record").
func (t *Table) Append(record []byte) (int64, error) {
	t.appendMu.Lock()
	defer t.appendMu.Unlock()
	return t.appendLocked(record)
}

// AppendBatch appends every record in batch under a single hold of the
// append lock, so the whole batch receives consecutive offsets, and
// returns the first record's offset (spec §4.7).
func (t *Table) AppendBatch(batch [][]byte) (int64, error) {
	if len(batch) == 0 {
		return 0, errors.InvalidOperation("empty batch")
	}

	t.appendMu.Lock()
	defer t.appendMu.Unlock()

	first, err := t.appendLocked(batch[0])
	if err != nil {
		return 0, err
	}
	for _, record := range batch[1:] {
		if _, err := t.appendLocked(record); err != nil {
			return 0, errors.Internal(err, "append_batch failed mid-batch")
		}
	}
	return first, nil
}

// appendLocked runs the append pipeline; callers must hold appendMu.
func (t *Table) appendLocked(record []byte) (int64, error) {
	offset, err := t.store.Append(record)
	if err != nil {
		return 0, err
	}

	t.writeAheadMu.RLock()
	wal := t.writeAhead
	t.writeAheadMu.RUnlock()
	if wal != nil {
		if err := wal.Append(offset, record); err != nil {
			t.logger.Error("write-ahead append failed", zap.Int64("offset", offset), zap.Error(err))
		}
	}

	t.indexMgr.OnAppend(offset, record)

	tsNs := schema.DecodeTimestamp(record)
	matched := t.filterMgr.OnAppend(offset, record, tsNs)
	for _, name := range matched {
		t.alertEng.OnMatch(name, tsNs, record)
	}

	return offset, nil
}

// Read returns nrecords consecutive records starting at offset.
func (t *Table) Read(offset int64, nrecords int) ([]byte, error) {
	return t.store.ReadRange(offset, nrecords)
}

// FormattedRead returns the human-readable form of the record at
// offset, served from the table's read cache when available.
func (t *Table) FormattedRead(offset int64) (string, error) {
	if s, ok := t.readCache.get(offset); ok {
		return s, nil
	}
	rec, err := t.store.Read(offset)
	if err != nil {
		return "", err
	}
	formatted := schema.Format(t.schema, rec)
	t.readCache.put(offset, formatted)
	return formatted, nil
}

// AddIndex builds an index on column (spec §4.4). Held under the
// table's append lock for the whole back-fill+publish so no append can
// land between the back-fill's tail snapshot and the index's publish
// into the manager's map — without this, a record appended during
// back-fill would be skipped by both the back-fill (which only scanned
// offsets below its snapshot) and OnAppend (which does not yet see the
// not-yet-published index), leaving a permanent gap (spec §3's "no
// gaps" invariant, property P3).
func (t *Table) AddIndex(column string, bucketSize float64) error {
	t.appendMu.Lock()
	defer t.appendMu.Unlock()
	return t.indexMgr.AddIndex(column, bucketSize, t.store)
}

// RemoveIndex drops the index on column.
func (t *Table) RemoveIndex(column string) error {
	return t.indexMgr.RemoveIndex(column)
}

// AddFilter registers a named filter.
func (t *Table) AddFilter(name, expr string) error {
	return t.filterMgr.AddFilter(name, expr)
}

// RemoveFilter drops a named filter.
func (t *Table) RemoveFilter(name string) error {
	return t.filterMgr.RemoveFilter(name)
}

// AddTrigger registers a trigger bound to an existing named filter.
func (t *Table) AddTrigger(name, filterName, expr string) error {
	return t.alertEng.AddTrigger(name, filterName, expr, t.filterMgr.Has)
}

// RemoveTrigger drops a registered trigger.
func (t *Table) RemoveTrigger(name string) error {
	return t.alertEng.RemoveTrigger(name)
}

// ExecuteFilter compiles expr ad-hoc and returns a stream of matching
// offsets (spec §4.5).
func (t *Table) ExecuteFilter(expr string) (*filter.OffsetStream, error) {
	return t.filterMgr.ExecuteFilter(expr)
}

// QueryFilter enumerates name's time-indexed offsets in [beginMs, endMs].
func (t *Table) QueryFilter(name string, beginMs, endMs int64) (*filter.OffsetStream, error) {
	return t.filterMgr.QueryFilter(name, beginMs, endMs)
}

// QueryFilterCombined enumerates name's time-window offsets re-filtered
// by expr.
func (t *Table) QueryFilterCombined(name, expr string, beginMs, endMs int64) (*filter.OffsetStream, error) {
	return t.filterMgr.QueryFilterCombined(name, expr, beginMs, endMs)
}

// GetAlerts returns every alert whose bucket falls in [beginMs, endMs].
func (t *Table) GetAlerts(beginMs, endMs int64) []alert.Alert {
	return t.alertEng.GetAlerts(beginMs, endMs)
}
