package filter

import (
	"math"
	"sync"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/exprlang"
	"github.com/dialogtable/dialogtable/internal/index"
	"github.com/dialogtable/dialogtable/internal/recordstore"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/skiplist"
)

// namedFilter is a registered filter: a compiled predicate plus a
// millisecond-bucketed time index of every offset that has matched it
// since registration (spec §4.2's NamedFilter).
type namedFilter struct {
	name     string
	exprText string
	compiled *exprlang.CompiledFilter

	mu        sync.Mutex
	timeIndex *skiplist.SkipList[int64, *[]int64]
}

func newNamedFilter(name, exprText string, compiled *exprlang.CompiledFilter) *namedFilter {
	return &namedFilter{
		name:      name,
		exprText:  exprText,
		compiled:  compiled,
		timeIndex: skiplist.New[int64, *[]int64](),
	}
}

func (f *namedFilter) record(bucketMs, offset int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := f.timeIndex.GetOrInsert(bucketMs, func() *[]int64 { return &[]int64{} })
	*list = append(*list, offset)
}

func (f *namedFilter) rangeOffsets(beginMs, endMs int64) []int64 {
	f.mu.Lock()
	entries := f.timeIndex.Range(beginMs, endMs)
	f.mu.Unlock()

	var out []int64
	for _, e := range entries {
		out = append(out, (*e.Value)...)
	}
	return out
}

// Manager evaluates every registered filter on the append path and
// serves the three query operations spec §4.5 names (ad-hoc,
// predefined, combined).
type Manager struct {
	schema   *schema.Schema
	store    *recordstore.Store
	indexMgr *index.Manager
	logger   *zap.Logger

	mu      sync.RWMutex
	filters map[string]*namedFilter
}

// NewManager creates a filter engine over store, consulting indexMgr for
// index-assisted ad-hoc evaluation.
func NewManager(s *schema.Schema, store *recordstore.Store, indexMgr *index.Manager, logger *zap.Logger) *Manager {
	return &Manager{
		schema:   s,
		store:    store,
		indexMgr: indexMgr,
		logger:   logger,
		filters:  make(map[string]*namedFilter),
	}
}

// AddFilter compiles expr and registers it under name. Parse failures
// and duplicate names surface as Management errors (spec §7).
func (m *Manager) AddFilter(name, exprText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.filters[name]; exists {
		return errors.Management("filter %q already exists", name)
	}

	compiled, err := exprlang.CompileFilter(m.schema, exprText)
	if err != nil {
		return errors.Management("failed to compile filter %q: %v", name, err)
	}

	m.filters[name] = newNamedFilter(name, exprText, compiled)
	m.logger.Info("filter registered", zap.String("name", name), zap.String("expr", exprText))
	return nil
}

// RemoveFilter drops a named filter.
func (m *Manager) RemoveFilter(name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.filters[name]; !ok {
		return errors.Management("unknown filter %q", name)
	}
	delete(m.filters, name)
	return nil
}

// Has reports whether name is a registered filter, used by the trigger
// engine to validate add_trigger's filter_name argument.
func (m *Manager) Has(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.filters[name]
	return ok
}

// OnAppend evaluates every registered filter against the new record and
// returns the names of the filters that matched, so the caller (Table)
// can forward matches to the trigger/alert engine. tsNs is the record's
// timestamp column in nanoseconds.
func (m *Manager) OnAppend(offset int64, record []byte, tsNs int64) []string {
	bucketMs := tsNs / int64(1e6)

	m.mu.RLock()
	defer m.mu.RUnlock()

	var matched []string
	for name, f := range m.filters {
		if f.compiled.Eval(record) {
			f.record(bucketMs, offset)
			matched = append(matched, name)
		}
	}
	return matched
}

// ExecuteFilter compiles expr ad-hoc and returns a stream of matching
// offsets: index-assisted when a comparison references an indexed
// column, a full scan from offset 0 to the current tail otherwise
// (spec §4.5).
func (m *Manager) ExecuteFilter(expr string) (*OffsetStream, error) {
	compiled, err := exprlang.CompileFilter(m.schema, expr)
	if err != nil {
		return nil, errors.InvalidOperation("failed to compile expression: %v", err)
	}

	if candidates := m.indexCandidates(compiled); candidates != nil {
		return NewOffsetStream(m.reCheck(candidates, compiled)), nil
	}
	return NewOffsetStream(m.fullScan(compiled)), nil
}

// QueryFilter enumerates every offset in name's time index within
// [beginMs, endMs].
func (m *Manager) QueryFilter(name string, beginMs, endMs int64) (*OffsetStream, error) {
	f, ok := m.lookup(name)
	if !ok {
		return nil, errors.InvalidOperation("unknown filter %q", name)
	}
	return NewOffsetStream(f.rangeOffsets(beginMs, endMs)), nil
}

// QueryFilterCombined enumerates name's time-window offsets, then
// re-filters each by expr, in append order (spec §4.5, P5).
func (m *Manager) QueryFilterCombined(name, expr string, beginMs, endMs int64) (*OffsetStream, error) {
	f, ok := m.lookup(name)
	if !ok {
		return nil, errors.InvalidOperation("unknown filter %q", name)
	}
	compiled, err := exprlang.CompileFilter(m.schema, expr)
	if err != nil {
		return nil, errors.InvalidOperation("failed to compile expression: %v", err)
	}

	offsets := f.rangeOffsets(beginMs, endMs)
	return NewOffsetStream(m.reCheck(offsets, compiled)), nil
}

func (m *Manager) lookup(name string) (*namedFilter, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.filters[name]
	return f, ok
}

// indexCandidates returns candidate offsets drawn from an index on one
// of compiled's leaf comparisons, or nil if no comparison is covered by
// a published index.
func (m *Manager) indexCandidates(compiled *exprlang.CompiledFilter) []int64 {
	for _, c := range compiled.Comparisons {
		ix, ok := m.indexMgr.Get(c.Column)
		if !ok {
			continue
		}
		if offsets, ok := scanComparison(ix, c); ok {
			return offsets
		}
	}
	return nil
}

// scanComparison runs one leaf comparison against an index, returning
// (offsets, true) if the index can serve that operator.
func scanComparison(ix *index.Index, c exprlang.Comparison) ([]int64, bool) {
	col := ix.Column()
	if col.Type == schema.TypeString {
		if c.Op == exprlang.OpEq && c.Literal.Kind == exprlang.LitString {
			return ix.ScanExactString(c.Literal.Str), true
		}
		return nil, false
	}

	if c.Literal.Kind != exprlang.LitNumber {
		return nil, false
	}
	v := c.Literal.Num
	switch c.Op {
	case exprlang.OpEq:
		return ix.Scan(v, v), true
	case exprlang.OpLt:
		return ix.Scan(math.Inf(-1), math.Nextafter(v, math.Inf(-1))), true
	case exprlang.OpLe:
		return ix.Scan(math.Inf(-1), v), true
	case exprlang.OpGt:
		return ix.Scan(math.Nextafter(v, math.Inf(1)), math.Inf(1)), true
	case exprlang.OpGe:
		return ix.Scan(v, math.Inf(1)), true
	default:
		return nil, false
	}
}

// reCheck re-evaluates compiled's full predicate against each candidate
// offset's record, preserving the order of candidates.
func (m *Manager) reCheck(candidates []int64, compiled *exprlang.CompiledFilter) []int64 {
	var out []int64
	for _, off := range candidates {
		rec, err := m.store.Read(off)
		if err != nil {
			continue
		}
		if compiled.Eval(rec) {
			out = append(out, off)
		}
	}
	return out
}

// fullScan walks every record from offset 0 to the current tail,
// evaluating compiled against each.
func (m *Manager) fullScan(compiled *exprlang.CompiledFilter) []int64 {
	recordSize := int64(m.store.RecordSize())
	tail := m.store.Tail()

	var out []int64
	for off := int64(0); off < tail; off += recordSize {
		rec, err := m.store.Read(off)
		if err != nil {
			break
		}
		if compiled.Eval(rec) {
			out = append(out, off)
		}
	}
	return out
}
