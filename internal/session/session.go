package session

import (
	"sync"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/store"
	"github.com/dialogtable/dialogtable/internal/table"
)

// CursorDescriptor identifies one open cursor: which session owns it,
// which of the four kind-specific maps holds it, and its id within
// that map. Carried on every get_more call (spec §6's
// rpc_iterator_descriptor).
type CursorDescriptor struct {
	HandlerID int64
	ID        int64
	Kind      model.IteratorKind
}

// Page is one batch of a cursor's output: raw record bytes for the
// three record-stream kinds, or newline-terminated alert text lines
// for ALERTS.
type Page struct {
	Descriptor CursorDescriptor
	Data       []byte
	NumEntries int
	HasMore    bool
}

// Session holds one client connection's state: its handler id, the
// table it is currently operating on, and its four typed cursor maps.
// Per spec §5, a session is only ever touched by its owning handler
// goroutine, but the mutex below costs nothing and protects against a
// caller that gets that wrong.
type Session struct {
	handlerID int64
	store     *store.Store
	batchSize int

	mu           sync.Mutex
	currentTable *table.Table
	nextCursorID int64
	adhoc        map[int64]*recordCursor
	predef       map[int64]*recordCursor
	combined     map[int64]*recordCursor
	alerts       map[int64]*alertStream
}

// New creates a session bound to handlerID, resolving tables through s
// and paginating cursors batchSize entries at a time.
func New(handlerID int64, s *store.Store, batchSize int) *Session {
	return &Session{
		handlerID: handlerID,
		store:     s,
		batchSize: batchSize,
		adhoc:     make(map[int64]*recordCursor),
		predef:    make(map[int64]*recordCursor),
		combined:  make(map[int64]*recordCursor),
		alerts:    make(map[int64]*alertStream),
	}
}

// HandlerID returns the session's handler id.
func (s *Session) HandlerID() int64 { return s.handlerID }

// SetCurrentTable resolves name against the store and binds it as the
// session's current table, returning its schema.
func (s *Session) SetCurrentTable(name string) (*schema.Schema, error) {
	tbl, err := s.store.GetTable(name)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.currentTable = tbl
	s.mu.Unlock()
	return tbl.Schema(), nil
}

// CurrentTable returns the session's bound table, or a Management
// error if set_current_table has not been called yet.
func (s *Session) CurrentTable() (*table.Table, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.currentTable == nil {
		return nil, errors.Management("no current table selected")
	}
	return s.currentTable, nil
}

func (s *Session) allocCursorID() int64 {
	id := s.nextCursorID
	s.nextCursorID++
	return id
}

// OpenAdhoc compiles expr ad-hoc against the current table and opens a
// new ADHOC cursor, returning its first page.
func (s *Session) OpenAdhoc(expr string) (*Page, error) {
	tbl, err := s.CurrentTable()
	if err != nil {
		return nil, err
	}
	stream, err := tbl.ExecuteFilter(expr)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocCursorID()
	if _, exists := s.adhoc[id]; exists {
		return nil, errors.InvalidOperation("Duplicate iterator id")
	}
	s.adhoc[id] = &recordCursor{stream: stream}
	return s.adhocMoreLocked(tbl, id)
}

// OpenPredef opens a PREDEF cursor over name's time-indexed offsets.
func (s *Session) OpenPredef(name string, beginMs, endMs int64) (*Page, error) {
	tbl, err := s.CurrentTable()
	if err != nil {
		return nil, err
	}
	stream, err := tbl.QueryFilter(name, beginMs, endMs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocCursorID()
	if _, exists := s.predef[id]; exists {
		return nil, errors.InvalidOperation("Duplicate iterator id")
	}
	s.predef[id] = &recordCursor{stream: stream}
	return s.predefMoreLocked(tbl, id)
}

// OpenCombined opens a COMBINED cursor over name's time window
// re-filtered by expr.
func (s *Session) OpenCombined(name, expr string, beginMs, endMs int64) (*Page, error) {
	tbl, err := s.CurrentTable()
	if err != nil {
		return nil, err
	}
	stream, err := tbl.QueryFilterCombined(name, expr, beginMs, endMs)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocCursorID()
	if _, exists := s.combined[id]; exists {
		return nil, errors.InvalidOperation("Duplicate iterator id")
	}
	s.combined[id] = &recordCursor{stream: stream}
	return s.combinedMoreLocked(tbl, id)
}

// OpenAlerts opens an ALERTS cursor over alerts in [beginMs, endMs].
func (s *Session) OpenAlerts(beginMs, endMs int64) (*Page, error) {
	tbl, err := s.CurrentTable()
	if err != nil {
		return nil, err
	}
	alerts := tbl.GetAlerts(beginMs, endMs)

	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.allocCursorID()
	if _, exists := s.alerts[id]; exists {
		return nil, errors.InvalidOperation("Duplicate iterator id")
	}
	s.alerts[id] = newAlertStream(alerts)
	return s.alertsMoreLocked(id)
}

// GetMore validates desc.HandlerID against this session and dispatches
// to the kind-specific "_more" routine (spec §4.9).
func (s *Session) GetMore(desc CursorDescriptor) (*Page, error) {
	if desc.HandlerID != s.handlerID {
		return nil, errors.InvalidOperation("handler_id mismatch")
	}

	tbl, err := s.CurrentTable()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	switch desc.Kind {
	case model.IteratorAdhoc:
		return s.adhocMoreLocked(tbl, desc.ID)
	case model.IteratorPredef:
		return s.predefMoreLocked(tbl, desc.ID)
	case model.IteratorCombined:
		return s.combinedMoreLocked(tbl, desc.ID)
	case model.IteratorAlerts:
		return s.alertsMoreLocked(desc.ID)
	default:
		return nil, errors.InvalidOperation("unknown iterator kind")
	}
}

func (s *Session) adhocMoreLocked(tbl *table.Table, id int64) (*Page, error) {
	cur, ok := s.adhoc[id]
	if !ok {
		return nil, errors.InvalidOperation("No such iterator")
	}
	data, n, hasMore, err := cur.drainRecords(s.batchSize, func(off int64) ([]byte, error) { return tbl.Read(off, 1) })
	if err != nil {
		return nil, err
	}
	if !hasMore && n == 0 {
		delete(s.adhoc, id)
	}
	return &Page{
		Descriptor: CursorDescriptor{HandlerID: s.handlerID, ID: id, Kind: model.IteratorAdhoc},
		Data:       data, NumEntries: n, HasMore: hasMore,
	}, nil
}

func (s *Session) predefMoreLocked(tbl *table.Table, id int64) (*Page, error) {
	cur, ok := s.predef[id]
	if !ok {
		return nil, errors.InvalidOperation("No such iterator")
	}
	data, n, hasMore, err := cur.drainRecords(s.batchSize, func(off int64) ([]byte, error) { return tbl.Read(off, 1) })
	if err != nil {
		return nil, err
	}
	if !hasMore && n == 0 {
		delete(s.predef, id)
	}
	return &Page{
		Descriptor: CursorDescriptor{HandlerID: s.handlerID, ID: id, Kind: model.IteratorPredef},
		Data:       data, NumEntries: n, HasMore: hasMore,
	}, nil
}

func (s *Session) combinedMoreLocked(tbl *table.Table, id int64) (*Page, error) {
	cur, ok := s.combined[id]
	if !ok {
		return nil, errors.InvalidOperation("No such iterator")
	}
	data, n, hasMore, err := cur.drainRecords(s.batchSize, func(off int64) ([]byte, error) { return tbl.Read(off, 1) })
	if err != nil {
		return nil, err
	}
	if !hasMore && n == 0 {
		delete(s.combined, id)
	}
	return &Page{
		Descriptor: CursorDescriptor{HandlerID: s.handlerID, ID: id, Kind: model.IteratorCombined},
		Data:       data, NumEntries: n, HasMore: hasMore,
	}, nil
}

func (s *Session) alertsMoreLocked(id int64) (*Page, error) {
	st, ok := s.alerts[id]
	if !ok {
		return nil, errors.InvalidOperation("No such iterator")
	}
	data, n, hasMore := drainAlerts(st, s.batchSize)
	if !hasMore && n == 0 {
		delete(s.alerts, id)
	}
	return &Page{
		Descriptor: CursorDescriptor{HandlerID: s.handlerID, ID: id, Kind: model.IteratorAlerts},
		Data:       data, NumEntries: n, HasMore: hasMore,
	}, nil
}
