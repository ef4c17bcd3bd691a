// Package alert implements the trigger/alert engine described in spec
// §4.6: per-bucket aggregates per trigger, bucket-close-on-transition
// evaluation, and an insertion-ordered alert store.
package alert

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/errors"
	"github.com/dialogtable/dialogtable/internal/exprlang"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/skiplist"
)

// Alert is one fired trigger evaluation, emitted at the close of the
// time bucket it summarizes.
type Alert struct {
	TriggerName string
	BucketMs    int64
	Value       float64
	Message     string
}

// noBucket marks a triggerState that has not yet seen any match.
const noBucket = int64(-1)

// bucketAgg tracks whether Min/Max have been touched yet, since the
// exprlang.Aggregate zero value (Min=Max=0) would otherwise corrupt the
// first real min/max comparison.
type bucketAgg struct {
	agg     exprlang.Aggregate
	touched bool
}

func (b *bucketAgg) add(hasColumn bool, value float64) {
	b.agg.Count++
	if !hasColumn {
		return
	}
	b.agg.Sum += value
	if !b.touched {
		b.agg.Min = value
		b.agg.Max = value
		b.touched = true
		return
	}
	if value < b.agg.Min {
		b.agg.Min = value
	}
	if value > b.agg.Max {
		b.agg.Max = value
	}
}

// triggerState is the live state for one registered trigger: its
// compiled expression, the filter it is bound to, and a per-bucket
// aggregate map with a high-water-mark bucket that tracks when a bucket
// transition closes the previous bucket for evaluation.
type triggerState struct {
	name       string
	filterName string
	compiled   *exprlang.CompiledTrigger
	column     *schema.Column // nil for COUNT

	mu         sync.Mutex
	aggregates map[int64]*bucketAgg
	openBucket int64
}

func newTriggerState(name, filterName string, compiled *exprlang.CompiledTrigger, column *schema.Column) *triggerState {
	return &triggerState{
		name:       name,
		filterName: filterName,
		compiled:   compiled,
		column:     column,
		aggregates: make(map[int64]*bucketAgg),
		openBucket: noBucket,
	}
}

// Engine owns every trigger bound to one table's filters, plus the
// resulting alert store.
type Engine struct {
	schema *schema.Schema
	logger *zap.Logger

	mu       sync.RWMutex
	triggers map[string]*triggerState

	alertsMu sync.Mutex
	alerts   *skiplist.SkipList[int64, *[]Alert]
}

// NewEngine creates an empty trigger/alert engine.
func NewEngine(s *schema.Schema, logger *zap.Logger) *Engine {
	return &Engine{
		schema:   s,
		logger:   logger,
		triggers: make(map[string]*triggerState),
		alerts:   skiplist.New[int64, *[]Alert](),
	}
}

// AddTrigger compiles exprText and binds it to filterName. filterExists
// validates filterName against the table's filter registry without
// this package importing the filter package.
func (e *Engine) AddTrigger(name, filterName, exprText string, filterExists func(string) bool) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if _, exists := e.triggers[name]; exists {
		return errors.Management("trigger %q already exists", name)
	}
	if !filterExists(filterName) {
		return errors.Management("unknown filter %q", filterName)
	}

	compiled, err := exprlang.CompileTrigger(e.schema, exprText)
	if err != nil {
		return errors.Management("failed to compile trigger %q: %v", name, err)
	}

	var column *schema.Column
	if compiled.Column != "" {
		col, _ := e.schema.Column(compiled.Column)
		column = &col
	}

	e.triggers[name] = newTriggerState(name, filterName, compiled, column)
	e.logger.Info("trigger registered",
		zap.String("name", name), zap.String("filter", filterName), zap.String("expr", exprText))
	return nil
}

// RemoveTrigger drops a registered trigger.
func (e *Engine) RemoveTrigger(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, ok := e.triggers[name]; !ok {
		return errors.Management("unknown trigger %q", name)
	}
	delete(e.triggers, name)
	return nil
}

// OnMatch is called once per record per filter it matched. It updates
// the aggregate of every trigger bound to filterName and, on a bucket
// transition, evaluates and closes the previous bucket.
func (e *Engine) OnMatch(filterName string, tsNs int64, record []byte) {
	bucketMs := tsNs / int64(1e6)

	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ts := range e.triggers {
		if ts.filterName != filterName {
			continue
		}
		e.update(ts, bucketMs, record)
	}
}

func (e *Engine) update(ts *triggerState, bucketMs int64, record []byte) {
	ts.mu.Lock()
	defer ts.mu.Unlock()

	if ts.openBucket == noBucket {
		ts.openBucket = bucketMs
	} else if bucketMs > ts.openBucket {
		e.evaluate(ts, ts.openBucket)
		ts.openBucket = bucketMs
	}
	// Late, out-of-order buckets (bucketMs < openBucket) still accumulate
	// but never re-trigger an evaluation of an already-closed bucket.

	agg, ok := ts.aggregates[bucketMs]
	if !ok {
		agg = &bucketAgg{}
		ts.aggregates[bucketMs] = agg
	}

	var value float64
	hasColumn := ts.column != nil
	if hasColumn {
		v := schema.DecodeValue(record, *ts.column)
		value, _ = schema.AsFloat64(v)
	}
	agg.add(hasColumn, value)
}

// evaluate runs ts's compiled expression against bucket's closed
// aggregate, emitting an alert into the store if it fires. Caller must
// hold ts.mu.
func (e *Engine) evaluate(ts *triggerState, bucket int64) {
	agg, ok := ts.aggregates[bucket]
	if !ok {
		return
	}
	fired, value := ts.compiled.Evaluate(agg.agg)
	if !fired {
		return
	}
	alert := Alert{
		TriggerName: ts.name,
		BucketMs:    bucket,
		Value:       value,
		Message: fmt.Sprintf("trigger %q fired on filter %q at bucket %d: %s %s %g = %g",
			ts.name, ts.filterName, bucket, ts.compiled.Agg, ts.compiled.Op, ts.compiled.Threshold, value),
	}

	e.alertsMu.Lock()
	list := e.alerts.GetOrInsert(bucket, func() *[]Alert { return &[]Alert{} })
	*list = append(*list, alert)
	e.alertsMu.Unlock()

	e.logger.Info("alert fired",
		zap.String("trigger", ts.name), zap.Int64("bucket_ms", bucket), zap.Float64("value", value))
}

// GetAlerts returns every alert whose bucket falls in [beginMs, endMs],
// in ascending bucket order and emission order within a bucket.
func (e *Engine) GetAlerts(beginMs, endMs int64) []Alert {
	e.alertsMu.Lock()
	entries := e.alerts.Range(beginMs, endMs)
	e.alertsMu.Unlock()

	var out []Alert
	for _, entry := range entries {
		out = append(out, (*entry.Value)...)
	}
	return out
}

// Has reports whether name is a registered trigger.
func (e *Engine) Has(name string) bool {
	e.mu.RLock()
	defer e.mu.RUnlock()
	_, ok := e.triggers[name]
	return ok
}
