package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the dialog table engine.
type Metrics struct {
	// Append operation metrics
	AppendRequestsTotal    prometheus.Counter
	AppendRequestsDuration prometheus.Histogram
	AppendRequestsBytes    prometheus.Histogram
	AppendBatchSizeTotal   prometheus.Histogram
	ReadRequestsTotal      prometheus.Counter
	ReadRequestsDuration   prometheus.Histogram
	ReadRequestsBytes      prometheus.Histogram

	// Read cache metrics
	CacheHitsTotal      prometheus.Counter
	CacheMissesTotal    prometheus.Counter
	CacheEvictionsTotal prometheus.Counter
	CacheEntriesTotal   prometheus.Gauge

	// Table metrics
	TablesTotal           prometheus.Gauge
	TableRecordsTotal     prometheus.GaugeVec
	IndexBackfillsTotal   prometheus.Counter
	IndexBackfillDuration prometheus.Histogram
	IndexScanDuration     prometheus.Histogram

	// Filter metrics
	FiltersTotal             prometheus.Gauge
	FilterEvaluationsTotal   prometheus.Counter
	FilterMatchesTotal       prometheus.CounterVec
	FilterEvaluationDuration prometheus.Histogram
	AdhocQueriesTotal        prometheus.Counter
	AdhocQueryDuration       prometheus.Histogram

	// Trigger/alert metrics
	TriggersTotal         prometheus.Gauge
	AlertsFiredTotal      prometheus.CounterVec
	BucketsEvaluatedTotal prometheus.Counter

	// Cursor/session metrics
	ActiveSessionsTotal  prometheus.Gauge
	ActiveCursorsTotal   prometheus.GaugeVec
	GetMoreRequestsTotal prometheus.Counter

	// System metrics
	MemoryUsageBytes prometheus.Gauge
	GoroutinesTotal  prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics for one process.
func NewMetrics(nodeID string) *Metrics {
	labels := prometheus.Labels{"node_id": nodeID}

	return &Metrics{
		AppendRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "append_requests_total",
			Help:        "Total number of append requests",
			ConstLabels: labels,
		}),
		AppendRequestsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "append_requests_duration_seconds",
			Help:        "Histogram of append request durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		AppendRequestsBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "append_requests_bytes",
			Help:        "Histogram of appended record sizes in bytes",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(64, 2, 10),
		}),
		AppendBatchSizeTotal: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "append_batch_size",
			Help:        "Histogram of append_batch record counts",
			ConstLabels: labels,
			Buckets:     prometheus.LinearBuckets(1, 8, 16),
		}),
		ReadRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "read_requests_total",
			Help:        "Total number of read requests",
			ConstLabels: labels,
		}),
		ReadRequestsDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "read_requests_duration_seconds",
			Help:        "Histogram of read request durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		ReadRequestsBytes: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "read_requests_bytes",
			Help:        "Histogram of read response sizes in bytes",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(64, 2, 10),
		}),

		CacheHitsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "cache",
			Name:        "hits_total",
			Help:        "Total number of formatted-read cache hits",
			ConstLabels: labels,
		}),
		CacheMissesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "cache",
			Name:        "misses_total",
			Help:        "Total number of formatted-read cache misses",
			ConstLabels: labels,
		}),
		CacheEvictionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "cache",
			Name:        "evictions_total",
			Help:        "Total number of cache evictions",
			ConstLabels: labels,
		}),
		CacheEntriesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "cache",
			Name:        "entries_total",
			Help:        "Current number of entries in the formatted-read cache",
			ConstLabels: labels,
		}),

		TablesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "tables_total",
			Help:        "Current number of registered tables",
			ConstLabels: labels,
		}),
		TableRecordsTotal: *promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "table",
			Name:        "records_total",
			Help:        "Current number of records by table",
			ConstLabels: labels,
		}, []string{"table"}),
		IndexBackfillsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "index",
			Name:        "backfills_total",
			Help:        "Total number of index backfills triggered by add_index",
			ConstLabels: labels,
		}),
		IndexBackfillDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "index",
			Name:        "backfill_duration_seconds",
			Help:        "Histogram of index backfill durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		IndexScanDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "index",
			Name:        "scan_duration_seconds",
			Help:        "Histogram of index-assisted scan durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		FiltersTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "filters_total",
			Help:        "Current number of named filters across all tables",
			ConstLabels: labels,
		}),
		FilterEvaluationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "evaluations_total",
			Help:        "Total number of per-append filter evaluations",
			ConstLabels: labels,
		}),
		FilterMatchesTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "matches_total",
			Help:        "Total number of matching appends by filter name",
			ConstLabels: labels,
		}, []string{"filter"}),
		FilterEvaluationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "evaluation_duration_seconds",
			Help:        "Histogram of per-append filter evaluation durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),
		AdhocQueriesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "adhoc_queries_total",
			Help:        "Total number of ad-hoc filter queries",
			ConstLabels: labels,
		}),
		AdhocQueryDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "dialogtable",
			Subsystem:   "filter",
			Name:        "adhoc_query_duration_seconds",
			Help:        "Histogram of ad-hoc filter query durations",
			ConstLabels: labels,
			Buckets:     prometheus.DefBuckets,
		}),

		TriggersTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "alert",
			Name:        "triggers_total",
			Help:        "Current number of triggers across all tables",
			ConstLabels: labels,
		}),
		AlertsFiredTotal: *promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "alert",
			Name:        "fired_total",
			Help:        "Total number of alerts fired by trigger name",
			ConstLabels: labels,
		}, []string{"trigger"}),
		BucketsEvaluatedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "alert",
			Name:        "buckets_evaluated_total",
			Help:        "Total number of trigger time buckets closed and evaluated",
			ConstLabels: labels,
		}),

		ActiveSessionsTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "session",
			Name:        "active_total",
			Help:        "Current number of registered RPC handler sessions",
			ConstLabels: labels,
		}),
		ActiveCursorsTotal: *promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "session",
			Name:        "active_cursors_total",
			Help:        "Current number of open cursors by kind",
			ConstLabels: labels,
		}, []string{"kind"}),
		GetMoreRequestsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace:   "dialogtable",
			Subsystem:   "session",
			Name:        "get_more_requests_total",
			Help:        "Total number of get_more pagination requests",
			ConstLabels: labels,
		}),

		MemoryUsageBytes: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "system",
			Name:        "memory_usage_bytes",
			Help:        "Current process memory usage in bytes",
			ConstLabels: labels,
		}),
		GoroutinesTotal: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace:   "dialogtable",
			Subsystem:   "system",
			Name:        "goroutines_total",
			Help:        "Current number of goroutines",
			ConstLabels: labels,
		}),
	}
}

// RecordAppend records metrics for one append call.
func (m *Metrics) RecordAppend(duration float64, bytes int) {
	m.AppendRequestsTotal.Inc()
	m.AppendRequestsDuration.Observe(duration)
	m.AppendRequestsBytes.Observe(float64(bytes))
}

// RecordAppendBatch records metrics for one append_batch call.
func (m *Metrics) RecordAppendBatch(duration float64, batchSize int) {
	m.AppendRequestsTotal.Inc()
	m.AppendRequestsDuration.Observe(duration)
	m.AppendBatchSizeTotal.Observe(float64(batchSize))
}

// RecordRead records metrics for one read call.
func (m *Metrics) RecordRead(duration float64, bytes int) {
	m.ReadRequestsTotal.Inc()
	m.ReadRequestsDuration.Observe(duration)
	m.ReadRequestsBytes.Observe(float64(bytes))
}

// RecordCacheHit records a formatted-read cache hit.
func (m *Metrics) RecordCacheHit() {
	m.CacheHitsTotal.Inc()
}

// RecordCacheMiss records a formatted-read cache miss.
func (m *Metrics) RecordCacheMiss() {
	m.CacheMissesTotal.Inc()
}

// RecordCacheEviction records a formatted-read cache eviction.
func (m *Metrics) RecordCacheEviction() {
	m.CacheEvictionsTotal.Inc()
}

// UpdateCacheSize updates the formatted-read cache entry gauge.
func (m *Metrics) UpdateCacheSize(entries int64) {
	m.CacheEntriesTotal.Set(float64(entries))
}

// UpdateTableStats updates per-table and aggregate table gauges.
func (m *Metrics) UpdateTableStats(tableCount int, perTableRecords map[string]int64) {
	m.TablesTotal.Set(float64(tableCount))
	for name, count := range perTableRecords {
		m.TableRecordsTotal.WithLabelValues(name).Set(float64(count))
	}
}

// RecordIndexBackfill records the duration of an add_index backfill scan.
func (m *Metrics) RecordIndexBackfill(duration float64) {
	m.IndexBackfillsTotal.Inc()
	m.IndexBackfillDuration.Observe(duration)
}

// RecordIndexScan records the duration of an index-assisted scan.
func (m *Metrics) RecordIndexScan(duration float64) {
	m.IndexScanDuration.Observe(duration)
}

// UpdateFilterStats updates the filter/trigger count gauges.
func (m *Metrics) UpdateFilterStats(filterCount, triggerCount int) {
	m.FiltersTotal.Set(float64(filterCount))
	m.TriggersTotal.Set(float64(triggerCount))
}

// RecordFilterEvaluation records one per-append filter evaluation pass.
func (m *Metrics) RecordFilterEvaluation(duration float64, matchedFilters []string) {
	m.FilterEvaluationsTotal.Inc()
	m.FilterEvaluationDuration.Observe(duration)
	for _, name := range matchedFilters {
		m.FilterMatchesTotal.WithLabelValues(name).Inc()
	}
}

// RecordAdhocQuery records one ad-hoc or combined filter query.
func (m *Metrics) RecordAdhocQuery(duration float64) {
	m.AdhocQueriesTotal.Inc()
	m.AdhocQueryDuration.Observe(duration)
}

// RecordAlertFired records one fired alert and one bucket evaluation.
func (m *Metrics) RecordAlertFired(triggerName string) {
	m.AlertsFiredTotal.WithLabelValues(triggerName).Inc()
	m.BucketsEvaluatedTotal.Inc()
}

// RecordBucketEvaluated records a bucket evaluation that did not fire.
func (m *Metrics) RecordBucketEvaluated() {
	m.BucketsEvaluatedTotal.Inc()
}

// UpdateSessionStats updates the session/cursor gauges.
func (m *Metrics) UpdateSessionStats(sessionCount int, cursorsByKind map[string]int) {
	m.ActiveSessionsTotal.Set(float64(sessionCount))
	for kind, count := range cursorsByKind {
		m.ActiveCursorsTotal.WithLabelValues(kind).Set(float64(count))
	}
}

// RecordGetMore records one get_more pagination request.
func (m *Metrics) RecordGetMore() {
	m.GetMoreRequestsTotal.Inc()
}

// UpdateSystemStats updates process-level gauges.
func (m *Metrics) UpdateSystemStats(memoryUsage int64, goroutines int) {
	m.MemoryUsageBytes.Set(float64(memoryUsage))
	m.GoroutinesTotal.Set(float64(goroutines))
}
