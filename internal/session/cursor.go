package session

import (
	"fmt"
	"strings"

	"github.com/dialogtable/dialogtable/internal/alert"
	"github.com/dialogtable/dialogtable/internal/filter"
)

// alertStream is an OffsetStream-shaped cursor over a fixed, already
// time-ordered slice of alerts (spec §4.9's alerts_by_time).
type alertStream struct {
	alerts []alert.Alert
	pos    int
}

func newAlertStream(alerts []alert.Alert) *alertStream {
	return &alertStream{alerts: alerts}
}

func (s *alertStream) hasMore() bool {
	return s.pos < len(s.alerts)
}

func (s *alertStream) next() (alert.Alert, bool) {
	if s.pos >= len(s.alerts) {
		return alert.Alert{}, false
	}
	a := s.alerts[s.pos]
	s.pos++
	return a, true
}

// formatAlert renders a into the wire text line spec §6 specifies:
// `trigger_name|bucket_ms|value|message\n`.
func formatAlert(a alert.Alert) string {
	return fmt.Sprintf("%s|%d|%g|%s\n", a.TriggerName, a.BucketMs, a.Value, a.Message)
}

// recordCursor reads record bytes out of a table given an offset
// stream, used by the adhoc/predef/combined "_more" routines.
type recordCursor struct {
	stream *filter.OffsetStream
}

// drainRecords pulls up to batchSize offsets from c, reads each
// record's raw bytes via readFn, and concatenates them, returning the
// batch and whether the stream still has more after it.
func (c *recordCursor) drainRecords(batchSize int, readFn func(offset int64) ([]byte, error)) ([]byte, int, bool, error) {
	var buf strings.Builder
	n := 0
	for n < batchSize && c.stream.HasMore() {
		offset, ok := c.stream.Next()
		if !ok {
			break
		}
		rec, err := readFn(offset)
		if err != nil {
			return nil, 0, false, err
		}
		buf.Write(rec)
		n++
	}
	return []byte(buf.String()), n, c.stream.HasMore(), nil
}

// drainAlerts pulls up to batchSize alerts from s, rendering each as a
// text line, per the alerts_more routine.
func drainAlerts(s *alertStream, batchSize int) ([]byte, int, bool) {
	var buf strings.Builder
	n := 0
	for n < batchSize && s.hasMore() {
		a, ok := s.next()
		if !ok {
			break
		}
		buf.WriteString(formatAlert(a))
		n++
	}
	return []byte(buf.String()), n, s.hasMore()
}
