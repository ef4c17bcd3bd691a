package alert

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/schema"
)

func buildSchema(t *testing.T) *schema.Schema {
	s, err := schema.New([]schema.ColumnSpec{
		{Name: "a", Type: schema.TypeBool},
		{Name: "e", Type: schema.TypeLong},
	})
	require.NoError(t, err)
	return s
}

func buildRecord(t *testing.T, s *schema.Schema, tsNs int64, a bool, e int64) []byte {
	colTs, _ := s.Column(schema.TimestampColumnName)
	colA, _ := s.Column("a")
	colE, _ := s.Column("e")

	rec := make([]byte, s.RecordSize)
	require.NoError(t, schema.EncodeValue(rec, colTs, tsNs))
	require.NoError(t, schema.EncodeValue(rec, colA, a))
	require.NoError(t, schema.EncodeValue(rec, colE, e))
	return rec
}

func alwaysExists(string) bool { return true }

func TestAddTrigger_UnknownFilterFails(t *testing.T) {
	s := buildSchema(t)
	e := NewEngine(s, zap.NewNop())
	err := e.AddTrigger("t1", "missing", "COUNT() > 2", func(string) bool { return false })
	assert.Error(t, err)
}

func TestAddTrigger_DuplicateFails(t *testing.T) {
	s := buildSchema(t)
	e := NewEngine(s, zap.NewNop())
	require.NoError(t, e.AddTrigger("t1", "all_true", "COUNT() > 2", alwaysExists))
	assert.Error(t, e.AddTrigger("t1", "all_true", "COUNT() > 2", alwaysExists))
}

func TestOnMatch_CountTriggerFiresOnBucketTransition(t *testing.T) {
	s := buildSchema(t)
	eng := NewEngine(s, zap.NewNop())
	require.NoError(t, eng.AddTrigger("many_true", "all_true", "COUNT() > 2", alwaysExists))

	const T = int64(5000)
	for i := 0; i < 3; i++ {
		rec := buildRecord(t, s, T*1_000_000, true, 1)
		eng.OnMatch("all_true", T*1_000_000, rec)
	}
	// Not yet closed: bucket T is still open.
	assert.Empty(t, eng.GetAlerts(T, T))

	// An append in the next bucket closes bucket T and evaluates it.
	next := buildRecord(t, s, (T+1)*1_000_000, true, 1)
	eng.OnMatch("all_true", (T+1)*1_000_000, next)

	alerts := eng.GetAlerts(T, T)
	require.Len(t, alerts, 1)
	assert.Equal(t, "many_true", alerts[0].TriggerName)
	assert.Equal(t, T, alerts[0].BucketMs)
	assert.Equal(t, float64(3), alerts[0].Value)
}

func TestOnMatch_SumTriggerTracksColumn(t *testing.T) {
	s := buildSchema(t)
	eng := NewEngine(s, zap.NewNop())
	require.NoError(t, eng.AddTrigger("big_sum", "f1", "SUM(e) > 50", alwaysExists))

	const T = int64(10)
	eng.OnMatch("f1", T*1_000_000, buildRecord(t, s, T*1_000_000, true, 20))
	eng.OnMatch("f1", T*1_000_000, buildRecord(t, s, T*1_000_000, true, 40))
	assert.Empty(t, eng.GetAlerts(T, T))

	eng.OnMatch("f1", (T+1)*1_000_000, buildRecord(t, s, (T+1)*1_000_000, true, 1))

	alerts := eng.GetAlerts(T, T)
	require.Len(t, alerts, 1)
	assert.Equal(t, float64(60), alerts[0].Value)
}

func TestOnMatch_DoesNotFireWhenThresholdNotMet(t *testing.T) {
	s := buildSchema(t)
	eng := NewEngine(s, zap.NewNop())
	require.NoError(t, eng.AddTrigger("many_true", "all_true", "COUNT() > 2", alwaysExists))

	const T = int64(5000)
	eng.OnMatch("all_true", T*1_000_000, buildRecord(t, s, T*1_000_000, true, 1))
	eng.OnMatch("all_true", (T+1)*1_000_000, buildRecord(t, s, (T+1)*1_000_000, true, 1))

	assert.Empty(t, eng.GetAlerts(T, T))
}

func TestOnMatch_LateBucketDoesNotReevaluateClosedBucket(t *testing.T) {
	s := buildSchema(t)
	eng := NewEngine(s, zap.NewNop())
	require.NoError(t, eng.AddTrigger("many_true", "all_true", "COUNT() > 0", alwaysExists))

	const T = int64(100)
	eng.OnMatch("all_true", T*1_000_000, buildRecord(t, s, T*1_000_000, true, 1))
	eng.OnMatch("all_true", (T+1)*1_000_000, buildRecord(t, s, (T+1)*1_000_000, true, 1))
	require.Len(t, eng.GetAlerts(T, T), 1)

	// A late record for bucket T arrives after T has already closed: it
	// updates the aggregate but must not produce a second alert for T.
	eng.OnMatch("all_true", T*1_000_000, buildRecord(t, s, T*1_000_000, true, 1))
	assert.Len(t, eng.GetAlerts(T, T), 1)
}

func TestRemoveTrigger(t *testing.T) {
	s := buildSchema(t)
	eng := NewEngine(s, zap.NewNop())
	require.NoError(t, eng.AddTrigger("t1", "all_true", "COUNT() > 2", alwaysExists))
	require.NoError(t, eng.RemoveTrigger("t1"))
	assert.Error(t, eng.RemoveTrigger("t1"))
}
