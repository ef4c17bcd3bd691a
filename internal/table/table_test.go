package table

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/dialogtable/dialogtable/internal/model"
	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/util/workerpool"
)

func testPool(t *testing.T) *workerpool.WorkerPool {
	pool := workerpool.NewWorkerPool(&workerpool.Config{Name: "test", MaxWorkers: 2, QueueSize: 8, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(0) })
	return pool
}

func testTableSchema(t *testing.T) *schema.Schema {
	s, err := schema.New([]schema.ColumnSpec{
		{Name: "a", Type: schema.TypeBool},
		{Name: "e", Type: schema.TypeLong},
		{Name: "h", Type: schema.TypeString, StringWidth: 8},
	})
	require.NoError(t, err)
	return s
}

func testTable(t *testing.T) (*Table, *schema.Schema) {
	s := testTableSchema(t)
	tbl := New("events", 0, s, model.StorageModeInMemory, testPool(t), zap.NewNop())
	return tbl, s
}

func buildTableRecord(t *testing.T, s *schema.Schema, tsNs int64, a bool, e int64, h string) []byte {
	colTs, _ := s.Column(schema.TimestampColumnName)
	colA, _ := s.Column("a")
	colE, _ := s.Column("e")
	colH, _ := s.Column("h")

	rec := make([]byte, s.RecordSize)
	require.NoError(t, schema.EncodeValue(rec, colTs, tsNs))
	require.NoError(t, schema.EncodeValue(rec, colA, a))
	require.NoError(t, schema.EncodeValue(rec, colE, e))
	require.NoError(t, schema.EncodeValue(rec, colH, h))
	return rec
}

func TestTable_AppendAndRead(t *testing.T) {
	tbl, s := testTable(t)
	rec := buildTableRecord(t, s, 1000, true, 42, "x")

	off, err := tbl.Append(rec)
	require.NoError(t, err)
	assert.Equal(t, int64(0), off)
	assert.Equal(t, int64(1), tbl.NumRecords())

	got, err := tbl.Read(off, 1)
	require.NoError(t, err)
	assert.Equal(t, rec, got)
}

func TestTable_AppendBatch_ConsecutiveOffsets(t *testing.T) {
	tbl, s := testTable(t)
	batch := [][]byte{
		buildTableRecord(t, s, 1, false, 1, "a"),
		buildTableRecord(t, s, 2, false, 2, "b"),
		buildTableRecord(t, s, 3, false, 3, "c"),
	}

	first, err := tbl.AppendBatch(batch)
	require.NoError(t, err)
	assert.Equal(t, int64(0), first)
	assert.Equal(t, int64(3), tbl.NumRecords())

	recordSize := int64(tbl.RecordSize())
	for i := range batch {
		got, err := tbl.Read(first+int64(i)*recordSize, 1)
		require.NoError(t, err)
		assert.Equal(t, batch[i], got)
	}
}

func TestTable_AddFilterAndExecuteAdhoc(t *testing.T) {
	tbl, s := testTable(t)
	for i, v := range []int64{0, 1, 10, 100, 1000, 10000} {
		_, err := tbl.Append(buildTableRecord(t, s, int64(i), false, v, "x"))
		require.NoError(t, err)
	}

	stream, err := tbl.ExecuteFilter("e == 10000")
	require.NoError(t, err)
	offsets := stream.Remaining()
	require.Len(t, offsets, 1)

	rec, err := tbl.Read(offsets[0], 1)
	require.NoError(t, err)
	colE, _ := s.Column("e")
	assert.Equal(t, int64(10000), schema.DecodeValue(rec, colE))
}

func TestTable_AddFilterAndQueryByTime(t *testing.T) {
	tbl, s := testTable(t)
	require.NoError(t, tbl.AddFilter("hi_e", "e > 500"))

	for i, v := range []int64{0, 1, 10, 100, 1000, 10000, 100000, 1000000} {
		_, err := tbl.Append(buildTableRecord(t, s, int64(i)*1000, false, v, "x"))
		require.NoError(t, err)
	}

	stream, err := tbl.QueryFilter("hi_e", 0, 1<<62)
	require.NoError(t, err)
	assert.Len(t, stream.Remaining(), 4)
}

func TestTable_TriggerFiresAlert(t *testing.T) {
	tbl, s := testTable(t)
	require.NoError(t, tbl.AddFilter("all_true", "a == true"))
	require.NoError(t, tbl.AddTrigger("many_true", "all_true", "COUNT() > 2"))

	const bucketMs = int64(5000)
	for i := 0; i < 3; i++ {
		_, err := tbl.Append(buildTableRecord(t, s, bucketMs*1_000_000, true, 1, "x"))
		require.NoError(t, err)
	}
	_, err := tbl.Append(buildTableRecord(t, s, (bucketMs+1)*1_000_000, true, 1, "x"))
	require.NoError(t, err)

	alerts := tbl.GetAlerts(bucketMs, bucketMs)
	require.Len(t, alerts, 1)
	assert.Equal(t, "many_true", alerts[0].TriggerName)
	assert.Equal(t, float64(3), alerts[0].Value)
}

func TestTable_AddTrigger_UnknownFilterFails(t *testing.T) {
	tbl, _ := testTable(t)
	err := tbl.AddTrigger("t1", "missing", "COUNT() > 2")
	assert.Error(t, err)
}

func TestTable_AddIndex_DuplicateColumnFails(t *testing.T) {
	tbl, _ := testTable(t)
	require.NoError(t, tbl.AddIndex("e", 1.0))
	assert.Error(t, tbl.AddIndex("e", 1.0))
}

func TestTable_AddIndex_NoGapUnderConcurrentAppends(t *testing.T) {
	tbl, s := testTable(t)
	for i := int64(0); i < 100; i++ {
		_, err := tbl.Append(buildTableRecord(t, s, i, false, i, "x"))
		require.NoError(t, err)
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := int64(100); i < 200; i++ {
			_, err := tbl.Append(buildTableRecord(t, s, i, false, i, "x"))
			assert.NoError(t, err)
		}
	}()

	require.NoError(t, tbl.AddIndex("e", 1.0))
	wg.Wait()

	ix, ok := tbl.indexMgr.Get("e")
	require.True(t, ok)
	assert.EqualValues(t, tbl.NumRecords(), ix.Count())

	offsets := ix.Scan(0, 1000)
	assert.Len(t, offsets, int(tbl.NumRecords()), "every record appended before or during AddIndex must end up indexed, with no gap")
}

func TestTable_FormattedRead_UsesCache(t *testing.T) {
	tbl, s := testTable(t)
	off, err := tbl.Append(buildTableRecord(t, s, 1, true, 7, "hi"))
	require.NoError(t, err)

	first, err := tbl.FormattedRead(off)
	require.NoError(t, err)
	assert.Contains(t, first, "e=7")
	cached, ok := tbl.readCache.get(off)
	require.True(t, ok)
	assert.Equal(t, first, cached)

	second, err := tbl.FormattedRead(off)
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestTable_GetSchemaAndRecordSize(t *testing.T) {
	tbl, s := testTable(t)
	assert.Equal(t, s, tbl.Schema())
	assert.Equal(t, s.RecordSize, tbl.RecordSize())
}

type fakeWAL struct {
	appended []int64
}

func (f *fakeWAL) Append(offset int64, record []byte) error {
	f.appended = append(f.appended, offset)
	return nil
}

func TestTable_SetWriteAhead_ReceivesAppends(t *testing.T) {
	tbl, s := testTable(t)
	wal := &fakeWAL{}
	tbl.SetWriteAhead(wal)

	_, err := tbl.Append(buildTableRecord(t, s, 1, true, 1, "x"))
	require.NoError(t, err)
	_, err = tbl.Append(buildTableRecord(t, s, 2, true, 2, "y"))
	require.NoError(t, err)

	assert.Len(t, wal.appended, 2)
}
