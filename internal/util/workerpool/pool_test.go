package workerpool

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPool(t *testing.T, maxWorkers, queueSize int) *WorkerPool {
	pool := NewWorkerPool(&Config{Name: "test", MaxWorkers: maxWorkers, QueueSize: queueSize, Logger: zap.NewNop()})
	t.Cleanup(func() { pool.Stop(0) })
	return pool
}

// recordScan returns a ShardScanFn over an in-memory slice of
// fixed-size records, mirroring how index.Manager.backfill reads
// shards out of a table's record store.
func recordScan(records [][]byte, recordSize int64) ShardScanFn {
	return func(_ context.Context, startOffset, count int64) ([][]byte, error) {
		start := startOffset / recordSize
		out := make([][]byte, count)
		copy(out, records[start:start+count])
		return out, nil
	}
}

func TestWorkerPool_ScanShardsOrdered_PreservesOffsetOrder(t *testing.T) {
	pool := testPool(t, 4, 16)

	const recordSize = int64(8)
	const numRecords = int64(500)
	records := make([][]byte, numRecords)
	for i := range records {
		rec := make([]byte, recordSize)
		rec[0] = byte(i)
		records[i] = rec
	}

	merged, err := pool.ScanShardsOrdered(context.Background(), recordSize, numRecords, 37, recordScan(records, recordSize))
	require.NoError(t, err)
	require.Len(t, merged, int(numRecords))
	for i := range merged {
		assert.Equal(t, records[i], merged[i], "shard %d out of order after merge", i)
	}
}

func TestWorkerPool_ScanShardsOrdered_SaturatedQueueRunsInline(t *testing.T) {
	// A single worker and a one-slot queue saturate at once, so most of
	// the 20 shards hit the inline fallback in ScanShardsOrdered.
	pool := testPool(t, 1, 1)

	const recordSize = int64(4)
	const numRecords = int64(200)
	records := make([][]byte, numRecords)
	for i := range records {
		records[i] = []byte{byte(i)}
	}

	merged, err := pool.ScanShardsOrdered(context.Background(), recordSize, numRecords, 10, recordScan(records, recordSize))
	require.NoError(t, err)
	assert.Len(t, merged, int(numRecords))
}

func TestWorkerPool_ScanShardsOrdered_PropagatesShardError(t *testing.T) {
	pool := testPool(t, 2, 8)
	wantErr := errors.New("shard read failed")

	scan := func(_ context.Context, startOffset, count int64) ([][]byte, error) {
		if startOffset == 0 {
			return nil, wantErr
		}
		return make([][]byte, count), nil
	}

	_, err := pool.ScanShardsOrdered(context.Background(), 8, 100, 10, scan)
	require.Error(t, err)
}

func TestWorkerPool_ScanShardsOrdered_CancelledContextAborts(t *testing.T) {
	pool := testPool(t, 2, 8)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := pool.ScanShardsOrdered(ctx, 8, 1000, 10, recordScan(make([][]byte, 1000), 8))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestWorkerPool_ScanShardsOrdered_ZeroRecordsReturnsNil(t *testing.T) {
	pool := testPool(t, 2, 8)
	merged, err := pool.ScanShardsOrdered(context.Background(), 8, 0, 10, nil)
	require.NoError(t, err)
	assert.Nil(t, merged)
}

func TestWorkerPool_TrySubmit_RejectsAfterStop(t *testing.T) {
	pool := testPool(t, 1, 1)
	require.NoError(t, pool.Stop(0))

	ok := pool.TrySubmit(Task{ID: "x", Fn: func(context.Context) error { return nil }})
	assert.False(t, ok)
}
