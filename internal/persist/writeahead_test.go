package persist

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testWAL(t *testing.T, cfg *WriteAheadConfig) *WriteAheadLog {
	w, err := NewWriteAheadLog(cfg, "events", zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { w.Close() })
	return w
}

func TestWriteAheadLog_AppendAndRecover(t *testing.T) {
	dir := t.TempDir()
	w := testWAL(t, &WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20, BufferSize: 64})

	require.NoError(t, w.Append(0, []byte("first record")))
	require.NoError(t, w.Append(1, []byte("second record")))
	require.NoError(t, w.Close())

	w2, err := NewWriteAheadLog(&WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20, BufferSize: 64}, "events", zap.NewNop())
	require.NoError(t, err)
	defer w2.Close()

	var entries []WalEntry
	count, err := w2.Recover(func(e WalEntry) error {
		entries = append(entries, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 2, count)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(0), entries[0].Offset)
	assert.Equal(t, "first record", string(entries[0].Record))
	assert.Equal(t, int64(1), entries[1].Offset)
	assert.Equal(t, "second record", string(entries[1].Record))
}

func TestWriteAheadLog_SyncWritesFlushesImmediately(t *testing.T) {
	dir := t.TempDir()
	w := testWAL(t, &WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20, SyncWrites: true, BufferSize: 4096})
	require.NoError(t, w.Append(0, []byte("payload")))

	w2, err := NewWriteAheadLog(&WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20}, "events", zap.NewNop())
	require.NoError(t, err)
	defer w2.Close()

	count, err := w2.Recover(func(WalEntry) error { return nil })
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestWriteAheadLog_RecoverSkipsCorruptTrailingFrame(t *testing.T) {
	dir := t.TempDir()
	w := testWAL(t, &WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20, SyncWrites: true, BufferSize: 64})
	require.NoError(t, w.Append(0, []byte("good record")))
	require.NoError(t, w.Close())

	segments, err := filepath.Glob(filepath.Join(dir, "events", "wal-*.log"))
	require.NoError(t, err)
	require.Len(t, segments, 1)

	f, err := os.OpenFile(segments[0], os.O_APPEND|os.O_WRONLY, 0644)
	require.NoError(t, err)
	_, err = f.Write([]byte{0x01, 0x02, 0x03})
	require.NoError(t, err)
	require.NoError(t, f.Close())

	w2, err := NewWriteAheadLog(&WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20}, "events", zap.NewNop())
	require.NoError(t, err)
	defer w2.Close()

	var recovered []WalEntry
	count, err := w2.Recover(func(e WalEntry) error {
		recovered = append(recovered, e)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, count)
	assert.Equal(t, "good record", string(recovered[0].Record))
}

func TestWriteAheadLog_RotatesOnCheckRotation(t *testing.T) {
	dir := t.TempDir()
	w := testWAL(t, &WriteAheadConfig{DataDir: dir, SegmentSize: 1, SyncWrites: true, BufferSize: 64})
	require.NoError(t, w.Append(0, []byte("forces rotation next check")))

	w.checkRotation()
	time.Sleep(5 * time.Millisecond)

	segments, err := filepath.Glob(filepath.Join(dir, "events", "wal-*.log"))
	require.NoError(t, err)
	assert.GreaterOrEqual(t, len(segments), 1)
}

func TestWriteAheadLog_DiskManagerRejectsWhenCircuitBroken(t *testing.T) {
	dir := t.TempDir()
	w := testWAL(t, &WriteAheadConfig{DataDir: dir, SegmentSize: 1 << 20, BufferSize: 64})

	dm, err := NewDiskManager(DefaultConfig(filepath.Join(dir, "events")), zap.NewNop())
	require.NoError(t, err)
	dm.isCircuitBroken = true
	dm.lastCheck = time.Now()
	w.SetDiskManager(dm)

	err = w.Append(0, []byte("rejected"))
	require.Error(t, err)
	assert.True(t, IsCircuitBroken(err))
}
