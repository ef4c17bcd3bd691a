// Package persist implements the optional write-ahead log collaborator
// for DURABLE and DURABLE_RELAXED tables (spec §4.3), adapted from the
// teacher's commit-log service.
package persist

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
)

// WriteAheadConfig holds settings for one table's write-ahead log.
type WriteAheadConfig struct {
	DataDir     string
	SegmentSize int64
	SyncWrites  bool
	BufferSize  int
	MaxAge      time.Duration
}

// entryHeader is the fixed-size prefix of one logged record:
// offset (8 bytes) + payload length (4 bytes). The payload is followed
// by a 4-byte CRC32 checksum (appendEntryChecksum).
const entryHeaderSize = 12

// WriteAheadLog appends records for one table to a rotating sequence of
// on-disk segment files, satisfying internal/table.WriteAheadLogger.
type WriteAheadLog struct {
	config      *WriteAheadConfig
	tableName   string
	logger      *zap.Logger
	mu          sync.Mutex
	currentFile *os.File
	writer      *bufio.Writer
	segmentID   int64
	stopChan    chan struct{}
	diskManager *DiskManager
}

// NewWriteAheadLog creates the write-ahead log for one table and opens
// its first segment.
func NewWriteAheadLog(cfg *WriteAheadConfig, tableName string, logger *zap.Logger) (*WriteAheadLog, error) {
	dir := filepath.Join(cfg.DataDir, tableName)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create write-ahead directory: %w", err)
	}

	w := &WriteAheadLog{
		config:    cfg,
		tableName: tableName,
		logger:    logger,
		segmentID: time.Now().Unix(),
		stopChan:  make(chan struct{}),
	}

	if err := w.openNewSegment(); err != nil {
		return nil, fmt.Errorf("failed to open write-ahead segment: %w", err)
	}

	dm, err := NewDiskManager(DefaultConfig(dir), logger)
	if err != nil {
		w.logger.Warn("disk manager unavailable for write-ahead log, writes will not be guarded by disk usage", zap.Error(err))
	} else {
		w.diskManager = dm
	}

	go w.rotationChecker()

	return w, nil
}

// SetDiskManager overrides the write-ahead log's disk usage guard, mainly
// so tests can inject one with tight thresholds. Passing nil disables the
// guard.
func (w *WriteAheadLog) SetDiskManager(dm *DiskManager) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.diskManager = dm
}

// Append writes one record and its offset to the current segment,
// implementing internal/table.WriteAheadLogger.
func (w *WriteAheadLog) Append(offset int64, record []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	header := make([]byte, entryHeaderSize)
	binary.LittleEndian.PutUint64(header[0:8], uint64(offset))
	binary.LittleEndian.PutUint32(header[8:12], uint32(len(record)))

	framed := appendEntryChecksum(append(header, record...))

	if w.diskManager != nil {
		if err := w.diskManager.CheckBeforeWrite(uint64(len(framed))); err != nil {
			return fmt.Errorf("write-ahead log rejected append: %w", err)
		}
	}

	if _, err := w.writer.Write(framed); err != nil {
		return fmt.Errorf("failed to write to write-ahead log: %w", err)
	}

	if w.config.SyncWrites {
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("failed to flush write-ahead log: %w", err)
		}
		if err := w.currentFile.Sync(); err != nil {
			return fmt.Errorf("failed to sync write-ahead log: %w", err)
		}
	}

	return nil
}

func (w *WriteAheadLog) openNewSegment() error {
	if w.writer != nil {
		w.writer.Flush()
	}
	if w.currentFile != nil {
		w.currentFile.Close()
	}

	dir := filepath.Join(w.config.DataDir, w.tableName)
	segmentPath := filepath.Join(dir, fmt.Sprintf("wal-%d.log", w.segmentID))
	file, err := os.OpenFile(segmentPath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open write-ahead segment file: %w", err)
	}

	w.currentFile = file
	bufSize := w.config.BufferSize
	if bufSize <= 0 {
		bufSize = 4096
	}
	w.writer = bufio.NewWriterSize(file, bufSize)
	w.segmentID = time.Now().Unix()

	w.logger.Info("opened new write-ahead segment", zap.String("table", w.tableName), zap.String("path", segmentPath))
	return nil
}

func (w *WriteAheadLog) rotationChecker() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			w.checkRotation()
		case <-w.stopChan:
			return
		}
	}
}

func (w *WriteAheadLog) checkRotation() {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.currentFile == nil {
		return
	}

	info, err := w.currentFile.Stat()
	if err != nil {
		w.logger.Error("failed to stat write-ahead segment", zap.Error(err))
		return
	}

	if w.config.SegmentSize > 0 && info.Size() >= w.config.SegmentSize {
		w.logger.Info("rotating write-ahead log due to size",
			zap.String("table", w.tableName),
			zap.Int64("size", info.Size()),
			zap.Int64("threshold", w.config.SegmentSize))

		if err := w.openNewSegment(); err != nil {
			w.logger.Error("failed to rotate write-ahead log", zap.Error(err))
		}
	}
}

// WalEntry is one recovered record: its original offset and payload.
type WalEntry struct {
	Offset int64
	Record []byte
}

// Recover replays every segment for this table in file order, calling
// replay with each entry in the order it was originally appended.
// An entry with a checksum mismatch or a truncated frame (a partially
// written tail from an unclean shutdown) ends replay of its segment: it
// and anything after it in that segment are dropped, and recovery goes
// on with the next segment.
func (w *WriteAheadLog) Recover(replay func(WalEntry) error) (int, error) {
	dir := filepath.Join(w.config.DataDir, w.tableName)
	files, err := filepath.Glob(filepath.Join(dir, "wal-*.log"))
	if err != nil {
		return 0, fmt.Errorf("failed to list write-ahead segments: %w", err)
	}

	recovered := 0
	for _, path := range files {
		count, err := w.recoverFromFile(path, replay)
		if err != nil {
			w.logger.Error("failed to recover write-ahead segment", zap.String("path", path), zap.Error(err))
			continue
		}
		recovered += count
	}

	w.logger.Info("write-ahead recovery completed", zap.String("table", w.tableName), zap.Int("entries", recovered))
	return recovered, nil
}

func (w *WriteAheadLog) recoverFromFile(path string, replay func(WalEntry) error) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}

	count := 0
	pos := 0
	for pos+entryHeaderSize+4 <= len(data) {
		header := data[pos : pos+entryHeaderSize]
		offset := int64(binary.LittleEndian.Uint64(header[0:8]))
		length := int(binary.LittleEndian.Uint32(header[8:12]))

		frameEnd := pos + entryHeaderSize + length + 4
		if frameEnd > len(data) {
			break
		}

		stripped, ok := validateAndStripEntryChecksum(data[pos:frameEnd])
		if !ok {
			w.logger.Warn("dropping corrupt write-ahead entry", zap.String("path", path), zap.Int("offset_in_file", pos))
			break
		}

		record := stripped[entryHeaderSize:]
		if err := replay(WalEntry{Offset: offset, Record: record}); err != nil {
			w.logger.Warn("failed to replay write-ahead entry", zap.Error(err))
		} else {
			count++
		}

		pos = frameEnd
	}

	return count, nil
}

// Close stops the rotation checker and closes the current segment.
// Calling Close again returns nil.
func (w *WriteAheadLog) Close() error {
	select {
	case <-w.stopChan:
		return nil
	default:
		close(w.stopChan)
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.writer != nil {
		w.writer.Flush()
	}
	if w.currentFile != nil {
		return w.currentFile.Close()
	}
	return nil
}
