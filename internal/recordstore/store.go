// Package recordstore implements the append-only, offset-addressed byte
// arena described in spec §4.3: a lock-light concurrent append path with
// an atomically published tail and offset-stable snapshot reads.
package recordstore

import (
	"sync"
	"sync/atomic"

	"github.com/dialogtable/dialogtable/internal/errors"
)

// blockRecords is the number of records held per arena block. Blocks are
// allocated lazily under blockMu; appends within an already-allocated
// block only bump an atomic counter.
const blockRecords = 4096

// Store is a growable, append-only arena of fixed-size records. The tail
// offset is published with atomic store/load so that appenders never
// block readers, and any reader that observes offset <= tail sees the
// complete record bytes (spec §4.3's happens-before requirement).
type Store struct {
	recordSize int64
	tail       int64 // atomic: next offset to be allocated, in bytes
	blockMu    sync.Mutex
	blocks     [][]byte // each of length blockRecords*recordSize
}

// New creates an empty record store for records of recordSize bytes.
func New(recordSize int) *Store {
	return &Store{recordSize: int64(recordSize)}
}

// RecordSize returns the fixed per-record byte width.
func (s *Store) RecordSize() int { return int(s.recordSize) }

// Append copies record (which must be exactly RecordSize() bytes) into
// the arena and returns its assigned offset. Concurrent callers receive
// strictly increasing offsets, each a multiple of RecordSize().
func (s *Store) Append(record []byte) (int64, error) {
	if int64(len(record)) != s.recordSize {
		return 0, errors.Internal(nil, "record length %d does not match record size %d", len(record), s.recordSize)
	}

	offset := atomic.AddInt64(&s.tail, s.recordSize) - s.recordSize

	blockIdx := offset / (blockRecords * s.recordSize)
	blockOff := offset % (blockRecords * s.recordSize)

	block := s.blockFor(int(blockIdx))
	copy(block[blockOff:blockOff+s.recordSize], record)

	return offset, nil
}

// blockFor returns the arena block at idx, allocating it (and any
// intervening blocks) under blockMu if it does not exist yet. Growth is
// the only operation that takes this lock; the hot per-record copy above
// never does.
func (s *Store) blockFor(idx int) []byte {
	s.blockMu.Lock()
	defer s.blockMu.Unlock()

	for len(s.blocks) <= idx {
		s.blocks = append(s.blocks, make([]byte, blockRecords*s.recordSize))
	}
	return s.blocks[idx]
}

// Read returns a copy of the record at offset. Fails if offset is not a
// valid record boundary before the tail observed at call time
// (spec §9's recommended "fail, don't read undefined memory" resolution
// for reads past the tail).
func (s *Store) Read(offset int64) ([]byte, error) {
	tail := atomic.LoadInt64(&s.tail)
	if offset < 0 || offset%s.recordSize != 0 || offset >= tail {
		return nil, errors.InvalidOperation("offset %d is out of range (tail=%d)", offset, tail)
	}

	blockIdx := offset / (blockRecords * s.recordSize)
	blockOff := offset % (blockRecords * s.recordSize)

	s.blockMu.Lock()
	block := s.blocks[blockIdx]
	s.blockMu.Unlock()

	out := make([]byte, s.recordSize)
	copy(out, block[blockOff:blockOff+s.recordSize])
	return out, nil
}

// ReadRange returns nrecords consecutive records starting at offset,
// concatenated, matching the RPC `read(offset, nrecords)` contract.
func (s *Store) ReadRange(offset int64, nrecords int) ([]byte, error) {
	tail := atomic.LoadInt64(&s.tail)
	if offset < 0 || offset%s.recordSize != 0 || nrecords < 0 {
		return nil, errors.InvalidOperation("invalid read range: offset=%d nrecords=%d", offset, nrecords)
	}
	end := offset + int64(nrecords)*s.recordSize
	if end > tail {
		return nil, errors.InvalidOperation("read range [%d,%d) extends past tail %d", offset, end, tail)
	}

	out := make([]byte, 0, nrecords*int(s.recordSize))
	for o := offset; o < end; o += s.recordSize {
		rec, err := s.Read(o)
		if err != nil {
			return nil, err
		}
		out = append(out, rec...)
	}
	return out, nil
}

// NumRecords returns tail / RecordSize().
func (s *Store) NumRecords() int64 {
	return atomic.LoadInt64(&s.tail) / s.recordSize
}

// Tail returns the current published tail offset, for use by components
// that need a stable snapshot boundary (filter/index back-fill, stream
// creation).
func (s *Store) Tail() int64 {
	return atomic.LoadInt64(&s.tail)
}
