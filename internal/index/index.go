// Package index implements the per-column bucketed inverted index
// described in spec §4.4: numeric columns bucket by floor(value /
// bucket_size), STRING columns bucket by their raw fixed-width bytes,
// and buckets hold insertion-ordered offset lists.
package index

import (
	"fmt"
	"math"
	"sync"

	"github.com/dialogtable/dialogtable/internal/schema"
	"github.com/dialogtable/dialogtable/internal/skiplist"
)

// Index is a single column's bucketed inverted index, backed by a
// generic skip list adapted from the teacher's memtable skip list
// (ordered bucket-key iteration for Scan).
type Index struct {
	column     schema.Column
	bucketSize float64

	mu      sync.Mutex
	buckets *skiplist.SkipList[string, *[]int64]
	count   int64
}

func newIndex(col schema.Column, bucketSize float64) *Index {
	return &Index{
		column:     col,
		bucketSize: bucketSize,
		buckets:    skiplist.New[string, *[]int64](),
	}
}

// Column returns the indexed column.
func (ix *Index) Column() schema.Column { return ix.column }

// Count returns the total number of offsets stored across all buckets.
func (ix *Index) Count() int64 {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.count
}

// Insert bucket-keys record and appends offset to that bucket's
// insertion-ordered list, creating the bucket lazily if needed.
func (ix *Index) Insert(offset int64, record []byte) {
	key := ix.bucketKey(record)

	ix.mu.Lock()
	defer ix.mu.Unlock()
	list := ix.buckets.GetOrInsert(key, func() *[]int64 { return &[]int64{} })
	*list = append(*list, offset)
	ix.count++
}

// bucketKey computes the ordered string bucket key for a record's value
// in this index's column: for numeric types, a lexically-ordered
// encoding of floor(value/bucket_size); for STRING, the raw bytes.
func (ix *Index) bucketKey(record []byte) string {
	if ix.column.Type == schema.TypeString {
		start := ix.column.Offset
		return string(record[start : start+ix.column.Width])
	}
	v := schema.DecodeValue(record, ix.column)
	f, _ := schema.AsFloat64(v)
	return encodeNumericBucketKey(numericBucket(f, ix.bucketSize))
}

// numericBucket computes floor(value / bucket_size) using double
// precision, per spec §4.4.
func numericBucket(value, bucketSize float64) int64 {
	return int64(math.Floor(value / bucketSize))
}

// encodeNumericBucketKey maps a signed bucket index to a fixed-width,
// lexically-sortable string so the skip list's string ordering matches
// numeric bucket ordering: XOR the sign bit to preserve order across
// zero, then print as a fixed-width unsigned decimal.
func encodeNumericBucketKey(n int64) string {
	biased := uint64(n) ^ (1 << 63)
	return fmt.Sprintf("%020d", biased)
}

// Scan returns offsets whose numeric bucket key falls in [lowValue,
// highValue], in ascending bucket order then insertion order within a
// bucket, per spec §4.4's range-lookup contract. Only valid for numeric
// columns.
func (ix *Index) Scan(lowValue, highValue float64) []int64 {
	lowKey := encodeNumericBucketKey(numericBucket(lowValue, ix.bucketSize))
	highKey := encodeNumericBucketKey(numericBucket(highValue, ix.bucketSize))
	return ix.scanKeyRange(lowKey, highKey)
}

// ScanExactString returns offsets in the single bucket matching the raw
// bytes of value (zero-padded to the column's width), for STRING columns.
func (ix *Index) ScanExactString(value string) []int64 {
	padded := make([]byte, ix.column.Width)
	copy(padded, value)
	key := string(padded)
	return ix.scanKeyRange(key, key)
}

func (ix *Index) scanKeyRange(lowKey, highKey string) []int64 {
	ix.mu.Lock()
	entries := ix.buckets.Range(lowKey, highKey)
	ix.mu.Unlock()

	var out []int64
	for _, e := range entries {
		out = append(out, (*e.Value)...)
	}
	return out
}
