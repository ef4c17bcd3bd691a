package skiplist

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	sl := New[int, string]()
	sl.Insert(5, "five")
	sl.Insert(1, "one")
	sl.Insert(3, "three")

	v, ok := sl.Get(3)
	require.True(t, ok)
	assert.Equal(t, "three", v)

	_, ok = sl.Get(99)
	assert.False(t, ok)
	assert.Equal(t, 3, sl.Len())
}

func TestInsertOverwrites(t *testing.T) {
	sl := New[int, int]()
	sl.Insert(1, 100)
	sl.Insert(1, 200)

	v, ok := sl.Get(1)
	require.True(t, ok)
	assert.Equal(t, 200, v)
	assert.Equal(t, 1, sl.Len())
}

func TestRangeAscendingOrder(t *testing.T) {
	sl := New[int, int]()
	for _, k := range []int{50, 10, 30, 70, 20, 60} {
		sl.Insert(k, k*10)
	}

	entries := sl.Range(20, 60)
	var keys []int
	for _, e := range entries {
		keys = append(keys, e.Key)
	}
	assert.Equal(t, []int{20, 30, 50, 60}, keys)
}

func TestAllAscendingOrder(t *testing.T) {
	sl := New[string, int]()
	sl.Insert("b", 2)
	sl.Insert("a", 1)
	sl.Insert("c", 3)

	entries := sl.All()
	require.Len(t, entries, 3)
	assert.Equal(t, "a", entries[0].Key)
	assert.Equal(t, "b", entries[1].Key)
	assert.Equal(t, "c", entries[2].Key)
}

func TestGetOrInsert(t *testing.T) {
	sl := New[int, []int]()
	calls := 0
	init := func() []int {
		calls++
		return []int{}
	}

	sl.GetOrInsert(1, init)
	sl.GetOrInsert(1, init)
	assert.Equal(t, 1, calls)
}

func TestMax(t *testing.T) {
	sl := New[int, int]()
	_, ok := sl.Max()
	assert.False(t, ok)

	sl.Insert(5, 50)
	sl.Insert(9, 90)
	sl.Insert(3, 30)

	e, ok := sl.Max()
	require.True(t, ok)
	assert.Equal(t, 9, e.Key)
}
