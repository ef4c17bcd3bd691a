package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSchema_PrependsTimestamp(t *testing.T) {
	s, err := New([]ColumnSpec{
		{Name: "data", Type: TypeString, StringWidth: 64},
	})
	require.NoError(t, err)

	require.Len(t, s.Columns, 2)
	assert.Equal(t, TimestampColumnName, s.Columns[0].Name)
	assert.Equal(t, 0, s.Columns[0].Offset)
	assert.Equal(t, 8, s.Columns[0].Width)
	assert.Equal(t, "data", s.Columns[1].Name)
	assert.Equal(t, 8, s.Columns[1].Offset)
	assert.Equal(t, 72, s.RecordSize)
}

func TestNewSchema_DuplicateName(t *testing.T) {
	_, err := New([]ColumnSpec{
		{Name: "a", Type: TypeBool},
		{Name: "a", Type: TypeInt},
	})
	require.Error(t, err)
	var se *SchemaError
	assert.ErrorAs(t, err, &se)
}

func TestNewSchema_ReservedTimestampName(t *testing.T) {
	_, err := New([]ColumnSpec{{Name: "timestamp", Type: TypeLong}})
	require.Error(t, err)
}

func TestNewSchema_StringRequiresPositiveWidth(t *testing.T) {
	_, err := New([]ColumnSpec{{Name: "h", Type: TypeString, StringWidth: 0}})
	require.Error(t, err)
}

func TestEncodeDecodeValue_AllTypes(t *testing.T) {
	s, err := New([]ColumnSpec{
		{Name: "a", Type: TypeBool},
		{Name: "b", Type: TypeChar},
		{Name: "c", Type: TypeShort},
		{Name: "d", Type: TypeInt},
		{Name: "e", Type: TypeLong},
		{Name: "f", Type: TypeFloat},
		{Name: "g", Type: TypeDouble},
		{Name: "h", Type: TypeString, StringWidth: 16},
	})
	require.NoError(t, err)

	record := make([]byte, s.RecordSize)
	EncodeTimestamp(record, 123456789)

	values := map[string]interface{}{
		"a": true,
		"b": byte('3'),
		"c": int16(7),
		"d": int32(1000),
		"e": int64(1000000),
		"f": float32(3.5),
		"g": float64(2.25),
		"h": "hello",
	}

	for name, v := range values {
		col, ok := s.Column(name)
		require.True(t, ok)
		require.NoError(t, EncodeValue(record, col, v))
	}

	assert.Equal(t, int64(123456789), DecodeTimestamp(record))
	for name, want := range values {
		col, _ := s.Column(name)
		got := DecodeValue(record, col)
		assert.Equal(t, want, got, "column %s", name)
	}
}

func TestEncodeValue_TypeMismatch(t *testing.T) {
	s, err := New([]ColumnSpec{{Name: "a", Type: TypeBool}})
	require.NoError(t, err)
	record := make([]byte, s.RecordSize)
	col, _ := s.Column("a")
	err = EncodeValue(record, col, "not-a-bool")
	require.Error(t, err)
}

func TestStringColumn_ZeroPadded(t *testing.T) {
	s, err := New([]ColumnSpec{{Name: "h", Type: TypeString, StringWidth: 8}})
	require.NoError(t, err)
	record := make([]byte, s.RecordSize)
	col, _ := s.Column("h")
	require.NoError(t, EncodeValue(record, col, "ab"))
	raw := record[col.Offset : col.Offset+col.Width]
	assert.Equal(t, []byte{'a', 'b', 0, 0, 0, 0, 0, 0}, raw)
	assert.Equal(t, "ab", DecodeValue(record, col))
}

func TestAsFloat64(t *testing.T) {
	v, ok := AsFloat64(int32(42))
	require.True(t, ok)
	assert.Equal(t, 42.0, v)

	_, ok = AsFloat64("nope")
	assert.False(t, ok)
}
