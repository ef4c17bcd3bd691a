// Package schema defines the fixed-width column/record layout shared by
// every table: the typed column list, the implicit leading timestamp
// column, and the byte-level encoding used by the record store.
package schema

import (
	"fmt"
	"math"
	"strings"
)

// ColumnType is one of the fixed-width scalar types a column may hold.
type ColumnType int

const (
	TypeBool ColumnType = iota
	TypeChar
	TypeShort
	TypeInt
	TypeLong
	TypeFloat
	TypeDouble
	TypeString
)

func (t ColumnType) String() string {
	switch t {
	case TypeBool:
		return "BOOL"
	case TypeChar:
		return "CHAR"
	case TypeShort:
		return "SHORT"
	case TypeInt:
		return "INT"
	case TypeLong:
		return "LONG"
	case TypeFloat:
		return "FLOAT"
	case TypeDouble:
		return "DOUBLE"
	case TypeString:
		return "STRING"
	default:
		return "UNKNOWN"
	}
}

// ParseColumnType maps a wire-format type name to a ColumnType.
func ParseColumnType(s string) (ColumnType, error) {
	switch strings.ToUpper(s) {
	case "BOOL":
		return TypeBool, nil
	case "CHAR":
		return TypeChar, nil
	case "SHORT":
		return TypeShort, nil
	case "INT":
		return TypeInt, nil
	case "LONG":
		return TypeLong, nil
	case "FLOAT":
		return TypeFloat, nil
	case "DOUBLE":
		return TypeDouble, nil
	case "STRING":
		return TypeString, nil
	default:
		return 0, &SchemaError{Message: fmt.Sprintf("unknown column type %q", s)}
	}
}

// fixedWidth returns the byte width of every type except STRING, whose
// width is supplied separately at column declaration time.
func fixedWidth(t ColumnType) (int, bool) {
	switch t {
	case TypeBool, TypeChar:
		return 1, true
	case TypeShort:
		return 2, true
	case TypeInt, TypeFloat:
		return 4, true
	case TypeLong, TypeDouble:
		return 8, true
	default:
		return 0, false
	}
}

// IsNumeric reports whether t participates in numeric bucketing (C4) and
// numeric aggregation (C6). STRING and CHAR do not.
func (t ColumnType) IsNumeric() bool {
	switch t {
	case TypeShort, TypeInt, TypeLong, TypeFloat, TypeDouble:
		return true
	default:
		return false
	}
}

// ColumnSpec is the user-supplied, pre-layout description of a column:
// a (type, name) pair plus the STRING width when applicable.
type ColumnSpec struct {
	Name        string
	Type        ColumnType
	StringWidth int // only meaningful when Type == TypeString
}

// Column is a laid-out column: its type, width, and byte offset within
// a record, including the implicit leading timestamp column.
type Column struct {
	Name   string
	Type   ColumnType
	Width  int
	Offset int
}

// TimestampColumnName is the reserved name of the implicit leading column.
const TimestampColumnName = "timestamp"

// SchemaError reports a malformed schema: duplicate column names, a
// reserved name collision, or STRING(n) with n <= 0.
type SchemaError struct {
	Message string
}

func (e *SchemaError) Error() string { return e.Message }

// Schema is an ordered, immutable column layout. Columns[0] is always the
// implicit `timestamp int64` column; Columns[1:] are the caller's.
type Schema struct {
	Columns    []Column
	RecordSize int
}

// New lays out a schema from an ordered list of column specs, prepending
// the implicit timestamp column.
func New(specs []ColumnSpec) (*Schema, error) {
	seen := make(map[string]struct{}, len(specs)+1)
	seen[TimestampColumnName] = struct{}{}

	cols := make([]Column, 0, len(specs)+1)
	cols = append(cols, Column{Name: TimestampColumnName, Type: TypeLong, Width: 8, Offset: 0})
	offset := 8

	for _, spec := range specs {
		if spec.Name == "" {
			return nil, &SchemaError{Message: "column name must not be empty"}
		}
		if _, dup := seen[spec.Name]; dup {
			return nil, &SchemaError{Message: fmt.Sprintf("duplicate column name %q", spec.Name)}
		}
		seen[spec.Name] = struct{}{}

		width, ok := fixedWidth(spec.Type)
		if !ok {
			if spec.Type != TypeString {
				return nil, &SchemaError{Message: fmt.Sprintf("unknown column type for %q", spec.Name)}
			}
			if spec.StringWidth <= 0 {
				return nil, &SchemaError{Message: fmt.Sprintf("STRING column %q requires width > 0", spec.Name)}
			}
			width = spec.StringWidth
		}

		cols = append(cols, Column{Name: spec.Name, Type: spec.Type, Width: width, Offset: offset})
		offset += width
	}

	return &Schema{Columns: cols, RecordSize: offset}, nil
}

// Column looks up a laid-out column by name, including "timestamp".
func (s *Schema) Column(name string) (Column, bool) {
	for _, c := range s.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// UserColumns returns the caller-supplied columns, excluding the implicit
// leading timestamp.
func (s *Schema) UserColumns() []Column {
	if len(s.Columns) == 0 {
		return nil
	}
	return s.Columns[1:]
}

// EncodeTimestamp writes ts (nanoseconds) into a record's leading 8 bytes.
func EncodeTimestamp(record []byte, ts int64) {
	putInt64(record[0:8], ts)
}

// DecodeTimestamp reads the nanosecond timestamp from a record's leading
// 8 bytes.
func DecodeTimestamp(record []byte) int64 {
	return getInt64(record[0:8])
}

// EncodeValue writes v, which must match col.Type, into record at col's
// offset/width.
func EncodeValue(record []byte, col Column, v interface{}) error {
	dst := record[col.Offset : col.Offset+col.Width]
	switch col.Type {
	case TypeBool:
		b, ok := v.(bool)
		if !ok {
			return typeMismatch(col, v)
		}
		if b {
			dst[0] = 1
		} else {
			dst[0] = 0
		}
	case TypeChar:
		c, ok := v.(byte)
		if !ok {
			return typeMismatch(col, v)
		}
		dst[0] = c
	case TypeShort:
		n, ok := v.(int16)
		if !ok {
			return typeMismatch(col, v)
		}
		putInt16(dst, n)
	case TypeInt:
		n, ok := v.(int32)
		if !ok {
			return typeMismatch(col, v)
		}
		putInt32(dst, n)
	case TypeLong:
		n, ok := v.(int64)
		if !ok {
			return typeMismatch(col, v)
		}
		putInt64(dst, n)
	case TypeFloat:
		f, ok := v.(float32)
		if !ok {
			return typeMismatch(col, v)
		}
		putInt32(dst, int32(math.Float32bits(f)))
	case TypeDouble:
		f, ok := v.(float64)
		if !ok {
			return typeMismatch(col, v)
		}
		putInt64(dst, int64(math.Float64bits(f)))
	case TypeString:
		s, ok := v.(string)
		if !ok {
			return typeMismatch(col, v)
		}
		for i := range dst {
			dst[i] = 0
		}
		copy(dst, s)
	default:
		return &SchemaError{Message: fmt.Sprintf("column %q has unknown type", col.Name)}
	}
	return nil
}

// DecodeValue reads the value stored at col's offset/width, returning the
// corresponding native Go type.
func DecodeValue(record []byte, col Column) interface{} {
	src := record[col.Offset : col.Offset+col.Width]
	switch col.Type {
	case TypeBool:
		return src[0] != 0
	case TypeChar:
		return src[0]
	case TypeShort:
		return getInt16(src)
	case TypeInt:
		return getInt32(src)
	case TypeLong:
		return getInt64(src)
	case TypeFloat:
		return math.Float32frombits(uint32(getInt32(src)))
	case TypeDouble:
		return math.Float64frombits(uint64(getInt64(src)))
	case TypeString:
		return strings.TrimRight(string(src), "\x00")
	default:
		return nil
	}
}

// AsFloat64 widens any numeric column value to float64, for use by the
// index bucket function and aggregate evaluation. Non-numeric types
// return (0, false).
func AsFloat64(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	default:
		return 0, false
	}
}

// Format renders a record as a human-readable "name=value, ..." string,
// in schema column order, including the timestamp.
func Format(s *Schema, record []byte) string {
	var b strings.Builder
	for i, col := range s.Columns {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(col.Name)
		b.WriteByte('=')
		fmt.Fprintf(&b, "%v", DecodeValue(record, col))
	}
	return b.String()
}

func typeMismatch(col Column, v interface{}) error {
	return &SchemaError{Message: fmt.Sprintf("column %q expects %s, got %T", col.Name, col.Type, v)}
}

func putInt16(b []byte, v int16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func getInt16(b []byte) int16 {
	return int16(uint16(b[0]) | uint16(b[1])<<8)
}

func putInt32(b []byte, v int32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}

func getInt32(b []byte) int32 {
	return int32(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24)
}

func putInt64(b []byte, v int64) {
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
}

func getInt64(b []byte) int64 {
	var v int64
	for i := 0; i < 8; i++ {
		v |= int64(b[i]) << (8 * i)
	}
	return v
}
