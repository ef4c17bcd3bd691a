package exprlang

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dialogtable/dialogtable/internal/schema"
)

func testSchema(t *testing.T) *schema.Schema {
	s, err := schema.New([]schema.ColumnSpec{
		{Name: "a", Type: schema.TypeBool},
		{Name: "e", Type: schema.TypeLong},
		{Name: "h", Type: schema.TypeString, StringWidth: 16},
	})
	require.NoError(t, err)
	return s
}

func record(t *testing.T, s *schema.Schema, a bool, e int64, h string) []byte {
	rec := make([]byte, s.RecordSize)
	colA, _ := s.Column("a")
	colE, _ := s.Column("e")
	colH, _ := s.Column("h")
	require.NoError(t, schema.EncodeValue(rec, colA, a))
	require.NoError(t, schema.EncodeValue(rec, colE, e))
	require.NoError(t, schema.EncodeValue(rec, colH, h))
	return rec
}

func TestCompileFilter_SimpleComparison(t *testing.T) {
	s := testSchema(t)
	f, err := CompileFilter(s, "e > 500")
	require.NoError(t, err)

	assert.True(t, f.Eval(record(t, s, true, 1000, "x")))
	assert.False(t, f.Eval(record(t, s, true, 10, "x")))
	assert.Contains(t, f.Columns, "e")
}

func TestCompileFilter_LogicalOperators(t *testing.T) {
	s := testSchema(t)
	f, err := CompileFilter(s, `a == true && e >= 100 || h == "zz"`)
	require.NoError(t, err)

	assert.True(t, f.Eval(record(t, s, true, 100, "x")))
	assert.False(t, f.Eval(record(t, s, false, 100, "x")))
	assert.True(t, f.Eval(record(t, s, false, 0, "zz")))
}

func TestCompileFilter_Not(t *testing.T) {
	s := testSchema(t)
	f, err := CompileFilter(s, "!(a == true)")
	require.NoError(t, err)

	assert.False(t, f.Eval(record(t, s, true, 0, "")))
	assert.True(t, f.Eval(record(t, s, false, 0, "")))
}

func TestCompileFilter_ParseError(t *testing.T) {
	s := testSchema(t)
	_, err := CompileFilter(s, "e >")
	require.Error(t, err)
	var pe *ParseError
	assert.ErrorAs(t, err, &pe)
}

func TestCompileFilter_UnknownColumn(t *testing.T) {
	s := testSchema(t)
	_, err := CompileFilter(s, "nope == 1")
	require.Error(t, err)
}

func TestCompileTrigger_Count(t *testing.T) {
	s := testSchema(t)
	tr, err := CompileTrigger(s, "COUNT() > 2")
	require.NoError(t, err)

	fired, value := tr.Evaluate(Aggregate{Count: 3})
	assert.True(t, fired)
	assert.Equal(t, 3.0, value)

	fired, _ = tr.Evaluate(Aggregate{Count: 2})
	assert.False(t, fired)
}

func TestCompileTrigger_SumRequiresColumn(t *testing.T) {
	s := testSchema(t)
	_, err := CompileTrigger(s, "SUM() > 10")
	require.Error(t, err)
}

func TestCompileTrigger_CountTakesNoColumn(t *testing.T) {
	s := testSchema(t)
	_, err := CompileTrigger(s, "COUNT(e) > 10")
	require.Error(t, err)
}

func TestCompileTrigger_NonNumericColumn(t *testing.T) {
	s := testSchema(t)
	_, err := CompileTrigger(s, "SUM(h) > 10")
	require.Error(t, err)
}
