package exprlang

import (
	"fmt"
	"strings"

	"github.com/dialogtable/dialogtable/internal/schema"
)

// Comparison is one leaf comparison that every matching record satisfies
// (a leaf reached only through &&, never under || or !), exposed so the
// filter engine (C5) can pick an indexed column to drive an index scan
// before re-checking the full predicate.
type Comparison struct {
	Column  string
	Op      CompareOp
	Literal Literal
}

// CompiledFilter is a filter expression bound to a schema: a closure
// over the record bytes plus metadata the filter engine uses to choose
// an evaluation strategy.
type CompiledFilter struct {
	Eval        func(record []byte) bool
	Columns     map[string]struct{}
	Comparisons []Comparison
}

// CompileFilter parses and compiles a filter expression against s.
func CompileFilter(s *schema.Schema, expr string) (*CompiledFilter, error) {
	n, err := parseFilterExpr(expr)
	if err != nil {
		return nil, err
	}

	columns := make(map[string]struct{})
	var comparisons []Comparison
	collect(n, s, columns, &comparisons)

	evalFn, err := bindEval(n, s)
	if err != nil {
		return nil, err
	}

	return &CompiledFilter{Eval: evalFn, Columns: columns, Comparisons: comparisons}, nil
}

func collect(n node, s *schema.Schema, columns map[string]struct{}, comparisons *[]Comparison) {
	switch t := n.(type) {
	case *orNode:
		// A leaf under || or ! does not bound the matching set, so it is
		// not offered as an index-scan candidate.
		for _, c := range t.children {
			collect(c, s, columns, nil)
		}
	case *andNode:
		for _, c := range t.children {
			collect(c, s, columns, comparisons)
		}
	case *notNode:
		collect(t.child, s, columns, nil)
	case *cmpNode:
		columns[t.column] = struct{}{}
		if comparisons != nil {
			*comparisons = append(*comparisons, Comparison{Column: t.column, Op: t.op, Literal: t.literal})
		}
	}
}

// bindEval walks the AST once at compile time, resolving column lookups
// against the schema, and returns a closure tree with no further name
// resolution at evaluation time.
func bindEval(n node, s *schema.Schema) (func(record []byte) bool, error) {
	switch t := n.(type) {
	case *orNode:
		fns := make([]func([]byte) bool, len(t.children))
		for i, c := range t.children {
			fn, err := bindEval(c, s)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}
		return func(record []byte) bool {
			for _, fn := range fns {
				if fn(record) {
					return true
				}
			}
			return false
		}, nil

	case *andNode:
		fns := make([]func([]byte) bool, len(t.children))
		for i, c := range t.children {
			fn, err := bindEval(c, s)
			if err != nil {
				return nil, err
			}
			fns[i] = fn
		}
		return func(record []byte) bool {
			for _, fn := range fns {
				if !fn(record) {
					return false
				}
			}
			return true
		}, nil

	case *notNode:
		fn, err := bindEval(t.child, s)
		if err != nil {
			return nil, err
		}
		return func(record []byte) bool { return !fn(record) }, nil

	case *cmpNode:
		col, ok := s.Column(t.column)
		if !ok {
			return nil, &ParseError{Message: fmt.Sprintf("unknown column %q", t.column)}
		}
		op := t.op
		lit := t.literal
		return func(record []byte) bool {
			v := schema.DecodeValue(record, col)
			ok, _ := compareValues(col.Type, v, op, lit)
			return ok
		}, nil

	default:
		return nil, &ParseError{Message: "unreachable expression node"}
	}
}

func compareValues(colType schema.ColumnType, v interface{}, op CompareOp, lit Literal) (bool, error) {
	switch colType {
	case schema.TypeBool:
		if lit.Kind != LitBool {
			return false, fmt.Errorf("BOOL column compared against non-bool literal")
		}
		b := v.(bool)
		switch op {
		case OpEq:
			return b == lit.Bool, nil
		case OpNe:
			return b != lit.Bool, nil
		default:
			return false, fmt.Errorf("BOOL only supports == and !=")
		}

	case schema.TypeChar:
		if lit.Kind != LitString || len(lit.Str) != 1 {
			return false, fmt.Errorf("CHAR column compared against non-single-character literal")
		}
		return compareOrdered(int(v.(byte)), int(lit.Str[0]), op), nil

	case schema.TypeString:
		if lit.Kind != LitString {
			return false, fmt.Errorf("STRING column compared against non-string literal")
		}
		return compareStrings(v.(string), lit.Str, op), nil

	default:
		if lit.Kind != LitNumber {
			return false, fmt.Errorf("numeric column compared against non-number literal")
		}
		fv, _ := schema.AsFloat64(v)
		return compareOrderedFloat(fv, lit.Num, op), nil
	}
}

func compareOrdered(a, b int, op CompareOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func compareOrderedFloat(a, b float64, op CompareOp) bool {
	switch op {
	case OpEq:
		return a == b
	case OpNe:
		return a != b
	case OpLt:
		return a < b
	case OpLe:
		return a <= b
	case OpGt:
		return a > b
	case OpGe:
		return a >= b
	default:
		return false
	}
}

func compareStrings(a, b string, op CompareOp) bool {
	cmp := strings.Compare(a, b)
	switch op {
	case OpEq:
		return cmp == 0
	case OpNe:
		return cmp != 0
	case OpLt:
		return cmp < 0
	case OpLe:
		return cmp <= 0
	case OpGt:
		return cmp > 0
	case OpGe:
		return cmp >= 0
	default:
		return false
	}
}
