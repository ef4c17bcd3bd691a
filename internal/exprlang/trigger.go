package exprlang

import (
	"fmt"

	"github.com/dialogtable/dialogtable/internal/schema"
)

// AggOp is the aggregate function named in a trigger expression.
type AggOp int

const (
	AggCount AggOp = iota
	AggSum
	AggMin
	AggMax
)

func (a AggOp) String() string {
	switch a {
	case AggCount:
		return "COUNT"
	case AggSum:
		return "SUM"
	case AggMin:
		return "MIN"
	case AggMax:
		return "MAX"
	default:
		return "?"
	}
}

// Aggregate is the running per-time-bucket statistic the alert engine
// (C6) maintains per trigger; Value picks out the field a CompiledTrigger
// cares about.
type Aggregate struct {
	Count int64
	Sum   float64
	Min   float64
	Max   float64
}

// CompiledTrigger is a parsed `AGG(column?) OP threshold` expression
// bound to a schema.
type CompiledTrigger struct {
	Agg       AggOp
	Column    string // empty for COUNT
	Op        CompareOp
	Threshold float64
}

// Value extracts the aggregate field this trigger's AGG names.
func (t *CompiledTrigger) Value(agg Aggregate) float64 {
	switch t.Agg {
	case AggCount:
		return float64(agg.Count)
	case AggSum:
		return agg.Sum
	case AggMin:
		return agg.Min
	case AggMax:
		return agg.Max
	default:
		return 0
	}
}

// Evaluate reports whether the trigger fires for the given bucket
// aggregate, and the value that would be reported in the alert.
func (t *CompiledTrigger) Evaluate(agg Aggregate) (fired bool, value float64) {
	value = t.Value(agg)
	return compareOrderedFloat(value, t.Threshold, t.Op), value
}

// CompileTrigger parses `AGG([column]) OP literal` against s. COUNT
// takes no column; SUM/MIN/MAX require exactly one numeric column.
func CompileTrigger(s *schema.Schema, expr string) (*CompiledTrigger, error) {
	p, err := newParser(expr)
	if err != nil {
		return nil, err
	}

	if p.cur.kind != tokIdent {
		return nil, &ParseError{Position: p.cur.pos, Message: "expected aggregate function name"}
	}
	agg, err := parseAggName(p.cur.text, p.cur.pos)
	if err != nil {
		return nil, err
	}
	if err := p.advance(); err != nil {
		return nil, err
	}

	if err := p.expect(tokLParen, "'('"); err != nil {
		return nil, err
	}

	var column string
	if p.cur.kind == tokIdent {
		column = p.cur.text
		if err := p.advance(); err != nil {
			return nil, err
		}
	}

	if err := p.expect(tokRParen, "')'"); err != nil {
		return nil, err
	}

	if agg == AggCount && column != "" {
		return nil, &ParseError{Position: p.cur.pos, Message: "COUNT takes no column"}
	}
	if agg != AggCount {
		if column == "" {
			return nil, &ParseError{Position: p.cur.pos, Message: fmt.Sprintf("%s requires a column", agg)}
		}
		col, ok := s.Column(column)
		if !ok {
			return nil, &ParseError{Position: p.cur.pos, Message: fmt.Sprintf("unknown column %q", column)}
		}
		if !col.Type.IsNumeric() {
			return nil, &ParseError{Position: p.cur.pos, Message: fmt.Sprintf("column %q is not numeric", column)}
		}
	}

	op, err := p.parseCompareOp()
	if err != nil {
		return nil, err
	}

	lit, err := p.parseLiteral()
	if err != nil {
		return nil, err
	}
	if lit.Kind != LitNumber {
		return nil, &ParseError{Position: p.cur.pos, Message: "trigger threshold must be numeric"}
	}

	if p.cur.kind != tokEOF {
		return nil, &ParseError{Position: p.cur.pos, Message: "unexpected trailing input"}
	}

	return &CompiledTrigger{Agg: agg, Column: column, Op: op, Threshold: lit.Num}, nil
}

func parseAggName(name string, pos int) (AggOp, error) {
	switch name {
	case "COUNT":
		return AggCount, nil
	case "SUM":
		return AggSum, nil
	case "MIN":
		return AggMin, nil
	case "MAX":
		return AggMax, nil
	default:
		return 0, &ParseError{Position: pos, Message: fmt.Sprintf("unknown aggregate %q", name)}
	}
}
