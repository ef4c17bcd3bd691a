package validation

import (
	"strings"
	"unicode"

	"github.com/dialogtable/dialogtable/internal/errors"
)

const (
	// MaxIdentifierSize bounds table, column, filter, and trigger names.
	MaxIdentifierSize = 128
	// MaxExprSize bounds the text of a filter/trigger expression.
	MaxExprSize = 4096
	// MaxColumnsPerTable bounds the width of a table's schema.
	MaxColumnsPerTable = 256
)

// Validator validates the names and expressions accepted at the RPC
// boundary, generalized from the teacher's tenant/key/value validator.
type Validator struct {
	maxIdentifierSize int
	maxExprSize       int
}

// NewValidator creates a validator with the default limits.
func NewValidator() *Validator {
	return &Validator{maxIdentifierSize: MaxIdentifierSize, maxExprSize: MaxExprSize}
}

// NewValidatorWithLimits creates a validator with custom limits.
func NewValidatorWithLimits(maxIdentifierSize, maxExprSize int) *Validator {
	return &Validator{maxIdentifierSize: maxIdentifierSize, maxExprSize: maxExprSize}
}

// ValidateIdentifier validates a table, column, filter, or trigger name.
func (v *Validator) ValidateIdentifier(kind, name string) error {
	if name == "" {
		return errors.InvalidOperation("%s name cannot be empty", kind)
	}

	if len(name) > v.maxIdentifierSize {
		return errors.InvalidOperation("%s name %q exceeds maximum length of %d bytes", kind, name, v.maxIdentifierSize)
	}

	first := rune(name[0])
	if !unicode.IsLetter(first) && first != '_' {
		return errors.InvalidOperation("%s name %q must start with a letter or underscore", kind, name)
	}

	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_' {
			return errors.InvalidOperation("%s name %q contains invalid character %q", kind, name, r)
		}
	}

	return nil
}

// ValidateExpr validates the raw text of a filter or trigger expression
// before it reaches the parser, rejecting obviously malformed input early.
func (v *Validator) ValidateExpr(expr string) error {
	if strings.TrimSpace(expr) == "" {
		return errors.InvalidOperation("expression cannot be empty")
	}

	if len(expr) > v.maxExprSize {
		return errors.InvalidOperation("expression exceeds maximum length of %d bytes", v.maxExprSize)
	}

	if strings.ContainsRune(expr, 0) {
		return errors.InvalidOperation("expression cannot contain null bytes")
	}

	for _, r := range expr {
		if unicode.IsControl(r) && r != '\t' && r != '\n' {
			return errors.InvalidOperation("expression cannot contain control characters")
		}
	}

	return nil
}

// ValidateSchemaWidth rejects a schema with more columns than a single
// record layout can reasonably carry.
func (v *Validator) ValidateSchemaWidth(numColumns int) error {
	if numColumns > MaxColumnsPerTable {
		return errors.InvalidOperation("schema has too many columns: %d > %d", numColumns, MaxColumnsPerTable)
	}
	return nil
}

// ValidateTableName validates a table name.
func (v *Validator) ValidateTableName(name string) error {
	return v.ValidateIdentifier("table", name)
}

// ValidateColumnName validates a column name.
func (v *Validator) ValidateColumnName(name string) error {
	return v.ValidateIdentifier("column", name)
}

// ValidateFilterName validates a filter name.
func (v *Validator) ValidateFilterName(name string) error {
	return v.ValidateIdentifier("filter", name)
}

// ValidateTriggerName validates a trigger name.
func (v *Validator) ValidateTriggerName(name string) error {
	return v.ValidateIdentifier("trigger", name)
}

// SanitizeIdentifier strips characters ValidateIdentifier would reject,
// for callers that want a best-effort name rather than a hard failure.
func SanitizeIdentifier(name string) string {
	sanitized := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			return r
		}
		return -1
	}, name)

	if len(sanitized) > MaxIdentifierSize {
		sanitized = sanitized[:MaxIdentifierSize]
	}

	return sanitized
}
