package validation

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateTableName(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateTableName("events"))
	assert.NoError(t, v.ValidateTableName("_events2"))
	assert.Error(t, v.ValidateTableName(""))
	assert.Error(t, v.ValidateTableName("9bad"))
	assert.Error(t, v.ValidateTableName("bad name"))
	assert.Error(t, v.ValidateTableName(strings.Repeat("a", MaxIdentifierSize+1)))
}

func TestValidateExpr(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateExpr("level > 5"))
	assert.Error(t, v.ValidateExpr(""))
	assert.Error(t, v.ValidateExpr("   "))
	assert.Error(t, v.ValidateExpr(strings.Repeat("x", MaxExprSize+1)))
	assert.Error(t, v.ValidateExpr("level > 5\x00"))
}

func TestValidateSchemaWidth(t *testing.T) {
	v := NewValidator()
	assert.NoError(t, v.ValidateSchemaWidth(10))
	assert.Error(t, v.ValidateSchemaWidth(MaxColumnsPerTable+1))
}

func TestSanitizeIdentifier(t *testing.T) {
	assert.Equal(t, "events", SanitizeIdentifier("ev:en ts"))
	assert.Equal(t, strings.Repeat("a", MaxIdentifierSize), SanitizeIdentifier(strings.Repeat("a", MaxIdentifierSize+10)))
}

func TestNewValidatorWithLimits(t *testing.T) {
	v := NewValidatorWithLimits(4, 4)
	assert.Error(t, v.ValidateTableName("toolong"))
	assert.Error(t, v.ValidateExpr("toolong"))
	assert.NoError(t, v.ValidateTableName("abcd"))
}
