package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/domain"
)

const (
	uuidA = "0b6f4a1e-3c7d-4e55-9f1a-2d8c6b7e9a01"
	uuidB = "1c7e5b2f-4d8e-4f66-8a2b-3e9d7c8f0b12"
	uuidC = "2d8f6c3a-5e9f-4a77-9b3c-4f0e8d9a1c23"
)

func TestParse_Precedence(t *testing.T) {
	n, err := Parse("1 + 2 * 3")
	require.NoError(t, err)
	bin, ok := n.(*Binary)
	require.True(t, ok)
	assert.Equal(t, TOKEN_PLUS, bin.Op)
	right, ok := bin.Right.(*Binary)
	require.True(t, ok)
	assert.Equal(t, TOKEN_STAR, right.Op)
}

func TestParse_LeftAssociative(t *testing.T) {
	n, err := Parse("10 - 4 - 3")
	require.NoError(t, err)
	bin := n.(*Binary)
	left, ok := bin.Left.(*Binary)
	require.True(t, ok, "10 - 4 must group first")
	assert.Equal(t, "10", left.Left.(*NumberLit).Raw)
	assert.Equal(t, "3", bin.Right.(*NumberLit).Raw)
}

func TestParse_AndOrSameLevel(t *testing.T) {
	n, err := Parse("{t.a} == 1 OR {t.b} == 2 AND {t.c} == 3")
	require.NoError(t, err)
	top := n.(*Binary)
	assert.Equal(t, TOKEN_AND, top.Op)
	assert.Equal(t, TOKEN_OR, top.Left.(*Binary).Op)
}

func TestParse_FieldReferences(t *testing.T) {
	n, err := Parse("{" + uuidA + "} / {transaction.transaction_amount}")
	require.NoError(t, err)
	bin := n.(*Binary)

	ref := bin.Left.(*FieldRef)
	assert.False(t, ref.IsColumn())
	assert.Equal(t, uuidA, ref.UUID)

	col := bin.Right.(*FieldRef)
	assert.True(t, col.IsColumn())
	assert.Equal(t, "transaction", col.Table)
	assert.Equal(t, "transaction_amount", col.Column)
}

func TestParse_Calls(t *testing.T) {
	n, err := Parse("if({t.a} > 1, 'big', 'small')")
	require.NoError(t, err)
	call := n.(*Call)
	assert.Equal(t, "IF", call.Name)
	require.Len(t, call.Args, 3)
	assert.Equal(t, Span{0, 29}, call.Span())

	n, err = Parse("TODAY()")
	require.NoError(t, err)
	assert.Empty(t, n.(*Call).Args)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name  string
		src   string
		start int
		msg   string
	}{
		{"empty", "   ", 0, "empty formula"},
		{"trailing_operator", "1 +", 3, "unexpected end of input"},
		{"unbalanced", "(1 + 2", 6, "expected )"},
		{"chained_comparison", "1 < 2 < 3", 6, "cannot be chained"},
		{"bare_identifier", "foo + 1", 0, "need parentheses"},
		{"bad_field", "{not a field}", 0, "invalid field reference"},
		{"trailing_token", "1 2", 2, "after expression"},
		{"illegal_char", "1 # 2", 2, "unexpected character"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse(tc.src)
			require.Error(t, err)
			var fe *domain.FormulaError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, domain.CodeInvalidFormula, fe.Code)
			assert.Equal(t, tc.start, fe.Start)
			assert.Contains(t, fe.Message, tc.msg)
			assert.Equal(t, domain.KindInvalidFormula, domain.KindOf(err))
		})
	}
}

func TestParseColumnExpression(t *testing.T) {
	ref, err := ParseColumnExpression("{project.number}")
	require.NoError(t, err)
	assert.Equal(t, "project", ref.Table)

	_, err = ParseColumnExpression("{project.number} + 1")
	require.Error(t, err)

	_, err = ParseColumnExpression("{" + uuidA + "}")
	require.Error(t, err)
}
