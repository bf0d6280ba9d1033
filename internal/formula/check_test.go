package formula

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"govreport/internal/domain"
)

type testEnv struct {
	columns map[string]domain.SemanticType
	fields  map[string]Type
}

func (e testEnv) Column(table, column string) (domain.SemanticType, error) {
	t, ok := e.columns[table+"."+column]
	if !ok {
		return "", fmt.Errorf("unknown %s.%s", table, column)
	}
	return t, nil
}

func (e testEnv) Field(id string) (Type, bool) {
	t, ok := e.fields[id]
	return t, ok
}

func newTestEnv() testEnv {
	return testEnv{
		columns: map[string]domain.SemanticType{
			"t.amount":  domain.TypeNumber,
			"t.name":    domain.TypeString,
			"t.flag":    domain.TypeBoolean,
			"t.created": domain.TypeDate,
			"t.closed":  domain.TypeDate,
		},
		fields: map[string]Type{
			uuidA: TypeNumber,
			uuidB: TypeString,
			uuidC: TypeAny,
		},
	}
}

func TestCheck_Types(t *testing.T) {
	tests := []struct {
		src  string
		want Type
	}{
		{"1 + 2", TypeNumber},
		{"{t.amount} / 100", TypeNumber},
		{"{" + uuidA + "} * 2", TypeNumber},
		{"{t.name} == 'x'", TypeBoolean},
		{"{t.flag} AND {t.amount} > 3", TypeBoolean},
		{"IF({t.amount} > 1000, 'big', 'small')", TypeString},
		{"IF({t.flag}, None, 3)", TypeNumber},
		{"DATEDIFF('day', {t.created}, {t.closed})", TypeNumber},
		{"DATEDIFF('dd', '2024-01-01', {t.closed})", TypeNumber},
		{"DATEPART('quarter', {t.created})", TypeNumber},
		{"DATEADD('month', 3, {t.created})", TypeDate},
		{"TODAY()", TypeDate},
		{"{t.created} >= '2024-01-01 08:30:00.25Z'", TypeBoolean},
		{"ROUND(SUM({t.amount}, 2, 3) / 3, 2)", TypeNumber},
		{"ABS({" + uuidC + "})", TypeNumber},
		{"{t.name} == None", TypeBoolean},
		{"None", TypeNull},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			n, err := Parse(tc.src)
			require.NoError(t, err)
			info, err := Check(n, newTestEnv())
			require.NoError(t, err)
			assert.Equal(t, tc.want, info.Type)
		})
	}
}

func TestCheck_Errors(t *testing.T) {
	tests := []struct {
		src  string
		code domain.ViolationCode
	}{
		{"{t.missing} + 1", domain.CodeUnknownField},
		{"{3f0a9e4b-6fa0-4b88-8c4d-5a1f9e0b2d34} + 1", domain.CodeUnknownReference},
		{"{t.name} + 1", domain.CodeTypeMismatch},
		{"{t.amount} == 'x'", domain.CodeTypeMismatch},
		{"{t.amount} AND {t.flag}", domain.CodeTypeMismatch},
		{"MOD(1)", domain.CodeArityMismatch},
		{"TODAY(1)", domain.CodeArityMismatch},
		{"SUM()", domain.CodeArityMismatch},
		{"SQRT('x')", domain.CodeTypeMismatch},
		{"IF({t.flag}, 1, 'one')", domain.CodeTypeMismatch},
		{"IF({t.amount}, 1, 2)", domain.CodeTypeMismatch},
		{"DATEDIFF('fortnight', {t.created}, {t.closed})", domain.CodeInvalidDatePart},
		{"DATEDIFF({t.name}, {t.created}, {t.closed})", domain.CodeInvalidDatePart},
		{"DATEADD('day', 1, '01/02/2024')", domain.CodeMalformedDateLiteral},
		{"{t.created} > 'yesterday'", domain.CodeMalformedDateLiteral},
		{"DATEPART('day', {t.name})", domain.CodeTypeMismatch},
		{"NOPE(1)", domain.CodeUnknownFunction},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			n, err := Parse(tc.src)
			require.NoError(t, err)
			_, err = Check(n, newTestEnv())
			require.Error(t, err)
			var fe *domain.FormulaError
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, tc.code, fe.Code)
			assert.LessOrEqual(t, fe.Start, fe.End)
			assert.LessOrEqual(t, fe.End, len(tc.src))
		})
	}
}

func TestCheck_ErrorSpanPointsAtOperand(t *testing.T) {
	src := "1 + {t.name}"
	n, err := Parse(src)
	require.NoError(t, err)
	_, err = Check(n, newTestEnv())
	var fe *domain.FormulaError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, "{t.name}", src[fe.Start:fe.End])
}

func TestCheck_DateLiteralsRecorded(t *testing.T) {
	n, err := Parse("DATEDIFF('day', '2024-01-01', {t.closed})")
	require.NoError(t, err)
	info, err := Check(n, newTestEnv())
	require.NoError(t, err)
	require.Len(t, info.DateLiterals, 1)
	for lit := range info.DateLiterals {
		assert.Equal(t, "2024-01-01", lit.Value)
	}
}

// Substituting a checked formula for a reference to it yields the same type
// as inlining it.
func TestCheck_SubstitutionPreservesType(t *testing.T) {
	inner := "IF({t.flag}, {t.amount}, 0)"
	env := newTestEnv()
	n, err := Parse(inner)
	require.NoError(t, err)
	innerInfo, err := Check(n, env)
	require.NoError(t, err)

	ref := "3f0a9e4b-6fa0-4b88-8c4d-5a1f9e0b2d34"
	env.fields[ref] = innerInfo.Type

	outers := []string{"@ * 2", "ROUND(@, 0)", "@ > 10", "IF(@ > 1, @, 1)"}
	for _, outer := range outers {
		viaRef := strings.ReplaceAll(outer, "@", "{"+ref+"}")
		inlined := strings.ReplaceAll(outer, "@", "("+inner+")")

		a, err := Analyze(viaRef, env)
		require.NoError(t, err, viaRef)
		b, err := Analyze(inlined, env)
		require.NoError(t, err, inlined)
		assert.Equal(t, b.Info.Type, a.Info.Type, outer)
	}
}

func TestParseDateLiteral(t *testing.T) {
	for _, ok := range []string{"2024-02-29", "2024-02-29 13:45:00", "2024-02-29 13:45:00.123", "2024-02-29 13:45:00Z", "2024-02-29 13:45:00+02:00", "2024-02-29 13:45:00.5-0700"} {
		_, valid := ParseDateLiteral(ok)
		assert.True(t, valid, ok)
	}
	for _, bad := range []string{"2024-2-29", "29/02/2024", "2024-02-30", "2024-02-29T13:45:00", "today"} {
		_, valid := ParseDateLiteral(bad)
		assert.False(t, valid, bad)
	}
}
