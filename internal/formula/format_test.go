package formula

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormat_Canonical(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"1+2*3", "1 + 2 * 3"},
		{"(1+2)*3", "(1 + 2) * 3"},
		{"10-(4-3)", "10 - (4 - 3)"},
		{"(10-4)-3", "10 - 4 - 3"},
		{"round( {t.amount} ,2 )", "ROUND({t.amount}, 2)"},
		{"if({t.a} > 1, 'it\\'s', null)", `IF({t.a} > 1, "it's", None)`},
		{"({t.a} == 1) == ({t.b} == 2)", "({t.a} == 1) == ({t.b} == 2)"},
		{"{t.a} == 1 or ({t.b} == 2 and {t.c} == 3)", "{t.a} == 1 OR ({t.b} == 2 AND {t.c} == 3)"},
		{"2 - -1", "2 - -1"},
		{"+5", "5"},
		{"100.0 * 1.50", "100 * 1.5"},
		{"{t.a} / 010", "{t.a} / 10"},
	}
	for _, tc := range tests {
		t.Run(tc.src, func(t *testing.T) {
			n, err := Parse(tc.src)
			require.NoError(t, err)
			assert.Equal(t, tc.want, Format(n))
		})
	}
}

// Formatting then re-parsing a parseable source yields an equivalent formula.
func TestFormat_RoundTrip(t *testing.T) {
	sources := []string{
		"{" + uuidA + "} / 100",
		"IF({" + uuidA + "} > 1000, 'big', 'small')",
		"DATEDIFF('day', {t.created}, TODAY()) >= 30 AND {t.flag}",
		`"quote \" and backslash \\"`,
		"SUM(1, 2, -3.25) * (4 - 1) / 2",
		"({t.a} == 1 OR {t.b} == 2) AND ({t.c} != None)",
		"MAX({t.amount}, MIN(1, 2))",
	}
	for _, src := range sources {
		t.Run(src, func(t *testing.T) {
			n, err := Parse(src)
			require.NoError(t, err)
			printed := Format(n)

			again, err := Parse(printed)
			require.NoError(t, err, printed)
			assert.Equal(t, printed, Format(again))
		})
	}
}
