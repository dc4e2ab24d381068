package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompilePattern_Matches(t *testing.T) {
	tests := []struct {
		name    string
		expr    string
		match   []string
		noMatch []string
	}{
		{
			name:    "fixed width digits",
			expr:    "Word(nums, exact=4)",
			match:   []string{"2024", "0001"},
			noMatch: []string{"123", "12345", "12a4"},
		},
		{
			name:    "digit range",
			expr:    "Word(nums, min=2, max=4)",
			match:   []string{"12", "1234"},
			noMatch: []string{"1", "12345"},
		},
		{
			name:    "dashed date shape",
			expr:    `Word(nums, exact=4) + Literal("-") + Word(nums, exact=2) + Literal("-") + Word(nums, exact=2)`,
			match:   []string{"2024-01-02"},
			noMatch: []string{"2024-1-2", "20240102", "2024-01-02x"},
		},
		{
			name:    "caseless literal",
			expr:    `CaselessLiteral("uuid") + Word(hexnums)`,
			match:   []string{"uuidABC1", "UUIDdead"},
			noMatch: []string{"uid123"},
		},
		{
			name:    "optional part",
			expr:    `Optional(Literal("+")) + Word(nums, min=7, max=15)`,
			match:   []string{"+79991234567", "79991234567"},
			noMatch: []string{"++7999", "123"},
		},
		{
			name:    "alternation",
			expr:    `Literal("yes") | Literal("no")`,
			match:   []string{"yes", "no"},
			noMatch: []string{"maybe", "yesno"},
		},
		{
			name:    "oneOf words",
			expr:    `oneOf("male female unknown")`,
			match:   []string{"male", "female", "unknown"},
			noMatch: []string{"m", "females"},
		},
		{
			name:    "charset concatenation",
			expr:    `Word(nums + "-", min=9, max=12)`,
			match:   []string{"123-45-6789"},
			noMatch: []string{"123-45", "abc-de-fghi"},
		},
		{
			name:    "single char",
			expr:    `Char(alphas) + Word(nums, exact=3)`,
			match:   []string{"A123", "z999"},
			noMatch: []string{"AB123", "1234"},
		},
		{
			name:    "hex word",
			expr:    "Word(hexnums, exact=8)",
			match:   []string{"deadBEEF", "01234567"},
			noMatch: []string{"deadbeez"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			re, err := CompilePattern(tt.expr)
			require.NoError(t, err)
			for _, s := range tt.match {
				assert.True(t, re.MatchString(s), "expected %q to match", s)
			}
			for _, s := range tt.noMatch {
				assert.False(t, re.MatchString(s), "expected %q not to match", s)
			}
		})
	}
}

func TestCompilePattern_Anchored(t *testing.T) {
	re, err := CompilePattern("Word(nums, exact=3)")
	require.NoError(t, err)

	assert.True(t, re.MatchString("123"))
	assert.False(t, re.MatchString("a123"), "no partial match at end")
	assert.False(t, re.MatchString("123a"), "no partial match at start")
}

func TestCompilePattern_Errors(t *testing.T) {
	for _, expr := range []string{
		"",
		"Word()",
		"Word(unknownset)",
		"Frobnicate(nums)",
		`Literal("a") +`,
		"Word(nums, exact=",
	} {
		_, err := CompilePattern(expr)
		assert.Error(t, err, "expression %q should fail", expr)
	}
}

func TestCompilePattern_TwoCharsetWord(t *testing.T) {
	// Identifier shape: letter head, alphanumeric tail.
	re, err := CompilePattern("Word(alphas, alphanums)")
	require.NoError(t, err)

	assert.True(t, re.MatchString("a1b2"))
	assert.True(t, re.MatchString("x"))
	assert.False(t, re.MatchString("1abc"))
}
