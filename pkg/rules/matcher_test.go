package rules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/profile"
)

func loadSet(t *testing.T, yaml string) *Set {
	t.Helper()
	dir := t.TempDir()
	writeRuleFile(t, dir, "rules.yaml", yaml)
	set, _, err := NewLoader(Presets{}, zap.NewNop()).Load(dir)
	require.NoError(t, err)
	return set
}

func TestEngine_MatchValues_FullConfidence(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	values := []any{"a@b.com", "b@b.com", "c@b.com", "d@b.com", "e@b.com"}
	results := engine.MatchValues("email", values, nil, Params{})

	require.Len(t, results, 1)
	assert.Equal(t, "email", results[0].DataClass)
	assert.Equal(t, ResultData, results[0].RuleType)
	assert.Equal(t, 100.0, results[0].Confidence)
	assert.Equal(t, "email", results[0].PIIKey)
}

func TestEngine_MatchValues_EmptyValuesExcludedFromDenominator(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	values := []any{"a@b.com", "b@b.com", nil, "", "c@b.com"}
	results := engine.MatchValues("email", values, nil, Params{})

	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Confidence)
}

func TestEngine_MatchValues_PartialConfidence(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	values := []any{"a@b.com", "plain", "b@b.com", "words"}
	results := engine.MatchValues("email", values, nil, Params{})

	require.Len(t, results, 1)
	assert.Equal(t, 50.0, results[0].Confidence)
}

func TestEngine_MatchValues_BelowThresholdDropped(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	// 1 of 25 matches -> 4%, at most the default 5% threshold.
	values := make([]any, 0, 25)
	values = append(values, "a@b.com")
	for i := 0; i < 24; i++ {
		values = append(values, "nothing")
	}

	results := engine.MatchValues("misc", values, nil, Params{})
	assert.Empty(t, results)
}

func TestEngine_MatchValues_LengthGate(t *testing.T) {
	set := loadSet(t, `
name: ssn
context: common
lang: en
rules:
  ssn:
    key: ssn
    type: data
    match: regex
    rule: '\d{9}'
    minlen: 9
    maxlen: 9
`)
	engine := NewEngine(set, zap.NewNop())

	// Column stats put the length range outside the rule's window.
	cs := &profile.ColumnStats{MinLen: 12, MaxLen: 20}
	results := engine.MatchValues("ssn", []any{"123456789"}, cs, Params{})
	assert.Empty(t, results, "length-filtered rules never see values")

	cs = &profile.ColumnStats{MinLen: 9, MaxLen: 9}
	results = engine.MatchValues("ssn", []any{"123456789"}, cs, Params{})
	assert.Len(t, results, 1)
}

func TestEngine_MatchValues_ValueLengthOutsideRuleSkipped(t *testing.T) {
	set := loadSet(t, `
name: four
context: common
lang: en
rules:
  pin:
    key: pin
    type: data
    match: regex
    rule: '\d+'
    minlen: 4
    maxlen: 4
`)
	engine := NewEngine(set, zap.NewNop())

	// Two in-range matches, two out-of-range values that must not count.
	values := []any{"1234", "5678", "12", "123456"}
	results := engine.MatchValues("pin", values, nil, Params{})

	require.Len(t, results, 1)
	assert.Equal(t, 50.0, results[0].Confidence)
}

func TestEngine_MatchValues_FieldGate(t *testing.T) {
	set := loadSet(t, `
name: ssn gated
context: common
lang: en
rules:
  ssn:
    key: ssn
    type: data
    match: regex
    rule: '\d{9}'
    minlen: 9
    maxlen: 9
    fieldrule: ssn,ssnum
    fieldrulematch: text
`)
	engine := NewEngine(set, zap.NewNop())
	values := []any{"123456789", "987654321", "111223333", "444556666", "777889999", "000112222"}

	assert.Len(t, engine.MatchValues("ssn", values, nil, Params{}), 1)
	assert.Empty(t, engine.MatchValues("other", values, nil, Params{}))
}

func TestEngine_MatchValues_ContextFilter(t *testing.T) {
	set := loadSet(t, `
name: ctx
context: common
lang: en
rules:
  foo_common:
    key: foo_common
    type: data
    match: regex
    rule: 'foo'
`)
	dir := t.TempDir()
	writeRuleFile(t, dir, "fin.yaml", `
name: fin
context: finance
lang: en
rules:
  foo_finance:
    key: foo_finance
    type: data
    match: regex
    rule: 'foo'
`)
	finSet, _, err := NewLoader(Presets{}, zap.NewNop()).Load(dir)
	require.NoError(t, err)
	for _, r := range finSet.DataRules {
		set.add(r)
	}

	engine := NewEngine(set, zap.NewNop())
	results := engine.MatchValues("col", []any{"foo", "foo"}, nil, Params{Contexts: []string{"finance"}})

	require.Len(t, results, 1)
	assert.Equal(t, "foo_finance", results[0].DataClass)
}

func TestEngine_MatchValues_Validator(t *testing.T) {
	set := loadSet(t, `
name: cards
context: finance
lang: en
rules:
  cardnum:
    key: cardnum
    type: data
    match: ppr
    rule: Word(nums, exact=16)
    minlen: 16
    maxlen: 16
    validator: luhn
`)
	engine := NewEngine(set, zap.NewNop())

	// Valid Luhn number vs same digits reordered to break the checksum.
	results := engine.MatchValues("card", []any{"4539578763621486", "4539578763621487"}, nil, Params{})

	require.Len(t, results, 1)
	assert.Equal(t, 50.0, results[0].Confidence)
}

func TestEngine_MatchFieldName(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	results := engine.MatchFieldName("email", Params{})
	require.Len(t, results, 1)
	assert.Equal(t, ResultField, results[0].RuleType)
	assert.Equal(t, 100.0, results[0].Confidence)

	assert.Empty(t, engine.MatchFieldName("address", Params{}))
}

func TestEngine_MatchFieldName_SingularFallback(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	results := engine.MatchFieldName("emails", Params{})
	require.Len(t, results, 1)
	assert.Equal(t, "email", results[0].DataClass)
}

func TestEngine_PredicateFailureDisablesRule(t *testing.T) {
	RegisterPredicate("always_errors", func(string) (bool, error) {
		return false, errors.New("backend gone")
	})
	set := loadSet(t, `
name: flaky
context: common
lang: en
rules:
  flaky:
    key: flaky
    type: data
    match: func
    rule: always_errors
`)
	engine := NewEngine(set, zap.NewNop())

	assert.Empty(t, engine.MatchValues("col", []any{"abc"}, nil, Params{}))
	assert.True(t, engine.isDisabled("flaky"))
	// Subsequent columns skip the rule entirely.
	assert.Empty(t, engine.MatchValues("col2", []any{"abc"}, nil, Params{}))
}

func TestEngine_ImpreciseFiltered(t *testing.T) {
	set := loadSet(t, `
name: noisy
context: common
lang: en
rules:
  noisy:
    key: noisy
    type: data
    match: regex
    rule: '.+'
    imprecise: 1
`)
	engine := NewEngine(set, zap.NewNop())
	values := []any{"abc", "def"}

	assert.Len(t, engine.MatchValues("col", values, nil, Params{}), 1)
	assert.Empty(t, engine.MatchValues("col", values, nil, Params{IgnoreImprecise: true}))
}

func TestEngine_SampleLimit(t *testing.T) {
	set := loadSet(t, emailRules)
	engine := NewEngine(set, zap.NewNop())

	// Matches lead the sequence; with the sample capped at 2 the later
	// non-matching values are never consulted.
	values := []any{"a@b.com", "b@b.com", "junk", "junk", "junk"}
	results := engine.MatchValues("email", values, nil, Params{MaxSample: 2})

	require.Len(t, results, 1)
	assert.Equal(t, 100.0, results[0].Confidence)
}
