// Package rules compiles declarative YAML classification rules and matches
// them against column names and sampled values.
package rules

import (
	"regexp"
	"strings"
)

// RuleType routes a rule to field-name or value matching.
type RuleType string

const (
	TypeField RuleType = "field"
	TypeData  RuleType = "data"
)

// MatchKind identifies how a rule's expression is compiled.
type MatchKind string

const (
	MatchPPR   MatchKind = "ppr"   // declarative pattern expression
	MatchText  MatchKind = "text"  // CSV keyword list
	MatchFunc  MatchKind = "func"  // registered predicate
	MatchRegex MatchKind = "regex" // anchored regular expression
)

// Default value-length bounds when a rule does not declare its own
// and they cannot be derived from keywords.
const (
	DefaultMinLen = 3
	DefaultMaxLen = 100
)

// Rule is a compiled, immutable classification rule.
type Rule struct {
	ID        string
	DataClass string
	PIIKey    string
	Type      RuleType
	Match     MatchKind

	Context   []string
	Lang      string
	Countries []string
	Imprecise bool
	// Priority is carried from the rule file but never affects ordering.
	Priority int

	MinLen int
	MaxLen int

	Group            string
	GroupDescription string

	// Expr is the raw rule expression as written in the file.
	Expr string

	re        *regexp.Regexp
	keywords  map[string]struct{}
	fn        Predicate
	fnName    string
	validator Predicate
	fieldGate *fieldGate
}

// fieldGate is the optional name-check attached to a data rule.
type fieldGate struct {
	kind     MatchKind // ppr or text
	re       *regexp.Regexp
	keywords map[string]struct{}
}

// HasContext reports whether the rule carries the given context tag.
func (r *Rule) HasContext(tag string) bool {
	for _, c := range r.Context {
		if c == tag {
			return true
		}
	}
	return false
}

// Keywords returns the keyword set for text rules, nil otherwise.
func (r *Rule) Keywords() []string {
	if r.keywords == nil {
		return nil
	}
	out := make([]string, 0, len(r.keywords))
	for k := range r.keywords {
		out = append(out, k)
	}
	return out
}

// FuncName returns the registered predicate name for func rules.
func (r *Rule) FuncName() string { return r.fnName }

// HasFieldGate reports whether the rule narrows applicability by column name.
func (r *Rule) HasFieldGate() bool { return r.fieldGate != nil }

// evalValue applies the rule's matcher to a single string form.
// A predicate error disables nothing here; the engine decides that.
func (r *Rule) evalValue(s string) (bool, error) {
	switch r.Match {
	case MatchText:
		_, ok := r.keywords[strings.ToLower(s)]
		return ok, nil
	case MatchFunc:
		return r.fn(s)
	default: // ppr and regex both compile to an anchored regexp
		return r.re.MatchString(s), nil
	}
}

// Set is the compiled rule library: ordered field and data rules plus
// inverted counters over the filtering dimensions.
type Set struct {
	FieldRules []*Rule
	DataRules  []*Rule

	byID      map[string]*Rule
	byContext map[string]int
	byLang    map[string]int
	byCountry map[string]int
}

// NewSet returns an empty rule set.
func NewSet() *Set {
	return &Set{
		byID:      make(map[string]*Rule),
		byContext: make(map[string]int),
		byLang:    make(map[string]int),
		byCountry: make(map[string]int),
	}
}

// add registers a compiled rule. Duplicate ids are ignored: first wins.
func (s *Set) add(r *Rule) bool {
	if _, dup := s.byID[r.ID]; dup {
		return false
	}
	s.byID[r.ID] = r
	if r.Type == TypeField {
		s.FieldRules = append(s.FieldRules, r)
	} else {
		s.DataRules = append(s.DataRules, r)
	}
	for _, c := range r.Context {
		s.byContext[c]++
	}
	if r.Lang != "" {
		s.byLang[r.Lang]++
	}
	for _, c := range r.Countries {
		s.byCountry[c]++
	}
	return true
}

// Get looks a rule up by id.
func (s *Set) Get(id string) (*Rule, bool) {
	r, ok := s.byID[id]
	return r, ok
}

// Len reports the total number of compiled rules.
func (s *Set) Len() int { return len(s.FieldRules) + len(s.DataRules) }
