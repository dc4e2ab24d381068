package rules

import (
	"strings"

	"github.com/jinzhu/inflection"

	"github.com/apicrafter/metaclass/pkg/profile"
)

// Query selects the static candidate subset of a rule set.
type Query struct {
	Type            RuleType
	Contexts        []string
	Langs           []string
	IgnoreImprecise bool
}

// Filter returns rules passing the static context/lang/imprecise filters.
// An empty Contexts or Langs request means no restriction on that dimension.
func (s *Set) Filter(q Query) []*Rule {
	var source []*Rule
	if q.Type == TypeField {
		source = s.FieldRules
	} else {
		source = s.DataRules
	}

	out := make([]*Rule, 0, len(source))
	for _, r := range source {
		if q.IgnoreImprecise && r.Imprecise {
			continue
		}
		if len(q.Contexts) > 0 && !intersects(r.Context, q.Contexts) {
			continue
		}
		if len(q.Langs) > 0 && !contains(q.Langs, r.Lang) {
			continue
		}
		out = append(out, r)
	}
	return out
}

// LengthOverlap reports whether the column's observed length range overlaps
// the rule's accepted length range. Rules failing this never see values.
func LengthOverlap(r *Rule, cs *profile.ColumnStats) bool {
	if cs == nil || cs.MaxLen == 0 {
		return true
	}
	return cs.MinLen <= r.MaxLen && r.MinLen <= cs.MaxLen
}

// GateMatches evaluates a data rule's field gate against the column's short
// name. Rules without a gate always pass. Keyword gates also accept the
// singular form of a plural column name ("emails" passes a gate on "email").
func (r *Rule) GateMatches(short string) bool {
	if r.fieldGate == nil {
		return true
	}
	return r.fieldGate.matches(short)
}

func (g *fieldGate) matches(short string) bool {
	if g.kind == MatchText {
		lower := strings.ToLower(short)
		if _, ok := g.keywords[lower]; ok {
			return true
		}
		_, ok := g.keywords[inflection.Singular(lower)]
		return ok
	}
	return g.re.MatchString(short)
}

// matchesShortName evaluates a field rule against a column short name.
func (r *Rule) matchesShortName(short string) (bool, error) {
	switch r.Match {
	case MatchText:
		lower := strings.ToLower(short)
		if _, ok := r.keywords[lower]; ok {
			return true, nil
		}
		_, ok := r.keywords[inflection.Singular(lower)]
		return ok, nil
	case MatchFunc:
		return r.fn(short)
	default:
		return r.re.MatchString(short), nil
	}
}
