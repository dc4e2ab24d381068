package rules

import (
	"sync"

	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/logging"
	"github.com/apicrafter/metaclass/pkg/profile"
)

// DefaultConfidence is the minimal percentage a data rule must exceed
// before its result is recorded.
const DefaultConfidence = 5

// Params tunes a matching pass.
type Params struct {
	Contexts        []string
	Langs           []string
	IgnoreImprecise bool
	// Confidence is the exclusive lower bound for data-rule results.
	Confidence float64
	// MaxSample caps how many values a data rule sees per column.
	MaxSample int
	// StopOnMatch ends field-name matching at the first hit.
	StopOnMatch bool
}

func (p Params) threshold() float64 {
	if p.Confidence > 0 {
		return p.Confidence
	}
	return DefaultConfidence
}

// Engine matches a compiled rule set against column names and values.
// The set is shared and read-only; per-scan state (rules disabled after a
// predicate failure) lives on the engine, so use one engine per scan.
type Engine struct {
	set    *Set
	logger *zap.Logger

	mu       sync.Mutex
	disabled map[string]bool
}

// NewEngine creates a matching engine over a compiled set.
func NewEngine(set *Set, logger *zap.Logger) *Engine {
	return &Engine{
		set:      set,
		logger:   logger.Named("matcher"),
		disabled: make(map[string]bool),
	}
}

// Set exposes the engine's rule set.
func (e *Engine) Set() *Set { return e.set }

func (e *Engine) isDisabled(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.disabled[id]
}

// disable turns a rule off for the remainder of the scan after its
// predicate raised. Logged once per rule, with the offending value masked.
func (e *Engine) disable(id, value string, err error) {
	e.mu.Lock()
	already := e.disabled[id]
	e.disabled[id] = true
	e.mu.Unlock()
	if !already {
		e.logger.Warn("rule disabled after predicate failure",
			zap.String("rule_id", id),
			zap.String("value", logging.MaskValue(value)),
			zap.Error(err))
	}
}

// MatchFieldName applies candidate field rules to a column short name.
// Every hit is recorded at confidence 100.
func (e *Engine) MatchFieldName(short string, p Params) []Result {
	var out []Result
	for _, r := range e.set.Filter(Query{
		Type:            TypeField,
		Contexts:        p.Contexts,
		Langs:           p.Langs,
		IgnoreImprecise: p.IgnoreImprecise,
	}) {
		if e.isDisabled(r.ID) {
			continue
		}
		ok, err := r.matchesShortName(short)
		if err != nil {
			e.disable(r.ID, short, err)
			continue
		}
		if !ok {
			continue
		}
		out = append(out, Result{
			RuleID:     r.ID,
			DataClass:  r.DataClass,
			Confidence: 100,
			RuleType:   ResultField,
			PIIKey:     r.PIIKey,
		})
		if p.StopOnMatch {
			break
		}
	}
	return out
}

// MatchValues applies candidate data rules to a column's sampled values.
// Confidence is the share of non-empty sampled values the rule matched;
// results above the threshold are kept in rule order.
func (e *Engine) MatchValues(short string, values []any, cs *profile.ColumnStats, p Params) []Result {
	sample := profile.TrimToSample(values, p.MaxSample)
	if len(sample) == 0 {
		return nil
	}

	var out []Result
	for _, r := range e.set.Filter(Query{
		Type:            TypeData,
		Contexts:        p.Contexts,
		Langs:           p.Langs,
		IgnoreImprecise: p.IgnoreImprecise,
	}) {
		if e.isDisabled(r.ID) {
			continue
		}
		if !LengthOverlap(r, cs) {
			continue
		}
		if !r.GateMatches(short) {
			continue
		}

		conf, ok := e.scoreRule(r, sample)
		if !ok {
			continue
		}
		if conf > p.threshold() {
			out = append(out, Result{
				RuleID:     r.ID,
				DataClass:  r.DataClass,
				Confidence: conf,
				RuleType:   ResultData,
				PIIKey:     r.PIIKey,
			})
		}
	}
	return out
}

// scoreRule computes the confidence of one rule over a sample.
// Empty values (nil, "") are excluded from the denominator; values outside
// the rule's length window never contribute to the success count.
func (e *Engine) scoreRule(r *Rule, sample []any) (float64, bool) {
	success, empty := 0, 0
	for _, v := range sample {
		if v == nil {
			empty++
			continue
		}
		s := profile.Stringify(v)
		if s == "" {
			empty++
			continue
		}
		if len(s) < r.MinLen || len(s) > r.MaxLen {
			continue
		}

		ok, err := r.evalValue(s)
		if err != nil {
			e.disable(r.ID, s, err)
			return 0, false
		}
		if !ok {
			continue
		}
		if r.validator != nil {
			valid, err := r.validator(s)
			if err != nil {
				e.disable(r.ID, s, err)
				return 0, false
			}
			if !valid {
				continue
			}
		}
		success++
	}

	denom := len(sample) - empty
	if denom <= 0 {
		return 0, true
	}
	return float64(success) * 100 / float64(denom), true
}
