// Package scanner orchestrates a scan: profile the records, match rules per
// column and assemble the report.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/dates"
	"github.com/apicrafter/metaclass/pkg/flatten"
	"github.com/apicrafter/metaclass/pkg/llm"
	"github.com/apicrafter/metaclass/pkg/logging"
	"github.com/apicrafter/metaclass/pkg/profile"
	"github.com/apicrafter/metaclass/pkg/rules"
)

// Mode selects how much of the pipeline runs.
type Mode string

const (
	// ModeRules runs only the deterministic rule engine.
	ModeRules Mode = "rules"
	// ModeHybrid adds the LLM classifier for columns the data rules missed.
	ModeHybrid Mode = "hybrid"
	// ModeLLM skips the rule engine entirely.
	ModeLLM Mode = "llm"
)

// Source delivers a lazy, single-pass sequence of records.
// Next returns io.EOF after the last record.
type Source interface {
	Next(ctx context.Context) (flatten.Record, error)
	Close() error
}

// Classifier is the slice of the LLM classifier the scanner needs.
type Classifier interface {
	Classify(ctx context.Context, req llm.Request) *llm.Classification
}

// Options tunes one scan.
type Options struct {
	Mode  Mode
	Limit int // record sample size, default 1000

	Contexts        []string
	Langs           []string
	IgnoreImprecise bool
	// StopOnMatch ends field-name matching at the first hit.
	StopOnMatch bool
	// Confidence is the exclusive threshold for data-rule results.
	Confidence float64
	// DictShareThreshold marks low-cardinality columns as dictionaries.
	DictShareThreshold float64
	// EnableDates turns on date guessing in the profiler and the
	// date-pattern fallback for unmatched string columns.
	EnableDates bool
	// LLMMinConfidence: in hybrid mode, columns whose best data-rule match
	// is at or below this percentage go to the LLM.
	LLMMinConfidence float64
	// Workers bounds per-column parallelism. Defaults to CPU count.
	Workers int
}

// Scanner runs scans against a shared, read-only rule set.
type Scanner struct {
	set        *rules.Set
	dates      *dates.Matcher
	classifier Classifier
	opts       Options
	logger     *zap.Logger
}

// New creates a scanner. The rule set may be nil only in ModeLLM; the
// classifier may be nil only in ModeRules.
func New(set *rules.Set, classifier Classifier, opts Options, logger *zap.Logger) (*Scanner, error) {
	if opts.Mode == "" {
		opts.Mode = ModeRules
	}
	if opts.Limit <= 0 {
		opts.Limit = 1000
	}
	if set == nil && opts.Mode != ModeLLM {
		return nil, fmt.Errorf("mode %q requires a rule set", opts.Mode)
	}
	if classifier == nil && opts.Mode != ModeRules {
		return nil, fmt.Errorf("mode %q requires a classifier", opts.Mode)
	}
	return &Scanner{
		set:        set,
		dates:      dates.New(),
		classifier: classifier,
		opts:       opts,
		logger:     logger.Named("scanner"),
	}, nil
}

// Scan profiles all records from the source and classifies every column.
// On cancellation it returns the partial report together with the context
// error; columns not fully processed are left out.
func (s *Scanner) Scan(ctx context.Context, table string, src Source) (*Report, error) {
	scanID := uuid.New()
	log := s.logger.With(zap.String("scan_id", scanID.String()), zap.String("table", table))

	report := &Report{
		ScanID: scanID,
		Table:  table,
		Stats:  make(map[string]*profile.ColumnStats),
		Fields: []ColumnResult{},
	}

	prof, readErr := s.profileSource(ctx, src, report)
	if readErr != nil && !errors.Is(readErr, context.Canceled) && !errors.Is(readErr, context.DeadlineExceeded) {
		// Partial profile is still usable; the problem is recorded.
		report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("source: %v", readErr))
	}

	engine := rules.NewEngine(ruleSetOrEmpty(s.set), log)
	params := rules.Params{
		Contexts:        s.opts.Contexts,
		Langs:           s.opts.Langs,
		IgnoreImprecise: s.opts.IgnoreImprecise,
		StopOnMatch:     s.opts.StopOnMatch,
		Confidence:      s.opts.Confidence,
		MaxSample:       s.opts.Limit,
	}

	pool := NewPool(PoolConfig{MaxConcurrent: s.opts.Workers}, log)
	items := make([]WorkItem[ColumnResult], 0, len(prof.Order))
	for _, path := range prof.Order {
		path := path
		items = append(items, WorkItem[ColumnResult]{
			ID: path,
			Execute: func(ctx context.Context) (ColumnResult, error) {
				return s.classifyColumn(ctx, engine, params, path, prof)
			},
		})
	}
	results := Process(ctx, pool, items)

	byPath := make(map[string]ColumnResult, len(results))
	var cancelled error
	for _, r := range results {
		if r.Err != nil {
			if errors.Is(r.Err, context.Canceled) || errors.Is(r.Err, context.DeadlineExceeded) {
				cancelled = r.Err
				continue
			}
			report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("column %s: %v", r.ID, r.Err))
			continue
		}
		byPath[r.ID] = r.Result
	}

	// Output order mirrors the profiler's first-seen path order.
	for _, path := range prof.Order {
		cr, ok := byPath[path]
		if !ok {
			continue
		}
		report.Fields = append(report.Fields, cr)
		report.Stats[path] = prof.Columns[path]
	}

	log.Info("scan finished",
		zap.Int("columns", len(report.Fields)),
		zap.Int("diagnostics", len(report.Diagnostics)),
		zap.Bool("cancelled", cancelled != nil))

	if cancelled != nil {
		return report, cancelled
	}
	if errors.Is(readErr, context.Canceled) || errors.Is(readErr, context.DeadlineExceeded) {
		return report, readErr
	}
	return report, nil
}

// profileSource streams records through the profiler, honoring cancellation
// and the record limit at record boundaries.
func (s *Scanner) profileSource(ctx context.Context, src Source, report *Report) (*profile.Profile, error) {
	opts := profile.Options{
		MaxSample:          s.opts.Limit,
		DictShareThreshold: s.opts.DictShareThreshold,
	}
	if s.opts.EnableDates {
		opts.DateGuesser = s.dates.Match
	}
	profiler := profile.New(opts, s.logger)

	read := 0
	var readErr error
	for s.opts.Limit <= 0 || read < s.opts.Limit {
		if err := ctx.Err(); err != nil {
			readErr = err
			break
		}
		rec, err := src.Next(ctx)
		if err != nil {
			if !errors.Is(err, io.EOF) {
				readErr = err
			}
			break
		}
		profiler.Add(rec)
		read++
	}
	if skipped := profiler.Skipped(); skipped > 0 {
		report.Diagnostics = append(report.Diagnostics, fmt.Sprintf("%d malformed records skipped", skipped))
	}
	return profiler.Finalize(), readErr
}

// classifyColumn runs the per-column pipeline: profiler intrinsics, rule
// matching, the date fallback and the LLM fallback, in that order.
func (s *Scanner) classifyColumn(ctx context.Context, engine *rules.Engine, params rules.Params, path string, prof *profile.Profile) (ColumnResult, error) {
	if err := ctx.Err(); err != nil {
		return ColumnResult{}, err
	}

	cs := prof.Columns[path]
	samples := prof.Samples[path]
	short := flatten.ShortName(path)
	matches := []rules.Result{}

	// Columns whose base type already names their semantics skip rule
	// evaluation entirely.
	switch cs.Ftype {
	case profile.TypeBool:
		matches = append(matches, rules.Intrinsic("boolean"))
		return s.columnResult(path, cs, matches), nil
	case profile.TypeDatetime:
		matches = append(matches, rules.Intrinsic("datetime"))
		return s.columnResult(path, cs, matches), nil
	case profile.TypeDate:
		m := rules.Intrinsic("date")
		m.Format = cs.DateFormat
		matches = append(matches, m)
		return s.columnResult(path, cs, matches), nil
	case profile.TypeFloat:
		return s.columnResult(path, cs, matches), nil
	}

	if s.opts.Mode != ModeLLM {
		matches = append(matches, engine.MatchFieldName(short, params)...)
		matches = append(matches, engine.MatchValues(short, samples, cs, params)...)

		if len(matches) == 0 && cs.Ftype == profile.TypeStr && s.opts.EnableDates {
			threshold := params.Confidence
			if threshold <= 0 {
				threshold = rules.DefaultConfidence
			}
			if key, conf := s.dates.Score(samples, profile.Stringify, profile.IsEmptyValue); conf > threshold {
				matches = append(matches, rules.Result{
					DataClass:  "datetime",
					Confidence: conf,
					RuleType:   rules.ResultDate,
					Format:     key,
				})
			}
		}
	}

	if s.wantsLLM(matches) {
		if r := s.classifyWithLLM(ctx, short, samples); r != nil {
			matches = append(matches, *r)
		}
	}

	return s.columnResult(path, cs, matches), nil
}

// wantsLLM decides whether the LLM fallback runs for this column.
func (s *Scanner) wantsLLM(matches []rules.Result) bool {
	switch s.opts.Mode {
	case ModeLLM:
		return true
	case ModeHybrid:
		for _, m := range matches {
			if m.RuleType == rules.ResultData && m.Confidence > s.opts.LLMMinConfidence {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func (s *Scanner) classifyWithLLM(ctx context.Context, short string, values []any) *rules.Result {
	samples := make([]string, 0, 5)
	for _, v := range values {
		if profile.IsEmptyValue(v) {
			continue
		}
		samples = append(samples, profile.Stringify(v))
		if len(samples) == 5 {
			break
		}
	}

	s.logger.Debug("llm fallback",
		zap.String("field", short),
		zap.Strings("samples", logging.MaskValues(samples)))

	result := s.classifier.Classify(ctx, llm.Request{
		FieldName: short,
		Samples:   samples,
	})
	if result == nil || result.DatatypeID == "" {
		return nil
	}
	return &rules.Result{
		DataClass:  result.DatatypeID,
		Confidence: result.Confidence * 100,
		RuleType:   rules.ResultLLM,
	}
}

func (s *Scanner) columnResult(path string, cs *profile.ColumnStats, matches []rules.Result) ColumnResult {
	return ColumnResult{
		Field:       path,
		Ftype:       cs.Ftype,
		Tags:        cs.Tags,
		Matches:     matches,
		DatatypeURL: datatypeURL(matches),
	}
}

func ruleSetOrEmpty(set *rules.Set) *rules.Set {
	if set == nil {
		return rules.NewSet()
	}
	return set
}
