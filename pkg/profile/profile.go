// Package profile computes per-column statistics over streamed records.
package profile

import (
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/montanaflynn/stats"
	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/flatten"
)

// Base types a column value can be classified as.
const (
	TypeStr      = "str"
	TypeInt      = "int"
	TypeFloat    = "float"
	TypeNumStr   = "numstr" // all-digit string with a leading zero
	TypeBool     = "bool"
	TypeDate     = "date"
	TypeDatetime = "datetime"
	TypeEmpty    = "empty"
)

// Tags attached to a column after profiling.
const (
	TagUniq  = "uniq"
	TagDict  = "dict"
	TagEmpty = "empty"
)

// emptyValues are string forms treated as missing data.
var emptyValues = map[string]struct{}{
	"":     {},
	"None": {},
	"NaN":  {},
	"-":    {},
	"N/A":  {},
}

// DateGuesser reports whether a string value matches a known date pattern,
// returning the pattern key on success. Wired in when date parsing is enabled.
type DateGuesser func(s string) (pattern string, ok bool)

// Options configures a Profiler.
type Options struct {
	// MaxSample caps how many values per column are retained for matching.
	MaxSample int
	// DictShareThreshold is the share_uniq percentage at or below which a
	// column is treated as a small vocabulary.
	DictShareThreshold float64
	// DateGuesser, when set, lets the type histogram classify strings as dates.
	DateGuesser DateGuesser
}

// DefaultOptions returns the standard profiling parameters.
func DefaultOptions() Options {
	return Options{
		MaxSample:          1000,
		DictShareThreshold: 10,
	}
}

// ColumnStats is the per-column profiling result.
type ColumnStats struct {
	Key        string   `json:"key"`
	Ftype      string   `json:"ftype"`
	Total      int      `json:"total"`
	NUniq      int      `json:"n_uniq"`
	ShareUniq  float64  `json:"share_uniq"`
	MinLen     int      `json:"minlen"`
	MaxLen     int      `json:"maxlen"`
	AvgLen     float64  `json:"avglen"`
	HasDigit   bool     `json:"has_digit"`
	HasAlphas  bool     `json:"has_alphas"`
	HasSpecial bool     `json:"has_special"`
	MinVal     *float64 `json:"min_val,omitempty"`
	MaxVal     *float64 `json:"max_val,omitempty"`
	Tags       []string `json:"tags"`
	DictValues []string `json:"dict_values,omitempty"`
	// DateFormat is the dominant matched date pattern key, when the
	// date guesser classified the column's strings as dates.
	DateFormat string `json:"date_format,omitempty"`
}

// Profile is the finalized output of a profiling pass.
type Profile struct {
	// Columns maps dotted path to its stats.
	Columns map[string]*ColumnStats
	// Order lists paths in first-seen order across records.
	Order []string
	// Samples holds the retained values per column, in arrival order.
	Samples map[string][]any
}

type column struct {
	total      int
	empties    int
	counts     map[string]int
	typeHist   map[string]int
	lenMin     int
	lenMax     int
	lengths    []float64
	hasDigit   bool
	hasAlphas  bool
	hasSpecial bool
	numMin     float64
	numMax     float64
	numSeen    bool
	dateHist   map[string]int
	samples    []any
}

// Profiler accumulates statistics record by record.
type Profiler struct {
	opts    Options
	logger  *zap.Logger
	cols    map[string]*column
	order   []string
	skipped int
}

// New creates a Profiler. Zero-valued options fall back to defaults.
func New(opts Options, logger *zap.Logger) *Profiler {
	def := DefaultOptions()
	if opts.MaxSample <= 0 {
		opts.MaxSample = def.MaxSample
	}
	if opts.DictShareThreshold <= 0 {
		opts.DictShareThreshold = def.DictShareThreshold
	}
	return &Profiler{
		opts:   opts,
		logger: logger.Named("profile"),
		cols:   make(map[string]*column),
	}
}

// Add folds a single record into the running statistics.
// Malformed (nil) records are counted and skipped.
func (p *Profiler) Add(rec flatten.Record) {
	if rec == nil {
		p.skipped++
		if p.skipped == 1 {
			p.logger.Warn("skipping malformed record")
		}
		return
	}
	for _, pair := range flatten.Walk(rec) {
		col, ok := p.cols[pair.Path]
		if !ok {
			col = &column{
				counts:   make(map[string]int),
				typeHist: make(map[string]int),
				lenMin:   -1,
			}
			p.cols[pair.Path] = col
			p.order = append(p.order, pair.Path)
		}
		p.observe(col, pair.Value)
	}
}

// Skipped reports how many malformed records were dropped.
func (p *Profiler) Skipped() int { return p.skipped }

func (p *Profiler) observe(col *column, v any) {
	col.total++

	ftype, pattern, num, numOK := p.guessType(v)
	col.typeHist[ftype]++
	if pattern != "" {
		if col.dateHist == nil {
			col.dateHist = make(map[string]int)
		}
		col.dateHist[pattern]++
	}
	if numOK {
		if !col.numSeen || num < col.numMin {
			col.numMin = num
		}
		if !col.numSeen || num > col.numMax {
			col.numMax = num
		}
		col.numSeen = true
	}

	if len(col.samples) < p.opts.MaxSample {
		col.samples = append(col.samples, v)
	}

	if ftype == TypeEmpty {
		col.empties++
		return
	}

	s := Stringify(v)
	col.counts[s]++

	n := len(s)
	if col.lenMin < 0 || n < col.lenMin {
		col.lenMin = n
	}
	if n > col.lenMax {
		col.lenMax = n
	}
	col.lengths = append(col.lengths, float64(n))

	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			col.hasDigit = true
		case (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z'):
			col.hasAlphas = true
		case r != ' ':
			col.hasSpecial = true
		}
	}
}

// guessType classifies a single value into a base type. For strings that the
// date guesser recognizes, the matched pattern key is returned alongside.
// Numeric values also return their float form for min/max tracking.
func (p *Profiler) guessType(v any) (ftype, pattern string, num float64, numOK bool) {
	switch t := v.(type) {
	case nil:
		return TypeEmpty, "", 0, false
	case bool:
		return TypeBool, "", 0, false
	case int:
		return TypeInt, "", float64(t), true
	case int32:
		return TypeInt, "", float64(t), true
	case int64:
		return TypeInt, "", float64(t), true
	case float32:
		return TypeFloat, "", float64(t), true
	case float64:
		return TypeFloat, "", t, true
	case time.Time:
		if isMidnight(t) {
			return TypeDate, "", 0, false
		}
		return TypeDatetime, "", 0, false
	case string:
		return p.guessStringType(t)
	default:
		return TypeStr, "", 0, false
	}
}

func (p *Profiler) guessStringType(s string) (ftype, pattern string, num float64, numOK bool) {
	if _, empty := emptyValues[s]; empty {
		return TypeEmpty, "", 0, false
	}
	if isAllDigits(s) {
		f, _ := strconv.ParseFloat(s, 64)
		if s[0] == '0' && len(s) > 1 {
			return TypeNumStr, "", f, true
		}
		return TypeInt, "", f, true
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return TypeFloat, "", f, true
	}
	if p.opts.DateGuesser != nil {
		if key, ok := p.opts.DateGuesser(s); ok {
			return TypeDate, key, 0, false
		}
	}
	return TypeStr, "", 0, false
}

// Finalize closes the profiling pass and produces stats for every retained
// column. Columns whose path is a single character or starts with a digit are
// dropped here (accidental array-index keys survive flattening but never
// reach the report).
func (p *Profiler) Finalize() *Profile {
	out := &Profile{
		Columns: make(map[string]*ColumnStats, len(p.cols)),
		Samples: make(map[string][]any, len(p.cols)),
	}

	for _, path := range p.order {
		if len(path) < 2 || (path[0] >= '0' && path[0] <= '9') {
			continue
		}
		col := p.cols[path]
		cs := p.finalizeColumn(path, col)
		out.Columns[path] = cs
		out.Samples[path] = col.samples
		out.Order = append(out.Order, path)
	}

	p.logger.Info("profiling complete",
		zap.Int("columns", len(out.Order)),
		zap.Int("skipped_records", p.skipped))
	return out
}

func (p *Profiler) finalizeColumn(path string, col *column) *ColumnStats {
	cs := &ColumnStats{
		Key:        path,
		Total:      col.total,
		NUniq:      len(col.counts),
		HasDigit:   col.hasDigit,
		HasAlphas:  col.hasAlphas,
		HasSpecial: col.hasSpecial,
		Tags:       []string{},
	}
	if col.lenMin > 0 {
		cs.MinLen = col.lenMin
	}
	cs.MaxLen = col.lenMax
	if len(col.lengths) > 0 {
		if mean, err := stats.Mean(col.lengths); err == nil {
			cs.AvgLen = mean
		}
	}
	if col.total > 0 {
		cs.ShareUniq = float64(cs.NUniq) * 100 / float64(col.total)
	}
	if col.numSeen {
		minv, maxv := col.numMin, col.numMax
		cs.MinVal = &minv
		cs.MaxVal = &maxv
	}

	cs.Ftype = dominantType(col.typeHist)
	if cs.Ftype == TypeDate && len(col.dateHist) > 0 {
		cs.DateFormat = dominantType(col.dateHist)
	}

	allEmpty := col.empties == col.total
	// uniq means every recorded value, empties included, is distinct.
	if cs.NUniq > 0 && cs.ShareUniq == 100 {
		cs.Tags = append(cs.Tags, TagUniq)
	}
	if !allEmpty && cs.ShareUniq <= p.opts.DictShareThreshold {
		cs.Tags = append(cs.Tags, TagDict)
		cs.DictValues = sortedKeys(col.counts)
	}
	if col.empties > 0 {
		cs.Tags = append(cs.Tags, TagEmpty)
	}

	return cs
}

// dominantType resolves a type histogram to the final ftype: empties are
// discarded, a single surviving type wins, anything mixed is a string.
func dominantType(hist map[string]int) string {
	var only string
	n := 0
	for t, c := range hist {
		if t == TypeEmpty || c == 0 {
			continue
		}
		only = t
		n++
	}
	switch n {
	case 0:
		return TypeEmpty
	case 1:
		return only
	default:
		return TypeStr
	}
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

func isMidnight(t time.Time) bool {
	return t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
}

// Stringify renders a value the way matchers see it.
func Stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(t), 'f', -1, 32)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case time.Time:
		return t.Format(time.RFC3339)
	default:
		return fmt.Sprint(t)
	}
}

// IsEmptyValue reports whether a value counts as missing for matching.
func IsEmptyValue(v any) bool {
	if v == nil {
		return true
	}
	if s, ok := v.(string); ok {
		_, empty := emptyValues[s]
		return empty
	}
	return false
}

// TrimToSample returns at most n leading values.
func TrimToSample(values []any, n int) []any {
	if n > 0 && len(values) > n {
		return values[:n]
	}
	return values
}
