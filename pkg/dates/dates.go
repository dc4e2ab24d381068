// Package dates matches string values against a library of date patterns.
// It backs both the profiler's date guessing and the fallback applied to
// string columns that no data rule claimed.
package dates

import (
	"regexp"
	"time"
)

// Pattern pairs a cheap regex prefilter with the layout that confirms it.
type Pattern struct {
	Key    string
	re     *regexp.Regexp
	layout string
}

// The pattern library, most common shapes first. The prefilter rejects the
// bulk of non-date strings before time.Parse runs.
var patterns = []Pattern{
	{"iso8601_date", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`), "2006-01-02"},
	{"iso8601_datetime", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}[T ]\d{2}:\d{2}:\d{2}$`), "2006-01-02T15:04:05"},
	{"rfc3339", regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}(?:\.\d+)?(?:Z|[+-]\d{2}:\d{2})$`), time.RFC3339},
	{"date_dmy_dot", regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4}$`), "02.01.2006"},
	{"date_dmy_slash", regexp.MustCompile(`^\d{2}/\d{2}/\d{4}$`), "02/01/2006"},
	{"date_mdy_slash", regexp.MustCompile(`^\d{1,2}/\d{1,2}/\d{4}$`), "1/2/2006"},
	{"date_ymd_slash", regexp.MustCompile(`^\d{4}/\d{2}/\d{2}$`), "2006/01/02"},
	{"date_dmy_dash", regexp.MustCompile(`^\d{2}-\d{2}-\d{4}$`), "02-01-2006"},
	{"date_d_mon_y", regexp.MustCompile(`^\d{1,2} [A-Za-z]{3} \d{4}$`), "2 Jan 2006"},
	{"date_d_month_y", regexp.MustCompile(`^\d{1,2} [A-Za-z]{4,9} \d{4}$`), "2 January 2006"},
	{"date_mon_d_y", regexp.MustCompile(`^[A-Za-z]{3} \d{1,2}, \d{4}$`), "Jan 2, 2006"},
	{"date_month_d_y", regexp.MustCompile(`^[A-Za-z]{4,9} \d{1,2}, \d{4}$`), "January 2, 2006"},
	{"datetime_dmy_dot", regexp.MustCompile(`^\d{2}\.\d{2}\.\d{4} \d{2}:\d{2}(?::\d{2})?$`), "02.01.2006 15:04:05"},
	{"date_compact", regexp.MustCompile(`^\d{8}$`), "20060102"},
}

// Matcher tries known date patterns against values.
type Matcher struct {
	patterns []Pattern
}

// New builds a matcher over the built-in pattern library.
func New() *Matcher {
	return &Matcher{patterns: patterns}
}

// Match returns the key of the first pattern that fully parses the value.
func (m *Matcher) Match(s string) (string, bool) {
	for _, p := range m.patterns {
		if !p.re.MatchString(s) {
			continue
		}
		layout := p.layout
		if p.Key == "datetime_dmy_dot" && len(s) == 16 {
			layout = "02.01.2006 15:04"
		}
		if _, err := time.Parse(layout, s); err == nil {
			return p.Key, true
		}
	}
	return "", false
}

// Score counts how many non-empty values parse as dates and reports the
// dominant pattern key with the match share as a percentage.
func (m *Matcher) Score(values []any, stringify func(any) string, isEmpty func(any) bool) (key string, confidence float64) {
	total, empty, success := 0, 0, 0
	hist := make(map[string]int)

	for _, v := range values {
		total++
		if isEmpty(v) {
			empty++
			continue
		}
		if k, ok := m.Match(stringify(v)); ok {
			success++
			hist[k]++
		}
	}

	denom := total - empty
	if denom <= 0 || success == 0 {
		return "", 0
	}

	best, bestN := "", 0
	for k, n := range hist {
		if n > bestN || (n == bestN && k < best) {
			best, bestN = k, n
		}
	}
	return best, float64(success) * 100 / float64(denom)
}
