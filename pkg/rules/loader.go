package rules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/apicrafter/metaclass/pkg/apperrors"
)

// Presets narrow which rule files and rules are compiled at all.
// Empty slices mean no restriction.
type Presets struct {
	Contexts  []string
	Langs     []string
	Countries []string
}

// LoadReport summarizes a load pass for diagnostics.
type LoadReport struct {
	FilesTotal    int
	FilesSkipped  int
	FilesFailed   int
	RulesCompiled int
	RulesSkipped  int
	Problems      []string
}

// Loader reads rule definition files into a compiled Set.
type Loader struct {
	presets Presets
	logger  *zap.Logger
}

// NewLoader creates a rule loader with the given presets.
func NewLoader(presets Presets, logger *zap.Logger) *Loader {
	return &Loader{presets: presets, logger: logger.Named("rules")}
}

// ruleFile mirrors the top level of a rule definition document. The rules
// mapping is kept as a raw node so document order survives decoding.
type ruleFile struct {
	Name        string    `yaml:"name"`
	Description string    `yaml:"description"`
	Context     string    `yaml:"context"`
	Lang        string    `yaml:"lang"`
	CountryCode yaml.Node `yaml:"country_code"`
	Rules       yaml.Node `yaml:"rules"`
}

// ruleDef mirrors a single rule entry.
type ruleDef struct {
	Key            string `yaml:"key"`
	PIIKey         string `yaml:"piikey"`
	Type           string `yaml:"type"`
	Match          string `yaml:"match"`
	Rule           string `yaml:"rule"`
	MinLen         int    `yaml:"minlen"`
	MaxLen         int    `yaml:"maxlen"`
	Priority       int    `yaml:"priority"`
	Validator      string `yaml:"validator"`
	FieldRule      string `yaml:"fieldrule"`
	FieldRuleMatch string `yaml:"fieldrulematch"`
	Imprecise      int    `yaml:"imprecise"`
}

// Load walks every path recursively, compiles all matching rule files and
// returns the combined set. Individual file or rule failures are logged and
// reported, not fatal; an entirely empty outcome is.
func (l *Loader) Load(paths ...string) (*Set, *LoadReport, error) {
	set := NewSet()
	report := &LoadReport{}

	var files []string
	for _, root := range paths {
		info, err := os.Stat(root)
		if err != nil {
			return nil, nil, fmt.Errorf("%w: %s: %v", apperrors.ErrConfiguration, root, err)
		}
		if !info.IsDir() {
			files = append(files, root)
			continue
		}
		err = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				return nil
			}
			ext := strings.ToLower(filepath.Ext(path))
			if ext == ".yaml" || ext == ".yml" {
				files = append(files, path)
			}
			return nil
		})
		if err != nil {
			return nil, nil, fmt.Errorf("%w: walking %s: %v", apperrors.ErrConfiguration, root, err)
		}
	}

	for _, path := range files {
		report.FilesTotal++
		if err := l.loadFile(set, report, path); err != nil {
			report.FilesFailed++
			report.Problems = append(report.Problems, fmt.Sprintf("%s: %v", path, err))
			l.logger.Warn("rule file skipped", zap.String("path", path), zap.Error(err))
		}
	}

	if set.Len() == 0 {
		return nil, report, fmt.Errorf("%w: %d files considered", apperrors.ErrNoRules, report.FilesTotal)
	}

	l.logger.Info("rules loaded",
		zap.Int("field_rules", len(set.FieldRules)),
		zap.Int("data_rules", len(set.DataRules)),
		zap.Int("files", report.FilesTotal),
		zap.Int("files_failed", report.FilesFailed))
	return set, report, nil
}

func (l *Loader) loadFile(set *Set, report *LoadReport, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read: %w", err)
	}

	var file ruleFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("decode: %w", err)
	}

	if !l.fileSelected(&file) {
		report.FilesSkipped++
		return nil
	}

	if file.Rules.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: missing rules mapping", apperrors.ErrRuleCompile)
	}

	context := splitTags(file.Context, ".")
	countries := decodeStringOrList(&file.CountryCode)

	// Mapping nodes interleave key and value nodes; walking them pairwise
	// preserves the order rules were written in.
	for i := 0; i+1 < len(file.Rules.Content); i += 2 {
		id := file.Rules.Content[i].Value
		var def ruleDef
		if err := file.Rules.Content[i+1].Decode(&def); err != nil {
			report.RulesSkipped++
			report.Problems = append(report.Problems, fmt.Sprintf("%s: rule %s: %v", path, id, err))
			l.logger.Warn("rule skipped", zap.String("rule_id", id), zap.Error(err))
			continue
		}

		rule, err := compileRule(id, &def, context, file.Lang, countries, file.Name, file.Description)
		if err != nil {
			report.RulesSkipped++
			report.Problems = append(report.Problems, fmt.Sprintf("%s: rule %s: %v", path, id, err))
			l.logger.Warn("rule skipped", zap.String("rule_id", id), zap.Error(err))
			continue
		}

		if set.add(rule) {
			report.RulesCompiled++
		} else {
			// First definition of an id wins across all files.
			l.logger.Debug("duplicate rule id ignored", zap.String("rule_id", id), zap.String("path", path))
		}
	}

	return nil
}

// fileSelected applies the preset filters to a file's header.
func (l *Loader) fileSelected(file *ruleFile) bool {
	if len(l.presets.Langs) > 0 && !contains(l.presets.Langs, file.Lang) {
		return false
	}
	if len(l.presets.Contexts) > 0 {
		if !intersects(splitTags(file.Context, "."), l.presets.Contexts) {
			return false
		}
	}
	if len(l.presets.Countries) > 0 {
		// A file that declares no country_code is country-agnostic and is
		// excluded whenever a country filter is in force.
		countries := decodeStringOrList(&file.CountryCode)
		if !intersects(countries, l.presets.Countries) {
			return false
		}
	}
	return true
}

func compileRule(id string, def *ruleDef, context []string, lang string, countries []string, group, groupDesc string) (*Rule, error) {
	if def.Key == "" {
		return nil, fmt.Errorf("%w: missing dataclass key", apperrors.ErrRuleCompile)
	}

	ruleType := RuleType(def.Type)
	if def.Type == "" {
		ruleType = TypeData
	}
	if ruleType != TypeField && ruleType != TypeData {
		return nil, fmt.Errorf("%w: unknown type %q", apperrors.ErrRuleCompile, def.Type)
	}

	r := &Rule{
		ID:               id,
		DataClass:        def.Key,
		PIIKey:           def.PIIKey,
		Type:             ruleType,
		Match:            MatchKind(def.Match),
		Lang:             lang,
		Countries:        countries,
		Imprecise:        def.Imprecise != 0,
		Priority:         def.Priority,
		Group:            group,
		GroupDescription: groupDesc,
		Expr:             def.Rule,
	}

	r.Context = append(r.Context, context...)
	if r.PIIKey != "" && !r.HasContext("pii") {
		r.Context = append(r.Context, "pii")
	}

	switch r.Match {
	case MatchPPR:
		re, err := CompilePattern(def.Rule)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrRuleCompile, err)
		}
		r.re = re
	case MatchText:
		r.keywords = keywordSet(def.Rule)
		if len(r.keywords) == 0 {
			return nil, fmt.Errorf("%w: empty keyword list", apperrors.ErrRuleCompile)
		}
	case MatchFunc:
		fn, ok := LookupPredicate(def.Rule)
		if !ok {
			return nil, fmt.Errorf("%w: unknown predicate %q", apperrors.ErrRuleCompile, def.Rule)
		}
		r.fn = fn
		r.fnName = def.Rule
	case MatchRegex:
		re, err := regexp.Compile(`\A(?:` + def.Rule + `)\z`)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrRuleCompile, err)
		}
		r.re = re
	default:
		return nil, fmt.Errorf("%w: unknown match kind %q", apperrors.ErrRuleCompile, def.Match)
	}

	if def.Validator != "" {
		fn, ok := LookupPredicate(def.Validator)
		if !ok {
			return nil, fmt.Errorf("%w: unknown validator %q", apperrors.ErrRuleCompile, def.Validator)
		}
		r.validator = fn
	}

	if def.FieldRule != "" {
		gate, err := compileFieldGate(def.FieldRule, def.FieldRuleMatch)
		if err != nil {
			return nil, err
		}
		r.fieldGate = gate
	}

	r.MinLen, r.MaxLen = lengthBounds(def, r.keywords)
	if r.MinLen > r.MaxLen {
		return nil, fmt.Errorf("%w: minlen %d > maxlen %d", apperrors.ErrRuleCompile, r.MinLen, r.MaxLen)
	}

	return r, nil
}

func compileFieldGate(expr, kind string) (*fieldGate, error) {
	switch MatchKind(kind) {
	case MatchPPR:
		re, err := CompilePattern(expr)
		if err != nil {
			return nil, fmt.Errorf("%w: field gate: %v", apperrors.ErrRuleCompile, err)
		}
		return &fieldGate{kind: MatchPPR, re: re}, nil
	case MatchText:
		kw := keywordSet(expr)
		if len(kw) == 0 {
			return nil, fmt.Errorf("%w: field gate: empty keyword list", apperrors.ErrRuleCompile)
		}
		return &fieldGate{kind: MatchText, keywords: kw}, nil
	default:
		return nil, fmt.Errorf("%w: fieldrulematch must be ppr or text, got %q", apperrors.ErrRuleCompile, kind)
	}
}

// lengthBounds resolves the rule's value-length window. Keyword rules derive
// bounds from the keywords themselves unless the file overrides them.
func lengthBounds(def *ruleDef, keywords map[string]struct{}) (int, int) {
	minLen, maxLen := def.MinLen, def.MaxLen
	if len(keywords) > 0 {
		kwMin, kwMax := -1, 0
		for k := range keywords {
			if kwMin < 0 || len(k) < kwMin {
				kwMin = len(k)
			}
			if len(k) > kwMax {
				kwMax = len(k)
			}
		}
		if minLen == 0 {
			minLen = kwMin
		}
		if maxLen == 0 {
			maxLen = kwMax
		}
	}
	if minLen == 0 {
		minLen = DefaultMinLen
	}
	if maxLen == 0 {
		maxLen = DefaultMaxLen
	}
	return minLen, maxLen
}

func keywordSet(csv string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, part := range strings.Split(csv, ",") {
		k := strings.ToLower(strings.TrimSpace(part))
		if k != "" {
			out[k] = struct{}{}
		}
	}
	return out
}

func splitTags(s, sep string) []string {
	if s == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(s, sep) {
		if t := strings.TrimSpace(part); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// decodeStringOrList handles fields that may be written as a scalar or a list.
func decodeStringOrList(node *yaml.Node) []string {
	switch node.Kind {
	case yaml.ScalarNode:
		if node.Value == "" {
			return nil
		}
		return []string{node.Value}
	case yaml.SequenceNode:
		out := make([]string, 0, len(node.Content))
		for _, n := range node.Content {
			if n.Value != "" {
				out = append(out, n.Value)
			}
		}
		return out
	default:
		return nil
	}
}

func contains(haystack []string, needle string) bool {
	for _, s := range haystack {
		if s == needle {
			return true
		}
	}
	return false
}

func intersects(a, b []string) bool {
	for _, x := range a {
		if contains(b, x) {
			return true
		}
	}
	return false
}
