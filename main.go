package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"go.uber.org/zap"

	"github.com/apicrafter/metaclass/pkg/apperrors"
	"github.com/apicrafter/metaclass/pkg/config"
	"github.com/apicrafter/metaclass/pkg/connectors"
	"github.com/apicrafter/metaclass/pkg/llm"
	"github.com/apicrafter/metaclass/pkg/rules"
	"github.com/apicrafter/metaclass/pkg/scanner"
)

// Version is set at build time via ldflags
var Version = "dev"

const usage = `metaclass %s - semantic field classification

Usage:
  metaclass scan <path|postgres-dsn>   classify one file or every table of a database
  metaclass scan-dir <dir>             classify every supported file under a directory
  metaclass rules                      compile the rule set and print its statistics

Flags:
  -config     path to a YAML configuration file
  -rules      comma-separated rule files or directories
  -contexts   restrict rules to these contexts
  -langs      restrict rules to these languages
  -countries  restrict rule files to these country codes
  -limit      records profiled per source
  -mode       rules, hybrid or llm
  -output     write the report here instead of stdout
`

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "metaclass: %v\n", err)
		os.Exit(exitCode(err))
	}
}

// exitCode maps error categories to process exit codes.
func exitCode(err error) int {
	switch {
	case errors.Is(err, apperrors.ErrConfiguration):
		return 2
	case errors.Is(err, apperrors.ErrRuleCompile), errors.Is(err, apperrors.ErrNoRules):
		return 3
	case errors.Is(err, apperrors.ErrDataSource):
		return 4
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return 5
	default:
		return 1
	}
}

func run(args []string) error {
	if len(args) == 0 {
		fmt.Fprintf(os.Stderr, usage, Version)
		return fmt.Errorf("%w: missing command", apperrors.ErrConfiguration)
	}
	command, args := args[0], args[1:]

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	configPath := flags.String("config", "", "path to a YAML configuration file")
	rulePaths := flags.String("rules", "", "comma-separated rule files or directories")
	contexts := flags.String("contexts", "", "restrict rules to these contexts")
	langs := flags.String("langs", "", "restrict rules to these languages")
	countries := flags.String("countries", "", "restrict rule files to these country codes")
	limit := flags.Int("limit", 0, "records profiled per source")
	mode := flags.String("mode", "", "rules, hybrid or llm")
	output := flags.String("output", "", "write the report here instead of stdout")
	if err := flags.Parse(args); err != nil {
		return fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		return err
	}
	applyFlagOverrides(cfg, flags, *rulePaths, *contexts, *langs, *countries, *limit, *mode)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer logger.Sync()
	logger = logger.Named("metaclass")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "scan":
		if flags.NArg() != 1 {
			return fmt.Errorf("%w: scan takes exactly one path", apperrors.ErrConfiguration)
		}
		return cmdScan(ctx, cfg, logger, flags.Arg(0), *output)
	case "scan-dir":
		if flags.NArg() != 1 {
			return fmt.Errorf("%w: scan-dir takes exactly one directory", apperrors.ErrConfiguration)
		}
		return cmdScanDir(ctx, cfg, logger, flags.Arg(0), *output)
	case "rules":
		return cmdRules(cfg, logger, *output)
	default:
		fmt.Fprintf(os.Stderr, usage, Version)
		return fmt.Errorf("%w: unknown command %q", apperrors.ErrConfiguration, command)
	}
}

// applyFlagOverrides lets explicitly set flags win over file and environment
// configuration.
func applyFlagOverrides(cfg *config.Config, flags *flag.FlagSet, rulePaths, contexts, langs, countries string, limit int, mode string) {
	set := map[string]bool{}
	flags.Visit(func(f *flag.Flag) { set[f.Name] = true })

	if set["rules"] {
		cfg.RulePathsStr = rulePaths
	}
	if set["contexts"] {
		cfg.ContextsStr = contexts
	}
	if set["langs"] {
		cfg.LangsStr = langs
	}
	if set["countries"] {
		cfg.CountriesStr = countries
	}
	if set["limit"] {
		cfg.Limit = limit
	}
	if set["mode"] {
		cfg.Mode = mode
	}
	cfg.ParseListFields()
}

// loadRuleSet compiles the configured rule files. In llm mode no rules are
// needed and a nil set is returned.
func loadRuleSet(cfg *config.Config, logger *zap.Logger) (*rules.Set, *rules.LoadReport, error) {
	if cfg.Mode == string(scanner.ModeLLM) {
		return nil, nil, nil
	}
	loader := rules.NewLoader(rules.Presets{
		Contexts:  cfg.Contexts,
		Langs:     cfg.Langs,
		Countries: cfg.Countries,
	}, logger)
	return loader.Load(cfg.RulePaths...)
}

// buildClassifier constructs and indexes the retrieval classifier for hybrid
// and llm modes.
func buildClassifier(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*llm.Classifier, error) {
	if cfg.Mode == string(scanner.ModeRules) {
		return nil, nil
	}
	provider := llm.ProviderConfig{
		Provider:   cfg.LLM.Provider,
		BaseURL:    cfg.LLM.BaseURL,
		Model:      cfg.LLM.Model,
		EmbedModel: cfg.LLM.EmbedModel,
		APIKey:     cfg.LLM.APIKey,
	}
	chat, err := llm.NewChatProvider(provider, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}
	embedder, err := llm.NewEmbedder(provider, logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}

	classifier := llm.NewClassifier(llm.ClassifierConfig{
		RegistryPath: cfg.LLM.RegistryPath,
		TopK:         cfg.LLM.TopK,
		MaxRetries:   cfg.LLM.MaxRetries,
		Timeout:      cfg.LLM.Timeout(),
		MaxTokens:    cfg.LLM.MaxTokens,
	}, chat, embedder, llm.NewMemoryStore(), logger)
	if err := classifier.BuildIndex(ctx); err != nil {
		return nil, err
	}
	return classifier, nil
}

// buildScanner wires rules, the optional classifier and scan options.
func buildScanner(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*scanner.Scanner, error) {
	set, _, err := loadRuleSet(cfg, logger)
	if err != nil {
		return nil, err
	}
	classifier, err := buildClassifier(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	opts := scanner.Options{
		Mode:               scanner.Mode(cfg.Mode),
		Limit:              cfg.Limit,
		Contexts:           cfg.Contexts,
		Langs:              cfg.Langs,
		IgnoreImprecise:    cfg.IgnoreImprecise,
		StopOnMatch:        cfg.StopOnMatch,
		Confidence:         cfg.Confidence,
		DictShareThreshold: cfg.DictShareThreshold,
		EnableDates:        cfg.EnableDates,
		LLMMinConfidence:   cfg.LLM.MinConfidence,
	}
	var c scanner.Classifier
	if classifier != nil {
		c = classifier
	}
	return scanner.New(set, c, opts, logger)
}

func cmdScan(ctx context.Context, cfg *config.Config, logger *zap.Logger, path, output string) error {
	sc, err := buildScanner(ctx, cfg, logger)
	if err != nil {
		return err
	}

	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		return scanDatabase(ctx, cfg, logger, sc, path, output)
	}

	src, err := connectors.Open(path)
	if err != nil {
		return err
	}
	defer src.Close()

	report, err := sc.Scan(ctx, filepath.Base(path), src)
	if err != nil {
		return err
	}
	data, err := report.ToJSON()
	if err != nil {
		return err
	}
	return writeOutput(output, append(data, '\n'))
}

// scanDatabase classifies every table of the public schema, one report per
// table as a JSON line.
func scanDatabase(ctx context.Context, cfg *config.Config, logger *zap.Logger, sc *scanner.Scanner, dsn, output string) error {
	conn, err := connectors.NewPostgresConnector(ctx, dsn, cfg.Postgres.QueryTimeout(), logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	tables, err := conn.ListTables(ctx)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(output)
	if err != nil {
		return err
	}
	defer closeOut()

	enc := json.NewEncoder(out)
	for _, table := range tables {
		src, err := conn.TableSource(ctx, table, cfg.Limit)
		if err != nil {
			logger.Warn("table skipped", zap.String("table", table), zap.Error(err))
			continue
		}
		report, err := sc.Scan(ctx, table, src)
		src.Close()
		if err != nil {
			return err
		}
		if err := enc.Encode(report); err != nil {
			return err
		}
	}
	return nil
}

// cmdScanDir walks the directory and emits one JSON line per supported file.
// Files that fail are logged and skipped; cancellation stops the walk.
func cmdScanDir(ctx context.Context, cfg *config.Config, logger *zap.Logger, dir, output string) error {
	sc, err := buildScanner(ctx, cfg, logger)
	if err != nil {
		return err
	}

	out, closeOut, err := openOutput(output)
	if err != nil {
		return err
	}
	defer closeOut()
	enc := json.NewEncoder(out)

	walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("%w: %v", apperrors.ErrDataSource, err)
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() || !connectors.Supported(path) {
			return nil
		}

		src, err := connectors.Open(path)
		if err != nil {
			logger.Warn("file skipped", zap.String("path", path), zap.Error(err))
			return nil
		}
		report, scanErr := sc.Scan(ctx, filepath.Base(path), src)
		src.Close()
		if scanErr != nil {
			if errors.Is(scanErr, context.Canceled) || errors.Is(scanErr, context.DeadlineExceeded) {
				return scanErr
			}
			logger.Warn("file skipped", zap.String("path", path), zap.Error(scanErr))
			return nil
		}
		return enc.Encode(report)
	})
	return walkErr
}

// cmdRules compiles the rule set and prints its statistics.
func cmdRules(cfg *config.Config, logger *zap.Logger, output string) error {
	set, loadReport, err := loadRuleSet(cfg, logger)
	if err != nil {
		return err
	}
	if set == nil {
		return fmt.Errorf("%w: the rules command needs rule paths", apperrors.ErrConfiguration)
	}

	summary := struct {
		Stats    rules.SetStats `json:"stats"`
		Files    int            `json:"files"`
		Skipped  int            `json:"rules_skipped"`
		Problems []string       `json:"problems,omitempty"`
	}{
		Stats:    set.Stats(),
		Files:    loadReport.FilesTotal,
		Skipped:  loadReport.RulesSkipped,
		Problems: loadReport.Problems,
	}
	data, err := json.MarshalIndent(summary, "", "  ")
	if err != nil {
		return err
	}
	return writeOutput(output, append(data, '\n'))
}

func openOutput(path string) (*os.File, func(), error) {
	if path == "" {
		return os.Stdout, func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %v", apperrors.ErrConfiguration, err)
	}
	return f, func() { f.Close() }, nil
}

func writeOutput(path string, data []byte) error {
	out, closeOut, err := openOutput(path)
	if err != nil {
		return err
	}
	defer closeOut()
	_, err = out.Write(data)
	return err
}
