package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/astrule/pkg/config"
	"github.com/Sumatoshi-tech/astrule/pkg/observability"
	"github.com/Sumatoshi-tech/astrule/pkg/ruleset"
	"github.com/Sumatoshi-tech/astrule/pkg/scan"
	"github.com/Sumatoshi-tech/astrule/pkg/syntax"
)

// ErrErrorFindings is returned by scan when a finding has error severity.
var ErrErrorFindings = errors.New("scan reported error findings")

// ErrPatternLanguage is returned when --pattern is given without --lang.
var ErrPatternLanguage = errors.New("--pattern requires --lang")

type scanFlags struct {
	configPath  string
	rules       []string
	pattern     string
	language    string
	format      string
	maxFileSize string
	workers     int
	noColor     bool
}

// NewScanCommand creates the scan command.
func NewScanCommand() *cobra.Command {
	var flags scanFlags

	cmd := &cobra.Command{
		Use:   "scan [paths...]",
		Short: "Run rules over files and directories",
		Long: `Scan source files with YAML rules or a single code pattern.

Directories are walked recursively; hidden and vendored entries are skipped.
The exit status is 1 when any finding has error severity.

Examples:
  astrule scan --rules rules/ src/
  astrule scan --pattern 'console.log($$$ARGS)' --lang javascript .
  astrule scan --format json --workers 4 .`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, args, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "path to config file (default .astrule.yaml)")
	cmd.Flags().StringSliceVarP(&flags.rules, "rules", "r", nil, "rule files or directories")
	cmd.Flags().StringVarP(&flags.pattern, "pattern", "p", "", "search for a single code pattern instead of rules")
	cmd.Flags().StringVarP(&flags.language, "lang", "l", "", "parse every file with this language")
	cmd.Flags().StringVarP(&flags.format, "format", "f", config.DefaultOutputFormat, "output format: text, table or json")
	cmd.Flags().StringVar(&flags.maxFileSize, "max-file-size", config.DefaultScanMaxFileSize, "skip larger files (e.g. 512KiB)")
	cmd.Flags().IntVarP(&flags.workers, "workers", "w", config.DefaultScanWorkers, "concurrent files (0 uses all CPUs)")
	cmd.Flags().BoolVar(&flags.noColor, "no-color", false, "disable colored output")

	return cmd
}

func runScan(cmd *cobra.Command, paths []string, flags scanFlags) error {
	cfg, err := config.LoadConfig(flags.configPath)
	if err != nil {
		return err
	}

	applyScanFlags(cmd, cfg, flags)

	err = cfg.Validate()
	if err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}

	providers, err := initObservability(cfg, observability.ModeCLI, cmd.ErrOrStderr(), false)
	if err != nil {
		return err
	}

	defer shutdownObservability(providers)

	rules, err := scanRules(cfg, flags.pattern)
	if err != nil {
		return err
	}

	scanner, err := newScanner(cfg, rules, providers)
	if err != nil {
		return err
	}

	if len(paths) == 0 {
		paths = []string{"."}
	}

	report, err := scanner.ScanPaths(cmd.Context(), paths...)
	if err != nil {
		return err
	}

	err = renderReport(cmd.OutOrStdout(), report, cfg.Output.Format, cfg.Output.Color)
	if err != nil {
		return err
	}

	if report.HasErrors() {
		return ErrErrorFindings
	}

	return nil
}

// applyScanFlags overrides configuration with flags set on the command line.
func applyScanFlags(cmd *cobra.Command, cfg *config.Config, flags scanFlags) {
	changed := cmd.Flags().Changed

	if changed("rules") {
		cfg.Rules.Paths = flags.rules
	}

	if changed("lang") {
		cfg.Scan.Language = flags.language
	}

	if changed("format") {
		cfg.Output.Format = flags.format
	}

	if changed("max-file-size") {
		cfg.Scan.MaxFileSize = flags.maxFileSize
	}

	if changed("workers") {
		cfg.Scan.Workers = flags.workers
	}

	if flags.noColor {
		cfg.Output.Color = false
	}
}

func scanRules(cfg *config.Config, pattern string) ([]*ruleset.Rule, error) {
	if pattern == "" {
		return ruleset.LoadPaths(cfg.Rules.Paths...)
	}

	if cfg.Scan.Language == "" {
		return nil, ErrPatternLanguage
	}

	r, err := ruleset.FromPattern(syntax.NormalizeLanguage(cfg.Scan.Language), pattern)
	if err != nil {
		return nil, err
	}

	return []*ruleset.Rule{r}, nil
}

func newScanner(cfg *config.Config, rules []*ruleset.Rule, providers observability.Providers) (*scan.Scanner, error) {
	maxSize, err := cfg.MaxFileSizeBytes()
	if err != nil {
		return nil, err
	}

	metrics, err := observability.NewScanMetrics(providers.Meter)
	if err != nil {
		return nil, err
	}

	opts := []scan.Option{
		scan.WithWorkers(cfg.Scan.Workers),
		scan.WithMaxFileSize(maxSize),
		scan.WithLogger(providers.Logger),
		scan.WithMetrics(metrics),
		scan.WithTracer(providers.Tracer),
	}

	if cfg.Scan.Language != "" {
		lang := syntax.NormalizeLanguage(cfg.Scan.Language)
		if !syntax.Supported(lang) {
			return nil, fmt.Errorf("%w: %s", syntax.ErrUnsupportedLanguage, syntax.Describe(cfg.Scan.Language))
		}

		opts = append(opts, scan.WithLanguage(lang))
	}

	return scan.New(rules, opts...)
}
