package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/xab-mack/contractscan/internal/cache"
	"github.com/xab-mack/contractscan/internal/config"
	"github.com/xab-mack/contractscan/internal/engine"
	"github.com/xab-mack/contractscan/internal/logging"
	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
	"github.com/xab-mack/contractscan/internal/report"
	"github.com/xab-mack/contractscan/internal/tui"
)

// ErrThresholdMet is returned by scan when --fail-on matched a finding.
var ErrThresholdMet = errors.New("fail-on threshold met")

func AddCommands(root *cobra.Command, version string) {
	root.AddCommand(newScanCmd(version))
	root.AddCommand(newInitCmd())
	root.AddCommand(newRulesCmd())
	root.AddCommand(newMCPCmd(version))
}

type scanOptions struct {
	format        string
	configPath    string
	threshold     string
	failOn        string
	budgetMs      int
	outputFile    string
	baseline      string
	writeBaseline string
	deltaOnly     bool
	useTUI        bool
	noCache       bool
}

func newScanCmd(version string) *cobra.Command {
	var opts scanOptions
	cmd := &cobra.Command{
		Use:   "scan [path]",
		Short: "Scan Solidity contracts for vulnerabilities",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "."
			if len(args) > 0 {
				path = args[0]
			}
			return runScan(cmd, path, version, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.format, "format", "f", "table", "Output format: table|json|sarif")
	cmd.Flags().StringVarP(&opts.configPath, "config", "c", "", "Config file (default: search upward for "+config.FileName+")")
	cmd.Flags().StringVar(&opts.threshold, "threshold", "", "Minimum severity to report (overrides config)")
	cmd.Flags().StringVar(&opts.failOn, "fail-on", "", "Exit non-zero if a finding of this severity or higher is found (low|medium|high|critical)")
	cmd.Flags().IntVar(&opts.budgetMs, "budget-ms", 0, "Time budget for the scan in milliseconds (default: config)")
	cmd.Flags().StringVarP(&opts.outputFile, "out", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().StringVar(&opts.baseline, "baseline", "", "Suppress findings whose fingerprints are in this baseline file")
	cmd.Flags().StringVar(&opts.writeBaseline, "write-baseline", "", "Write a baseline file with finding fingerprints")
	cmd.Flags().BoolVar(&opts.deltaOnly, "delta", false, "Analyze only files changed in the git worktree")
	cmd.Flags().BoolVar(&opts.useTUI, "tui", false, "Browse findings interactively")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "Disable the parse cache")
	return cmd
}

func runScan(cmd *cobra.Command, path, version string, opts scanOptions) error {
	switch opts.format {
	case "table", "json", "sarif":
	default:
		return fmt.Errorf("unknown format %q: want table, json or sarif", opts.format)
	}
	if opts.failOn != "" && !model.ValidSeverity(strings.ToLower(opts.failOn)) {
		return fmt.Errorf("--fail-on %q: want one of critical, high, medium, low, info", opts.failOn)
	}

	cfg, err := loadConfig(path, opts.configPath)
	if err != nil {
		return err
	}
	if opts.threshold != "" {
		cfg.SeverityThreshold = strings.ToLower(opts.threshold)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}
	log := logging.New(cmd.ErrOrStderr(), cfg.LogLevel)

	engOpts := []engine.Option{engine.WithLogger(log)}
	if store := openCache(cfg, opts.noCache, log); store != nil {
		engOpts = append(engOpts, engine.WithCache(store))
	}
	eng := engine.New(cfg, engOpts...)

	result, err := eng.Scan(cmd.Context(), model.ScanRequest{
		Path:       path,
		DeltaOnly:  opts.deltaOnly,
		TimeBudget: time.Duration(opts.budgetMs) * time.Millisecond,
		ConfigPath: opts.configPath,
		Baseline:   opts.baseline,
	})
	if err != nil {
		return err
	}

	if opts.writeBaseline != "" {
		if err := engine.WriteBaseline(opts.writeBaseline, result.Findings); err != nil {
			return fmt.Errorf("writing baseline: %w", err)
		}
	}

	if opts.useTUI {
		if err := tui.Run(result.Report, scanRoot(path)); err != nil {
			return err
		}
	} else if err := writeReport(cmd.OutOrStdout(), opts, result, rulesFor(eng), version); err != nil {
		return err
	}

	if opts.failOn != "" {
		threshold := model.ParseSeverity(strings.ToLower(opts.failOn))
		for _, f := range result.Findings {
			if model.SeverityGTE(f.Severity, threshold) {
				return fmt.Errorf("%w: %s finding %q at %s", ErrThresholdMet, f.Severity, f.Title, report.Location(f))
			}
		}
	}
	return nil
}

// scanRoot is the directory finding paths are relative to.
func scanRoot(path string) string {
	if fi, err := os.Stat(path); err == nil && !fi.IsDir() {
		return filepath.Dir(path)
	}
	return path
}

func loadConfig(path, explicit string) (config.Config, error) {
	if explicit != "" {
		return config.LoadFile(explicit)
	}
	cfg, _, err := config.Load(path)
	return cfg, err
}

// openCache returns nil when caching is disabled or the directory is unusable.
func openCache(cfg config.Config, disabled bool, log logging.Logger) *cache.Store {
	if disabled || cfg.CacheDir == config.CacheOff {
		return nil
	}
	dir := cfg.CacheDir
	if dir == "" {
		d, err := cache.DefaultDir()
		if err != nil {
			log.Warn("cache disabled", logging.F("error", err.Error()))
			return nil
		}
		dir = d
	}
	store, err := cache.Open(dir)
	if err != nil {
		log.Warn("cache disabled", logging.F("dir", dir), logging.F("error", err.Error()))
		return nil
	}
	log.Debug("parse cache", logging.F("dir", store.Dir()))
	return store
}

func rulesFor(eng *engine.Engine) []report.RuleInfo {
	var rules []report.RuleInfo
	for _, d := range eng.Detectors() {
		rules = append(rules, ruleInfo(d))
	}
	return rules
}

func ruleInfo(d *plugins.Detector) report.RuleInfo {
	return report.RuleInfo{ID: d.Name, Description: d.Description, HelpURI: plugins.SWCURL(d.SWCID)}
}

func writeReport(stdout io.Writer, opts scanOptions, result *model.ScanResult, rules []report.RuleInfo, version string) error {
	w := stdout
	if opts.outputFile != "" {
		f, err := os.Create(opts.outputFile)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}
	switch opts.format {
	case "json":
		return report.WriteJSON(w, result)
	case "sarif":
		data, err := report.ToSARIF(result.Findings, rules, version)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	default:
		_, err := fmt.Fprint(w, report.RenderTable(result.Report))
		if err == nil {
			_, err = fmt.Fprintf(w, "  %d file(s) scanned in %s\n", len(result.Files), result.Elapsed.Round(time.Millisecond))
		}
		return err
	}
}
