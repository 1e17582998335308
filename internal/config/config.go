package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
)

// FileName is the config file searched for upward from the scan path.
const FileName = ".contractscan.yaml"

// CacheOff disables the parse cache when used as cache_dir.
const CacheOff = "off"

// ErrInvalidConfig wraps every validation failure.
var ErrInvalidConfig = errors.New("invalid config")

type IgnoreRule struct {
	Rule    string `yaml:"rule"`
	Path    string `yaml:"path"`
	Reason  string `yaml:"reason"`
	Expires string `yaml:"expires"`
}

// Expired reports whether the rule's expiry date (YYYY-MM-DD) is before now.
// Rules without a parseable date never expire.
func (r IgnoreRule) Expired(now time.Time) bool {
	if r.Expires == "" {
		return false
	}
	t, err := time.Parse(time.DateOnly, r.Expires)
	if err != nil {
		return false
	}
	return now.After(t.AddDate(0, 0, 1))
}

type Config struct {
	SeverityThreshold string             `yaml:"severity_threshold"`
	TimeBudgetMs      int                `yaml:"time_budget_ms"`
	MaxSourceBytes    int                `yaml:"max_source_bytes"`
	Concurrency       int                `yaml:"concurrency"`
	Detectors         []string           `yaml:"detectors,omitempty"`
	Ignore            []IgnoreRule       `yaml:"ignore,omitempty"`
	Confidence        map[string]float64 `yaml:"confidence,omitempty"`
	CacheDir          string             `yaml:"cache_dir,omitempty"`
	LogLevel          string             `yaml:"log_level"`
}

func Default() Config {
	return Config{
		SeverityThreshold: string(model.SeverityInfo),
		TimeBudgetMs:      4500,
		MaxSourceBytes:    1 << 20,
		LogLevel:          "warn",
	}
}

// TimeBudget is the whole-scan wall-clock budget; zero means unbounded.
func (c Config) TimeBudget() time.Duration {
	return time.Duration(c.TimeBudgetMs) * time.Millisecond
}

func (c Config) Threshold() model.Severity {
	return model.ParseSeverity(c.SeverityThreshold)
}

// Validate rejects unknown severities, unknown detector names and negative
// limits.
func (c Config) Validate() error {
	var errs []error
	if c.SeverityThreshold != "" && !model.ValidSeverity(c.SeverityThreshold) {
		errs = append(errs, fmt.Errorf("severity_threshold %q: want one of critical, high, medium, low, info", c.SeverityThreshold))
	}
	if c.TimeBudgetMs < 0 {
		errs = append(errs, fmt.Errorf("time_budget_ms must not be negative, got %d", c.TimeBudgetMs))
	}
	if c.MaxSourceBytes < 0 {
		errs = append(errs, fmt.Errorf("max_source_bytes must not be negative, got %d", c.MaxSourceBytes))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency must not be negative, got %d", c.Concurrency))
	}
	for _, name := range c.Detectors {
		if _, ok := plugins.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("unknown detector %q", name))
		}
	}
	for name, v := range c.Confidence {
		if _, ok := plugins.Lookup(name); !ok {
			errs = append(errs, fmt.Errorf("confidence: unknown detector %q", name))
		}
		if v < 0 || v > 1 {
			errs = append(errs, fmt.Errorf("confidence[%s] must be within [0,1], got %g", name, v))
		}
	}
	for i, ig := range c.Ignore {
		if ig.Rule == "" && ig.Path == "" {
			errs = append(errs, fmt.Errorf("ignore[%d]: rule or path is required", i))
		}
		if ig.Expires != "" {
			if _, err := time.Parse(time.DateOnly, ig.Expires); err != nil {
				errs = append(errs, fmt.Errorf("ignore[%d]: expires %q is not YYYY-MM-DD", i, ig.Expires))
			}
		}
	}
	if len(errs) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %w", ErrInvalidConfig, errors.Join(errs...))
}

// Load searches upward from startDir for FileName. It returns the defaults
// and an empty path when none is found.
func Load(startDir string) (Config, string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return Default(), "", err
	}
	if fi, err := os.Stat(dir); err == nil && !fi.IsDir() {
		dir = filepath.Dir(dir)
	}
	for {
		candidate := filepath.Join(dir, FileName)
		if _, err := os.Stat(candidate); err == nil {
			cfg, err := LoadFile(candidate)
			return cfg, candidate, err
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}
	return Default(), "", nil
}

// LoadFile reads one config file over the defaults.
func LoadFile(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Default(), fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.SeverityThreshold = strings.ToLower(strings.TrimSpace(cfg.SeverityThreshold))
	if err := cfg.Validate(); err != nil {
		return Default(), fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Marshal renders cfg as YAML.
func Marshal(cfg Config) ([]byte, error) {
	return yaml.Marshal(cfg)
}
