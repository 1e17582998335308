package engine

import (
	"context"
	"errors"
	"fmt"
	"os"
	"runtime"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/xab-mack/contractscan/internal/analysis"
	"github.com/xab-mack/contractscan/internal/cache"
	"github.com/xab-mack/contractscan/internal/config"
	"github.com/xab-mack/contractscan/internal/logging"
	"github.com/xab-mack/contractscan/internal/model"
	"github.com/xab-mack/contractscan/internal/plugins"
	"github.com/xab-mack/contractscan/internal/report"
	"github.com/xab-mack/contractscan/internal/solidity"
)

// ErrInputTooLarge is returned for sources above the configured size cap.
var ErrInputTooLarge = errors.New("input too large")

type Engine struct {
	cfg      config.Config
	registry *plugins.Registry
	loader   *solidity.Loader
	log      logging.Logger
	now      func() time.Time
}

type Option func(*Engine)

func WithLogger(l logging.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithCache backs the parser with an on-disk cache.
func WithCache(store *cache.Store) Option {
	return func(e *Engine) { e.loader = solidity.NewLoader(store) }
}

// WithClock overrides the time source used for ignore-rule expiry.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// New builds an engine for cfg. The detector set is fixed here: cfg.Detectors
// narrows it (empty means all) and cfg.Confidence overrides defaults.
func New(cfg config.Config, opts ...Option) *Engine {
	e := &Engine{
		cfg:    cfg,
		loader: solidity.NewLoader(nil),
		log:    logging.Nop(),
		now:    time.Now,
	}
	for _, o := range opts {
		o(e)
	}
	e.registry = plugins.NewRegistry(plugins.WithConcurrency(cfg.Concurrency), plugins.WithLogger(e.log))
	for _, d := range selectDetectors(cfg) {
		e.registry.Register(d)
	}
	return e
}

func selectDetectors(cfg config.Config) []*plugins.Detector {
	allowed := map[string]bool{}
	for _, name := range cfg.Detectors {
		allowed[name] = true
	}
	var out []*plugins.Detector
	for _, d := range plugins.Builtin() {
		if len(allowed) > 0 && !allowed[d.Name] {
			continue
		}
		if c, ok := cfg.Confidence[d.Name]; ok {
			d.Confidence = c
		}
		out = append(out, d)
	}
	return out
}

// Detectors lists the detectors this engine runs, in registration order.
func (e *Engine) Detectors() []*plugins.Detector { return e.registry.Detectors() }

func (e *Engine) checkSize(n int) error {
	if e.cfg.MaxSourceBytes > 0 && n > e.cfg.MaxSourceBytes {
		return fmt.Errorf("%w: %d bytes exceeds limit of %d", ErrInputTooLarge, n, e.cfg.MaxSourceBytes)
	}
	return nil
}

// ScanContract runs every detector against one parsed contract and returns
// the aggregated report. pc is never modified.
func (e *Engine) ScanContract(ctx context.Context, pc *model.ParsedContract) (model.Report, error) {
	if pc == nil {
		return report.Aggregate(nil, nil), nil
	}
	if err := e.checkSize(len(pc.Source)); err != nil {
		return model.Report{}, err
	}
	res := e.registry.Run(ctx, pc)
	return report.Aggregate(res.Findings, res.Failures), nil
}

// ScanSource parses source and scans it.
func (e *Engine) ScanSource(ctx context.Context, source string) (model.Report, error) {
	if err := e.checkSize(len(source)); err != nil {
		return model.Report{}, err
	}
	return e.ScanContract(ctx, e.loader.ParseSource(source))
}

type fileResult struct {
	src      *analysis.Source
	findings []model.Web3Finding
	failures []model.Failure
}

// Scan discovers Solidity files under req.Path, scans them concurrently
// within the time budget, and applies ignores, the severity threshold and
// the baseline. Findings are ordered by file, then detector registration.
func (e *Engine) Scan(ctx context.Context, req model.ScanRequest) (*model.ScanResult, error) {
	start := time.Now()
	budget := req.TimeBudget
	if budget == 0 {
		budget = e.cfg.TimeBudget()
	}
	if budget > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, budget)
		defer cancel()
	}

	files, err := discoverFiles(req.Path, req.DeltaOnly, e.log)
	if err != nil {
		return nil, err
	}
	base, err := loadBaseline(req.Baseline)
	if err != nil {
		return nil, fmt.Errorf("loading baseline: %w", err)
	}

	results := make([]fileResult, len(files))
	var g errgroup.Group
	g.SetLimit(e.fileConcurrency())
	for i, f := range files {
		g.Go(func() error {
			results[i] = e.scanFile(ctx, f)
			return nil
		})
	}
	_ = g.Wait()

	pctx := analysis.NewProjectContext(req.Path)
	var findings []model.Web3Finding
	var failures []model.Failure
	for _, r := range results {
		if r.src != nil {
			pctx.Add(r.src)
		}
		findings = append(findings, r.findings...)
		failures = append(failures, r.failures...)
	}

	findings = applyIgnores(findings, e.cfg, pctx, e.now())
	findings = report.FilterBySeverity(findings, e.cfg.Threshold())
	findings = filterByBaseline(findings, base)

	res := &model.ScanResult{Report: report.Aggregate(findings, failures), Elapsed: time.Since(start)}
	for _, f := range files {
		res.Files = append(res.Files, f.display)
	}
	e.log.Debug("scan complete",
		logging.F("files", len(files)),
		logging.F("parsed", len(pctx.Files())),
		logging.F("findings", res.Summary.Total),
		logging.F("failures", len(failures)),
		logging.F("elapsed", res.Elapsed.String()))
	return res, nil
}

func (e *Engine) fileConcurrency() int {
	if e.cfg.Concurrency > 0 {
		return e.cfg.Concurrency
	}
	return max(runtime.NumCPU(), 2)
}

func (e *Engine) scanFile(ctx context.Context, f sourceFile) fileResult {
	fail := func(err error) fileResult {
		e.log.Warn("file skipped", logging.F("file", f.display), logging.F("error", err.Error()))
		return fileResult{failures: []model.Failure{{File: f.display, Error: err.Error()}}}
	}
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("not started: %w", err))
	}
	data, err := os.ReadFile(f.path)
	if err != nil {
		return fail(err)
	}
	if err := e.checkSize(len(data)); err != nil {
		return fail(err)
	}
	pc := e.loader.ParseSource(string(data))
	run := e.registry.Run(ctx, pc)
	out := fileResult{src: &analysis.Source{Path: f.path, Display: f.display, Content: string(data), Parsed: pc}}
	for _, fd := range run.Findings {
		fd.File = f.display
		out.findings = append(out.findings, fd)
	}
	for _, fl := range run.Failures {
		fl.File = f.display
		out.failures = append(out.failures, fl)
	}
	return out
}

// sortFiles orders files by display path.
func sortFiles(files []sourceFile) {
	sort.Slice(files, func(i, j int) bool { return files[i].display < files[j].display })
}
