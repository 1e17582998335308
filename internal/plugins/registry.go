package plugins

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"github.com/xab-mack/contractscan/internal/logging"
	"github.com/xab-mack/contractscan/internal/model"
)

// Registry runs an ordered set of detectors against one parsed contract.
type Registry struct {
	detectors []*Detector
	limit     int
	log       logging.Logger
}

type Option func(*Registry)

// WithConcurrency caps how many detectors run at once.
func WithConcurrency(n int) Option {
	return func(r *Registry) {
		if n > 0 {
			r.limit = n
		}
	}
}

func WithLogger(l logging.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

func NewRegistry(opts ...Option) *Registry {
	r := &Registry{limit: max(runtime.NumCPU(), 2), log: logging.Nop()}
	for _, o := range opts {
		o(r)
	}
	return r
}

func (r *Registry) Register(d *Detector) { r.detectors = append(r.detectors, d) }

// RegisterBuiltin adds every builtin detector in registration order.
func (r *Registry) RegisterBuiltin() {
	for _, d := range Builtin() {
		r.Register(d)
	}
}

func (r *Registry) Detectors() []*Detector { return r.detectors }

// RunResult is the merged output of one Run.
type RunResult struct {
	Findings []model.Web3Finding
	Failures []model.Failure
}

// Run executes every detector against pc concurrently and concatenates their
// findings in registration order. A detector that panics, or that had not
// started when ctx ended, is reported as a failure; the others still
// contribute their findings.
func (r *Registry) Run(ctx context.Context, pc *model.ParsedContract) RunResult {
	type slot struct {
		findings []model.Web3Finding
		err      error
	}
	slots := make([]slot, len(r.detectors))
	var g errgroup.Group
	g.SetLimit(r.limit)
	for i, d := range r.detectors {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				slots[i].err = fmt.Errorf("not started: %w", err)
				return nil
			}
			slots[i].findings, slots[i].err = safeAnalyze(d, pc)
			return nil
		})
	}
	_ = g.Wait()

	var res RunResult
	for i, s := range slots {
		if s.err != nil {
			name := r.detectors[i].Name
			r.log.Warn("detector failed", logging.F("detector", name), logging.F("error", s.err.Error()))
			res.Failures = append(res.Failures, model.Failure{Detector: name, Error: s.err.Error()})
			continue
		}
		res.Findings = append(res.Findings, s.findings...)
	}
	return res
}

func safeAnalyze(d *Detector, pc *model.ParsedContract) (fs []model.Web3Finding, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic: %v", rec)
		}
	}()
	return d.Analyze(pc), nil
}
