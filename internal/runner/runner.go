// Package runner executes the authentication test matrix: it enumerates
// the legal scenarios, drives each through a connection attempt on a
// bounded worker pool, and compares what happened against what the
// scenario predicts.
package runner

import (
	"context"
	"errors"
	"sync"
	"time"

	"gopkg.in/op/go-logging.v1"

	"github.com/securerpc/tlsmatrix/internal/credentials"
	"github.com/securerpc/tlsmatrix/internal/hierarchy"
	"github.com/securerpc/tlsmatrix/internal/keystore"
	"github.com/securerpc/tlsmatrix/internal/probe"
	"github.com/securerpc/tlsmatrix/internal/scenario"
)

// Status tracks a scenario through the run.
type Status string

const (
	StatusPending Status = "pending"
	StatusRunning Status = "running"
	StatusPassed  Status = "passed"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Result is the final record for one scenario.
type Result struct {
	ID       string           `json:"id"`
	Config   scenario.Config  `json:"config"`
	Expected scenario.Verdict `json:"expected"`
	Outcome  probe.Outcome    `json:"outcome"`
	Status   Status           `json:"status"`
	Reason   string           `json:"reason,omitempty"`
	Elapsed  time.Duration    `json:"elapsed_ns"`
}

// Report aggregates a full run.
type Report struct {
	StartedAt  time.Time           `json:"started_at"`
	FinishedAt time.Time           `json:"finished_at"`
	Algorithm  keystore.AlgorithmID `json:"algorithm"`
	Results    []Result            `json:"results"`
	Passed     int                 `json:"passed"`
	Failed     int                 `json:"failed"`
	Skipped    int                 `json:"skipped"`
}

// OK reports whether every executed scenario behaved as predicted.
func (r *Report) OK() bool {
	return r.Failed == 0
}

// Observer is notified as each scenario settles, in completion order.
type Observer func(Result)

// Options configures a run.
type Options struct {
	// Algorithm selects the key algorithm for every generated hierarchy.
	Algorithm keystore.AlgorithmID

	// Organization is stamped into every certificate subject.
	Organization string

	// Names overrides the identity set. The zero value means defaults.
	Names credentials.Names

	// Workers bounds concurrent attempts. Defaults to 4.
	Workers int

	// Timeout bounds one connection attempt.
	Timeout time.Duration

	// Filter restricts which legal scenarios run. The zero filter keeps
	// everything.
	Filter scenario.Filter

	// Observer, when set, receives each settled result.
	Observer Observer

	// Log receives per-scenario progress. Nil disables progress logging.
	Log *logging.Logger
}

const defaultWorkers = 4

// Runner executes matrices.
type Runner struct {
	opts Options
}

// New creates a runner. Zero-valued options get defaults.
func New(opts Options) *Runner {
	if opts.Algorithm == "" {
		opts.Algorithm = keystore.DefaultAlgorithm
	}
	if opts.Organization == "" {
		opts.Organization = "tlsmatrix"
	}
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.Names == (credentials.Names{}) {
		opts.Names = credentials.DefaultNames()
	}
	return &Runner{opts: opts}
}

// Run executes every legal scenario passing the filter and returns the
// report. Cancelling the context stops feeding the pool; scenarios not
// yet started are recorded as skipped.
func (r *Runner) Run(ctx context.Context) (*Report, error) {
	ks, err := keystore.New(r.opts.Algorithm)
	if err != nil {
		return nil, err
	}
	configurator := credentials.NewWithNames(hierarchy.NewAssembler(ks, r.opts.Organization), r.opts.Names)
	prb := probe.New(r.opts.Timeout)

	var cfgs []scenario.Config
	for _, cfg := range scenario.EnumerateLegal() {
		if r.opts.Filter.Match(cfg) {
			cfgs = append(cfgs, cfg)
		}
	}

	report := &Report{
		StartedAt: time.Now(),
		Algorithm: r.opts.Algorithm,
		Results:   make([]Result, len(cfgs)),
	}
	for i, cfg := range cfgs {
		report.Results[i] = Result{
			ID:       cfg.ID(),
			Config:   cfg,
			Expected: cfg.Expected(),
			Status:   StatusPending,
		}
	}

	var mu sync.Mutex
	settle := func(i int, res Result) {
		mu.Lock()
		report.Results[i] = res
		switch res.Status {
		case StatusPassed:
			report.Passed++
		case StatusFailed:
			report.Failed++
		case StatusSkipped:
			report.Skipped++
		}
		if r.opts.Observer != nil {
			r.opts.Observer(res)
		}
		mu.Unlock()
	}

	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < r.opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				res := report.Results[i]
				res.Status = StatusRunning
				settled := r.execute(ctx, configurator, prb, res)
				if r.opts.Log != nil {
					r.opts.Log.Debugf("%s: %s (%s)", settled.ID, settled.Status, settled.Outcome.Disposition)
				}
				settle(i, settled)
			}
		}()
	}

feed:
	for i := range cfgs {
		select {
		case <-ctx.Done():
			break feed
		default:
		}
		select {
		case <-ctx.Done():
			break feed
		case jobs <- i:
		}
	}
	close(jobs)
	wg.Wait()

	// Anything still pending was cut off by cancellation.
	for i := range report.Results {
		if report.Results[i].Status == StatusPending {
			report.Results[i].Status = StatusSkipped
			report.Results[i].Reason = "run cancelled"
			report.Skipped++
		}
	}

	report.FinishedAt = time.Now()
	if r.opts.Log != nil {
		r.opts.Log.Infof("run complete: %d passed, %d failed, %d skipped",
			report.Passed, report.Failed, report.Skipped)
	}
	return report, nil
}

// execute settles one scenario. A failure here never escapes as an
// error; every way an attempt can go wrong is folded into the result.
func (r *Runner) execute(ctx context.Context, c *credentials.Configurator, prb *probe.Probe, res Result) Result {
	start := time.Now()

	server, client, err := c.Configure(res.Config)
	if err != nil {
		res.Status = configureStatus(err)
		res.Reason = err.Error()
		res.Elapsed = time.Since(start)
		return res
	}

	res.Outcome = prb.Attempt(ctx, server, client)
	switch {
	case res.Outcome.Disposition == probe.DispositionError:
		res.Status = StatusFailed
		res.Reason = res.Outcome.Reason
	case res.Outcome.Matches(res.Expected):
		res.Status = StatusPassed
	default:
		res.Status = StatusFailed
		res.Reason = "expected " + string(res.Expected) + ", observed " + string(res.Outcome.Disposition)
	}
	res.Elapsed = time.Since(start)
	return res
}

// configureStatus classifies a credential construction error. Only an
// incompatible scenario is a legitimate skip; anything else means the
// scenario could not produce its artifact and must count as a failure.
func configureStatus(err error) Status {
	if errors.Is(err, credentials.ErrIncompatibleScenario) {
		return StatusSkipped
	}
	return StatusFailed
}
