// Package engine coordinates a run. It looks up cached results, schedules
// the remaining cases on the worker pool, persists results as they land and
// drives the reporter.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/nytrix/nytest/cache"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/phase"
	"github.com/nytrix/nytest/report"
	"github.com/nytrix/nytest/scheduler"
	"github.com/nytrix/nytest/signature"
	"github.com/rs/zerolog"
)

// Runner executes the phases of a job.
type Runner interface {
	Run(ctx context.Context, job model.Job) model.CaseResult
	RunRepeated(ctx context.Context, job model.Job, iters int) model.CaseResult
}

// Signer computes the cache keys of a case.
type Signer interface {
	TestSignature(in signature.Inputs) string
	NativeSignature(in signature.Inputs) string
}

// SmokeFunc runs the interactive smoke session against bin.
type SmokeFunc func(ctx context.Context, bin string) (phase.SmokeResult, error)

// Stores are the persisted tables. They are loaded by the caller and only
// touched by the coordinating goroutine.
type Stores struct {
	Results *cache.ResultStore
	Timings *cache.TimingStore
}

// Options configures an Engine.
type Options struct {
	Root string
	// RawFlags are the extra compiler flags as given, a signature input
	RawFlags         string
	ResultCache      bool
	TimingsFromCache bool
	Heartbeat        scheduler.Heartbeat
	Mode             report.Mode
	Host             hostinfo.Topology
	Smoke            SmokeFunc

	ProfileJSON  string
	ProfilePprof string
	MetricsFile  string
}

// Engine runs plans.
type Engine struct {
	opts     Options
	stores   Stores
	signer   Signer
	runner   Runner
	reporter *report.Reporter
	logger   zerolog.Logger
	now      func() time.Time
}

func New(opts Options, stores Stores, signer Signer, runner Runner, reporter *report.Reporter, logger zerolog.Logger) *Engine {
	return &Engine{
		opts:     opts,
		stores:   stores,
		signer:   signer,
		runner:   runner,
		reporter: reporter,
		logger:   logger,
		now:      time.Now,
	}
}

// Result is the outcome of a run.
type Result struct {
	Summary *report.Summary
	Timing  *report.TimingProfile
	// Spawned is the number of cases whose phases were executed
	Spawned     int
	SmokeFailed bool
	Interrupted bool
	Finished    time.Time
}

// OK reports whether the run completed and every case passed.
func (r *Result) OK() bool {
	return r.Summary.OK() && !r.SmokeFailed && !r.Interrupted
}

// run is the state of one Run call.
type run struct {
	*Result
	profile *report.Profile
}

// Run executes plan. The stores are flushed after every suite and once
// more before Run returns, also when ctx is cancelled. Errors returned are
// persistence failures; case failures are part of the Result.
func (e *Engine) Run(ctx context.Context, plan Plan) (res *Result, err error) {
	start := e.now()
	r := &run{
		Result: &Result{
			Summary: report.NewSummary(start),
			Timing:  report.NewTimingProfile(start),
		},
		profile: report.NewProfile(e.opts.Root),
	}
	res = r.Result

	e.reporter.ModeBanner(e.opts.Mode)
	defer func() {
		res.Finished = e.now()
		res.Interrupted = ctx.Err() != nil
		err = errors.Join(err, e.flush(), e.writeOutputs(r))
		e.reporter.Summary(res.Summary, res.Finished)
	}()

	if plan.Smoke && e.opts.Smoke != nil {
		e.reporter.Header("Repl")
		sr, serr := e.opts.Smoke(ctx, plan.SmokeBinary)
		e.reporter.Smoke(sr, serr)
		r.SmokeFailed = serr != nil
	}

	if plan.ThreadMissing != "" {
		e.reporter.Warn("Skipping thread stress: file not found: %s", plan.ThreadMissing)
	}
	if plan.Thread != nil && ctx.Err() == nil {
		e.runThread(ctx, *plan.Thread, r)
	}

	for _, sp := range plan.Suites {
		if ctx.Err() != nil {
			break
		}
		e.runSuite(ctx, plan, sp, r)
		if err := e.flush(); err != nil {
			e.logger.Warn().Err(err).Str("suite", sp.Suite.Key).Msg("Failed to save cache")
		}
	}
	return res, nil
}

func (e *Engine) runThread(ctx context.Context, t ThreadPlan, r *run) {
	e.reporter.Header("Thread")
	c := t.Job.Case
	label := c.Path
	if t.Iterations > 1 {
		label = fmt.Sprintf("%s (x%d)", c.Path, t.Iterations)
	}
	r.Summary.SetJobs(model.SuiteThread, 1)
	cr := e.runner.RunRepeated(ctx, t.Job, t.Iterations)
	r.Spawned++
	if cr.Interrupted {
		return
	}
	e.record(r, cr, cr.Total(), 1, 1, label)
	e.stores.Timings.Set(c.Suite, c.Path, cr.Total())
}

func (e *Engine) inputs(job model.Job) signature.Inputs {
	return signature.Inputs{
		Source:      job.Case.AbsPath,
		Binary:      job.Binary,
		Interactive: job.Case.Interactive,
		Native:      job.Case.Native,
		OptProfile:  job.Case.OptProfile,
		Flags:       e.opts.RawFlags,
		Env:         job.Env,
	}
}

// prepare signs and orders the jobs of a suite.
func (e *Engine) prepare(sp SuitePlan) []model.Job {
	jobs := append([]model.Job(nil), sp.Cases...)
	for i := range jobs {
		in := e.inputs(jobs[i])
		jobs[i].Signature = e.signer.TestSignature(in)
		jobs[i].NativeKey = e.signer.NativeSignature(in)
	}
	scheduler.Order(jobs, e.stores.Timings.Get)
	return jobs
}

func (e *Engine) lookup(job model.Job) (model.CaseResult, time.Duration, bool) {
	if !e.opts.ResultCache {
		return model.CaseResult{}, 0, false
	}
	c := job.Case
	entry, ok := e.stores.Results.Lookup(c.Suite, c.Path, job.Signature, cache.Requirements{Interactive: c.Interactive})
	if !ok {
		return model.CaseResult{}, 0, false
	}
	cr := entry.Result(c)
	if !c.Interactive {
		cr.Interactive = nil
	}
	hist := entry.Duration()
	if hist <= 0 {
		hist = cr.Total()
	}
	return cr, hist, true
}

func (e *Engine) runSuite(ctx context.Context, plan Plan, sp SuitePlan, r *run) {
	key := sp.Suite.Key
	jobs := e.prepare(sp)
	if key == model.SuiteBenchmark {
		e.reporter.HostBanner(e.opts.Host, plan.Jobs, sp.Jobs)
	}
	e.reporter.Header(sp.Suite.Name)
	r.Summary.SetJobs(key, sp.Jobs)

	total := len(jobs)
	completed := 0
	signatures := make(map[string]string, total)
	var pending []model.Job
	for _, job := range jobs {
		cr, hist, ok := e.lookup(job)
		if !ok {
			signatures[job.Case.Path] = job.Signature
			pending = append(pending, job)
			continue
		}
		completed++
		counted := time.Duration(0)
		if e.opts.TimingsFromCache {
			counted = hist
		}
		e.record(r, cr, counted, completed, total, "")
		e.stores.Timings.Set(key, job.Case.Path, hist)
	}
	e.logger.Debug().
		Str("suite", key).
		Int("cases", total).
		Int("cached", total-len(pending)).
		Int("workers", sp.Jobs).
		Msg("Running suite")
	if len(pending) == 0 {
		return
	}

	interrupted := 0
	pool := scheduler.Pool{
		Workers:   min(sp.Jobs, len(pending)),
		Heartbeat: e.opts.Heartbeat,
		OnWait:    e.reporter.Wait,
		Logger:    e.logger,
	}
	r.Spawned += pool.Run(ctx, pending, e.runner.Run, func(cr model.CaseResult) {
		if cr.Interrupted {
			interrupted++
			return
		}
		completed++
		path := cr.Case.Path
		e.record(r, cr, cr.Total(), completed, total, "")
		e.stores.Timings.Set(key, path, cr.Total())
		if e.opts.ResultCache {
			e.stores.Results.Store(key, path, cache.NewEntry(signatures[path], cr))
		}
	})
	if interrupted > 0 {
		e.logger.Warn().Str("suite", key).Int("cases", interrupted).Msg("Discarded interrupted cases")
	}
}

func (e *Engine) record(r *run, cr model.CaseResult, counted time.Duration, completed, total int, label string) {
	e.reporter.Case(cr, completed, total, label)
	r.Summary.Add(cr, counted)
	r.profile.Record(cr)
	r.Timing.Record(cr)
}

func (e *Engine) flush() error {
	var errs []error
	if err := e.stores.Timings.Flush(); err != nil {
		errs = append(errs, fmt.Errorf("failed to save timings: %w", err))
	}
	if e.opts.ResultCache {
		if err := e.stores.Results.Flush(); err != nil {
			errs = append(errs, fmt.Errorf("failed to save results: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (e *Engine) writeOutputs(r *run) error {
	var errs []error
	if path := e.opts.ProfileJSON; path != "" {
		errs = append(errs, r.profile.Write(path, r.Summary, r.Finished))
	}
	if path := e.opts.ProfilePprof; path != "" {
		errs = append(errs, r.Timing.Write(path, r.Finished))
	}
	if path := e.opts.MetricsFile; path != "" {
		errs = append(errs, report.WriteMetrics(path, r.Summary, r.Finished))
	}
	return errors.Join(errs...)
}
