package phase

// This file contains the phase runner: one test case through the direct,
// interactive and native phases.

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/creack/pty"
	"github.com/nytrix/nytest/cache"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// Interactive phase drivers.
const (
	ModePipe = "pipe"
	ModePTY  = "pty"
)

// Options configures a Runner.
type Options struct {
	// Timeout bounds each direct, native compile and native run process
	Timeout time.Duration
	// ReplTimeout is the stall bound of a pty driven interactive phase
	ReplTimeout time.Duration
	// ReplMode selects the interactive driver, pipe or pty
	ReplMode string
	Native   *cache.NativeArtifacts
}

// Runner executes jobs. It is safe for concurrent use; it never touches
// the result or timing stores.
type Runner struct {
	opts   Options
	logger zerolog.Logger
}

func NewRunner(opts Options, logger zerolog.Logger) *Runner {
	if opts.ReplMode == "" {
		opts.ReplMode = ModePipe
	}
	return &Runner{opts: opts, logger: logger}
}

// Run executes every enabled phase of job. Phases are independent: a
// failing direct phase does not prevent the interactive and native phases.
// If ctx is cancelled while the case is in flight the result is marked
// interrupted.
func (r *Runner) Run(ctx context.Context, job model.Job) model.CaseResult {
	res := model.CaseResult{Case: job.Case, Started: time.Now()}
	logger := r.logger.With().Str("path", job.Case.Path).Logger()

	res.Direct = r.direct(ctx, job, logger)
	if job.Case.Interactive {
		repl := r.interactive(ctx, job, logger)
		res.Interactive = &repl
	}
	if job.Case.Native {
		res.Native = r.native(ctx, job, logger)
	} else {
		res.Native = model.SkippedPhase(model.PhaseNative)
	}

	res.Finished = time.Now()
	res.Interrupted = ctx.Err() != nil
	logger.Debug().
		Bool("ok", res.OK()).
		Dur("duration", res.Total()).
		Msg("Case finished")
	return res
}

func (r *Runner) args(job model.Job, extra ...string) []string {
	args := make([]string, 0, len(job.Flags)+len(extra))
	args = append(args, job.Flags...)
	return append(args, extra...)
}

func (r *Runner) direct(ctx context.Context, job model.Job, logger zerolog.Logger) model.PhaseResult {
	c := Command{
		Path:    job.Binary,
		Args:    r.args(job, job.Case.AbsPath),
		Env:     job.Env,
		Timeout: r.opts.Timeout,
	}
	return c.Run(ctx, logger).Result(model.PhaseDirect)
}

func (r *Runner) interactive(ctx context.Context, job model.Job, logger zerolog.Logger) model.PhaseResult {
	source, err := os.ReadFile(job.Case.AbsPath)
	if err != nil {
		return model.PhaseResult{
			Phase:    model.PhaseInteractive,
			Status:   model.StatusFailed,
			ExitCode: model.ExitCodeSpawnError,
			Output:   fmt.Sprintf("failed to read source: %v", err),
		}
	}
	c := Command{
		Path:    job.Binary,
		Args:    r.args(job, "-repl"),
		Dir:     filepath.Dir(job.Case.AbsPath),
		Env:     job.Env,
		Stdin:   string(source),
		Timeout: r.opts.Timeout,
	}
	if r.opts.ReplMode == ModePTY {
		return r.interactivePTY(ctx, c, logger)
	}
	return c.Run(ctx, logger).Result(model.PhaseInteractive)
}

// interactivePTY types the source into the front-end line by line and
// waits for it to exit after end-of-transmission.
func (r *Runner) interactivePTY(ctx context.Context, c Command, logger zerolog.Logger) model.PhaseResult {
	script := c.Stdin
	c.Stdin = ""
	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	start := time.Now()
	s, err := StartSession(ctx, c, logger)
	if errors.Is(err, pty.ErrUnsupported) {
		logger.Debug().Msg("No pseudo-terminal available, skipping interactive phase")
		return model.SkippedPhase(model.PhaseInteractive)
	}
	if err != nil {
		return model.PhaseResult{
			Phase:    model.PhaseInteractive,
			Status:   model.StatusFailed,
			ExitCode: model.ExitCodeSpawnError,
			Output:   err.Error(),
		}
	}
	defer s.Close()

	for _, line := range strings.Split(strings.TrimRight(script, "\n"), "\n") {
		if err := s.Send(line); err != nil {
			break
		}
	}
	_ = s.SendEOT()

	code, err := s.Wait(r.opts.ReplTimeout)
	res := model.PhaseResult{
		Phase:    model.PhaseInteractive,
		Duration: time.Since(start),
		ExitCode: code,
		Output:   s.Output(),
		Status:   model.StatusFailed,
	}
	switch {
	case errors.Is(err, ErrStalled), errors.Is(ctx.Err(), context.DeadlineExceeded):
		res.Status = model.StatusTimedOut
		res.ExitCode = model.ExitCodeTimeout
		res.Output = appendLine(res.Output, fmt.Sprintf("timeout after %ds", int(r.opts.ReplTimeout.Seconds())))
	case code == 0:
		res.Status = model.StatusPassed
	}
	return res
}

// native compiles the case to a standalone program, reusing a cached
// artifact when one exists, and runs it.
func (r *Runner) native(ctx context.Context, job model.Job, logger zerolog.Logger) model.PhaseResult {
	if r.opts.Native == nil {
		return model.SkippedPhase(model.PhaseNative)
	}
	artifact := r.opts.Native.Path(job.NativeKey)

	var compile Outcome
	if cached, ok := r.opts.Native.Lookup(job.NativeKey); ok {
		artifact = cached
		logger.Debug().Str("artifact", artifact).Msg("Reusing native artifact")
	} else {
		if err := r.opts.Native.Prepare(); err != nil {
			logger.Warn().Err(err).Msg("Native artifact directory unavailable")
		}
		out, err := r.opts.Native.Staging(job.NativeKey)
		if err != nil {
			logger.Warn().Err(err).Msg("Compiling to the artifact path directly")
			out = artifact
		}
		c := Command{
			Path:    job.Binary,
			Args:    r.args(job, job.Case.AbsPath, "-no-strip", "-o", out),
			Env:     job.Env,
			Timeout: r.opts.Timeout,
		}
		compile = c.Run(ctx, logger)
		artifact = r.settle(out, artifact, job.NativeKey, compile, logger)
	}

	compileDur := compile.Duration
	res := model.PhaseResult{Phase: model.PhaseNative, Compile: &compileDur}
	if !compile.Passed() || artifact == "" || !exists(artifact) {
		runDur := time.Duration(0)
		res.Run = &runDur
		res.Duration = compileDur
		res.ExitCode = compile.ExitCode
		res.Output = compile.Output
		res.Status = model.StatusFailed
		if compile.TimedOut {
			res.Status = model.StatusTimedOut
		}
		if compile.Passed() {
			res.Output = appendLine(res.Output, "compiler did not produce "+r.opts.Native.Path(job.NativeKey))
		}
		return res
	}

	run := Command{
		Path:    artifact,
		Dir:     filepath.Dir(job.Case.AbsPath),
		Env:     job.Env,
		Timeout: r.opts.Timeout,
	}.Run(ctx, logger)
	runDur := run.Duration
	res.Run = &runDur
	res.Duration = compileDur + runDur
	res.ExitCode = run.ExitCode
	res.Output = run.Output
	res.Status = run.Result(model.PhaseNative).Status
	return res
}

// settle moves a successful compile from out into the cache and removes
// the output of a failed one, so a partial file never outlives its compile.
// It returns the program to run, or "" when the compile produced none.
func (r *Runner) settle(out, artifact, key string, compile Outcome, logger zerolog.Logger) string {
	if !compile.Passed() || !nonEmpty(out) {
		if out == artifact {
			os.Remove(out)
		} else {
			r.opts.Native.Discard(out)
		}
		return ""
	}
	if out == artifact {
		return artifact
	}
	committed, err := r.opts.Native.Commit(out, key)
	if err != nil {
		logger.Warn().Err(err).Str("artifact", out).Msg("Native artifact not cached")
		return out
	}
	return committed
}

func exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func nonEmpty(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir() && info.Size() > 0
}

// RunRepeated runs job up to iters times, stopping after the first
// iteration with a failing phase. Durations are summed over the
// iterations that ran; each failing phase keeps its first failure.
func (r *Runner) RunRepeated(ctx context.Context, job model.Job, iters int) model.CaseResult {
	if iters < 1 {
		iters = 1
	}
	var agg model.CaseResult
	for i := 0; i < iters; i++ {
		res := r.Run(ctx, job)
		if i == 0 {
			agg = res
		} else {
			agg.Direct = merge(agg.Direct, res.Direct)
			agg.Native = merge(agg.Native, res.Native)
			if agg.Interactive != nil && res.Interactive != nil {
				repl := merge(*agg.Interactive, *res.Interactive)
				agg.Interactive = &repl
			}
			agg.Finished = res.Finished
			agg.Interrupted = res.Interrupted
		}
		if !res.OK() || res.Interrupted {
			r.logger.Debug().
				Str("path", job.Case.Path).
				Int("iteration", i+1).
				Msg("Repeated case stopped")
			break
		}
	}
	return agg
}

// merge adds next to acc. The first failing result wins over later ones.
func merge(acc, next model.PhaseResult) model.PhaseResult {
	out := acc
	if acc.Passed() && !next.Passed() {
		out = next
	}
	out.Duration = acc.Duration + next.Duration
	out.Compile = sumDur(acc.Compile, next.Compile)
	out.Run = sumDur(acc.Run, next.Run)
	return out
}

func sumDur(a, b *time.Duration) *time.Duration {
	if a == nil && b == nil {
		return nil
	}
	var d time.Duration
	if a != nil {
		d += *a
	}
	if b != nil {
		d += *b
	}
	return &d
}
