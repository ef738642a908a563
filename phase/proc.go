// Package phase runs test programs through the direct, interactive and
// native execution modes.
package phase

// This file contains the process wrapper shared by every phase: timeouts,
// cancellation and process tree termination.

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"al.essio.dev/pkg/shellescape"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// waitDelay bounds how long Wait keeps draining output after the process
// tree was killed.
const waitDelay = 5 * time.Second

// Command is a single child process invocation.
type Command struct {
	Path    string
	Args    []string
	Dir     string
	Env     []string
	Stdin   string
	Timeout time.Duration
}

// Outcome is the result of running a Command.
type Outcome struct {
	ExitCode    int
	Duration    time.Duration
	Output      string
	TimedOut    bool
	Interrupted bool
	// Err is set when the process could not be started
	Err error
}

// Passed reports whether the process exited with status 0.
func (o Outcome) Passed() bool {
	return o.Err == nil && !o.TimedOut && !o.Interrupted && o.ExitCode == 0
}

// Result converts the outcome into a phase result.
func (o Outcome) Result(p model.Phase) model.PhaseResult {
	r := model.PhaseResult{
		Phase:    p,
		Duration: o.Duration,
		ExitCode: o.ExitCode,
		Output:   o.Output,
	}
	switch {
	case o.TimedOut:
		r.Status = model.StatusTimedOut
	case o.Passed():
		r.Status = model.StatusPassed
	default:
		r.Status = model.StatusFailed
	}
	return r
}

// String renders the command line for logs and failure details.
func (c Command) String() string {
	return shellescape.QuoteCommand(append([]string{c.Path}, c.Args...))
}

// Run executes the command and waits for it. Timeouts and cancellation of
// ctx kill the whole process tree.
func (c Command) Run(ctx context.Context, logger zerolog.Logger) Outcome {
	runCtx := ctx
	cancel := func() {}
	if c.Timeout > 0 {
		runCtx, cancel = context.WithTimeout(ctx, c.Timeout)
	}
	defer cancel()

	cmd := exec.CommandContext(runCtx, c.Path, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	if c.Stdin != "" {
		cmd.Stdin = strings.NewReader(c.Stdin)
	}
	var out bytes.Buffer
	cmd.Stdout = &out
	cmd.Stderr = &out
	isolate(cmd)
	cmd.Cancel = func() error { return terminateTree(cmd) }
	cmd.WaitDelay = waitDelay

	logger.Debug().
		Str("cmd", c.String()).
		Str("dir", c.Dir).
		Dur("timeout", c.Timeout).
		Msg("Spawning")

	start := time.Now()
	err := cmd.Run()
	o := Outcome{Duration: time.Since(start), Output: out.String()}
	return classify(o, err, ctx, runCtx, c.Timeout)
}

// classify maps the error returned by Wait onto an outcome.
func classify(o Outcome, err error, parent, run context.Context, timeout time.Duration) Outcome {
	switch {
	case err == nil:
		o.ExitCode = 0
	case parent.Err() != nil:
		o.Interrupted = true
		o.ExitCode = model.ExitCodeSpawnError
	case errors.Is(run.Err(), context.DeadlineExceeded):
		o.TimedOut = true
		o.ExitCode = model.ExitCodeTimeout
		o.Output = appendLine(o.Output, fmt.Sprintf("timeout after %ds", int(timeout.Seconds())))
	default:
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			o.ExitCode = exitErr.ExitCode()
			if o.ExitCode == 0 {
				o.ExitCode = 1
			}
		} else {
			o.Err = err
			o.ExitCode = model.ExitCodeSpawnError
			o.Output = appendLine(o.Output, err.Error())
		}
	}
	return o
}

func appendLine(s, line string) string {
	if s != "" && !strings.HasSuffix(s, "\n") {
		s += "\n"
	}
	return s + line
}
