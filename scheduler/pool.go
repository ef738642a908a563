package scheduler

// This file contains the bounded worker pool. A single coordinating loop
// submits jobs and receives results on a completion channel; workers never
// touch shared state.

import (
	"context"
	"fmt"
	"time"

	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// RunFunc executes one job.
type RunFunc func(ctx context.Context, job model.Job) model.CaseResult

// Heartbeat controls the wait log emitted while long cases are running.
type Heartbeat struct {
	// Every is the interval between wait lines, 0 disables them
	Every time.Duration
	// MinAge is the age the oldest running case must reach
	MinAge time.Duration
	// Solo replaces MinAge when a single case is left and nothing is queued
	Solo time.Duration
	// Timeout is the per-process timeout shown in the wait line
	Timeout time.Duration
}

// Wait describes the pool state in a wait line.
type Wait struct {
	Running int
	Queued  int
	Oldest  string
	Age     time.Duration
	Timeout time.Duration
}

func (w Wait) String() string {
	queued := ""
	if w.Queued > 0 {
		queued = fmt.Sprintf(", %d queued", w.Queued)
	}
	return fmt.Sprintf("... running %d test(s)%s; oldest: %s (%ds, timeout %ds)",
		w.Running, queued, w.Oldest, int(w.Age.Seconds()), int(w.Timeout.Seconds()))
}

// Pool runs jobs with at most Workers in flight.
type Pool struct {
	Workers   int
	Heartbeat Heartbeat
	// OnWait receives heartbeat lines
	OnWait func(Wait)
	Logger zerolog.Logger
}

type completion struct {
	index  int
	result model.CaseResult
}

// Run executes jobs in order, calling onResult from the calling goroutine
// in completion order. Whenever a job completes the next queued job is
// started immediately. Once ctx is cancelled no further jobs are started;
// jobs already in flight are waited for. Run returns the number of jobs
// that were started.
func (p Pool) Run(ctx context.Context, jobs []model.Job, run RunFunc, onResult func(model.CaseResult)) int {
	workers := max(1, min(p.Workers, len(jobs)))
	if workers == 1 {
		return p.runInline(ctx, jobs, run, onResult)
	}

	done := make(chan completion)
	started := make(map[int]time.Time, workers)
	next := 0

	submit := func() {
		i := next
		next++
		started[i] = time.Now()
		go func() {
			done <- completion{index: i, result: run(ctx, jobs[i])}
		}()
	}
	fill := func() {
		for next < len(jobs) && len(started) < workers && ctx.Err() == nil {
			submit()
		}
	}

	fill()
	p.Logger.Debug().
		Int("workers", workers).
		Int("jobs", len(jobs)).
		Msg("Pool started")

	// the wait log fires after Every without a completion
	var ticker *time.Ticker
	var tick <-chan time.Time
	if p.Heartbeat.Every > 0 && p.OnWait != nil {
		ticker = time.NewTicker(p.Heartbeat.Every)
		defer ticker.Stop()
		tick = ticker.C
	}

	for len(started) > 0 {
		select {
		case c := <-done:
			delete(started, c.index)
			onResult(c.result)
			fill()
			if ticker != nil {
				ticker.Reset(p.Heartbeat.Every)
			}
		case now := <-tick:
			if w, ok := p.wait(jobs, started, len(jobs)-next, now); ok {
				p.OnWait(w)
			}
		}
	}
	return next
}

func (p Pool) runInline(ctx context.Context, jobs []model.Job, run RunFunc, onResult func(model.CaseResult)) int {
	n := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		n++
		onResult(run(ctx, job))
	}
	return n
}

// wait builds the heartbeat line when the oldest running job is old enough.
func (p Pool) wait(jobs []model.Job, started map[int]time.Time, queued int, now time.Time) (Wait, bool) {
	oldest := -1
	var since time.Time
	for i, t := range started {
		if oldest < 0 || t.Before(since) {
			oldest, since = i, t
		}
	}
	if oldest < 0 {
		return Wait{}, false
	}
	age := now.Sub(since)
	minAge := p.Heartbeat.MinAge
	if len(started) == 1 && queued == 0 {
		minAge = p.Heartbeat.Solo
	}
	if age < minAge {
		return Wait{}, false
	}
	return Wait{
		Running: len(started),
		Queued:  queued,
		Oldest:  jobs[oldest].Case.Path,
		Age:     age,
		Timeout: p.Heartbeat.Timeout,
	}, true
}
