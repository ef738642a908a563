package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberedJobs(n int) []model.Job {
	jobs := make([]model.Job, n)
	for i := range jobs {
		jobs[i] = model.Job{Case: model.TestCase{Suite: model.SuiteRuntime, Path: fmt.Sprintf("case%02d.ny", i)}}
	}
	return jobs
}

// gatedRunner blocks every job until its gate is released and reports
// job starts on a channel.
type gatedRunner struct {
	starts chan string
	mu     sync.Mutex
	gates  map[string]chan struct{}
}

func newGatedRunner(jobs []model.Job) *gatedRunner {
	g := &gatedRunner{starts: make(chan string, len(jobs)), gates: make(map[string]chan struct{})}
	for _, j := range jobs {
		g.gates[j.Case.Path] = make(chan struct{})
	}
	return g
}

func (g *gatedRunner) run(ctx context.Context, job model.Job) model.CaseResult {
	g.starts <- job.Case.Path
	g.mu.Lock()
	gate := g.gates[job.Case.Path]
	g.mu.Unlock()
	<-gate
	return model.CaseResult{Case: job.Case}
}

func (g *gatedRunner) release(path string) {
	close(g.gates[path])
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case p := <-ch:
		return p
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a job to start")
	}
	return ""
}

func TestPoolFillsTheGap(t *testing.T) {
	jobs := numberedJobs(5)
	g := newGatedRunner(jobs)
	var completed []string
	finished := make(chan int)

	go func() {
		n := Pool{Workers: 3, Logger: zerolog.Nop()}.Run(context.Background(), jobs, g.run, func(r model.CaseResult) {
			completed = append(completed, r.Case.Path)
		})
		finished <- n
	}()

	first := []string{receive(t, g.starts), receive(t, g.starts), receive(t, g.starts)}
	assert.ElementsMatch(t, []string{"case00.ny", "case01.ny", "case02.ny"}, first)
	select {
	case p := <-g.starts:
		t.Fatalf("%s started while the pool was saturated", p)
	case <-time.After(50 * time.Millisecond):
	}

	g.release("case01.ny")
	assert.Equal(t, "case03.ny", receive(t, g.starts))
	g.release("case02.ny")
	assert.Equal(t, "case04.ny", receive(t, g.starts))
	g.release("case04.ny")
	g.release("case00.ny")
	g.release("case03.ny")

	assert.Equal(t, 5, <-finished)
	require.Len(t, completed, 5)
	assert.Equal(t, []string{"case01.ny", "case02.ny"}, completed[:2])
}

func TestPoolNeverExceedsWorkers(t *testing.T) {
	jobs := numberedJobs(20)
	var inflight, peak atomic.Int32
	run := func(ctx context.Context, job model.Job) model.CaseResult {
		n := inflight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(5 * time.Millisecond)
		inflight.Add(-1)
		return model.CaseResult{Case: job.Case}
	}
	count := 0
	Pool{Workers: 4, Logger: zerolog.Nop()}.Run(context.Background(), jobs, run, func(model.CaseResult) { count++ })
	assert.Equal(t, 20, count)
	assert.LessOrEqual(t, peak.Load(), int32(4))
}

func TestPoolSingleWorkerIsSequential(t *testing.T) {
	jobs := numberedJobs(4)
	var inflight atomic.Int32
	overlapped := false
	run := func(ctx context.Context, job model.Job) model.CaseResult {
		if inflight.Add(1) > 1 {
			overlapped = true
		}
		time.Sleep(time.Millisecond)
		inflight.Add(-1)
		return model.CaseResult{Case: job.Case}
	}
	var order []string
	Pool{Workers: 1, Logger: zerolog.Nop()}.Run(context.Background(), jobs, run, func(r model.CaseResult) {
		order = append(order, r.Case.Path)
	})
	assert.False(t, overlapped)
	assert.Equal(t, paths(jobs), order)
}

func TestPoolStopsSubmittingOnCancel(t *testing.T) {
	jobs := numberedJobs(10)
	ctx, cancel := context.WithCancel(context.Background())
	run := func(ctx context.Context, job model.Job) model.CaseResult {
		time.Sleep(5 * time.Millisecond)
		return model.CaseResult{Case: job.Case, Interrupted: ctx.Err() != nil}
	}
	reported := 0
	started := Pool{Workers: 2, Logger: zerolog.Nop()}.Run(ctx, jobs, run, func(model.CaseResult) {
		reported++
		if reported == 1 {
			cancel()
		}
	})
	assert.Less(t, started, len(jobs))
	assert.Equal(t, started, reported, "every started job is reported")
}

func TestPoolHeartbeat(t *testing.T) {
	jobs := numberedJobs(3)
	run := func(ctx context.Context, job model.Job) model.CaseResult {
		time.Sleep(200 * time.Millisecond)
		return model.CaseResult{Case: job.Case}
	}
	var waits []Wait
	p := Pool{
		Workers: 2,
		Heartbeat: Heartbeat{
			Every:   20 * time.Millisecond,
			MinAge:  50 * time.Millisecond,
			Solo:    50 * time.Millisecond,
			Timeout: time.Minute,
		},
		OnWait: func(w Wait) { waits = append(waits, w) },
		Logger: zerolog.Nop(),
	}
	p.Run(context.Background(), jobs, run, func(model.CaseResult) {})
	require.NotEmpty(t, waits)
	assert.Equal(t, 2, waits[0].Running)
	assert.Equal(t, 1, waits[0].Queued)
	assert.GreaterOrEqual(t, waits[0].Age, 50*time.Millisecond)
}

func TestPoolHeartbeatWaitsForQuietPeriod(t *testing.T) {
	jobs := numberedJobs(6)
	long := jobs[0].Case.Path
	run := func(ctx context.Context, job model.Job) model.CaseResult {
		if job.Case.Path == long {
			time.Sleep(550 * time.Millisecond)
		} else {
			time.Sleep(100 * time.Millisecond)
		}
		return model.CaseResult{Case: job.Case}
	}
	var waits []Wait
	p := Pool{
		Workers:   2,
		Heartbeat: Heartbeat{Every: 250 * time.Millisecond, Timeout: time.Minute},
		OnWait:    func(w Wait) { waits = append(waits, w) },
		Logger:    zerolog.Nop(),
	}
	p.Run(context.Background(), jobs, run, func(model.CaseResult) {})
	assert.Empty(t, waits, "a completion within the interval postpones the wait line")
}

func TestWaitString(t *testing.T) {
	w := Wait{Running: 2, Queued: 3, Oldest: "std/time.ny", Age: 12 * time.Second, Timeout: time.Minute}
	assert.Equal(t, "... running 2 test(s), 3 queued; oldest: std/time.ny (12s, timeout 60s)", w.String())
	w.Queued = 0
	assert.Equal(t, "... running 2 test(s); oldest: std/time.ny (12s, timeout 60s)", w.String())
}
