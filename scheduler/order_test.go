package scheduler

import (
	"testing"
	"time"

	"github.com/nytrix/nytest/model"
	"github.com/stretchr/testify/assert"
)

func jobsFor(suite string, paths ...string) []model.Job {
	jobs := make([]model.Job, len(paths))
	for i, p := range paths {
		jobs[i] = model.Job{Case: model.TestCase{Suite: suite, Path: p}}
	}
	return jobs
}

func paths(jobs []model.Job) []string {
	out := make([]string, len(jobs))
	for i, j := range jobs {
		out[i] = j.Case.Path
	}
	return out
}

func TestCostHint(t *testing.T) {
	assert.Equal(t, 5.0, CostHint(model.SuiteBenchmark, "etc/tests/benchmark/sieve.ny"))
	assert.Equal(t, 6.0, CostHint(model.SuiteStd, "std/time/time.ny"))
	assert.Equal(t, 1.5, CostHint(model.SuiteRuntime, "etc/tests/runtime/strings.ny"))
	assert.Equal(t, 0.0, CostHint(model.SuiteRuntime, "etc/tests/runtime/sieve.ny"))
	assert.Equal(t, 0.0, CostHint(model.SuiteOther, "x.ny"))
}

func TestOrderWithoutHistory(t *testing.T) {
	jobs := jobsFor(model.SuiteBenchmark,
		"etc/tests/benchmark/list.ny",
		"etc/tests/benchmark/zeta.ny",
		"etc/tests/benchmark/sieve.ny",
		"etc/tests/benchmark/alpha.ny",
		"etc/tests/benchmark/float.ny",
	)
	Order(jobs, nil)
	assert.Equal(t, []string{
		"etc/tests/benchmark/sieve.ny",
		"etc/tests/benchmark/float.ny",
		"etc/tests/benchmark/list.ny",
		"etc/tests/benchmark/alpha.ny",
		"etc/tests/benchmark/zeta.ny",
	}, paths(jobs))
	assert.Equal(t, 5*time.Second, jobs[0].Expected)
}

func TestOrderHistoryBeatsHint(t *testing.T) {
	history := map[string]time.Duration{
		"std/a.ny":      10 * time.Second,
		"std/time.ny":   time.Second,
		"std/fast.ny":   100 * time.Millisecond,
		"std/medium.ny": 2 * time.Second,
	}
	lookup := func(suite, path string) (time.Duration, bool) {
		d, ok := history[path]
		return d, ok
	}
	jobs := jobsFor(model.SuiteStd, "std/fast.ny", "std/time.ny", "std/medium.ny", "std/a.ny", "std/new.ny")
	Order(jobs, lookup)
	// time.ny keeps its 6s hint because history is lower
	assert.Equal(t, []string{"std/a.ny", "std/time.ny", "std/medium.ny", "std/fast.ny", "std/new.ny"}, paths(jobs))
}

func TestOrderTiesByPath(t *testing.T) {
	jobs := jobsFor(model.SuiteRuntime, "c.ny", "a.ny", "b.ny")
	Order(jobs, nil)
	assert.Equal(t, []string{"a.ny", "b.ny", "c.ny"}, paths(jobs))
}
