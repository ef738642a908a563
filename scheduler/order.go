// Package scheduler orders pending cases and runs them on a bounded worker
// pool.
package scheduler

import (
	"sort"
	"time"

	"github.com/nytrix/nytest/model"
)

// HistoryFunc returns the last observed duration of a case.
type HistoryFunc func(suite, path string) (time.Duration, bool)

// Cost is the scheduling weight of c in seconds: the larger of its last
// observed duration and its static hint.
func Cost(c model.TestCase, history HistoryFunc) float64 {
	cost := CostHint(c.Suite, c.Path)
	if history != nil {
		if d, ok := history(c.Suite, c.Path); ok && d.Seconds() > cost {
			cost = d.Seconds()
		}
	}
	return cost
}

// Order sorts jobs longest first so that the slowest cases start early
// and the pool drains evenly. Ties keep path order. Expected durations are
// filled in from the computed cost.
func Order(jobs []model.Job, history HistoryFunc) {
	costs := make(map[string]float64, len(jobs))
	for i := range jobs {
		c := Cost(jobs[i].Case, history)
		costs[jobs[i].Case.Path] = c
		jobs[i].Expected = time.Duration(c * float64(time.Second))
	}
	sort.SliceStable(jobs, func(i, j int) bool {
		ci, cj := costs[jobs[i].Case.Path], costs[jobs[j].Case.Path]
		if ci != cj {
			return ci > cj
		}
		return jobs[i].Case.Path < jobs[j].Case.Path
	})
}
