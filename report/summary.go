package report

// This file contains the run tally behind the timing summary, the history
// record and the metrics file.

import (
	"sort"
	"strings"
	"time"

	"github.com/nytrix/nytest/model"
)

// suiteOrder is the display order of the built-in suites.
var suiteOrder = []string{model.SuiteBenchmark, model.SuiteRuntime, model.SuiteStd, model.SuiteThread, model.SuiteOther}

// Timing is the counted duration of one case.
type Timing struct {
	Path     string
	Suite    string
	Duration time.Duration
}

// Summary accumulates case results in completion order. It is owned by the
// coordinating loop.
type Summary struct {
	Start    time.Time
	Total    int
	Passed   int
	Cached   int
	Failures []string

	rows    map[string]*model.SuiteSummary
	timings []Timing
}

func NewSummary(start time.Time) *Summary {
	return &Summary{Start: start, rows: make(map[string]*model.SuiteSummary)}
}

func (s *Summary) row(suite string) *model.SuiteSummary {
	r, ok := s.rows[suite]
	if !ok {
		r = &model.SuiteSummary{Suite: suite}
		s.rows[suite] = r
	}
	return r
}

// SetJobs records the worker count used for suite.
func (s *Summary) SetJobs(suite string, jobs int) {
	s.row(suite).Jobs = jobs
}

// Add counts res with duration d. Cache hits usually count as zero so the
// table reflects work actually done in this run.
func (s *Summary) Add(res model.CaseResult, d time.Duration) {
	suite := res.Case.Suite
	r := s.row(suite)
	r.Tests++
	r.Sum += d
	r.Max = max(r.Max, d)
	s.Total++
	if res.OK() {
		r.Passed++
		s.Passed++
	} else {
		s.Failures = append(s.Failures, res.Case.Path)
	}
	if res.Cached {
		r.Cached++
		s.Cached++
	}
	s.timings = append(s.timings, Timing{Path: res.Case.Path, Suite: suite, Duration: d})
}

// Failed is the number of cases with a failing phase.
func (s *Summary) Failed() int {
	return s.Total - s.Passed
}

// OK reports whether every counted case passed.
func (s *Summary) OK() bool {
	return s.Passed == s.Total
}

// Rows returns the per-suite rows, built-in suites first.
func (s *Summary) Rows() []model.SuiteSummary {
	var out []model.SuiteSummary
	seen := make(map[string]bool, len(s.rows))
	for _, key := range suiteOrder {
		if r, ok := s.rows[key]; ok && r.Tests > 0 {
			out = append(out, *r)
		}
		seen[key] = true
	}
	var rest []string
	for key, r := range s.rows {
		if !seen[key] && r.Tests > 0 {
			rest = append(rest, key)
		}
	}
	sort.Strings(rest)
	for _, key := range rest {
		out = append(out, *s.rows[key])
	}
	return out
}

// Slowest returns the n longest counted cases.
func (s *Summary) Slowest(n int) []Timing {
	out := append([]Timing(nil), s.timings...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Duration > out[j].Duration
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}

// SuiteLabel is the display name of a suite key.
func SuiteLabel(key string) string {
	switch key {
	case model.SuiteBenchmark:
		return "Benchmark"
	case model.SuiteRuntime:
		return "Runtime"
	case model.SuiteStd:
		return "Std"
	case model.SuiteThread:
		return "Thread"
	case "":
		return "Other"
	}
	return strings.ToUpper(key[:1]) + key[1:]
}
