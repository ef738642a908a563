package engine

// This file contains the run plan: discovered suites turned into jobs with
// their compiler, phases, environment and worker count.

import (
	"os"
	"path/filepath"

	"github.com/nytrix/nytest/config"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/suite"
	"github.com/rs/zerolog"
)

// SuitePlan is a suite bound to its compiler and worker count. Cases are
// in discovery order; the engine orders them by cost.
type SuitePlan struct {
	Suite  model.Suite
	Binary string
	Jobs   int
	Cases  []model.Job
}

// ThreadPlan is the repeated thread stress case.
type ThreadPlan struct {
	Job        model.Job
	Iterations int
}

// Plan is everything a run executes, in order: the smoke session, the
// thread stress case and the suites.
type Plan struct {
	Smoke       bool
	SmokeBinary string
	Thread      *ThreadPlan
	// ThreadMissing is the stress file path when it was requested but absent
	ThreadMissing string
	Suites        []SuitePlan
	// Jobs is the test worker count before per-suite limits
	Jobs int
}

// PlanOptions are the inputs of BuildPlan.
type PlanOptions struct {
	Root string
	// Binary is the resolved release compiler
	Binary   string
	Jobs     int
	Patterns []string
	Smoke    bool
	Suites   []model.Suite
	// BaseEnv is the environment children inherit, usually os.Environ()
	BaseEnv []string
}

func defaultOn(b *bool) bool {
	return b == nil || *b
}

// BuildPlan discovers the suites and binds every case to a job.
func BuildPlan(s config.Settings, opts PlanOptions, logger zerolog.Logger) (Plan, error) {
	debugBin := suite.DebugBinary(opts.Binary)
	filter := suite.NewFilter(opts.Patterns, logger)
	plan := Plan{
		Smoke:       opts.Smoke && len(opts.Patterns) == 0,
		SmokeBinary: opts.Binary,
		Jobs:        max(1, opts.Jobs),
	}

	var exclude []string
	if ts := s.ThreadStress; ts.Enabled {
		path := ts.File
		if !filepath.IsAbs(path) {
			path = filepath.Join(opts.Root, path)
		}
		if filter.Match(path) {
			if info, err := os.Stat(path); err == nil && !info.IsDir() {
				plan.Thread = &ThreadPlan{
					Job:        threadJob(s, opts, path, debugBin, ts.Interactive),
					Iterations: ts.Iterations,
				}
				exclude = append(exclude, path)
			} else {
				plan.ThreadMissing = path
			}
		}
	}

	discovered, err := suite.Discover(suite.Options{
		Root:    opts.Root,
		Suites:  opts.Suites,
		Filter:  filter,
		Exclude: exclude,
	}, logger)
	if err != nil {
		return Plan{}, err
	}

	for _, d := range discovered {
		bin := opts.Binary
		if d.Suite.Binary == model.BinaryDebug {
			bin = debugBin
		}
		key := d.Suite.Key
		interactive := s.InteractiveEnabled(key, defaultOn(d.Suite.Interactive))
		native := s.NativeEnabled(key, defaultOn(d.Suite.Native))
		opt := s.OptProfile(key)
		env := s.ChildEnv(opts.BaseEnv, opt)

		sp := SuitePlan{Suite: d.Suite, Binary: bin}
		for _, rel := range d.Paths {
			sp.Cases = append(sp.Cases, model.Job{
				Case: model.TestCase{
					Suite:       key,
					Path:        rel,
					AbsPath:     filepath.Join(opts.Root, filepath.FromSlash(rel)),
					Interactive: interactive,
					Native:      native,
					OptProfile:  opt,
				},
				Binary: bin,
				Flags:  s.Flags,
				Env:    env,
			})
		}
		sp.Jobs = max(1, min(plan.Jobs, len(sp.Cases)))
		if key == model.SuiteBenchmark {
			sp.Jobs = max(1, min(hostinfo.BenchWorkers(s.Host(), sp.Jobs, s.BenchJobs), len(sp.Cases)))
		}
		plan.Suites = append(plan.Suites, sp)
	}
	return plan, nil
}

func threadJob(s config.Settings, opts PlanOptions, path, bin string, interactive bool) model.Job {
	rel := path
	if r, err := filepath.Rel(opts.Root, path); err == nil {
		rel = r
	}
	rel = filepath.ToSlash(rel)
	pathSuite := config.SuiteForPath(rel)
	opt := s.OptProfile(pathSuite)
	return model.Job{
		Case: model.TestCase{
			Suite:       model.SuiteThread,
			Path:        rel,
			AbsPath:     path,
			Interactive: interactive,
			Native:      s.NativeEnabled(pathSuite, true),
			OptProfile:  opt,
		},
		Binary: bin,
		Flags:  s.Flags,
		Env:    s.ChildEnv(opts.BaseEnv, opt),
	}
}

// Cases counts the jobs of the plan.
func (p Plan) Cases() int {
	n := 0
	if p.Thread != nil {
		n++
	}
	for _, sp := range p.Suites {
		n += len(sp.Cases)
	}
	return n
}
