package engine

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nytrix/nytest/config"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func planRoot(t *testing.T, files ...string) string {
	root := t.TempDir()
	for _, name := range files {
		abs := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(abs), 0755))
		require.NoError(t, os.WriteFile(abs, []byte("x"), 0755))
	}
	return root
}

func planSettings(env map[string]string) config.Settings {
	host := hostinfo.Topology{OS: "linux", Arch: "amd64", Logical: 8, Physical: 4, MemTotal: 16 << 30}
	return config.Load(config.MapEnv(env), host, zerolog.Nop())
}

func TestBuildPlan(t *testing.T) {
	root := planRoot(t,
		"build/ny", "build/ny_debug",
		"etc/tests/benchmark/fib.ny",
		"etc/tests/runtime/gc/alloc.ny",
		"std/core/list.ny",
		"std/os/thread.ny",
	)
	s := planSettings(map[string]string{
		"NYTRIX_THREAD_STRESS":       "1",
		"NYTRIX_THREAD_STRESS_FILE":  "std/os/thread.ny",
		"NYTRIX_THREAD_STRESS_ITERS": "4",
		"NYTRIX_TEST_STD_REPL":       "0",
	})
	bin := filepath.Join(root, "build", "ny")

	plan, err := BuildPlan(s, PlanOptions{
		Root:   root,
		Binary: bin,
		Jobs:   4,
		Smoke:  true,
		Suites: config.DefaultSuites(),
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.True(t, plan.Smoke)
	assert.Equal(t, bin, plan.SmokeBinary)
	require.NotNil(t, plan.Thread)
	assert.Equal(t, 4, plan.Thread.Iterations)
	assert.Equal(t, model.SuiteThread, plan.Thread.Job.Case.Suite)
	assert.Equal(t, "std/os/thread.ny", plan.Thread.Job.Case.Path)
	assert.Equal(t, bin+"_debug", plan.Thread.Job.Binary)
	assert.Empty(t, plan.ThreadMissing)

	require.Len(t, plan.Suites, 3)
	bench, runtime, std := plan.Suites[0], plan.Suites[1], plan.Suites[2]

	assert.Equal(t, bin, bench.Binary)
	assert.Equal(t, 1, bench.Jobs)
	assert.Equal(t, bin+"_debug", runtime.Binary)

	// the stress file is not repeated in the std suite
	require.Len(t, std.Cases, 1)
	c := std.Cases[0].Case
	assert.Equal(t, "std/core/list.ny", c.Path)
	assert.Equal(t, filepath.Join(root, "std", "core", "list.ny"), c.AbsPath)
	assert.False(t, c.Interactive)
	assert.True(t, c.Native)
	assert.Equal(t, "none", c.OptProfile)
	assert.Contains(t, std.Cases[0].Env, "NYTRIX_OPT_PROFILE=none")
	assert.True(t, runtime.Cases[0].Case.Interactive)

	assert.Equal(t, 4, plan.Cases())
}

func TestBuildPlanWithPatterns(t *testing.T) {
	root := planRoot(t, "build/ny", "etc/tests/runtime/gc/alloc.ny", "std/core/list.ny")
	s := planSettings(map[string]string{"NYTRIX_THREAD_STRESS": "1"})

	plan, err := BuildPlan(s, PlanOptions{
		Root:     root,
		Binary:   filepath.Join(root, "build", "ny"),
		Jobs:     8,
		Patterns: []string{"runtime/"},
		Smoke:    true,
		Suites:   config.DefaultSuites(),
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.False(t, plan.Smoke)
	assert.Nil(t, plan.Thread)
	assert.Empty(t, plan.ThreadMissing)
	require.Len(t, plan.Suites, 1)
	assert.Equal(t, model.SuiteRuntime, plan.Suites[0].Suite.Key)
	assert.Equal(t, 1, plan.Suites[0].Jobs)
	// no debug build next to the binary
	assert.Equal(t, filepath.Join(root, "build", "ny"), plan.Suites[0].Binary)
}

func TestBuildPlanThreadMissing(t *testing.T) {
	root := planRoot(t, "build/ny", "std/core/list.ny")
	s := planSettings(map[string]string{"NYTRIX_THREAD_STRESS": "yes"})

	plan, err := BuildPlan(s, PlanOptions{
		Root:   root,
		Binary: filepath.Join(root, "build", "ny"),
		Jobs:   2,
		Suites: config.DefaultSuites(),
	}, zerolog.Nop())
	require.NoError(t, err)

	assert.Nil(t, plan.Thread)
	assert.Equal(t, filepath.Join(root, config.DefaultThreadStressFile), plan.ThreadMissing)
}
