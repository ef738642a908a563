package config

// This file contains the run settings derived from the environment and the
// host topology.

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// Interactive phase drivers.
const (
	ReplModePipe = "pipe"
	ReplModePTY  = "pty"
)

// Symbol sets used by the reporter.
const (
	SymbolsUnicode = "unicode"
	SymbolsASCII   = "ascii"
)

// DefaultThreadStressFile is the default thread stress program, relative to
// the project root.
const DefaultThreadStressFile = "etc/tests/std/os/thread.ny"

// ThreadStress configures the repeated thread stress case.
type ThreadStress struct {
	Enabled     bool
	File        string
	Iterations  int
	Interactive bool
}

// Settings holds everything the run reads from the environment.
type Settings struct {
	// Real disables every cache for a cold verification run
	Real bool
	// ResultCache enables the result cache lookups and stores
	ResultCache bool
	// NativeCache enables native artifact reuse
	NativeCache bool
	// InteractiveCache allows cached entries to satisfy an interactive requirement
	InteractiveCache bool
	// TimingsFromCache refreshes timing entries from cache hits
	TimingsFromCache bool

	// Jobs is an explicit worker override, 0 means computed
	Jobs int
	// JobsCap is a hard cap applied on top of any worker count
	JobsCap int
	// BenchJobs overrides the benchmark suite worker count
	BenchJobs int
	// ARMJobsCap limits test workers on Linux ARM hosts
	ARMJobsCap int
	// ARMTuning enables ARM and low-memory special casing
	ARMTuning bool
	// Profile is the scheduling profile for test workers
	Profile hostinfo.Profile

	Timeout     time.Duration
	ReplTimeout time.Duration

	Executor string
	ReplMode string

	// Flags are extra compiler flags inserted into every invocation
	Flags    []string
	RawFlags string

	CompilerSigMode string
	StdPrebuilt     string
	StdBuildPath    string
	CacheDir        string

	WaitLog    time.Duration
	WaitMinAge time.Duration
	WaitSolo   time.Duration

	ProfileJSON  string
	ProfilePprof string
	MetricsFile  string

	ThreadStress ThreadStress
	SuitesFile   string

	Symbols string
	Color   *bool

	PreservePreload bool
	TestMode        bool

	host   hostinfo.Topology
	reader Reader
}

// Load reads the settings for host from env.
func Load(env Env, host hostinfo.Topology, logger zerolog.Logger) Settings {
	r := NewReader(env, logger)
	s := Settings{host: host, reader: r}

	s.Real = r.Bool("NYTRIX_TEST_REAL", false)
	s.ResultCache = r.Bool("NYTRIX_TEST_CACHE", true) && !s.Real
	s.NativeCache = s.ResultCache && !r.Bool("NYTRIX_TEST_NO_NATIVE_CACHE", false)
	s.InteractiveCache = r.Bool("NYTRIX_TEST_REPL_CACHE", true)
	s.TimingsFromCache = r.Bool("NYTRIX_TEST_TIMINGS_FROM_CACHE", false)

	s.Jobs = r.Int("NYTRIX_TEST_JOBS", 0, 0)
	s.JobsCap = r.Int("NYTRIX_TEST_AUTO_JOBS_CAP", 0, 0)
	s.BenchJobs = r.Int("NYTRIX_BENCH_JOBS", 0, 0)
	s.ARMJobsCap = r.Int("NYTRIX_TEST_ARM_JOBS_CAP", 0, 1)
	s.ARMTuning = r.Bool("NYTRIX_TEST_ARM_TUNING", true)
	profile, ok := hostinfo.ParseProfile(r.String("NYTRIX_AUTO_THREADS", "auto"))
	if !ok {
		logger.Warn().Str("key", "NYTRIX_AUTO_THREADS").Msg("Unknown scheduling profile, using auto")
	}
	s.Profile = profile

	s.Timeout = time.Duration(r.Positive("NYTRIX_TEST_TIMEOUT", defaultTimeout(host))) * time.Second
	s.ReplTimeout = time.Duration(r.Positive("NYTRIX_TEST_REPL_TIMEOUT", defaultReplTimeout(host))) * time.Second

	s.Executor = strings.ToLower(r.String("NYTRIX_TEST_EXECUTOR", "thread"))
	if s.Executor != "thread" && s.Executor != "process" {
		logger.Warn().Str("executor", s.Executor).Msg("Unknown executor, using thread")
		s.Executor = "thread"
	}
	s.ReplMode = strings.ToLower(r.String("NYTRIX_TEST_REPL_MODE", ReplModePipe))
	if s.ReplMode != ReplModePipe && s.ReplMode != ReplModePTY {
		logger.Warn().Str("mode", s.ReplMode).Msg("Unknown interactive mode, using pipe")
		s.ReplMode = ReplModePipe
	}

	s.RawFlags = r.String("NYTRIX_TEST_FLAGS", "")
	if s.RawFlags != "" {
		flags, err := shlex.Split(s.RawFlags)
		if err != nil {
			logger.Warn().Err(err).Str("flags", s.RawFlags).Msg("Failed to split NYTRIX_TEST_FLAGS, using whitespace split")
			flags = strings.Fields(s.RawFlags)
		}
		s.Flags = flags
	}

	s.CompilerSigMode = strings.ToLower(r.String("NYTRIX_TEST_COMPILER_SIG", ""))
	s.StdPrebuilt = r.String("NYTRIX_STD_PREBUILT", "")
	s.StdBuildPath = r.String("NYTRIX_BUILD_STD_PATH", "")
	s.CacheDir = r.String("NYTRIX_TEST_CACHE_DIR", "")

	waitLog := r.Int("NYTRIX_TEST_WAIT_LOG_SECS", 8, 0)
	minAge := r.Int("NYTRIX_TEST_WAIT_MIN_AGE_SECS", max(10, waitLog), 0)
	solo := r.Int("NYTRIX_TEST_WAIT_SOLO_SECS", max(minAge, 15), 0)
	s.WaitLog = time.Duration(waitLog) * time.Second
	s.WaitMinAge = time.Duration(minAge) * time.Second
	s.WaitSolo = time.Duration(solo) * time.Second

	s.ProfileJSON = r.String("NYTRIX_TEST_PROFILE_JSON", "")
	s.ProfilePprof = r.String("NYTRIX_TEST_PROFILE_PPROF", "")
	s.MetricsFile = r.String("NYTRIX_TEST_METRICS_FILE", "")

	s.ThreadStress = ThreadStress{
		Enabled:     r.Bool("NYTRIX_THREAD_STRESS", false),
		File:        r.String("NYTRIX_THREAD_STRESS_FILE", DefaultThreadStressFile),
		Iterations:  r.Int("NYTRIX_THREAD_STRESS_ITERS", 1, 1),
		Interactive: r.Bool("NYTRIX_THREAD_STRESS_REPL", false),
	}
	s.SuitesFile = r.String("NYTRIX_TEST_SUITES_FILE", "")

	s.Symbols = SymbolsUnicode
	if strings.EqualFold(r.String("NYTRIX_UI_SYMBOLS", ""), SymbolsASCII) {
		s.Symbols = SymbolsASCII
	}
	if v, _ := r.Lookup("NO_COLOR"); v != "" {
		off := false
		s.Color = &off
	} else if r.Bool("FORCE_COLOR", false) || r.Bool("CLICOLOR_FORCE", false) {
		on := true
		s.Color = &on
	}

	s.PreservePreload = r.Bool("NYTRIX_TEST_PRESERVE_PRELOAD", false)
	s.TestMode = r.Bool("NYTRIX_ENABLE_TEST_MODE", false)
	return s
}

func defaultTimeout(host hostinfo.Topology) int {
	if !host.Windows() && host.ARMClass() {
		return 180
	}
	return 60
}

func defaultReplTimeout(host hostinfo.Topology) int {
	switch {
	case host.ARMClass():
		return 25
	case host.Windows():
		return 12
	}
	return 8
}

// Host returns the topology the settings were derived for.
func (s Settings) Host() hostinfo.Topology {
	return s.host
}

// Policy returns the worker policy for test workloads. An explicit
// override from the command line takes precedence over NYTRIX_TEST_JOBS.
func (s Settings) Policy(override int) hostinfo.Policy {
	if override <= 0 {
		override = s.Jobs
	}
	return hostinfo.Policy{
		Profile:   s.Profile,
		Override:  override,
		Cap:       s.JobsCap,
		ARMCap:    s.ARMJobsCap,
		ARMTuning: s.ARMTuning,
	}
}

func (s Settings) lowMemoryARM() bool {
	return s.ARMTuning && s.host.LowMemoryARM()
}

func suiteEnvName(suite string) string {
	return strings.ToUpper(suite)
}

// InteractiveEnabled reports whether the interactive phase runs for suite.
// def is the suite default; small ARM boards disable it unless overridden.
func (s Settings) InteractiveEnabled(suite string, def bool) bool {
	if s.lowMemoryARM() {
		def = false
	}
	return s.reader.Bool(fmt.Sprintf("NYTRIX_TEST_%s_REPL", suiteEnvName(suite)), def)
}

// NativeEnabled reports whether the native phase runs for suite.
func (s Settings) NativeEnabled(suite string, def bool) bool {
	if !s.reader.Bool("NYTRIX_TEST_NATIVE", true) {
		return false
	}
	if suite == model.SuiteBenchmark && s.lowMemoryARM() {
		def = false
	}
	return s.reader.Bool(fmt.Sprintf("NYTRIX_TEST_%s_NATIVE", suiteEnvName(suite)), def)
}

// OptProfile resolves the optimization profile for suite. Suite specific
// overrides win over NYTRIX_OPT_PROFILE, which wins over suite defaults.
func (s Settings) OptProfile(suite string) string {
	global := strings.ToLower(s.reader.String("NYTRIX_OPT_PROFILE", ""))
	var key, def string
	switch suite {
	case model.SuiteBenchmark:
		key = "NYTRIX_TEST_BENCH_OPT_PROFILE"
		def = "none"
		if s.host.Windows() || s.host.ARMClass() {
			def = "speed"
		}
	case model.SuiteRuntime:
		key, def = "NYTRIX_TEST_RUNTIME_OPT_PROFILE", "none"
	case model.SuiteStd:
		key, def = "NYTRIX_TEST_STD_OPT_PROFILE", "none"
	default:
		return global
	}
	if v := strings.ToLower(s.reader.String(key, "")); v != "" {
		return v
	}
	if global != "" {
		return global
	}
	return def
}

// Getenv reads a raw variable through the settings' environment.
func (s Settings) Getenv(key string) string {
	return s.reader.String(key, "")
}

// SuiteForPath classifies a path that is not part of a discovered suite,
// such as the thread stress file.
func SuiteForPath(path string) string {
	p := filepath.ToSlash(path)
	switch {
	case strings.Contains(p, "/benchmark/") || strings.HasPrefix(p, "etc/tests/benchmark/") ||
		strings.Contains(p, "/bench/") || strings.HasPrefix(p, "std/bench/"):
		return model.SuiteBenchmark
	case strings.Contains(p, "/runtime/") || strings.HasPrefix(p, "std/runtime/"):
		return model.SuiteRuntime
	case strings.Contains(p, "/std/") || strings.HasPrefix(p, "std/"):
		return model.SuiteStd
	}
	return model.SuiteOther
}
