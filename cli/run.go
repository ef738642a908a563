package cli

// This file contains the run command.

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/nytrix/nytest/cache"
	"github.com/nytrix/nytest/config"
	"github.com/nytrix/nytest/engine"
	"github.com/nytrix/nytest/history"
	"github.com/nytrix/nytest/hostinfo"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/phase"
	"github.com/nytrix/nytest/report"
	"github.com/nytrix/nytest/scheduler"
	"github.com/nytrix/nytest/signature"
	"github.com/nytrix/nytest/suite"
	"github.com/urfave/cli/v2"
)

// Exit codes of the run command.
const (
	exitFailed      = 1
	exitSetup       = 2
	exitInterrupted = 130
)

func projectRoot(ctx *cli.Context) (string, error) {
	root, err := filepath.Abs(ctx.String("root"))
	if err != nil {
		return "", fmt.Errorf("invalid project root: %w", err)
	}
	return root, nil
}

// resolveBinary finds the compiler for a --bin value relative to root.
func resolveBinary(root, requested string) (string, error) {
	if !filepath.IsAbs(requested) {
		requested = filepath.Join(root, requested)
	}
	bin, err := suite.ResolveBinary(requested)
	if err != nil {
		return "", cli.Exit(fmt.Sprintf("%v, tried: %s", err, strings.Join(suite.Candidates(requested, hostinfoDetect().OS), ", ")), exitSetup)
	}
	return bin, nil
}

func (a *App) openStores(root cache.Root, s config.Settings) engine.Stores {
	stores := engine.Stores{
		Results: cache.NewResultStore(root.Results(), s.InteractiveCache),
		Timings: cache.NewTimingStore(root.Timings()),
	}
	if err := stores.Timings.Load(); err != nil {
		a.logger.Warn().Err(err).Msg("Ignoring unreadable timing table")
	}
	if s.ResultCache {
		if err := stores.Results.Load(); err != nil {
			a.logger.Warn().Err(err).Msg("Ignoring unreadable result cache")
		}
	}
	return stores
}

func (a *App) smokeFunc(s config.Settings) engine.SmokeFunc {
	return func(ctx context.Context, bin string) (phase.SmokeResult, error) {
		return phase.RunSmoke(ctx, bin, s.ChildEnv(os.Environ(), ""), phase.SmokeScript, s.ReplTimeout, a.logger)
	}
}

func (a *App) run(ctx *cli.Context) error {
	startTime := time.Now()

	root, err := projectRoot(ctx)
	if err != nil {
		return err
	}
	s := a.settings()
	host := s.Host()

	bin, err := resolveBinary(root, ctx.String("bin"))
	if err != nil {
		return err
	}

	suites := config.DefaultSuites()
	if s.SuitesFile != "" {
		if suites, err = config.LoadSuites(s.SuitesFile); err != nil {
			return cli.Exit(err.Error(), exitSetup)
		}
	}

	jobs := s.Policy(ctx.Int("jobs")).Workers(host, hostinfo.WorkloadTest)
	patterns := append(ctx.StringSlice("pattern"), ctx.Args().Slice()...)
	plan, err := engine.BuildPlan(s, engine.PlanOptions{
		Root:     root,
		Binary:   bin,
		Jobs:     jobs,
		Patterns: patterns,
		Smoke:    ctx.Bool("smoke") && !ctx.Bool("no-smoke"),
		Suites:   suites,
		BaseEnv:  os.Environ(),
	}, a.logger)
	if err != nil {
		return cli.Exit(err.Error(), exitSetup)
	}
	a.logger.Debug().
		Str("binary", bin).
		Int("jobs", jobs).
		Int("cases", plan.Cases()).
		Msg("Planned run")

	cacheRoot := cache.ResolveRoot(a.logger, s.Getenv)
	native := cache.NewNativeArtifacts(cacheRoot.Native(), s.NativeCache)
	runner := phase.NewRunner(phase.Options{
		Timeout:     s.Timeout,
		ReplTimeout: s.ReplTimeout,
		ReplMode:    s.ReplMode,
		Native:      native,
	}, a.logger)

	jit, aot, std := s.CompilerCaches()
	rep := report.New(a.out, report.Options{
		Root:  root,
		ASCII: s.Symbols == config.SymbolsASCII,
		Color: s.Color,
		GOOS:  host.OS,
	})
	eng := engine.New(engine.Options{
		Root:             root,
		RawFlags:         s.RawFlags,
		ResultCache:      s.ResultCache,
		TimingsFromCache: s.TimingsFromCache,
		Heartbeat: scheduler.Heartbeat{
			Every:   s.WaitLog,
			MinAge:  s.WaitMinAge,
			Solo:    s.WaitSolo,
			Timeout: s.Timeout,
		},
		Mode: report.Mode{
			Real:        s.Real,
			ResultCache: s.ResultCache,
			NativeCache: s.NativeCache,
			JITCache:    jit,
			AOTCache:    aot,
			StdCache:    std,
			Executor:    s.Executor,
			ReplMode:    s.ReplMode,
		},
		Host:         host,
		Smoke:        a.smokeFunc(s),
		ProfileJSON:  s.ProfileJSON,
		ProfilePprof: s.ProfilePprof,
		MetricsFile:  s.MetricsFile,
	}, a.openStores(cacheRoot, s), signature.New(signature.FromSettings(root, s)), runner, rep, a.logger)

	runCtx, stop := signal.NotifyContext(ctx.Context, os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, err := eng.Run(runCtx, plan)
	if err != nil {
		a.logger.Warn().Err(err).Msg("Failed to save run state")
	}

	code := 0
	switch {
	case res.Interrupted:
		code = exitInterrupted
	case !res.OK():
		code = exitFailed
	}

	rec := history.NewRecord(startTime, os.Args, root)
	rec.Binary = bin
	rec.ExitCode = code
	rec.Duration = res.Finished.Sub(startTime)
	rec.Interrupted = res.Interrupted
	rec.Target = &model.Target{
		OS:       host.OS,
		Arch:     host.Arch,
		CPU:      host.CPULabel(),
		Logical:  host.Logical,
		Physical: host.Physical,
		Jobs:     jobs,
	}
	rec.Mode = &model.Mode{
		Real:        s.Real,
		ResultCache: s.ResultCache,
		NativeCache: s.NativeCache,
	}
	if commit, branch, err := getGitInfo(root); err == nil {
		rec.Git = &model.Git{Commit: commit, Branch: branch}
	}
	if err := a.recordRun(cacheRoot.Runs(), rec, res); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to record run history")
	}

	if code != 0 {
		return cli.Exit("", code)
	}
	return nil
}
