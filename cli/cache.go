package cli

// This file contains the cache inspection commands.

import (
	"fmt"
	"os"
	"sort"

	"github.com/nytrix/nytest/cache"
	"github.com/nytrix/nytest/report"
	"github.com/urfave/cli/v2"
)

func (a *App) cacheRoot() cache.Root {
	s := a.settings()
	return cache.ResolveRoot(a.logger, s.Getenv)
}

func (a *App) cacheInfo(_ *cli.Context) error {
	root := a.cacheRoot()
	fmt.Fprintf(a.out, "Cache root: %s\n\n", root)

	results := cache.NewResultStore(root.Results(), true)
	if err := results.Load(); err != nil {
		a.logger.Warn().Err(err).Str("path", root.Results()).Msg("Failed to read result cache")
	}
	fmt.Fprintf(a.out, "Results: %d entries (%s)\n", results.Len(), root.Results())
	perSuite := results.Suites()
	suites := make([]string, 0, len(perSuite))
	for name := range perSuite {
		suites = append(suites, name)
	}
	sort.Strings(suites)
	for _, name := range suites {
		fmt.Fprintf(a.out, "  %-10s %5d\n", report.SuiteLabel(name), perSuite[name])
	}

	timings := cache.NewTimingStore(root.Timings())
	if err := timings.Load(); err != nil {
		a.logger.Warn().Err(err).Str("path", root.Timings()).Msg("Failed to read timing table")
	}
	fmt.Fprintf(a.out, "Timings: %d entries (%s)\n", timings.Len(), root.Timings())

	native := cache.NewNativeArtifacts(root.Native(), true)
	count, size, err := native.Usage()
	if err != nil {
		return fmt.Errorf("failed to inspect native artifacts: %w", err)
	}
	fmt.Fprintf(a.out, "Native:  %d artifacts, %.1f MB (%s)\n", count, float64(size)/(1<<20), native.Dir())
	return nil
}

func (a *App) cacheClear(ctx *cli.Context) error {
	root := a.cacheRoot()
	all := !ctx.Bool("results") && !ctx.Bool("timings") && !ctx.Bool("native")

	remove := func(path string) error {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
		fmt.Fprintf(a.out, "Removed %s\n", path)
		return nil
	}

	if all || ctx.Bool("results") {
		if err := remove(root.Results()); err != nil {
			return err
		}
	}
	if all || ctx.Bool("timings") {
		if err := remove(root.Timings()); err != nil {
			return err
		}
	}
	if all || ctx.Bool("native") {
		native := cache.NewNativeArtifacts(root.Native(), true)
		if err := native.Clear(); err != nil {
			return err
		}
		fmt.Fprintf(a.out, "Removed %s\n", native.Dir())
	}
	return nil
}
