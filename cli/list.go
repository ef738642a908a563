package cli

// This file contains the list command for displaying previous runs.

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nytrix/nytest/cache"
	"github.com/nytrix/nytest/history"
	"github.com/urfave/cli/v2"
)

var errNoRuns = errors.New("no runs recorded")

// runsDir is the history directory below the cache root.
func (a *App) runsDir() string {
	s := a.settings()
	return cache.ResolveRoot(a.logger, s.Getenv).Runs()
}

func (a *App) loadRuns() ([]history.Entry, error) {
	entries, err := history.LoadEntries(a.logger, a.runsDir())
	if err != nil {
		return nil, fmt.Errorf("failed to load history: %w", err)
	}
	return entries, nil
}

func (a *App) list(ctx *cli.Context) error {
	limit := ctx.Int("limit")
	onlyFailed := ctx.Bool("failed")

	entries, err := a.loadRuns()
	if err != nil {
		return err
	}

	var filtered []history.Entry
	for _, entry := range entries {
		if !onlyFailed || entry.Record.Failed > 0 || entry.Record.ExitCode != 0 {
			filtered = append(filtered, entry)
		}
	}

	if len(filtered) == 0 {
		fmt.Fprintln(a.out, "No runs found")
		fmt.Fprintf(a.out, "Runs are saved to %s/<timestamp>-<id>/\n", a.runsDir())
		return nil
	}

	// Apply limit
	displayRuns := filtered
	if limit > 0 && limit < len(displayRuns) {
		displayRuns = displayRuns[:limit]
	}

	fmt.Fprintf(a.out, "\n=== Runs (%d total) ===\n\n", len(filtered))

	for _, entry := range displayRuns {
		rec := entry.Record
		timestamp := rec.Timestamp.Format("2006-01-02 15:04:05")
		duration := rec.Duration.Round(time.Millisecond)

		status := "✓"
		if rec.ExitCode != 0 {
			status = "✗"
		}

		// Show short ID (first 8 chars)
		shortID := rec.ID
		if len(shortID) > 8 {
			shortID = shortID[:8]
		}

		fmt.Fprintf(a.out, "%s  %s  [%s]  exit=%d  id=%s\n", status, timestamp, duration, rec.ExitCode, shortID)
		fmt.Fprintf(a.out, "   Cases: %d total, %d passed, %d failed, %d cached\n", rec.Total, rec.Passed, rec.Failed, rec.Cached)
		if len(rec.Args) > 1 {
			fmt.Fprintf(a.out, "   Args: %s\n", strings.Join(rec.Args[1:], " "))
		}
		if rec.WorkDir != "" {
			fmt.Fprintf(a.out, "   Path: %s\n", rec.WorkDir)
		}
		if rec.Target != nil && rec.Target.OS != "" {
			fmt.Fprintf(a.out, "   Host: %s/%s jobs=%d\n", rec.Target.OS, rec.Target.Arch, rec.Target.Jobs)
		}
		if rec.Git != nil && rec.Git.Commit != "" {
			shortCommit := rec.Git.Commit
			if len(shortCommit) > 8 {
				shortCommit = shortCommit[:8]
			}
			fmt.Fprintf(a.out, "   Commit: %s", shortCommit)
			if rec.Git.Branch != "" {
				fmt.Fprintf(a.out, " (%s)", rec.Git.Branch)
			}
			fmt.Fprintln(a.out)
		}
		fmt.Fprintf(a.out, "   %s\n\n", entry.FullPath)
	}

	fmt.Fprintf(a.out, "View a run: %s view <ID>\n", AppName)
	return nil
}
