package cli

// This file contains the view command for displaying a previous run.

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nytrix/nytest/history"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/report"
	"github.com/urfave/cli/v2"
)

func removeFirstDashDash(in []string) []string {
	if len(in) > 0 && in[0] == "--" {
		return in[1:]
	}
	return in
}

func parseViewArgs(in []string) (idArg string, pprofArgs []string) {
	if len(in) == 0 {
		return "0", nil
	}

	// If first arg is "--", use default "0" and rest are pprof args
	if in[0] == "--" {
		return "0", in[1:]
	}

	// A negative index is "-" followed by digits, anything else starting
	// with "-" is a pprof flag
	if len(in[0]) > 1 && in[0][0] == '-' {
		if _, err := strconv.ParseInt(in[0], 10, 64); err != nil {
			return "0", in
		}
	}

	return in[0], removeFirstDashDash(in[1:])
}

// findEntry selects a run by index (0 newest, -1 the one before, ...) or
// by ID prefix. entries must be sorted newest first.
func findEntry(entries []history.Entry, arg string) (*history.Entry, error) {
	if len(entries) == 0 {
		return nil, errNoRuns
	}
	if parsed, err := strconv.ParseInt(arg, 10, 64); err == nil {
		if parsed > 0 {
			return nil, fmt.Errorf("invalid index: %s (use 0 for last, -1 for second-to-last, -2 for third-to-last, etc.)", arg)
		}
		index := int(-parsed)
		if index >= len(entries) {
			return nil, fmt.Errorf("index %s out of range (only %d runs)", arg, len(entries))
		}
		return &entries[index], nil
	}

	prefix := strings.ToLower(arg)
	for i := range entries {
		if strings.HasPrefix(strings.ToLower(entries[i].Record.ID), prefix) {
			return &entries[i], nil
		}
	}
	return nil, fmt.Errorf("no run found matching ID: %s", arg)
}

func (a *App) view(ctx *cli.Context) error {
	arg, pprofArgs := parseViewArgs(ctx.Args().Slice())

	entries, err := a.loadRuns()
	if err != nil {
		return err
	}
	entry, err := findEntry(entries, arg)
	if err != nil {
		return err
	}
	a.displayRun(entry)

	for _, artifact := range entry.Record.Artifacts {
		if artifact.Type == model.ArtifactTypeTimingProfile && len(pprofArgs) > 0 {
			return a.displayProfile(entry.FullPath, artifact, pprofArgs)
		}
	}
	return nil
}

func (a *App) displayRun(entry *history.Entry) {
	rec := entry.Record
	shortID := rec.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	fmt.Fprintf(a.out, "=== Run: %s ===\n", shortID)
	fmt.Fprintf(a.out, "Time: %s\n", rec.Timestamp.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(a.out, "Duration: %s\n", rec.Duration)
	fmt.Fprintf(a.out, "Exit Code: %d\n", rec.ExitCode)
	if rec.Interrupted {
		fmt.Fprintln(a.out, "Interrupted: yes")
	}
	if rec.WorkDir != "" {
		fmt.Fprintf(a.out, "Working Dir: %s\n", rec.WorkDir)
	}
	if rec.Binary != "" {
		fmt.Fprintf(a.out, "Binary: %s\n", rec.Binary)
	}
	if rec.Git != nil && len(rec.Git.Commit) >= 8 {
		fmt.Fprintf(a.out, "Git Commit: %s", rec.Git.Commit[:8])
		if rec.Git.Branch != "" {
			fmt.Fprintf(a.out, " (%s)", rec.Git.Branch)
		}
		fmt.Fprintln(a.out)
	}
	if rec.Mode != nil {
		fmt.Fprintf(a.out, "Mode: real=%t result_cache=%t native_cache=%t\n", rec.Mode.Real, rec.Mode.ResultCache, rec.Mode.NativeCache)
	}
	fmt.Fprintln(a.out)

	if len(rec.Suites) > 0 {
		fmt.Fprintf(a.out, "%-10s %5s %5s %6s %5s %8s %8s\n", "Suite", "Tests", "Pass", "Cached", "Jobs", "Total", "Max")
		for _, s := range rec.Suites {
			fmt.Fprintf(a.out, "%-10s %5d %5d %6d %5d %6dms %6dms\n",
				report.SuiteLabel(s.Suite), s.Tests, s.Passed, s.Cached, s.Jobs, s.Sum.Milliseconds(), s.Max.Milliseconds())
		}
		fmt.Fprintln(a.out)
	}
	fmt.Fprintf(a.out, "Total: %d | %d passed | %d failed | %d cached\n", rec.Total, rec.Passed, rec.Failed, rec.Cached)
	for _, f := range rec.Failures {
		fmt.Fprintf(a.out, "  FAIL %s\n", f)
	}
	for _, artifact := range rec.Artifacts {
		fmt.Fprintf(a.out, "Artifact: %s (%.1f KB)\n", filepath.Join(entry.FullPath, artifact.File), float64(artifact.Size)/1024)
	}
}

func (a *App) displayProfile(runDir string, artifact model.Artifact, pprofArgs []string) error {
	profilePath := filepath.Join(runDir, artifact.File)

	// Build pprof command with any additional args
	args := []string{"tool", "pprof"}
	args = append(args, pprofArgs...)
	args = append(args, profilePath)

	cmd := exec.Command("go", args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = a.out
	cmd.Stderr = os.Stderr
	cmd.Dir = runDir

	return cmd.Run()
}
