package cli

import (
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nytrix/nytest/engine"
	"github.com/nytrix/nytest/history"
	"github.com/nytrix/nytest/model"
	"github.com/nytrix/nytest/report"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testResult(start time.Time, results ...model.CaseResult) *engine.Result {
	res := &engine.Result{
		Summary:  report.NewSummary(start),
		Timing:   report.NewTimingProfile(start),
		Finished: start.Add(time.Second),
	}
	for _, r := range results {
		res.Summary.Add(r, r.Direct.Duration)
		res.Timing.Record(r)
	}
	return res
}

func caseResult(path string, status model.PhaseStatus, d time.Duration) model.CaseResult {
	return model.CaseResult{
		Case:   model.TestCase{Suite: model.SuiteStd, Path: path},
		Direct: model.PhaseResult{Phase: model.PhaseDirect, Status: status, Duration: d},
		Native: model.PhaseResult{Phase: model.PhaseNative, Status: model.StatusSkipped},
	}
}

func TestRecordRun(t *testing.T) {
	runsDir := t.TempDir()
	a := &App{logger: zerolog.New(io.Discard), out: io.Discard}
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)

	res := testResult(start,
		caseResult("etc/tests/std/a.ny", model.StatusPassed, 10*time.Millisecond),
		caseResult("etc/tests/std/b.ny", model.StatusFailed, 20*time.Millisecond),
	)
	rec := history.NewRecord(start, []string{"nytest", "run"}, "/src")
	rec.ExitCode = exitFailed
	require.NoError(t, a.recordRun(runsDir, rec, res))

	entries, err := history.LoadEntries(a.logger, runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0].Record
	assert.Equal(t, rec.ID, got.ID)
	assert.Equal(t, 2, got.Total)
	assert.Equal(t, 1, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, []string{"etc/tests/std/b.ny"}, got.Failures)
	require.Len(t, got.Suites, 1)
	assert.Equal(t, model.SuiteStd, got.Suites[0].Suite)

	require.Len(t, got.Artifacts, 1)
	assert.Equal(t, model.ArtifactTypeTimingProfile, got.Artifacts[0].Type)
	info, err := os.Stat(filepath.Join(entries[0].FullPath, timingProfileFile))
	require.NoError(t, err)
	assert.Equal(t, info.Size(), got.Artifacts[0].Size)
}

func TestRecordRunWithoutCases(t *testing.T) {
	runsDir := t.TempDir()
	a := &App{logger: zerolog.New(io.Discard), out: io.Discard}
	start := time.Now()

	rec := history.NewRecord(start, []string{"nytest"}, "/src")
	require.NoError(t, a.recordRun(runsDir, rec, testResult(start)))

	entries, err := history.LoadEntries(a.logger, runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Empty(t, entries[0].Record.Artifacts)
	assert.NoFileExists(t, filepath.Join(entries[0].FullPath, timingProfileFile))
}

func TestResolveBinary(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "build"), 0755))
	bin := filepath.Join(root, "build", "ny")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\n"), 0755))

	got, err := resolveBinary(root, "build/ny")
	require.NoError(t, err)
	assert.Equal(t, bin, got)
}
