package cli

// This file contains run recording: the run record and its timing profile
// are written to the history directory below the cache root.

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nytrix/nytest/engine"
	"github.com/nytrix/nytest/history"
	"github.com/nytrix/nytest/model"
)

const timingProfileFile = "timings.pb.gz"

func (a *App) recordRun(runsDir string, rec *model.RunRecord, res *engine.Result) error {
	s := res.Summary
	rec.Total = s.Total
	rec.Passed = s.Passed
	rec.Failed = s.Failed()
	rec.Cached = s.Cached
	rec.Suites = s.Rows()
	rec.Failures = s.Failures

	runDir := history.RunDir(runsDir, rec)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}

	// Save the timing profile (non-fatal if it fails)
	if s.Total > 0 {
		if err := res.Timing.Write(filepath.Join(runDir, timingProfileFile), res.Finished); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to save timing profile")
		} else if err := history.AddArtifact(rec, runDir, timingProfileFile, model.ArtifactTypeTimingProfile); err != nil {
			a.logger.Warn().Err(err).Msg("Failed to register timing profile")
		}
	}

	if err := history.Write(runDir, rec); err != nil {
		return err
	}
	if _, err := history.Prune(a.logger, runsDir, history.Keep); err != nil {
		a.logger.Warn().Err(err).Msg("Failed to prune run history")
	}
	a.logger.Debug().Str("dir", runDir).Str("id", rec.ID).Msg("Recorded run")
	return nil
}
