// Package history records finished runs below the cache root and loads
// them back for the list and view commands.
package history

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
)

// RecordFile is the name of the record inside a run directory.
const RecordFile = "history.json"

// Keep is the number of runs retained by Prune.
const Keep = 50

type Entry struct {
	Record   model.RunRecord
	FullPath string
}

// NewRecord starts the record of a run.
func NewRecord(start time.Time, args []string, workDir string) *model.RunRecord {
	return &model.RunRecord{
		ID:        uuid.NewString(),
		Timestamp: start,
		Args:      args,
		WorkDir:   workDir,
	}
}

// RunDir is the directory of rec below runsDir.
func RunDir(runsDir string, rec *model.RunRecord) string {
	shortID := rec.ID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	name := fmt.Sprintf("%s-%s", rec.Timestamp.Format("20060102-150405"), shortID)
	return filepath.Join(runsDir, name)
}

// AddArtifact registers a file that was written into dir.
func AddArtifact(rec *model.RunRecord, dir, file string, typ model.ArtifactType) error {
	info, err := os.Stat(filepath.Join(dir, file))
	if err != nil {
		return fmt.Errorf("failed to stat artifact: %w", err)
	}
	rec.Artifacts = append(rec.Artifacts, model.Artifact{Type: typ, File: file, Size: info.Size()})
	return nil
}

// Write stores rec in dir.
func Write(dir string, rec *model.RunRecord) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create run directory: %w", err)
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, RecordFile), data, 0644); err != nil {
		return fmt.Errorf("failed to write run record: %w", err)
	}
	return nil
}

// LoadEntries loads all run records below runsDir, newest first. A missing
// directory yields no entries.
func LoadEntries(logger zerolog.Logger, runsDir string) ([]Entry, error) {
	dirs, err := os.ReadDir(runsDir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read runs directory: %w", err)
	}

	var entries []Entry
	for _, d := range dirs {
		if !d.IsDir() {
			continue
		}
		path := filepath.Join(runsDir, d.Name())
		recordPath := filepath.Join(path, RecordFile)
		rec, err := parseRecord(recordPath)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			logger.Warn().Err(err).Str("path", recordPath).Msg("Failed to parse run record")
			continue
		}
		entries = append(entries, Entry{Record: rec, FullPath: path})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Record.Timestamp.After(entries[j].Record.Timestamp)
	})
	return entries, nil
}

func parseRecord(path string) (model.RunRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return model.RunRecord{}, err
	}
	var rec model.RunRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return model.RunRecord{}, err
	}
	return rec, nil
}

// Prune removes all but the keep newest runs and returns how many were
// removed.
func Prune(logger zerolog.Logger, runsDir string, keep int) (int, error) {
	entries, err := LoadEntries(logger, runsDir)
	if err != nil {
		return 0, err
	}
	if len(entries) <= keep {
		return 0, nil
	}
	var errs []error
	removed := 0
	for _, e := range entries[keep:] {
		if err := os.RemoveAll(e.FullPath); err != nil {
			errs = append(errs, err)
			continue
		}
		removed++
	}
	logger.Debug().Int("removed", removed).Str("dir", runsDir).Msg("Pruned run history")
	return removed, errors.Join(errs...)
}
