package history

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nytrix/nytest/model"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeRun(t *testing.T, runsDir string, at time.Time) *model.RunRecord {
	rec := NewRecord(at, []string{"nytest", "run"}, "/src/nytrix")
	rec.Total = 3
	rec.Passed = 3
	require.NoError(t, Write(RunDir(runsDir, rec), rec))
	return rec
}

func TestWriteAndLoadEntries(t *testing.T) {
	runsDir := filepath.Join(t.TempDir(), "runs")
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	older := writeRun(t, runsDir, base)
	newer := writeRun(t, runsDir, base.Add(time.Hour))

	require.NoError(t, os.MkdirAll(filepath.Join(runsDir, "broken"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(runsDir, "broken", RecordFile), []byte("{"), 0644))
	require.NoError(t, os.MkdirAll(filepath.Join(runsDir, "empty"), 0755))

	entries, err := LoadEntries(zerolog.Nop(), runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, newer.ID, entries[0].Record.ID)
	assert.Equal(t, older.ID, entries[1].Record.ID)
	assert.Equal(t, 3, entries[0].Record.Passed)
	assert.Equal(t, "20250301-130000-"+newer.ID[:8], filepath.Base(entries[0].FullPath))
}

func TestLoadEntriesMissingDir(t *testing.T) {
	entries, err := LoadEntries(zerolog.Nop(), filepath.Join(t.TempDir(), "absent"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestPrune(t *testing.T) {
	runsDir := t.TempDir()
	base := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	var recs []*model.RunRecord
	for i := range 5 {
		recs = append(recs, writeRun(t, runsDir, base.Add(time.Duration(i)*time.Minute)))
	}

	removed, err := Prune(zerolog.Nop(), runsDir, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	entries, err := LoadEntries(zerolog.Nop(), runsDir)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Equal(t, recs[4].ID, entries[0].Record.ID)
	assert.Equal(t, recs[2].ID, entries[2].Record.ID)
}

func TestAddArtifact(t *testing.T) {
	dir := t.TempDir()
	rec := NewRecord(time.Now(), nil, "")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "timings.pb.gz"), []byte("abcd"), 0644))

	require.NoError(t, AddArtifact(rec, dir, "timings.pb.gz", model.ArtifactTypeTimingProfile))
	assert.Equal(t, []model.Artifact{{Type: model.ArtifactTypeTimingProfile, File: "timings.pb.gz", Size: 4}}, rec.Artifacts)
	assert.Error(t, AddArtifact(rec, dir, "missing", model.ArtifactTypePhaseProfile))
}
