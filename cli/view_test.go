package cli

import (
	"bytes"
	"testing"
	"time"

	"github.com/nytrix/nytest/history"
	"github.com/nytrix/nytest/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRemoveFirstDashDash(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			name: "empty slice",
			in:   []string{},
			want: []string{},
		},
		{
			name: "starts with --",
			in:   []string{"--", "-http=:8080", "-top"},
			want: []string{"-http=:8080", "-top"},
		},
		{
			name: "no --",
			in:   []string{"-http=:8080", "-top"},
			want: []string{"-http=:8080", "-top"},
		},
		{
			name: "only --",
			in:   []string{"--"},
			want: []string{},
		},
		{
			name: "-- in middle",
			in:   []string{"-top", "--", "-http=:8080"},
			want: []string{"-top", "--", "-http=:8080"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, removeFirstDashDash(tt.in))
		})
	}
}

func TestParseViewArgs(t *testing.T) {
	tests := []struct {
		name          string
		in            []string
		wantID        string
		wantPprofArgs []string
	}{
		{
			name:          "empty args - default to 0",
			in:            []string{},
			wantID:        "0",
			wantPprofArgs: nil,
		},
		{
			name:          "only ID - index 0",
			in:            []string{"0"},
			wantID:        "0",
			wantPprofArgs: []string{},
		},
		{
			name:          "only ID - negative index",
			in:            []string{"-1"},
			wantID:        "-1",
			wantPprofArgs: []string{},
		},
		{
			name:          "only ID - hex string",
			in:            []string{"abc123"},
			wantID:        "abc123",
			wantPprofArgs: []string{},
		},
		{
			name:          "only pprof args",
			in:            []string{"-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "ID with pprof args",
			in:            []string{"0", "-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "ID with -- separator and pprof args",
			in:            []string{"0", "--", "-http=:8080", "-top"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080", "-top"},
		},
		{
			name:          "negative index with -- and pprof args",
			in:            []string{"-1", "--", "-top"},
			wantID:        "-1",
			wantPprofArgs: []string{"-top"},
		},
		{
			name:          "hex ID with pprof args no separator",
			in:            []string{"abc123", "-list=main"},
			wantID:        "abc123",
			wantPprofArgs: []string{"-list=main"},
		},
		{
			name:          "only -- uses default 0",
			in:            []string{"--", "-http=:8080"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080"},
		},
		{
			name:          "negative index with multiple pprof args",
			in:            []string{"-2", "-http=:8080", "-nodefraction=0.1"},
			wantID:        "-2",
			wantPprofArgs: []string{"-http=:8080", "-nodefraction=0.1"},
		},
		{
			name:          "ID 0 with -- and multiple pprof args",
			in:            []string{"0", "--", "-http=:8080", "-top", "-cum"},
			wantID:        "0",
			wantPprofArgs: []string{"-http=:8080", "-top", "-cum"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gotID, gotPprofArgs := parseViewArgs(tt.in)
			assert.Equal(t, tt.wantID, gotID)
			assert.Equal(t, tt.wantPprofArgs, gotPprofArgs)
		})
	}
}

func testEntries() []history.Entry {
	return []history.Entry{
		{Record: model.RunRecord{ID: "c3d4e5f6-0000-4000-8000-000000000003"}, FullPath: "/runs/c"},
		{Record: model.RunRecord{ID: "b2c3d4e5-0000-4000-8000-000000000002"}, FullPath: "/runs/b"},
		{Record: model.RunRecord{ID: "A1B2C3D4-0000-4000-8000-000000000001"}, FullPath: "/runs/a"},
	}
}

func TestFindEntry(t *testing.T) {
	entries := testEntries()

	for _, tc := range []struct {
		arg  string
		want string
	}{
		{"0", "/runs/c"},
		{"-1", "/runs/b"},
		{"-2", "/runs/a"},
		{"b2c3", "/runs/b"},
		{"a1b2", "/runs/a"},
	} {
		t.Run(tc.arg, func(t *testing.T) {
			entry, err := findEntry(entries, tc.arg)
			require.NoError(t, err)
			assert.Equal(t, tc.want, entry.FullPath)
		})
	}

	_, err := findEntry(entries, "1")
	assert.ErrorContains(t, err, "invalid index")
	_, err = findEntry(entries, "-3")
	assert.ErrorContains(t, err, "out of range")
	_, err = findEntry(entries, "ffff")
	assert.ErrorContains(t, err, "no run found")
	_, err = findEntry(nil, "0")
	assert.ErrorIs(t, err, errNoRuns)
}

func TestDisplayRun(t *testing.T) {
	var out bytes.Buffer
	a := &App{out: &out}
	a.displayRun(&history.Entry{
		FullPath: "/runs/x",
		Record: model.RunRecord{
			ID:        "0123456789abcdef",
			Timestamp: time.Date(2026, 3, 4, 5, 6, 7, 0, time.UTC),
			Duration:  1500 * time.Millisecond,
			ExitCode:  1,
			Total:     3,
			Passed:    2,
			Failed:    1,
			Cached:    1,
			Suites: []model.SuiteSummary{
				{Suite: "std", Tests: 3, Passed: 2, Cached: 1, Jobs: 4, Sum: 30 * time.Millisecond, Max: 20 * time.Millisecond},
			},
			Failures:  []string{"etc/tests/std/b.ny"},
			Artifacts: []model.Artifact{{Type: model.ArtifactTypeTimingProfile, File: "timings.pb.gz", Size: 2048}},
		},
	})

	text := out.String()
	assert.Contains(t, text, "=== Run: 01234567 ===")
	assert.Contains(t, text, "Time: 2026-03-04 05:06:07")
	assert.Contains(t, text, "Exit Code: 1")
	assert.Contains(t, text, "Std            3     2      1     4     30ms     20ms")
	assert.Contains(t, text, "Total: 3 | 2 passed | 1 failed | 1 cached")
	assert.Contains(t, text, "  FAIL etc/tests/std/b.ny")
	assert.Contains(t, text, "Artifact: /runs/x/timings.pb.gz (2.0 KB)")
}
