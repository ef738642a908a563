// Package cache holds the persisted state of nytest: the result cache, the
// timing table and the native artifact directory.
package cache

import (
	"os"
	"path/filepath"
	"runtime"

	"github.com/rs/zerolog"
)

// File and directory names below the cache root.
const (
	ResultsFile = "test_results.json"
	TimingsFile = "test_timings.json"
	NativeDir   = "native"
	RunsDir     = "runs"
)

const probeFile = ".write_probe"

// Root is the per-host cache directory.
type Root string

func (r Root) Results() string { return filepath.Join(string(r), ResultsFile) }
func (r Root) Timings() string { return filepath.Join(string(r), TimingsFile) }
func (r Root) Native() string  { return filepath.Join(string(r), NativeDir) }
func (r Root) Runs() string    { return filepath.Join(string(r), RunsDir) }

// DefaultRoot returns the platform cache location without checking that it
// is writable.
func DefaultRoot(getenv func(string) string) string {
	if dir := getenv("NYTRIX_TEST_CACHE_DIR"); dir != "" {
		return dir
	}
	home, _ := os.UserHomeDir()
	switch runtime.GOOS {
	case "windows":
		base := getenv("LOCALAPPDATA")
		if base == "" && home != "" {
			base = filepath.Join(home, "AppData", "Local")
		}
		if base != "" {
			return filepath.Join(base, "nytrix", "test-cache")
		}
	case "darwin":
		if home != "" {
			return filepath.Join(home, "Library", "Caches", "nytrix", "test-cache")
		}
	default:
		base := getenv("XDG_CACHE_HOME")
		if base == "" && home != "" {
			base = filepath.Join(home, ".cache")
		}
		if base != "" {
			return filepath.Join(base, "nytrix", "test-cache")
		}
	}
	return filepath.Join(os.TempDir(), "nytrix-test-cache")
}

// ResolveRoot picks the cache root and verifies it is writable, falling
// back to a directory below os.TempDir().
func ResolveRoot(logger zerolog.Logger, getenv func(string) string) Root {
	candidates := []string{
		DefaultRoot(getenv),
		filepath.Join(os.TempDir(), "nytrix-test-cache"),
	}
	for _, dir := range candidates {
		if writable(dir) {
			return Root(dir)
		}
		logger.Warn().Str("path", dir).Msg("Cache directory is not writable")
	}
	return Root(candidates[len(candidates)-1])
}

func writable(dir string) bool {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return false
	}
	probe := filepath.Join(dir, probeFile)
	if err := os.WriteFile(probe, []byte("ok"), 0644); err != nil {
		return false
	}
	_ = os.Remove(probe)
	return true
}
