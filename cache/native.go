package cache

// This file contains the native artifact cache: compiled test binaries
// named after the native signature.

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

const (
	nativePrefix  = "ny_bin_"
	stagingPrefix = ".tmp_" + nativePrefix
)

// NativeArtifacts is a directory of compiled test programs. Workers write
// artifacts concurrently; collisions are harmless because equal names imply
// equal native signatures.
type NativeArtifacts struct {
	dir     string
	enabled bool
	ext     string
}

func NewNativeArtifacts(dir string, enabled bool) *NativeArtifacts {
	ext := ""
	if runtime.GOOS == "windows" {
		ext = ".exe"
	}
	return &NativeArtifacts{dir: dir, enabled: enabled, ext: ext}
}

func (n *NativeArtifacts) Dir() string {
	return n.dir
}

// Prepare creates the artifact directory.
func (n *NativeArtifacts) Prepare() error {
	if err := os.MkdirAll(n.dir, 0755); err != nil {
		return fmt.Errorf("failed to create native artifact directory: %w", err)
	}
	return nil
}

// Path returns the artifact path for key, whether or not it exists.
func (n *NativeArtifacts) Path(key string) string {
	return filepath.Join(n.dir, nativePrefix+key+n.ext)
}

// Lookup returns the artifact for key when reuse is enabled and the file
// exists with a non-zero size.
func (n *NativeArtifacts) Lookup(key string) (string, bool) {
	if !n.enabled {
		return "", false
	}
	path := n.Path(key)
	info, err := os.Stat(path)
	if err != nil || info.IsDir() || info.Size() == 0 {
		return "", false
	}
	return path, true
}

// Staging returns a fresh file in the artifact directory for a compile of
// key. The compiler writes there and Commit moves the file into place, so
// Lookup never sees a partial artifact.
func (n *NativeArtifacts) Staging(key string) (string, error) {
	f, err := os.CreateTemp(n.dir, stagingPrefix+key+"_*"+n.ext)
	if err != nil {
		return "", fmt.Errorf("failed to create staging artifact: %w", err)
	}
	name := f.Name()
	if err := f.Close(); err != nil {
		os.Remove(name)
		return "", fmt.Errorf("failed to create staging artifact: %w", err)
	}
	return name, nil
}

// Commit renames a staged artifact to the path of key. The staged file is
// left in place when the rename fails.
func (n *NativeArtifacts) Commit(staged, key string) (string, error) {
	path := n.Path(key)
	if err := os.Rename(staged, path); err != nil {
		return "", fmt.Errorf("failed to commit native artifact: %w", err)
	}
	return path, nil
}

// Discard removes a staged artifact.
func (n *NativeArtifacts) Discard(staged string) {
	os.Remove(staged)
}

// Usage returns the number of artifacts and their total size.
func (n *NativeArtifacts) Usage() (count int, size int64, err error) {
	entries, err := os.ReadDir(n.dir)
	if os.IsNotExist(err) {
		return 0, 0, nil
	}
	if err != nil {
		return 0, 0, err
	}
	for _, e := range entries {
		if e.IsDir() || strings.HasPrefix(e.Name(), stagingPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		count++
		size += info.Size()
	}
	return count, size, nil
}

// Clear removes every artifact.
func (n *NativeArtifacts) Clear() error {
	if err := os.RemoveAll(n.dir); err != nil {
		return fmt.Errorf("failed to remove native artifacts: %w", err)
	}
	return nil
}
