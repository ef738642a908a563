package suite

// This file contains compiler binary resolution.

import (
	"errors"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrBinaryNotFound is returned when no compiler binary candidate exists.
var ErrBinaryNotFound = errors.New("nytrix binary not found")

const debugSuffix = "_debug"

// Candidates lists the paths tried for a requested binary, in order.
func Candidates(requested, goos string) []string {
	cands := []string{requested + debugSuffix, requested, "./build/ny_debug", "./build/ny", "ny"}
	if goos != "windows" {
		return cands
	}
	var exe []string
	for _, c := range cands {
		if !strings.HasSuffix(strings.ToLower(c), ".exe") {
			exe = append(exe, c+".exe")
		}
	}
	return append(exe, cands...)
}

// ResolveBinary returns the absolute path of the first existing candidate
// for requested. The bare name is also looked up on PATH.
func ResolveBinary(requested string) (string, error) {
	for _, c := range Candidates(requested, runtime.GOOS) {
		if isFile(c) {
			return filepath.Abs(c)
		}
	}
	if p, err := exec.LookPath("ny"); err == nil {
		return filepath.Abs(p)
	}
	return "", ErrBinaryNotFound
}

// DebugBinary returns the debug build next to bin when it exists, and bin
// otherwise.
func DebugBinary(bin string) string {
	if strings.Contains(filepath.Base(bin), debugSuffix) {
		return bin
	}
	ext := filepath.Ext(bin)
	if !strings.EqualFold(ext, ".exe") {
		ext = ""
	}
	debug := strings.TrimSuffix(bin, ext) + debugSuffix + ext
	if isFile(debug) {
		return debug
	}
	return bin
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}
