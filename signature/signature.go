// Package signature computes the content-addressed keys of the result and
// native artifact caches.
package signature

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"

	"github.com/nytrix/nytest/config"
)

// CacheRevision is the first signature field. Bump it whenever the field
// list or its order changes.
const CacheRevision = "tcache-v2"

// LogicVersion is folded into every signature together with the digest of
// the running executable.
const LogicVersion = "nytest-logic-1"

// NativeKeyLength is the number of hex characters of a native artifact key.
const NativeKeyLength = 16

// Compiler signature modes.
const (
	CompilerModeTree   = ""
	CompilerModeBinary = "binary"
	CompilerModeStrict = "strict"
)

// Options configure an Engine.
type Options struct {
	// Project root containing src/ and std/
	Root string
	// Path of the orchestrator executable, os.Executable() when empty
	Self string
	// CompilerMode selects between the source tree and the binary digest
	CompilerMode string
	// Prebuilt standard library artifacts
	StdPrebuilt  string
	StdBuildPath string
	// Host identity, runtime values when empty
	OS   string
	Arch string
}

// Inputs are the per-case signature inputs.
type Inputs struct {
	// Test source file
	Source string
	// Compiler binary used for the case
	Binary      string
	Interactive bool
	Native      bool
	OptProfile  string
	// Extra invocation flags as given by the user
	Flags string
	// Child environment, read for the host flag overrides
	Env []string
}

type fileKey struct {
	path  string
	mtime int64
	size  int64
}

// Engine computes signatures. File digests and tree signatures are
// memoized for the lifetime of the Engine. It is safe for concurrent use.
type Engine struct {
	opts Options
	self string

	mu       sync.Mutex
	files    map[fileKey]string
	compiler map[string]string
	stdTree  *string
}

func New(opts Options) *Engine {
	if opts.OS == "" {
		opts.OS = runtime.GOOS
	}
	if opts.Arch == "" {
		opts.Arch = runtime.GOARCH
	}
	self := opts.Self
	if self == "" {
		if exe, err := os.Executable(); err == nil {
			self = exe
		}
	}
	return &Engine{
		opts:     opts,
		self:     self,
		files:    make(map[fileKey]string),
		compiler: make(map[string]string),
	}
}

// FromSettings builds the Options of a run rooted at root.
func FromSettings(root string, s config.Settings) Options {
	return Options{
		Root:         root,
		CompilerMode: s.CompilerSigMode,
		StdPrebuilt:  s.StdPrebuilt,
		StdBuildPath: s.StdBuildPath,
	}
}

func sentinel(path string) string {
	return path + ":0:0"
}

// FileDigest returns "<path>:<size>:<sha256>" for path. Files that cannot
// be statted or read yield the sentinel "<path>:0:0", which never matches a
// real digest.
func (e *Engine) FileDigest(path string) string {
	if path == "" {
		return ""
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	info, err := os.Stat(abs)
	if err != nil || info.IsDir() {
		return sentinel(abs)
	}
	key := fileKey{path: abs, mtime: info.ModTime().UnixNano(), size: info.Size()}

	e.mu.Lock()
	digest, ok := e.files[key]
	e.mu.Unlock()
	if ok {
		return digest
	}

	sum, err := hashFile(abs)
	if err != nil {
		return sentinel(abs)
	}
	digest = fmt.Sprintf("%s:%d:%s", abs, info.Size(), sum)

	e.mu.Lock()
	e.files[key] = digest
	e.mu.Unlock()
	return digest
}

func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// treeSignature folds "rel:mtime_ns:size|" of every matching file below dir
// into "<count>:<sha256>". It returns "missing" when dir does not exist or
// contains no matching file.
func treeSignature(dir string, match func(name string) bool) string {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return "missing"
	}

	type entry struct {
		rel   string
		mtime int64
		size  int64
	}
	var entries []entry
	_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() || !match(d.Name()) {
			return nil
		}
		fi, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		entries = append(entries, entry{filepath.ToSlash(rel), fi.ModTime().UnixNano(), fi.Size()})
		return nil
	})
	if len(entries) == 0 {
		return "missing"
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].rel < entries[j].rel })

	h := sha256.New()
	for _, e := range entries {
		fmt.Fprintf(h, "%s:%d:%d|", e.rel, e.mtime, e.size)
	}
	return fmt.Sprintf("%d:%s", len(entries), hex.EncodeToString(h.Sum(nil)))
}

func compilerSource(name string) bool {
	if name == "CMakeLists.txt" {
		return true
	}
	switch filepath.Ext(name) {
	case ".c", ".h", ".inc", ".def":
		return true
	}
	return false
}

func stdlibSource(name string) bool {
	return filepath.Ext(name) == ".ny"
}

// CompilerSignature identifies the compiler. By default it digests the
// compiler source tree under <root>/src and falls back to the binary digest
// when the tree is missing. Binary and strict mode always digest binary.
func (e *Engine) CompilerSignature(binary string) string {
	e.mu.Lock()
	sig, ok := e.compiler[binary]
	e.mu.Unlock()
	if ok {
		return sig
	}

	switch e.opts.CompilerMode {
	case CompilerModeBinary, CompilerModeStrict:
		sig = "bin:" + e.FileDigest(binary)
	default:
		sig = treeSignature(filepath.Join(e.opts.Root, "src"), compilerSource)
		if sig == "missing" {
			sig = "bin:" + e.FileDigest(binary)
		}
	}

	e.mu.Lock()
	e.compiler[binary] = sig
	e.mu.Unlock()
	return sig
}

// StdlibSignature digests the standard library tree under <root>/std.
func (e *Engine) StdlibSignature() string {
	e.mu.Lock()
	if e.stdTree != nil {
		sig := *e.stdTree
		e.mu.Unlock()
		return sig
	}
	e.mu.Unlock()

	sig := treeSignature(filepath.Join(e.opts.Root, "std"), stdlibSource)

	e.mu.Lock()
	e.stdTree = &sig
	e.mu.Unlock()
	return sig
}

func (e *Engine) logicDigest() string {
	if e.self == "" {
		return LogicVersion
	}
	return LogicVersion + "@" + e.FileDigest(e.self)
}

func flag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}

// Fields returns the ordered signature fields. The interactive flag is
// only part of the list when withInteractive is set.
func (e *Engine) Fields(in Inputs, withInteractive bool) []string {
	stdBuild := ""
	if e.opts.StdBuildPath != "" && e.opts.StdBuildPath != e.opts.StdPrebuilt {
		stdBuild = e.FileDigest(e.opts.StdBuildPath)
	}

	fields := []string{
		CacheRevision,
		"platform=" + e.opts.OS + "/" + e.opts.Arch,
		"os=" + e.opts.OS,
		"arch=" + e.opts.Arch,
	}
	if withInteractive {
		fields = append(fields, "repl="+flag(in.Interactive))
	}
	fields = append(fields,
		"native="+flag(in.Native),
		"logic="+e.logicDigest(),
		"src="+e.FileDigest(in.Source),
		"compiler="+e.CompilerSignature(in.Binary),
		"opt="+in.OptProfile,
		"flags="+strings.TrimSpace(in.Flags),
		"host_cflags="+config.Lookup(in.Env, "NYTRIX_HOST_CFLAGS"),
		"host_ldflags="+config.Lookup(in.Env, "NYTRIX_HOST_LDFLAGS"),
		"arm_float_abi="+config.Lookup(in.Env, "NYTRIX_ARM_FLOAT_ABI"),
		"host_triple="+config.Lookup(in.Env, "NYTRIX_HOST_TRIPLE"),
		"std_tree="+e.StdlibSignature(),
		"std_prebuilt="+e.FileDigest(e.opts.StdPrebuilt),
		"std_build="+stdBuild,
	)
	return fields
}

func digest(fields []string) string {
	sum := sha256.Sum256([]byte(strings.Join(fields, "|")))
	return hex.EncodeToString(sum[:])
}

// TestSignature is the result cache key of a case.
func (e *Engine) TestSignature(in Inputs) string {
	return digest(e.Fields(in, true))
}

// NativeSignature is the native artifact key of a case. It leaves out the
// interactive flag: the compiled artifact does not depend on whether an
// interactive replay also runs.
func (e *Engine) NativeSignature(in Inputs) string {
	return digest(e.Fields(in, false))[:NativeKeyLength]
}
