package model

// This file contains the test case and job descriptions handed from
// discovery to the scheduler and phase runner.

import "time"

// Suite keys. A test case belongs to exactly one suite.
const (
	SuiteBenchmark = "benchmark"
	SuiteRuntime   = "runtime"
	SuiteStd       = "std"
	SuiteThread    = "thread"
	SuiteOther     = "other"
)

// BinaryKind selects which compiler build a suite runs against.
type BinaryKind string

const (
	BinaryRelease BinaryKind = "release"
	BinaryDebug   BinaryKind = "debug"
)

// Suite describes a group of test programs discovered by a glob pattern.
type Suite struct {
	// Key used in persisted tables (benchmark, runtime, std, ...)
	Key string `json:"key" yaml:"key"`
	// Display name used in section headers
	Name string `json:"name" yaml:"name"`
	// Glob pattern relative to the project root, "**" allowed
	Pattern string `json:"pattern" yaml:"pattern"`
	// Which compiler build to use
	Binary BinaryKind `json:"binary,omitempty" yaml:"binary,omitempty"`
	// Interactive phase default when no environment override is present
	Interactive *bool `json:"interactive,omitempty" yaml:"interactive,omitempty"`
	// Native phase default when no environment override is present
	Native *bool `json:"native,omitempty" yaml:"native,omitempty"`
}

// TestCase is a single test program.
type TestCase struct {
	// Suite key the case belongs to
	Suite string
	// Normalized relative path (forward slashes)
	Path string
	// Absolute path on disk
	AbsPath string
	// Whether the interactive-session phase runs
	Interactive bool
	// Whether the native compile-and-run phase runs
	Native bool
	// Optimization profile exported to the compiler
	OptProfile string
}

// Job is a test case bound to everything a worker needs to execute it.
// Jobs are immutable once submitted.
type Job struct {
	Case TestCase
	// Compiler binary used for every phase
	Binary string
	// Extra flags inserted after the binary
	Flags []string
	// Child environment (KEY=VALUE)
	Env []string
	// Full test signature, used by the coordinator when storing the result
	Signature string
	// Native artifact key (short signature)
	NativeKey string
	// Expected duration used for ordering and wait logs
	Expected time.Duration
}
