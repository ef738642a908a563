package model

import "time"

// RunRecord represents a single nytest run recorded under the cache root.
type RunRecord struct {
	// Unique ID for this run (UUID)
	ID string `json:"id"`
	// Timestamp when the run started
	Timestamp time.Time `json:"timestamp"`
	// Command-line arguments (including command name)
	Args []string `json:"args"`
	// Project root the run was executed in
	WorkDir string `json:"workdir"`
	// Compiler binary under test
	Binary string `json:"binary,omitempty"`
	// Exit code of the run
	ExitCode int `json:"exit_code"`
	// Wall time of the run
	Duration time.Duration `json:"duration"`
	// Whether the run was interrupted before all cases completed
	Interrupted bool `json:"interrupted,omitempty"`
	// Git information
	Git *Git `json:"git,omitempty"`
	// Host the run executed on
	Target *Target `json:"target,omitempty"`
	// Cache and phase configuration in effect
	Mode *Mode `json:"mode,omitempty"`
	// Aggregate counts
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
	Cached int `json:"cached"`
	// Per-suite summaries in execution order
	Suites []SuiteSummary `json:"suites,omitempty"`
	// Paths of failing cases
	Failures []string `json:"failures,omitempty"`
	// Files stored in the run directory
	Artifacts []Artifact `json:"artifacts,omitempty"`
}

// Git contains git repository information
type Git struct {
	// Git commit hash at time of execution
	Commit string `json:"commit,omitempty"`
	// Git branch at time of execution
	Branch string `json:"branch,omitempty"`
}

// Target contains information about the execution environment
type Target struct {
	// Operating system of the execution environment
	OS string `json:"os,omitempty"`
	// CPU architecture of the execution environment
	Arch string `json:"arch,omitempty"`
	// CPU model string, if known
	CPU string `json:"cpu,omitempty"`
	// Logical and physical core counts
	Logical  int `json:"logical,omitempty"`
	Physical int `json:"physical,omitempty"`
	// Worker count used for correctness suites
	Jobs int `json:"jobs,omitempty"`
}

// Mode records which caches were active.
type Mode struct {
	Real        bool `json:"real,omitempty"`
	ResultCache bool `json:"result_cache"`
	NativeCache bool `json:"native_cache"`
}

// SuiteSummary aggregates the cases of one suite.
type SuiteSummary struct {
	Suite  string        `json:"suite"`
	Tests  int           `json:"tests"`
	Passed int           `json:"passed"`
	Cached int           `json:"cached"`
	Jobs   int           `json:"jobs,omitempty"`
	Sum    time.Duration `json:"sum"`
	Max    time.Duration `json:"max"`
}

// ArtifactType identifies a file stored next to a run record.
type ArtifactType string

const (
	// gzipped pprof profile of case durations
	ArtifactTypeTimingProfile ArtifactType = "timing_profile"
	// per-phase JSON profile
	ArtifactTypePhaseProfile ArtifactType = "phase_profile"
)

// Artifact is a file in the run directory.
type Artifact struct {
	Type ArtifactType `json:"type"`
	// File name relative to the run directory
	File string `json:"file"`
	Size int64  `json:"size"`
}
