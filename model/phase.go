package model

// This file contains the phase and case result types produced by the
// phase runner and consumed by the coordinator and reporter.

import "time"

// Phase identifies one of the execution modes of a test case.
type Phase string

const (
	PhaseDirect      Phase = "aot"
	PhaseInteractive Phase = "repl"
	PhaseNative      Phase = "native"
)

// PhaseStatus is the state of a phase. Passed, Failed, TimedOut and
// Skipped are terminal.
type PhaseStatus uint8

const (
	StatusNotRun PhaseStatus = iota
	StatusRunning
	StatusPassed
	StatusFailed
	StatusTimedOut
	StatusSkipped
)

func (s PhaseStatus) String() string {
	switch s {
	case StatusNotRun:
		return "not-run"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusTimedOut:
		return "timed-out"
	case StatusSkipped:
		return "skipped"
	}
	return "unknown"
}

// Synthetic exit codes.
const (
	ExitCodeTimeout    = 124
	ExitCodeSpawnError = -1
)

// PhaseResult is the outcome of one phase.
type PhaseResult struct {
	Phase    Phase
	Status   PhaseStatus
	Duration time.Duration
	ExitCode int
	// Compile is set for the native phase only
	Compile *time.Duration
	// Run is set for the native phase only
	Run *time.Duration
	// Combined stdout and stderr, never persisted
	Output string
}

// Passed reports whether the phase counts as successful. Skipped phases
// do not fail a case.
func (r PhaseResult) Passed() bool {
	return r.Status == StatusPassed || r.Status == StatusSkipped
}

func (r PhaseResult) Skipped() bool {
	return r.Status == StatusSkipped
}

// SkippedPhase returns a terminal skipped result for phase p.
func SkippedPhase(p Phase) PhaseResult {
	return PhaseResult{Phase: p, Status: StatusSkipped}
}

// CaseResult collects the phase outcomes of one test case.
type CaseResult struct {
	Case        TestCase
	Direct      PhaseResult
	Interactive *PhaseResult
	Native      PhaseResult
	// Result was served from the result cache
	Cached bool
	// Run was cancelled while the case was in flight
	Interrupted bool
	Started     time.Time
	Finished    time.Time
}

// OK is the conjunction of all non-skipped phases.
func (r CaseResult) OK() bool {
	if !r.Direct.Passed() || !r.Native.Passed() {
		return false
	}
	if r.Interactive != nil && !r.Interactive.Passed() {
		return false
	}
	return true
}

// Total is the sum of the phase durations.
func (r CaseResult) Total() time.Duration {
	total := r.Direct.Duration + r.Native.Duration
	if r.Interactive != nil {
		total += r.Interactive.Duration
	}
	return total
}
