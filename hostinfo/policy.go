package hostinfo

// This file contains the worker-count policy table.

import "strings"

// Workload distinguishes test execution from build jobs.
type Workload string

const (
	WorkloadTest  Workload = "test"
	WorkloadBuild Workload = "build"
)

// Profile names a scheduling profile.
type Profile string

const (
	ProfileOff          Profile = "off"
	ProfileConservative Profile = "conservative"
	ProfileSMT          Profile = "smt"
	ProfileAggressive   Profile = "aggressive"
	ProfileAuto         Profile = "auto"
)

// ParseProfile maps a profile name and its aliases onto a Profile. Unknown
// names resolve to ProfileAuto and ok is false.
func ParseProfile(name string) (p Profile, ok bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "auto", "default", "balanced":
		return ProfileAuto, true
	case "off", "single", "1":
		return ProfileOff, true
	case "conservative", "safe":
		return ProfileConservative, true
	case "smt":
		return ProfileSMT, true
	case "aggressive", "max":
		return ProfileAggressive, true
	}
	return ProfileAuto, false
}

// Policy turns a topology into a worker count.
type Policy struct {
	Profile Profile
	// Override wins over the computed recommendation when > 0
	Override int
	// Cap is applied on top of either the override or the recommendation when > 0
	Cap int
	// ARMCap limits test workers on Linux ARM/RISC-V hosts, 0 means min(logical, 4)
	ARMCap int
	// ARMTuning enables the ARM/RISC-V caps and floors
	ARMTuning bool
}

// Workers returns the worker count for kind, honoring override and cap.
func (p Policy) Workers(t Topology, kind Workload) int {
	jobs := p.Recommend(t, kind)
	if p.Override > 0 {
		jobs = p.Override
	}
	if p.Cap > 0 {
		jobs = min(jobs, p.Cap)
	}
	return max(1, jobs)
}

// Recommend computes the worker count for kind from the profile table.
func (p Policy) Recommend(t Topology, kind Workload) int {
	logical := max(1, t.Logical)
	physical := max(1, t.Physical)

	switch p.Profile {
	case ProfileOff:
		return 1
	case ProfileAggressive:
		return logical
	case ProfileConservative:
		if kind == WorkloadTest {
			if t.Windows() {
				return max(1, min(4, physical/2))
			}
			return max(1, min(16, physical/2))
		}
		half := logical
		if logical >= 8 {
			half = logical / 2
		}
		return max(1, min(physical, half))
	case ProfileSMT:
		if kind == WorkloadTest {
			if t.Windows() {
				quarter := logical / 2
				if logical >= 8 {
					quarter = logical / 4
				}
				return max(1, min(6, quarter))
			}
			return max(1, min(24, int(float64(logical)*0.6)))
		}
		return max(1, min(logical, int(float64(logical)*0.85)))
	}

	ratio := t.SMTRatio()
	if kind == WorkloadBuild {
		jobs := int(float64(physical) * 1.1)
		if ratio >= 1.8 {
			jobs = int(float64(physical) * 1.5)
		}
		return max(1, min(logical, max(physical, jobs)))
	}

	if t.Windows() {
		base := physical
		if logical >= 12 {
			base = physical / 2
		}
		return max(1, min(6, base))
	}

	var jobs int
	switch {
	case logical <= 4:
		jobs = logical
		if ratio > 1.2 {
			jobs = logical - 1
		}
	case ratio >= 1.8:
		reserve := max(1, logical/8)
		jobs = min(logical-reserve, physical+max(1, physical/2))
	default:
		jobs = logical
		if logical > 2 {
			jobs--
		}
	}
	jobs = min(jobs, SoftCap(logical))

	if p.ARMTuning && t.ARMClass() {
		if t.OS == "linux" {
			armCap := p.ARMCap
			if armCap <= 0 {
				armCap = min(logical, 4)
			}
			jobs = min(jobs, armCap)
		}
		if jobs < 2 && logical >= 4 {
			jobs = 2
		}
	}
	return max(1, min(logical, jobs))
}

// SoftCap is the ceiling for test workers. It grows sublinearly past 16
// logical cores.
func SoftCap(logical int) int {
	switch {
	case logical >= 64:
		return max(24, int(float64(logical)*0.75))
	case logical >= 48:
		return 40
	case logical >= 32:
		return 32
	case logical >= 16:
		return 24
	}
	return max(1, logical)
}

// BenchWorkers limits the worker count of the benchmark suite, where every
// case launches several heavy phases. override > 0 wins.
func BenchWorkers(t Topology, jobs, override int) int {
	if override > 0 {
		return override
	}
	logical := max(1, t.Logical)
	var limit int
	if t.Windows() {
		mem := t.MemGiB()
		limit = 2
		if logical >= 24 && mem >= 24 {
			limit = 3
		} else if logical <= 8 || (mem > 0 && mem < 8) {
			limit = 1
		}
	} else if logical >= 16 {
		limit = 8
	} else {
		limit = max(1, logical/2)
	}
	return max(1, min(jobs, limit))
}
