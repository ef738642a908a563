// Package hostinfo inspects the CPU topology and memory of the host and
// turns them into worker-count recommendations.
package hostinfo

import (
	"bufio"
	"io"
	"runtime"
	"strings"
)

const gib = 1 << 30

// Topology describes the CPU and memory of a host.
type Topology struct {
	// GOOS of the host
	OS string
	// GOARCH of the host
	Arch string
	// Logical CPUs visible to the process
	Logical int
	// Best-effort physical core count
	Physical int
	// Total RAM in bytes, 0 when unknown
	MemTotal uint64
	// CPU model string, empty when unknown
	CPUModel string
}

// Detect inspects the running host.
func Detect() Topology {
	t := Topology{
		OS:      runtime.GOOS,
		Arch:    runtime.GOARCH,
		Logical: max(1, runtime.NumCPU()),
	}
	probe(&t)
	t.Physical = t.normalizePhysical(t.Physical)
	return t
}

// normalizePhysical falls back to an estimate when the platform probe
// could not determine the physical core count.
func (t Topology) normalizePhysical(physical int) int {
	if physical <= 0 {
		if t.ARMClass() {
			physical = t.Logical
		} else if t.Logical >= 4 {
			physical = t.Logical / 2
		} else {
			physical = t.Logical
		}
	}
	return max(1, min(physical, t.Logical))
}

// SMTRatio is logical cores divided by physical cores, never below 1.
func (t Topology) SMTRatio() float64 {
	if t.Physical <= 0 {
		return 1
	}
	return max(1, float64(t.Logical)/float64(t.Physical))
}

// ARMClass reports ARM and RISC-V hosts, which get longer timeouts and
// conservative worker caps.
func (t Topology) ARMClass() bool {
	switch t.Arch {
	case "arm", "arm64", "riscv64":
		return true
	}
	return false
}

// ARM32 reports 32-bit ARM, which needs hard-float defaults.
func (t Topology) ARM32() bool {
	return t.Arch == "arm"
}

func (t Topology) Windows() bool {
	return t.OS == "windows"
}

// MemGiB returns the total RAM in GiB, 0 when unknown.
func (t Topology) MemGiB() float64 {
	return float64(t.MemTotal) / gib
}

// LowMemoryARM reports small Linux ARM/RISC-V boards with at most 1.5 GiB
// of RAM.
func (t Topology) LowMemoryARM() bool {
	if t.OS != "linux" || !t.ARMClass() || t.MemTotal == 0 {
		return false
	}
	return t.MemTotal <= 3*gib/2
}

// ParseCPUInfo reads /proc/cpuinfo formatted data and returns the number of
// distinct (physical id, core id) pairs and the CPU model name.
func ParseCPUInfo(r io.Reader) (physical int, model string) {
	type coreKey struct{ pkg, core string }
	seen := make(map[coreKey]struct{})
	var pkg, core string
	var havePkg, haveCore bool

	flush := func() {
		if havePkg && haveCore {
			seen[coreKey{pkg, core}] = struct{}{}
		}
		havePkg, haveCore = false, false
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		key, value, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		switch key {
		case "physical id":
			pkg, havePkg = value, true
		case "core id":
			core, haveCore = value, true
		case "model name", "Hardware", "uarch":
			if model == "" {
				model = value
			}
		}
	}
	flush()
	return len(seen), model
}
