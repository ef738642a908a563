package hostinfo

// This file contains the compact host labels printed in the host banner.

import (
	"fmt"
	"regexp"
	"strings"
)

var cpuSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\s+processor\s*$`),
	regexp.MustCompile(`(?i)\s+cpu\s*$`),
	regexp.MustCompile(`(?i)\s+\d+\s*[- ]cores?\s*$`),
}

// OSLabel names the operating system the way the project does.
func (t Topology) OSLabel() string {
	if t.OS == "darwin" {
		return "macos"
	}
	return t.OS
}

// CPULabel is the CPU model without generic vendor suffixes. The core
// count is printed separately.
func (t Topology) CPULabel() string {
	s := strings.TrimSpace(t.CPUModel)
	for _, re := range cpuSuffixes {
		s = re.ReplaceAllString(s, "")
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return "unknown"
	}
	return s
}

// MemLabel formats the total RAM.
func (t Topology) MemLabel() string {
	if t.MemTotal == 0 {
		return "unknown"
	}
	g := t.MemGiB()
	if g >= 1024 {
		return fmt.Sprintf("%.2f TiB", g/1024)
	}
	return fmt.Sprintf("%.1f GiB", g)
}
