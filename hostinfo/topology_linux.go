package hostinfo

import (
	"os"

	"golang.org/x/sys/unix"
)

func probe(t *Topology) {
	if f, err := os.Open("/proc/cpuinfo"); err == nil {
		t.Physical, t.CPUModel = ParseCPUInfo(f)
		f.Close()
	}

	var info unix.Sysinfo_t
	if err := unix.Sysinfo(&info); err == nil {
		t.MemTotal = uint64(info.Totalram) * uint64(info.Unit)
	}
}
