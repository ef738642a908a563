package hostinfo

import "golang.org/x/sys/unix"

func probe(t *Topology) {
	if n, err := unix.SysctlUint32("hw.physicalcpu"); err == nil {
		t.Physical = int(n)
	}
	if mem, err := unix.SysctlUint64("hw.memsize"); err == nil {
		t.MemTotal = mem
	}
	if model, err := unix.Sysctl("machdep.cpu.brand_string"); err == nil {
		t.CPUModel = model
	}
}
