package hostinfo

import (
	"os"
	"unsafe"

	"golang.org/x/sys/windows"
)

func probe(t *Topology) {
	var status windows.MemoryStatusEx
	status.Length = uint32(unsafe.Sizeof(status))
	if err := windows.GlobalMemoryStatusEx(&status); err == nil {
		t.MemTotal = status.TotalPhys
	}
	t.CPUModel = os.Getenv("PROCESSOR_IDENTIFIER")
}
