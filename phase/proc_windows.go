//go:build windows

package phase

import (
	"os/exec"
	"strconv"
	"syscall"

	"golang.org/x/sys/windows"
)

// isolate detaches the child from the console group and hides its window.
func isolate(cmd *exec.Cmd) {
	if cmd.SysProcAttr == nil {
		cmd.SysProcAttr = &syscall.SysProcAttr{}
	}
	cmd.SysProcAttr.CreationFlags |= windows.CREATE_NEW_PROCESS_GROUP | windows.CREATE_NO_WINDOW
}

// terminateTree kills cmd and all of its descendants. A plain process kill
// would leave compiler and linker children running.
func terminateTree(cmd *exec.Cmd) error {
	if cmd.Process == nil {
		return nil
	}
	kill := exec.Command("taskkill", "/PID", strconv.Itoa(cmd.Process.Pid), "/T", "/F")
	kill.SysProcAttr = &syscall.SysProcAttr{CreationFlags: windows.CREATE_NO_WINDOW}
	if err := kill.Run(); err != nil {
		return cmd.Process.Kill()
	}
	return nil
}

// interruptTree has no graceful variant on Windows.
func interruptTree(cmd *exec.Cmd) error {
	return terminateTree(cmd)
}
