//go:build windows

package process

import (
	"os/exec"

	"golang.org/x/sys/windows"
)

// setProcAttr puts the child in its own process group so CTRL_BREAK_EVENT
// can target it without affecting the daemon.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &windows.SysProcAttr{CreationFlags: windows.CREATE_NEW_PROCESS_GROUP}
}

func signalTerm(pid int) error {
	// Windows has no SIGTERM; request a graceful break and fall back to a
	// hard kill only if the break event cannot be sent.
	return terminateGracefully(pid)
}

func signalKill(pid int) error {
	h, err := windows.OpenProcess(windows.PROCESS_TERMINATE, false, uint32(pid))
	if err != nil {
		return err
	}
	defer windows.CloseHandle(h)
	return windows.TerminateProcess(h, 1)
}

func terminateGracefully(pid int) error {
	if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, uint32(pid)); err == nil {
		return nil
	}
	return signalKill(pid)
}

const stillActive = 259

func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(h)

	var exitCode uint32
	if err := windows.GetExitCodeProcess(h, &exitCode); err != nil {
		return false
	}
	return exitCode == stillActive
}
