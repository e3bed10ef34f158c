//go:build !windows

package process

import (
	"os/exec"
	"syscall"
)

// setProcAttr gives the child its own process group so a graceful stop can
// signal the whole group without affecting the daemon itself.
func setProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func signalProcessGroup(pid int, sig syscall.Signal) error {
	pgid, err := syscall.Getpgid(pid)
	if err == nil && pgid > 0 {
		return syscall.Kill(-pgid, sig)
	}
	return syscall.Kill(pid, sig)
}

func signalTerm(pid int) error {
	return signalProcessGroup(pid, syscall.SIGTERM)
}

func signalKill(pid int) error {
	return signalProcessGroup(pid, syscall.SIGKILL)
}

// isAlive implements the spec's is_alive(pid) contract: a signal-0 probe.
func isAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	return syscall.Kill(pid, syscall.Signal(0)) == nil
}
