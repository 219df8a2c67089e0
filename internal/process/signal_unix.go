//go:build unix

package process

import (
	"errors"
	"os/exec"
	"syscall"
)

func terminateGroup(pid int) error {
	return signalGroup(pid, syscall.SIGTERM)
}

func killGroup(pid int) error {
	return signalGroup(pid, syscall.SIGKILL)
}

func interruptGroup(pid int) error {
	return signalGroup(pid, syscall.SIGINT)
}

// signalGroup signals the process group led by pid, falling back to the
// process alone when it has no group of its own.
func signalGroup(pid int, sig syscall.Signal) error {
	if pgid, err := syscall.Getpgid(pid); err == nil && pgid == pid {
		return syscall.Kill(-pgid, sig)
	}
	return syscall.Kill(pid, sig)
}

// exitCodeOf maps a Wait error to an exit code. Signal deaths map to
// 128+signal as a shell would report them.
func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if !errors.As(err, &exitErr) {
		return 1
	}
	if ws, ok := exitErr.Sys().(syscall.WaitStatus); ok {
		if ws.Signaled() {
			return 128 + int(ws.Signal())
		}
		return ws.ExitStatus()
	}
	return exitErr.ExitCode()
}
