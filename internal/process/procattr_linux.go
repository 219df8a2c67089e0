//go:build linux

package process

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the child in its own process group and asks the kernel
// to SIGTERM it if maestro dies first.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid:   true,
		Pdeathsig: syscall.SIGTERM,
	}
}

// setPTYProcAttr prepares a PTY child. The PTY library makes it a session
// leader, so only the parent-death signal is added.
func setPTYProcAttr(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM}
}
