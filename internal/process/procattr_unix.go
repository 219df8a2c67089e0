//go:build unix && !linux

package process

import (
	"os/exec"
	"syscall"
)

// setProcGroup runs the child in its own process group. Orphan cleanup on
// these platforms relies on Kill and KillAll.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

func setPTYProcAttr(cmd *exec.Cmd) {}
