//go:build !windows

package procmgr

import (
	"os/exec"
	"syscall"
)

// setProcessGroup puts the child into a new process group led by itself
func setProcessGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setpgid: true,
		Pgid:    0,
	}
}

// terminateGroup sends SIGTERM to the whole process group
func terminateGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// killGroup sends SIGKILL to the whole process group
func killGroup(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}
