//go:build !windows

package agent

import (
	"os/exec"
	"syscall"
)

// setProcGroup makes the child the leader of a new process group, so
// termination signals reach every descendant it spawns.
func setProcGroup(cmd *exec.Cmd) {
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
}

// terminate sends SIGTERM to the child's process group.
func terminate(pid int) error {
	return syscall.Kill(-pid, syscall.SIGTERM)
}

// kill sends SIGKILL to the child's process group.
func kill(pid int) error {
	return syscall.Kill(-pid, syscall.SIGKILL)
}

// groupAlive reports whether the process group still has live members.
func groupAlive(pid int) bool {
	return syscall.Kill(-pid, 0) == nil
}
