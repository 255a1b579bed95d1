//go:build windows

package agent

import (
	"os"
	"os/exec"
	"strconv"
)

// Windows has no POSIX process groups; taskkill /T walks the child tree.

func setProcGroup(cmd *exec.Cmd) {}

func terminate(pid int) error {
	return exec.Command("taskkill", "/T", "/PID", strconv.Itoa(pid)).Run()
}

func kill(pid int) error {
	return exec.Command("taskkill", "/T", "/F", "/PID", strconv.Itoa(pid)).Run()
}

func groupAlive(pid int) bool {
	_, err := os.FindProcess(pid)
	return err == nil
}
