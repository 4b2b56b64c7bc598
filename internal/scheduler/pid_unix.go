//go:build !windows

package scheduler

import (
	"os"
	"syscall"
)

// processAlive reports whether a PID refers to a running process.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	proc, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return proc.Signal(syscall.Signal(0)) == nil
}
