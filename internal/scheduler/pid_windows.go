//go:build windows

package scheduler

import "os"

// processAlive reports whether a PID refers to a running process.
// Windows has no signal 0; FindProcess failing is the best signal we
// get without the win32 API.
func processAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	_, err := os.FindProcess(pid)
	return err == nil
}
