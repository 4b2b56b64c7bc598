package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// Lock is a PID-based lock file guarding against two schedulers
// running over the same vault. Stale locks from dead processes are
// overridden with a warning.
type Lock struct {
	path string
}

type lockInfo struct {
	PID     int    `json:"pid"`
	Started string `json:"started"`
}

// NewLock creates a lock at path without acquiring it.
func NewLock(path string) *Lock {
	return &Lock{path: path}
}

// Acquire takes the lock. Returns false if another live process holds
// it; corrupt or stale lock files are overridden.
func (l *Lock) Acquire() (bool, error) {
	if data, err := os.ReadFile(l.path); err == nil {
		var info lockInfo
		if err := json.Unmarshal(data, &info); err != nil {
			log.Printf("scheduler: corrupt lock file, overriding")
		} else if processAlive(info.PID) {
			return false, nil
		} else {
			log.Printf("scheduler: stale lock from PID %d, overriding", info.PID)
		}
	}

	info := lockInfo{PID: os.Getpid(), Started: time.Now().Format(time.RFC3339)}
	data, err := json.Marshal(info)
	if err != nil {
		return false, fmt.Errorf("marshal lock: %w", err)
	}
	if err := os.WriteFile(l.path, data, 0o644); err != nil {
		return false, fmt.Errorf("write lock file: %w", err)
	}
	return true, nil
}

// Release removes the lock file.
func (l *Lock) Release() error {
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove lock file: %w", err)
	}
	return nil
}
