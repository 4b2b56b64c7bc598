package ralph

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"
)

// State persists across runs so retry counters and totals survive
// restarts. Stored as JSON next to the vault.
type State struct {
	// TaskRetries maps a task filename to its stuck-counter.
	TaskRetries    map[string]int `json:"task_retries"`
	TotalCompleted int            `json:"total_completed"`
	TotalCycles    int            `json:"total_cycles"`
	LastRun        string         `json:"last_run,omitempty"`
}

// loadState reads the state file. Missing or corrupt files start fresh.
func loadState(path string) *State {
	fresh := &State{TaskRetries: make(map[string]int)}

	data, err := os.ReadFile(path)
	if err != nil {
		return fresh
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("ralph: state file %s corrupt, starting fresh: %v", path, err)
		return fresh
	}
	if s.TaskRetries == nil {
		s.TaskRetries = make(map[string]int)
	}
	return &s
}

// saveState stamps LastRun and writes the state file.
func saveState(path string, s *State) error {
	s.LastRun = time.Now().Format(time.RFC3339)
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal ralph state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write ralph state: %w", err)
	}
	return nil
}
