package scheduler

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
)

// ProcessedFile records when an Inbox file was last handled so
// unchanged files are skipped on later cycles.
type ProcessedFile struct {
	MTime       int64  `json:"mtime"`
	ProcessedAt string `json:"processed_at"`
}

// State is the scheduler's durable memory between cycles and restarts.
type State struct {
	Processed          map[string]ProcessedFile `json:"processed"`
	CycleCount         int                      `json:"cycle_count"`
	LastRun            string                   `json:"last_run,omitempty"`
	LastDailyReport    string                   `json:"last_daily_report,omitempty"`
	LastErrorSummary   string                   `json:"last_error_summary,omitempty"`
	LastWeeklyBriefing string                   `json:"last_weekly_briefing,omitempty"`
}

// loadState reads the state file; missing or corrupt files start fresh.
func loadState(path string) *State {
	fresh := &State{Processed: make(map[string]ProcessedFile)}

	data, err := os.ReadFile(path)
	if err != nil {
		return fresh
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		log.Printf("scheduler: corrupt state file, starting fresh: %v", err)
		return fresh
	}
	if s.Processed == nil {
		s.Processed = make(map[string]ProcessedFile)
	}
	return &s
}

// saveState writes the state file.
func saveState(path string, s *State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal scheduler state: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write scheduler state: %w", err)
	}
	return nil
}
