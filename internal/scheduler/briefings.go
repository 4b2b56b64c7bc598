package scheduler

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

func (s *Scheduler) briefingsDir() string {
	return filepath.Join(s.vault.Root, "Briefings")
}

// jobDailyReport writes the end-of-day activity report. Guarded by a
// date key so it runs at most once per day.
func (s *Scheduler) jobDailyReport(state *State, now time.Time) {
	today := now.Format("2006-01-02")
	if state.LastDailyReport == today {
		return
	}

	completed := 0
	var completedFiles []string
	for _, rec := range s.log.RecentAudit(500) {
		if rec.Action != "ralph.task_completed" {
			continue
		}
		if !strings.HasPrefix(rec.TS, today) {
			continue
		}
		completed++
		if file, ok := rec.Details["file"].(string); ok {
			completedFiles = append(completedFiles, file)
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Daily Report — %s\n\n", today)
	fmt.Fprintf(&sb, "## Queue Counts\n\n")
	fmt.Fprintf(&sb, "| Stage | Count |\n|---|---|\n")
	fmt.Fprintf(&sb, "| Inbox | %d |\n", s.vault.Count(vault.StageInbox))
	fmt.Fprintf(&sb, "| Needs Action | %d |\n", s.vault.Count(vault.StageNeedsAction))
	fmt.Fprintf(&sb, "| Done | %d |\n\n", s.vault.Count(vault.StageDone))
	fmt.Fprintf(&sb, "## Completed Today (%d)\n\n", completed)
	if len(completedFiles) == 0 {
		sb.WriteString("- (none)\n")
	}
	for _, f := range completedFiles {
		fmt.Fprintf(&sb, "- %s\n", f)
	}
	fmt.Fprintf(&sb, "\n## Failed-Task Queue\n\n")
	qs := s.queue.Stats()
	fmt.Fprintf(&sb, "pending=%d resolved=%d failed=%d\n", qs.Pending, qs.Resolved, qs.Failed)

	path := filepath.Join(s.briefingsDir(), fmt.Sprintf("Daily_Report_%s.md", today))
	if err := s.writeBriefing(path, sb.String()); err != nil {
		s.log.LogError("briefing.daily", err, map[string]any{"date": today})
		return
	}

	state.LastDailyReport = today
	s.eventBus.Emit(bus.TopicDailyBriefing, map[string]any{"date": today})
	s.log.LogAudit("briefing.daily", "success", map[string]any{"date": today})
}

// jobErrorSummary writes a per-source error digest for the day.
func (s *Scheduler) jobErrorSummary(state *State, now time.Time) {
	today := now.Format("2006-01-02")
	if state.LastErrorSummary == today {
		return
	}

	bySource := make(map[string]int)
	for _, rec := range s.log.RecentErrors(500) {
		if strings.HasPrefix(rec.TS, today) {
			bySource[rec.Source]++
		}
	}
	sources := make([]string, 0, len(bySource))
	for src := range bySource {
		sources = append(sources, src)
	}
	sort.Strings(sources)

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Error Summary — %s\n\n", today)
	if len(sources) == 0 {
		sb.WriteString("No errors logged today.\n")
	} else {
		fmt.Fprintf(&sb, "| Source | Errors |\n|---|---|\n")
		for _, src := range sources {
			fmt.Fprintf(&sb, "| %s | %d |\n", src, bySource[src])
		}
	}

	path := filepath.Join(s.briefingsDir(), fmt.Sprintf("Error_Summary_%s.md", today))
	if err := s.writeBriefing(path, sb.String()); err != nil {
		s.log.LogError("briefing.error_summary", err, map[string]any{"date": today})
		return
	}
	state.LastErrorSummary = today
}

// jobWeeklyBriefing writes the weekly overview. Guarded by an ISO week
// key so it runs at most once per week.
func (s *Scheduler) jobWeeklyBriefing(state *State, now time.Time) {
	year, week := now.ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)
	if state.LastWeeklyBriefing == weekKey {
		return
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "# Weekly Briefing — %s\n\n", weekKey)
	fmt.Fprintf(&sb, "## Vault Snapshot\n\n")
	fmt.Fprintf(&sb, "- Inbox: %d\n", s.vault.Count(vault.StageInbox))
	fmt.Fprintf(&sb, "- Needs Action: %d\n", s.vault.Count(vault.StageNeedsAction))
	fmt.Fprintf(&sb, "- Done: %d\n\n", s.vault.Count(vault.StageDone))
	qs := s.queue.Stats()
	recentErrors := 0
	cutoff := now.Add(-24 * time.Hour).Format(time.RFC3339)
	for _, rec := range s.log.RecentErrors(500) {
		if rec.TS >= cutoff {
			recentErrors++
		}
	}
	fmt.Fprintf(&sb, "## Reliability\n\n")
	fmt.Fprintf(&sb, "- Failed-task queue: pending=%d resolved=%d failed=%d\n", qs.Pending, qs.Resolved, qs.Failed)
	fmt.Fprintf(&sb, "- Errors in the last 24h: %d\n", recentErrors)

	path := filepath.Join(s.briefingsDir(), fmt.Sprintf("Weekly_Briefing_%s.md", weekKey))
	if err := s.writeBriefing(path, sb.String()); err != nil {
		s.log.LogError("briefing.weekly", err, map[string]any{"week": weekKey})
		return
	}

	state.LastWeeklyBriefing = weekKey
	s.eventBus.Emit(bus.TopicWeeklyBriefing, map[string]any{"week": weekKey})
	s.log.LogAudit("briefing.weekly", "success", map[string]any{"week": weekKey})
}

func (s *Scheduler) writeBriefing(path, content string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create briefings dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		return fmt.Errorf("write briefing: %w", err)
	}
	return nil
}
