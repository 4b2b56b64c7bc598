package ralph

import (
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

var statusLabels = map[vault.Status]string{
	vault.StatusComplete:    "Done",
	vault.StatusIncomplete:  "In Progress",
	vault.StatusBlocked:     "Blocked (needs approval)",
	vault.StatusNoChecklist: "Reviewed",
}

// updateDashboard rewrites Dashboard.md with the current cycle's view.
func (p *Processor) updateDashboard(cycle int, tasks []*vault.Task, stats Stats) {
	var rows []string
	for _, t := range tasks {
		progress := "-"
		if t.Total > 0 {
			progress = fmt.Sprintf("%d/%d", t.Checked, t.Total)
		}
		label, ok := statusLabels[t.Status]
		if !ok {
			label = string(t.Status)
		}
		title := t.Title
		// Truncate on runes so a multi-byte title cannot leave invalid
		// UTF-8 in the dashboard.
		if r := []rune(title); len(r) > 40 {
			title = string(r[:40])
		}
		rows = append(rows, fmt.Sprintf("| %s | %s | %s | %s | %s |",
			title, t.Type, t.Priority, label, progress))
	}
	table := "| (no tasks) | | | | |"
	if len(rows) > 0 {
		table = strings.Join(rows, "\n")
	}

	timestamp := p.now().Format("2006-01-02 15:04:05")
	dashboard := fmt.Sprintf(`# Agent Dashboard

## Ralph Wiggum Status

- **State:** Running (cycle #%d)
- **Last update:** %s
- **Tasks completed this session:** %d
- **Tasks retried:** %d
- **Tasks blocked:** %d

## Queue Counts

| Stage | Count |
|---|---|
| Inbox | %d |
| Needs Action | %d |
| Done | %d |

## Current Tasks

| Task | Type | Priority | Status | Progress |
|---|---|---|---|---|
%s

## Workflow

`+"```"+`
Inbox/ --> Needs_Action/ --> Done/
(new)      (Ralph loop)     (archived)
`+"```"+`

1. New tasks arrive in `+"`Inbox/`"+`
2. Watcher triages to `+"`Needs_Action/`"+`
3. **Ralph Wiggum** processes tasks autonomously
4. Completed work is moved to `+"`Done/`"+` with completion metadata
5. Stuck tasks are retried; blocked tasks await human approval

## Session Log

- [%s] Ralph cycle #%d: processed=%d completed=%d retried=%d blocked=%d
`,
		cycle, timestamp, stats.Completed, stats.Retried, stats.Blocked,
		p.vault.Count(vault.StageInbox), p.vault.Count(vault.StageNeedsAction), p.vault.Count(vault.StageDone),
		table,
		timestamp, cycle, stats.Processed, stats.Completed, stats.Retried, stats.Blocked)

	if err := os.WriteFile(p.vault.DashboardPath(), []byte(dashboard), 0o644); err != nil {
		log.Printf("ralph: dashboard update failed: %v", err)
	}
}
