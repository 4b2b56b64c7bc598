// Package ralph is the autonomous loop that grinds through
// Needs_Action tasks until the queue is empty or nothing can move.
//
// Each cycle scans the stage, classifies every task, advances the
// safe parts of its checklist, moves finished work to Done with a
// completion record, and rewrites the dashboard. Stuck tasks are
// retried a bounded number of times, then parked as blocked.
package ralph

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

// DefaultMaxCycles bounds a single Run.
const DefaultMaxCycles = 10

// interCycleDelay keeps consecutive cycles from busy-looping.
const interCycleDelay = time.Second

// Stats summarizes one cycle.
type Stats struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Completed int `json:"completed"`
	Blocked   int `json:"blocked"`
	Retried   int `json:"retried"`
	Errors    int `json:"errors"`
	Remaining int `json:"remaining"`
}

// Summary covers a whole Run.
type Summary struct {
	Cycles         int    `json:"cycles"`
	TotalCompleted int    `json:"total_completed"`
	TotalProcessed int    `json:"total_processed"`
	TotalErrors    int    `json:"total_errors"`
	TotalBlocked   int    `json:"total_blocked"`
	StoppedReason  string `json:"stopped_reason"`
}

// Stop reasons reported in Summary.StoppedReason.
const (
	ReasonAllComplete = "all_tasks_complete"
	ReasonNoProgress  = "no_progress"
	ReasonMaxCycles   = "max_cycles_reached"
	ReasonCancelled   = "cancelled"
)

// Processor runs the loop over one vault.
type Processor struct {
	vault      *vault.Vault
	log        *audit.Logger
	eventBus   *bus.Bus
	queue      *retry.Queue
	stateFile  string
	maxRetries int

	now func() time.Time
}

// NewProcessor creates a ralph loop. maxRetries bounds how often a
// stuck task is re-attempted before being parked.
func NewProcessor(v *vault.Vault, log *audit.Logger, eventBus *bus.Bus, queue *retry.Queue, maxRetries int) *Processor {
	if maxRetries < 1 {
		maxRetries = 3
	}
	return &Processor{
		vault:      v,
		log:        log,
		eventBus:   eventBus,
		queue:      queue,
		stateFile:  filepath.Join(v.Root, ".ralph_state.json"),
		maxRetries: maxRetries,
		now:        time.Now,
	}
}

// RunOnce performs a single pass over Needs_Action and returns stats.
func (p *Processor) RunOnce() Stats {
	state := loadState(p.stateFile)
	var stats Stats

	taskFiles, err := p.vault.List(vault.StageNeedsAction)
	if err != nil {
		p.log.LogError("ralph.scan", err, map[string]any{"stage": string(vault.StageNeedsAction)})
		stats.Errors++
		return stats
	}
	stats.Scanned = len(taskFiles)
	if len(taskFiles) == 0 {
		return stats
	}

	var assessed []*vault.Task

	for _, path := range taskFiles {
		task, err := vault.LoadTask(path)
		if err != nil {
			p.log.LogError("ralph.assess", err, map[string]any{"file": filepath.Base(path)})
			stats.Errors++
			continue
		}
		assessed = append(assessed, task)

		// Finished before we touched it.
		if task.Status == vault.StatusComplete {
			if err := p.complete(task); err != nil {
				p.log.LogError("ralph.complete", err, map[string]any{"file": task.Name()})
				stats.Errors++
			} else {
				stats.Completed++
				state.TotalCompleted++
				delete(state.TaskRetries, task.Name())
			}
			continue
		}

		if task.Status == vault.StatusBlocked {
			stats.Blocked++
			continue
		}

		retries := state.TaskRetries[task.Name()]
		if retries >= p.maxRetries {
			stats.Blocked++
			continue
		}

		progress, err := p.advancerFor(task.Type)(task)
		if err != nil {
			p.log.LogError("ralph.process", err, map[string]any{
				"file": task.Name(),
				"type": string(task.Type),
			})
			state.TaskRetries[task.Name()] = retries + 1
			stats.Errors++
			stats.Retried++
			p.queue.Push(fmt.Sprintf("ralph.%s", task.Type), map[string]any{
				"filepath": task.Path,
				"filename": task.Name(),
			}, err.Error(), 3)
			continue
		}
		stats.Processed++

		if progress {
			delete(state.TaskRetries, task.Name())
		} else {
			state.TaskRetries[task.Name()] = retries + 1
			stats.Retried++
		}

		if task.Status == vault.StatusComplete {
			if err := p.complete(task); err != nil {
				p.log.LogError("ralph.complete", err, map[string]any{"file": task.Name()})
				stats.Errors++
			} else {
				stats.Completed++
				state.TotalCompleted++
				delete(state.TaskRetries, task.Name())
			}
		}
	}

	stats.Remaining = p.vault.Count(vault.StageNeedsAction)

	state.TotalCycles++
	p.updateDashboard(state.TotalCycles, assessed, stats)
	if err := saveState(p.stateFile, state); err != nil {
		p.log.LogError("ralph.state", err, map[string]any{"file": p.stateFile})
	}

	p.log.LogAudit("ralph.cycle", "complete", map[string]any{
		"scanned":   stats.Scanned,
		"processed": stats.Processed,
		"completed": stats.Completed,
		"blocked":   stats.Blocked,
		"retried":   stats.Retried,
		"errors":    stats.Errors,
		"remaining": stats.Remaining,
	})

	return stats
}

// Run loops RunOnce until the queue empties, nothing can make
// progress, the cycle budget runs out, or the context is cancelled.
func (p *Processor) Run(ctx context.Context, maxCycles int) Summary {
	if maxCycles < 1 {
		maxCycles = DefaultMaxCycles
	}
	var summary Summary

	p.log.LogAudit("ralph.started", "running", map[string]any{
		"max_cycles": maxCycles,
		"vault":      p.vault.Root,
	})
	p.eventBus.Emit(bus.TopicRalphStarted, map[string]any{"max_cycles": maxCycles})

	for cycle := 1; cycle <= maxCycles; cycle++ {
		stats := p.RunOnce()
		summary.Cycles = cycle
		summary.TotalCompleted += stats.Completed
		summary.TotalProcessed += stats.Processed
		summary.TotalErrors += stats.Errors
		summary.TotalBlocked += stats.Blocked

		if stats.Remaining == 0 {
			summary.StoppedReason = ReasonAllComplete
			break
		}
		if stats.Processed == 0 && stats.Completed == 0 {
			// Everything left is blocked or at its retry limit.
			summary.StoppedReason = ReasonNoProgress
			break
		}
		if cycle == maxCycles {
			summary.StoppedReason = ReasonMaxCycles
			break
		}

		select {
		case <-ctx.Done():
			summary.StoppedReason = ReasonCancelled
		case <-time.After(interCycleDelay):
			continue
		}
		break
	}

	p.log.LogAudit("ralph.finished", "complete", map[string]any{
		"cycles":          summary.Cycles,
		"total_completed": summary.TotalCompleted,
		"total_processed": summary.TotalProcessed,
		"total_errors":    summary.TotalErrors,
		"total_blocked":   summary.TotalBlocked,
		"stopped_reason":  summary.StoppedReason,
	})
	p.eventBus.Emit(bus.TopicRalphFinished, map[string]any{
		"cycles":          summary.Cycles,
		"total_completed": summary.TotalCompleted,
		"stopped_reason":  summary.StoppedReason,
	})

	return summary
}

// RunDaemon runs full Runs forever, sleeping interval between them,
// until the context is cancelled.
func (p *Processor) RunDaemon(ctx context.Context, interval time.Duration, maxCyclesPerRun int) error {
	runs := 0
	for {
		runs++
		p.Run(ctx, maxCyclesPerRun)

		select {
		case <-ctx.Done():
			p.log.LogAudit("ralph.daemon_stopped", "shutdown", map[string]any{"runs": runs})
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}

// complete stamps a completion record onto the task and archives it.
func (p *Processor) complete(task *vault.Task) error {
	task.Content += fmt.Sprintf(`
---

## Completion Record
- **Completed by:** Ralph Wiggum (AI Employee autonomous loop)
- **Completed at:** %s
- **Checklist:** %d/%d items
- **Task type:** %s
- **Priority:** %s
`, p.now().Format("2006-01-02 15:04:05"), task.Checked, task.Total, task.Type, task.Priority)

	if err := task.Save(); err != nil {
		return err
	}
	dest, err := p.vault.MoveToDone(task.Path)
	if err != nil {
		return err
	}

	p.eventBus.Emit(bus.TopicTaskCompleted, map[string]any{
		"file":        task.Name(),
		"title":       task.Title,
		"type":        string(task.Type),
		"destination": dest,
	})
	p.log.LogAudit("ralph.task_completed", "success", map[string]any{
		"file":    task.Name(),
		"title":   task.Title,
		"type":    string(task.Type),
		"checked": task.Checked,
		"total":   task.Total,
	})
	return nil
}
