// Package recovery replays failed tasks from the persistent queue.
//
// Handlers are registered by source name and are expected to be
// idempotent re-executions of the original job; the design assumes
// "re-run from scratch" is safe, not exactly-once delivery.
package recovery

import (
	"fmt"
	"sync"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
)

// KeepDays is how long resolved and failed entries stay in the queue
// before cleanup drops them.
const KeepDays = 7

// Handler re-attempts a failed operation from its queued context.
type Handler func(context map[string]any) error

// Stats summarizes one recovery pass.
type Stats struct {
	Attempted int `json:"attempted"`
	Recovered int `json:"recovered"`
	Failed    int `json:"failed"`
	Skipped   int `json:"skipped"`
}

// Manager drains the failed-task queue using registered handlers. Tasks
// whose source has no handler are skipped: unknown sources are
// un-recoverable by design, not an error.
type Manager struct {
	mu       sync.RWMutex
	handlers map[string]Handler

	queue    *retry.Queue
	log      *audit.Logger
	eventBus *bus.Bus
}

// NewManager creates a recovery manager over the given queue.
func NewManager(queue *retry.Queue, log *audit.Logger, eventBus *bus.Bus) *Manager {
	return &Manager{
		handlers: make(map[string]Handler),
		queue:    queue,
		log:      log,
		eventBus: eventBus,
	}
}

// Register installs a recovery handler for a source name. Registering the
// same source again replaces the handler.
func (m *Manager) Register(source string, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[source] = handler
}

// RunRecovery processes every pending task in the queue once and returns
// per-pass stats. An empty pending set returns zero stats and performs no
// writes beyond a no-op cleanup.
func (m *Manager) RunRecovery() Stats {
	var stats Stats

	pending := m.queue.Pending()
	if len(pending) == 0 {
		m.queue.Cleanup(KeepDays)
		return stats
	}

	for _, task := range pending {
		m.mu.RLock()
		handler, ok := m.handlers[task.Source]
		m.mu.RUnlock()
		if !ok {
			stats.Skipped++
			continue
		}

		stats.Attempted++

		err := m.invoke(handler, task.Context)
		if err == nil {
			m.queue.Resolve(task.ID)
			stats.Recovered++

			m.log.LogAudit("recovery.success", "recovered", map[string]any{
				"task_id":     task.ID,
				"source":      task.Source,
				"retry_count": task.RetryCount + 1,
			})
			m.eventBus.Emit(bus.TopicRecoveryRecovered, map[string]any{
				"task_id": task.ID,
				"source":  task.Source,
			})
			continue
		}

		updated, _ := m.queue.IncrementRetry(task.ID)
		if updated.Status == retry.StatusFailed {
			stats.Failed++
			m.log.LogErrorSeverity("recovery.exhausted", err, map[string]any{
				"task_id":     task.ID,
				"source":      task.Source,
				"retry_count": updated.RetryCount,
			}, audit.SeverityCritical)
			m.eventBus.Emit(bus.TopicRecoveryExhausted, map[string]any{
				"task_id": task.ID,
				"source":  task.Source,
				"error":   err.Error(),
			})
		} else {
			m.log.LogError("recovery.retry_failed", err, map[string]any{
				"task_id":     task.ID,
				"source":      task.Source,
				"retry_count": updated.RetryCount,
			})
		}
	}

	if removed, _ := m.queue.Cleanup(KeepDays); removed > 0 {
		m.log.LogAudit("recovery.cleanup", "success", map[string]any{"removed": removed})
	}
	if stats.Attempted > 0 {
		m.log.LogAudit("recovery.cycle", "complete", map[string]any{
			"attempted": stats.Attempted,
			"recovered": stats.Recovered,
			"failed":    stats.Failed,
			"skipped":   stats.Skipped,
		})
	}

	return stats
}

// invoke runs a handler, converting a panic into an error so one bad
// handler cannot abort the pass.
func (m *Manager) invoke(handler Handler, context map[string]any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return handler(context)
}
