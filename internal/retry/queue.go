package retry

import (
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle state of a queued failed task. Transitions are
// monotonic: pending -> resolved or pending -> failed, never reversed.
type Status string

const (
	StatusPending  Status = "pending"
	StatusResolved Status = "resolved"
	StatusFailed   Status = "failed"
)

// Task is one durable record of an operation that exhausted its in-line
// retries and awaits recovery.
type Task struct {
	ID          string         `json:"id"`
	Source      string         `json:"source"`
	Context     map[string]any `json:"context"`
	Error       string         `json:"error"`
	Status      Status         `json:"status"`
	RetryCount  int            `json:"retry_count"`
	MaxRetries  int            `json:"max_retries"`
	CreatedAt   time.Time      `json:"created_at"`
	LastAttempt *time.Time     `json:"last_attempt"`
	ResolvedAt  *time.Time     `json:"resolved_at"`
}

// Counts summarizes the queue by status.
type Counts struct {
	Pending  int `json:"pending"`
	Resolved int `json:"resolved"`
	Failed   int `json:"failed"`
	Total    int `json:"total"`
}

// Queue is a persistent queue of failed tasks backed by a single JSON
// array file. Every operation reads, modifies and rewrites the whole file
// under a mutex; fine at the expected scale of tens of entries.
type Queue struct {
	mu   sync.Mutex
	file string
}

// NewQueue creates a queue persisted at file, creating the parent
// directory as needed.
func NewQueue(file string) (*Queue, error) {
	if err := os.MkdirAll(filepath.Dir(file), 0o755); err != nil {
		return nil, fmt.Errorf("create queue directory: %w", err)
	}
	return &Queue{file: file}, nil
}

// Push appends a failed task and returns its ID.
func (q *Queue) Push(source string, context map[string]any, errMsg string, maxRetries int) (string, error) {
	if context == nil {
		context = map[string]any{}
	}
	if maxRetries <= 0 {
		maxRetries = 3
	}
	now := time.Now()
	task := Task{
		ID:         now.Format("20060102_150405_") + uuid.NewString()[:6],
		Source:     source,
		Context:    context,
		Error:      errMsg,
		Status:     StatusPending,
		MaxRetries: maxRetries,
		CreatedAt:  now,
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.load()
	tasks = append(tasks, task)
	if err := q.save(tasks); err != nil {
		return "", err
	}
	return task.ID, nil
}

// Pending returns all tasks still awaiting recovery.
func (q *Queue) Pending() []Task {
	q.mu.Lock()
	defer q.mu.Unlock()
	var pending []Task
	for _, t := range q.load() {
		if t.Status == StatusPending {
			pending = append(pending, t)
		}
	}
	return pending
}

// Get returns the task with the given ID.
func (q *Queue) Get(id string) (Task, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for _, t := range q.load() {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// Resolve marks a pending task recovered. Resolved and failed are
// terminal states and cannot be overwritten.
func (q *Queue) Resolve(id string) error {
	return q.update(id, func(t *Task) error {
		if t.Status != StatusPending {
			return fmt.Errorf("failed task %q is already %s", id, t.Status)
		}
		t.Status = StatusResolved
		now := time.Now()
		t.ResolvedAt = &now
		return nil
	})
}

// FailPermanently marks a pending task failed regardless of its retry
// count. Terminal states cannot be overwritten.
func (q *Queue) FailPermanently(id string) error {
	return q.update(id, func(t *Task) error {
		if t.Status != StatusPending {
			return fmt.Errorf("failed task %q is already %s", id, t.Status)
		}
		t.Status = StatusFailed
		now := time.Now()
		t.ResolvedAt = &now
		return nil
	})
}

// IncrementRetry bumps the retry count and stamps the attempt. Once the
// count reaches MaxRetries the task flips to failed permanently. Returns
// the updated task.
func (q *Queue) IncrementRetry(id string) (Task, error) {
	var updated Task
	err := q.update(id, func(t *Task) error {
		t.RetryCount++
		now := time.Now()
		t.LastAttempt = &now
		if t.Status == StatusPending && t.RetryCount >= t.MaxRetries {
			t.Status = StatusFailed
		}
		updated = *t
		return nil
	})
	return updated, err
}

// Stats returns task counts by status.
func (q *Queue) Stats() Counts {
	q.mu.Lock()
	defer q.mu.Unlock()
	var c Counts
	for _, t := range q.load() {
		switch t.Status {
		case StatusPending:
			c.Pending++
		case StatusResolved:
			c.Resolved++
		case StatusFailed:
			c.Failed++
		}
		c.Total++
	}
	return c
}

// Cleanup removes resolved and failed tasks older than keepDays and
// returns how many were dropped.
func (q *Queue) Cleanup(keepDays int) (int, error) {
	cutoff := time.Now().AddDate(0, 0, -keepDays)

	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.load()
	kept := tasks[:0]
	removed := 0
	for _, t := range tasks {
		done := t.Status == StatusResolved || t.Status == StatusFailed
		if done && t.ResolvedAt != nil && t.ResolvedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, t)
	}
	if removed == 0 {
		return 0, nil
	}
	if err := q.save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

func (q *Queue) update(id string, mutate func(*Task) error) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	tasks := q.load()
	for i := range tasks {
		if tasks[i].ID == id {
			if err := mutate(&tasks[i]); err != nil {
				return err
			}
			return q.save(tasks)
		}
	}
	return fmt.Errorf("failed task %q not found", id)
}

// load reads the queue file. A missing or corrupt file is treated as an
// empty queue, never as a fatal error.
func (q *Queue) load() []Task {
	data, err := os.ReadFile(q.file)
	if err != nil {
		return nil
	}
	var tasks []Task
	if err := json.Unmarshal(data, &tasks); err != nil {
		log.Printf("Warning: corrupt failed-task queue %s, starting fresh: %v", q.file, err)
		return nil
	}
	return tasks
}

func (q *Queue) save(tasks []Task) error {
	if tasks == nil {
		tasks = []Task{}
	}
	data, err := json.MarshalIndent(tasks, "", "  ")
	if err != nil {
		return fmt.Errorf("encode queue: %w", err)
	}
	if err := os.WriteFile(q.file, data, 0o644); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}
