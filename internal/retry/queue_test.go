package retry

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	q, err := NewQueue(filepath.Join(t.TempDir(), "failed_tasks.json"))
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}
	return q
}

func TestPushAndPending(t *testing.T) {
	q := newTestQueue(t)

	id, err := q.Push("odoo.sync", map[string]any{"host": "erp"}, "connection refused", 3)
	if err != nil {
		t.Fatalf("Push failed: %v", err)
	}
	if id == "" {
		t.Fatal("expected non-empty task ID")
	}

	pending := q.Pending()
	if len(pending) != 1 {
		t.Fatalf("expected 1 pending task, got %d", len(pending))
	}
	task := pending[0]
	if task.Source != "odoo.sync" || task.Error != "connection refused" {
		t.Errorf("unexpected task %+v", task)
	}
	if task.Status != StatusPending || task.RetryCount != 0 {
		t.Errorf("new task should be pending with zero retries: %+v", task)
	}

	got, ok := q.Get(id)
	if !ok || got.ID != id {
		t.Errorf("Get(%s) = %+v, %v", id, got, ok)
	}
}

func TestIncrementRetryMonotonic(t *testing.T) {
	q := newTestQueue(t)

	id, _ := q.Push("vault.triage", nil, "parse error", 2)

	task, err := q.IncrementRetry(id)
	if err != nil {
		t.Fatalf("IncrementRetry failed: %v", err)
	}
	if task.Status != StatusPending || task.RetryCount != 1 {
		t.Errorf("after first retry expected pending/1, got %s/%d", task.Status, task.RetryCount)
	}
	if task.LastAttempt == nil {
		t.Error("LastAttempt not stamped")
	}

	task, _ = q.IncrementRetry(id)
	if task.Status != StatusFailed || task.RetryCount != 2 {
		t.Errorf("after second retry expected failed/2, got %s/%d", task.Status, task.RetryCount)
	}

	// Status stays failed; count keeps increasing but never reverses.
	task, _ = q.IncrementRetry(id)
	if task.Status != StatusFailed {
		t.Errorf("failed status must be permanent, got %s", task.Status)
	}
	if task.RetryCount != 3 {
		t.Errorf("retry count must only increase, got %d", task.RetryCount)
	}
}

func TestResolve(t *testing.T) {
	q := newTestQueue(t)

	id, _ := q.Push("gmail.watcher", nil, "timeout", 3)
	if err := q.Resolve(id); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}

	task, _ := q.Get(id)
	if task.Status != StatusResolved {
		t.Errorf("expected resolved, got %s", task.Status)
	}
	if task.ResolvedAt == nil {
		t.Error("ResolvedAt not stamped")
	}
	if len(q.Pending()) != 0 {
		t.Error("resolved task still pending")
	}
}

func TestTerminalStatusNotReversed(t *testing.T) {
	q := newTestQueue(t)

	failed, _ := q.Push("gmail.watcher", nil, "timeout", 3)
	if err := q.FailPermanently(failed); err != nil {
		t.Fatalf("FailPermanently failed: %v", err)
	}
	if err := q.Resolve(failed); err == nil {
		t.Error("Resolve on a failed task must be rejected")
	}
	if task, _ := q.Get(failed); task.Status != StatusFailed {
		t.Errorf("failed status must stick, got %s", task.Status)
	}

	resolved, _ := q.Push("odoo.sync", nil, "timeout", 3)
	if err := q.Resolve(resolved); err != nil {
		t.Fatalf("Resolve failed: %v", err)
	}
	if err := q.FailPermanently(resolved); err == nil {
		t.Error("FailPermanently on a resolved task must be rejected")
	}
	if task, _ := q.Get(resolved); task.Status != StatusResolved {
		t.Errorf("resolved status must stick, got %s", task.Status)
	}
}

func TestStatsAndCleanup(t *testing.T) {
	q := newTestQueue(t)

	id1, _ := q.Push("a", nil, "x", 3)
	q.Push("b", nil, "y", 3)
	id3, _ := q.Push("c", nil, "z", 3)

	q.Resolve(id1)
	q.FailPermanently(id3)

	stats := q.Stats()
	if stats.Pending != 1 || stats.Resolved != 1 || stats.Failed != 1 || stats.Total != 3 {
		t.Errorf("unexpected stats %+v", stats)
	}

	// Nothing old enough yet.
	removed, err := q.Cleanup(7)
	if err != nil {
		t.Fatalf("Cleanup failed: %v", err)
	}
	if removed != 0 {
		t.Errorf("expected no removals, got %d", removed)
	}

	// Backdate the resolved entries and clean again.
	old := time.Now().AddDate(0, 0, -10)
	q.update(id1, func(task *Task) error { task.ResolvedAt = &old; return nil })
	q.update(id3, func(task *Task) error { task.ResolvedAt = &old; return nil })

	removed, _ = q.Cleanup(7)
	if removed != 2 {
		t.Errorf("expected 2 removals, got %d", removed)
	}
	if q.Stats().Total != 1 {
		t.Errorf("expected 1 task left, got %d", q.Stats().Total)
	}
}

func TestCorruptQueueFileTreatedAsEmpty(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "failed_tasks.json")
	if err := os.WriteFile(file, []byte("{{{not json"), 0o644); err != nil {
		t.Fatal(err)
	}

	q, err := NewQueue(file)
	if err != nil {
		t.Fatalf("Failed to create queue: %v", err)
	}

	if len(q.Pending()) != 0 {
		t.Error("corrupt file should read as empty queue")
	}
	if _, err := q.Push("a", nil, "x", 3); err != nil {
		t.Errorf("Push over corrupt file failed: %v", err)
	}
	if len(q.Pending()) != 1 {
		t.Error("queue should be usable after corrupt file reset")
	}
}
