package audit

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/bus"
)

func newTestLogger(t *testing.T) *Logger {
	t.Helper()
	l, err := New(Options{Dir: t.TempDir()})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	return l
}

func TestLogErrorRecord(t *testing.T) {
	l := newTestLogger(t)

	record := l.LogError("odoo.sync", errors.New("connection refused"), map[string]any{"host": "localhost"})

	if record.Severity != SeverityError {
		t.Errorf("expected severity ERROR, got %s", record.Severity)
	}
	if record.Source != "odoo.sync" {
		t.Errorf("expected source odoo.sync, got %s", record.Source)
	}
	if record.Error != "connection refused" {
		t.Errorf("unexpected error message %q", record.Error)
	}
	if record.Resolved {
		t.Error("new records must not be resolved")
	}

	recent := l.RecentErrors(10)
	if len(recent) != 1 {
		t.Fatalf("expected 1 record in error.log, got %d", len(recent))
	}
	if recent[0].Context["host"] != "localhost" {
		t.Errorf("context not round-tripped: %v", recent[0].Context)
	}
}

func TestLogAuditRecord(t *testing.T) {
	l := newTestLogger(t)

	l.LogAudit("social.post", "success", map[string]any{"platform": "linkedin"})
	l.LogAudit("social.post", "failure", nil)

	recent := l.RecentAudit(10)
	if len(recent) != 2 {
		t.Fatalf("expected 2 audit records, got %d", len(recent))
	}
	if recent[0].Action != "social.post" || recent[0].Status != "success" {
		t.Errorf("unexpected first record: %+v", recent[0])
	}
	if recent[1].Details == nil {
		t.Error("nil details should serialize as empty map")
	}
}

func TestAlertEscalation(t *testing.T) {
	l := newTestLogger(t)
	b := bus.New()
	l.SetEventBus(b)

	var alerts []map[string]any
	b.Subscribe(bus.TopicErrorAlert, func(p map[string]any) {
		alerts = append(alerts, p)
	})

	l.LogError("gmail.watcher", errors.New("timeout"), nil)
	l.LogError("gmail.watcher", errors.New("timeout"), nil)
	if len(alerts) != 0 {
		t.Fatalf("alert fired below threshold: %d", len(alerts))
	}

	l.LogError("gmail.watcher", errors.New("timeout"), nil)
	if len(alerts) != 1 {
		t.Fatalf("expected alert on third error, got %d alerts", len(alerts))
	}
	if alerts[0]["source"] != "gmail.watcher" {
		t.Errorf("unexpected alert source %v", alerts[0]["source"])
	}
	if alerts[0]["error_count"] != 3 {
		t.Errorf("expected error_count 3, got %v", alerts[0]["error_count"])
	}

	// A different source keeps its own window.
	l.LogError("odoo.sync", errors.New("timeout"), nil)
	if len(alerts) != 1 {
		t.Errorf("unrelated source triggered an alert")
	}
}

func TestErrorCountSince(t *testing.T) {
	l := newTestLogger(t)

	l.LogError("ralph.process", errors.New("x"), nil)
	l.LogError("ralph.process", errors.New("y"), nil)

	if got := l.ErrorCountSince("ralph.process", time.Hour); got != 2 {
		t.Errorf("expected 2 errors in window, got %d", got)
	}
	if got := l.ErrorCountSince("other", time.Hour); got != 0 {
		t.Errorf("expected 0 errors for unknown source, got %d", got)
	}
}

func TestRotation(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}
	l.maxFileBytes = 64 // test-lowered threshold

	if archived := l.RotateIfNeeded(); len(archived) != 0 {
		t.Fatalf("rotation of empty logs should be a no-op, archived %v", archived)
	}

	for i := 0; i < 10; i++ {
		l.LogError("vault.scan", errors.New("disk full while scanning inbox"), nil)
	}

	archived := l.RotateIfNeeded()
	if len(archived) == 0 {
		t.Fatal("expected rotation to archive the oversized error log")
	}

	if _, err := os.Stat(filepath.Join(dir, "error.log")); !os.IsNotExist(err) {
		t.Error("original error.log should be gone after rotation")
	}
	if _, err := os.Stat(filepath.Join(dir, "archive", archived[0])); err != nil {
		t.Errorf("archived file missing: %v", err)
	}

	// Next append recreates the file.
	l.LogError("vault.scan", errors.New("again"), nil)
	if len(l.RecentErrors(10)) != 1 {
		t.Error("expected fresh error.log with a single record after rotation")
	}
}

func TestRecentErrorsSkipsCorruptLines(t *testing.T) {
	dir := t.TempDir()
	l, err := New(Options{Dir: dir})
	if err != nil {
		t.Fatalf("Failed to create logger: %v", err)
	}

	l.LogError("a", errors.New("one"), nil)
	f, _ := os.OpenFile(filepath.Join(dir, "error.log"), os.O_APPEND|os.O_WRONLY, 0o644)
	f.WriteString("not json\n")
	f.Close()
	l.LogError("b", errors.New("two"), nil)

	recent := l.RecentErrors(10)
	if len(recent) != 2 {
		t.Errorf("expected corrupt line to be skipped, got %d records", len(recent))
	}
}
