package watcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

func newTestPipeline(t *testing.T) (*Pipeline, *vault.Vault, *retry.Queue) {
	t.Helper()
	dir := t.TempDir()
	v := vault.New(filepath.Join(dir, "vault"))
	if err := v.EnsureDirs(); err != nil {
		t.Fatal(err)
	}
	logger, err := audit.New(audit.Options{Dir: filepath.Join(dir, "logs")})
	if err != nil {
		t.Fatal(err)
	}
	queue, err := retry.NewQueue(filepath.Join(dir, "failed_tasks.json"))
	if err != nil {
		t.Fatal(err)
	}
	p := NewPipeline(v, logger, queue, bus.New())
	// Keep in-line retry backoff out of the test runtime.
	p.policy.InitialDelay = time.Millisecond
	return p, v, queue
}

func dropInbox(t *testing.T, v *vault.Vault, name, content string) string {
	t.Helper()
	path := filepath.Join(v.Dir(vault.StageInbox), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDecideDestination(t *testing.T) {
	cases := []struct {
		name    string
		content string
		stage   vault.Stage
		rule    int
	}{
		{"done word routes to Done", "All work is DONE here.", vault.StageDone, 1},
		{"question routes to Needs_Action", "Should we ship this?", vault.StageNeedsAction, 2},
		{"action verb", "Please fix the login bug.", vault.StageNeedsAction, 3},
		{"open checklist", "- [ ] buy milk", vault.StageNeedsAction, 4},
		{"fully checked checklist", "- [x] buy milk\n- [X] drink it", vault.StageDone, 5},
		{"default", "just some prose without signals", vault.StageNeedsAction, 6},
		// "done" beats the open checklist because rules run in order.
		{"rule order", "done\n- [ ] leftover", vault.StageDone, 1},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			stage, rule, _ := decideDestination(tc.content)
			if stage != tc.stage || rule != tc.rule {
				t.Errorf("got %s rule %d, want %s rule %d", stage, rule, tc.stage, tc.rule)
			}
		})
	}
}

func TestTriageFileWritesStructuredOutput(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	path := dropInbox(t, v, "fix_bug.md", "# Login broken\n\nPlease fix the login page.\n")

	out, err := p.TriageFile(path)
	if err != nil {
		t.Fatalf("TriageFile failed: %v", err)
	}
	if filepath.Dir(out) != v.Dir(vault.StageNeedsAction) {
		t.Errorf("routed to %s, want Needs_Action", out)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"# Login broken",
		"**Source:** Inbox/fix_bug.md",
		"**Triage rule:** #3",
		"## Summary",
		"## Original Task",
		"Please fix the login page.",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestTriageFileEmptyFile(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	path := dropInbox(t, v, "mystery_task.md", "   \n\n")

	out, err := p.TriageFile(path)
	if err != nil {
		t.Fatalf("TriageFile failed: %v", err)
	}
	data, _ := os.ReadFile(out)
	if !strings.Contains(string(data), "#0 (empty file)") {
		t.Error("empty file should be routed by rule 0")
	}
	if !strings.Contains(string(data), "# mystery task") {
		t.Error("title should come from the filename")
	}
}

func TestTriageFileIdempotent(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	path := dropInbox(t, v, "fix_bug.md", "fix it\n")

	if _, err := p.TriageFile(path); err != nil {
		t.Fatal(err)
	}
	out, err := p.TriageFile(path)
	if err != nil {
		t.Fatalf("second triage failed: %v", err)
	}
	if out != "" {
		t.Errorf("already-processed file should be skipped, got %s", out)
	}

	files, _ := v.List(vault.StageNeedsAction)
	if len(files) != 1 {
		t.Errorf("expected exactly 1 routed file, got %d", len(files))
	}
}

func TestSummarizePrefersTLDR(t *testing.T) {
	got := summarize("# Heading\n\nlots of text\n\nTL;DR: just do the thing\n")
	if got != "TL;DR: just do the thing" {
		t.Errorf("summarize = %q", got)
	}
}

func TestSummarizeStripsMarkdown(t *testing.T) {
	got := summarize("# H\n\nThis is **bold** and [a link](http://x).\n")
	if got != "H\nThis is bold and a link." {
		t.Errorf("summarize = %q", got)
	}
}

func TestProcessQueuesFailures(t *testing.T) {
	p, v, queue := newTestPipeline(t)

	missing := filepath.Join(v.Dir(vault.StageInbox), "gone.md")
	if err := p.Process(context.Background(), missing); err == nil {
		t.Fatal("expected error for missing file")
	}

	// Each stage retries in-line first and queues exactly one recovery
	// task on exhaustion, not one per attempt.
	pending := queue.Pending()
	if len(pending) != 2 {
		t.Fatalf("expected 2 queued recovery tasks, got %d", len(pending))
	}
	sources := map[string]bool{}
	for _, task := range pending {
		sources[task.Source] = true
		if task.Context["filepath"] != missing {
			t.Errorf("queued context missing filepath: %v", task.Context)
		}
	}
	if !sources["watcher.process_file"] || !sources["planner.create_plan"] {
		t.Errorf("unexpected sources %v", sources)
	}
}

func TestProcessTransientFailureNotQueued(t *testing.T) {
	p, v, queue := newTestPipeline(t)

	// The file does not exist on the first attempt and appears before
	// the retry, simulating a transient read failure.
	missing := filepath.Join(v.Dir(vault.StageInbox), "late.md")
	p.policy.InitialDelay = 50 * time.Millisecond
	go func() {
		time.Sleep(10 * time.Millisecond)
		os.WriteFile(missing, []byte("fix the thing\n"), 0o644)
	}()

	if err := p.Process(context.Background(), missing); err != nil {
		t.Fatalf("retried process should succeed: %v", err)
	}
	if len(queue.Pending()) != 0 {
		t.Errorf("transient failure must not reach the queue, got %v", queue.Pending())
	}
}

func TestProcessExisting(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	dropInbox(t, v, "a.md", "fix the thing\n")
	dropInbox(t, v, "b.md", "done\n")

	n, err := p.ProcessExisting(context.Background())
	if err != nil {
		t.Fatalf("ProcessExisting failed: %v", err)
	}
	if n != 2 {
		t.Errorf("processed %d, want 2", n)
	}
	if v.Count(vault.StageDone) != 1 {
		t.Errorf("Done count = %d, want 1", v.Count(vault.StageDone))
	}
	// a.md triaged + its plan.
	if v.Count(vault.StageNeedsAction) != 3 {
		t.Errorf("Needs_Action count = %d, want 3 (two plans + one triaged)", v.Count(vault.StageNeedsAction))
	}
}
