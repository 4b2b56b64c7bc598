package watcher

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

func TestDeterminePriority(t *testing.T) {
	cases := []struct {
		content string
		want    vault.Priority
	}{
		{"URGENT: fix the deploy", vault.PriorityHigh},
		{"the deadline is tomorrow", vault.PriorityHigh},
		{"please update the docs", vault.PriorityMedium},
		{"what is the status?", vault.PriorityLow},
		{"some prose", vault.PriorityMedium},
	}
	for _, tc := range cases {
		if got, _ := determinePriority(tc.content); got != tc.want {
			t.Errorf("determinePriority(%q) = %s, want %s", tc.content, got, tc.want)
		}
	}
}

func TestNeedsApproval(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    string
	}{
		{"payment keyword", "Send the payment to the vendor\nbefore friday", "Yes"},
		{"empty", "  \n", "Yes"},
		{"one liner", "ping the team", "Yes"},
		{"clear multi-line task", "Summarize the meeting notes\nand file them under docs", "No"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got, _ := needsApproval(tc.content); got != tc.want {
				t.Errorf("needsApproval = %s, want %s", got, tc.want)
			}
		})
	}
}

func TestGenerateStepsFromChecklist(t *testing.T) {
	steps := generateSteps("- [ ] write draft\n- [x] outline\n", "T")
	want := []string{
		"write draft",
		"outline",
		"Verify all checklist items are completed",
		"Mark task as done and archive",
	}
	if len(steps) != len(want) {
		t.Fatalf("steps = %v", steps)
	}
	for i := range want {
		if steps[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i, steps[i], want[i])
		}
	}
}

func TestCreatePlanWritesStructuredPlan(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	path := dropInbox(t, v, "invoice_vendor.md", "# Pay vendor\n\nSend the invoice payment\nby end of week\n")

	planPath, err := p.CreatePlan(path)
	if err != nil {
		t.Fatalf("CreatePlan failed: %v", err)
	}
	if !strings.HasPrefix(filepath.Base(planPath), "Plan_") {
		t.Errorf("plan filename = %s", filepath.Base(planPath))
	}
	if filepath.Dir(planPath) != v.Dir(vault.StageNeedsAction) {
		t.Errorf("plan written to %s", planPath)
	}

	data, err := os.ReadFile(planPath)
	if err != nil {
		t.Fatal(err)
	}
	content := string(data)
	for _, want := range []string{
		"# Task Plan",
		"**Source:** Inbox/invoice_vendor.md",
		"## Objective",
		"## Step-by-Step Plan",
		"## Priority",
		"## Requires Human Approval?",
		"**Yes**",
		"requires human review",
		"## Suggested Output",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("plan missing %q", want)
		}
	}
}

func TestCreatePlanUniqueNames(t *testing.T) {
	p, v, _ := newTestPipeline(t)
	a := dropInbox(t, v, "a.md", "fix one thing\nand another\n")
	b := dropInbox(t, v, "b.md", "fix a third thing\nquickly\n")

	p1, err := p.CreatePlan(a)
	if err != nil {
		t.Fatal(err)
	}
	p2, err := p.CreatePlan(b)
	if err != nil {
		t.Fatal(err)
	}
	if p1 == p2 {
		t.Error("plans created in the same second must not collide")
	}
}
