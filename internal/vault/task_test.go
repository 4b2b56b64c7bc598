package vault

import (
	"os"
	"path/filepath"
	"testing"
)

func writeTask(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadTaskChecklistAndStatus(t *testing.T) {
	path := writeTask(t, "plan_fix_login.md", `# Fix the login page

## Steps
- [x] Review the bug report
- [ ] Update the handler
- [ ] Verify the fix
`)

	task, err := LoadTask(path)
	if err != nil {
		t.Fatalf("LoadTask failed: %v", err)
	}
	if task.Title != "Fix the login page" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Type != TypePlan {
		t.Errorf("Type = %s, want plan", task.Type)
	}
	if task.Checked != 1 || task.Total != 3 {
		t.Errorf("checklist = %d/%d, want 1/3", task.Checked, task.Total)
	}
	if task.Status != StatusIncomplete {
		t.Errorf("Status = %s, want incomplete", task.Status)
	}
	if task.Priority != PriorityMedium {
		t.Errorf("default Priority = %s, want Medium", task.Priority)
	}
}

func TestTaskStatusDerivation(t *testing.T) {
	cases := []struct {
		name    string
		content string
		want    Status
	}{
		{
			name:    "no checklist",
			content: "# Note\n\nJust some prose.\n",
			want:    StatusNoChecklist,
		},
		{
			name:    "all checked",
			content: "# Done\n\n- [x] one\n- [X] two\n",
			want:    StatusComplete,
		},
		{
			name:    "approval gate blocks",
			content: "# Pay invoice\n\n## Requires Human Approval?\n**Yes** — involves \"payment\", requires human review\n\n- [ ] Send payment\n",
			want:    StatusBlocked,
		},
		{
			name:    "approved and finished is complete",
			content: "# Pay invoice\n\n**Yes** — requires human approval\n\n- [x] Send payment\n",
			want:    StatusComplete,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			task, err := LoadTask(writeTask(t, "task.md", tc.content))
			if err != nil {
				t.Fatalf("LoadTask failed: %v", err)
			}
			if task.Status != tc.want {
				t.Errorf("Status = %s, want %s", task.Status, tc.want)
			}
		})
	}
}

func TestTaskPriorityParsing(t *testing.T) {
	task, err := LoadTask(writeTask(t, "task.md", "# T\n\n## Priority\n**High** — deadline today\n\n- [ ] go\n"))
	if err != nil {
		t.Fatal(err)
	}
	if task.Priority != PriorityHigh {
		t.Errorf("Priority = %s, want High", task.Priority)
	}
}

func TestTitleFallsBackToFilename(t *testing.T) {
	task, err := LoadTask(writeTask(t, "gmail_reply-to_client.md", "no heading here\n"))
	if err != nil {
		t.Fatal(err)
	}
	if task.Title != "gmail reply to client" {
		t.Errorf("Title = %q", task.Title)
	}
	if task.Type != TypeEmail {
		t.Errorf("Type = %s, want email", task.Type)
	}
}

func TestClassify(t *testing.T) {
	cases := map[string]Type{
		"plan_release.md":      TypePlan,
		"social_post.md":       TypeSocial,
		"gmail_inbox.md":       TypeEmail,
		"wa_reminder.md":       TypeWhatsApp,
		"client_invoice_42.md": TypeAccounting,
		"Accounting_close.md":  TypeAccounting,
		"random_note.md":       TypeGeneral,
	}
	for name, want := range cases {
		if got := Classify(name); got != want {
			t.Errorf("Classify(%s) = %s, want %s", name, got, want)
		}
	}
}

func TestReassessAfterMutation(t *testing.T) {
	task, err := LoadTask(writeTask(t, "task.md", "# T\n\n- [ ] one\n- [ ] two\n"))
	if err != nil {
		t.Fatal(err)
	}
	if task.Status != StatusIncomplete {
		t.Fatalf("Status = %s", task.Status)
	}

	task.Content = "# T\n\n- [x] one\n- [x] two\n"
	task.Reassess()

	if task.Checked != 2 || task.Status != StatusComplete {
		t.Errorf("after reassess: %d/%d %s", task.Checked, task.Total, task.Status)
	}
}
