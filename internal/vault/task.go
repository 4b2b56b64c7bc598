package vault

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/extension"
	east "github.com/yuin/goldmark/extension/ast"
	"github.com/yuin/goldmark/text"
)

// Status is the derived lifecycle state of a task's checklist.
type Status string

const (
	StatusIncomplete  Status = "incomplete"
	StatusComplete    Status = "complete"
	StatusBlocked     Status = "blocked"
	StatusNoChecklist Status = "no_checklist"
)

// Type classifies a task by its filename prefix so the right advancer
// handles it.
type Type string

const (
	TypePlan       Type = "plan"
	TypeEmail      Type = "email"
	TypeSocial     Type = "social"
	TypeWhatsApp   Type = "whatsapp"
	TypeAccounting Type = "accounting"
	TypeGeneral    Type = "general"
)

// Priority of a task as declared in its markdown body.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
	PriorityLow    Priority = "Low"
)

// Task is one markdown file plus everything parsed out of it. Content
// is held in memory; Save writes it back after mutation.
type Task struct {
	Path     string
	Content  string
	Title    string
	Type     Type
	Priority Priority

	Checked          int
	Total            int
	RequiresApproval bool
	Status           Status
}

var (
	priorityRe = regexp.MustCompile(`\*\*(High|Medium|Low)\*\*`)
	approvalRe = regexp.MustCompile(`(?i)\*\*Yes\*\*.*requires human`)
)

var parser = goldmark.New(goldmark.WithExtensions(extension.TaskList))

// LoadTask reads and parses a task file.
func LoadTask(path string) (*Task, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read task: %w", err)
	}
	t := &Task{Path: path, Content: string(data)}
	t.parse()
	return t, nil
}

// Save writes the task content back to its file.
func (t *Task) Save() error {
	if err := os.WriteFile(t.Path, []byte(t.Content), 0o644); err != nil {
		return fmt.Errorf("write task: %w", err)
	}
	return nil
}

// Name returns the task's filename.
func (t *Task) Name() string {
	return filepath.Base(t.Path)
}

// Reassess re-derives title, counts and status after the content was
// mutated.
func (t *Task) Reassess() {
	t.parse()
}

func (t *Task) parse() {
	src := []byte(t.Content)

	t.Title = extractTitle(src)
	if t.Title == "" {
		t.Title = titleFromFilename(t.Name())
	}
	t.Type = Classify(t.Name())

	t.Checked, t.Total = parseChecklist(src)

	t.Priority = PriorityMedium
	if m := priorityRe.FindStringSubmatch(t.Content); m != nil {
		t.Priority = Priority(m[1])
	}
	t.RequiresApproval = approvalRe.MatchString(t.Content)

	switch {
	case t.Total == 0:
		t.Status = StatusNoChecklist
	case t.RequiresApproval && t.Checked < t.Total:
		t.Status = StatusBlocked
	case t.Checked >= t.Total:
		t.Status = StatusComplete
	default:
		t.Status = StatusIncomplete
	}
}

// Classify maps a filename to a task type. Prefixes win over substring
// matches; anything unrecognized is general.
func Classify(filename string) Type {
	name := strings.ToLower(filename)
	switch {
	case strings.HasPrefix(name, "plan_"):
		return TypePlan
	case strings.HasPrefix(name, "social_"):
		return TypeSocial
	case strings.HasPrefix(name, "gmail_"):
		return TypeEmail
	case strings.HasPrefix(name, "wa_"):
		return TypeWhatsApp
	case strings.Contains(name, "invoice") || strings.Contains(name, "accounting"):
		return TypeAccounting
	default:
		return TypeGeneral
	}
}

// extractTitle returns the text of the first level-1 heading, or "".
func extractTitle(src []byte) string {
	doc := parser.Parser().Parse(text.NewReader(src))
	title := ""
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if h, ok := n.(*ast.Heading); ok && h.Level == 1 {
			title = strings.TrimSpace(string(h.Text(src)))
			return ast.WalkStop, nil
		}
		return ast.WalkContinue, nil
	})
	return title
}

// titleFromFilename turns "plan_fix_login.md" into "plan fix login".
func titleFromFilename(filename string) string {
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")
	return strings.TrimSpace(stem)
}

// parseChecklist counts checked and total checkbox items in the
// document, including any inside nested lists.
func parseChecklist(src []byte) (checked, total int) {
	doc := parser.Parser().Parse(text.NewReader(src))
	ast.Walk(doc, func(n ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}
		if box, ok := n.(*east.TaskCheckBox); ok {
			total++
			if box.IsChecked {
				checked++
			}
		}
		return ast.WalkContinue, nil
	})
	return checked, total
}
