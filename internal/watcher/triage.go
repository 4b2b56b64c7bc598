// Package watcher triages Inbox files and generates plans for them.
//
// Triage routes each file by a fixed rule table; planning produces a
// structured Plan_*.md in Needs_Action. Both stages log failures and
// queue them for the recovery manager.
package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

var (
	doneWordRe   = regexp.MustCompile(`(?i)\b(done|completed)\b`)
	actionVerbRe = regexp.MustCompile(`(?i)\b(fix|add|remove|update|create|delete|change|implement|deploy|review)\b`)
	uncheckedRe  = regexp.MustCompile(`- \[ \]`)
	checkedRe    = regexp.MustCompile(`(?i)- \[x\]`)

	headingPrefixRe = regexp.MustCompile(`^#+\s*`)
	boldRe          = regexp.MustCompile(`\*\*(.+?)\*\*`)
	italicRe        = regexp.MustCompile(`\*(.+?)\*`)
	imageRe         = regexp.MustCompile(`!\[.*?\]\(.*?\)`)
	linkRe          = regexp.MustCompile(`\[(.+?)\]\(.*?\)`)
)

// Pipeline turns raw Inbox drops into triaged, planned tasks.
type Pipeline struct {
	vault    *vault.Vault
	log      *audit.Logger
	queue    *retry.Queue
	eventBus *bus.Bus

	// policy retries each stage in-line before it lands on the
	// failed-task queue.
	policy retry.Policy

	now func() time.Time
}

// NewPipeline wires a triage/planning pipeline over the vault.
func NewPipeline(v *vault.Vault, log *audit.Logger, queue *retry.Queue, eventBus *bus.Bus) *Pipeline {
	return &Pipeline{
		vault:    v,
		log:      log,
		queue:    queue,
		eventBus: eventBus,
		policy: retry.Policy{
			MaxAttempts:       2,
			InitialDelay:      500 * time.Millisecond,
			BackoffMultiplier: 1.5,
		},
		now: time.Now,
	}
}

// decideDestination applies the triage rule table in order and returns
// the target stage, the rule number that fired, and a status label.
func decideDestination(content string) (vault.Stage, int, string) {
	// Rule 1: "done" or "completed" anywhere.
	if doneWordRe.MatchString(content) {
		return vault.StageDone, 1, "Done"
	}
	// Rule 2: contains a question mark.
	if strings.Contains(content, "?") {
		return vault.StageNeedsAction, 2, "Needs Action"
	}
	// Rule 3: contains an action verb.
	if actionVerbRe.MatchString(content) {
		return vault.StageNeedsAction, 3, "Needs Action"
	}
	// Rule 4: checklist with at least one open item.
	if uncheckedRe.MatchString(content) {
		return vault.StageNeedsAction, 4, "Needs Action"
	}
	// Rule 5: checklist fully checked.
	if checkedRe.MatchString(content) {
		return vault.StageDone, 5, "Done"
	}
	// Rule 6: default.
	return vault.StageNeedsAction, 6, "Needs Action"
}

// extractTitle pulls the first markdown heading, or falls back to the
// filename with separators turned into spaces.
func extractTitle(content, filename string) string {
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(stripped, "#") {
			return strings.TrimSpace(strings.TrimLeft(stripped, "#"))
		}
	}
	stem := strings.TrimSuffix(filename, filepath.Ext(filename))
	stem = strings.ReplaceAll(stem, "_", " ")
	return strings.ReplaceAll(stem, "-", " ")
}

// summarize builds a short plain-text summary of the task body. A
// TL;DR or Summary: line wins; otherwise the first few stripped body
// lines are used.
func summarize(content string) string {
	const maxLines, maxChars = 5, 300

	lines := strings.Split(content, "\n")
	for _, line := range lines {
		stripped := strings.TrimSpace(line)
		if strings.HasPrefix(strings.ToUpper(stripped), "TL;DR") || strings.HasPrefix(stripped, "Summary:") {
			return truncate(stripped, maxChars)
		}
	}

	var body []string
	for _, line := range lines {
		plain := strings.TrimSpace(line)
		if plain == "" {
			continue
		}
		plain = headingPrefixRe.ReplaceAllString(plain, "")
		plain = boldRe.ReplaceAllString(plain, "$1")
		plain = italicRe.ReplaceAllString(plain, "$1")
		plain = imageRe.ReplaceAllString(plain, "")
		plain = linkRe.ReplaceAllString(plain, "$1")
		plain = strings.TrimSpace(plain)
		if plain != "" {
			body = append(body, plain)
		}
	}
	if len(body) == 0 {
		return "(no body content)"
	}
	if len(body) > maxLines {
		body = body[:maxLines]
	}
	return truncate(strings.Join(body, "\n"), maxChars)
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}

// TriageFile routes one Inbox file and writes a structured output file
// in the destination stage. Returns the output path, or "" when the
// file was already processed.
func (p *Pipeline) TriageFile(path string) (string, error) {
	filename := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.LogError("watcher.process_file", err, map[string]any{
			"filepath": path,
			"phase":    "read",
		})
		return "", fmt.Errorf("read inbox file: %w", err)
	}
	content := string(data)

	var (
		stage   vault.Stage
		rule    int
		status  string
		title   string
		summary string
	)
	if strings.TrimSpace(content) == "" {
		stage = vault.StageNeedsAction
		rule = 0
		status = "Needs Action"
		title = extractTitle("", filename)
		summary = "(empty file, manual review required)"
	} else {
		title = extractTitle(content, filename)
		summary = summarize(content)
		stage, rule, status = decideDestination(content)
	}

	// Idempotency: a file with the same name already routed means this
	// one was processed before.
	outputPath := filepath.Join(p.vault.Dir(stage), filename)
	if _, err := os.Stat(outputPath); err == nil {
		return "", nil
	}

	ruleLabel := fmt.Sprintf("#%d", rule)
	if rule == 0 {
		ruleLabel = "#0 (empty file)"
	}

	output := fmt.Sprintf(`# %s

## Metadata
- **Source:** Inbox/%s
- **Received:** %s
- **Routed to:** %s/
- **Triage rule:** %s
- **Status:** %s

## Summary
%s

## Original Task
%s

## Agent Notes
- Triage complete. File routed by rule %s.
`, title, filename, p.now().Format("2006-01-02 15:04:05"), stage, ruleLabel, status, summary, content, ruleLabel)

	if err := os.WriteFile(outputPath, []byte(output), 0o644); err != nil {
		p.log.LogError("watcher.process_file", err, map[string]any{
			"filepath":    path,
			"output_path": outputPath,
			"phase":       "write",
		})
		return "", fmt.Errorf("write triaged file: %w", err)
	}

	p.log.LogAudit("watcher.triage", "success", map[string]any{
		"file":        filename,
		"destination": string(stage),
		"rule":        rule,
	})
	if p.eventBus != nil {
		p.eventBus.Emit(bus.TopicTaskTriaged, map[string]any{
			"file":        filename,
			"destination": string(stage),
			"rule":        rule,
		})
	}
	return outputPath, nil
}
