package watcher

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

var (
	urgencyRe = regexp.MustCompile(`(?i)\b(urgent|asap|critical|overdue|immediately|deadline|emergency|blocker|breaking|p0|p1)\b`)

	// Keywords that force a human approval gate on the generated plan.
	approvalRe = regexp.MustCompile(`(?i)\b(payment|invoice|money|cost|budget|spend|homepage|website|banner|public|client|customer|delete|remove|drop|permission|access|security|password|credential)\b`)

	checklistItemRe = regexp.MustCompile(`(?i)- \[[ x]\]\s*(.+)`)
	numberedRe      = regexp.MustCompile(`^\d+\.\s*`)
	bulletRe        = regexp.MustCompile(`^[-*]\s*`)
)

// determinePriority derives the plan priority with a reason string.
func determinePriority(content string) (vault.Priority, string) {
	if m := urgencyRe.FindStringSubmatch(content); m != nil {
		return vault.PriorityHigh, fmt.Sprintf("Contains urgency indicator: %q", strings.ToLower(m[1]))
	}
	if actionVerbRe.MatchString(content) {
		return vault.PriorityMedium, "Contains action verbs with no urgency signals"
	}
	if strings.Contains(content, "?") {
		return vault.PriorityLow, "Informational or exploratory, contains questions only"
	}
	return vault.PriorityMedium, "Default priority for actionable content"
}

// needsApproval decides whether a human must sign off before the plan
// can complete. Sensitive keywords, empty tasks and one-liners all
// gate on a human.
func needsApproval(content string) (string, string) {
	if m := approvalRe.FindStringSubmatch(content); m != nil {
		return "Yes", fmt.Sprintf("Task involves %q, requires human review", strings.ToLower(m[1]))
	}
	if strings.TrimSpace(content) == "" {
		return "Yes", "Task is empty or unclear, needs human clarification"
	}
	nonEmpty := 0
	for _, line := range strings.Split(content, "\n") {
		if strings.TrimSpace(line) != "" {
			nonEmpty++
		}
	}
	if nonEmpty < 2 {
		return "Yes", "Task is too brief, may need clarification"
	}
	return "No", "Task is clear and does not involve sensitive operations"
}

// generateSteps turns the task body into a numbered plan. Checklist
// items become steps verbatim; otherwise body lines are used.
func generateSteps(content, title string) []string {
	if strings.TrimSpace(content) == "" {
		return []string{"Request task details from the sender"}
	}

	if items := checklistItemRe.FindAllStringSubmatch(content, -1); len(items) > 0 {
		var steps []string
		for _, m := range items {
			steps = append(steps, strings.TrimSpace(m[1]))
		}
		steps = append(steps, "Verify all checklist items are completed")
		steps = append(steps, "Mark task as done and archive")
		return steps
	}

	var body []string
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		body = append(body, stripped)
	}

	var steps []string
	if len(body) > 0 {
		steps = append(steps, fmt.Sprintf("Review the full task: %q", title))
		for _, line := range body {
			clean := numberedRe.ReplaceAllString(line, "")
			clean = bulletRe.ReplaceAllString(clean, "")
			if clean != "" {
				steps = append(steps, clean)
			}
		}
		steps = append(steps, "Verify the result meets the task requirements")
		steps = append(steps, "Mark task as done and archive")
	} else {
		steps = append(steps,
			fmt.Sprintf("Interpret the task: %q", title),
			"Gather any missing information",
			"Execute the task",
			"Verify the result",
		)
	}
	return steps
}

// generateObjective picks the first substantial body line as the plan
// objective.
func generateObjective(content, title string) string {
	if strings.TrimSpace(content) == "" {
		return "Clarify task requirements: the original task is empty or unclear."
	}
	for _, line := range strings.Split(content, "\n") {
		stripped := strings.TrimSpace(line)
		if stripped == "" || strings.HasPrefix(stripped, "#") {
			continue
		}
		clean := boldRe.ReplaceAllString(stripped, "$1")
		clean = italicRe.ReplaceAllString(clean, "$1")
		clean = linkRe.ReplaceAllString(clean, "$1")
		clean = strings.TrimSpace(clean)
		if len(clean) > 10 {
			return clean
		}
	}
	return fmt.Sprintf("Complete the task: %s", title)
}

// generateSuggestedOutput describes what a finished task looks like.
func generateSuggestedOutput(content, title string) string {
	if strings.TrimSpace(content) == "" {
		return "A clarified task description with actionable details."
	}
	if items := uncheckedItemRe.FindAllStringSubmatch(content, -1); len(items) > 0 {
		var names []string
		for i, m := range items {
			if i == 3 {
				break
			}
			names = append(names, strings.TrimSpace(m[1]))
		}
		return fmt.Sprintf("Completed deliverables: %s.", strings.Join(names, ", "))
	}
	return fmt.Sprintf("Completed task: %q with all requirements fulfilled.", title)
}

var uncheckedItemRe = regexp.MustCompile(`- \[ \]\s*(.+)`)

// CreatePlan reads an Inbox file and writes a Plan_*.md into
// Needs_Action. Returns the plan path.
func (p *Pipeline) CreatePlan(path string) (string, error) {
	filename := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		p.log.LogError("planner.create_plan", err, map[string]any{
			"filepath": path,
			"phase":    "read",
		})
		return "", fmt.Errorf("read inbox file: %w", err)
	}
	content := string(data)

	now := p.now()
	title := extractTitle(content, filename)
	objective := generateObjective(content, title)
	steps := generateSteps(content, title)
	priority, priorityReason := determinePriority(content)
	approval, approvalReason := needsApproval(content)
	suggested := generateSuggestedOutput(content, title)

	var stepsText strings.Builder
	for i, step := range steps {
		fmt.Fprintf(&stepsText, "%d. %s\n", i+1, step)
	}

	plan := fmt.Sprintf(`# Task Plan

## Original Task
**Source:** Inbox/%s
**Received:** %s

%s

## Objective
%s

## Step-by-Step Plan
%s
## Priority
**%s** — %s

## Requires Human Approval?
**%s** — %s

## Suggested Output
%s
`, filename, now.Format("2006-01-02 15:04:05"), strings.TrimSpace(content),
		objective, stepsText.String(), priority, priorityReason,
		approval, approvalReason, suggested)

	planPath := vault.UniquePath(p.vault.Dir(vault.StageNeedsAction),
		fmt.Sprintf("Plan_%s.md", now.Format("20060102_150405")))
	if err := os.WriteFile(planPath, []byte(plan), 0o644); err != nil {
		p.log.LogError("planner.create_plan", err, map[string]any{
			"filepath": path,
			"phase":    "write",
		})
		return "", fmt.Errorf("write plan: %w", err)
	}

	p.log.LogAudit("planner.plan_created", "success", map[string]any{
		"source_file":    filename,
		"plan_file":      filepath.Base(planPath),
		"priority":       string(priority),
		"needs_approval": approval,
	})
	return planPath, nil
}
