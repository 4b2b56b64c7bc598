package ralph

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

// advanceFunc attempts to move a task forward and reports whether any
// progress was made.
type advanceFunc func(t *vault.Task) (bool, error)

// Steps ralph may check off on its own: verification, bookkeeping and
// read-only work. Anything else stays for a human.
var safeStepRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)^- \[ \]\s*(Verify|Mark task as done|Archive|Confirm)`),
	regexp.MustCompile(`(?i)^- \[ \]\s*(Notify|Send notification|Log|Report)`),
	regexp.MustCompile(`(?i)^- \[ \]\s*(Review|Read|Check|Inspect|Scan|Analyze)`),
}

func isSafeStep(line string) bool {
	for _, re := range safeStepRes {
		if re.MatchString(line) {
			return true
		}
	}
	return false
}

// advancePlan checks off the safe steps of a plan's checklist.
func (p *Processor) advancePlan(t *vault.Task) (bool, error) {
	lines := strings.Split(t.Content, "\n")
	modified := false
	for i, line := range lines {
		if isSafeStep(line) {
			lines[i] = strings.Replace(line, "- [ ]", "- [x]", 1)
			modified = true
		}
	}
	if !modified {
		return false, nil
	}

	t.Content = strings.Join(lines, "\n")
	if err := t.Save(); err != nil {
		return false, err
	}
	t.Reassess()
	return true, nil
}

// advanceEmail marks checklist-less messages as reviewed; otherwise it
// falls back to checklist advancement.
func (p *Processor) advanceEmail(t *vault.Task) (bool, error) {
	if t.Total == 0 {
		t.Content += fmt.Sprintf("\n\n## Ralph Processing\n- [x] Reviewed by AI Employee (%s)\n",
			p.now().Format("2006-01-02 15:04:05"))
		if err := t.Save(); err != nil {
			return false, err
		}
		t.Reassess()
		return true, nil
	}
	return p.advancePlan(t)
}

// advanceSocial completes posts the content queue already published.
func (p *Processor) advanceSocial(t *vault.Task) (bool, error) {
	if strings.Contains(strings.ToLower(t.Content), "status: posted") {
		t.Status = vault.StatusComplete
		return true, nil
	}
	return p.advancePlan(t)
}

// advanceGeneral reviews checklist-less tasks and completes them.
func (p *Processor) advanceGeneral(t *vault.Task) (bool, error) {
	if t.Total == 0 {
		t.Content += fmt.Sprintf("\n\n## Ralph Processing\n- [x] Reviewed by AI Employee (%s)\n- [x] No actionable checklist items found, marked complete\n",
			p.now().Format("2006-01-02 15:04:05"))
		if err := t.Save(); err != nil {
			return false, err
		}
		t.Reassess()
		return true, nil
	}
	return p.advancePlan(t)
}

func (p *Processor) advancerFor(taskType vault.Type) advanceFunc {
	switch taskType {
	case vault.TypePlan:
		return p.advancePlan
	case vault.TypeEmail, vault.TypeWhatsApp:
		return p.advanceEmail
	case vault.TypeSocial:
		return p.advanceSocial
	default:
		return p.advanceGeneral
	}
}
