// Package tui renders the live vault dashboard in the terminal.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

// refreshInterval is how often the dashboard re-reads the vault.
const refreshInterval = 2 * time.Second

type tickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Dashboard is the bubbletea model for the live status view.
type Dashboard struct {
	vault *vault.Vault
	queue *retry.Queue
	log   *audit.Logger

	spin        spinner.Model
	width       int
	lastRefresh time.Time

	inbox, needsAction, done int
	queueStats               retry.Counts
	recentAudit              []audit.AuditRecord
}

// NewDashboard creates the dashboard model over live components.
func NewDashboard(v *vault.Vault, queue *retry.Queue, log *audit.Logger) *Dashboard {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(primaryColor)
	d := &Dashboard{
		vault: v,
		queue: queue,
		log:   log,
		spin:  sp,
	}
	d.refresh()
	return d
}

// Run blocks until the user quits.
func (d *Dashboard) Run() error {
	_, err := tea.NewProgram(d, tea.WithAltScreen()).Run()
	return err
}

func (d *Dashboard) refresh() {
	d.inbox = d.vault.Count(vault.StageInbox)
	d.needsAction = d.vault.Count(vault.StageNeedsAction)
	d.done = d.vault.Count(vault.StageDone)
	d.queueStats = d.queue.Stats()
	d.recentAudit = d.log.RecentAudit(8)
	d.lastRefresh = time.Now()
}

func (d *Dashboard) Init() tea.Cmd {
	return tea.Batch(d.spin.Tick, tick())
}

func (d *Dashboard) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return d, tea.Quit
		case "r":
			d.refresh()
			return d, nil
		}
	case tea.WindowSizeMsg:
		d.width = msg.Width
		return d, nil
	case tickMsg:
		d.refresh()
		return d, tick()
	case spinner.TickMsg:
		var cmd tea.Cmd
		d.spin, cmd = d.spin.Update(msg)
		return d, cmd
	}
	return d, nil
}

func (d *Dashboard) View() string {
	var b strings.Builder

	b.WriteString(TitleStyle.Render("vaultpilot dashboard"))
	b.WriteString("  " + d.spin.View())
	b.WriteString(HelpStyle.Render(fmt.Sprintf("  refreshed %s", d.lastRefresh.Format("15:04:05"))))
	b.WriteString("\n\n")

	stages := fmt.Sprintf("%s %s   %s %s   %s %s",
		LabelStyle.Render("Inbox"), ValueStyle.Render(fmt.Sprintf("%d", d.inbox)),
		LabelStyle.Render("Needs Action"), ValueStyle.Render(fmt.Sprintf("%d", d.needsAction)),
		LabelStyle.Render("Done"), OKStyle.Render(fmt.Sprintf("%d", d.done)))
	b.WriteString(PanelStyle.Render(stages))
	b.WriteString("\n")

	failed := fmt.Sprintf("%d", d.queueStats.Failed)
	failedStyled := OKStyle.Render(failed)
	if d.queueStats.Failed > 0 {
		failedStyled = ErrStyle.Render(failed)
	}
	pending := fmt.Sprintf("%d", d.queueStats.Pending)
	pendingStyled := OKStyle.Render(pending)
	if d.queueStats.Pending > 0 {
		pendingStyled = WarnStyle.Render(pending)
	}
	queueLine := fmt.Sprintf("%s %s   %s %s   %s %s",
		LabelStyle.Render("Retry pending"), pendingStyled,
		LabelStyle.Render("Recovered"), ValueStyle.Render(fmt.Sprintf("%d", d.queueStats.Resolved)),
		LabelStyle.Render("Failed"), failedStyled)
	b.WriteString(PanelStyle.Render(queueLine))
	b.WriteString("\n\n")

	b.WriteString(LabelStyle.Render("Recent activity"))
	b.WriteString("\n")
	if len(d.recentAudit) == 0 {
		b.WriteString(HelpStyle.Render("  (no audit records yet)"))
		b.WriteString("\n")
	}
	for i := len(d.recentAudit) - 1; i >= 0; i-- {
		rec := d.recentAudit[i]
		b.WriteString(fmt.Sprintf("  %s %s %s\n",
			HelpStyle.Render(rec.TS),
			ValueStyle.Render(rec.Action),
			LabelStyle.Render(rec.Status)))
	}

	b.WriteString("\n")
	b.WriteString(HelpStyle.Render("q quit  r refresh"))
	return b.String()
}
