// Package scheduler orchestrates every subsystem on a configurable
// cadence: connector pulls, vault scans, ralph passes, recovery,
// log rotation, and time-gated daily/weekly briefings.
package scheduler

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/config"
	"github.com/hibasheikh90/vaultpilot/internal/connectors"
	"github.com/hibasheikh90/vaultpilot/internal/ralph"
	"github.com/hibasheikh90/vaultpilot/internal/recovery"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
	"github.com/hibasheikh90/vaultpilot/internal/watcher"
)

// alertSendTimeout bounds one notifier call so a hung SMTP session
// cannot stall the event bus.
const alertSendTimeout = 30 * time.Second

// Connectors groups the external integrations a cycle drives. Any of
// them may be nil or unconfigured; the cycle skips what it cannot use.
type Connectors struct {
	Inbound    []connectors.Inbound
	Outbound   []connectors.Outbound
	Publishers []connectors.Publisher
	Notifier   connectors.Notifier
}

// Deps collects everything the scheduler coordinates.
type Deps struct {
	Config   *config.Config
	Vault    *vault.Vault
	Log      *audit.Logger
	Bus      *bus.Bus
	Queue    *retry.Queue
	Pipeline *watcher.Pipeline
	Ralph    *ralph.Processor
	Recovery *recovery.Manager
	Conns    Connectors
}

// ScanStats summarizes the vault-scan job of one cycle.
type ScanStats struct {
	Scanned int `json:"scanned"`
	Triaged int `json:"triaged"`
	Planned int `json:"planned"`
	Skipped int `json:"skipped"`
	Errors  int `json:"errors"`
}

// Scheduler runs the full pipeline cycle.
type Scheduler struct {
	cfg      *config.Config
	vault    *vault.Vault
	log      *audit.Logger
	eventBus *bus.Bus
	queue    *retry.Queue
	pipeline *watcher.Pipeline
	ralph    *ralph.Processor
	recovery *recovery.Manager
	conns    Connectors

	// policy retries each job in-line; only exhausted failures reach
	// the failed-task queue.
	policy retry.Policy

	stateFile string

	now func() time.Time
}

// New wires a scheduler and subscribes the notifier to error alerts.
func New(d Deps) *Scheduler {
	s := &Scheduler{
		cfg:       d.Config,
		vault:     d.Vault,
		log:       d.Log,
		eventBus:  d.Bus,
		queue:     d.Queue,
		pipeline:  d.Pipeline,
		ralph:     d.Ralph,
		recovery:  d.Recovery,
		conns:     d.Conns,
		policy: retry.Policy{
			MaxAttempts:       2,
			InitialDelay:      500 * time.Millisecond,
			BackoffMultiplier: 1.5,
		},
		stateFile: filepath.Join(d.Vault.Root, ".scheduler_state.json"),
		now:       time.Now,
	}

	if n := s.conns.Notifier; n != nil && n.Configured() {
		s.eventBus.Subscribe(bus.TopicErrorAlert, s.onErrorAlert)
	}
	return s
}

// LockPath is where the scheduler's PID lock lives for this vault.
func (s *Scheduler) LockPath() string {
	return filepath.Join(s.vault.Root, ".scheduler.lock")
}

// onErrorAlert escalates an error spike through the notifier.
func (s *Scheduler) onErrorAlert(payload map[string]any) {
	source, _ := payload["source"].(string)
	count, _ := payload["error_count"].(int)
	window, _ := payload["window_seconds"].(int)

	ctx, cancel := context.WithTimeout(context.Background(), alertSendTimeout)
	defer cancel()

	subject := fmt.Sprintf("Error spike: %s (%d errors in %dmin)", source, count, window/60)
	body := fmt.Sprintf(
		"The error logger detected %d errors from %q within the last %d minutes.\n\nPlease check Logs/error.log for details.",
		count, source, window/60)
	if err := s.conns.Notifier.SendAlert(ctx, subject, body); err != nil {
		// Never let alert delivery crash a cycle.
		log.Printf("scheduler: alert delivery failed: %v", err)
	}
}

// connectorPolicy returns the in-line retry policy with exhaustion
// wired to queue a recovery task for the named connector.
func (s *Scheduler) connectorPolicy(name string) retry.Policy {
	pol := s.policy
	pol.OnExhausted = func(source string, err error) {
		s.queue.Push(source, map[string]any{"connector": name}, err.Error(), 3)
	}
	return pol
}

// jobInbound pulls new items from every configured inbound connector.
func (s *Scheduler) jobInbound(ctx context.Context) {
	for _, c := range s.conns.Inbound {
		if !c.Configured() {
			continue
		}
		c := c
		source := c.Name() + ".watcher"
		var count int
		err := s.connectorPolicy(c.Name()).Do(ctx, source, func() error {
			var err error
			count, err = c.CheckNew(ctx)
			return err
		})
		if err != nil {
			s.log.LogError(source, err, map[string]any{"connector": c.Name()})
			continue
		}
		if count > 0 {
			log.Printf("scheduler: %s imported %d new item(s)", c.Name(), count)
		}
	}
}

// jobVaultScan triages and plans new Inbox files, skipping files whose
// mtime has not changed since the last cycle.
func (s *Scheduler) jobVaultScan(ctx context.Context, state *State) ScanStats {
	var stats ScanStats

	if err := s.vault.EnsureDirs(); err != nil {
		s.log.LogError("vault.scan", err, map[string]any{"vault": s.vault.Root})
		stats.Errors++
		return stats
	}

	paths, err := s.vault.List(vault.StageInbox)
	if err != nil {
		s.log.LogError("vault.scan", err, map[string]any{"vault": s.vault.Root})
		stats.Errors++
		return stats
	}
	stats.Scanned = len(paths)

	for _, path := range paths {
		name := filepath.Base(path)

		info, err := os.Stat(path)
		if err != nil {
			s.log.LogError("vault.scan", err, map[string]any{"file": name})
			stats.Errors++
			continue
		}
		mtime := info.ModTime().UnixNano()
		if prev, ok := state.Processed[name]; ok && prev.MTime == mtime {
			stats.Skipped++
			continue
		}

		pol := s.policy
		pol.OnExhausted = func(source string, err error) {
			s.queue.Push(source, map[string]any{"filepath": path}, err.Error(), 3)
		}

		var out string
		if err := pol.Do(ctx, "vault.triage", func() error {
			var err error
			out, err = s.pipeline.TriageFile(path)
			return err
		}); err != nil {
			s.log.LogError("vault.triage", err, map[string]any{"file": name})
			stats.Errors++
		} else if out != "" {
			stats.Triaged++
		}

		if err := pol.Do(ctx, "vault.plan", func() error {
			_, err := s.pipeline.CreatePlan(path)
			return err
		}); err != nil {
			s.log.LogError("vault.plan", err, map[string]any{"file": name})
			stats.Errors++
		} else {
			stats.Planned++
		}

		state.Processed[name] = ProcessedFile{
			MTime:       mtime,
			ProcessedAt: s.now().Format(time.RFC3339),
		}
		s.eventBus.Emit(bus.TopicTaskNew, map[string]any{"file": name})
		s.log.LogAudit("vault.scan", "processed", map[string]any{"file": name})
	}
	return stats
}

// jobPublishers drains each configured publisher's content queue.
func (s *Scheduler) jobPublishers(ctx context.Context) {
	for _, c := range s.conns.Publishers {
		if !c.Configured() {
			continue
		}
		c := c
		source := c.Name() + ".queue_check"
		var posted int
		err := s.connectorPolicy(c.Name()).Do(ctx, source, func() error {
			var err error
			posted, err = c.ProcessQueue(ctx)
			return err
		})
		if err != nil {
			s.log.LogError(source, err, map[string]any{"connector": c.Name()})
			continue
		}
		if posted > 0 {
			log.Printf("scheduler: %s published %d post(s)", c.Name(), posted)
		}
	}
}

// jobOutbound runs bidirectional sync for each configured outbound
// connector.
func (s *Scheduler) jobOutbound(ctx context.Context) {
	for _, c := range s.conns.Outbound {
		if !c.Configured() {
			continue
		}
		c := c
		source := c.Name() + ".sync"
		var st connectors.SyncStats
		err := s.connectorPolicy(c.Name()).Do(ctx, source, func() error {
			var err error
			st, err = c.Sync(ctx)
			return err
		})
		if err != nil {
			s.log.LogError(source, err, map[string]any{"connector": c.Name()})
			continue
		}
		if st.Pushed > 0 || st.Pulled > 0 {
			log.Printf("scheduler: %s sync pushed=%d pulled=%d", c.Name(), st.Pushed, st.Pulled)
		}
	}
}

// jobLogRotation rotates oversized logs and audits what moved.
func (s *Scheduler) jobLogRotation() {
	archived := s.log.RotateIfNeeded()
	if len(archived) > 0 {
		s.log.LogAudit("system.log_rotation", "success", map[string]any{"archived": archived})
	}
}

// isTimeFor reports whether target (a wall-clock time today) falls in
// the half-open window (lastCheck, now].
func isTimeFor(target config.Clock, lastCheck, now time.Time) bool {
	at := target.At(now)
	return lastCheck.Before(at) && !now.Before(at)
}

// isDayOfWeek reports whether now falls on the named weekday.
func isDayOfWeek(name string, now time.Time) bool {
	return strings.EqualFold(now.Weekday().String(), name)
}

// runTimeGatedJobs fires the daily report, error summary and weekly
// briefing when their scheduled time passed since the previous cycle.
func (s *Scheduler) runTimeGatedJobs(state *State, now time.Time) {
	// Local midnight, not Truncate: truncating works against UTC and
	// shifts the synthetic first-run window in non-UTC locales.
	lastCheck := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if state.LastRun != "" {
		if t, err := time.Parse(time.RFC3339, state.LastRun); err == nil {
			lastCheck = t
		}
	}

	dailyAt, _ := config.ParseClock(s.cfg.Scheduler.DailyReportTime)
	if isTimeFor(dailyAt, lastCheck, now) {
		s.jobDailyReport(state, now)
		s.jobErrorSummary(state, now)
	}

	weeklyAt, _ := config.ParseClock(s.cfg.Scheduler.WeeklyBriefingTime)
	if isDayOfWeek(s.cfg.Scheduler.WeeklyBriefingDay, now) && isTimeFor(weeklyAt, lastCheck, now) {
		s.jobWeeklyBriefing(state, now)
	}
}

// RunCycle executes one full pipeline cycle and persists state.
func (s *Scheduler) RunCycle(ctx context.Context) (ScanStats, error) {
	state := loadState(s.stateFile)
	state.CycleCount++

	s.jobInbound(ctx)

	stats := s.jobVaultScan(ctx, state)
	log.Printf("scheduler: vault scanned=%d triaged=%d planned=%d skipped=%d errors=%d",
		stats.Scanned, stats.Triaged, stats.Planned, stats.Skipped, stats.Errors)

	s.jobPublishers(ctx)
	s.jobOutbound(ctx)

	s.ralph.RunOnce()
	s.recovery.RunRecovery()
	s.jobLogRotation()

	now := s.now()
	s.runTimeGatedJobs(state, now)

	state.LastRun = now.Format(time.RFC3339)
	if err := saveState(s.stateFile, state); err != nil {
		return stats, err
	}
	return stats, nil
}

// RunDaemon runs cycles forever at the configured interval until the
// context is cancelled.
func (s *Scheduler) RunDaemon(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = s.cfg.Interval()
	}

	for {
		if _, err := s.RunCycle(ctx); err != nil {
			log.Printf("scheduler: cycle failed: %v", err)
		}

		select {
		case <-ctx.Done():
			s.log.LogAudit("scheduler.stopped", "shutdown", map[string]any{})
			return ctx.Err()
		case <-time.After(interval):
		}
	}
}
