package watcher

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/hibasheikh90/vaultpilot/internal/vault"
)

// settleDelay gives the OS time to finish writing a freshly created
// file before we read it.
const settleDelay = 500 * time.Millisecond

// Process runs triage and planning over one Inbox file. Each stage is
// retried in-line first; only an exhausted stage lands on the
// failed-task queue, and each stage fails independently so a triage
// failure does not lose the plan and vice versa.
func (p *Pipeline) Process(ctx context.Context, path string) error {
	pol := p.policy
	pol.OnExhausted = func(source string, err error) {
		p.queue.Push(source, map[string]any{"filepath": path}, err.Error(), 3)
	}

	var firstErr error
	if err := pol.Do(ctx, "watcher.process_file", func() error {
		_, err := p.TriageFile(path)
		return err
	}); err != nil {
		firstErr = err
	}
	if err := pol.Do(ctx, "planner.create_plan", func() error {
		_, err := p.CreatePlan(path)
		return err
	}); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// ProcessExisting sweeps files already sitting in the Inbox and returns
// how many were processed.
func (p *Pipeline) ProcessExisting(ctx context.Context) (int, error) {
	paths, err := p.vault.List(vault.StageInbox)
	if err != nil {
		return 0, err
	}
	processed := 0
	for _, path := range paths {
		if err := p.Process(ctx, path); err != nil {
			log.Printf("watcher: %s: %v (queued for retry)", filepath.Base(path), err)
			continue
		}
		processed++
	}
	return processed, nil
}

// Watch sweeps the Inbox once, then blocks watching for new .md files
// until the context is cancelled.
func (p *Pipeline) Watch(ctx context.Context) error {
	if err := p.vault.EnsureDirs(); err != nil {
		return err
	}
	if _, err := p.ProcessExisting(ctx); err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer fw.Close()

	inbox := p.vault.Dir(vault.StageInbox)
	if err := fw.Add(inbox); err != nil {
		return fmt.Errorf("watch %s: %w", inbox, err)
	}

	p.log.LogAudit("watcher.started", "running", map[string]any{"watching": inbox})
	defer p.log.LogAudit("watcher.stopped", "shutdown", map[string]any{})

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) || !strings.HasSuffix(event.Name, ".md") {
				continue
			}
			time.Sleep(settleDelay)
			if err := p.Process(ctx, event.Name); err != nil {
				log.Printf("watcher: %s: %v (queued for retry)", filepath.Base(event.Name), err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			p.log.LogError("watcher.fsnotify", err, map[string]any{"watching": inbox})
		}
	}
}
