package main

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/hibasheikh90/vaultpilot/internal/audit"
	"github.com/hibasheikh90/vaultpilot/internal/bus"
	"github.com/hibasheikh90/vaultpilot/internal/config"
	"github.com/hibasheikh90/vaultpilot/internal/connectors"
	"github.com/hibasheikh90/vaultpilot/internal/ralph"
	"github.com/hibasheikh90/vaultpilot/internal/recovery"
	"github.com/hibasheikh90/vaultpilot/internal/retry"
	"github.com/hibasheikh90/vaultpilot/internal/scheduler"
	"github.com/hibasheikh90/vaultpilot/internal/vault"
	"github.com/hibasheikh90/vaultpilot/internal/watcher"
)

// services holds the fully wired component graph shared by all
// subcommands.
type services struct {
	cfg      *config.Config
	vault    *vault.Vault
	bus      *bus.Bus
	log      *audit.Logger
	queue    *retry.Queue
	pipeline *watcher.Pipeline
	ralph    *ralph.Processor
	recovery *recovery.Manager
	sched    *scheduler.Scheduler
}

// buildServices loads config and wires every component the same way
// regardless of which subcommand runs.
func buildServices() (*services, error) {
	// Credentials live in .env; already-set env vars win.
	if err := config.LoadEnv(".env"); err != nil {
		return nil, err
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, err
	}
	if vaultPath != "" {
		cfg.Vault = vaultPath
	}

	v := vault.New(cfg.Vault)
	if err := v.EnsureDirs(); err != nil {
		return nil, err
	}

	eventBus := bus.New()
	logger, err := audit.New(audit.Options{
		Dir:            filepath.Join(cfg.Vault, "Logs"),
		AlertThreshold: cfg.Logging.AlertThreshold,
		AlertWindow:    cfg.AlertWindow(),
		MaxFileSizeMB:  cfg.Logging.MaxFileSizeMB,
	})
	if err != nil {
		return nil, err
	}
	// Two-phase wiring: the bus reports handler faults to the logger,
	// the logger escalates error spikes onto the bus.
	eventBus.SetErrorLogger(func(source string, err error, context map[string]any) {
		logger.LogError(source, err, context)
	})
	logger.SetEventBus(eventBus)

	queue, err := retry.NewQueue(filepath.Join(cfg.Vault, "Logs", "failed_tasks.json"))
	if err != nil {
		return nil, err
	}

	pipeline := watcher.NewPipeline(v, logger, queue, eventBus)
	proc := ralph.NewProcessor(v, logger, eventBus, queue, cfg.Ralph.MaxRetriesPerTask)
	rec := recovery.NewManager(queue, logger, eventBus)

	// Integrations run as no-ops until credentials are wired in.
	gmail := connectors.NewUnconfigured("gmail")
	odoo := connectors.NewUnconfigured("odoo")
	social := connectors.NewUnconfigured("social")
	alerts := connectors.NewUnconfigured("alerts")
	conns := scheduler.Connectors{
		Inbound:    []connectors.Inbound{gmail},
		Outbound:   []connectors.Outbound{odoo},
		Publishers: []connectors.Publisher{social},
		Notifier:   alerts,
	}

	registerRecoveryHandlers(rec, pipeline, gmail, odoo, social)

	sched := scheduler.New(scheduler.Deps{
		Config:   cfg,
		Vault:    v,
		Log:      logger,
		Bus:      eventBus,
		Queue:    queue,
		Pipeline: pipeline,
		Ralph:    proc,
		Recovery: rec,
		Conns:    conns,
	})

	return &services{
		cfg:      cfg,
		vault:    v,
		bus:      eventBus,
		log:      logger,
		queue:    queue,
		pipeline: pipeline,
		ralph:    proc,
		recovery: rec,
		sched:    sched,
	}, nil
}

// registerRecoveryHandlers maps every failure source the system queues
// to a handler that re-runs the original job from its context.
func registerRecoveryHandlers(rec *recovery.Manager, pipeline *watcher.Pipeline,
	gmail connectors.Inbound, odoo connectors.Outbound, social connectors.Publisher) {

	filepathFrom := func(context map[string]any) (string, error) {
		path, _ := context["filepath"].(string)
		if path == "" {
			return "", fmt.Errorf("recovery context missing filepath")
		}
		return path, nil
	}

	retriage := func(context map[string]any) error {
		path, err := filepathFrom(context)
		if err != nil {
			return err
		}
		_, err = pipeline.TriageFile(path)
		return err
	}
	replan := func(context map[string]any) error {
		path, err := filepathFrom(context)
		if err != nil {
			return err
		}
		_, err = pipeline.CreatePlan(path)
		return err
	}

	rec.Register("watcher.process_file", retriage)
	rec.Register("vault.triage", retriage)
	rec.Register("planner.create_plan", replan)
	rec.Register("vault.plan", replan)

	rec.Register("gmail.watcher", func(map[string]any) error {
		_, err := gmail.CheckNew(context.Background())
		return err
	})
	rec.Register("odoo.sync", func(map[string]any) error {
		_, err := odoo.Sync(context.Background())
		return err
	})
	rec.Register("social.queue_check", func(map[string]any) error {
		_, err := social.ProcessQueue(context.Background())
		return err
	})
}
