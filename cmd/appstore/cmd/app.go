// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     cmd
// Description: Wiring of catalog, executor, orchestrator and history
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/msto63/appstore/internal/catalog"
	"github.com/msto63/appstore/internal/history"
	"github.com/msto63/appstore/internal/orchestrator"
	"github.com/msto63/appstore/internal/procmgr"
	"github.com/msto63/appstore/internal/pyenv"
	"github.com/msto63/appstore/internal/runner"
	"github.com/msto63/appstore/pkg/core/config"
	"github.com/msto63/appstore/pkg/core/logging"
)

// app holds the long-lived components behind the store UI
type app struct {
	cfg         *config.Config
	interpreter string
	catalog     *catalog.Catalog
	procs       *procmgr.Manager
	queue       *runner.Queue
	executor    *runner.Executor
	orch        *orchestrator.Orchestrator
	history     history.Store
	logger      *logging.Logger
}

func newApp(cfg *config.Config) (*app, error) {
	logger := logging.New("appstore")

	cat, err := catalog.FromConfig(cfg.Apps)
	if err != nil {
		return nil, fmt.Errorf("invalid catalog: %w", err)
	}

	interpreter, err := pyenv.Resolve(cfg.Store.Interpreter)
	if err != nil {
		logger.Warn("No Python interpreter found", "fallback", interpreter, "error", err)
	}

	procs := procmgr.New(procmgr.Config{TerminateGrace: cfg.Store.TerminateGrace.Duration})
	queue := runner.NewQueue()

	a := &app{
		cfg:         cfg,
		interpreter: interpreter,
		catalog:     cat,
		procs:       procs,
		queue:       queue,
		executor:    runner.NewExecutor(queue, procs),
		logger:      logger,
	}

	var opts []orchestrator.Option
	if cfg.History.Enabled {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			logger.Warn("Operation history disabled", "path", cfg.History.Path, "error", err)
		} else {
			a.history = store
			opts = append(opts, orchestrator.WithRecorder(store))
			if n, err := store.Prune(context.Background(), cfg.History.Limit); err != nil {
				logger.Warn("Failed to prune history", "error", err)
			} else if n > 0 {
				logger.Debug("Pruned history", "removed", n)
			}
		}
	}

	a.orch = orchestrator.New(context.Background(), orchestrator.Config{
		Interpreter:  interpreter,
		StorePackage: cfg.Store.Package,
	}, a.executor, queue, opts...)

	logger.Info("App store ready",
		"interpreter", interpreter,
		"apps", cat.Len(),
		"store_package", cfg.Store.Package,
		"history", a.history != nil,
	)
	return a, nil
}

// checker builds the environment checker for the configured interpreter
func (a *app) checker() *pyenv.Checker {
	return pyenv.NewChecker(pyenv.Config{
		Interpreter:  a.interpreter,
		StorePackage: a.cfg.Store.Package,
	})
}

// Shutdown stops in-flight operations, giving children the configured grace
func (a *app) Shutdown() {
	grace := a.cfg.Store.TerminateGrace.Duration
	ctx, cancel := context.WithTimeout(context.Background(), grace+2*time.Second)
	defer cancel()

	if err := a.orch.Shutdown(ctx); err != nil {
		a.logger.Warn("Shutdown incomplete", "error", err)
	}
	if n := a.procs.Count(); n > 0 {
		a.logger.Warn("Terminating remaining children", "count", n)
		if err := a.procs.TerminateAll(ctx); err != nil {
			a.logger.Error("Failed to terminate children", "error", err)
		}
	}
}

// Close releases the queue and the history store
func (a *app) Close() {
	a.queue.Close()
	if a.history != nil {
		if err := a.history.Close(); err != nil {
			a.logger.Warn("Failed to close history", "error", err)
		}
	}
}
