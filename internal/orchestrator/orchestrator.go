// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     orchestrator
// Description: Install, uninstall and run operations on catalog entries
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/msto63/appstore/internal/catalog"
	"github.com/msto63/appstore/internal/history"
	"github.com/msto63/appstore/internal/runner"
	"github.com/msto63/appstore/pkg/core/logging"
)

var (
	// ErrNoSelection is returned when no catalog entry is selected
	ErrNoSelection = errors.New("no application selected")

	// ErrNoPackage is returned for an entry without a package name
	ErrNoPackage = errors.New("no package name specified")

	// ErrNoModule is returned when running an entry without a module name
	ErrNoModule = errors.New("no module name specified")

	// ErrBusy is returned while another operation is in flight
	ErrBusy = errors.New("another operation is still running")

	// ErrNotConfirmed is returned for an uninstall the user did not confirm
	ErrNotConfirmed = errors.New("uninstall not confirmed")

	// ErrStopped is returned after Shutdown
	ErrStopped = errors.New("orchestrator stopped")
)

// Kind is the type of an operation
type Kind int

const (
	KindInstall Kind = iota
	KindUninstall
	KindRun
)

func (k Kind) String() string {
	switch k {
	case KindInstall:
		return "install"
	case KindUninstall:
		return "uninstall"
	case KindRun:
		return "run"
	default:
		return "unknown"
	}
}

// Operation is one user action on a catalog entry
type Operation struct {
	Tag       runner.Tag
	Kind      Kind
	Entry     catalog.Entry
	StartedAt time.Time
}

// Runner runs child processes on behalf of the orchestrator
type Runner interface {
	Run(ctx context.Context, inv runner.Invocation) runner.Result
	Launch(inv runner.Invocation) (int, error)
}

// Recorder persists finished commands
type Recorder interface {
	Record(ctx context.Context, e history.Entry) error
}

// Config holds orchestrator configuration
type Config struct {
	Interpreter  string
	StorePackage string
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithRecorder stores every finished command in rec
func WithRecorder(rec Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = rec
	}
}

// Orchestrator issues the commands behind install, uninstall and run.
// At most one operation is in flight; each one ends with exactly one
// WorkerFinished on the sink.
type Orchestrator struct {
	cfg      Config
	runner   Runner
	sink     runner.Sink
	recorder Recorder
	logger   *logging.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	active  *Operation
	stopped bool
}

// New creates an orchestrator. Workers run under ctx until Shutdown.
func New(ctx context.Context, cfg Config, r Runner, sink runner.Sink, opts ...Option) *Orchestrator {
	if cfg.Interpreter == "" {
		cfg.Interpreter = "python3"
	}

	ctx, cancel := context.WithCancel(ctx)
	o := &Orchestrator{
		cfg:    cfg,
		runner: r,
		sink:   sink,
		logger: logging.New("orchestrator"),
		ctx:    ctx,
		cancel: cancel,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Install upgrades the store package and then installs entry's package
func (o *Orchestrator) Install(entry catalog.Entry) (Operation, error) {
	if entry.Package == "" {
		return Operation{}, fmt.Errorf("install %s: %w", entry.Name, ErrNoPackage)
	}

	op, ctx, err := o.begin(KindInstall, entry)
	if err != nil {
		return Operation{}, err
	}

	o.sink.Push(runner.Info("Attempting to install: %s (%s)", entry.Name, entry.Package))
	go o.work(ctx, op, o.install)
	return op, nil
}

// Uninstall removes entry's package. Nothing is issued unless confirmed.
func (o *Orchestrator) Uninstall(entry catalog.Entry, confirmed bool) (Operation, error) {
	if entry.Package == "" {
		return Operation{}, fmt.Errorf("uninstall %s: %w", entry.Name, ErrNoPackage)
	}
	if !confirmed {
		return Operation{}, ErrNotConfirmed
	}

	op, ctx, err := o.begin(KindUninstall, entry)
	if err != nil {
		return Operation{}, err
	}

	o.sink.Push(runner.Info("Attempting to uninstall: %s (%s)", entry.Name, entry.Package))
	go o.work(ctx, op, o.uninstall)
	return op, nil
}

// Run launches entry's module as a detached process
func (o *Orchestrator) Run(entry catalog.Entry) (Operation, error) {
	if !entry.Runnable() {
		return Operation{}, fmt.Errorf("run %s: %w", entry.Name, ErrNoModule)
	}

	op, ctx, err := o.begin(KindRun, entry)
	if err != nil {
		return Operation{}, err
	}

	go o.work(ctx, op, o.launch)
	return op, nil
}

// Busy reports whether an operation is in flight
func (o *Orchestrator) Busy() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.active != nil
}

// Active returns the in-flight operation
func (o *Orchestrator) Active() (Operation, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.active == nil {
		return Operation{}, false
	}
	return *o.active, true
}

// Wait blocks until no worker is running
func (o *Orchestrator) Wait() {
	o.wg.Wait()
}

// Shutdown cancels the running worker, which terminates its child, and
// waits for it to finish. Launched applications keep running.
func (o *Orchestrator) Shutdown(ctx context.Context) error {
	o.mu.Lock()
	o.stopped = true
	o.mu.Unlock()

	o.cancel()

	done := make(chan struct{})
	go func() {
		o.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) begin(kind Kind, entry catalog.Entry) (Operation, context.Context, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.stopped {
		return Operation{}, nil, ErrStopped
	}
	if o.active != nil {
		return Operation{}, nil, ErrBusy
	}

	op := Operation{
		Tag:       runner.NewTag(entry.Package),
		Kind:      kind,
		Entry:     entry,
		StartedAt: time.Now(),
	}
	o.active = &op
	o.wg.Add(1)

	o.logger.Info("Operation started", "kind", kind.String(), "package", entry.Package, "op", op.Tag.String())
	return op, o.ctx, nil
}

// work runs fn and guarantees the trailing WorkerFinished. The in-flight
// marker is cleared first so the UI may start the next operation as soon
// as it sees WorkerFinished.
func (o *Orchestrator) work(ctx context.Context, op Operation, fn func(context.Context, Operation)) {
	defer func() {
		if r := recover(); r != nil {
			o.logger.Error("Operation panicked", "op", op.Tag.String(), "panic", r)
			o.sink.Push(runner.Errorf("An unexpected error occurred: %v", r))
		}

		o.mu.Lock()
		o.active = nil
		o.mu.Unlock()

		o.logger.Info("Operation finished", "kind", op.Kind.String(), "package", op.Entry.Package,
			"op", op.Tag.String(), "duration", time.Since(op.StartedAt))

		o.sink.Push(runner.WorkerFinished{Operation: op.Tag})
		o.wg.Done()
	}()

	fn(ctx, op)
}

func (o *Orchestrator) install(ctx context.Context, op Operation) {
	store := o.cfg.StorePackage
	pkg := op.Entry.Package

	if store != "" {
		o.sink.Push(runner.Info("Ensuring %s is installed from PyPi...", store))

		res := o.run(ctx, op, runner.Invocation{
			Path: o.cfg.Interpreter,
			Args: []string{"-m", "pip", "install", "--upgrade", store},
			Tag:  runner.NewTag(store),
		})
		if !res.Succeeded() {
			o.sink.Push(runner.Errorf("Failed to install/upgrade %s. Aborting installation of %s.", store, pkg))
			return
		}
		if ctx.Err() != nil {
			return
		}

		o.sink.Push(runner.Info("%s installed/upgraded successfully.", store))
	}

	o.sink.Push(runner.Info("Installing %s...", pkg))
	o.run(ctx, op, runner.Invocation{
		Path: o.cfg.Interpreter,
		Args: []string{"-m", "pip", "install", pkg},
		Tag:  op.Tag,
	})
}

func (o *Orchestrator) uninstall(ctx context.Context, op Operation) {
	o.run(ctx, op, runner.Invocation{
		Path: o.cfg.Interpreter,
		Args: []string{"-m", "pip", "uninstall", op.Entry.Package, "-y"},
		Tag:  op.Tag,
	})
}

func (o *Orchestrator) launch(_ context.Context, op Operation) {
	module := op.Entry.Module
	inv := runner.Invocation{
		Path: o.cfg.Interpreter,
		Args: []string{"-m", module},
		Tag:  op.Tag,
	}

	o.sink.Push(runner.Info("Launching process: %s", inv.CommandLine()))

	pid, err := o.runner.Launch(inv)
	if err != nil {
		if runner.IsNotFound(err) {
			o.sink.Push(runner.Errorf("Python interpreter or module '%s' not found.", module))
		} else {
			o.sink.Push(runner.Errorf("Failed to launch application: %v", err))
		}
		return
	}

	o.sink.Push(runner.Info("App process started with PID: %d", pid))
	o.sink.Push(runner.Info("Process launched. Interact with %s separately.", module))
}

// run executes one step, waiting on its own handle, and records the result
func (o *Orchestrator) run(ctx context.Context, op Operation, inv runner.Invocation) runner.Result {
	res := o.runner.Run(ctx, inv)

	if o.recorder != nil {
		err := o.recorder.Record(context.Background(), history.Entry{
			OperationID: op.Tag.ID.String(),
			Kind:        op.Kind.String(),
			Package:     inv.Tag.Label,
			Command:     inv.CommandLine(),
			ExitCode:    res.ExitCode,
			StartedAt:   res.StartedAt,
			FinishedAt:  res.FinishedAt,
		})
		if err != nil {
			o.logger.Warn("Failed to record operation", "op", op.Tag.String(), "error", err)
		}
	}

	return res
}
