// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     procmgr
// Description: Registry of child processes with process group termination
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package procmgr

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"sort"
	"sync"
	"time"

	"github.com/msto63/appstore/pkg/core/logging"
)

// ErrNotTracked is returned when a PID is not registered
var ErrNotTracked = errors.New("process not tracked")

// ProcessStatus represents the status of a tracked process
type ProcessStatus int

const (
	StatusUnknown ProcessStatus = iota
	StatusRunning
	StatusStopping
	StatusExited
	StatusFailed
)

func (s ProcessStatus) String() string {
	switch s {
	case StatusRunning:
		return "running"
	case StatusStopping:
		return "stopping"
	case StatusExited:
		return "exited"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Process is a child process registered with the manager
type Process struct {
	Label     string
	PID       int
	StartedAt time.Time

	status  ProcessStatus
	lastErr string
	done    chan struct{}
	mu      sync.RWMutex
}

// Done is closed once the process has been released
func (p *Process) Done() <-chan struct{} {
	return p.done
}

// Status returns the current status and the last error text (thread-safe)
func (p *Process) Status() (ProcessStatus, string) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.status, p.lastErr
}

// Uptime returns how long the process has been running
func (p *Process) Uptime() time.Duration {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.status != StatusRunning && p.status != StatusStopping {
		return 0
	}
	return time.Since(p.StartedAt)
}

// Snapshot is a point-in-time copy of a tracked process
type Snapshot struct {
	Label     string
	PID       int
	Status    ProcessStatus
	StartedAt time.Time
}

// Config holds process manager configuration
type Config struct {
	// TerminateGrace is the time between the polite and the forced stop
	TerminateGrace time.Duration
}

// DefaultConfig returns default configuration
func DefaultConfig() Config {
	return Config{
		TerminateGrace: 5 * time.Second,
	}
}

// Manager tracks running children so they can be stopped as a group
type Manager struct {
	procs  map[int]*Process
	grace  time.Duration
	logger *logging.Logger
	mu     sync.RWMutex
}

// New creates a new process manager
func New(cfg Config) *Manager {
	if cfg.TerminateGrace <= 0 {
		cfg.TerminateGrace = DefaultConfig().TerminateGrace
	}
	return &Manager{
		procs:  make(map[int]*Process),
		grace:  cfg.TerminateGrace,
		logger: logging.New("procmgr"),
	}
}

// Prepare places cmd in its own process group. Call before cmd.Start.
func Prepare(cmd *exec.Cmd) {
	setProcessGroup(cmd)
}

// Track registers a started command. The caller owns cmd.Wait and must
// call Release once it returns.
func (m *Manager) Track(label string, cmd *exec.Cmd) (*Process, error) {
	if cmd.Process == nil {
		return nil, fmt.Errorf("track %s: process not started", label)
	}

	p := &Process{
		Label:     label,
		PID:       cmd.Process.Pid,
		StartedAt: time.Now(),
		status:    StatusRunning,
		done:      make(chan struct{}),
	}

	m.mu.Lock()
	m.procs[p.PID] = p
	m.mu.Unlock()

	m.logger.Debug("Process tracked", "label", label, "pid", p.PID)
	return p, nil
}

// Release marks the process as finished and removes it from the registry
func (m *Manager) Release(pid int, waitErr error) {
	m.mu.Lock()
	p, ok := m.procs[pid]
	delete(m.procs, pid)
	m.mu.Unlock()

	if !ok {
		return
	}

	p.mu.Lock()
	if waitErr != nil {
		p.status = StatusFailed
		p.lastErr = waitErr.Error()
	} else {
		p.status = StatusExited
	}
	p.mu.Unlock()
	close(p.done)

	m.logger.Debug("Process released", "label", p.Label, "pid", pid, "error", waitErr)
}

// Get returns a tracked process by PID
func (m *Manager) Get(pid int) (*Process, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.procs[pid]
	return p, ok
}

// Count returns the number of tracked processes
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.procs)
}

// Running returns snapshots of all tracked processes ordered by start time
func (m *Manager) Running() []Snapshot {
	m.mu.RLock()
	result := make([]Snapshot, 0, len(m.procs))
	for _, p := range m.procs {
		status, _ := p.Status()
		result = append(result, Snapshot{
			Label:     p.Label,
			PID:       p.PID,
			Status:    status,
			StartedAt: p.StartedAt,
		})
	}
	m.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].StartedAt.Before(result[j].StartedAt)
	})
	return result
}

// Terminate stops the process group of pid: a polite stop first, then a
// forced kill once the grace period has passed.
func (m *Manager) Terminate(ctx context.Context, pid int) error {
	p, ok := m.Get(pid)
	if !ok {
		return ErrNotTracked
	}

	p.mu.Lock()
	if p.status != StatusRunning {
		p.mu.Unlock()
		return nil
	}
	p.status = StatusStopping
	p.mu.Unlock()

	m.logger.Info("Stopping process", "label", p.Label, "pid", pid)

	if err := terminateGroup(pid); err != nil {
		m.logger.Warn("Failed to signal process group", "pid", pid, "error", err)
	}

	timer := time.NewTimer(m.grace)
	defer timer.Stop()

	select {
	case <-p.done:
		return nil
	case <-timer.C:
	case <-ctx.Done():
	}

	// Force kill
	m.logger.Warn("Force killing process", "label", p.Label, "pid", pid)
	if err := killGroup(pid); err != nil {
		select {
		case <-p.done:
			return nil
		default:
		}
		return fmt.Errorf("failed to kill process %d: %w", pid, err)
	}

	return ctx.Err()
}

// TerminateAll stops every tracked process concurrently
func (m *Manager) TerminateAll(ctx context.Context) error {
	m.mu.RLock()
	pids := make([]int, 0, len(m.procs))
	for pid := range m.procs {
		pids = append(pids, pid)
	}
	m.mu.RUnlock()

	var (
		wg    sync.WaitGroup
		errMu sync.Mutex
		errs  []error
	)
	for _, pid := range pids {
		wg.Add(1)
		go func(pid int) {
			defer wg.Done()
			if err := m.Terminate(ctx, pid); err != nil && !errors.Is(err, ErrNotTracked) {
				m.logger.Error("Failed to stop process", "pid", pid, "error", err)
				errMu.Lock()
				errs = append(errs, err)
				errMu.Unlock()
			}
		}(pid)
	}
	wg.Wait()

	return errors.Join(errs...)
}
