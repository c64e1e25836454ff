// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     runner
// Description: Runs child processes and streams their output to a Sink
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package runner

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/msto63/appstore/internal/procmgr"
	"github.com/msto63/appstore/pkg/core/logging"
)

const (
	msgNotFound   = "Command not found. Make sure Python and pip are in your PATH."
	msgUnexpected = "An unexpected error occurred: %v"
	msgCancelled  = "Command was cancelled."
)

// Invocation describes one child process to run
type Invocation struct {
	Path string
	Args []string
	Tag  Tag

	// Dir and Env are passed to the child when set
	Dir string
	Env []string
}

// CommandLine returns the argv joined with spaces
func (inv Invocation) CommandLine() string {
	return strings.Join(append([]string{inv.Path}, inv.Args...), " ")
}

// Result is the outcome of an invocation
type Result struct {
	Tag        Tag
	ExitCode   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Succeeded reports a zero exit code
func (r Result) Succeeded() bool {
	return r.ExitCode == 0
}

// Duration returns how long the invocation took
func (r Result) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// Handle is the per-invocation future returned by Start
type Handle struct {
	tag    Tag
	done   chan struct{}
	result Result
}

func newHandle(tag Tag) *Handle {
	return &Handle{tag: tag, done: make(chan struct{})}
}

// Tag returns the invocation's correlation tag
func (h *Handle) Tag() Tag {
	return h.tag
}

// Done is closed after the invocation's OperationDone has been pushed
func (h *Handle) Done() <-chan struct{} {
	return h.done
}

// Result returns the outcome; only valid once Done is closed
func (h *Handle) Result() Result {
	select {
	case <-h.done:
		return h.result
	default:
		return Result{Tag: h.tag}
	}
}

// Wait blocks until the invocation completes or ctx is done
func (h *Handle) Wait(ctx context.Context) (Result, error) {
	select {
	case <-h.done:
		return h.result, nil
	case <-ctx.Done():
		return Result{Tag: h.tag}, ctx.Err()
	}
}

func (h *Handle) complete(r Result) {
	h.result = r
	close(h.done)
}

// Executor runs invocations and writes their output to a Sink. For every
// invocation it pushes the output lines followed by exactly one OperationDone.
type Executor struct {
	sink   Sink
	procs  *procmgr.Manager
	logger *logging.Logger
}

// NewExecutor creates an executor; procs may be nil
func NewExecutor(sink Sink, procs *procmgr.Manager) *Executor {
	if procs == nil {
		procs = procmgr.New(procmgr.DefaultConfig())
	}
	return &Executor{
		sink:   sink,
		procs:  procs,
		logger: logging.New("runner"),
	}
}

// Processes returns the registry of running children
func (e *Executor) Processes() *procmgr.Manager {
	return e.procs
}

// Start runs inv on its own goroutine. Cancelling ctx terminates the child.
func (e *Executor) Start(ctx context.Context, inv Invocation) *Handle {
	h := newHandle(inv.Tag)
	go e.run(ctx, inv, h)
	return h
}

// Run starts inv and waits for its result
func (e *Executor) Run(ctx context.Context, inv Invocation) Result {
	h := e.Start(ctx, inv)
	<-h.Done()
	return h.Result()
}

// Launch starts inv detached from the store: own process group, no stdio,
// never waited on by the caller. It returns the child's PID.
func (e *Executor) Launch(inv Invocation) (int, error) {
	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}
	procmgr.Prepare(cmd)

	if err := cmd.Start(); err != nil {
		return 0, &SpawnError{Path: inv.Path, Args: inv.Args, OriginalError: err}
	}

	pid := cmd.Process.Pid
	e.logger.Info("Launched detached process", "cmd", inv.CommandLine(), "pid", pid)

	// Reap in background so the child never lingers as a zombie
	go func() {
		err := cmd.Wait()
		e.logger.Debug("Detached process exited", "pid", pid, "error", err)
	}()

	return pid, nil
}

func (e *Executor) run(ctx context.Context, inv Invocation, h *Handle) {
	res := Result{Tag: inv.Tag, StartedAt: time.Now()}
	res.ExitCode, res.Err = e.execute(ctx, inv)
	res.FinishedAt = time.Now()

	e.logger.Debug("Invocation finished",
		"tag", inv.Tag.String(),
		"exit_code", res.ExitCode,
		"duration", res.Duration(),
		"error", res.Err,
	)

	e.sink.Push(OperationDone{Tag: inv.Tag, ExitCode: res.ExitCode})
	h.complete(res)
}

// execute never panics; every failure turns into an error line and exit code 1
func (e *Executor) execute(ctx context.Context, inv Invocation) (code int, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			code = 1
			e.sink.Push(Errorf(msgUnexpected, err))
		}
	}()

	e.sink.Push(Info("--> Running command: %s", inv.CommandLine()))

	if err := ctx.Err(); err != nil {
		e.sink.Push(Errorf(msgCancelled))
		return 1, err
	}

	cmd := exec.Command(inv.Path, inv.Args...)
	cmd.Dir = inv.Dir
	if len(inv.Env) > 0 {
		cmd.Env = inv.Env
	}
	procmgr.Prepare(cmd)

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return e.spawnFailed(inv, err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return e.spawnFailed(inv, err)
	}

	if err := cmd.Start(); err != nil {
		return e.spawnFailed(inv, err)
	}

	pid := cmd.Process.Pid
	if _, err := e.procs.Track(inv.Tag.Label, cmd); err != nil {
		e.logger.Warn("Failed to track process", "pid", pid, "error", err)
	}

	// Terminate the child's group when the worker is cancelled
	stopWatch := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			if err := e.procs.Terminate(context.Background(), pid); err != nil {
				e.logger.Warn("Failed to terminate cancelled process", "pid", pid, "error", err)
			}
		case <-stopWatch:
		}
	}()

	// Read both streams concurrently; lines are forwarded as they arrive
	var (
		wg      sync.WaitGroup
		readMu  sync.Mutex
		readErr error
	)
	for _, s := range []struct {
		r      io.Reader
		stream Stream
	}{{stdout, StreamStdout}, {stderr, StreamStderr}} {
		wg.Add(1)
		go func(r io.Reader, stream Stream) {
			defer wg.Done()
			if err := e.stream(r, stream); err != nil {
				readMu.Lock()
				if readErr == nil {
					readErr = fmt.Errorf("read %s: %w", stream, err)
				}
				readMu.Unlock()
			}
		}(s.r, s.stream)
	}
	wg.Wait()

	waitErr := cmd.Wait()
	close(stopWatch)
	e.procs.Release(pid, waitErr)

	code = exitCode(waitErr)
	switch {
	case readErr != nil:
		code = 1
		err = readErr
		e.sink.Push(Errorf(msgUnexpected, readErr))
	case ctx.Err() != nil:
		if code <= 0 {
			code = 1
		}
		err = ctx.Err()
		e.sink.Push(Errorf(msgCancelled))
	case code < 0:
		code = 1
		err = waitErr
		e.sink.Push(Errorf(msgUnexpected, waitErr))
	}

	e.sink.Push(Info("<-- Command finished with return code: %d", code))
	return code, err
}

// stream forwards every line of r. A read error stops forwarding but the
// rest of r is still consumed so the child cannot block on a full pipe.
func (e *Executor) stream(r io.Reader, stream Stream) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
			_, _ = io.Copy(io.Discard, r)
		}
	}()

	br := bufio.NewReader(r)
	for {
		line, readErr := br.ReadString('\n')
		if line != "" {
			e.sink.Push(LogLine{Text: strings.TrimRight(line, "\r\n"), Stream: stream})
		}
		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				return nil
			}
			_, _ = io.Copy(io.Discard, r)
			return readErr
		}
	}
}

func (e *Executor) spawnFailed(inv Invocation, err error) (int, error) {
	spawnErr := &SpawnError{Path: inv.Path, Args: inv.Args, OriginalError: err}
	if spawnErr.NotFound() {
		e.sink.Push(Errorf(msgNotFound))
	} else {
		e.sink.Push(Errorf(msgUnexpected, err))
	}
	e.logger.Warn("Failed to start command", "cmd", inv.CommandLine(), "error", err)
	return 1, spawnErr
}

// exitCode extracts the child's exit status; -1 means killed by a signal
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitCode()
	}
	return -1
}
