// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     pyenv
// Description: Python interpreter discovery and environment checks
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package pyenv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

// ErrNoInterpreter is returned when no Python interpreter can be located
var ErrNoInterpreter = errors.New("no python interpreter found")

// candidates are tried in order when no interpreter is configured
var candidates = []string{"python3", "python"}

// Resolve returns the interpreter to use. A configured value wins; otherwise
// python3 and python are looked up on PATH. On failure the first candidate
// is returned together with ErrNoInterpreter so callers can still try it.
func Resolve(configured string) (string, error) {
	if configured != "" {
		path, err := exec.LookPath(configured)
		if err != nil {
			return configured, fmt.Errorf("%w: %s: %v", ErrNoInterpreter, configured, err)
		}
		return path, nil
	}

	for _, name := range candidates {
		if path, err := exec.LookPath(name); err == nil {
			return path, nil
		}
	}
	return candidates[0], ErrNoInterpreter
}

// DetectVirtualEnv reports the active virtual environment from the
// environment variables set by venv and conda
func DetectVirtualEnv(getenv func(string) string) (string, bool) {
	if getenv == nil {
		getenv = os.Getenv
	}
	for _, key := range []string{"VIRTUAL_ENV", "CONDA_PREFIX"} {
		if v := getenv(key); v != "" {
			return v, true
		}
	}
	return "", false
}

// Status represents the result of an environment check
type Status int

const (
	StatusUnchecked Status = iota
	StatusChecking
	StatusOK
	StatusFailed
	StatusWarning
)

// String returns the status as string
func (s Status) String() string {
	switch s {
	case StatusUnchecked:
		return "unchecked"
	case StatusChecking:
		return "checking..."
	case StatusOK:
		return "OK"
	case StatusFailed:
		return "FAILED"
	case StatusWarning:
		return "WARNING"
	default:
		return "unknown"
	}
}

// Check is a single environment check
type Check struct {
	Name        string
	Description string
	Required    bool
	Status      Status
	Message     string
	Version     string
	CheckFn     func(ctx context.Context) (bool, string, string) // returns: ok, message, version
}

// CommandFunc runs a command and returns its combined output
type CommandFunc func(ctx context.Context, name string, args ...string) (string, error)

// Config holds the checker's inputs
type Config struct {
	Interpreter  string
	StorePackage string
	Getenv       func(string) string
	RunCmd       CommandFunc
	Timeout      time.Duration
}

// Checker runs the environment checks shown at startup and by "doctor"
type Checker struct {
	Checks []Check

	cfg Config
}

// NewChecker creates a checker for the given interpreter
func NewChecker(cfg Config) *Checker {
	if cfg.Getenv == nil {
		cfg.Getenv = os.Getenv
	}
	if cfg.RunCmd == nil {
		cfg.RunCmd = runCommand
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 10 * time.Second
	}

	c := &Checker{cfg: cfg}
	c.Checks = []Check{
		{
			Name:        "Python",
			Description: "Interpreter used for pip and apps",
			Required:    true,
			CheckFn:     c.checkPython,
		},
		{
			Name:        "pip",
			Description: "Python package installer",
			Required:    true,
			CheckFn:     c.checkPip,
		},
		{
			Name:        "Virtual Environment",
			Description: "Isolated install location",
			Required:    false,
			CheckFn:     c.checkVirtualEnv,
		},
	}
	if cfg.StorePackage != "" {
		c.Checks = append(c.Checks, Check{
			Name:        "Store Package",
			Description: cfg.StorePackage + " (installed before every app)",
			Required:    false,
			CheckFn:     c.checkStorePackage,
		})
	}
	return c
}

// CheckAll runs every check
func (c *Checker) CheckAll(ctx context.Context) {
	for i := range c.Checks {
		c.Checks[i].Status = StatusChecking
	}

	for i := range c.Checks {
		c.Check(ctx, i)
	}
}

// Check runs a single check by index
func (c *Checker) Check(ctx context.Context, index int) {
	if index < 0 || index >= len(c.Checks) {
		return
	}

	check := &c.Checks[index]
	check.Status = StatusChecking

	if check.CheckFn != nil {
		ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
		ok, message, version := check.CheckFn(ctx)
		cancel()

		check.Message = message
		check.Version = version
		if ok {
			check.Status = StatusOK
		} else if check.Required {
			check.Status = StatusFailed
		} else {
			check.Status = StatusWarning
		}
	}
}

// AllRequiredOK returns true if all required checks passed
func (c *Checker) AllRequiredOK() bool {
	for _, check := range c.Checks {
		if check.Required && check.Status != StatusOK {
			return false
		}
	}
	return true
}

// Warnings returns a line for every check that did not pass
func (c *Checker) Warnings() []string {
	var out []string
	for _, check := range c.Checks {
		if check.Status == StatusWarning || check.Status == StatusFailed {
			out = append(out, fmt.Sprintf("%s: %s", check.Name, check.Message))
		}
	}
	return out
}

// Environment check functions

func (c *Checker) checkPython(ctx context.Context) (bool, string, string) {
	out, err := c.cfg.RunCmd(ctx, c.cfg.Interpreter, "--version")
	if err != nil {
		return false, "Python not found", ""
	}

	// "Python 3.12.1"
	version := strings.TrimSpace(out)
	if parts := strings.Fields(version); len(parts) >= 2 {
		version = parts[1]
	}
	return true, c.cfg.Interpreter, version
}

func (c *Checker) checkPip(ctx context.Context) (bool, string, string) {
	out, err := c.cfg.RunCmd(ctx, c.cfg.Interpreter, "-m", "pip", "--version")
	if err != nil {
		return false, "pip not available for " + c.cfg.Interpreter, ""
	}

	// "pip 24.0 from /usr/lib/python3/dist-packages/pip (python 3.12)"
	version := ""
	if parts := strings.Fields(out); len(parts) >= 2 {
		version = parts[1]
	}
	return true, "Installed", version
}

func (c *Checker) checkVirtualEnv(ctx context.Context) (bool, string, string) {
	if prefix, ok := DetectVirtualEnv(c.cfg.Getenv); ok {
		return true, "Active: " + prefix, ""
	}

	// The interpreter may live in a venv even if it was not activated
	out, err := c.cfg.RunCmd(ctx, c.cfg.Interpreter, "-c",
		"import sys; print(sys.prefix); print(sys.prefix != sys.base_prefix)")
	if err == nil {
		lines := strings.Split(strings.TrimSpace(out), "\n")
		if len(lines) == 2 && strings.TrimSpace(lines[1]) == "True" {
			return true, "Active: " + strings.TrimSpace(lines[0]), ""
		}
	}

	return false, "Not in a virtual environment; packages go to the global interpreter", ""
}

func (c *Checker) checkStorePackage(ctx context.Context) (bool, string, string) {
	out, err := c.cfg.RunCmd(ctx, c.cfg.Interpreter, "-m", "pip", "show", c.cfg.StorePackage)
	if err != nil {
		return false, "Not installed yet; installed on first app install", ""
	}

	for _, line := range strings.Split(out, "\n") {
		if v, ok := strings.CutPrefix(strings.TrimSpace(line), "Version:"); ok {
			return true, "Installed", strings.TrimSpace(v)
		}
	}
	return true, "Installed", ""
}

func runCommand(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	return string(out), err
}
