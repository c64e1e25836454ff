// ============================================================================
// appstore - Terminal App Store for Python applications
// ============================================================================
//
// Package:     runner
// Description: Messages flowing from workers to the UI
// Author:      Mike Stoffels
// Created:     2026-10-12
// License:     MIT
// ============================================================================

package runner

import (
	"fmt"

	"github.com/google/uuid"
)

// Stream identifies where a log line came from
type Stream int

const (
	// StreamInfo marks lines produced by the store itself
	StreamInfo Stream = iota
	// StreamStdout marks lines read from a child's standard output
	StreamStdout
	// StreamStderr marks lines read from a child's standard error
	StreamStderr
	// StreamError marks error lines produced by the store itself
	StreamError
)

func (s Stream) String() string {
	switch s {
	case StreamInfo:
		return "info"
	case StreamStdout:
		return "stdout"
	case StreamStderr:
		return "stderr"
	case StreamError:
		return "error"
	default:
		return "unknown"
	}
}

// IsError reports whether lines of this stream render with the error prefix
func (s Stream) IsError() bool {
	return s == StreamStderr || s == StreamError
}

// ErrorPrefix is prepended to every error line
const ErrorPrefix = "[ERROR] "

// Tag correlates an invocation or an operation with its messages
type Tag struct {
	ID    uuid.UUID
	Label string
}

// NewTag creates a tag with a fresh ID
func NewTag(label string) Tag {
	return Tag{ID: uuid.New(), Label: label}
}

func (t Tag) String() string {
	return fmt.Sprintf("%s/%s", t.Label, t.ID.String()[:8])
}

// Message is one item on the queue: LogLine, OperationDone or WorkerFinished
type Message interface {
	isMessage()
}

// LogLine is a single line of text for the log view
type LogLine struct {
	Text   string
	Stream Stream
}

// Info builds a store-produced informational line
func Info(format string, args ...any) LogLine {
	return LogLine{Text: fmt.Sprintf(format, args...), Stream: StreamInfo}
}

// Errorf builds a store-produced error line
func Errorf(format string, args ...any) LogLine {
	return LogLine{Text: fmt.Sprintf(format, args...), Stream: StreamError}
}

// Render returns the text as shown to the user
func (l LogLine) Render() string {
	if l.Stream.IsError() {
		return ErrorPrefix + l.Text
	}
	return l.Text
}

// OperationDone is emitted exactly once per invocation, after its output
type OperationDone struct {
	Tag      Tag
	ExitCode int
}

// Succeeded reports a zero exit code
func (d OperationDone) Succeeded() bool {
	return d.ExitCode == 0
}

// Summary is the user-facing completion line
func (d OperationDone) Summary() string {
	status := "SUCCESS"
	if !d.Succeeded() {
		status = "FAILED"
	}
	return fmt.Sprintf("Operation on %s %s (Return Code: %d).", d.Tag.Label, status, d.ExitCode)
}

// WorkerFinished is emitted exactly once per operation, always last
type WorkerFinished struct {
	Operation Tag
}

func (LogLine) isMessage()        {}
func (OperationDone) isMessage()  {}
func (WorkerFinished) isMessage() {}
