package runner

import (
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
)

// SpawnError is returned when a child process could not be started
type SpawnError struct {
	Path          string
	Args          []string
	OriginalError error
}

// Error implements the error interface
func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start '%s': %v", strings.Join(append([]string{e.Path}, e.Args...), " "), e.OriginalError)
}

// Unwrap returns the original error for error unwrapping
func (e *SpawnError) Unwrap() error {
	return e.OriginalError
}

// NotFound reports whether the executable does not exist
func (e *SpawnError) NotFound() bool {
	return IsNotFound(e.OriginalError)
}

// IsNotFound reports whether err means the executable could not be located
func IsNotFound(err error) bool {
	return errors.Is(err, exec.ErrNotFound) || errors.Is(err, fs.ErrNotExist)
}
