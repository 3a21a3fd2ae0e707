// Copyright 2026 Canonical Ltd.
// Licensed under the AGPLv3, see LICENCE file for details.

package jujucli

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"

	"github.com/kballard/go-shellquote"
)

// CommandRunner runs an external command and returns what it wrote to
// standard output.
type CommandRunner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// RunError is returned by the exec runner when a command fails.
type RunError struct {
	Command string
	Stderr  string
	Err     error
}

// Error implements error.
func (e *RunError) Error() string {
	if e.Stderr == "" {
		return fmt.Sprintf("%s: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("%s: %v: %s", e.Command, e.Err, e.Stderr)
}

// Unwrap returns the underlying exec error.
func (e *RunError) Unwrap() error {
	return e.Err
}

// NewExecRunner returns a CommandRunner that runs commands as child
// processes of this one.
func NewExecRunner() CommandRunner {
	return execRunner{}
}

type execRunner struct{}

// Run is part of the CommandRunner interface.
func (execRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		return out, &RunError{
			Command: shellquote.Join(append([]string{name}, args...)...),
			Stderr:  strings.TrimSpace(stderr.String()),
			Err:     err,
		}
	}
	return out, nil
}
