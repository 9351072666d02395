// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// ErrProcessFailed is wrapped by every runner error: the executable could not be
// started, exited non-zero, timed out, or its pipes failed.
var ErrProcessFailed = errors.New("process failed")

// DefaultWaitDelay bounds how long pipes may stay open after the process is killed.
const DefaultWaitDelay = 2 * time.Second

// Command is a fully rendered invocation.
type Command struct {
	Path           string
	Args           []string // Passed as argv, never through a shell
	Stdin          []byte
	Timeout        time.Duration // Zero means no limit beyond ctx
	MaxOutputBytes int
}

// Result is what a finished process left behind.
type Result struct {
	ExitCode    int
	Stdout      string
	Stderr      string
	StdoutLines int // Newline-terminated lines written, including dropped ones
	StdoutBytes int // Bytes written to stdout, including dropped ones
	Duration    time.Duration
	Truncated   bool // Whether stdout or stderr exceeded the capture limit
}

// Runner executes one external process per call.
type Runner interface {
	// Run blocks until the process exits. A non-nil error wraps ErrProcessFailed;
	// the Result is still returned when the process got far enough to produce one.
	Run(ctx context.Context, cmd Command) (*Result, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct {
	// WaitDelay is applied to each exec.Cmd so a killed process cannot hold
	// its pipes open indefinitely.
	WaitDelay time.Duration
}

// NewExecRunner creates a runner with default settings
func NewExecRunner() *ExecRunner {
	return &ExecRunner{WaitDelay: DefaultWaitDelay}
}

// Run starts the command, writes stdin fully, captures output and waits for exit.
func (r *ExecRunner) Run(ctx context.Context, c Command) (*Result, error) {
	if c.Path == "" {
		return nil, fmt.Errorf("%w: command cannot be empty", ErrProcessFailed)
	}

	if c.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, c.Path, c.Args...)
	cmd.Stdin = bytes.NewReader(c.Stdin)
	cmd.WaitDelay = r.WaitDelay

	stdout := newOutputCollector(c.MaxOutputBytes)
	stderr := newOutputCollector(c.MaxOutputBytes)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	start := time.Now()
	runErr := cmd.Run()

	lines, written, stdoutTruncated := stdout.Stats()
	_, _, stderrTruncated := stderr.Stats()

	result := &Result{
		Stdout:      stdout.String(),
		Stderr:      stderr.String(),
		StdoutLines: lines,
		StdoutBytes: written,
		Duration:    time.Since(start),
		Truncated:   stdoutTruncated || stderrTruncated,
	}

	if runErr == nil {
		return result, nil
	}

	result.ExitCode = -1

	var exitErr *exec.ExitError
	switch {
	case ctx.Err() != nil:
		// Killed by us: report the cause rather than the signal
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: %s timed out after %s", ErrProcessFailed, c.Path, c.Timeout)
		}
		return result, fmt.Errorf("%w: %s cancelled: %v", ErrProcessFailed, c.Path, ctx.Err())
	case errors.As(runErr, &exitErr):
		result.ExitCode = exitErr.ExitCode()
		return result, fmt.Errorf("%w: %s exited with code %d", ErrProcessFailed, c.Path, result.ExitCode)
	case cmd.Process == nil:
		// Never started: not found, not executable, bad working directory
		return nil, fmt.Errorf("%w: failed to start %s: %v", ErrProcessFailed, c.Path, runErr)
	default:
		return result, fmt.Errorf("%w: %s: %v", ErrProcessFailed, c.Path, runErr)
	}
}
