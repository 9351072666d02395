// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package testutil holds helpers shared by store and CLI tests.
package testutil

import (
	"context"
	"sync"

	"github.com/stretchr/testify/mock"

	"github.com/noldarim/idexec/internal/processor"
)

// MockRunner records invocations instead of starting processes.
type MockRunner struct {
	mock.Mock
}

// NewMockRunner creates an empty runner mock.
func NewMockRunner() *MockRunner {
	return &MockRunner{}
}

func (m *MockRunner) Run(ctx context.Context, cmd processor.Command) (*processor.Result, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*processor.Result), args.Error(1)
}

// Answer expects any one call and replies with stdout and a zero exit code.
func (m *MockRunner) Answer(stdout string) *mock.Call {
	return m.On("Run", mock.Anything, mock.Anything).Return(&processor.Result{Stdout: stdout}, nil).Once()
}

// CommandCapture is a Runner that records every command and replies with a
// fixed result.
type CommandCapture struct {
	mu       sync.Mutex
	commands []processor.Command
	result   *processor.Result
	err      error
}

// NewCommandCapture creates a capture replying with result and err.
func NewCommandCapture(result *processor.Result, err error) *CommandCapture {
	return &CommandCapture{result: result, err: err}
}

func (c *CommandCapture) Run(_ context.Context, cmd processor.Command) (*processor.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.commands = append(c.commands, cmd)
	return c.result, c.err
}

// Commands returns a copy of everything run so far.
func (c *CommandCapture) Commands() []processor.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]processor.Command(nil), c.commands...)
}

// LastCommand returns the most recent command, or the zero Command.
func (c *CommandCapture) LastCommand() processor.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.commands) == 0 {
		return processor.Command{}
	}
	return c.commands[len(c.commands)-1]
}
