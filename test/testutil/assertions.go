// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// AssertNotRun verifies that no process was started.
func AssertNotRun(t *testing.T, runner *MockRunner) {
	t.Helper()
	runner.AssertNotCalled(t, "Run", mock.Anything, mock.Anything)
}

// AssertCommandCount checks how many commands a capture has seen.
func AssertCommandCount(t *testing.T, capture *CommandCapture, expected int) {
	t.Helper()
	assert.Len(t, capture.Commands(), expected)
}
