// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"context"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// =============================================================================
// Unit Tests for outputCollector
// =============================================================================

func TestOutputCollector_BasicWrite(t *testing.T) {
	c := newOutputCollector(0)

	n, err := c.Write([]byte("hello world\n"))
	require.NoError(t, err)
	assert.Equal(t, 12, n)

	lines, total, truncated := c.Stats()
	assert.Equal(t, 1, lines)
	assert.Equal(t, 12, total)
	assert.False(t, truncated)
	assert.Equal(t, "hello world\n", c.String())
}

func TestOutputCollector_PartialLine(t *testing.T) {
	c := newOutputCollector(0)

	c.Write([]byte("hello "))
	c.Write([]byte("world"))

	lines, _, _ := c.Stats()
	assert.Equal(t, 0, lines)
	assert.Equal(t, "hello world", c.String())
}

func TestOutputCollector_SizeLimit(t *testing.T) {
	c := newOutputCollector(10)

	n, err := c.Write([]byte("0123456789abcdef"))
	require.NoError(t, err)
	assert.Equal(t, 16, n, "writes always report full length")

	c.Write([]byte("more\n"))

	lines, total, truncated := c.Stats()
	assert.True(t, truncated)
	assert.Equal(t, 21, total)
	assert.Equal(t, 1, lines)
	assert.Equal(t, "0123456789", c.String())
}

func TestOutputCollector_ConcurrentWrites(t *testing.T) {
	c := newOutputCollector(0)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Write([]byte("line\n"))
		}()
	}
	wg.Wait()

	lines, _, _ := c.Stats()
	assert.Equal(t, 100, lines)
}

// =============================================================================
// Unit Tests for helper functions
// =============================================================================

func TestTruncateString(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		maxLen   int
		expected string
	}{
		{"short string", "hello", 10, "hello"},
		{"exact length", "hello", 5, "hello"},
		{"needs truncation", "hello world", 8, "hello..."},
		{"very short max", "hello", 3, "hel"},
		{"empty string", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, truncateString(tt.input, tt.maxLen))
		})
	}
}

func TestFormatCommandForLogging(t *testing.T) {
	assert.Equal(t, "<empty>", formatCommandForLogging("", nil))
	assert.Equal(t, "search name bob", formatCommandForLogging("search", []string{"name", "bob"}))
	assert.Contains(t, formatCommandForLogging("cmd", []string{"a", "b", "c", "d", "e"}), "+2 more args")
	assert.Contains(t, formatCommandForLogging("cmd", []string{strings.Repeat("x", 100)}), "...")
}

// =============================================================================
// ExecRunner against real processes
// =============================================================================

func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("requires a POSIX shell")
	}
}

func TestExecRunner_CapturesStdout(t *testing.T) {
	requireShell(t)

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path: "echo",
		Args: []string{"hello", "{not a shell}"},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hello {not a shell}\n", res.Stdout)
	assert.Equal(t, 1, res.StdoutLines)
	assert.Equal(t, len(res.Stdout), res.StdoutBytes)
	assert.False(t, res.Truncated)
}

func TestExecRunner_WritesStdin(t *testing.T) {
	requireShell(t)

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path:  "cat",
		Stdin: []byte("name\nalice"),
	})
	require.NoError(t, err)
	assert.Equal(t, "name\nalice", res.Stdout)
}

func TestExecRunner_IgnoredStdin(t *testing.T) {
	requireShell(t)

	// The process never reads its input
	res, err := NewExecRunner().Run(context.Background(), Command{
		Path:  "true",
		Stdin: []byte(strings.Repeat("x", 1<<20)),
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	requireShell(t)

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path: "sh",
		Args: []string{"-c", `echo '{"results":[]}'; echo oops >&2; exit 3`},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.Contains(t, err.Error(), "exited with code 3")

	require.NotNil(t, res)
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "oops\n", res.Stderr)
	assert.Contains(t, res.Stdout, "results")
}

func TestExecRunner_NotFound(t *testing.T) {
	res, err := NewExecRunner().Run(context.Background(), Command{
		Path: "/nonexistent/idexec-backend",
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.Nil(t, res)
}

func TestExecRunner_EmptyCommand(t *testing.T) {
	_, err := NewExecRunner().Run(context.Background(), Command{})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
}

func TestExecRunner_Timeout(t *testing.T) {
	requireShell(t)

	start := time.Now()
	res, err := NewExecRunner().Run(context.Background(), Command{
		Path:    "sleep",
		Args:    []string{"5"},
		Timeout: 100 * time.Millisecond,
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProcessFailed)
	assert.Contains(t, err.Error(), "timed out")
	assert.Less(t, time.Since(start), 4*time.Second)

	require.NotNil(t, res)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecRunner_Cancelled(t *testing.T) {
	requireShell(t)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	_, err := NewExecRunner().Run(ctx, Command{Path: "sleep", Args: []string{"5"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cancelled")
}

func TestExecRunner_TruncatesOutput(t *testing.T) {
	requireShell(t)

	res, err := NewExecRunner().Run(context.Background(), Command{
		Path:           "sh",
		Args:           []string{"-c", "head -c 4096 /dev/zero"},
		MaxOutputBytes: 1024,
	})
	require.NoError(t, err)
	assert.True(t, res.Truncated)
	assert.Len(t, res.Stdout, 1024)
	assert.Equal(t, 4096, res.StdoutBytes, "dropped bytes are still counted")
}

// =============================================================================
// Benchmark tests
// =============================================================================

func BenchmarkOutputCollector_Write(b *testing.B) {
	c := newOutputCollector(0)
	data := []byte("This is a line of output that will be written repeatedly\n")

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Write(data)
	}
}
