// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"bytes"
	"fmt"
	"sync"
)

// DefaultMaxOutputBytes limits captured output per stream when a Spec sets no limit (10MB)
const DefaultMaxOutputBytes = 10 * 1024 * 1024

// outputCollector captures one process stream with:
// - Output size limiting
// - Line counting for logs
// - Thread-safe access to collected data
type outputCollector struct {
	mu         sync.Mutex
	output     bytes.Buffer
	limit      int
	lineCount  int  // Number of newline-terminated lines seen
	totalBytes int  // Total bytes received (even if truncated)
	truncated  bool // Whether we hit the size limit
}

// newOutputCollector creates a collector keeping at most limit bytes
func newOutputCollector(limit int) *outputCollector {
	if limit <= 0 {
		limit = DefaultMaxOutputBytes
	}
	return &outputCollector{limit: limit}
}

// Write implements io.Writer. It never fails so the process is not blocked
// on a full pipe once the limit is reached.
func (c *outputCollector) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.totalBytes += len(p)
	c.lineCount += bytes.Count(p, []byte{'\n'})

	if c.truncated {
		return len(p), nil
	}

	room := c.limit - c.output.Len()
	if len(p) > room {
		c.output.Write(p[:room])
		c.truncated = true
		return len(p), nil
	}

	c.output.Write(p)
	return len(p), nil
}

// Stats returns current statistics
func (c *outputCollector) Stats() (lineCount, totalBytes int, truncated bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lineCount, c.totalBytes, c.truncated
}

// String returns the collected output
func (c *outputCollector) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.output.String()
}

// truncateString truncates a string to maxLen characters, adding "..." if truncated
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// formatCommandForLogging creates a short preview of the command for logging
func formatCommandForLogging(path string, args []string) string {
	if path == "" {
		return "<empty>"
	}

	preview := path
	for i := 0; i < len(args) && i < 3; i++ {
		preview += " " + truncateString(args[i], 50)
	}
	if len(args) > 3 {
		preview += fmt.Sprintf(" [+%d more args]", len(args)-3)
	}

	return truncateString(preview, 200)
}
