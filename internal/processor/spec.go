// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package processor bridges typed requests and external programs. A call renders
// the request into an argument vector and stdin payload, runs a freshly started
// process, decodes its stdout and falls back to a caller-declared default when
// the process is unconfigured, fails, or produces unusable output.
package processor

import (
	"fmt"
	"runtime"
	"strings"
	"time"

	"github.com/noldarim/idexec/internal/config"
)

// ContentType selects the encoding used for process input or output.
type ContentType string

const (
	ContentTypeJSON  ContentType = "json"
	ContentTypePlain ContentType = "plain"
)

// ParseContentType converts a configured type name, case-insensitively.
func ParseContentType(s string) (ContentType, error) {
	switch ContentType(strings.ToLower(strings.TrimSpace(s))) {
	case ContentTypeJSON, "":
		return ContentTypeJSON, nil
	case ContentTypePlain:
		return ContentTypePlain, nil
	default:
		return "", fmt.Errorf("unsupported content type: %q (supported: json, plain)", s)
	}
}

// LineSeparator joins logical fields of plain payloads.
var LineSeparator = lineSeparator()

func lineSeparator() string {
	if runtime.GOOS == "windows" {
		return "\r\n"
	}
	return "\n"
}

// Lines joins values with LineSeparator.
func Lines(values ...string) string {
	return strings.Join(values, LineSeparator)
}

// Spec describes how to invoke and interpret one external program.
// It is immutable after construction and safe to share between calls.
type Spec struct {
	Command        string
	Args           []string
	Input          InputSpec
	Output         OutputSpec
	Timeout        time.Duration
	MaxOutputBytes int
}

// InputSpec defines the stdin payload.
type InputSpec struct {
	Type     ContentType
	Template string // Plain body template; empty means the caller's default
}

// OutputSpec defines how stdout is decoded.
type OutputSpec struct {
	Type ContentType
}

// Configured reports whether there is a command to run.
func (s Spec) Configured() bool {
	return strings.TrimSpace(s.Command) != ""
}

// SpecFromConfig builds a Spec from validated process configuration.
func SpecFromConfig(c config.ProcessConfig) (Spec, error) {
	in, err := ParseContentType(c.Input.Type)
	if err != nil {
		return Spec{}, fmt.Errorf("input: %w", err)
	}
	out, err := ParseContentType(c.Output.Type)
	if err != nil {
		return Spec{}, fmt.Errorf("output: %w", err)
	}

	return Spec{
		Command:        c.Command,
		Args:           append([]string(nil), c.Args...),
		Input:          InputSpec{Type: in, Template: c.Input.Template},
		Output:         OutputSpec{Type: out},
		Timeout:        c.Timeout,
		MaxOutputBytes: c.MaxOutputBytes,
	}, nil
}
