// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"github.com/rs/zerolog"
)

// Static logger getters that map directly to config log.levels
// These ensure consistent logger names across the codebase

// GetExecLogger returns a logger for external process execution
func GetExecLogger() zerolog.Logger {
	return GetLogger("exec")
}

// GetDirectoryLogger returns a logger for the user directory backend
func GetDirectoryLogger() zerolog.Logger {
	return GetLogger("directory")
}

// GetLookupLogger returns a logger for the 3PID lookup backend
func GetLookupLogger() zerolog.Logger {
	return GetLogger("lookup")
}

// GetAPILogger returns a logger for API operations
func GetAPILogger() zerolog.Logger {
	return GetLogger("api")
}

// GetTelemetryLogger returns a logger for tracing setup
func GetTelemetryLogger() zerolog.Logger {
	return GetLogger("telemetry")
}
