// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noldarim/idexec/internal/config"
)

func TestNewManager(t *testing.T) {
	tests := []struct {
		name     string
		config   *config.LogConfig
		errorMsg string
	}{
		{
			name: "console output",
			config: &config.LogConfig{
				Level:  "info",
				Format: "json",
				Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
			},
		},
		{
			name: "file output",
			config: &config.LogConfig{
				Level:  "debug",
				Format: "json",
				Output: []config.LogOutputConfig{
					{Type: "file", Enabled: true, Path: filepath.Join(t.TempDir(), "test.log")},
				},
				Context: config.LogContextConfig{IncludeTimestamp: true, IncludeCaller: true},
			},
		},
		{
			name: "file output with console format",
			config: &config.LogConfig{
				Level:  "info",
				Format: "console",
				Output: []config.LogOutputConfig{
					{Type: "file", Enabled: true, Path: filepath.Join(t.TempDir(), "console.log")},
				},
			},
		},
		{
			name: "unsupported output",
			config: &config.LogConfig{
				Level:  "info",
				Output: []config.LogOutputConfig{{Type: "syslog", Enabled: true}},
			},
			errorMsg: "unsupported output type: syslog",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			manager, err := NewManager(tt.config)
			if tt.errorMsg != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
				return
			}
			require.NoError(t, err)
			defer manager.Close()

			logger := manager.GetLogger("exec")
			logger.Info().Msg("hello")
		})
	}
}

func TestManager_FallbackBehavior(t *testing.T) {
	tempDir := t.TempDir()
	originalDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(tempDir))
	defer os.Chdir(originalDir)

	manager, err := NewManager(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "console", Enabled: false}},
	})
	require.NoError(t, err)
	defer manager.Close()

	_, err = os.Stat(filepath.Join(tempDir, "logs", "idexec-fallback.log"))
	assert.NoError(t, err, "fallback log file was not created")
	assert.Len(t, manager.closers, 1)
}

func TestManager_PackageLevels(t *testing.T) {
	originalLevel := zerolog.GlobalLevel()
	defer zerolog.SetGlobalLevel(originalLevel)

	path := filepath.Join(t.TempDir(), "levels.log")
	manager, err := NewManager(&config.LogConfig{
		Level:  "trace",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "file", Enabled: true, Path: path}},
		Levels: map[string]string{"exec": "warn"},
	})
	require.NoError(t, err)

	execLog := manager.GetLogger("exec")
	execLog.Info().Msg("dropped")
	execLog.Warn().Msg("kept")

	apiLog := manager.GetLogger("api")
	apiLog.Debug().Msg("api debug")

	require.NoError(t, manager.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)

	var lines []map[string]interface{}
	for _, line := range strings.Split(strings.TrimSpace(string(content)), "\n") {
		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		lines = append(lines, entry)
	}

	require.Len(t, lines, 2)
	assert.Equal(t, "kept", lines[0]["message"])
	assert.Equal(t, "exec", lines[0]["pkg"])
	assert.Equal(t, "api debug", lines[1]["message"])
	assert.Equal(t, "api", lines[1]["pkg"])
}

func TestManager_SetPackageLevel(t *testing.T) {
	manager, err := NewManager(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
	})
	require.NoError(t, err)
	defer manager.Close()

	before := manager.GetLogger("lookup")
	assert.Equal(t, zerolog.InfoLevel, before.GetLevel())

	manager.SetPackageLevel("lookup", "error")
	after := manager.GetLogger("lookup")
	assert.Equal(t, zerolog.ErrorLevel, after.GetLevel())
	assert.Equal(t, "error", manager.config.Levels["lookup"])
}

func TestManager_ThreadSafety(t *testing.T) {
	manager, err := NewManager(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{{Type: "console", Enabled: true}},
	})
	require.NoError(t, err)
	defer manager.Close()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			pkgs := []string{"exec", "directory", "lookup", "api"}
			l := manager.GetLogger(pkgs[n%len(pkgs)])
			l.Debug().Int("n", n).Msg("concurrent")
		}(i)
	}
	wg.Wait()

	manager.mu.RLock()
	defer manager.mu.RUnlock()
	assert.Len(t, manager.packageLoggers, 4)
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		input string
		want  zerolog.Level
	}{
		{"trace", zerolog.TraceLevel},
		{"DEBUG", zerolog.DebugLevel},
		{"info", zerolog.InfoLevel},
		{"warning", zerolog.WarnLevel},
		{"WARN", zerolog.WarnLevel},
		{"error", zerolog.ErrorLevel},
		{"fatal", zerolog.FatalLevel},
		{"panic", zerolog.PanicLevel},
		{"bogus", zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, parseLevel(tt.input))
		})
	}
}

func TestLumberjackRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rotating.log")

	manager, err := NewManager(&config.LogConfig{
		Level:  "info",
		Format: "json",
		Output: []config.LogOutputConfig{
			{
				Type:    "file",
				Enabled: true,
				Path:    path,
				Rotate:  config.LogRotateConfig{MaxSizeMB: 1, MaxBackups: 3, MaxAgeDays: 1},
			},
		},
	})
	require.NoError(t, err)

	logger := manager.GetLogger("exec")
	for i := 0; i < 1000; i++ {
		logger.Info().Int("iteration", i).Msg("test message for rotation testing")
	}
	require.NoError(t, manager.Close())

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, content)
}

func TestGetLogger_Uninitialized(t *testing.T) {
	original := globalManager
	globalManager = nil
	defer func() { globalManager = original }()

	var buf bytes.Buffer
	logger := GetLogger("exec").Output(&buf)
	logger.Info().Msg("still works")
	assert.Contains(t, buf.String(), "still works")

	// The default logger itself writes nowhere
	assert.NotPanics(t, func() {
		l := GetExecLogger()
		l.Error().Msg("discarded")
	})
}
