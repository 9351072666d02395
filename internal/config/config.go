// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// AppConfig holds all application configuration.
// It is instantiated by NewConfig() and passed to components that need it (dependency injection).
type AppConfig struct {
	Matrix  MatrixConfig  `mapstructure:"matrix" yaml:"matrix"`
	Exec    ExecConfig    `mapstructure:"exec" yaml:"exec"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
	Tracing TracingConfig `mapstructure:"tracing" yaml:"tracing"`
}

// MatrixConfig holds the homeserver identity settings.
type MatrixConfig struct {
	Domain string `mapstructure:"domain" yaml:"domain"`
}

// ExecConfig holds the external program backends.
type ExecConfig struct {
	Timeout        time.Duration   `mapstructure:"timeout" yaml:"timeout"`                   // Applied to processes without their own timeout
	MaxOutputBytes int             `mapstructure:"max_output_bytes" yaml:"max_output_bytes"` // Per stream capture limit
	Directory      DirectoryConfig `mapstructure:"directory" yaml:"directory"`
	Identity       IdentityConfig  `mapstructure:"identity" yaml:"identity"`
}

// ProcessConfig describes how to invoke and interpret one external program.
type ProcessConfig struct {
	Command        string        `mapstructure:"command" yaml:"command"`
	Args           []string      `mapstructure:"args" yaml:"args"` // May contain tokens
	Timeout        time.Duration `mapstructure:"timeout" yaml:"timeout"`
	MaxOutputBytes int           `mapstructure:"max_output_bytes" yaml:"max_output_bytes"`
	Input          InputConfig   `mapstructure:"input" yaml:"input"`
	Output         OutputConfig  `mapstructure:"output" yaml:"output"`
}

// InputConfig defines what gets written to the process stdin.
type InputConfig struct {
	Type     string `mapstructure:"type" yaml:"type"`         // "json" or "plain"
	Template string `mapstructure:"template" yaml:"template"` // Plain body template, empty uses the built-in one
}

// OutputConfig defines how process stdout is interpreted.
type OutputConfig struct {
	Type string `mapstructure:"type" yaml:"type"` // "json" or "plain"
}

// DirectoryConfig holds the user directory backend.
type DirectoryConfig struct {
	Enabled bool                  `mapstructure:"enabled" yaml:"enabled"`
	Search  DirectorySearchConfig `mapstructure:"search" yaml:"search"`
}

// DirectorySearchConfig holds one process per search kind.
type DirectorySearchConfig struct {
	ByName     DirectoryProcessConfig `mapstructure:"by_name" yaml:"by_name"`
	ByThreepid DirectoryProcessConfig `mapstructure:"by_threepid" yaml:"by_threepid"` // Inherits by_name when its command is empty
}

// DirectoryProcessConfig is a search process plus its token names.
type DirectoryProcessConfig struct {
	ProcessConfig `mapstructure:",squash" yaml:",inline"`
	Token         DirectoryTokens `mapstructure:"token" yaml:"token"`
}

// DirectoryTokens names the placeholders for search requests.
type DirectoryTokens struct {
	Type  string `mapstructure:"type" yaml:"type"`
	Query string `mapstructure:"query" yaml:"query"`
}

// IdentityConfig holds the 3PID lookup backend.
type IdentityConfig struct {
	Enabled bool         `mapstructure:"enabled" yaml:"enabled"`
	Lookup  LookupConfig `mapstructure:"lookup" yaml:"lookup"`
}

// LookupConfig holds the single lookup process.
type LookupConfig struct {
	Single LookupProcessConfig `mapstructure:"single" yaml:"single"`
}

// LookupProcessConfig is a lookup process plus its token names.
type LookupProcessConfig struct {
	ProcessConfig `mapstructure:",squash" yaml:",inline"`
	Token         LookupTokens `mapstructure:"token" yaml:"token"`
}

// LookupTokens names the placeholders for lookup requests.
type LookupTokens struct {
	Medium  string `mapstructure:"medium" yaml:"medium"`
	Address string `mapstructure:"address" yaml:"address"`
}

// ServerConfig holds server configuration.
type ServerConfig struct {
	Host           string   `mapstructure:"host" yaml:"host"`
	Port           int      `mapstructure:"port" yaml:"port"`
	AllowedOrigins []string      `mapstructure:"allowed_origins" yaml:"allowed_origins"` // Empty = allow all
	WriteTimeout   time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`     // Zero = derived from process timeouts
}

// writeTimeoutMargin covers encoding and flushing after the last process exits.
const writeTimeoutMargin = 15 * time.Second

// TracingConfig holds OpenTelemetry export settings.
type TracingConfig struct {
	Enabled     bool   `mapstructure:"enabled" yaml:"enabled"`
	Endpoint    string `mapstructure:"endpoint" yaml:"endpoint"` // OTLP/HTTP host:port
	Insecure    bool   `mapstructure:"insecure" yaml:"insecure"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
}

// LogConfig holds comprehensive logging configuration
type LogConfig struct {
	Level    string            `mapstructure:"level" yaml:"level"`
	Format   string            `mapstructure:"format" yaml:"format"`
	Output   []LogOutputConfig `mapstructure:"output" yaml:"output"`
	Levels   map[string]string `mapstructure:"levels" yaml:"levels"`
	Context  LogContextConfig  `mapstructure:"context" yaml:"context"`
	Sampling LogSamplingConfig `mapstructure:"sampling" yaml:"sampling"`
}

// LogOutputConfig defines where logs are written
type LogOutputConfig struct {
	Type    string          `mapstructure:"type" yaml:"type"` // "file", "console"
	Enabled bool            `mapstructure:"enabled" yaml:"enabled"`
	Path    string          `mapstructure:"path" yaml:"path"`     // For file output
	Rotate  LogRotateConfig `mapstructure:"rotate" yaml:"rotate"` // For file output
}

// LogRotateConfig defines log rotation settings
type LogRotateConfig struct {
	MaxSizeMB  int  `mapstructure:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int  `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAgeDays int  `mapstructure:"max_age_days" yaml:"max_age_days"`
	Compress   bool `mapstructure:"compress" yaml:"compress"`
}

// LogContextConfig defines what context to include in logs
type LogContextConfig struct {
	IncludeCaller     bool   `mapstructure:"include_caller" yaml:"include_caller"`
	IncludeTimestamp  bool   `mapstructure:"include_timestamp" yaml:"include_timestamp"`
	IncludeStackTrace string `mapstructure:"include_stack_trace" yaml:"include_stack_trace"`
}

// LogSamplingConfig defines log sampling settings
type LogSamplingConfig struct {
	Enabled    bool          `mapstructure:"enabled" yaml:"enabled"`
	Initial    uint32        `mapstructure:"initial" yaml:"initial"`
	Thereafter uint32        `mapstructure:"thereafter" yaml:"thereafter"`
	Tick       time.Duration `mapstructure:"tick" yaml:"tick"`
}

var envKeys = []string{
	"matrix.domain",
	"exec.timeout",
	"exec.directory.enabled",
	"exec.directory.search.by_name.command",
	"exec.directory.search.by_threepid.command",
	"exec.identity.enabled",
	"exec.identity.lookup.single.command",
	"server.host",
	"server.port",
	"server.write_timeout",
	"log.level",
	"tracing.enabled",
	"tracing.endpoint",
}

// NewConfig creates a new AppConfig by reading from a file, environment variables,
// and applying defaults.
func NewConfig(configPath string) (*AppConfig, error) {
	cfg := defaultConfig()

	v := viper.New()

	// Set config file if provided, otherwise search in standard locations
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("idexec")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/idexec/")
		v.AddConfigPath("$HOME/.idexec")
	}

	v.SetEnvPrefix("IDEXEC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only resolves keys viper already knows about
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind env for %s: %w", key, err)
		}
	}

	// Read the config file. It's okay if it doesn't exist.
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !(configPath != "" && errors.Is(err, os.ErrNotExist)) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(&cfg, viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	cfg.expandPaths()
	cfg.applyProcessDefaults()
	cfg.applyServerDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// defaultConfig returns an AppConfig with default values.
func defaultConfig() AppConfig {
	return AppConfig{
		Exec: ExecConfig{
			Timeout:        30 * time.Second,
			MaxOutputBytes: 10 * 1024 * 1024,
			Directory: DirectoryConfig{
				Enabled: true,
				Search: DirectorySearchConfig{
					ByName:     defaultDirectoryProcess(),
					ByThreepid: defaultDirectoryProcess(),
				},
			},
			Identity: IdentityConfig{
				Enabled: true,
				Lookup: LookupConfig{
					Single: LookupProcessConfig{
						ProcessConfig: defaultProcess(),
						Token: LookupTokens{
							Medium:  "{medium}",
							Address: "{address}",
						},
					},
				},
			},
		},
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
		Log: LogConfig{
			Level:  "INFO",
			Format: "console",
			Output: []LogOutputConfig{
				{
					Type:    "console",
					Enabled: true,
				},
				{
					Type:    "file",
					Enabled: false,
					Path:    "./logs/idexec.log",
					Rotate: LogRotateConfig{
						MaxSizeMB:  100,
						MaxBackups: 7,
						MaxAgeDays: 30,
						Compress:   true,
					},
				},
			},
			Levels: map[string]string{
				"exec":      "INFO",
				"directory": "INFO",
				"lookup":    "INFO",
				"api":       "INFO",
				"telemetry": "WARN",
			},
			Context: LogContextConfig{
				IncludeCaller:     false,
				IncludeTimestamp:  true,
				IncludeStackTrace: "ERROR",
			},
			Sampling: LogSamplingConfig{
				Enabled:    false,
				Initial:    100,
				Thereafter: 100,
				Tick:       time.Second,
			},
		},
		Tracing: TracingConfig{
			Enabled:     false,
			Endpoint:    "localhost:4318",
			Insecure:    true,
			ServiceName: "idexec",
		},
	}
}

func defaultProcess() ProcessConfig {
	return ProcessConfig{
		Input:  InputConfig{Type: "json"},
		Output: OutputConfig{Type: "json"},
	}
}

func defaultDirectoryProcess() DirectoryProcessConfig {
	return DirectoryProcessConfig{
		ProcessConfig: defaultProcess(),
		Token: DirectoryTokens{
			Type:  "{type}",
			Query: "{query}",
		},
	}
}

// expandPaths expands ~ and environment variables in command and log paths
func (c *AppConfig) expandPaths() {
	c.Exec.Directory.Search.ByName.Command = expandPath(c.Exec.Directory.Search.ByName.Command)
	c.Exec.Directory.Search.ByThreepid.Command = expandPath(c.Exec.Directory.Search.ByThreepid.Command)
	c.Exec.Identity.Lookup.Single.Command = expandPath(c.Exec.Identity.Lookup.Single.Command)

	for i := range c.Log.Output {
		c.Log.Output[i].Path = expandPath(c.Log.Output[i].Path)
	}
}

// expandPath expands ~ to home directory and environment variables
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if strings.HasPrefix(path, "~") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			path = filepath.Join(homeDir, path[1:])
		}
	}

	return os.ExpandEnv(path)
}

// applyProcessDefaults fills per-process settings from the exec section.
// A threepid search without its own command reuses the name search process.
func (c *AppConfig) applyProcessDefaults() {
	search := &c.Exec.Directory.Search
	if search.ByThreepid.Command == "" {
		search.ByThreepid = search.ByName
		search.ByThreepid.Args = append([]string(nil), search.ByName.Args...)
	}

	for _, p := range []*ProcessConfig{
		&search.ByName.ProcessConfig,
		&search.ByThreepid.ProcessConfig,
		&c.Exec.Identity.Lookup.Single.ProcessConfig,
	} {
		if p.Timeout <= 0 {
			p.Timeout = c.Exec.Timeout
		}
		if p.MaxOutputBytes <= 0 {
			p.MaxOutputBytes = c.Exec.MaxOutputBytes
		}
		p.Input.Type = strings.ToLower(strings.TrimSpace(p.Input.Type))
		p.Output.Type = strings.ToLower(strings.TrimSpace(p.Output.Type))
		if p.Input.Type == "" {
			p.Input.Type = "json"
		}
		if p.Output.Type == "" {
			p.Output.Type = "json"
		}
	}
}

// applyServerDefaults derives the response write deadline from the slowest
// request path. A merged directory search runs both search processes one
// after the other, so their timeouts add up.
func (c *AppConfig) applyServerDefaults() {
	if c.Server.WriteTimeout > 0 {
		return
	}
	search := c.Exec.Directory.Search
	slowest := max(search.ByName.Timeout+search.ByThreepid.Timeout, c.Exec.Identity.Lookup.Single.Timeout)
	c.Server.WriteTimeout = slowest + writeTimeoutMargin
}

// validate checks if the configuration is valid.
func (c *AppConfig) validate() error {
	if c.Matrix.Domain == "" {
		return errors.New("matrix.domain is required")
	}

	validLogLevels := map[string]bool{
		"TRACE": true, "DEBUG": true, "INFO": true, "WARN": true, "ERROR": true, "FATAL": true, "PANIC": true,
	}
	if !validLogLevels[strings.ToUpper(c.Log.Level)] {
		return fmt.Errorf("invalid log level: %s", c.Log.Level)
	}

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	processes := map[string]ProcessConfig{
		"exec.directory.search.by_name":     c.Exec.Directory.Search.ByName.ProcessConfig,
		"exec.directory.search.by_threepid": c.Exec.Directory.Search.ByThreepid.ProcessConfig,
		"exec.identity.lookup.single":       c.Exec.Identity.Lookup.Single.ProcessConfig,
	}
	for name, p := range processes {
		if err := p.validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}

	if c.Tracing.Enabled && c.Tracing.Endpoint == "" {
		return errors.New("tracing.endpoint is required when tracing is enabled")
	}

	return nil
}

func (p ProcessConfig) validate() error {
	if !isContentType(p.Input.Type) {
		return fmt.Errorf("input.type must be 'json' or 'plain', got: %s", p.Input.Type)
	}
	if !isContentType(p.Output.Type) {
		return fmt.Errorf("output.type must be 'json' or 'plain', got: %s", p.Output.Type)
	}
	if p.Timeout < 0 {
		return fmt.Errorf("invalid timeout: %s", p.Timeout)
	}
	return nil
}

func isContentType(t string) bool {
	return t == "json" || t == "plain"
}
