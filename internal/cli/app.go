// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/noldarim/idexec/internal/config"
	"github.com/noldarim/idexec/internal/directory"
	"github.com/noldarim/idexec/internal/logger"
	"github.com/noldarim/idexec/internal/lookup"
	"github.com/noldarim/idexec/internal/processor"
	"github.com/noldarim/idexec/internal/telemetry"
)

// app is the wired set of stores shared by serve, search and lookup.
type app struct {
	cfg       *config.AppConfig
	directory *directory.Store
	identity  *lookup.Store
	shutdown  telemetry.ShutdownFunc
}

func newApp(ctx context.Context, configPath string) (*app, error) {
	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	if err := logger.Initialize(&cfg.Log); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}

	shutdown, err := telemetry.Setup(ctx, cfg.Tracing)
	if err != nil {
		return nil, err
	}

	runner := processor.NewExecRunner()

	dir, err := directory.NewStore(cfg.Exec.Directory, cfg.Matrix.Domain, runner)
	if err != nil {
		return nil, fmt.Errorf("failed to create directory store: %w", err)
	}
	ids, err := lookup.NewStore(cfg.Exec.Identity, cfg.Matrix.Domain, runner)
	if err != nil {
		return nil, fmt.Errorf("failed to create lookup store: %w", err)
	}

	return &app{cfg: cfg, directory: dir, identity: ids, shutdown: shutdown}, nil
}

func (a *app) Close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.shutdown(ctx); err != nil {
		mainLog := logger.GetLogger("main")
		mainLog.Warn().Err(err).Msg("Failed to flush traces")
	}
	logger.CloseGlobal()
}
