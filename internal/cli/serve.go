// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	"github.com/noldarim/idexec/internal/logger"
	"github.com/noldarim/idexec/internal/server"
)

func serveCommand(args []string) error {
	var (
		configPath string
		host       string
		port       int
	)
	fs := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	fs.StringVar(&host, "host", "", "Listen address (overrides server.host)")
	fs.IntVar(&port, "port", 0, "Listen port (overrides server.port)")
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if host != "" {
		a.cfg.Server.Host = host
	}
	if port != 0 {
		a.cfg.Server.Port = port
	}

	mainLog := logger.GetLogger("main")
	mainLog.Info().
		Str("domain", a.cfg.Matrix.Domain).
		Bool("directory", a.directory.IsEnabled()).
		Bool("identity", a.identity.IsEnabled()).
		Msg("Starting idexec API server")

	srv := server.New(&a.cfg.Server, a.directory, a.identity)

	serverErrChan := make(chan error, 1)
	go func() {
		serverErrChan <- srv.Run(ctx)
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var runErr error
	select {
	case sig := <-sigChan:
		mainLog.Info().Msgf("Received signal %v, shutting down...", sig)
	case runErr = <-serverErrChan:
		if runErr != nil {
			mainLog.Error().Err(runErr).Msg("Server error")
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		mainLog.Error().Err(err).Msg("Error shutting down server")
	}
	// Kill any process still running for an abandoned request
	cancel()

	mainLog.Info().Msg("API server shut down")
	return runErr
}
