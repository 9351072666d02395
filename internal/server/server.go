// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package server exposes the directory and lookup stores over HTTP.
package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/noldarim/idexec/internal/config"
	"github.com/noldarim/idexec/internal/directory"
	"github.com/noldarim/idexec/internal/logger"
	"github.com/noldarim/idexec/internal/lookup"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetAPILogger()
		log = &l
	})
	return log
}

// DirectorySearcher is the user directory as seen by the API.
type DirectorySearcher interface {
	IsEnabled() bool
	Search(ctx context.Context, term string) (*directory.SearchResult, error)
}

// IdentityResolver is the 3PID lookup as seen by the API.
type IdentityResolver interface {
	IsEnabled() bool
	Find(ctx context.Context, medium, address string) (*lookup.Mapping, error)
}

// defaultWriteTimeout applies when the config did not derive one.
const defaultWriteTimeout = 2 * time.Minute

// maxBodyBytes caps request bodies; a search request is a few hundred bytes.
const maxBodyBytes = 64 << 10

// Server is the HTTP API server.
type Server struct {
	httpServer *http.Server
}

// New creates and wires up the API server. It does NOT start listening;
// call Run() for that.
func New(cfg *config.ServerConfig, dir DirectorySearcher, ids IdentityResolver) *Server {
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = defaultWriteTimeout
	}

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
			Handler:           NewRouter(cfg, NewHandlers(dir, ids)),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       15 * time.Second,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       60 * time.Second,
		},
	}
}

// NewRouter builds the route table.
func NewRouter(cfg *config.ServerConfig, h *Handlers) http.Handler {
	r := chi.NewRouter()

	// RequestID first so every later layer logs through the request logger,
	// and Logger outside Recovery so recovered panics show up as 500s.
	r.Use(RequestID)
	r.Use(Logger)
	r.Use(Recovery)
	r.Use(CORS(cfg.AllowedOrigins))
	r.Use(MaxBodySize(maxBodyBytes))

	r.Get("/health", h.Health)
	r.Post("/_matrix/client/r0/user_directory/search", h.SearchUsers)
	r.Get("/_matrix/identity/api/v1/lookup", h.Lookup)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, errNotFound, "No resource was found for this request")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, errUnrecognized, "Unsupported method")
	})

	return r
}

// Run serves until Shutdown is called. Request contexts derive from ctx, so
// cancelling it also stops in-flight processes.
func (s *Server) Run(ctx context.Context) error {
	s.httpServer.BaseContext = func(net.Listener) context.Context { return ctx }

	getLog().Info().Str("addr", s.httpServer.Addr).Msg("API server listening")
	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
