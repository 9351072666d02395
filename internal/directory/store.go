// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package directory searches users through an operator-supplied program.
package directory

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/noldarim/idexec/internal/config"
	"github.com/noldarim/idexec/internal/identity"
	"github.com/noldarim/idexec/internal/logger"
	"github.com/noldarim/idexec/internal/processor"
)

var (
	log     *zerolog.Logger
	logOnce sync.Once
)

func getLog() *zerolog.Logger {
	logOnce.Do(func() {
		l := logger.GetDirectoryLogger()
		log = &l
	})
	return log
}

// operation is one configured search process and its token names.
type operation struct {
	spec   processor.Spec
	tokens config.DirectoryTokens
}

// Store is the exec-backed user directory.
type Store struct {
	enabled    bool
	domain     string
	byName     operation
	byThreepid operation
	exec       *processor.Processor[*SearchResult]
}

// NewStore creates a directory store. Returned identifiers are normalized
// against domain.
func NewStore(cfg config.DirectoryConfig, domain string, runner processor.Runner) (*Store, error) {
	byName, err := newOperation(cfg.Search.ByName)
	if err != nil {
		return nil, fmt.Errorf("by_name: %w", err)
	}
	byThreepid, err := newOperation(cfg.Search.ByThreepid)
	if err != nil {
		return nil, fmt.Errorf("by_threepid: %w", err)
	}

	return &Store{
		enabled:    cfg.Enabled,
		domain:     domain,
		byName:     byName,
		byThreepid: byThreepid,
		exec:       processor.New[*SearchResult](runner),
	}, nil
}

func newOperation(cfg config.DirectoryProcessConfig) (operation, error) {
	spec, err := processor.SpecFromConfig(cfg.ProcessConfig)
	if err != nil {
		return operation{}, err
	}
	return operation{spec: spec, tokens: cfg.Token}, nil
}

// IsEnabled reports whether the directory backend is switched on. A disabled
// store answers every search with no results and starts no process.
func (s *Store) IsEnabled() bool {
	return s.enabled
}

// SearchByDisplayName searches users by display name.
func (s *Store) SearchByDisplayName(ctx context.Context, query string) (*SearchResult, error) {
	return s.search(ctx, s.byName, SearchRequest{By: ByName, SearchTerm: query})
}

// SearchByThreepid searches users by third-party identifier.
func (s *Store) SearchByThreepid(ctx context.Context, query string) (*SearchResult, error) {
	return s.search(ctx, s.byThreepid, SearchRequest{By: ByThreepid, SearchTerm: query})
}

// Search runs both searches and merges them, first occurrence of a user ID wins.
func (s *Store) Search(ctx context.Context, query string) (*SearchResult, error) {
	if !s.enabled {
		return Empty(), nil
	}

	byName, err := s.SearchByDisplayName(ctx, query)
	if err != nil {
		return nil, err
	}
	byThreepid, err := s.SearchByThreepid(ctx, query)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(byName.Results)+len(byThreepid.Results))
	results = append(results, byName.Results...)
	results = append(results, byThreepid.Results...)

	return &SearchResult{
		Limited: byName.Limited || byThreepid.Limited,
		Results: lo.UniqBy(results, func(r Result) string { return r.UserID }),
	}, nil
}

func (s *Store) search(ctx context.Context, op operation, req SearchRequest) (*SearchResult, error) {
	if !s.enabled || !op.spec.Configured() {
		return Empty(), nil
	}

	call := processor.Call[*SearchResult]{
		Input: processor.Input{
			JSON:  func() any { return req },
			Plain: func() string { return processor.Lines(req.By, req.SearchTerm) },
		},
		Tokens: processor.Tokens{
			op.tokens.Type:  func() string { return req.By },
			op.tokens.Query: func() string { return req.SearchTerm },
		},
		Success: map[processor.ContentType]processor.Mapper[*SearchResult]{
			processor.ContentTypeJSON: s.fromJSON,
		},
		Fallback: Empty,
	}

	result, err := s.exec.Execute(ctx, op.spec, call)
	if err != nil {
		return nil, fmt.Errorf("directory search by %s: %w", req.By, err)
	}

	getLog().Debug().
		Str("by", req.By).
		Int("results", len(result.Results)).
		Bool("limited", result.Limited).
		Msg("Directory search completed")
	return result, nil
}

// fromJSON decodes a backend response. Every user ID must normalize against
// the local domain; one bad entry fails the whole search.
func (s *Store) fromJSON(out processor.Output) (*SearchResult, error) {
	if out.Empty {
		return Empty(), nil
	}

	var result SearchResult
	if err := out.Decode(&result); err != nil {
		return nil, err
	}
	if result.Results == nil {
		result.Results = []Result{}
	}

	for i := range result.Results {
		id, err := identity.Normalize(result.Results[i].UserID, s.domain)
		if err != nil {
			return nil, fmt.Errorf("result %d: %w", i, err)
		}
		result.Results[i].UserID = id.String()
	}

	return &result, nil
}
