// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package lookup resolves third-party identifiers to Matrix IDs through an
// operator-supplied program.
package lookup

import (
	"context"
	"fmt"
	"strings"
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
		l := logger.GetLookupLogger()
		log = &l
	})
	return log
}

// ID types accepted from the backend.
const (
	IDTypeLocalpart = "localpart"
	IDTypeMXID      = "mxid"
)

// Request is the canonical JSON form written to the backend.
type Request struct {
	Medium  string `json:"medium"`
	Address string `json:"address"`
}

// ID is the identifier part of a backend answer.
type ID struct {
	Type  string `json:"type"`
	Value string `json:"value"`
}

// Mapping binds a third-party identifier to a user.
type Mapping struct {
	Medium  string `json:"medium"`
	Address string `json:"address"`
	MXID    string `json:"mxid"`
}

type response struct {
	Lookup *struct {
		Medium  string `json:"medium"`
		Address string `json:"address"`
		ID      ID     `json:"id"`
	} `json:"lookup"`
}

// Store is the exec-backed identity lookup.
type Store struct {
	enabled bool
	domain  string
	spec    processor.Spec
	tokens  config.LookupTokens
	exec    *processor.Processor[*Mapping]
}

// NewStore creates a lookup store.
func NewStore(cfg config.IdentityConfig, domain string, runner processor.Runner) (*Store, error) {
	spec, err := processor.SpecFromConfig(cfg.Lookup.Single.ProcessConfig)
	if err != nil {
		return nil, fmt.Errorf("lookup.single: %w", err)
	}

	return &Store{
		enabled: cfg.Enabled,
		domain:  domain,
		spec:    spec,
		tokens:  cfg.Lookup.Single.Token,
		exec:    processor.New[*Mapping](runner),
	}, nil
}

// IsEnabled reports whether the lookup backend is switched on.
func (s *Store) IsEnabled() bool {
	return s.enabled
}

// Find returns the mapping for medium and address, or nil when there is none.
func (s *Store) Find(ctx context.Context, medium, address string) (*Mapping, error) {
	if !s.enabled || !s.spec.Configured() {
		return nil, nil
	}

	req := Request{Medium: medium, Address: address}
	call := processor.Call[*Mapping]{
		Input: processor.Input{
			JSON:  func() any { return req },
			Plain: func() string { return processor.Lines(req.Medium, req.Address) },
		},
		Tokens: processor.Tokens{
			s.tokens.Medium:  func() string { return req.Medium },
			s.tokens.Address: func() string { return req.Address },
		},
		Success: map[processor.ContentType]processor.Mapper[*Mapping]{
			processor.ContentTypeJSON: func(out processor.Output) (*Mapping, error) {
				return s.fromJSON(req, out)
			},
			processor.ContentTypePlain: func(out processor.Output) (*Mapping, error) {
				return s.fromPlain(req, out)
			},
		},
	}

	mapping, err := s.exec.Execute(ctx, s.spec, call)
	if err != nil {
		return nil, fmt.Errorf("lookup %s %s: %w", medium, address, err)
	}

	getLog().Debug().
		Str("medium", medium).
		Bool("found", mapping != nil).
		Msg("Lookup completed")
	return mapping, nil
}

func (s *Store) fromJSON(req Request, out processor.Output) (*Mapping, error) {
	if out.Empty {
		return nil, nil
	}

	var resp response
	if err := out.Decode(&resp); err != nil {
		return nil, err
	}
	if resp.Lookup == nil {
		return nil, nil
	}

	medium := lo.Ternary(resp.Lookup.Medium != "", resp.Lookup.Medium, req.Medium)
	address := lo.Ternary(resp.Lookup.Address != "", resp.Lookup.Address, req.Address)
	return s.mapping(medium, address, resp.Lookup.ID)
}

// fromPlain reads the id type from the first non-blank line and its value from the second.
func (s *Store) fromPlain(req Request, out processor.Output) (*Mapping, error) {
	if out.Empty {
		return nil, nil
	}

	lines := lo.Compact(lo.Map(strings.Split(out.Text, "\n"), func(line string, _ int) string {
		return strings.TrimSpace(line)
	}))
	if len(lines) < 2 {
		return nil, fmt.Errorf("%w: expected id type and value lines, got %d", processor.ErrMalformedOutput, len(lines))
	}

	return s.mapping(req.Medium, req.Address, ID{Type: lines[0], Value: lines[1]})
}

func (s *Store) mapping(medium, address string, id ID) (*Mapping, error) {
	var (
		userID identity.UserID
		err    error
	)
	switch strings.ToLower(id.Type) {
	case IDTypeLocalpart:
		userID, err = identity.Normalize(id.Value, s.domain)
	case IDTypeMXID:
		if !strings.HasPrefix(strings.TrimSpace(id.Value), "@") {
			return nil, fmt.Errorf("%w: %q is not a full user ID", identity.ErrInvalidUserID, id.Value)
		}
		userID, err = identity.Normalize(id.Value, s.domain)
	default:
		return nil, fmt.Errorf("%w: unknown id type %q", processor.ErrMalformedOutput, id.Type)
	}
	if err != nil {
		return nil, err
	}

	return &Mapping{Medium: medium, Address: address, MXID: userID.String()}, nil
}
