// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package identity validates Matrix user identifiers against the local domain.
package identity

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidUserID is wrapped by every normalization failure.
var ErrInvalidUserID = errors.New("invalid user id")

// MaxLength is the longest accepted full user ID, sigil and domain included.
const MaxLength = 255

// UserID is a canonical @localpart:domain identifier.
type UserID struct {
	Localpart string
	Domain    string
}

// String returns the full identifier.
func (u UserID) String() string {
	return "@" + u.Localpart + ":" + u.Domain
}

// Normalize turns raw into an acceptable user ID for domain.
// A raw value of the form @localpart:server keeps its own server; anything else
// is treated as a bare localpart on domain.
func Normalize(raw, domain string) (UserID, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return UserID{}, fmt.Errorf("%w: empty", ErrInvalidUserID)
	}

	id := UserID{Localpart: raw, Domain: strings.TrimSpace(domain)}
	if strings.HasPrefix(raw, "@") {
		local, server, ok := strings.Cut(raw[1:], ":")
		if !ok {
			return UserID{}, fmt.Errorf("%w: %q has no server part", ErrInvalidUserID, raw)
		}
		id = UserID{Localpart: local, Domain: server}
	}

	id.Localpart = strings.ToLower(id.Localpart)

	if id.Domain == "" {
		return UserID{}, fmt.Errorf("%w: %q has no domain", ErrInvalidUserID, raw)
	}
	if strings.ContainsAny(id.Domain, " \t\r\n/@") {
		return UserID{}, fmt.Errorf("%w: bad domain %q", ErrInvalidUserID, id.Domain)
	}
	if id.Localpart == "" {
		return UserID{}, fmt.Errorf("%w: %q has an empty localpart", ErrInvalidUserID, raw)
	}
	for _, r := range id.Localpart {
		if !isLocalpartRune(r) {
			return UserID{}, fmt.Errorf("%w: %q contains %q", ErrInvalidUserID, raw, r)
		}
	}
	if len(id.String()) > MaxLength {
		return UserID{}, fmt.Errorf("%w: longer than %d characters", ErrInvalidUserID, MaxLength)
	}

	return id, nil
}

// isLocalpartRune accepts the historical localpart grammar: printable ASCII except ':'.
func isLocalpartRune(r rune) bool {
	return r >= 0x21 && r <= 0x7E && r != ':'
}
