// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package directory

// Search kinds sent to the backend in the "by" field and the type token.
const (
	ByName     = "name"
	ByThreepid = "threepid"
)

// SearchRequest is the canonical JSON form written to the backend.
type SearchRequest struct {
	By         string `json:"by"`
	SearchTerm string `json:"search_term"`
}

// SearchResult is the backend response and the value returned to callers.
type SearchResult struct {
	Limited bool     `json:"limited"`
	Results []Result `json:"results"`
}

// Result is a single directory entry.
type Result struct {
	UserID      string `json:"user_id"`
	DisplayName string `json:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

// Empty returns a result with no entries.
func Empty() *SearchResult {
	return &SearchResult{Results: []Result{}}
}
