// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/noldarim/idexec/internal/directory"
)

// Matrix error codes used by the API.
const (
	errUnknown      = "M_UNKNOWN"
	errNotFound     = "M_NOT_FOUND"
	errUnrecognized = "M_UNRECOGNIZED"
	errBadJSON      = "M_BAD_JSON"
	errNotJSON      = "M_NOT_JSON"
	errMissingParam = "M_MISSING_PARAM"
	errTooLarge     = "M_TOO_LARGE"
)

// msgInternal is the only detail a 500 carries; the cause goes to the log.
const msgInternal = "Internal server error"

const defaultSearchLimit = 10

// Handlers holds dependencies for HTTP handlers.
type Handlers struct {
	directory DirectorySearcher
	identity  IdentityResolver
}

// NewHandlers creates the handler set.
func NewHandlers(dir DirectorySearcher, ids IdentityResolver) *Handlers {
	return &Handlers{directory: dir, identity: ids}
}

type matrixError struct {
	ErrCode string `json:"errcode"`
	Error   string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		getLog().Error().Err(err).Msg("Failed to encode JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, matrixError{ErrCode: code, Error: message})
}

// Health handles GET /health
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{
		"directory": h.directory.IsEnabled(),
		"identity":  h.identity.IsEnabled(),
	})
}

type searchRequest struct {
	SearchTerm string `json:"search_term"`
	Limit      int    `json:"limit"`
}

// SearchUsers handles POST /_matrix/client/r0/user_directory/search
func (h *Handlers) SearchUsers(w http.ResponseWriter, r *http.Request) {
	var body searchRequest
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, errTooLarge, "Request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, errNotJSON, "Invalid JSON body")
		return
	}
	body.SearchTerm = strings.TrimSpace(body.SearchTerm)
	if body.SearchTerm == "" {
		writeError(w, http.StatusBadRequest, errBadJSON, "search_term is required")
		return
	}
	if body.Limit <= 0 {
		body.Limit = defaultSearchLimit
	}

	if !h.directory.IsEnabled() {
		writeJSON(w, http.StatusOK, directory.Empty())
		return
	}

	result, err := h.directory.Search(r.Context(), body.SearchTerm)
	if err != nil {
		requestLog(r.Context()).Error().Err(err).Str("term", body.SearchTerm).Msg("Directory search failed")
		writeError(w, http.StatusInternalServerError, errUnknown, msgInternal)
		return
	}

	if len(result.Results) > body.Limit {
		result = &directory.SearchResult{Limited: true, Results: result.Results[:body.Limit]}
	}
	writeJSON(w, http.StatusOK, result)
}

// Lookup handles GET /_matrix/identity/api/v1/lookup
func (h *Handlers) Lookup(w http.ResponseWriter, r *http.Request) {
	medium := strings.TrimSpace(r.URL.Query().Get("medium"))
	address := strings.TrimSpace(r.URL.Query().Get("address"))
	if medium == "" || address == "" {
		writeError(w, http.StatusBadRequest, errMissingParam, "medium and address are required")
		return
	}

	if !h.identity.IsEnabled() {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}

	mapping, err := h.identity.Find(r.Context(), medium, address)
	if err != nil {
		requestLog(r.Context()).Error().Err(err).Str("medium", medium).Msg("Lookup failed")
		writeError(w, http.StatusInternalServerError, errUnknown, msgInternal)
		return
	}
	if mapping == nil {
		writeJSON(w, http.StatusOK, struct{}{})
		return
	}
	writeJSON(w, http.StatusOK, mapping)
}
