// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"encoding/json"
	"strings"
)

// OutcomeKind classifies a finished process for the mapper/fallback decision.
type OutcomeKind int

const (
	// OutcomeFailure: the process failed or its JSON output did not parse
	OutcomeFailure OutcomeKind = iota
	// OutcomeEmpty: the process succeeded with blank stdout
	OutcomeEmpty
	// OutcomeRaw: plain text left to the mapper
	OutcomeRaw
	// OutcomeDocument: a syntactically valid JSON document
	OutcomeDocument
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeFailure:
		return "failure"
	case OutcomeEmpty:
		return "empty"
	case OutcomeRaw:
		return "raw"
	case OutcomeDocument:
		return "document"
	default:
		return "unknown"
	}
}

// Outcome is the decoded process result.
type Outcome struct {
	Kind OutcomeKind
	Text string // Trimmed stdout
}

// Decode interprets a runner result. Stdout is only trusted when runErr is nil.
func Decode(res *Result, runErr error, typ ContentType) Outcome {
	if runErr != nil || res == nil {
		return Outcome{Kind: OutcomeFailure}
	}

	text := strings.TrimSpace(res.Stdout)
	if text == "" {
		return Outcome{Kind: OutcomeEmpty}
	}

	if typ == ContentTypePlain {
		return Outcome{Kind: OutcomeRaw, Text: text}
	}

	if !json.Valid([]byte(text)) {
		return Outcome{Kind: OutcomeFailure, Text: text}
	}
	return Outcome{Kind: OutcomeDocument, Text: text}
}
