// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"encoding/json"
	"fmt"
)

// Input holds the caller's request projections, one per input content type.
type Input struct {
	JSON  func() any    // Canonical form serialized as a JSON document
	Plain func() string // Default plain body when Spec.Input.Template is empty
}

// Encode produces the stdin payload for spec.
// A missing projection yields an empty payload, not an error.
func Encode(spec Spec, in Input, tokens Tokens) ([]byte, error) {
	switch spec.Input.Type {
	case ContentTypePlain:
		if spec.Input.Template != "" {
			return []byte(tokens.Render(spec.Input.Template)), nil
		}
		if in.Plain != nil {
			return []byte(in.Plain()), nil
		}
		return nil, nil

	default:
		if in.JSON == nil {
			return nil, nil
		}
		data, err := json.Marshal(in.JSON())
		if err != nil {
			return nil, fmt.Errorf("failed to encode json input: %w", err)
		}
		return data, nil
	}
}
