// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package processor

import (
	"sort"
	"strings"
)

// Tokens maps placeholder names to per-call values.
type Tokens map[string]func() string

// Render replaces every bound token in template with its value.
// Substitution is single pass: values are never scanned for further tokens.
// Unbound placeholders are left as literal text.
func (t Tokens) Render(template string) string {
	if template == "" || len(t) == 0 {
		return template
	}

	names := make([]string, 0, len(t))
	for name := range t {
		if name != "" {
			names = append(names, name)
		}
	}
	if len(names) == 0 {
		return template
	}

	// Longest first so "{query_raw}" wins over "{query}" at the same position
	sort.Slice(names, func(i, j int) bool {
		if len(names[i]) != len(names[j]) {
			return len(names[i]) > len(names[j])
		}
		return names[i] < names[j]
	})

	pairs := make([]string, 0, len(names)*2)
	for _, name := range names {
		pairs = append(pairs, name, t.value(name))
	}

	return strings.NewReplacer(pairs...).Replace(template)
}

func (t Tokens) value(name string) string {
	fn := t[name]
	if fn == nil {
		return ""
	}
	return fn()
}
