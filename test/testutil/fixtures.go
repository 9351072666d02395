// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package testutil

import (
	"github.com/noldarim/idexec/internal/config"
)

// Domain is the homeserver used across fixtures.
const Domain = "example.org"

// SearchProcess returns a JSON-in, JSON-out search process with default tokens.
func SearchProcess(command string, args ...string) config.DirectoryProcessConfig {
	return config.DirectoryProcessConfig{
		ProcessConfig: process(command, "json", args),
		Token:         config.DirectoryTokens{Type: "{type}", Query: "{query}"},
	}
}

// IdentityConfig returns an enabled lookup backend with the given output type.
func IdentityConfig(command, output string, args ...string) config.IdentityConfig {
	return config.IdentityConfig{
		Enabled: true,
		Lookup: config.LookupConfig{
			Single: config.LookupProcessConfig{
				ProcessConfig: process(command, output, args),
				Token:         config.LookupTokens{Medium: "{medium}", Address: "{address}"},
			},
		},
	}
}

func process(command, output string, args []string) config.ProcessConfig {
	return config.ProcessConfig{
		Command: command,
		Args:    args,
		Input:   config.InputConfig{Type: "json"},
		Output:  config.OutputConfig{Type: output},
	}
}
