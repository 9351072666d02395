// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"
	"io"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/noldarim/idexec/internal/config"
)

// configCommand prints the effective configuration after defaults,
// environment overrides and inheritance have been applied.
func configCommand(args []string, out io.Writer) error {
	var configPath string
	fs := pflag.NewFlagSet("config", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}

	cfg, err := config.NewConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}
	return enc.Close()
}
