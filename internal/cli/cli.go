// Copyright (C) 2025-2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"
)

const (
	appName    = "idexec"
	appVersion = "0.1.0"
)

// Execute runs the CLI application
func Execute() error {
	return Run(os.Args[1:], os.Stdout)
}

// Run dispatches args to a command, writing command output to out.
func Run(args []string, out io.Writer) error {
	if len(args) < 1 {
		return printUsage(out)
	}

	command := args[0]
	rest := args[1:]

	switch command {
	case "serve":
		return serveCommand(rest)
	case "search":
		return searchCommand(rest, out)
	case "lookup":
		return lookupCommand(rest, out)
	case "config":
		return configCommand(rest, out)
	case "version":
		fmt.Fprintf(out, "%s version %s\n", appName, appVersion)
		return nil
	case "help", "-h", "--help":
		return printUsage(out)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", command)
		printUsage(os.Stderr)
		return fmt.Errorf("unknown command: %s", command)
	}
}

func addConfigFlag(fs *pflag.FlagSet, path *string) {
	fs.StringVarP(path, "config", "c", "", "Path to config file (default: search ./idexec.yaml, /etc/idexec/)")
}

// parseFlags parses args and reports whether the command should stop because
// help was requested.
func parseFlags(fs *pflag.FlagSet, args []string) (bool, error) {
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return true, nil
		}
		return false, err
	}
	return false, nil
}

func printUsage(out io.Writer) error {
	fmt.Fprintf(out, `%s - exec-backed Matrix user directory and identity lookup

Usage:
  %s <command> [arguments]

Commands:
  serve                            Run the HTTP API
  search [--by name|threepid] <q>  Search the user directory
  lookup [--medium m] <address>    Resolve a third-party identifier
  config                           Print the effective configuration
  version                          Print version information
  help                             Show this help message

Every command accepts --config <path>.

Examples:
  %s serve --config /etc/idexec/idexec.yaml
  %s search "Bob"
  %s search --by threepid bob@example.org
  %s lookup --medium email bob@example.org
  %s config

`, appName, appName, appName, appName, appName, appName, appName)
	return nil
}
