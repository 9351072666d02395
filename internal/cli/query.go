// Copyright (C) 2026 Noldarim
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/pflag"

	"github.com/noldarim/idexec/internal/directory"
)

func searchCommand(args []string, out io.Writer) error {
	var configPath, by string
	fs := pflag.NewFlagSet("search", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	fs.StringVar(&by, "by", "", "Search kind: name or threepid (default: both, merged)")
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}

	if by != "" && by != directory.ByName && by != directory.ByThreepid {
		return fmt.Errorf("--by must be %q or %q, got %q", directory.ByName, directory.ByThreepid, by)
	}
	query := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if query == "" {
		return fmt.Errorf("search query is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	if !a.directory.IsEnabled() {
		fmt.Fprintln(os.Stderr, "Warning: directory is disabled in config")
	}

	var result *directory.SearchResult
	switch by {
	case directory.ByName:
		result, err = a.directory.SearchByDisplayName(ctx, query)
	case directory.ByThreepid:
		result, err = a.directory.SearchByThreepid(ctx, query)
	default:
		result, err = a.directory.Search(ctx, query)
	}
	if err != nil {
		return err
	}

	return printJSON(out, result)
}

func lookupCommand(args []string, out io.Writer) error {
	var configPath, medium string
	fs := pflag.NewFlagSet("lookup", pflag.ContinueOnError)
	addConfigFlag(fs, &configPath)
	fs.StringVarP(&medium, "medium", "m", "email", "Third-party identifier medium")
	if stop, err := parseFlags(fs, args); stop || err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("lookup expects exactly one address, got %d", fs.NArg())
	}
	address := fs.Arg(0)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, configPath)
	if err != nil {
		return err
	}
	defer a.Close()

	mapping, err := a.identity.Find(ctx, medium, address)
	if err != nil {
		return err
	}
	if mapping == nil {
		return printJSON(out, struct{}{})
	}
	return printJSON(out, mapping)
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
