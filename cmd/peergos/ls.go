// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/pflag"

	"github.com/pu55yf3r/Peergos/cmd/peergos/cli"
)

func lsCommand() *cli.Command {
	flags := &commonFlags{}
	return &cli.Command{
		Name:        "ls",
		Summary:     "List labeled files",
		Description: "Ls lists every label binding in the index, ordered by label.\nListing reads only the index; no passphrase is needed.",
		Usage:       "peergos ls [flags]",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("ls", pflag.ContinueOnError)
			addCommonFlags(flagSet, flags)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("ls takes no arguments")
			}
			return runLs(flags)
		},
	}
}

func runLs(flags *commonFlags) error {
	ctx := context.Background()
	logger := cli.NewLogger(flags.verbose)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	idx, err := openIndex(cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close()

	entries, err := idx.List(ctx)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "LABEL\tSIZE\tCHUNKS\tBOUND\tREF")
	for _, entry := range entries {
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\t%s\n",
			entry.Label,
			entry.Size,
			entry.Chunks,
			entry.BoundAt.Format("2006-01-02 15:04"),
			entry.Ref)
	}
	return tw.Flush()
}
