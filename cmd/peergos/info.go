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
	"github.com/pu55yf3r/Peergos/lib/fs"
)

func infoCommand() *cli.Command {
	flags := &commonFlags{}
	return &cli.Command{
		Name:    "info",
		Summary: "Show a file's descriptor",
		Description: "Info resolves a label or a hex reference, fetches the file's\n" +
			"descriptor, and prints its layout.",
		Usage: "peergos info LABEL|REF [flags]",
		Examples: []cli.Example{
			{Description: "Inspect by label", Command: "peergos info notes.txt"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("info", pflag.ContinueOnError)
			addCommonFlags(flagSet, flags)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("info takes exactly one LABEL|REF argument")
			}
			return runInfo(flags, args[0])
		},
	}
}

func runInfo(flags *commonFlags, argument string) error {
	ctx := context.Background()
	logger := cli.NewLogger(flags.verbose)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	ref, err := resolveRef(ctx, cfg, logger, argument)
	if err != nil {
		return err
	}
	st, err := openStore(cfg, flags, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	descriptor, err := fs.Fetch(ctx, st, ref)
	if err != nil {
		return err
	}

	tw := tabwriter.NewWriter(os.Stdout, 2, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Reference:\t%s\n", ref)
	fmt.Fprintf(tw, "Size:\t%d bytes\n", descriptor.Size)
	fmt.Fprintf(tw, "Chunks:\t%d × up to %d bytes\n", len(descriptor.Chunks), descriptor.ChunkSize)
	fmt.Fprintf(tw, "Content root:\t%s\n", descriptor.ContentRoot.Target)
	if descriptor.Erasure != nil {
		fmt.Fprintf(tw, "Erasure:\t%d originals + %d parity per chunk\n",
			descriptor.Erasure.Originals, descriptor.Erasure.Parity)
	} else {
		fmt.Fprintf(tw, "Erasure:\tdisabled\n")
	}
	return tw.Flush()
}
