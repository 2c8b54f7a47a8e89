// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Command peergos is the command-line interface to an encrypted,
// content-addressed chunk store: initialize a store, put files into
// it, and stream them back out.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/pu55yf3r/Peergos/cmd/peergos/cli"
)

func main() {
	root := &cli.Command{
		Name:        "peergos",
		Summary:     "Encrypted content-addressed file store",
		Description: "peergos stores files as encrypted, deduplicated chunks and\nstreams them back with adaptive read-ahead.",
		Subcommands: []*cli.Command{
			initCommand(),
			putCommand(),
			catCommand(),
			infoCommand(),
			lsCommand(),
		},
	}

	if err := root.Execute(os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "peergos: %v\n", err)
		os.Exit(1)
	}
}

// addCommonFlags registers the flags every subcommand shares.
func addCommonFlags(flagSet *pflag.FlagSet, flags *commonFlags) {
	flagSet.StringVar(&flags.configPath, "config", "",
		"config file (overrides $PEERGOS_CONFIG)")
	flagSet.StringVar(&flags.passphraseFile, "passphrase-file", "",
		"read the passphrase from this file instead of prompting")
	flagSet.BoolVarP(&flags.verbose, "verbose", "v", false,
		"enable debug logging")
}
