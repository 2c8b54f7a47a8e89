// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/pu55yf3r/Peergos/cmd/peergos/cli"
	"github.com/pu55yf3r/Peergos/lib/fs"
	"github.com/pu55yf3r/Peergos/lib/index"
)

func putCommand() *cli.Command {
	flags := &commonFlags{}
	var label string
	return &cli.Command{
		Name:    "put",
		Summary: "Store a file",
		Description: "Put splits a file into encrypted chunks, stores them, and binds\n" +
			"a label to the resulting reference. The label defaults to the\n" +
			"file's base name.",
		Usage: "peergos put FILE [flags]",
		Examples: []cli.Example{
			{Description: "Store a file under its own name", Command: "peergos put notes.txt"},
			{Description: "Store under an explicit label", Command: "peergos put build.tar --label releases/v1.2"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("put", pflag.ContinueOnError)
			addCommonFlags(flagSet, flags)
			flagSet.StringVar(&label, "label", "", "label to bind (default: file base name)")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("put takes exactly one FILE argument")
			}
			return runPut(flags, args[0], label)
		},
	}
}

func runPut(flags *commonFlags, path, label string) error {
	ctx := context.Background()
	logger := cli.NewLogger(flags.verbose)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}

	st, err := openStore(cfg, flags, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	opts := fs.PutOptions{Logger: logger}
	if cfg.Store.Erasure.Enabled {
		opts.Erasure = &fs.Geometry{
			Originals: cfg.Store.Erasure.Originals,
			Parity:    cfg.Store.Erasure.Parity,
		}
	}
	result, err := fs.Put(ctx, st, data, opts)
	if err != nil {
		return err
	}

	if label == "" {
		label = filepath.Base(path)
	}
	idx, err := openIndex(cfg, logger)
	if err != nil {
		return err
	}
	defer idx.Close()
	err = idx.Bind(ctx, label, index.Entry{
		Ref:    result.Ref,
		Size:   result.Descriptor.Size,
		Chunks: len(result.Descriptor.Chunks),
	})
	if err != nil {
		return err
	}

	fmt.Printf("%s\t%s\n", result.Ref, label)
	return nil
}
