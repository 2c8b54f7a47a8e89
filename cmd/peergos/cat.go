// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/pflag"

	"github.com/pu55yf3r/Peergos/cmd/peergos/cli"
	"github.com/pu55yf3r/Peergos/lib/fs"
	"github.com/pu55yf3r/Peergos/lib/stream"
)

func catCommand() *cli.Command {
	flags := &commonFlags{}
	var offset int64
	return &cli.Command{
		Name:    "cat",
		Summary: "Stream a file to stdout",
		Description: "Cat resolves a label or a hex reference and streams the file's\n" +
			"plaintext to stdout through the buffered read-ahead reader.",
		Usage: "peergos cat LABEL|REF [flags]",
		Examples: []cli.Example{
			{Description: "Stream by label", Command: "peergos cat notes.txt"},
			{Description: "Stream the tail of a file", Command: "peergos cat notes.txt --offset 1048576"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("cat", pflag.ContinueOnError)
			addCommonFlags(flagSet, flags)
			flagSet.Int64Var(&offset, "offset", 0, "byte offset to start reading at")
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 1 {
				return fmt.Errorf("cat takes exactly one LABEL|REF argument")
			}
			return runCat(flags, args[0], offset)
		},
	}
}

func runCat(flags *commonFlags, argument string, offset int64) error {
	ctx := context.Background()
	logger := cli.NewLogger(flags.verbose)
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if offset < 0 {
		return fmt.Errorf("offset must not be negative")
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

	var reader stream.AsyncReader
	reader, err = fs.OpenRef(ctx, st, ref, fs.OpenOptions{
		WindowChunks: cfg.Stream.WindowChunks,
		Logger:       logger,
	})
	if err != nil {
		return err
	}
	if offset > 0 {
		// Seek retires the original reader and hands back a fresh one.
		reader, err = reader.Seek(ctx, offset)
		if err != nil {
			return err
		}
	}
	defer reader.Close()
	return streamTo(ctx, reader, os.Stdout)
}

// streamTo drains reader into w. End of file is a zero-byte read.
func streamTo(ctx context.Context, reader stream.AsyncReader, w io.Writer) error {
	out := bufio.NewWriter(w)
	buffer := make([]byte, 256*1024)
	for {
		n, err := reader.ReadInto(ctx, buffer)
		if n > 0 {
			if _, writeErr := out.Write(buffer[:n]); writeErr != nil {
				return fmt.Errorf("writing output: %w", writeErr)
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	return out.Flush()
}
