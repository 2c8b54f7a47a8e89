// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/pflag"

	"github.com/pu55yf3r/Peergos/cmd/peergos/cli"
	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/sealed"
	"github.com/pu55yf3r/Peergos/lib/store"
)

func initCommand() *cli.Command {
	flags := &commonFlags{}
	return &cli.Command{
		Name:    "init",
		Summary: "Initialize a store",
		Description: "Init creates the store directory, derives the root key from a\n" +
			"passphrase, and writes the key salt. When escrow recipients are\n" +
			"configured, the root key is also sealed to their age public keys\n" +
			"so it can be recovered if the passphrase is lost.",
		Usage: "peergos init [flags]",
		Examples: []cli.Example{
			{Description: "Initialize the default store", Command: "peergos init"},
			{Description: "Initialize a store described by a config file", Command: "peergos init --config peergos.yaml"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("init", pflag.ContinueOnError)
			addCommonFlags(flagSet, flags)
			return flagSet
		},
		Run: func(args []string) error {
			if len(args) != 0 {
				return fmt.Errorf("init takes no arguments")
			}
			return runInit(flags)
		},
	}
}

func runInit(flags *commonFlags) error {
	cfg, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if err := cfg.EnsurePaths(); err != nil {
		return err
	}

	saltPath := filepath.Join(cfg.Store.Root, saltFileName)
	if _, err := os.Stat(saltPath); err == nil {
		return fmt.Errorf("store %s is already initialized", cfg.Store.Root)
	}

	passphrase, err := readPassphrase(flags, true)
	if err != nil {
		return err
	}
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		passphrase.Close()
		return fmt.Errorf("generating key salt: %w", err)
	}
	rootKey, err := deriveRootKey(passphrase, salt)
	if err != nil {
		return err
	}

	// Escrow before the sealer takes ownership of the key buffer.
	var escrow string
	if len(cfg.Escrow.Recipients) > 0 {
		escrow, err = sealed.Seal(rootKey, cfg.Escrow.Recipients)
		if err != nil {
			rootKey.Close()
			return err
		}
	}

	sealer, err := store.NewSealer(rootKey, cfg.CompressionTag())
	if err != nil {
		rootKey.Close()
		return err
	}
	defer sealer.Close()
	check, err := sealer.Seal(keyCheckPlaintext, chunk.HashChunk(keyCheckPlaintext))
	if err != nil {
		return err
	}

	if err := os.WriteFile(saltPath, salt, 0o600); err != nil {
		return fmt.Errorf("writing key salt: %w", err)
	}
	if err := os.WriteFile(filepath.Join(cfg.Store.Root, checkFileName), check, 0o600); err != nil {
		return fmt.Errorf("writing key check: %w", err)
	}
	if escrow != "" {
		escrowPath := filepath.Join(cfg.Store.Root, escrowFileName)
		if err := os.WriteFile(escrowPath, []byte(escrow), 0o600); err != nil {
			return fmt.Errorf("writing escrow file: %w", err)
		}
		fmt.Printf("Root key sealed to %d escrow recipient(s): %s\n",
			len(cfg.Escrow.Recipients), escrowPath)
	}

	fmt.Printf("Initialized store at %s\n", cfg.Store.Root)
	return nil
}
