// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/crypto/scrypt"
	"golang.org/x/term"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/config"
	"github.com/pu55yf3r/Peergos/lib/index"
	"github.com/pu55yf3r/Peergos/lib/secret"
	"github.com/pu55yf3r/Peergos/lib/store"
)

// Store-root files written by init.
const (
	saltFileName   = "key.salt"
	checkFileName  = "key.check"
	escrowFileName = "rootkey.age"
)

const saltSize = 16

// Interactive scrypt parameters. N=2^15 keeps derivation under a
// second on commodity hardware while staying expensive for an
// attacker with only the salt file.
const (
	scryptN = 1 << 15
	scryptR = 8
	scryptP = 1
)

// keyCheckPlaintext is sealed into key.check at init so that later
// invocations can tell a wrong passphrase from corrupt data.
var keyCheckPlaintext = []byte("peergos root key check v1")

// commonFlags are the flags shared by every subcommand.
type commonFlags struct {
	configPath     string
	passphraseFile string
	verbose        bool
}

func loadConfig(flags *commonFlags) (*config.Config, error) {
	if flags.configPath != "" {
		return config.LoadFile(flags.configPath)
	}
	return config.Load()
}

const stdinFileDescriptor = 0

// readPassphrase obtains the root-key passphrase, from the
// --passphrase-file when given, otherwise interactively without echo.
// With confirm set the interactive path prompts twice.
func readPassphrase(flags *commonFlags, confirm bool) (*secret.Buffer, error) {
	if flags.passphraseFile != "" {
		return secret.ReadFromPath(flags.passphraseFile)
	}
	if !term.IsTerminal(stdinFileDescriptor) {
		return nil, fmt.Errorf("stdin is not a terminal; use --passphrase-file")
	}

	first, err := promptPassphrase("Passphrase: ")
	if err != nil {
		return nil, err
	}
	if !confirm {
		return first, nil
	}

	second, err := promptPassphrase("Confirm passphrase: ")
	if err != nil {
		first.Close()
		return nil, err
	}
	defer second.Close()
	if !first.Equal(second.Bytes()) {
		first.Close()
		return nil, fmt.Errorf("passphrases do not match")
	}
	return first, nil
}

func promptPassphrase(prompt string) (*secret.Buffer, error) {
	fmt.Fprint(os.Stderr, prompt)
	passphraseBytes, err := term.ReadPassword(stdinFileDescriptor)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		secret.Zero(passphraseBytes)
		return nil, fmt.Errorf("reading passphrase: %w", err)
	}
	if len(passphraseBytes) == 0 {
		return nil, fmt.Errorf("passphrase must not be empty")
	}
	return secret.NewFromBytes(passphraseBytes)
}

// deriveRootKey stretches the passphrase into the root key with
// scrypt. The passphrase buffer is closed.
func deriveRootKey(passphrase *secret.Buffer, salt []byte) (*secret.Buffer, error) {
	defer passphrase.Close()
	keyBytes, err := scrypt.Key(passphrase.Bytes(), salt, scryptN, scryptR, scryptP, store.KeySize)
	if err != nil {
		return nil, fmt.Errorf("deriving root key: %w", err)
	}
	return secret.NewFromBytes(keyBytes)
}

// openStore derives the root key from the passphrase and opens the
// configured store, verifying the key against key.check before any
// data access.
func openStore(cfg *config.Config, flags *commonFlags, logger *slog.Logger) (*store.DirStore, error) {
	salt, err := os.ReadFile(filepath.Join(cfg.Store.Root, saltFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("store %s is not initialized; run 'peergos init'", cfg.Store.Root)
		}
		return nil, fmt.Errorf("reading key salt: %w", err)
	}

	passphrase, err := readPassphrase(flags, false)
	if err != nil {
		return nil, err
	}
	rootKey, err := deriveRootKey(passphrase, salt)
	if err != nil {
		return nil, err
	}
	sealer, err := store.NewSealer(rootKey, cfg.CompressionTag())
	if err != nil {
		rootKey.Close()
		return nil, err
	}

	if err := verifyRootKey(cfg.Store.Root, sealer); err != nil {
		sealer.Close()
		return nil, err
	}
	return store.NewDirStore(cfg.Store.Root, sealer, logger)
}

// verifyRootKey unseals key.check. A missing file is tolerated for
// stores initialized before the check existed.
func verifyRootKey(root string, sealer *store.Sealer) error {
	blob, err := os.ReadFile(filepath.Join(root, checkFileName))
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading key check: %w", err)
	}
	if _, err := sealer.Unseal(blob, chunk.HashChunk(keyCheckPlaintext)); err != nil {
		return fmt.Errorf("wrong passphrase for store %s", root)
	}
	return nil
}

func openIndex(cfg *config.Config, logger *slog.Logger) (*index.Index, error) {
	return index.Open(index.Config{Path: cfg.Index.Path, Logger: logger})
}

// resolveRef turns a command-line file argument into a reference:
// a 64-character hex string is used directly, anything else is looked
// up as a label.
func resolveRef(ctx context.Context, cfg *config.Config, logger *slog.Logger, argument string) (chunk.Hash, error) {
	if ref, err := chunk.ParseHash(argument); err == nil {
		return ref, nil
	}

	idx, err := openIndex(cfg, logger)
	if err != nil {
		return chunk.Hash{}, err
	}
	defer idx.Close()
	entry, err := idx.Resolve(ctx, argument)
	if err != nil {
		return chunk.Hash{}, err
	}
	return entry.Ref, nil
}
