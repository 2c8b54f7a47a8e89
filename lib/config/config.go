// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the CLI configuration.
//
// Configuration comes from a single YAML file named by the
// PEERGOS_CONFIG environment variable or the --config flag. There are
// no fallbacks and no automatic discovery: configuration stays
// deterministic and auditable, with no hidden overrides. Every field
// has a default, so a missing file is only an error when the caller
// asked for one explicitly.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/pu55yf3r/Peergos/lib/store"
)

// EnvVar is the environment variable naming the config file.
const EnvVar = "PEERGOS_CONFIG"

// Config is the CLI configuration.
type Config struct {
	// Store configures the chunk store.
	Store StoreConfig `yaml:"store"`

	// Index configures the label index.
	Index IndexConfig `yaml:"index"`

	// Stream configures the read path.
	Stream StreamConfig `yaml:"stream"`

	// Escrow configures root-key backup.
	Escrow EscrowConfig `yaml:"escrow"`
}

// StoreConfig configures the chunk store.
type StoreConfig struct {
	// Root is the store directory. Default: ~/.local/share/peergos.
	Root string `yaml:"root"`

	// Compression selects the algorithm tried when sealing chunks:
	// none, lz4, or zstd. Default: zstd.
	Compression string `yaml:"compression"`

	// Erasure enables per-chunk erasure coding on put.
	Erasure ErasureConfig `yaml:"erasure"`
}

// ErasureConfig is the fragment geometry applied when erasure coding
// is enabled.
type ErasureConfig struct {
	Enabled   bool `yaml:"enabled"`
	Originals int  `yaml:"originals"`
	Parity    int  `yaml:"parity"`
}

// IndexConfig configures the label index.
type IndexConfig struct {
	// Path is the SQLite database file. Default: <store root>/index.db.
	Path string `yaml:"path"`
}

// StreamConfig configures the read path.
type StreamConfig struct {
	// WindowChunks is the buffered read-ahead window, in chunks.
	// Default: 4.
	WindowChunks int `yaml:"window_chunks"`
}

// EscrowConfig configures root-key backup.
type EscrowConfig struct {
	// Recipients are age public keys the root key is sealed to on
	// init. Empty disables escrow.
	Recipients []string `yaml:"recipients"`
}

// Default returns the built-in configuration.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	root := filepath.Join(homeDir, ".local", "share", "peergos")
	return &Config{
		Store: StoreConfig{
			Root:        root,
			Compression: "zstd",
			Erasure: ErasureConfig{
				Enabled:   false,
				Originals: 40,
				Parity:    10,
			},
		},
		Index:  IndexConfig{Path: filepath.Join(root, "index.db")},
		Stream: StreamConfig{WindowChunks: 4},
	}
}

// Load loads the file named by PEERGOS_CONFIG, or the defaults when
// the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvVar)
	if path == "" {
		cfg := Default()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile loads a specific config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()
	// Cleared so that an explicit store root moves the default index
	// location with it unless the file pins one.
	cfg.Index.Path = ""
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if cfg.Index.Path == "" {
		cfg.Index.Path = filepath.Join(cfg.Store.Root, "index.db")
	}
	return cfg, cfg.Validate()
}

// Validate checks the configuration against the same limits the
// components enforce at construction time.
func (c *Config) Validate() error {
	if c.Store.Root == "" {
		return fmt.Errorf("config: store root must not be empty")
	}
	if _, err := store.ParseCompressionTag(c.Store.Compression); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	if c.Stream.WindowChunks < 1 {
		return fmt.Errorf("config: stream window of %d chunks is too small", c.Stream.WindowChunks)
	}
	if c.Store.Erasure.Enabled {
		if c.Store.Erasure.Originals < 1 || c.Store.Erasure.Parity < 1 {
			return fmt.Errorf("config: erasure geometry %d/%d is invalid",
				c.Store.Erasure.Originals, c.Store.Erasure.Parity)
		}
	}
	return nil
}

// CompressionTag returns the configured compression as a store tag.
// Call Validate first; unknown names panic here.
func (c *Config) CompressionTag() store.CompressionTag {
	tag, err := store.ParseCompressionTag(c.Store.Compression)
	if err != nil {
		panic("config: " + err.Error())
	}
	return tag
}

// EnsurePaths creates the store root (and the index's parent
// directory) if missing.
func (c *Config) EnsurePaths() error {
	for _, dir := range []string{c.Store.Root, filepath.Dir(c.Index.Path)} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("config: creating %s: %w", dir, err)
		}
	}
	return nil
}
