// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

const (
	objectsDir = "objects"
	tmpDir     = "tmp"
)

// DirStore is a [ChunkStore] backed by a directory tree. Sealed blobs
// live under objects/<kind>/ sharded by the first address byte
// (objects/chunks/ab/cdef….blob); writes go through tmp/ and an
// atomic rename, so a crash never leaves a partial blob at a final
// path.
type DirStore struct {
	root   string
	sealer *Sealer
	logger *slog.Logger
	closed atomic.Bool
}

var _ ChunkStore = (*DirStore)(nil)

// NewDirStore opens (creating if needed) a directory store rooted at
// root. The sealer is owned by the store and closed with it. A nil
// logger discards.
func NewDirStore(root string, sealer *Sealer, logger *slog.Logger) (*DirStore, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	for _, dir := range []string{filepath.Join(root, objectsDir), filepath.Join(root, tmpDir)} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: creating %s: %w", dir, err)
		}
	}
	return &DirStore{root: root, sealer: sealer, logger: logger}, nil
}

// Root returns the store's root directory.
func (s *DirStore) Root() string {
	return s.root
}

// Put implements [ChunkStore].
func (s *DirStore) Put(ctx context.Context, kind Kind, data []byte) (chunk.Hash, error) {
	if err := s.check(ctx, kind); err != nil {
		return chunk.Hash{}, err
	}
	if kind == KindChunk && len(data) > chunk.MaxSize {
		return chunk.Hash{}, fmt.Errorf("store: chunk is %d bytes, maximum is %d", len(data), chunk.MaxSize)
	}

	address := kind.address(data)
	finalPath := s.objectPath(kind, address)

	// Content addressing makes an existing blob identical by
	// construction; skip the seal entirely.
	if _, err := os.Stat(finalPath); err == nil {
		return address, nil
	}

	blob, err := s.sealer.Seal(data, address)
	if err != nil {
		return chunk.Hash{}, err
	}

	if err := os.MkdirAll(filepath.Dir(finalPath), 0o755); err != nil {
		return chunk.Hash{}, fmt.Errorf("store: creating shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(filepath.Join(s.root, tmpDir), "blob-*.part")
	if err != nil {
		return chunk.Hash{}, fmt.Errorf("store: creating temp blob: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(blob); err != nil {
		tmpFile.Close()
		return chunk.Hash{}, fmt.Errorf("store: writing blob: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return chunk.Hash{}, fmt.Errorf("store: closing temp blob: %w", err)
	}
	if err := os.Rename(tmpPath, finalPath); err != nil {
		return chunk.Hash{}, fmt.Errorf("store: renaming blob to %s: %w", finalPath, err)
	}
	success = true

	s.logger.Debug("stored blob",
		"kind", kind,
		"address", address,
		"plaintext_bytes", len(data),
		"blob_bytes", len(blob))
	return address, nil
}

// Get implements [ChunkStore].
func (s *DirStore) Get(ctx context.Context, kind Kind, address chunk.Hash) ([]byte, error) {
	if err := s.check(ctx, kind); err != nil {
		return nil, err
	}
	blob, err := os.ReadFile(s.objectPath(kind, address))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, address)
		}
		return nil, fmt.Errorf("store: reading blob for %s: %w", address, err)
	}
	return s.sealer.Unseal(blob, address)
}

// Has implements [ChunkStore].
func (s *DirStore) Has(ctx context.Context, kind Kind, address chunk.Hash) (bool, error) {
	if err := s.check(ctx, kind); err != nil {
		return false, err
	}
	if _, err := os.Stat(s.objectPath(kind, address)); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("store: statting blob for %s: %w", address, err)
	}
	return true, nil
}

// Delete implements [ChunkStore].
func (s *DirStore) Delete(ctx context.Context, kind Kind, address chunk.Hash) error {
	if err := s.check(ctx, kind); err != nil {
		return err
	}
	if err := os.Remove(s.objectPath(kind, address)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("store: deleting blob for %s: %w", address, err)
	}
	return nil
}

// Close implements [ChunkStore]. It zeroes the root key; blobs on
// disk stay sealed.
func (s *DirStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.sealer.Close()
}

func (s *DirStore) check(ctx context.Context, kind Kind) error {
	if s.closed.Load() {
		return fmt.Errorf("store: directory store at %s is closed", s.root)
	}
	if !kind.valid() {
		return fmt.Errorf("store: invalid blob kind %d", kind)
	}
	return ctx.Err()
}

func (s *DirStore) objectPath(kind Kind, address chunk.Hash) string {
	hex := address.String()
	return filepath.Join(s.root, objectsDir, kind.String(), hex[:2], hex[2:]+".blob")
}
