// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

// ErrNotFound is returned by [ChunkStore.Get] when no blob with the
// requested address exists.
var ErrNotFound = errors.New("store: blob not found")

// Kind selects a blob namespace. Each kind addresses its blobs with
// its own domain-separated hash, so a chunk, a fragment, and a
// descriptor with identical bytes can never collide or be confused
// for one another.
type Kind uint8

const (
	// KindChunk is a file chunk, addressed by the chunk-domain hash.
	KindChunk Kind = iota

	// KindFragment is an erasure-code fragment, addressed by the
	// fragment-domain hash.
	KindFragment

	// KindDescriptor is a CBOR file descriptor, addressed by the
	// file-domain hash. That address is the file's public reference.
	KindDescriptor
)

// String returns the namespace name, which doubles as the shard
// directory name in [DirStore].
func (k Kind) String() string {
	switch k {
	case KindChunk:
		return "chunks"
	case KindFragment:
		return "fragments"
	case KindDescriptor:
		return "descriptors"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(k))
	}
}

// valid reports whether k names a real namespace.
func (k Kind) valid() bool {
	return k <= KindDescriptor
}

// address computes the content address of data within the kind's
// hash domain.
func (k Kind) address(data []byte) chunk.Hash {
	switch k {
	case KindChunk:
		return chunk.HashChunk(data)
	case KindFragment:
		return chunk.HashFragment(data)
	case KindDescriptor:
		return chunk.HashFile(data)
	default:
		panic("store: address of invalid blob kind")
	}
}

// ChunkStore is a content-addressed store of sealed blobs. The
// address of a blob is the domain hash of its plaintext for its kind;
// sealing and unsealing happen inside the store, so callers only ever
// handle plaintext.
//
// Implementations are safe for concurrent use.
type ChunkStore interface {
	// Put seals data and stores it under kind, returning its
	// address. Storing the same bytes twice is a no-op returning the
	// same address.
	Put(ctx context.Context, kind Kind, data []byte) (chunk.Hash, error)

	// Get unseals and returns the blob at address. Returns
	// [ErrNotFound] if no such blob is stored under kind.
	Get(ctx context.Context, kind Kind, address chunk.Hash) ([]byte, error)

	// Has reports whether a blob with the given address is stored
	// under kind, without unsealing it.
	Has(ctx context.Context, kind Kind, address chunk.Hash) (bool, error)

	// Delete removes the blob at address. Deleting an absent blob is
	// not an error.
	Delete(ctx context.Context, kind Kind, address chunk.Hash) error

	// Close releases the store's resources, including its sealing
	// key. Operations after Close fail.
	Close() error
}
