// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/codec"
	"github.com/pu55yf3r/Peergos/lib/erasure"
	"github.com/pu55yf3r/Peergos/lib/store"
)

// PutOptions configures [Put].
type PutOptions struct {
	// ChunkSize overrides the chunk byte size. Zero selects
	// [chunk.MaxSize], which is what every production store uses;
	// tests use small sizes to exercise multi-chunk files cheaply.
	ChunkSize int

	// Erasure, when set, erasure-codes every chunk and stores the
	// fragments alongside it, letting reads survive lost chunk
	// blobs.
	Erasure *Geometry

	// Logger receives debug-level per-chunk events. Nil discards.
	Logger *slog.Logger
}

// PutResult is the outcome of storing a file.
type PutResult struct {
	// Ref is the file reference: the descriptor's store address in
	// the file hash domain.
	Ref chunk.Hash

	// Descriptor is the stored descriptor.
	Descriptor *Descriptor
}

// Put splits data into chunks, stores each (plus erasure fragments
// when configured), and stores the resulting descriptor. Everything
// stored is content addressed, so re-putting the same data is
// idempotent and shared chunks deduplicate across files.
func Put(ctx context.Context, st store.ChunkStore, data []byte, opts PutOptions) (*PutResult, error) {
	chunkSize := opts.ChunkSize
	if chunkSize == 0 {
		chunkSize = chunk.MaxSize
	}
	if chunkSize < 0 || chunkSize > chunk.MaxSize {
		return nil, fmt.Errorf("fs: chunk size %d outside (0, %d]", chunkSize, chunk.MaxSize)
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	var coder *erasure.Coder
	if opts.Erasure != nil {
		var err error
		coder, err = erasure.NewCoder(opts.Erasure.Originals, opts.Erasure.Parity)
		if err != nil {
			return nil, err
		}
	}

	descriptor := &Descriptor{
		Version:   DescriptorVersion,
		Size:      int64(len(data)),
		ChunkSize: chunkSize,
		Erasure:   opts.Erasure,
	}

	// A zero-length file is one empty chunk, so it still gets a
	// well-defined descriptor and reference.
	for position := 0; ; position += chunkSize {
		end := min(position+chunkSize, len(data))
		part := data[position:end]

		address, err := st.Put(ctx, store.KindChunk, part)
		if err != nil {
			return nil, fmt.Errorf("fs: storing chunk %d: %w", len(descriptor.Chunks), err)
		}
		ref := ChunkRef{Link: codec.Link(address), Size: len(part)}

		if coder != nil {
			fragments := coder.Split(part)
			ref.Fragments = make([]codec.MerkleLink, len(fragments))
			for i, fragment := range fragments {
				fragmentAddress, err := st.Put(ctx, store.KindFragment, fragment)
				if err != nil {
					return nil, fmt.Errorf("fs: storing fragment %d of chunk %d: %w",
						i, len(descriptor.Chunks), err)
				}
				ref.Fragments[i] = codec.Link(fragmentAddress)
			}
		}

		logger.Debug("stored file chunk",
			"index", len(descriptor.Chunks),
			"bytes", len(part),
			"address", address)
		descriptor.Chunks = append(descriptor.Chunks, ref)

		if end == len(data) {
			break
		}
	}

	descriptor.ContentRoot = codec.Link(descriptor.contentRoot())

	encoded, err := EncodeDescriptor(descriptor)
	if err != nil {
		return nil, err
	}
	ref, err := st.Put(ctx, store.KindDescriptor, encoded)
	if err != nil {
		return nil, fmt.Errorf("fs: storing descriptor: %w", err)
	}
	logger.Debug("stored file",
		"ref", ref,
		"size", descriptor.Size,
		"chunks", len(descriptor.Chunks))
	return &PutResult{Ref: ref, Descriptor: descriptor}, nil
}

// Fetch retrieves and validates the descriptor at ref.
func Fetch(ctx context.Context, st store.ChunkStore, ref chunk.Hash) (*Descriptor, error) {
	encoded, err := st.Get(ctx, store.KindDescriptor, ref)
	if err != nil {
		return nil, err
	}
	return DecodeDescriptor(encoded)
}
