// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/erasure"
	"github.com/pu55yf3r/Peergos/lib/store"
	"github.com/pu55yf3r/Peergos/lib/stream"
)

// DefaultWindowChunks is the read-ahead window size, in chunks, used
// when [OpenOptions] does not override it.
const DefaultWindowChunks = 4

// OpenOptions configures [Open].
type OpenOptions struct {
	// WindowChunks is the buffered window size in chunks. Zero
	// selects [DefaultWindowChunks].
	WindowChunks int

	// Logger receives debug-level refill, prefetch, and recovery
	// events. Nil discards.
	Logger *slog.Logger
}

// Open streams the file described by descriptor. The returned reader
// serves arbitrary-length reads with adaptive read-ahead; the store
// underneath is only ever asked for whole chunks.
func Open(ctx context.Context, st store.ChunkStore, descriptor *Descriptor, opts OpenOptions) (*stream.BufferedReader, error) {
	if err := descriptor.Validate(); err != nil {
		return nil, err
	}
	windowChunks := opts.WindowChunks
	if windowChunks == 0 {
		windowChunks = DefaultWindowChunks
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	source, err := newChunkReader(st, descriptor, logger, 0)
	if err != nil {
		return nil, err
	}
	return stream.NewBufferedReader(source, stream.BufferConfig{
		Chunks:    windowChunks,
		ChunkSize: descriptor.ChunkSize,
		FileSize:  descriptor.Size,
		Logger:    logger,
	})
}

// OpenRef is [Fetch] followed by [Open].
func OpenRef(ctx context.Context, st store.ChunkStore, ref chunk.Hash, opts OpenOptions) (*stream.BufferedReader, error) {
	descriptor, err := Fetch(ctx, st, ref)
	if err != nil {
		return nil, err
	}
	return Open(ctx, st, descriptor, opts)
}

// chunkReader is the chunk-granular [stream.AsyncReader] over the
// store. It holds at most one decoded chunk and serves reads out of
// it; crossing into the next chunk costs one store fetch. Seeks land
// only on chunk boundaries, which is exactly how the buffered reader
// above it issues them.
type chunkReader struct {
	store      store.ChunkStore
	descriptor *Descriptor
	logger     *slog.Logger

	mu           sync.Mutex
	position     int64
	current      []byte
	currentIndex int
	closed       bool
}

func newChunkReader(st store.ChunkStore, descriptor *Descriptor, logger *slog.Logger, position int64) (*chunkReader, error) {
	if position < 0 || position > descriptor.Size {
		return nil, fmt.Errorf("fs: position %d outside file of %d bytes", position, descriptor.Size)
	}
	if position%int64(descriptor.ChunkSize) != 0 && position != descriptor.Size {
		return nil, fmt.Errorf("fs: position %d is not aligned to chunk size %d", position, descriptor.ChunkSize)
	}
	return &chunkReader{
		store:        st,
		descriptor:   descriptor,
		logger:       logger,
		position:     position,
		currentIndex: -1,
	}, nil
}

// ReadInto implements [stream.AsyncReader]. It serves from the
// current chunk only, so a read never spans a chunk boundary; the
// count returned is short of len(dest) when the chunk (or the file)
// ends first.
func (r *chunkReader) ReadInto(ctx context.Context, dest []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return 0, stream.ErrClosed
	}
	if r.position >= r.descriptor.Size {
		return 0, io.EOF
	}

	index := int(r.position / int64(r.descriptor.ChunkSize))
	if index != r.currentIndex {
		data, err := r.loadChunk(ctx, index)
		if err != nil {
			return 0, err
		}
		r.current = data
		r.currentIndex = index
	}

	offsetInChunk := int(r.position - int64(index)*int64(r.descriptor.ChunkSize))
	n := copy(dest, r.current[offsetInChunk:])
	r.position += int64(n)
	return n, nil
}

// Seek implements [stream.AsyncReader]. Offsets must be chunk-aligned
// (or the end of the file); the buffered reader aligns its seeks
// before they reach here. The receiver is retired.
func (r *chunkReader) Seek(ctx context.Context, offset int64) (stream.AsyncReader, error) {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil, stream.ErrClosed
	}
	r.closed = true
	r.current = nil
	r.mu.Unlock()

	return newChunkReader(r.store, r.descriptor, r.logger, offset)
}

// Reset implements [stream.AsyncReader].
func (r *chunkReader) Reset(ctx context.Context) (stream.AsyncReader, error) {
	return r.Seek(ctx, 0)
}

// Close implements [stream.AsyncReader].
func (r *chunkReader) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.current = nil
}

// loadChunk fetches chunk index from the store, reconstructing it
// from erasure fragments when the chunk blob itself is gone. Caller
// holds mu.
func (r *chunkReader) loadChunk(ctx context.Context, index int) ([]byte, error) {
	ref := r.descriptor.Chunks[index]
	data, err := r.store.Get(ctx, store.KindChunk, ref.Link.Target)
	if err == nil {
		return data, nil
	}
	if !errors.Is(err, store.ErrNotFound) || len(ref.Fragments) == 0 {
		return nil, fmt.Errorf("fs: fetching chunk %d: %w", index, err)
	}

	r.logger.Warn("chunk blob missing, reconstructing from fragments",
		"index", index,
		"address", ref.Link.Target)
	data, err = r.recoverChunk(ctx, index, ref)
	if err != nil {
		return nil, err
	}

	// Self-heal: put the reconstructed chunk back. Failure here
	// only costs future reads another reconstruction.
	if _, putErr := r.store.Put(ctx, store.KindChunk, data); putErr != nil {
		r.logger.Warn("failed to restore reconstructed chunk", "index", index, "error", putErr)
	}
	return data, nil
}

// recoverChunk fetches the surviving fragments of chunk index and
// reconstructs the chunk. Caller holds mu.
func (r *chunkReader) recoverChunk(ctx context.Context, index int, ref ChunkRef) ([]byte, error) {
	geometry := r.descriptor.Erasure
	coder, err := erasure.NewCoder(geometry.Originals, geometry.Parity)
	if err != nil {
		return nil, err
	}

	fragments := make([][]byte, len(ref.Fragments))
	present := 0
	for i, link := range ref.Fragments {
		fragment, err := r.store.Get(ctx, store.KindFragment, link.Target)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				continue
			}
			return nil, fmt.Errorf("fs: fetching fragment %d of chunk %d: %w", i, index, err)
		}
		fragments[i] = fragment
		present++
		// Recover needs exactly Originals fragments; skip the rest
		// of the fetches once enough survive.
		if present == geometry.Originals {
			break
		}
	}

	data, err := coder.Recover(fragments, ref.Size)
	if err != nil {
		return nil, fmt.Errorf("fs: reconstructing chunk %d: %w", index, err)
	}
	if chunk.HashChunk(data) != ref.Link.Target {
		return nil, fmt.Errorf("fs: reconstructed chunk %d does not match its link %s", index, ref.Link.Target)
	}
	r.logger.Info("reconstructed chunk from fragments",
		"index", index,
		"fragments_used", present)
	return data, nil
}
