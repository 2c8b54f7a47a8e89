// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

// BufferConfig holds the construction parameters for a
// [BufferedReader].
type BufferConfig struct {
	// Chunks is the number of chunks the window can hold. The buffer
	// capacity is Chunks * ChunkSize bytes. Required, must be
	// positive.
	Chunks int

	// ChunkSize is the chunk byte size the source fetches in. Zero
	// selects [chunk.MaxSize]. Tests use small sizes; production
	// code should leave this at the default, which every other layer
	// of the store is aligned on.
	ChunkSize int

	// FileSize is the total byte length of the logical file.
	FileSize int64

	// Anchor is the absolute file offset the window starts at. Must
	// be chunk-aligned (the source it wraps was positioned with a
	// chunk-granular seek). Zero for the start of the file.
	Anchor int64

	// Logger receives debug-level refill and prefetch events. Nil
	// discards them.
	Logger *slog.Logger
}

// BufferedReader is an [AsyncReader] that serves reads from a moving
// window of buffered file bytes over a fixed circular buffer, while a
// background prefetch pipeline races to keep the window full once
// streaming access is detected.
//
// The window bookkeeping invariant, held at all times:
//
//	bufferStart <= readOffset <= bufferEnd <= fileSize
//	bufferEnd - bufferStart <= len(buffer)
//
// A BufferedReader must not be shared: one caller issues reads, and
// Seek/Reset retire the instance in favor of a replacement.
type BufferedReader struct {
	source    AsyncReader
	fileSize  int64
	chunkSize int
	buffer    []byte
	gate      *refillGate
	logger    *slog.Logger

	// closed is one-way. It is advisory to background refills
	// (checked at their next admission to the gate) and immediate
	// for new foreground calls.
	closed atomic.Bool

	// mu guards the window fields below. Critical sections are pure
	// bookkeeping and never span an I/O wait.
	mu sync.Mutex

	// readOffset is the absolute file offset of the next byte to
	// deliver to the caller.
	readOffset int64

	// bufferStart and bufferEnd bound the validly buffered window.
	bufferStart int64
	bufferEnd   int64

	// startInBuffer is the physical buffer index holding the byte at
	// file offset bufferStart. The window occupies the circular span
	// [startInBuffer, startInBuffer+(bufferEnd-bufferStart)) mod cap.
	startInBuffer int

	// lastReadEnd is the file offset at which the previous ReadInto
	// ended, used only to detect consecutive sequential reads. -1
	// until the first read.
	lastReadEnd int64
}

// NewBufferedReader wraps source in a buffered reader. The source
// must be positioned at config.Anchor. Configuration errors are
// rejected here rather than surfacing later as corrupted offset
// arithmetic.
func NewBufferedReader(source AsyncReader, config BufferConfig) (*BufferedReader, error) {
	if config.ChunkSize == 0 {
		config.ChunkSize = chunk.MaxSize
	}
	if config.ChunkSize < 0 {
		return nil, fmt.Errorf("stream: chunk size %d is negative", config.ChunkSize)
	}
	if config.Chunks <= 0 {
		return nil, fmt.Errorf("stream: window must hold at least one chunk, got %d", config.Chunks)
	}
	if config.FileSize < 0 {
		return nil, fmt.Errorf("stream: file size %d is negative", config.FileSize)
	}
	if config.Anchor < 0 || config.Anchor > config.FileSize {
		return nil, fmt.Errorf("stream: anchor %d outside file of %d bytes", config.Anchor, config.FileSize)
	}
	if config.Anchor%int64(config.ChunkSize) != 0 {
		return nil, fmt.Errorf("stream: anchor %d is not aligned to chunk size %d", config.Anchor, config.ChunkSize)
	}
	logger := config.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}

	return &BufferedReader{
		source:      source,
		fileSize:    config.FileSize,
		chunkSize:   config.ChunkSize,
		buffer:      make([]byte, config.Chunks*config.ChunkSize),
		gate:        newRefillGate(),
		logger:      logger,
		readOffset:  config.Anchor,
		bufferStart: config.Anchor,
		bufferEnd:   config.Anchor,
		lastReadEnd: -1,
	}, nil
}

// buffered returns the window size in bytes. Caller holds mu.
func (r *BufferedReader) buffered() int {
	return int(r.bufferEnd - r.bufferStart)
}

// available returns the buffered bytes not yet delivered. Caller
// holds mu.
func (r *BufferedReader) available() int {
	return int(r.bufferEnd - r.readOffset)
}

// consumed returns the buffered bytes already delivered. Caller
// holds mu.
func (r *BufferedReader) consumed() int {
	return int(r.readOffset - r.bufferStart)
}

// ReadInto delivers up to len(dest) bytes at the current read offset.
// The count returned equals len(dest) unless the file's remaining
// bytes are fewer, in which case it is clamped to that remainder:
// end of file is the only source of short reads. A read starting
// exactly at end of file is a zero-byte success.
func (r *BufferedReader) ReadInto(ctx context.Context, dest []byte) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	r.mu.Lock()
	sequential := r.lastReadEnd == r.readOffset
	length := int64(len(dest))
	if remaining := r.fileSize - r.readOffset; length > remaining {
		length = remaining
	}
	r.lastReadEnd = r.readOffset + length
	r.mu.Unlock()

	if length == 0 {
		return 0, nil
	}

	n, err := r.fill(ctx, dest[:length])
	if err != nil {
		return n, err
	}

	// Only prefetch when the access pattern looks like streaming:
	// this read started exactly where the previous one ended.
	r.mu.Lock()
	full := r.buffered() >= len(r.buffer)
	atEnd := r.bufferEnd >= r.fileSize
	free := (len(r.buffer) - r.available()) / r.chunkSize
	r.mu.Unlock()
	if sequential && !full && !atEnd && !r.closed.Load() && free > 0 {
		r.logger.Debug("starting background prefetch", "chunks", free)
		go r.prefetch(free)
	}

	return n, nil
}

// fill delivers exactly len(dest) bytes: it drains whatever the
// window holds, and when the window runs dry it requests one refill
// step through the gate and goes around again. dest must already be
// clamped to the file's remaining bytes.
func (r *BufferedReader) fill(ctx context.Context, dest []byte) (int, error) {
	total := 0
	for total < len(dest) {
		if r.closed.Load() {
			return total, ErrClosed
		}
		total += r.copyAvailable(dest[total:])
		if total == len(dest) {
			break
		}

		var added int
		err := r.gate.runExclusive(ctx, func() error {
			r.mu.Lock()
			available := r.available()
			r.mu.Unlock()
			if available > 0 {
				// A concurrent background refill supplied data while
				// we waited at the gate; no need for another fetch.
				added = available
				return nil
			}
			var refillErr error
			added, refillErr = r.refillOneChunk(ctx)
			return refillErr
		})
		if err != nil {
			return total, err
		}
		if added == 0 {
			// dest is clamped to the file size, so running out of
			// stream here means the source broke its contract.
			r.mu.Lock()
			stalled := r.bufferEnd
			r.mu.Unlock()
			return total, fmt.Errorf("stream: source returned no data at offset %d before end of file", stalled)
		}
	}
	return total, nil
}

// copyAvailable copies as much of dest as the window can serve,
// advances the read offset, and evicts fully consumed chunks.
// Returns the count copied, possibly zero.
func (r *BufferedReader) copyAvailable(dest []byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	toCopy := min(len(dest), r.available())
	if toCopy <= 0 {
		return 0
	}

	// The window may wrap physically: one or two copy segments.
	readStart := (r.startInBuffer + r.consumed()) % len(r.buffer)
	first := min(toCopy, len(r.buffer)-readStart)
	copy(dest[:first], r.buffer[readStart:readStart+first])
	if first < toCopy {
		copy(dest[first:toCopy], r.buffer[:toCopy-first])
	}
	r.readOffset += int64(toCopy)

	// Eviction proceeds in whole-chunk steps only: at most one
	// partially consumed chunk ever remains behind the read offset.
	for r.consumed() >= r.chunkSize {
		r.bufferStart += int64(r.chunkSize)
		r.startInBuffer = (r.startInBuffer + r.chunkSize) % len(r.buffer)
	}
	return toCopy
}

// refillOneChunk fetches up to one chunk's worth of bytes from the
// source into the next free slot of the circular buffer and advances
// bufferEnd by the count actually read. Returns 0 without fetching
// when the window is already full (back-pressure) or bufferEnd has
// reached the file size. Must be called under the gate.
func (r *BufferedReader) refillOneChunk(ctx context.Context) (int, error) {
	if r.closed.Load() {
		return 0, ErrClosed
	}

	r.mu.Lock()
	if r.buffered() >= len(r.buffer) {
		r.mu.Unlock()
		return 0, nil
	}
	writeStart := (r.buffered() + r.startInBuffer) % len(r.buffer)
	toRead := min(len(r.buffer)-writeStart, r.chunkSize)
	if remaining := r.fileSize - r.bufferEnd; int64(toRead) > remaining {
		toRead = int(remaining)
	}
	r.mu.Unlock()

	if toRead == 0 {
		return 0, nil
	}

	// The write slot is disjoint from the valid window and the gate
	// excludes other refills, so the source may fill it without mu.
	// Refills always extend bufferEnd to a chunk boundary (or the end
	// of the file), so writeStart stays chunk-aligned and the slot
	// never overlaps unconsumed bytes.
	read, err := r.source.ReadInto(ctx, r.buffer[writeStart:writeStart+toRead])
	if err != nil {
		return 0, fmt.Errorf("refilling from source: %w", err)
	}

	r.mu.Lock()
	r.bufferEnd += int64(read)
	end := r.bufferEnd
	r.mu.Unlock()
	r.logger.Debug("refilled", "bytes", read, "bufferEnd", end)
	return read, nil
}

// prefetch runs up to chunks background refill steps, stopping early
// when the window fills, the stream ends, the reader is retired, or a
// refill fails. Failures stop the chain and are otherwise swallowed:
// they must not disturb unrelated foreground reads, which will
// re-encounter any persistent source error on their own refill.
func (r *BufferedReader) prefetch(chunks int) {
	ctx := context.Background()
	for ; chunks > 0; chunks-- {
		var added int
		err := r.gate.runExclusive(ctx, func() error {
			var refillErr error
			added, refillErr = r.refillOneChunk(ctx)
			return refillErr
		})
		if err != nil {
			r.logger.Debug("background prefetch stopped", "error", err)
			return
		}
		if added == 0 {
			return
		}
	}
}

// Seek returns a reader positioned at offset. When offset is already
// the current read offset the receiver is returned unchanged;
// otherwise the receiver is retired and a fresh reader takes
// ownership of the repositioned source. Because sources only support
// chunk-granular seeks, the source is positioned at the containing
// chunk boundary and the fresh reader catches up to the exact target
// with an internal scratch read.
func (r *BufferedReader) Seek(ctx context.Context, offset int64) (AsyncReader, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || offset > r.fileSize {
		return nil, fmt.Errorf("stream: seek offset %d outside file of %d bytes", offset, r.fileSize)
	}

	r.mu.Lock()
	current := r.readOffset
	r.mu.Unlock()
	if offset == current {
		return r, nil
	}

	r.Close()
	aligned := offset - offset%int64(r.chunkSize)
	source, err := r.source.Seek(ctx, aligned)
	if err != nil {
		return nil, fmt.Errorf("seeking source to %d: %w", aligned, err)
	}
	next, err := NewBufferedReader(source, BufferConfig{
		Chunks:    len(r.buffer) / r.chunkSize,
		ChunkSize: r.chunkSize,
		FileSize:  r.fileSize,
		Anchor:    aligned,
		Logger:    r.logger,
	})
	if err != nil {
		return nil, err
	}

	// Catch up from the aligned position to the exact target. The
	// retired instance's buffer serves as the scratch destination.
	if delta := offset - aligned; delta > 0 {
		if _, err := next.fill(ctx, r.buffer[:delta]); err != nil {
			next.Close()
			return nil, fmt.Errorf("advancing to offset %d: %w", offset, err)
		}
	}
	return next, nil
}

// Reset returns a reader positioned at the start of the file, using
// the source's native reset, and retires the receiver.
func (r *BufferedReader) Reset(ctx context.Context) (AsyncReader, error) {
	if r.closed.Load() {
		return nil, ErrClosed
	}
	r.Close()
	source, err := r.source.Reset(ctx)
	if err != nil {
		return nil, fmt.Errorf("resetting source: %w", err)
	}
	return NewBufferedReader(source, BufferConfig{
		Chunks:    len(r.buffer) / r.chunkSize,
		ChunkSize: r.chunkSize,
		FileSize:  r.fileSize,
		Logger:    r.logger,
	})
}

// Close retires the reader. Idempotent. Background refills already
// scheduled observe the flag at their next step and abort without
// touching the window; new foreground calls fail immediately with
// [ErrClosed].
func (r *BufferedReader) Close() {
	r.closed.Store(true)
}
