// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"errors"
)

// ErrClosed is returned by any operation on a reader that has been
// retired by Close, Seek, or Reset.
var ErrClosed = errors.New("stream: reader is closed")

// AsyncReader is a positioned byte source. It is the contract between
// the buffered reader and the chunk-granular sources it wraps, and
// the interface the buffered reader itself exposes to the file layer.
//
// An AsyncReader is exclusively owned: Seek and Reset transfer the
// underlying position to the returned reader and retire the receiver.
// There is never more than one live reader over one source.
type AsyncReader interface {
	// ReadInto reads up to len(dest) bytes at the current position
	// into dest and advances the position by the count returned. A
	// short count signals end of stream; before end of stream a
	// conforming reader always fills dest completely.
	ReadInto(ctx context.Context, dest []byte) (int, error)

	// Seek returns a reader positioned at the given absolute offset
	// and retires the receiver. Sources only support chunk-aligned
	// offsets; the buffered reader aligns before delegating.
	Seek(ctx context.Context, offset int64) (AsyncReader, error)

	// Reset returns a reader positioned at the start of the stream
	// and retires the receiver.
	Reset(ctx context.Context) (AsyncReader, error)

	// Close retires the reader. Idempotent. In-flight background
	// work observes the closed state at its next step and aborts.
	Close()
}
