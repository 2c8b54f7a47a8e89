// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"
	"fmt"
	"sync/atomic"
)

// BytesReader is an [AsyncReader] over an in-memory byte slice. It
// backs small files that were fetched whole and is the reference
// source implementation for tests.
type BytesReader struct {
	data     []byte
	position int64
	closed   atomic.Bool
}

// NewBytesReader returns a reader over data positioned at the start.
// The slice is not copied.
func NewBytesReader(data []byte) *BytesReader {
	return &BytesReader{data: data}
}

// ReadInto copies up to len(dest) bytes at the current position. The
// count is short only when the remaining data is shorter than dest.
func (b *BytesReader) ReadInto(ctx context.Context, dest []byte) (int, error) {
	if b.closed.Load() {
		return 0, ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	n := copy(dest, b.data[b.position:])
	b.position += int64(n)
	return n, nil
}

// Seek transfers the data to a new reader positioned at offset and
// retires the receiver.
func (b *BytesReader) Seek(ctx context.Context, offset int64) (AsyncReader, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || offset > int64(len(b.data)) {
		return nil, fmt.Errorf("stream: seek offset %d outside %d bytes", offset, len(b.data))
	}
	b.Close()
	return &BytesReader{data: b.data, position: offset}, nil
}

// Reset transfers the data to a new reader positioned at the start
// and retires the receiver.
func (b *BytesReader) Reset(ctx context.Context) (AsyncReader, error) {
	if b.closed.Load() {
		return nil, ErrClosed
	}
	b.Close()
	return &BytesReader{data: b.data}, nil
}

// Close retires the reader. Idempotent.
func (b *BytesReader) Close() {
	b.closed.Store(true)
}
