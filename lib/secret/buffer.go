// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"crypto/subtle"
	"fmt"
	"io"
	"sync"

	"golang.org/x/sys/unix"
)

// Buffer is a fixed-size region of locked memory holding key material.
// The region is mlocked so it cannot be swapped to disk and marked
// MADV_DONTDUMP so it is excluded from core dumps. Close zeroes the
// region before returning it to the kernel.
//
// Using a Buffer after Close is a programming error and panics.
type Buffer struct {
	mu     sync.Mutex
	data   []byte
	length int
	closed bool
}

// New allocates a locked buffer of the given size.
func New(size int) (*Buffer, error) {
	if size <= 0 {
		return nil, fmt.Errorf("secret: buffer size %d must be positive", size)
	}
	data, err := unix.Mmap(-1, 0, size,
		unix.PROT_READ|unix.PROT_WRITE,
		unix.MAP_PRIVATE|unix.MAP_ANONYMOUS)
	if err != nil {
		return nil, fmt.Errorf("secret: mmap %d bytes: %w", size, err)
	}
	if err := unix.Mlock(data); err != nil {
		_ = unix.Munmap(data)
		return nil, fmt.Errorf("secret: mlock: %w", err)
	}
	// Best effort: not every kernel supports the advice flag.
	_ = unix.Madvise(data, unix.MADV_DONTDUMP)
	return &Buffer{data: data, length: size}, nil
}

// NewFromBytes copies src into a fresh locked buffer and zeroes src.
// The caller's slice is useless afterwards; that is the point.
func NewFromBytes(src []byte) (*Buffer, error) {
	buffer, err := New(len(src))
	if err != nil {
		return nil, err
	}
	copy(buffer.data, src)
	Zero(src)
	return buffer, nil
}

// NewFromReader reads exactly size bytes from r into a locked buffer.
func NewFromReader(r io.Reader, size int) (*Buffer, error) {
	buffer, err := New(size)
	if err != nil {
		return nil, err
	}
	if _, err := io.ReadFull(r, buffer.data); err != nil {
		_ = buffer.Close()
		return nil, fmt.Errorf("secret: reading %d bytes: %w", size, err)
	}
	return buffer, nil
}

// Bytes exposes the underlying locked region. The slice aliases the
// buffer: callers must not retain it past Close and must not write to
// it.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: Bytes on a closed buffer")
	}
	return b.data[:b.length]
}

// String returns the contents as a string. The copy lives on the Go
// heap for the lifetime of the string; use it only at API boundaries
// that demand one, like age identity parsing.
func (b *Buffer) String() string {
	return string(b.Bytes())
}

// Len reports the buffer's size in bytes, or 0 after Close.
func (b *Buffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return 0
	}
	return b.length
}

// Equal compares the buffer's contents against other in constant time.
func (b *Buffer) Equal(other []byte) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		panic("secret: Equal on a closed buffer")
	}
	return subtle.ConstantTimeCompare(b.data[:b.length], other) == 1
}

// Close zeroes the region and unmaps it. Close is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	Zero(b.data)
	err := unix.Munmap(b.data)
	b.data = nil
	return err
}

// Zero overwrites a byte slice. The indexed loop keeps the compiler
// from eliding the stores the way a dead memclr could be.
func Zero(data []byte) {
	for i := range data {
		data[i] = 0
	}
}
