// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package chunk defines the chunk contract shared by every layer of the
// store: the fixed maximum chunk size, the content-address hash type,
// and the Merkle tree used to derive file references.
//
// All offset arithmetic in the storage and streaming layers is
// expressed in multiples of [MaxSize]. The chunking, erasure-coding,
// and encryption layers all align on chunk boundaries; changing
// MaxSize invalidates every existing descriptor.
package chunk

// MaxSize is the fixed chunk byte size (5 MiB). Files are split,
// stored, fetched, and erasure-coded in units of at most this many
// bytes. This is a protocol constant.
const MaxSize = 5 * 1024 * 1024

// Align rounds offset down to the containing chunk boundary.
func Align(offset int64) int64 {
	return offset - offset%MaxSize
}

// NumChunks returns the number of chunks needed to hold size bytes.
// A zero-length file still occupies one (empty) chunk so that it has
// a well-defined descriptor.
func NumChunks(size int64) int64 {
	if size == 0 {
		return 1
	}
	return (size + MaxSize - 1) / MaxSize
}
