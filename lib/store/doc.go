// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package store persists chunks by content address.
//
// A [ChunkStore] maps the domain-separated BLAKE3 hash of a blob's
// plaintext to a sealed blob on disk ([DirStore]) or in memory
// ([MemStore]). Blobs come in three kinds — chunks, erasure
// fragments, and file descriptors — each addressed within its own
// hash domain and stored in its own namespace, so identical bytes can
// never collide across kinds.
//
// Sealing is compression followed by XChaCha20-Poly1305
// encryption under a key derived from the store root key and the
// chunk's address, so identical chunks seal to identical storage keys
// and deduplicate, while the blobs themselves are opaque without the
// root key.
package store
