// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package fs is the file layer over the chunk store.
//
// [Put] splits a file into chunks, seals each into the store, and
// writes a CBOR [Descriptor] naming the chunks by merkle link. The
// descriptor's own store address (in the file hash domain) is the
// file's reference: hand it to [Fetch] to get the descriptor back and
// to [Open] to stream the content.
//
// Open wires a chunk-granular store reader into a
// [stream.BufferedReader], so callers get arbitrary-length reads with
// adaptive read-ahead while the store is only ever asked for whole
// chunks. When a descriptor carries erasure fragments, a missing
// chunk is reconstructed from surviving fragments transparently
// during reads, and the reconstructed chunk is written back to the
// store.
package fs
