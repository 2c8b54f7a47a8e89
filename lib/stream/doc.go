// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package stream provides the adaptive read-ahead cache that sits
// between callers issuing arbitrary-length sequential reads and a
// slow, chunk-granular byte source (typically a decrypting store
// reader from lib/fs).
//
// [AsyncReader] is the contract both sides speak: length-bounded reads
// into a destination slice, chunk-aligned seeks that return a
// repositioned reader, reset-to-start, and idempotent close. A read
// may return fewer bytes than requested only at end of stream.
//
// [BufferedReader] is the core implementation. It owns a fixed
// circular buffer of k chunks and maintains a moving window of
// validly-buffered file bytes over it. Reads are served from the
// window when possible; misses trigger a single refill from the
// source, serialized by an internal gate so at most one source read
// is ever in flight. Two consecutive reads (the second starting where
// the first ended) flag the access pattern as streaming, which starts
// a background prefetch chain that keeps the window full ahead of the
// caller without delaying foreground reads.
//
// Seek and reset retire the current reader (it is permanently closed)
// and hand ownership of the repositioned source to a freshly
// constructed replacement. A retired reader's scheduled background
// refills observe the closed flag and abort; instances never share
// buffer state, so late background work is wasted, never corrupting.
package stream
