// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds key material in locked memory.
//
// A [Buffer] lives in an mmap'd region that is mlocked (never swapped)
// and excluded from core dumps. [Buffer.Close] zeroes the region before
// unmapping it, and helpers like [NewFromBytes] and [Zero] scrub the
// intermediate copies that ordinary Go allocation would leave behind.
//
// The store root key and every key derived from it travel through this
// package rather than through plain byte slices.
package secret
