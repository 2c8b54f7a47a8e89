// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package erasure implements the redundant fragment coding used for
// chunk durability: a systematic Reed-Solomon style code over
// GF(2^10), the same 1024-element field the original Peergos erasure
// scheme is built on.
//
// A [Coder] with K originals and M parity fragments turns a chunk
// into K+M fragments such that any K of them reconstruct the chunk.
// The code is systematic: the first K fragments are plain column
// stripes of the data, so when no fragment is lost, reassembly is a
// straight interleave with no field arithmetic at all. Parity
// fragments carry 10-bit field symbols and are stored two bytes per
// symbol.
//
// The default geometry is 40 originals with 10 parity fragments,
// tolerating the loss of any 10 fragments at 25% storage overhead.
package erasure
