// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package chunk

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Hash is a 32-byte BLAKE3 digest. All content addresses in the store
// (chunks, erasure fragments, file descriptors) are this size.
type Hash [32]byte

// domainKey is a 32-byte key for BLAKE3 keyed hashing. Domain
// separation ensures the same bytes hash differently in different
// contexts, so a chunk address can never collide with a descriptor
// address.
type domainKey [32]byte

// Domain separation keys. Fixed protocol constants — changing them
// invalidates every address in that domain. The values are the ASCII
// domain name zero-padded to 32 bytes, readable in hex dumps without
// weakening the keyed hash (BLAKE3 treats the key as opaque).
var (
	chunkDomainKey = domainKey{
		'p', 'e', 'e', 'r', 'g', 'o', 's', '.',
		'c', 'h', 'u', 'n', 'k',
	}

	fragmentDomainKey = domainKey{
		'p', 'e', 'e', 'r', 'g', 'o', 's', '.',
		'f', 'r', 'a', 'g', 'm', 'e', 'n', 't',
	}

	fileDomainKey = domainKey{
		'p', 'e', 'e', 'r', 'g', 'o', 's', '.',
		'f', 'i', 'l', 'e',
	}
)

// HashChunk computes the chunk-domain hash of a chunk's plaintext
// bytes. This is the chunk's content address: it is computed before
// compression and encryption so identical plaintext always dedups to
// the same address regardless of sealing parameters.
func HashChunk(data []byte) Hash {
	return keyedHash(chunkDomainKey, data)
}

// HashFragment computes the fragment-domain hash of an erasure
// fragment's bytes. Fragments live in their own domain so that a
// fragment can never be confused with the chunk it encodes.
func HashFragment(data []byte) Hash {
	return keyedHash(fragmentDomainKey, data)
}

// HashFile computes the file-domain hash of an encoded file
// descriptor. File references handed to callers are always
// file-domain hashes.
func HashFile(descriptor []byte) Hash {
	return keyedHash(fileDomainKey, descriptor)
}

// MerkleRoot computes a binary Merkle tree over chunk hashes and
// returns the root. Adjacent pairs are concatenated and hashed in the
// chunk domain; an odd trailing node is promoted to the next level
// without hashing (not duplicated — duplication would let a prefix
// input collide with its extension).
//
// Panics if hashes is empty: a descriptor always carries at least one
// chunk link.
func MerkleRoot(hashes []Hash) Hash {
	if len(hashes) == 0 {
		panic("chunk.MerkleRoot: empty hash list")
	}
	if len(hashes) == 1 {
		return hashes[0]
	}

	// One keyed hasher reused via Reset for every pair — the
	// per-pair allocation is the dominant cost on large trees.
	hasher, err := blake3.NewKeyed(chunkDomainKey[:])
	if err != nil {
		panic("chunk: BLAKE3 keyed hash initialization failed: " + err.Error())
	}

	var combined [64]byte
	hashPair := func(left, right Hash) Hash {
		copy(combined[:32], left[:])
		copy(combined[32:], right[:])
		hasher.Reset()
		hasher.Write(combined[:])
		var result Hash
		copy(result[:], hasher.Sum(nil))
		return result
	}

	// Work on a copy to avoid mutating the caller's slice.
	level := make([]Hash, len(hashes))
	copy(level, hashes)

	for len(level) > 1 {
		nextLength := (len(level) + 1) / 2
		next := make([]Hash, nextLength)

		for i := 0; i < len(level)-1; i += 2 {
			next[i/2] = hashPair(level[i], level[i+1])
		}

		// Odd node: promote without hashing.
		if len(level)%2 == 1 {
			next[nextLength-1] = level[len(level)-1]
		}

		level = next
	}

	return level[0]
}

// String returns the hex-encoded representation of a hash. This is
// the canonical format used in descriptors, logs, and CLI output.
func (h Hash) String() string {
	return hex.EncodeToString(h[:])
}

// IsZero reports whether the hash is the all-zero value, which is
// never a valid content address.
func (h Hash) IsZero() bool {
	return h == Hash{}
}

// ParseHash parses a 64-character hex string into a Hash.
func ParseHash(hexString string) (Hash, error) {
	var hash Hash
	decoded, err := hex.DecodeString(hexString)
	if err != nil {
		return hash, fmt.Errorf("parsing content hash: %w", err)
	}
	if len(decoded) != 32 {
		return hash, fmt.Errorf("content hash is %d bytes, want 32", len(decoded))
	}
	copy(hash[:], decoded)
	return hash, nil
}

// keyedHash computes the BLAKE3 keyed hash of data under the given
// domain key.
func keyedHash(key domainKey, data []byte) Hash {
	// NewKeyed only fails for a wrong key length, which domainKey
	// rules out.
	hasher, err := blake3.NewKeyed(key[:])
	if err != nil {
		panic("chunk: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var hash Hash
	copy(hash[:], hasher.Sum(nil))
	return hash
}
