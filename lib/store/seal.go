// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/secret"
)

// KeySize is the size in bytes of the store root key and of every key
// derived from it.
const KeySize = 32

// SealedBlobVersion is the version byte prepended to every sealed
// blob. It is part of the AEAD additional authenticated data, so
// tampering with it fails authentication rather than selecting a
// different parse.
const SealedBlobVersion byte = 0x01

// frameHeaderSize is the sealed frame prefix inside the ciphertext:
// 1 byte compression tag + 4 bytes big-endian uncompressed size.
const frameHeaderSize = 5

// SealedBlobOverhead is the fixed per-blob overhead on top of the
// (possibly compressed) chunk payload: version + nonce + frame header
// + Poly1305 tag.
const SealedBlobOverhead = 1 + chacha20poly1305.NonceSizeX + frameHeaderSize + chacha20poly1305.Overhead

// hkdfInfoChunk is the HKDF-SHA256 info prefix for per-chunk key
// derivation. The chunk address is appended, so every chunk encrypts
// under its own key while the derivation stays convergent: the same
// chunk under the same root key always derives the same key.
var hkdfInfoChunk = []byte("peergos.chunk.enc.v1")

// Sealer turns chunk plaintext into encrypted storage blobs and back.
// It owns the store root key; Close zeroes it. A Sealer is safe for
// concurrent use.
type Sealer struct {
	rootKey     *secret.Buffer
	compression CompressionTag
}

// NewSealer creates a sealer around a root key. The key buffer is
// owned by the sealer from this point on and is closed by
// [Sealer.Close]; it must be exactly [KeySize] bytes. compression
// selects the algorithm attempted on Seal; incompressible chunks fall
// back to CompressionNone automatically.
func NewSealer(rootKey *secret.Buffer, compression CompressionTag) (*Sealer, error) {
	if rootKey.Len() != KeySize {
		return nil, fmt.Errorf("store: root key must be %d bytes, got %d", KeySize, rootKey.Len())
	}
	switch compression {
	case CompressionNone, CompressionLZ4, CompressionZstd:
	default:
		return nil, fmt.Errorf("store: unsupported compression tag %d", compression)
	}
	return &Sealer{rootKey: rootKey, compression: compression}, nil
}

// Seal compresses plaintext, frames it, and encrypts the frame with
// XChaCha20-Poly1305 under the chunk's derived key. The blob layout is
//
//	[version 1B] [nonce 24B] [ciphertext+tag]
//
// where the ciphertext decrypts to
//
//	[compression tag 1B] [uncompressed size 4B BE] [payload]
//
// The version byte and the chunk address are authenticated as AAD, so
// a blob moved to a different address fails to open.
func (s *Sealer) Seal(plaintext []byte, address chunk.Hash) ([]byte, error) {
	tag := s.compression
	payload, err := CompressChunk(plaintext, tag)
	if err != nil {
		if !IsIncompressible(err) {
			return nil, err
		}
		tag = CompressionNone
		payload = plaintext
	}

	frame := make([]byte, frameHeaderSize+len(payload))
	frame[0] = byte(tag)
	binary.BigEndian.PutUint32(frame[1:], uint32(len(plaintext)))
	copy(frame[frameHeaderSize:], payload)

	key, err := s.deriveChunkKey(address)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store: creating XChaCha20-Poly1305 cipher: %w", err)
	}

	var nonce [chacha20poly1305.NonceSizeX]byte
	if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
		return nil, fmt.Errorf("store: generating nonce: %w", err)
	}

	blob := make([]byte, 1+chacha20poly1305.NonceSizeX, 1+chacha20poly1305.NonceSizeX+len(frame)+aead.Overhead())
	blob[0] = SealedBlobVersion
	copy(blob[1:], nonce[:])
	return aead.Seal(blob, nonce[:], frame, buildAAD(SealedBlobVersion, address)), nil
}

// Unseal decrypts and decompresses a blob produced by [Sealer.Seal]
// for the given address. Authentication failure means a wrong key, a
// tampered blob, or a blob stored under a different address.
func (s *Sealer) Unseal(blob []byte, address chunk.Hash) ([]byte, error) {
	if len(blob) < SealedBlobOverhead {
		return nil, fmt.Errorf("store: sealed blob is %d bytes, minimum is %d", len(blob), SealedBlobOverhead)
	}
	if blob[0] != SealedBlobVersion {
		return nil, fmt.Errorf("store: sealed blob version %d is not supported (expected %d)",
			blob[0], SealedBlobVersion)
	}

	key, err := s.deriveChunkKey(address)
	if err != nil {
		return nil, err
	}
	defer key.Close()

	aead, err := chacha20poly1305.NewX(key.Bytes())
	if err != nil {
		return nil, fmt.Errorf("store: creating XChaCha20-Poly1305 cipher: %w", err)
	}

	nonce := blob[1 : 1+chacha20poly1305.NonceSizeX]
	ciphertext := blob[1+chacha20poly1305.NonceSizeX:]
	frame, err := aead.Open(nil, nonce, ciphertext, buildAAD(blob[0], address))
	if err != nil {
		return nil, fmt.Errorf("store: unsealing chunk %s: %w", address, err)
	}

	if len(frame) < frameHeaderSize {
		return nil, fmt.Errorf("store: sealed frame is %d bytes, minimum is %d", len(frame), frameHeaderSize)
	}
	tag := CompressionTag(frame[0])
	uncompressedSize := int(binary.BigEndian.Uint32(frame[1:]))
	if uncompressedSize > chunk.MaxSize {
		return nil, fmt.Errorf("store: frame claims %d uncompressed bytes, chunk maximum is %d",
			uncompressedSize, chunk.MaxSize)
	}
	return DecompressChunk(frame[frameHeaderSize:], tag, uncompressedSize)
}

// Close zeroes and releases the root key. Idempotent.
func (s *Sealer) Close() error {
	return s.rootKey.Close()
}

// deriveChunkKey derives the per-chunk encryption key:
// HKDF-SHA256(rootKey, info = hkdfInfoChunk || address). The salt is
// nil; the root key is already uniformly random, so the extract phase
// with a zero HMAC key is fine per RFC 5869.
func (s *Sealer) deriveChunkKey(address chunk.Hash) (*secret.Buffer, error) {
	info := make([]byte, len(hkdfInfoChunk)+len(address))
	copy(info, hkdfInfoChunk)
	copy(info[len(hkdfInfoChunk):], address[:])

	reader := hkdf.New(sha256.New, s.rootKey.Bytes(), nil, info)
	derived := make([]byte, KeySize)
	if _, err := io.ReadFull(reader, derived); err != nil {
		secret.Zero(derived)
		return nil, fmt.Errorf("store: HKDF key derivation failed: %w", err)
	}
	return secret.NewFromBytes(derived)
}

// buildAAD is the additional authenticated data for sealing: the
// version byte followed by the chunk address. The address binds the
// ciphertext to its storage key, preventing blob swapping.
func buildAAD(version byte, address chunk.Hash) []byte {
	aad := make([]byte, 1+len(address))
	aad[0] = version
	copy(aad[1:], address[:])
	return aad
}
