// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"bytes"
	"strings"
	"testing"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/secret"
)

// testSealer builds a sealer around a fixed root key. The key bytes
// are copied so each call gets its own buffer.
func testSealer(t *testing.T, compression CompressionTag) *Sealer {
	t.Helper()
	key := bytes.Repeat([]byte{0x42}, KeySize)
	rootKey, err := secret.NewFromBytes(key)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	sealer, err := NewSealer(rootKey, compression)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	t.Cleanup(func() { sealer.Close() })
	return sealer
}

func TestSealUnsealRoundTrip(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		t.Run(tag.String(), func(t *testing.T) {
			sealer := testSealer(t, tag)
			plaintext := []byte(strings.Repeat("compressible chunk content. ", 200))
			address := chunk.HashChunk(plaintext)

			blob, err := sealer.Seal(plaintext, address)
			if err != nil {
				t.Fatalf("Seal: %v", err)
			}
			if bytes.Contains(blob, []byte("compressible chunk")) {
				t.Error("sealed blob contains plaintext")
			}

			unsealed, err := sealer.Unseal(blob, address)
			if err != nil {
				t.Fatalf("Unseal: %v", err)
			}
			if !bytes.Equal(unsealed, plaintext) {
				t.Error("unsealed chunk differs from the original")
			}
		})
	}
}

func TestSealCompressesRepetitiveData(t *testing.T) {
	sealer := testSealer(t, CompressionZstd)
	plaintext := bytes.Repeat([]byte("all work and no play "), 1000)
	address := chunk.HashChunk(plaintext)

	blob, err := sealer.Seal(plaintext, address)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	if len(blob) >= len(plaintext)/2 {
		t.Errorf("repetitive data sealed to %d bytes from %d, expected real compression",
			len(blob), len(plaintext))
	}
}

func TestSealFallsBackForIncompressibleData(t *testing.T) {
	// Sealed output from a previous round is ciphertext and thus
	// incompressible; sealing it again must fall back to the none
	// tag instead of failing or growing the payload.
	sealer := testSealer(t, CompressionLZ4)
	inner, err := sealer.Seal([]byte("seed"), chunk.HashChunk([]byte("seed")))
	if err != nil {
		t.Fatalf("inner Seal: %v", err)
	}

	address := chunk.HashChunk(inner)
	blob, err := sealer.Seal(inner, address)
	if err != nil {
		t.Fatalf("Seal of incompressible data: %v", err)
	}
	if len(blob) != len(inner)+SealedBlobOverhead {
		t.Errorf("blob is %d bytes, want %d payload + %d overhead",
			len(blob), len(inner), SealedBlobOverhead)
	}
	unsealed, err := sealer.Unseal(blob, address)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if !bytes.Equal(unsealed, inner) {
		t.Error("incompressible chunk did not round trip")
	}
}

func TestSealEmptyChunk(t *testing.T) {
	sealer := testSealer(t, CompressionZstd)
	address := chunk.HashChunk(nil)
	blob, err := sealer.Seal(nil, address)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	unsealed, err := sealer.Unseal(blob, address)
	if err != nil {
		t.Fatalf("Unseal: %v", err)
	}
	if len(unsealed) != 0 {
		t.Errorf("empty chunk unsealed to %d bytes", len(unsealed))
	}
}

func TestUnsealRejectsWrongAddress(t *testing.T) {
	sealer := testSealer(t, CompressionNone)
	plaintext := []byte("bound to its address")
	address := chunk.HashChunk(plaintext)

	blob, err := sealer.Seal(plaintext, address)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	other := chunk.HashChunk([]byte("a different chunk"))
	if _, err := sealer.Unseal(blob, other); err == nil {
		t.Error("blob opened under a different address")
	}
}

func TestUnsealRejectsTampering(t *testing.T) {
	sealer := testSealer(t, CompressionNone)
	plaintext := []byte("authenticated payload")
	address := chunk.HashChunk(plaintext)

	blob, err := sealer.Seal(plaintext, address)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	for _, position := range []int{0, 1, 10, len(blob) - 1} {
		tampered := bytes.Clone(blob)
		tampered[position] ^= 0x01
		if _, err := sealer.Unseal(tampered, address); err == nil {
			t.Errorf("blob with byte %d flipped still opened", position)
		}
	}
}

func TestUnsealRejectsWrongKey(t *testing.T) {
	sealer := testSealer(t, CompressionNone)
	plaintext := []byte("keyed to one store")
	address := chunk.HashChunk(plaintext)
	blob, err := sealer.Seal(plaintext, address)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}

	otherKey, err := secret.NewFromBytes(bytes.Repeat([]byte{0x17}, KeySize))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	other, err := NewSealer(otherKey, CompressionNone)
	if err != nil {
		t.Fatalf("NewSealer: %v", err)
	}
	defer other.Close()

	if _, err := other.Unseal(blob, address); err == nil {
		t.Error("blob opened under a different root key")
	}
}

func TestUnsealRejectsTruncatedBlob(t *testing.T) {
	sealer := testSealer(t, CompressionNone)
	if _, err := sealer.Unseal([]byte{SealedBlobVersion, 1, 2, 3}, chunk.Hash{}); err == nil {
		t.Error("expected error for a blob shorter than the fixed overhead")
	}
}

func TestNewSealerValidation(t *testing.T) {
	shortKey, err := secret.NewFromBytes([]byte("too short"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer shortKey.Close()
	if _, err := NewSealer(shortKey, CompressionNone); err == nil {
		t.Error("expected error for a root key shorter than KeySize")
	}

	goodKey, err := secret.NewFromBytes(bytes.Repeat([]byte{1}, KeySize))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer goodKey.Close()
	if _, err := NewSealer(goodKey, CompressionTag(9)); err == nil {
		t.Error("expected error for an unknown compression tag")
	}
}

func TestCompressionTagStrings(t *testing.T) {
	for _, tag := range []CompressionTag{CompressionNone, CompressionLZ4, CompressionZstd} {
		parsed, err := ParseCompressionTag(tag.String())
		if err != nil {
			t.Fatalf("ParseCompressionTag(%q): %v", tag.String(), err)
		}
		if parsed != tag {
			t.Errorf("parse(%q) = %v", tag.String(), parsed)
		}
	}
	if _, err := ParseCompressionTag("gzip"); err == nil {
		t.Error("expected error for an unsupported tag name")
	}
}

func TestDecompressChunkVerifiesSize(t *testing.T) {
	compressed, err := CompressChunk(bytes.Repeat([]byte("ab"), 500), CompressionLZ4)
	if err != nil {
		t.Fatalf("CompressChunk: %v", err)
	}
	if _, err := DecompressChunk(compressed, CompressionLZ4, 999); err == nil {
		t.Error("expected error for a wrong uncompressed size")
	}
}
