// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package fs

import (
	"fmt"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/codec"
)

// DescriptorVersion is the current descriptor format version.
const DescriptorVersion = 1

// Geometry is the erasure-coding shape applied to each chunk of a
// file: every chunk is split into Originals+Parity fragments, any
// Originals of which reconstruct it.
type Geometry struct {
	Originals int `json:"originals"`
	Parity    int `json:"parity"`
}

// ChunkRef names one chunk of a file.
type ChunkRef struct {
	// Link is the chunk's store address (chunk hash domain).
	Link codec.MerkleLink `json:"link"`

	// Size is the chunk's plaintext byte length. Every chunk is full
	// except possibly the last.
	Size int `json:"size"`

	// Fragments are the store addresses (fragment hash domain) of
	// the chunk's erasure fragments, in fragment order. Present only
	// when the descriptor carries a Geometry.
	Fragments []codec.MerkleLink `json:"fragments,omitempty"`
}

// Descriptor is the stored description of a file: its size, its
// ordered chunk links, and optionally the erasure geometry protecting
// it. Descriptors are encoded with deterministic CBOR, so the same
// file always produces the same descriptor bytes and therefore the
// same reference.
type Descriptor struct {
	Version   int   `json:"version"`
	Size      int64 `json:"size"`
	ChunkSize int   `json:"chunk_size"`

	// ContentRoot is the merkle root over the chunk hashes, an
	// encoding-independent identity for the file content. Checked
	// against the chunk links on decode.
	ContentRoot codec.MerkleLink `json:"content_root"`

	Chunks  []ChunkRef `json:"chunks"`
	Erasure *Geometry  `json:"erasure,omitempty"`
}

// NumChunks returns the chunk count implied by the descriptor's size
// and chunk size. A zero-length file still has one (empty) chunk.
func (d *Descriptor) NumChunks() int {
	if d.Size == 0 {
		return 1
	}
	return int((d.Size + int64(d.ChunkSize) - 1) / int64(d.ChunkSize))
}

// contentRoot computes the merkle root over the descriptor's chunk
// link targets.
func (d *Descriptor) contentRoot() chunk.Hash {
	hashes := make([]chunk.Hash, len(d.Chunks))
	for i, ref := range d.Chunks {
		hashes[i] = ref.Link.Target
	}
	return chunk.MerkleRoot(hashes)
}

// Validate checks the descriptor's internal consistency. A descriptor
// that fails validation is corrupt or from an unsupported version;
// nothing downstream should touch it.
func (d *Descriptor) Validate() error {
	if d.Version != DescriptorVersion {
		return fmt.Errorf("fs: descriptor version %d is not supported (expected %d)", d.Version, DescriptorVersion)
	}
	if d.Size < 0 {
		return fmt.Errorf("fs: descriptor size %d is negative", d.Size)
	}
	if d.ChunkSize <= 0 || d.ChunkSize > chunk.MaxSize {
		return fmt.Errorf("fs: descriptor chunk size %d outside (0, %d]", d.ChunkSize, chunk.MaxSize)
	}
	if len(d.Chunks) != d.NumChunks() {
		return fmt.Errorf("fs: descriptor has %d chunks, size %d at chunk size %d needs %d",
			len(d.Chunks), d.Size, d.ChunkSize, d.NumChunks())
	}
	if d.Erasure != nil {
		if d.Erasure.Originals < 1 || d.Erasure.Parity < 1 {
			return fmt.Errorf("fs: descriptor erasure geometry %d/%d is invalid",
				d.Erasure.Originals, d.Erasure.Parity)
		}
	}

	remaining := d.Size
	for i, ref := range d.Chunks {
		want := int64(d.ChunkSize)
		if remaining < want {
			want = remaining
		}
		if int64(ref.Size) != want {
			return fmt.Errorf("fs: chunk %d is %d bytes, expected %d", i, ref.Size, want)
		}
		remaining -= want

		if d.Erasure == nil {
			if len(ref.Fragments) != 0 {
				return fmt.Errorf("fs: chunk %d carries fragments but the descriptor has no erasure geometry", i)
			}
			continue
		}
		if got, want := len(ref.Fragments), d.Erasure.Originals+d.Erasure.Parity; got != want {
			return fmt.Errorf("fs: chunk %d has %d fragments, geometry %d/%d needs %d",
				i, got, d.Erasure.Originals, d.Erasure.Parity, want)
		}
	}

	if root := d.contentRoot(); root != d.ContentRoot.Target {
		return fmt.Errorf("fs: descriptor content root %s does not match its chunk links (%s)",
			d.ContentRoot.Target, root)
	}
	return nil
}

// EncodeDescriptor serializes a descriptor to deterministic CBOR.
func EncodeDescriptor(d *Descriptor) ([]byte, error) {
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return codec.Marshal(d)
}

// DecodeDescriptor parses and validates descriptor bytes.
func DecodeDescriptor(data []byte) (*Descriptor, error) {
	var d Descriptor
	if err := codec.Unmarshal(data, &d); err != nil {
		return nil, fmt.Errorf("fs: decoding descriptor: %w", err)
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return &d, nil
}
