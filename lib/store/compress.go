// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// CompressionTag identifies the compression algorithm applied to a
// chunk before encryption. The tag is stored inside the sealed frame
// (1 byte); the values are format constants and must not be renumbered.
type CompressionTag uint8

const (
	// CompressionNone stores the chunk uncompressed. Used for
	// already-compressed content (media, archives) and as the
	// fallback when compression does not shrink the chunk.
	CompressionNone CompressionTag = 0

	// CompressionLZ4 applies LZ4 block compression. Fast default for
	// binary data of unknown shape.
	CompressionLZ4 CompressionTag = 1

	// CompressionZstd applies zstd at its default level. Better
	// ratios for text-like content at a higher CPU cost.
	CompressionZstd CompressionTag = 2
)

// String returns the human-readable name of a compression tag.
func (tag CompressionTag) String() string {
	switch tag {
	case CompressionNone:
		return "none"
	case CompressionLZ4:
		return "lz4"
	case CompressionZstd:
		return "zstd"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(tag))
	}
}

// ParseCompressionTag parses a compression tag from its string
// representation, as used in the config file and on the command line.
func ParseCompressionTag(name string) (CompressionTag, error) {
	switch name {
	case "none":
		return CompressionNone, nil
	case "lz4":
		return CompressionLZ4, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return 0, fmt.Errorf("store: unknown compression tag %q", name)
	}
}

// errIncompressible reports that compressed output would not be
// smaller than the input; the caller falls back to CompressionNone.
var errIncompressible = errors.New("store: data is incompressible")

// CompressChunk compresses data with the given algorithm. For
// CompressionNone the input is returned unchanged, without a copy.
// Returns an error satisfying [IsIncompressible] when the output
// would be no smaller than the input.
func CompressChunk(data []byte, tag CompressionTag) ([]byte, error) {
	switch tag {
	case CompressionNone:
		return data, nil
	case CompressionLZ4:
		return compressLZ4(data)
	case CompressionZstd:
		return compressZstd(data)
	default:
		return nil, fmt.Errorf("store: unsupported compression tag %d", tag)
	}
}

// DecompressChunk reverses [CompressChunk]. uncompressedSize must
// match the original length exactly; a mismatch is an error, never a
// truncated result.
func DecompressChunk(compressed []byte, tag CompressionTag, uncompressedSize int) ([]byte, error) {
	switch tag {
	case CompressionNone:
		if len(compressed) != uncompressedSize {
			return nil, fmt.Errorf("store: uncompressed chunk is %d bytes, frame says %d",
				len(compressed), uncompressedSize)
		}
		return compressed, nil
	case CompressionLZ4:
		return decompressLZ4(compressed, uncompressedSize)
	case CompressionZstd:
		return decompressZstd(compressed, uncompressedSize)
	default:
		return nil, fmt.Errorf("store: unsupported compression tag %d", tag)
	}
}

// IsIncompressible reports whether err means the data could not be
// compressed smaller than its original size.
func IsIncompressible(err error) bool {
	return errors.Is(err, errIncompressible)
}

func compressLZ4(data []byte) ([]byte, error) {
	destination := make([]byte, lz4.CompressBlockBound(len(data)))
	written, err := lz4.CompressBlock(data, destination, nil)
	if err != nil {
		return nil, fmt.Errorf("lz4 compress: %w", err)
	}
	// CompressBlock signals incompressible data by writing nothing;
	// output at least as large as the input is not worth storing
	// either.
	if written == 0 || written >= len(data) {
		return nil, errIncompressible
	}
	return destination[:written], nil
}

func decompressLZ4(compressed []byte, uncompressedSize int) ([]byte, error) {
	destination := make([]byte, uncompressedSize)
	read, err := lz4.UncompressBlock(compressed, destination)
	if err != nil {
		return nil, fmt.Errorf("lz4 decompress: %w", err)
	}
	if read != uncompressedSize {
		return nil, fmt.Errorf("lz4 decompress: got %d bytes, expected %d", read, uncompressedSize)
	}
	return destination, nil
}

// The zstd encoder and decoder are stateless per call and safe for
// concurrent use, so one of each is shared package-wide.
var (
	zstdEncoder *zstd.Encoder
	zstdDecoder *zstd.Decoder
)

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
	)
	if err != nil {
		panic("store: zstd encoder initialization failed: " + err.Error())
	}
	zstdDecoder, err = zstd.NewReader(nil)
	if err != nil {
		panic("store: zstd decoder initialization failed: " + err.Error())
	}
}

func compressZstd(data []byte) ([]byte, error) {
	compressed := zstdEncoder.EncodeAll(data, nil)
	if len(compressed) >= len(data) {
		return nil, errIncompressible
	}
	return compressed, nil
}

func decompressZstd(compressed []byte, uncompressedSize int) ([]byte, error) {
	result, err := zstdDecoder.DecodeAll(compressed, make([]byte, 0, uncompressedSize))
	if err != nil {
		return nil, fmt.Errorf("zstd decompress: %w", err)
	}
	if len(result) != uncompressedSize {
		return nil, fmt.Errorf("zstd decompress: got %d bytes, expected %d", len(result), uncompressedSize)
	}
	return result, nil
}
