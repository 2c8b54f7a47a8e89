// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package codec

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

// LinkTag is the CBOR tag number marking a merkle link to another
// content-addressed object. Protocol constant shared with the
// original Peergos object model.
const LinkTag = 258

// MerkleLink is a reference from one object in the graph to another,
// by content hash. On the wire it is CBOR tag 258 wrapping the raw
// 32-byte hash as a byte string.
type MerkleLink struct {
	Target chunk.Hash
}

// Link wraps a content hash in a MerkleLink.
func Link(target chunk.Hash) MerkleLink {
	return MerkleLink{Target: target}
}

// String returns the hex form of the link target.
func (l MerkleLink) String() string {
	return l.Target.String()
}

// MarshalCBOR encodes the link as tag 258 over the raw hash bytes.
func (l MerkleLink) MarshalCBOR() ([]byte, error) {
	return encMode.Marshal(cbor.Tag{Number: LinkTag, Content: l.Target[:]})
}

// UnmarshalCBOR decodes a tag-258 link. The tagged content may be a
// byte string (canonical) or a text string holding the hex hash
// (accepted for compatibility with hand-built graphs).
func (l *MerkleLink) UnmarshalCBOR(data []byte) error {
	var tag cbor.Tag
	if err := decMode.Unmarshal(data, &tag); err != nil {
		return fmt.Errorf("decoding merkle link: %w", err)
	}
	if tag.Number != LinkTag {
		return fmt.Errorf("merkle link has tag %d, want %d", tag.Number, LinkTag)
	}
	switch content := tag.Content.(type) {
	case []byte:
		if len(content) != len(l.Target) {
			return fmt.Errorf("merkle link target is %d bytes, want %d", len(content), len(l.Target))
		}
		copy(l.Target[:], content)
		return nil
	case string:
		target, err := chunk.ParseHash(content)
		if err != nil {
			return fmt.Errorf("merkle link text target: %w", err)
		}
		l.Target = target
		return nil
	default:
		return fmt.Errorf("merkle link content has unsupported type %T", content)
	}
}
