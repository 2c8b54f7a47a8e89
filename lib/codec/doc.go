// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec provides the canonical CBOR configuration for the
// store's binary object graph.
//
// Every persisted object — file descriptors, fragment manifests — is
// encoded with Core Deterministic Encoding (RFC 8949 §4.2): sorted map
// keys, smallest integer encoding, no indefinite-length items. The
// same logical object always produces identical bytes, which is what
// makes content addressing of descriptors sound: the file reference
// is a hash of the encoded descriptor.
//
// References between objects are [MerkleLink] values, encoded as CBOR
// tag 258 wrapping the raw 32-byte content hash. Tag 258 is the
// convention the original Peergos object model uses for links, kept
// here so graphs remain traversable by generic tooling.
//
// The decoder accepts standard CBOR and silently ignores unknown
// fields for forward compatibility.
package codec
