// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed escrows the store root key with age encryption.
//
// A store is unreadable without its root key, so losing the key loses
// every chunk. [Seal] wraps the key for one or more age x25519
// recipients (the operator's backup key, a second machine) as armored
// ASCII suitable for printing or offline storage; [Unseal] recovers
// it with the matching private key.
//
// Private keys and recovered key material travel in [secret.Buffer]
// values: mmap-backed, locked against swap, zeroed on close.
package sealed

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"filippo.io/age"
	"filippo.io/age/armor"

	"github.com/pu55yf3r/Peergos/lib/secret"
)

// Keypair holds an age x25519 keypair. The private key lives in
// locked memory; the public key is a plain age1... string, safe to
// publish.
type Keypair struct {
	// PrivateKey is the secret key in AGE-SECRET-KEY-1... format.
	// Must never be logged or passed on a command line.
	PrivateKey *secret.Buffer

	// PublicKey is the corresponding recipient in age1... format.
	PublicKey string
}

// Close releases the private key memory. Idempotent.
func (k *Keypair) Close() error {
	if k.PrivateKey != nil {
		return k.PrivateKey.Close()
	}
	return nil
}

// GenerateKeypair generates a new age x25519 keypair with the private
// key in locked memory. The caller must Close the returned Keypair.
func GenerateKeypair() (*Keypair, error) {
	identity, err := age.GenerateX25519Identity()
	if err != nil {
		return nil, fmt.Errorf("sealed: generating age keypair: %w", err)
	}

	// Move the private key into mmap-backed memory immediately. The
	// string returned by the identity stays on the heap until GC;
	// the locked buffer is the durable copy.
	privateKey, err := secret.NewFromBytes([]byte(identity.String()))
	if err != nil {
		return nil, fmt.Errorf("sealed: protecting private key: %w", err)
	}
	return &Keypair{
		PrivateKey: privateKey,
		PublicKey:  identity.Recipient().String(),
	}, nil
}

// Seal encrypts the root key to one or more age recipients and
// returns armored ASCII ciphertext. The key buffer is borrowed, not
// closed. At least one recipient is required.
func Seal(rootKey *secret.Buffer, recipientKeys []string) (string, error) {
	if len(recipientKeys) == 0 {
		return "", fmt.Errorf("sealed: at least one recipient is required")
	}
	recipients := make([]age.Recipient, 0, len(recipientKeys))
	for _, key := range recipientKeys {
		recipient, err := age.ParseX25519Recipient(key)
		if err != nil {
			return "", fmt.Errorf("sealed: parsing recipient key %q: %w", key, err)
		}
		recipients = append(recipients, recipient)
	}

	var sealedText bytes.Buffer
	armorWriter := armor.NewWriter(&sealedText)
	writer, err := age.Encrypt(armorWriter, recipients...)
	if err != nil {
		return "", fmt.Errorf("sealed: creating age encryptor: %w", err)
	}
	if _, err := writer.Write(rootKey.Bytes()); err != nil {
		return "", fmt.Errorf("sealed: writing key to age encryptor: %w", err)
	}
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing age encryption: %w", err)
	}
	if err := armorWriter.Close(); err != nil {
		return "", fmt.Errorf("sealed: finalizing armor: %w", err)
	}
	return sealedText.String(), nil
}

// Unseal decrypts armored ciphertext produced by [Seal] with the
// given private key and returns the root key in locked memory. The
// private key is borrowed, not closed; the caller must Close the
// returned buffer.
func Unseal(ciphertext string, privateKey *secret.Buffer) (*secret.Buffer, error) {
	identity, err := age.ParseX25519Identity(privateKey.String())
	if err != nil {
		return nil, fmt.Errorf("sealed: parsing private key: %w", err)
	}

	reader, err := age.Decrypt(armor.NewReader(strings.NewReader(ciphertext)), identity)
	if err != nil {
		return nil, fmt.Errorf("sealed: decrypting: %w", err)
	}
	plaintext, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("sealed: reading decrypted key: %w", err)
	}
	if len(plaintext) == 0 {
		return nil, fmt.Errorf("sealed: ciphertext decrypted to an empty key")
	}

	// NewFromBytes zeroes the heap copy.
	buffer, err := secret.NewFromBytes(plaintext)
	if err != nil {
		secret.Zero(plaintext)
		return nil, fmt.Errorf("sealed: protecting decrypted key: %w", err)
	}
	return buffer, nil
}

// ParsePublicKey validates an age public key string before it is
// written into the config or used as a recipient.
func ParsePublicKey(publicKey string) error {
	if _, err := age.ParseX25519Recipient(publicKey); err != nil {
		return fmt.Errorf("sealed: invalid age public key: %w", err)
	}
	return nil
}

// ParsePrivateKey validates an age private key held in locked memory.
func ParsePrivateKey(privateKey *secret.Buffer) error {
	if _, err := age.ParseX25519Identity(privateKey.String()); err != nil {
		return fmt.Errorf("sealed: invalid age private key: %w", err)
	}
	return nil
}
