// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package store

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

type memKey struct {
	kind    Kind
	address chunk.Hash
}

// MemStore is an in-memory [ChunkStore] for tests. Blobs are held as
// plaintext; there is no sealing layer to exercise here.
type MemStore struct {
	mu     sync.RWMutex
	blobs  map[memKey][]byte
	closed bool
}

var _ ChunkStore = (*MemStore)(nil)

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{blobs: make(map[memKey][]byte)}
}

// Put implements [ChunkStore].
func (s *MemStore) Put(ctx context.Context, kind Kind, data []byte) (chunk.Hash, error) {
	if err := ctx.Err(); err != nil {
		return chunk.Hash{}, err
	}
	if !kind.valid() {
		return chunk.Hash{}, fmt.Errorf("store: invalid blob kind %d", kind)
	}
	if kind == KindChunk && len(data) > chunk.MaxSize {
		return chunk.Hash{}, fmt.Errorf("store: chunk is %d bytes, maximum is %d", len(data), chunk.MaxSize)
	}
	address := kind.address(data)
	key := memKey{kind: kind, address: address}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return chunk.Hash{}, errors.New("store: memory store is closed")
	}
	if _, ok := s.blobs[key]; !ok {
		stored := make([]byte, len(data))
		copy(stored, data)
		s.blobs[key] = stored
	}
	return address, nil
}

// Get implements [ChunkStore].
func (s *MemStore) Get(ctx context.Context, kind Kind, address chunk.Hash) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, errors.New("store: memory store is closed")
	}
	data, ok := s.blobs[memKey{kind: kind, address: address}]
	if !ok {
		return nil, fmt.Errorf("%w: %s %s", ErrNotFound, kind, address)
	}
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

// Has implements [ChunkStore].
func (s *MemStore) Has(ctx context.Context, kind Kind, address chunk.Hash) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false, errors.New("store: memory store is closed")
	}
	_, ok := s.blobs[memKey{kind: kind, address: address}]
	return ok, nil
}

// Delete implements [ChunkStore].
func (s *MemStore) Delete(ctx context.Context, kind Kind, address chunk.Hash) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return errors.New("store: memory store is closed")
	}
	delete(s.blobs, memKey{kind: kind, address: address})
	return nil
}

// Close implements [ChunkStore].
func (s *MemStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.blobs = nil
	return nil
}

// Len reports the number of stored blobs across all kinds.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blobs)
}
