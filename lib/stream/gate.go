// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"context"

	"golang.org/x/sync/semaphore"
)

// refillGate serializes refill operations against the source: at most
// one admitted operation runs at any instant, so writes into the
// circular buffer never race and the source never sees overlapping
// reads. Foreground reads waiting on data and background prefetch
// steps go through the same gate.
//
// A failed operation releases the gate like any other — one failure
// never jams subsequent admissions.
type refillGate struct {
	sem *semaphore.Weighted
}

func newRefillGate() *refillGate {
	return &refillGate{sem: semaphore.NewWeighted(1)}
}

// runExclusive admits op once any previously admitted operation has
// completed, and returns op's result. Admission respects context
// cancellation.
func (g *refillGate) runExclusive(ctx context.Context, op func() error) error {
	if err := g.sem.Acquire(ctx, 1); err != nil {
		return err
	}
	defer g.sem.Release(1)
	return op()
}
