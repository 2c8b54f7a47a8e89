// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/pu55yf3r/Peergos/lib/chunk"
)

func testIndex(t *testing.T) *Index {
	t.Helper()
	idx, err := Open(Config{Path: filepath.Join(t.TempDir(), "index.db")})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { idx.Close() })
	return idx
}

func TestBindResolveRoundTrip(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	ref := chunk.HashFile([]byte("descriptor bytes"))

	if err := idx.Bind(ctx, "notes.txt", Entry{Ref: ref, Size: 1234, Chunks: 1}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	entry, err := idx.Resolve(ctx, "notes.txt")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry.Ref != ref || entry.Size != 1234 || entry.Chunks != 1 {
		t.Errorf("resolved entry %+v does not match the binding", entry)
	}
	if entry.Label != "notes.txt" {
		t.Errorf("Label = %q", entry.Label)
	}
	if entry.BoundAt.IsZero() {
		t.Error("BoundAt was not recorded")
	}
}

func TestResolveUnknownLabel(t *testing.T) {
	idx := testIndex(t)
	if _, err := idx.Resolve(context.Background(), "ghost"); !errors.Is(err, ErrNoSuchLabel) {
		t.Errorf("Resolve: err = %v, want ErrNoSuchLabel", err)
	}
}

func TestBindReplacesExisting(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	first := chunk.HashFile([]byte("version one"))
	second := chunk.HashFile([]byte("version two"))

	if err := idx.Bind(ctx, "doc", Entry{Ref: first, Size: 10, Chunks: 1}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := idx.Bind(ctx, "doc", Entry{Ref: second, Size: 20, Chunks: 2}); err != nil {
		t.Fatalf("rebind: %v", err)
	}
	entry, err := idx.Resolve(ctx, "doc")
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry.Ref != second || entry.Size != 20 {
		t.Error("rebinding did not replace the entry")
	}

	entries, err := idx.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("List returned %d entries, want 1", len(entries))
	}
}

func TestListIsOrderedByLabel(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	for _, label := range []string{"zebra", "apple", "mango"} {
		ref := chunk.HashFile([]byte(label))
		if err := idx.Bind(ctx, label, Entry{Ref: ref, Size: 1, Chunks: 1}); err != nil {
			t.Fatalf("Bind %q: %v", label, err)
		}
	}

	entries, err := idx.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var labels []string
	for _, entry := range entries {
		labels = append(labels, entry.Label)
	}
	want := []string{"apple", "mango", "zebra"}
	for i := range want {
		if labels[i] != want[i] {
			t.Fatalf("List order %v, want %v", labels, want)
		}
	}
}

func TestRemove(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	ref := chunk.HashFile([]byte("short lived"))

	if err := idx.Bind(ctx, "tmp", Entry{Ref: ref, Size: 1, Chunks: 1}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	removed, err := idx.Remove(ctx, "tmp")
	if err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if !removed {
		t.Error("Remove reported no binding")
	}
	if _, err := idx.Resolve(ctx, "tmp"); !errors.Is(err, ErrNoSuchLabel) {
		t.Errorf("Resolve after Remove: err = %v, want ErrNoSuchLabel", err)
	}
	removed, err = idx.Remove(ctx, "tmp")
	if err != nil {
		t.Fatalf("second Remove: %v", err)
	}
	if removed {
		t.Error("second Remove reported a binding")
	}
}

func TestBindValidation(t *testing.T) {
	idx := testIndex(t)
	ctx := context.Background()
	ref := chunk.HashFile([]byte("x"))

	if err := idx.Bind(ctx, "", Entry{Ref: ref}); err == nil {
		t.Error("expected error for an empty label")
	}
	if err := idx.Bind(ctx, "zero", Entry{}); err == nil {
		t.Error("expected error for a zero reference")
	}
}

func TestIndexPersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.db")
	ctx := context.Background()
	ref := chunk.HashFile([]byte("durable"))

	first, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Bind(ctx, "kept", Entry{Ref: ref, Size: 5, Chunks: 1}); err != nil {
		t.Fatalf("Bind: %v", err)
	}
	if err := first.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	second, err := Open(Config{Path: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	entry, err := second.Resolve(ctx, "kept")
	if err != nil {
		t.Fatalf("Resolve after reopen: %v", err)
	}
	if entry.Ref != ref {
		t.Error("binding did not survive the reopen")
	}
}
