// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package index maps human labels to file references.
//
// A file reference is an opaque 32-byte hash; nobody remembers those.
// The index is a small SQLite database (one per store) binding labels
// like "backups/notes.txt" to the reference plus enough metadata to
// list files without fetching descriptors.
package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/pu55yf3r/Peergos/lib/chunk"
	"github.com/pu55yf3r/Peergos/lib/sqlitepool"
)

// ErrNoSuchLabel is returned by [Index.Resolve] when the label is not
// bound.
var ErrNoSuchLabel = errors.New("index: no such label")

// Entry is one label binding.
type Entry struct {
	// Label is the human name.
	Label string

	// Ref is the file reference: the descriptor's store address.
	Ref chunk.Hash

	// Size is the file's byte length, copied from the descriptor at
	// bind time so listings need no store access.
	Size int64

	// Chunks is the file's chunk count, also copied at bind time.
	Chunks int

	// BoundAt is when the label was (last) bound.
	BoundAt time.Time
}

const schema = `
CREATE TABLE IF NOT EXISTS files (
	label    TEXT PRIMARY KEY,
	ref      TEXT NOT NULL,
	size     INTEGER NOT NULL,
	chunks   INTEGER NOT NULL,
	bound_at INTEGER NOT NULL
);
`

// Index is the label database. Safe for concurrent use.
type Index struct {
	pool   *sqlitepool.Pool
	logger *slog.Logger
}

// Config holds the parameters for opening an index.
type Config struct {
	// Path is the SQLite database file, created if absent.
	Path string

	// Logger receives debug-level bind/remove events. Nil discards.
	Logger *slog.Logger
}

// Open opens (creating if needed) the index database.
func Open(cfg Config) (*Index, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:   cfg.Path,
		Logger: logger,
		OnConnect: func(conn *sqlite.Conn) error {
			return sqlitex.ExecuteScript(conn, schema, nil)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("index: %w", err)
	}
	return &Index{pool: pool, logger: logger}, nil
}

// Bind binds label to entry, replacing any previous binding. The
// entry's Label and BoundAt fields are ignored; the label argument
// and the current time are used.
func (idx *Index) Bind(ctx context.Context, label string, entry Entry) error {
	if label == "" {
		return fmt.Errorf("index: label must not be empty")
	}
	if entry.Ref.IsZero() {
		return fmt.Errorf("index: binding %q to a zero reference", label)
	}

	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return err
	}
	defer idx.pool.Put(conn)

	err = sqlitex.Execute(conn, `
		INSERT INTO files (label, ref, size, chunks, bound_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (label) DO UPDATE SET
			ref = excluded.ref,
			size = excluded.size,
			chunks = excluded.chunks,
			bound_at = excluded.bound_at`,
		&sqlitex.ExecOptions{
			Args: []any{label, entry.Ref.String(), entry.Size, entry.Chunks, time.Now().Unix()},
		})
	if err != nil {
		return fmt.Errorf("index: binding %q: %w", label, err)
	}
	idx.logger.Debug("bound label", "label", label, "ref", entry.Ref)
	return nil
}

// Resolve returns the entry bound to label.
func (idx *Index) Resolve(ctx context.Context, label string) (Entry, error) {
	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return Entry{}, err
	}
	defer idx.pool.Put(conn)

	var entry Entry
	found := false
	err = sqlitex.Execute(conn,
		"SELECT label, ref, size, chunks, bound_at FROM files WHERE label = ?",
		&sqlitex.ExecOptions{
			Args: []any{label},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				var scanErr error
				entry, scanErr = scanEntry(stmt)
				found = true
				return scanErr
			},
		})
	if err != nil {
		return Entry{}, fmt.Errorf("index: resolving %q: %w", label, err)
	}
	if !found {
		return Entry{}, fmt.Errorf("%w: %q", ErrNoSuchLabel, label)
	}
	return entry, nil
}

// List returns every binding, ordered by label.
func (idx *Index) List(ctx context.Context) ([]Entry, error) {
	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return nil, err
	}
	defer idx.pool.Put(conn)

	var entries []Entry
	err = sqlitex.Execute(conn,
		"SELECT label, ref, size, chunks, bound_at FROM files ORDER BY label",
		&sqlitex.ExecOptions{
			ResultFunc: func(stmt *sqlite.Stmt) error {
				entry, scanErr := scanEntry(stmt)
				if scanErr != nil {
					return scanErr
				}
				entries = append(entries, entry)
				return nil
			},
		})
	if err != nil {
		return nil, fmt.Errorf("index: listing: %w", err)
	}
	return entries, nil
}

// Remove deletes the binding for label. Returns whether a binding
// existed. Removing a label does not delete stored chunks; content
// addressing means other labels may share them.
func (idx *Index) Remove(ctx context.Context, label string) (bool, error) {
	conn, err := idx.pool.Take(ctx)
	if err != nil {
		return false, err
	}
	defer idx.pool.Put(conn)

	err = sqlitex.Execute(conn, "DELETE FROM files WHERE label = ?", &sqlitex.ExecOptions{
		Args: []any{label},
	})
	if err != nil {
		return false, fmt.Errorf("index: removing %q: %w", label, err)
	}
	removed := conn.Changes() > 0
	if removed {
		idx.logger.Debug("removed label", "label", label)
	}
	return removed, nil
}

// Close closes the database.
func (idx *Index) Close() error {
	return idx.pool.Close()
}

func scanEntry(stmt *sqlite.Stmt) (Entry, error) {
	ref, err := chunk.ParseHash(stmt.ColumnText(1))
	if err != nil {
		return Entry{}, fmt.Errorf("index: corrupt reference for %q: %w", stmt.ColumnText(0), err)
	}
	return Entry{
		Label:   stmt.ColumnText(0),
		Ref:     ref,
		Size:    stmt.ColumnInt64(2),
		Chunks:  int(stmt.ColumnInt64(3)),
		BoundAt: time.Unix(stmt.ColumnInt64(4), 0),
	}, nil
}
