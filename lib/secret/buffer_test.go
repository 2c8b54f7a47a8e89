// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewFromBytesZeroesSource(t *testing.T) {
	source := []byte("root key material")
	buffer, err := NewFromBytes(source)
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	for i, b := range source {
		if b != 0 {
			t.Fatalf("source[%d] = %#x, want zeroed", i, b)
		}
	}
	if string(buffer.Bytes()) != "root key material" {
		t.Errorf("buffer holds %q", buffer.Bytes())
	}
}

func TestCloseIsIdempotentAndBytesPanics(t *testing.T) {
	buffer, err := NewFromBytes([]byte("short lived"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := buffer.Close(); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := buffer.Len(); got != 0 {
		t.Errorf("Len after Close = %d", got)
	}

	defer func() {
		if recover() == nil {
			t.Error("Bytes after Close did not panic")
		}
	}()
	buffer.Bytes()
}

func TestNewFromReader(t *testing.T) {
	buffer, err := NewFromReader(strings.NewReader("0123456789abcdef"), 16)
	if err != nil {
		t.Fatalf("NewFromReader: %v", err)
	}
	defer buffer.Close()
	if buffer.Len() != 16 {
		t.Errorf("Len = %d, want 16", buffer.Len())
	}

	if _, err := NewFromReader(strings.NewReader("short"), 16); err == nil {
		t.Error("expected error for reader shorter than requested size")
	}
}

func TestEqualIsContentSensitive(t *testing.T) {
	buffer, err := NewFromBytes([]byte("expected"))
	if err != nil {
		t.Fatalf("NewFromBytes: %v", err)
	}
	defer buffer.Close()

	if !buffer.Equal([]byte("expected")) {
		t.Error("Equal rejected identical contents")
	}
	if buffer.Equal([]byte("different")) {
		t.Error("Equal accepted different contents")
	}
}

func TestReadFromPathStripsTrailingNewline(t *testing.T) {
	path := filepath.Join(t.TempDir(), "key")
	if err := os.WriteFile(path, []byte("hunter2\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	buffer, err := ReadFromPath(path)
	if err != nil {
		t.Fatalf("ReadFromPath: %v", err)
	}
	defer buffer.Close()
	if !bytes.Equal(buffer.Bytes(), []byte("hunter2")) {
		t.Errorf("buffer holds %q, want trailing newline stripped", buffer.Bytes())
	}
}

func TestZero(t *testing.T) {
	data := []byte{1, 2, 3, 4}
	Zero(data)
	if !bytes.Equal(data, make([]byte, 4)) {
		t.Errorf("Zero left %v", data)
	}
}
