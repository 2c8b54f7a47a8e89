// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"fmt"
	"os"
	"strings"
)

// ReadFromPath loads key material from a file into a locked buffer.
// Trailing newlines are stripped, matching what editors and shell
// redirections append to key files.
func ReadFromPath(path string) (*Buffer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("secret: reading %s: %w", path, err)
	}
	trimmed := strings.TrimRight(string(raw), "\r\n")
	Zero(raw)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("secret: %s is empty", path)
	}
	return NewFromBytes([]byte(trimmed))
}
