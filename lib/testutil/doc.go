// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers.
//
// [RequireReceive], [RequireSend], and [RequireClosed] encapsulate the
// timeout safety valve pattern (select with a time.After fallback) so
// that individual tests never hang when a goroutine under test fails
// to make progress. They are the only place in the test suite where
// real wall-clock timeouts appear.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
//
// This package has no other in-repo dependencies.
package testutil
