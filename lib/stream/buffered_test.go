// Copyright 2026 The Peergos Authors
// SPDX-License-Identifier: Apache-2.0

package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pu55yf3r/Peergos/lib/testutil"
)

// sourceState is shared across the transfers a testSource undergoes
// on seek/reset, so a test can observe the total source activity for
// one logical stream.
type sourceState struct {
	reads     atomic.Int32 // ReadInto calls that reached the data
	delivered atomic.Int64 // total bytes handed out
	notify    chan int     // if non-nil, receives each read's byte count
	fail      error        // if non-nil, every ReadInto fails
	stallAt   int64        // if > 0, return 0 bytes once position reaches this (contract violation)
}

// testSource is an instrumented chunk-granular source.
type testSource struct {
	state    *sourceState
	data     []byte
	position int64
	closed   atomic.Bool
}

func newTestSource(data []byte) *testSource {
	return &testSource{state: &sourceState{}, data: data}
}

func (s *testSource) ReadInto(ctx context.Context, dest []byte) (int, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	if s.state.fail != nil {
		return 0, s.state.fail
	}
	if s.state.stallAt > 0 && s.position >= s.state.stallAt {
		return 0, nil
	}
	n := copy(dest, s.data[s.position:])
	s.position += int64(n)
	s.state.reads.Add(1)
	s.state.delivered.Add(int64(n))
	if s.state.notify != nil {
		s.state.notify <- n
	}
	return n, nil
}

func (s *testSource) Seek(ctx context.Context, offset int64) (AsyncReader, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	if offset < 0 || offset > int64(len(s.data)) {
		return nil, fmt.Errorf("seek offset %d outside %d bytes", offset, len(s.data))
	}
	s.Close()
	return &testSource{state: s.state, data: s.data, position: offset}, nil
}

func (s *testSource) Reset(ctx context.Context) (AsyncReader, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	s.Close()
	return &testSource{state: s.state, data: s.data}, nil
}

func (s *testSource) Close() {
	s.closed.Store(true)
}

// patternData returns size bytes of a non-trivial repeating pattern.
func patternData(size int) []byte {
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i*31 + i>>8)
	}
	return data
}

func newTestReader(t *testing.T, data []byte, chunkSize, chunks int) *BufferedReader {
	t.Helper()
	reader, err := NewBufferedReader(newTestSource(data), BufferConfig{
		Chunks:    chunks,
		ChunkSize: chunkSize,
		FileSize:  int64(len(data)),
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	return reader
}

// checkInvariants asserts the core window invariant and the eviction
// law. Safe to call between reads even while a background prefetch is
// running, since it inspects the window under the bookkeeping lock.
func checkInvariants(t *testing.T, r *BufferedReader) {
	t.Helper()
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.bufferStart > r.readOffset || r.readOffset > r.bufferEnd || r.bufferEnd > r.fileSize {
		t.Fatalf("window invariant violated: start=%d read=%d end=%d size=%d",
			r.bufferStart, r.readOffset, r.bufferEnd, r.fileSize)
	}
	if r.buffered() > len(r.buffer) {
		t.Fatalf("window of %d bytes exceeds capacity %d", r.buffered(), len(r.buffer))
	}
	if r.consumed() >= r.chunkSize {
		t.Fatalf("eviction law violated: %d consumed bytes retained, chunk size %d",
			r.consumed(), r.chunkSize)
	}
}

func TestReadAllVariousSizes(t *testing.T) {
	const chunkSize = 64
	data := patternData(10_000)

	for _, readSize := range []int{1, 7, chunkSize, chunkSize + 1, 1000} {
		t.Run(fmt.Sprintf("size%d", readSize), func(t *testing.T) {
			reader := newTestReader(t, data, chunkSize, 4)
			defer reader.Close()

			var assembled []byte
			buf := make([]byte, readSize)
			for {
				n, err := reader.ReadInto(context.Background(), buf)
				if err != nil {
					t.Fatalf("ReadInto after %d bytes: %v", len(assembled), err)
				}
				if n == 0 {
					break
				}
				assembled = append(assembled, buf[:n]...)
				checkInvariants(t, reader)
			}
			if !bytes.Equal(assembled, data) {
				t.Fatalf("assembled %d bytes differ from the %d-byte original", len(assembled), len(data))
			}
		})
	}
}

func TestSingleFullLengthRead(t *testing.T) {
	data := patternData(500)
	reader := newTestReader(t, data, 64, 4)
	defer reader.Close()

	buf := make([]byte, len(data))
	n, err := reader.ReadInto(context.Background(), buf)
	if err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if n != len(data) {
		t.Fatalf("read %d bytes, want %d", n, len(data))
	}
	if !bytes.Equal(buf, data) {
		t.Fatal("full-length read differs from original")
	}
}

func TestEOFClamping(t *testing.T) {
	data := patternData(100)
	reader := newTestReader(t, data, 16, 2)
	defer reader.Close()

	// Read up to 90, then request far more than remains.
	buf := make([]byte, 90)
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}

	big := make([]byte, 1000)
	n, err := reader.ReadInto(context.Background(), big)
	if err != nil {
		t.Fatalf("ReadInto past end: %v", err)
	}
	if n != 10 {
		t.Fatalf("clamped read returned %d bytes, want 10", n)
	}
	if !bytes.Equal(big[:10], data[90:]) {
		t.Fatal("clamped read content mismatch")
	}

	reader.mu.Lock()
	offset := reader.readOffset
	reader.mu.Unlock()
	if offset != 100 {
		t.Fatalf("read offset = %d after clamped read, want 100", offset)
	}
}

func TestReadAtEndOfFileIsZeroByteSuccess(t *testing.T) {
	data := patternData(32)
	reader := newTestReader(t, data, 16, 2)
	defer reader.Close()

	buf := make([]byte, 32)
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}

	// readOffset == fileSize: a further read must terminate with a
	// zero count, never loop waiting for a refill.
	done := make(chan struct{})
	var n int
	var err error
	go func() {
		n, err = reader.ReadInto(context.Background(), buf)
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "read at end of file returned")
	if err != nil {
		t.Fatalf("read at end of file: %v", err)
	}
	if n != 0 {
		t.Fatalf("read at end of file returned %d bytes, want 0", n)
	}
}

func TestSeekCorrectness(t *testing.T) {
	const chunkSize = 4
	data := patternData(29)

	for _, target := range []int64{0, chunkSize - 1, chunkSize, chunkSize + 1, int64(len(data)) - 1} {
		t.Run(fmt.Sprintf("offset%d", target), func(t *testing.T) {
			reader := newTestReader(t, data, chunkSize, 2)

			seeked, err := reader.Seek(context.Background(), target)
			if err != nil {
				t.Fatalf("Seek(%d): %v", target, err)
			}
			defer seeked.Close()

			var one [1]byte
			n, err := seeked.ReadInto(context.Background(), one[:])
			if err != nil {
				t.Fatalf("ReadInto after seek: %v", err)
			}
			if n != 1 {
				t.Fatalf("read %d bytes after seek, want 1", n)
			}
			if one[0] != data[target] {
				t.Fatalf("byte at %d = %#x, want %#x", target, one[0], data[target])
			}
		})
	}
}

func TestSeekToCurrentOffsetReturnsSameInstance(t *testing.T) {
	data := patternData(64)
	reader := newTestReader(t, data, 16, 2)
	defer reader.Close()

	buf := make([]byte, 10)
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}

	same, err := reader.Seek(context.Background(), 10)
	if err != nil {
		t.Fatalf("Seek to current offset: %v", err)
	}
	if same != AsyncReader(reader) {
		t.Fatal("seek to the current offset should return the same instance")
	}
	// The instance must remain fully usable.
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto after no-op seek: %v", err)
	}
}

func TestSeekRejectsOutOfRange(t *testing.T) {
	reader := newTestReader(t, patternData(64), 16, 2)
	defer reader.Close()

	if _, err := reader.Seek(context.Background(), -1); err == nil {
		t.Error("expected error for negative seek offset")
	}
	if _, err := reader.Seek(context.Background(), 65); err == nil {
		t.Error("expected error for seek past end of file")
	}
}

func TestSeekRetiresOldInstance(t *testing.T) {
	data := patternData(64)
	reader := newTestReader(t, data, 16, 2)

	seeked, err := reader.Seek(context.Background(), 20)
	if err != nil {
		t.Fatalf("Seek: %v", err)
	}
	defer seeked.Close()

	buf := make([]byte, 4)
	if _, err := reader.ReadInto(context.Background(), buf); !errors.Is(err, ErrClosed) {
		t.Errorf("read on retired instance: err = %v, want ErrClosed", err)
	}
	if _, err := reader.Seek(context.Background(), 0); !errors.Is(err, ErrClosed) {
		t.Errorf("seek on retired instance: err = %v, want ErrClosed", err)
	}
	if _, err := reader.Reset(context.Background()); !errors.Is(err, ErrClosed) {
		t.Errorf("reset on retired instance: err = %v, want ErrClosed", err)
	}

	// The replacement is fully usable.
	if _, err := seeked.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("read on replacement: %v", err)
	}
	if !bytes.Equal(buf, data[20:24]) {
		t.Error("replacement delivered wrong bytes")
	}
}

func TestResetReturnsToStart(t *testing.T) {
	data := patternData(64)
	reader := newTestReader(t, data, 16, 2)

	buf := make([]byte, 40)
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}

	fresh, err := reader.Reset(context.Background())
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	defer fresh.Close()

	if _, err := reader.ReadInto(context.Background(), buf); !errors.Is(err, ErrClosed) {
		t.Errorf("read on reset instance: err = %v, want ErrClosed", err)
	}

	if _, err := fresh.ReadInto(context.Background(), buf[:8]); err != nil {
		t.Fatalf("read on fresh instance: %v", err)
	}
	if !bytes.Equal(buf[:8], data[:8]) {
		t.Error("fresh instance did not start at offset 0")
	}
}

func TestCloseIdempotentAndFailsFast(t *testing.T) {
	reader := newTestReader(t, patternData(64), 16, 2)
	reader.Close()
	reader.Close()

	buf := make([]byte, 4)
	if _, err := reader.ReadInto(context.Background(), buf); !errors.Is(err, ErrClosed) {
		t.Errorf("read after close: err = %v, want ErrClosed", err)
	}
}

func TestClosedRefillAbortsWithoutMutation(t *testing.T) {
	reader := newTestReader(t, patternData(64), 16, 2)
	reader.Close()

	if _, err := reader.refillOneChunk(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("refill on closed instance: err = %v, want ErrClosed", err)
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.bufferEnd != 0 {
		t.Fatalf("closed refill advanced bufferEnd to %d", reader.bufferEnd)
	}
}

func TestPrefetchChainStopsAfterClose(t *testing.T) {
	data := patternData(64)
	source := newTestSource(data)
	reader, err := NewBufferedReader(source, BufferConfig{
		Chunks: 4, ChunkSize: 4, FileSize: int64(len(data)),
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	reader.Close()

	reader.prefetch(4)
	if got := source.state.reads.Load(); got != 0 {
		t.Fatalf("prefetch after close performed %d source reads, want 0", got)
	}
}

func TestSequentialReadsTriggerPrefetch(t *testing.T) {
	const chunkSize = 4
	data := patternData(64)
	source := newTestSource(data)
	source.state.notify = make(chan int, 64)

	reader, err := NewBufferedReader(source, BufferConfig{
		Chunks: 4, ChunkSize: chunkSize, FileSize: int64(len(data)),
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	defer reader.Close()

	buf := make([]byte, chunkSize)
	// First read: one refill, never flagged sequential.
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("first read: %v", err)
	}
	// Second read starts where the first ended: streaming detected,
	// one foreground refill plus a prefetch pass sized to the free
	// window (4 chunks of 4 bytes against an empty 16-byte window).
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("second read: %v", err)
	}

	const wantReads = 6 // 2 foreground + 4 background
	for i := 0; i < wantReads; i++ {
		testutil.RequireReceive(t, source.state.notify, 5*time.Second, "source read %d", i+1)
	}
	checkInvariants(t, reader)
}

func TestIsolatedReadDoesNotPrefetch(t *testing.T) {
	const chunkSize = 4
	data := patternData(64)
	source := newTestSource(data)

	reader, err := NewBufferedReader(source, BufferConfig{
		Chunks: 4, ChunkSize: chunkSize, FileSize: int64(len(data)),
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	defer reader.Close()

	// A single isolated read is never flagged sequential, so no
	// prefetch goroutine is spawned: the source sees exactly the
	// refills needed to serve it.
	buf := make([]byte, 3)
	if _, err := reader.ReadInto(context.Background(), buf); err != nil {
		t.Fatalf("ReadInto: %v", err)
	}
	if got := source.state.reads.Load(); got != 1 {
		t.Fatalf("isolated read caused %d source reads, want 1", got)
	}
	reader.mu.Lock()
	buffered := reader.buffered()
	reader.mu.Unlock()
	if buffered > chunkSize {
		t.Fatalf("isolated read grew the window to %d bytes, want <= one chunk", buffered)
	}
}

func TestWorkedExampleTwoChunkWindow(t *testing.T) {
	// Capacity = 2 chunks of 4 bytes, file "ABCDEFGH".
	data := []byte("ABCDEFGH")
	reader := newTestReader(t, data, 4, 2)
	defer reader.Close()

	first := make([]byte, 3)
	n, err := reader.ReadInto(context.Background(), first)
	if err != nil || n != 3 {
		t.Fatalf("first read: n=%d err=%v", n, err)
	}
	if string(first) != "ABC" {
		t.Fatalf("first read = %q, want ABC", first)
	}
	reader.mu.Lock()
	if reader.bufferStart != 0 {
		t.Errorf("bufferStart = %d after reading 3 bytes, want 0 (less than one chunk consumed)", reader.bufferStart)
	}
	reader.mu.Unlock()

	second := make([]byte, 4)
	n, err = reader.ReadInto(context.Background(), second)
	if err != nil || n != 4 {
		t.Fatalf("second read: n=%d err=%v", n, err)
	}
	if string(second) != "DEFG" {
		t.Fatalf("second read = %q, want DEFG", second)
	}
	reader.mu.Lock()
	defer reader.mu.Unlock()
	if reader.readOffset != 7 {
		t.Errorf("readOffset = %d, want 7", reader.readOffset)
	}
	if reader.bufferStart != 4 {
		t.Errorf("bufferStart = %d, want 4 (first chunk fully consumed and evicted)", reader.bufferStart)
	}
}

func TestSourceFailurePropagates(t *testing.T) {
	sourceErr := errors.New("fetch failed")
	source := newTestSource(patternData(64))
	source.state.fail = sourceErr

	reader, err := NewBufferedReader(source, BufferConfig{
		Chunks: 2, ChunkSize: 16, FileSize: 64,
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	defer reader.Close()

	buf := make([]byte, 8)
	if _, err := reader.ReadInto(context.Background(), buf); !errors.Is(err, sourceErr) {
		t.Fatalf("ReadInto error = %v, want wrapped source failure", err)
	}
}

func TestStalledSourceIsAnErrorNotASpin(t *testing.T) {
	// A source that returns 0 bytes before end of stream violates its
	// contract; the reader must surface an error instead of looping.
	source := newTestSource(patternData(64))
	source.state.stallAt = 16

	reader, err := NewBufferedReader(source, BufferConfig{
		Chunks: 2, ChunkSize: 16, FileSize: 64,
	})
	if err != nil {
		t.Fatalf("NewBufferedReader: %v", err)
	}
	defer reader.Close()

	done := make(chan struct{})
	var readErr error
	go func() {
		buf := make([]byte, 32)
		_, readErr = reader.ReadInto(context.Background(), buf)
		close(done)
	}()
	testutil.RequireClosed(t, done, 5*time.Second, "read against stalled source returned")
	if readErr == nil {
		t.Fatal("expected an error from a source stalling before end of file")
	}
}

func TestConfigValidation(t *testing.T) {
	source := NewBytesReader(patternData(64))
	cases := []struct {
		name   string
		config BufferConfig
	}{
		{"zero chunks", BufferConfig{Chunks: 0, ChunkSize: 16, FileSize: 64}},
		{"negative chunks", BufferConfig{Chunks: -1, ChunkSize: 16, FileSize: 64}},
		{"negative chunk size", BufferConfig{Chunks: 2, ChunkSize: -16, FileSize: 64}},
		{"negative file size", BufferConfig{Chunks: 2, ChunkSize: 16, FileSize: -1}},
		{"anchor past end", BufferConfig{Chunks: 2, ChunkSize: 16, FileSize: 64, Anchor: 80}},
		{"unaligned anchor", BufferConfig{Chunks: 2, ChunkSize: 16, FileSize: 64, Anchor: 7}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewBufferedReader(source, tc.config); err == nil {
				t.Errorf("expected configuration error for %s", tc.name)
			}
		})
	}
}

func TestRandomizedReadsPreserveInvariants(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	data := patternData(1000)
	reader := newTestReader(t, data, 16, 3)
	defer reader.Close()

	var assembled []byte
	for len(assembled) < len(data) {
		buf := make([]byte, rng.Intn(50)+1)
		n, err := reader.ReadInto(context.Background(), buf)
		if err != nil {
			t.Fatalf("ReadInto after %d bytes: %v", len(assembled), err)
		}
		assembled = append(assembled, buf[:n]...)
		checkInvariants(t, reader)
	}
	if !bytes.Equal(assembled, data) {
		t.Fatal("randomized read sequence did not reproduce the original content")
	}
}

func TestSeekThenLinearReadMatches(t *testing.T) {
	data := patternData(200)
	reader := newTestReader(t, data, 16, 2)

	// Hop around, then stream the tail; content must match the
	// original at every position.
	current := AsyncReader(reader)
	for _, target := range []int64{150, 30, 170} {
		next, err := current.Seek(context.Background(), target)
		if err != nil {
			t.Fatalf("Seek(%d): %v", target, err)
		}
		current = next

		buf := make([]byte, 10)
		n, err := current.ReadInto(context.Background(), buf)
		if err != nil {
			t.Fatalf("ReadInto at %d: %v", target, err)
		}
		if !bytes.Equal(buf[:n], data[target:target+int64(n)]) {
			t.Fatalf("bytes at %d differ from original", target)
		}
	}
	current.Close()
}
