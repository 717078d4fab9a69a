/*
Copyright 2018 Google LLC

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package transfer

import (
	"bytes"
	"context"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

// testSeekBuffer is a minimal io.WriteSeeker over an in-memory byte slice.
// Unlike the facade's memSink, it does not implement io.WriterAt, so tests
// built on it exercise Sink's mutex-serialized Seek+Write fallback path.
type testSeekBuffer struct {
	buf []byte
	pos int64
}

func newTestSeekBuffer(size int64) *testSeekBuffer {
	return &testSeekBuffer{buf: make([]byte, size)}
}

func (b *testSeekBuffer) Write(p []byte) (int, error) {
	end := b.pos + int64(len(p))
	if end > int64(len(b.buf)) {
		grown := make([]byte, end)
		copy(grown, b.buf)
		b.buf = grown
	}
	copy(b.buf[b.pos:end], p)
	b.pos = end
	return len(p), nil
}

func (b *testSeekBuffer) Seek(offset int64, whence int) (int64, error) {
	switch whence {
	case io.SeekStart:
		b.pos = offset
	case io.SeekCurrent:
		b.pos += offset
	case io.SeekEnd:
		b.pos = int64(len(b.buf)) + offset
	}
	return b.pos, nil
}

func TestDownloadSeekableSinkParallelRanges(t *testing.T) {
	store := objectstore.NewMemStore()
	body := make([]byte, 100*1024)
	for i := range body {
		body[i] = byte(i)
	}
	if err := store.PutObject(context.Background(), "bucket", "key", body, nil); err != nil {
		t.Fatal(err)
	}

	sink := newTestSeekBuffer(int64(len(body)))
	err := Download(context.Background(), store, "bucket", "key", NewSeekableSink(sink),
		WithPartSize(8*1024), WithMaxConcurrency(6))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(sink.buf, body) {
		t.Fatalf("round trip mismatch, len got=%d want=%d", len(sink.buf), len(body))
	}
}

func TestDownloadCallbackInvoked(t *testing.T) {
	store := objectstore.NewMemStore()
	body := bytes.Repeat([]byte{0x9}, 50*1024)
	if err := store.PutObject(context.Background(), "bucket", "key", body, nil); err != nil {
		t.Fatal(err)
	}

	var callbackBytes int64
	sink := newTestSeekBuffer(int64(len(body)))
	err := Download(context.Background(), store, "bucket", "key", NewSeekableSink(sink),
		WithPartSize(4*1024),
		WithCallback(func(n int) { atomic.AddInt64(&callbackBytes, int64(n)) }),
	)
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if got := atomic.LoadInt64(&callbackBytes); got != int64(len(body)) {
		t.Fatalf("callback total = %d, want %d", got, len(body))
	}
}

func TestDownloadEmptyObjectNoOp(t *testing.T) {
	store := objectstore.NewMemStore()
	if err := store.PutObject(context.Background(), "bucket", "key", nil, nil); err != nil {
		t.Fatal(err)
	}

	sink := newTestSeekBuffer(0)
	if err := Download(context.Background(), store, "bucket", "key", NewSeekableSink(sink)); err != nil {
		t.Fatalf("Download: %v", err)
	}
}

func TestDownloadMissingObjectTranslatesToErrNotFound(t *testing.T) {
	store := objectstore.NewMemStore()
	sink := newTestSeekBuffer(0)

	err := Download(context.Background(), store, "bucket", "missing", NewSeekableSink(sink))
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("Download on missing object: err = %v, want ErrNotFound", err)
	}
}

// TestDownloadNonSeekableSinkReassemblesOutOfOrder drives reassemble
// directly with chunks delivered out of ascending-offset order, the way
// concurrent range workers actually produce them, and checks the min-heap
// buffering writes them to the sink in strict offset order regardless.
func TestDownloadNonSeekableSinkReassemblesOutOfOrder(t *testing.T) {
	want := []byte("0123456789ABCDEF")
	chunks := make(chan downloadChunk, 4)
	chunks <- downloadChunk{offset: 12, data: want[12:16]}
	chunks <- downloadChunk{offset: 4, data: want[4:8]}
	chunks <- downloadChunk{offset: 0, data: want[0:4]}
	chunks <- downloadChunk{offset: 8, data: want[8:12]}
	close(chunks)

	var buf bytes.Buffer
	sink := NewStreamingSink(&buf)
	if err := reassemble(context.Background(), sink, chunks, 4); err != nil {
		t.Fatalf("reassemble: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), want) {
		t.Fatalf("reassemble out of order: got %q, want %q", buf.Bytes(), want)
	}
}

func TestDownloadNonSeekableSinkEndToEnd(t *testing.T) {
	store := objectstore.NewMemStore()
	body := make([]byte, 40*1024)
	for i := range body {
		body[i] = byte(i * 3)
	}
	if err := store.PutObject(context.Background(), "bucket", "key", body, nil); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	sink := NewStreamingSink(&buf)
	err := Download(context.Background(), store, "bucket", "key", sink,
		WithPartSize(4*1024), WithMaxConcurrency(8))
	if err != nil {
		t.Fatalf("Download: %v", err)
	}
	if !bytes.Equal(buf.Bytes(), body) {
		t.Fatalf("round trip mismatch, len got=%d want=%d", buf.Len(), len(body))
	}
}

// blockingStore simulates an in-flight GetObject that, like a real
// aws-sdk-go-v2 call, only returns once its context is cancelled. started
// fires once per call, letting the test wait for a worker to actually be
// in flight before cancelling, instead of relying on a sleep.
type blockingStore struct {
	*objectstore.MemStore
	started chan struct{}
}

func (s *blockingStore) GetObject(ctx context.Context, bucket, key string, byteRange *objectstore.ByteRange) (*objectstore.GetObjectOutput, error) {
	s.started <- struct{}{}
	<-ctx.Done()
	return nil, ctx.Err()
}

// TestDownloadCancellationSurfacesErrCancelled: once at least one range
// worker is in flight, cancelling ctx must make Download return promptly
// with ErrCancelled rather than hang on a leaked goroutine.
func TestDownloadCancellationSurfacesErrCancelled(t *testing.T) {
	store := objectstore.NewMemStore()
	body := make([]byte, 64*1024)
	if err := store.PutObject(context.Background(), "bucket", "key", body, nil); err != nil {
		t.Fatal(err)
	}
	blocking := &blockingStore{MemStore: store, started: make(chan struct{}, 8)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := newTestSeekBuffer(int64(len(body)))
	done := make(chan error, 1)
	go func() {
		done <- Download(ctx, blocking, "bucket", "key", NewSeekableSink(sink),
			WithPartSize(8*1024), WithMaxConcurrency(4))
	}()

	<-blocking.started
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrCancelled) {
			t.Fatalf("Download after cancel: err = %v, want ErrCancelled", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Download did not return after context cancellation; worker goroutines may have leaked")
	}
}
