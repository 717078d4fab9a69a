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
	"fmt"
	"io"
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

func TestUploadSmallSinglePart(t *testing.T) {
	store := objectstore.NewMemStore()
	body := []byte("hello world")

	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), map[string]string{"x-amz-iv": "abc"})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	out, err := store.GetObject(context.Background(), "bucket", "key", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	got, _ := io.ReadAll(out.Body)
	if !bytes.Equal(got, body) {
		t.Fatalf("got %q, want %q", got, body)
	}
}

func TestUploadEmptySourceProducesEmptyObject(t *testing.T) {
	store := objectstore.NewMemStore()

	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(nil)), nil)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	out, err := store.GetObject(context.Background(), "bucket", "key", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	if out.ContentLength != 0 {
		t.Fatalf("ContentLength = %d, want 0", out.ContentLength)
	}
}

func TestUploadMultipleParts(t *testing.T) {
	store := objectstore.NewMemStore()
	// 10 MiB body, 8 MiB chunksize -> two parts (S6 scenario shape).
	body := make([]byte, 10*1024*1024)
	for i := range body {
		body[i] = byte(i)
	}

	var callbackBytes int64
	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), nil,
		WithMultipartChunksize(8*1024*1024),
		WithCallback(func(n int) { atomic.AddInt64(&callbackBytes, int64(n)) }),
	)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	if got := atomic.LoadInt64(&callbackBytes); got != int64(len(body)) {
		t.Fatalf("callback total = %d, want %d", got, len(body))
	}

	out, err := store.GetObject(context.Background(), "bucket", "key", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	got, _ := io.ReadAll(out.Body)
	if !bytes.Equal(got, body) {
		t.Fatalf("round trip mismatch, len got=%d want=%d", len(got), len(body))
	}
}

// failingStore wraps MemStore and fails every UploadPart call, to exercise
// the abort-on-failure path.
type failingStore struct {
	*objectstore.MemStore
	aborted int32
}

func (f *failingStore) UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	return "", fmt.Errorf("injected upload failure")
}

func (f *failingStore) AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error {
	atomic.AddInt32(&f.aborted, 1)
	return f.MemStore.AbortMultipartUpload(ctx, bucket, key, uploadID)
}

func TestUploadAbortsOnUploadPartFailure(t *testing.T) {
	store := &failingStore{MemStore: objectstore.NewMemStore()}
	body := bytes.Repeat([]byte{1}, 1024)

	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), nil)
	if err == nil {
		t.Fatal("expected Upload to fail")
	}
	if atomic.LoadInt32(&store.aborted) != 1 {
		t.Fatalf("aborted count = %d, want exactly 1", store.aborted)
	}

	if _, err := store.GetObject(context.Background(), "bucket", "key", nil); err == nil {
		t.Fatal("expected no committed object after abort")
	}
}

func TestUploadAppliesProcessingHook(t *testing.T) {
	store := objectstore.NewMemStore()
	body := []byte("lowercase payload")

	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), nil,
		WithProcessing(bytes.ToUpper),
	)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	out, err := store.GetObject(context.Background(), "bucket", "key", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	got, _ := io.ReadAll(out.Body)
	if want := bytes.ToUpper(body); !bytes.Equal(got, want) {
		t.Fatalf("got %q, want %q", got, want)
	}
}

func TestUploadSwallowsCallbackPanic(t *testing.T) {
	store := objectstore.NewMemStore()
	body := bytes.Repeat([]byte{7}, 2048)

	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), nil,
		WithCallback(func(n int) { panic("callback misbehaves") }),
	)
	if err != nil {
		t.Fatalf("Upload with panicking callback: %v", err)
	}

	out, err := store.GetObject(context.Background(), "bucket", "key", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	got, _ := io.ReadAll(out.Body)
	if !bytes.Equal(got, body) {
		t.Fatalf("round trip mismatch after callback panic")
	}
}

func TestUploadLeavesNoGoroutinesBehind(t *testing.T) {
	store := objectstore.NewMemStore()
	before := runtime.NumGoroutine()

	body := bytes.Repeat([]byte{3}, 256*1024)
	err := Upload(context.Background(), store, "bucket", "key", NewSource(bytes.NewReader(body)), nil,
		WithMultipartChunksize(32*1024), WithMaxConcurrency(8))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	// Workers exit between g.Wait returning and their stacks unwinding, so
	// poll briefly instead of asserting a single instantaneous count.
	deadline := time.After(5 * time.Second)
	for {
		if runtime.NumGoroutine() <= before {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("goroutines before=%d after=%d; workers leaked", before, runtime.NumGoroutine())
		case <-time.After(10 * time.Millisecond):
		}
	}
}
