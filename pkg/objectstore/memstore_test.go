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

package objectstore

import (
	"context"
	"errors"
	"io"
	"testing"
)

func TestMemStorePutGetRoundTrip(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	if err := ms.PutObject(ctx, "bucket", "key", []byte("hello world"), map[string]string{"x-amz-iv": "abc"}); err != nil {
		t.Fatalf("PutObject: %v", err)
	}

	got, err := ms.GetObject(ctx, "bucket", "key", nil)
	if err != nil {
		t.Fatalf("GetObject: %v", err)
	}
	defer got.Body.Close()

	body, err := io.ReadAll(got.Body)
	if err != nil {
		t.Fatal(err)
	}
	if string(body) != "hello world" {
		t.Fatalf("body = %q, want %q", body, "hello world")
	}
	if got.Metadata["x-amz-iv"] != "abc" {
		t.Fatalf("metadata x-amz-iv = %q, want %q", got.Metadata["x-amz-iv"], "abc")
	}
}

func TestMemStoreGetMissingKey(t *testing.T) {
	ms := NewMemStore()
	_, err := ms.GetObject(context.Background(), "bucket", "missing", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestMemStoreRangedGet(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	if err := ms.PutObject(ctx, "b", "k", []byte("0123456789"), nil); err != nil {
		t.Fatal(err)
	}

	out, err := ms.GetObject(ctx, "b", "k", &ByteRange{Start: 2, End: 5})
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	body, _ := io.ReadAll(out.Body)
	if string(body) != "2345" {
		t.Fatalf("body = %q, want %q", body, "2345")
	}
}

func TestMemStoreMultipartRoundTrip(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	uploadID, err := ms.CreateMultipartUpload(ctx, "b", "k", map[string]string{"x-amz-cek-alg": "AES/GCM/NoPadding"})
	if err != nil {
		t.Fatal(err)
	}

	etag2, err := ms.UploadPart(ctx, "b", "k", uploadID, 2, []byte("World"))
	if err != nil {
		t.Fatal(err)
	}
	etag1, err := ms.UploadPart(ctx, "b", "k", uploadID, 1, []byte("Hello "))
	if err != nil {
		t.Fatal(err)
	}

	// Parts are completed out of order but must be committed ascending.
	err = ms.CompleteMultipartUpload(ctx, "b", "k", uploadID, []Part{
		{PartNumber: 2, ETag: etag2},
		{PartNumber: 1, ETag: etag1},
	})
	if err != nil {
		t.Fatal(err)
	}

	out, err := ms.GetObject(ctx, "b", "k", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer out.Body.Close()
	body, _ := io.ReadAll(out.Body)
	if string(body) != "Hello World" {
		t.Fatalf("body = %q, want %q", body, "Hello World")
	}
	if out.Metadata["x-amz-cek-alg"] != "AES/GCM/NoPadding" {
		t.Fatalf("metadata lost across complete")
	}

	if _, err := ms.UploadPart(ctx, "b", "k", uploadID, 3, []byte("x")); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound uploading to a completed upload id, got %v", err)
	}
}

func TestMemStoreAbortMultipartUpload(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()

	uploadID, err := ms.CreateMultipartUpload(ctx, "b", "k", nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := ms.UploadPart(ctx, "b", "k", uploadID, 1, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if err := ms.AbortMultipartUpload(ctx, "b", "k", uploadID); err != nil {
		t.Fatal(err)
	}

	if _, err := ms.GetObject(ctx, "b", "k", nil); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected aborted upload to leave no object, got err=%v", err)
	}
	if err := ms.AbortMultipartUpload(ctx, "b", "k", uploadID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected second abort to fail with ErrNotFound, got %v", err)
	}
}

func TestMemStoreHeadObject(t *testing.T) {
	ms := NewMemStore()
	ctx := context.Background()
	if err := ms.PutObject(ctx, "b", "k", []byte("12345"), map[string]string{"a": "b"}); err != nil {
		t.Fatal(err)
	}
	head, err := ms.HeadObject(ctx, "b", "k")
	if err != nil {
		t.Fatal(err)
	}
	if head.ContentLength != 5 {
		t.Fatalf("ContentLength = %d, want 5", head.ContentLength)
	}
	if head.Metadata["a"] != "b" {
		t.Fatalf("Metadata[a] = %q, want %q", head.Metadata["a"], "b")
	}
}
