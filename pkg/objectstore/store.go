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

// Package objectstore defines the narrow S3-style object storage
// capability the s3cse/transfer engine consumes, and provides a real
// aws-sdk-go-v2 backed implementation plus an in-memory mock for tests.
package objectstore

import (
	"context"
	"io"
)

// Part identifies one committed range of a multipart upload.
type Part struct {
	PartNumber int32
	ETag       string
}

// ByteRange is an inclusive byte range, rendered to a `Range: bytes=S-E`
// request header by Store implementations.
type ByteRange struct {
	Start int64
	End   int64
}

// GetObjectOutput is the result of a GetObject call: the object body plus
// the envelope metadata headers stored alongside it.
type GetObjectOutput struct {
	Body          io.ReadCloser
	ContentLength int64
	Metadata      map[string]string
}

// HeadObjectOutput is the result of a HeadObject call.
type HeadObjectOutput struct {
	ContentLength int64
	Metadata      map[string]string
}

// Store is the S3-style object storage capability the engine consumes.
// Implementations must translate a missing key/upload into ErrNotFound
// (see errors.go) rather than a raw transport error.
type Store interface {
	CreateMultipartUpload(ctx context.Context, bucket, key string, metadata map[string]string) (uploadID string, err error)
	UploadPart(ctx context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (etag string, err error)
	CompleteMultipartUpload(ctx context.Context, bucket, key, uploadID string, parts []Part) error
	AbortMultipartUpload(ctx context.Context, bucket, key, uploadID string) error

	PutObject(ctx context.Context, bucket, key string, body []byte, metadata map[string]string) error
	GetObject(ctx context.Context, bucket, key string, byteRange *ByteRange) (*GetObjectOutput, error)
	HeadObject(ctx context.Context, bucket, key string) (*HeadObjectOutput, error)
}
