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
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/google/uuid"
)

type memObject struct {
	body     []byte
	metadata map[string]string
}

type memUpload struct {
	key      string
	metadata map[string]string
	parts    map[int32][]byte
}

// MemStore is an in-memory Store, used by every package's tests in place
// of a real S3 endpoint. It is guarded by a single mutex; it favors
// clarity over throughput.
type MemStore struct {
	mu      sync.Mutex
	objects map[string]memObject
	uploads map[string]*memUpload
}

var _ Store = (*MemStore)(nil)

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{
		objects: make(map[string]memObject),
		uploads: make(map[string]*memUpload),
	}
}

func objectKey(bucket, key string) string {
	return bucket + "/" + key
}

func (m *MemStore) CreateMultipartUpload(_ context.Context, bucket, key string, metadata map[string]string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	uploadID := uuid.NewString()
	m.uploads[uploadID] = &memUpload{
		key:      objectKey(bucket, key),
		metadata: metadata,
		parts:    make(map[int32][]byte),
	}
	return uploadID, nil
}

func (m *MemStore) UploadPart(_ context.Context, bucket, key, uploadID string, partNumber int32, body []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok || up.key != objectKey(bucket, key) {
		return "", ErrNotFound
	}
	cp := make([]byte, len(body))
	copy(cp, body)
	up.parts[partNumber] = cp
	return fmt.Sprintf("etag-%s-%d", uploadID, partNumber), nil
}

func (m *MemStore) CompleteMultipartUpload(_ context.Context, bucket, key, uploadID string, parts []Part) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok || up.key != objectKey(bucket, key) {
		return ErrNotFound
	}

	sorted := append([]Part(nil), parts...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PartNumber < sorted[j].PartNumber })

	var body []byte
	for _, p := range sorted {
		data, ok := up.parts[p.PartNumber]
		if !ok {
			return fmt.Errorf("objectstore: complete multipart upload references unknown part %d", p.PartNumber)
		}
		body = append(body, data...)
	}

	m.objects[up.key] = memObject{body: body, metadata: up.metadata}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemStore) AbortMultipartUpload(_ context.Context, bucket, key, uploadID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	up, ok := m.uploads[uploadID]
	if !ok || up.key != objectKey(bucket, key) {
		return ErrNotFound
	}
	delete(m.uploads, uploadID)
	return nil
}

func (m *MemStore) PutObject(_ context.Context, bucket, key string, body []byte, metadata map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cp := make([]byte, len(body))
	copy(cp, body)
	m.objects[objectKey(bucket, key)] = memObject{body: cp, metadata: metadata}
	return nil
}

func (m *MemStore) GetObject(_ context.Context, bucket, key string, byteRange *ByteRange) (*GetObjectOutput, error) {
	m.mu.Lock()
	obj, ok := m.objects[objectKey(bucket, key)]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}

	body := obj.body
	if byteRange != nil {
		start, end := byteRange.Start, byteRange.End
		if start < 0 || end >= int64(len(body)) || start > end {
			return nil, fmt.Errorf("objectstore: range [%d,%d] out of bounds for object of length %d", start, end, len(body))
		}
		body = body[start : end+1]
	}

	return &GetObjectOutput{
		Body:          io.NopCloser(bytes.NewReader(body)),
		ContentLength: int64(len(body)),
		Metadata:      copyMetadata(obj.metadata),
	}, nil
}

func (m *MemStore) HeadObject(_ context.Context, bucket, key string) (*HeadObjectOutput, error) {
	m.mu.Lock()
	obj, ok := m.objects[objectKey(bucket, key)]
	m.mu.Unlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &HeadObjectOutput{
		ContentLength: int64(len(obj.body)),
		Metadata:      copyMetadata(obj.metadata),
	}, nil
}

func copyMetadata(m map[string]string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
