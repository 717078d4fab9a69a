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

package kms

import (
	"context"
	"crypto/rand"
	"fmt"
	"sync"
)

// MockService is an in-memory Service used by tests. It generates real
// AES-256 data keys and "wraps" them by XORing with a per-key-id pad, so
// GenerateDataKey/Decrypt remain symmetric without depending on a real KMS
// endpoint.
type MockService struct {
	mu   sync.Mutex
	keys map[string][]byte // keyID -> 32-byte wrapping pad
}

var _ Service = (*MockService)(nil)

// NewMockService returns an empty MockService; wrapping pads are created
// lazily, one per distinct keyID, on first use.
func NewMockService() *MockService {
	return &MockService{keys: make(map[string][]byte)}
}

func (m *MockService) padFor(keyID string) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	if pad, ok := m.keys[keyID]; ok {
		return pad
	}
	pad := make([]byte, 32)
	copy(pad, []byte(fmt.Sprintf("mock-kms-pad-%s-00000000000000", keyID)))
	m.keys[keyID] = pad
	return pad
}

func (m *MockService) GenerateDataKey(_ context.Context, keyID string, encryptionContext map[string]string) ([32]byte, []byte, error) {
	var plaintext [32]byte
	if _, err := rand.Read(plaintext[:]); err != nil {
		return plaintext, nil, err
	}

	pad := m.padFor(keyID)
	blob := make([]byte, 32+len(keyID)+1)
	blob[0] = byte(len(keyID))
	copy(blob[1:], keyID)
	for i := 0; i < 32; i++ {
		blob[1+len(keyID)+i] = plaintext[i] ^ pad[i]
	}
	return plaintext, blob, nil
}

func (m *MockService) Decrypt(_ context.Context, ciphertextBlob []byte, encryptionContext map[string]string) ([32]byte, error) {
	var plaintext [32]byte
	if len(ciphertextBlob) < 1 {
		return plaintext, fmt.Errorf("kms: mock ciphertext blob too short")
	}
	keyIDLen := int(ciphertextBlob[0])
	if len(ciphertextBlob) != 1+keyIDLen+32 {
		return plaintext, fmt.Errorf("kms: mock ciphertext blob has wrong length")
	}
	keyID := string(ciphertextBlob[1 : 1+keyIDLen])

	pad := m.padFor(keyID)
	wrapped := ciphertextBlob[1+keyIDLen:]
	for i := 0; i < 32; i++ {
		plaintext[i] = wrapped[i] ^ pad[i]
	}
	return plaintext, nil
}
