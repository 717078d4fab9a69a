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

// Package kms defines the narrow KeyManagementService capability the
// s3cse engine consumes, and provides a real aws-sdk-go-v2 backed
// implementation plus an in-memory mock for tests.
package kms

import "context"

// Service is the KMS capability the KmsContext crypto context consumes.
// It deliberately exposes only the two operations the engine needs, not a
// full KMS client surface.
type Service interface {
	// GenerateDataKey asks KMS to mint a fresh AES-256 data key under
	// keyID, bound to encryptionContext.
	GenerateDataKey(ctx context.Context, keyID string, encryptionContext map[string]string) (plaintext [32]byte, ciphertextBlob []byte, err error)

	// Decrypt recovers the plaintext data key sealed in ciphertextBlob,
	// verifying it against encryptionContext.
	Decrypt(ctx context.Context, ciphertextBlob []byte, encryptionContext map[string]string) (plaintext [32]byte, err error)
}
