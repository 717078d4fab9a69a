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

package s3cse

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/constants"
	"github.com/GoogleContainerTools/s3cse/pkg/kms"
)

// DataKey is a freshly generated content-encryption key. Wrapped and
// MaterialDescription together are sufficient for the CryptoContext that
// produced them to recover Plaintext.
type DataKey struct {
	Plaintext           []byte
	Wrapped             []byte
	MaterialDescription map[string]string
}

// CryptoContext produces and unwraps per-object data keys. Implementations
// must be safe for concurrent use after construction; any lazily acquired
// resource (e.g. a KMS client) must be initialized idempotently.
type CryptoContext interface {
	// WrapAlg names the wrap algorithm this context writes into envelope
	// metadata.
	WrapAlg() string

	// GetEncryptionDataKey generates a fresh data key and wraps it for
	// storage.
	GetEncryptionDataKey(ctx context.Context) (DataKey, error)

	// GetDecryptionDataKey unwraps a previously wrapped data key.
	GetDecryptionDataKey(ctx context.Context, materialDescription map[string]string, wrapped []byte) ([]byte, error)
}

// SymmetricContext wraps data keys with a caller-supplied AES key using
// RFC 3394 AES key wrap.
type SymmetricContext struct {
	// Key is the long-lived AES key-encryption key. Its length selects
	// AES-128/192/256 key wrap.
	Key []byte
}

var _ CryptoContext = (*SymmetricContext)(nil)

func (c *SymmetricContext) WrapAlg() string { return constants.WrapAlgAESWrap }

func (c *SymmetricContext) GetEncryptionDataKey(ctx context.Context) (DataKey, error) {
	dk := make([]byte, constants.DataKeySize)
	if _, err := rand.Read(dk); err != nil {
		return DataKey{}, errors.Wrap(err, "s3cse: generate data key")
	}
	wrapped, err := aesKeyWrap(c.Key, dk)
	if err != nil {
		return DataKey{}, errors.Wrap(err, "s3cse: wrap data key")
	}
	return DataKey{Plaintext: dk, Wrapped: wrapped, MaterialDescription: map[string]string{}}, nil
}

func (c *SymmetricContext) GetDecryptionDataKey(ctx context.Context, _ map[string]string, wrapped []byte) ([]byte, error) {
	dk, err := aesKeyUnwrap(c.Key, wrapped)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: unwrap data key")
	}
	return dk, nil
}

// AsymmetricContext wraps data keys with RSA-OAEP(SHA-256, MGF1-SHA-256)
// under a caller-supplied RSA key pair. Either field may be nil if the
// context is only used for the corresponding direction.
type AsymmetricContext struct {
	PublicKey  *rsa.PublicKey
	PrivateKey *rsa.PrivateKey
}

var _ CryptoContext = (*AsymmetricContext)(nil)

func (c *AsymmetricContext) WrapAlg() string { return constants.WrapAlgRSAOAEP }

func (c *AsymmetricContext) GetEncryptionDataKey(ctx context.Context) (DataKey, error) {
	if c.PublicKey == nil {
		return DataKey{}, errors.New("s3cse: asymmetric context has no public key")
	}
	dk := make([]byte, constants.DataKeySize)
	if _, err := rand.Read(dk); err != nil {
		return DataKey{}, errors.Wrap(err, "s3cse: generate data key")
	}
	wrapped, err := rsa.EncryptOAEP(sha256.New(), rand.Reader, c.PublicKey, dk, nil)
	if err != nil {
		return DataKey{}, errors.Wrap(err, "s3cse: rsa-oaep wrap data key")
	}
	return DataKey{Plaintext: dk, Wrapped: wrapped, MaterialDescription: map[string]string{}}, nil
}

func (c *AsymmetricContext) GetDecryptionDataKey(ctx context.Context, _ map[string]string, wrapped []byte) ([]byte, error) {
	if c.PrivateKey == nil {
		return nil, errors.New("s3cse: asymmetric context has no private key")
	}
	dk, err := rsa.DecryptOAEP(sha256.New(), rand.Reader, c.PrivateKey, wrapped, nil)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: rsa-oaep unwrap data key")
	}
	return dk, nil
}

// KmsContext wraps data keys via a KeyManagementService capability. KeyID
// may be empty when the context is only used for decryption, since the
// wrapped blob carries its own key reference.
type KmsContext struct {
	Service kms.Service
	KeyID   string
}

var _ CryptoContext = (*KmsContext)(nil)

func (c *KmsContext) WrapAlg() string { return constants.WrapAlgKMS }

func (c *KmsContext) GetEncryptionDataKey(ctx context.Context) (DataKey, error) {
	if c.KeyID == "" {
		return DataKey{}, ErrMissingKmsKey
	}
	encryptionContext := map[string]string{"kms_cmk_id": c.KeyID}
	plaintext, ciphertextBlob, err := c.Service.GenerateDataKey(ctx, c.KeyID, encryptionContext)
	if err != nil {
		return DataKey{}, errors.Wrap(err, "s3cse: kms generate data key")
	}
	return DataKey{
		Plaintext:           plaintext[:],
		Wrapped:             ciphertextBlob,
		MaterialDescription: encryptionContext,
	}, nil
}

func (c *KmsContext) GetDecryptionDataKey(ctx context.Context, materialDescription map[string]string, wrapped []byte) ([]byte, error) {
	plaintext, err := c.Service.Decrypt(ctx, wrapped, materialDescription)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: kms decrypt")
	}
	return plaintext[:], nil
}
