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
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/constants"
)

// gcmNonceSize is the IV length S3CSE uses for GCM; no AAD is used.
const gcmNonceSize = 12

// cbcIVSize is the IV length S3CSE uses for CBC.
const cbcIVSize = constants.CipherBlockSize

// EncryptGCM encrypts plaintext under key with a fresh random 12-byte IV.
// The 16-byte AEAD tag is appended to the returned ciphertext.
func EncryptGCM(key []byte, plaintext []byte) (iv []byte, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "s3cse: new aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, errors.Wrap(err, "s3cse: new gcm")
	}

	iv = make([]byte, gcmNonceSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, errors.Wrap(err, "s3cse: generate gcm iv")
	}

	ciphertext = gcm.Seal(nil, iv, plaintext, nil)
	return iv, ciphertext, nil
}

// DecryptGCM authenticates and decrypts ciphertext (tag included) under key
// and iv. Returns ErrTagMismatch on authentication failure.
func DecryptGCM(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new aes cipher")
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new gcm")
	}

	plaintext, err := gcm.Open(nil, iv, ciphertext, nil)
	if err != nil {
		return nil, errors.Wrap(ErrTagMismatch, err.Error())
	}
	return plaintext, nil
}

// EncryptCBC PKCS7-pads plaintext to the AES block size and encrypts it
// under key with a fresh random 16-byte IV.
func EncryptCBC(key []byte, plaintext []byte) (iv []byte, ciphertext []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, errors.Wrap(err, "s3cse: new aes cipher")
	}

	iv = make([]byte, cbcIVSize)
	if _, err := rand.Read(iv); err != nil {
		return nil, nil, errors.Wrap(err, "s3cse: generate cbc iv")
	}

	padded := pkcs7Pad(plaintext, aes.BlockSize)
	ciphertext = make([]byte, len(padded))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, padded)
	return iv, ciphertext, nil
}

// DecryptCBC decrypts ciphertext under key and iv, and validates and strips
// PKCS7 padding. Returns ErrBadPadding when the padding is invalid.
func DecryptCBC(key, iv, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new aes cipher")
	}
	if len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return nil, errors.Wrap(ErrBadPadding, "ciphertext is not a multiple of the block size")
	}

	padded := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(padded, ciphertext)

	return pkcs7Unpad(padded, aes.BlockSize)
}

// DecryptGCMRanged reinterprets a GCM ciphertext as AES-CTR so that an
// arbitrary, block-aligned slice of it can be decrypted without the full
// object or its AEAD tag. blockOffset is the index (0-based, in
// constants.CipherBlockSize units) of the first cipher block present in
// ciphertextSlice. Callers accept loss of the authenticity guarantee.
func DecryptGCMRanged(key, baseIV []byte, ciphertextSlice []byte, blockOffset int64) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new aes cipher")
	}

	counter := AdjustIVForRange(baseIV, blockOffset)
	stream := cipher.NewCTR(block, counter)

	plaintext := make([]byte, len(ciphertextSlice))
	stream.XORKeyStream(plaintext, ciphertextSlice)
	return plaintext, nil
}

// ComputeJ0 returns the GCM "J0" counter block derived from a 12-byte IV,
// i.e. iv || 0x00000002 per NIST SP 800-38D's treatment of 96-bit IVs,
// with the counter already advanced past the tag block.
func ComputeJ0(iv12 []byte) []byte {
	j0 := make([]byte, 16)
	copy(j0, iv12)
	binary.BigEndian.PutUint32(j0[12:], 2)
	return j0
}

// IncrementBlocks adds n to the low 32 bits of a 16-byte counter block,
// wrapping modulo 2^32.
func IncrementBlocks(counter []byte, n int64) []byte {
	out := make([]byte, 16)
	copy(out, counter)
	low := binary.BigEndian.Uint32(out[12:])
	low += uint32(uint64(n) % (1 << 32))
	binary.BigEndian.PutUint32(out[12:], low)
	return out
}

// AdjustIVForRange computes the CTR counter block to use when the first
// ciphertext block present is at startBlockIndex (0-based) within the
// object, given the object's base 12-byte GCM IV.
func AdjustIVForRange(iv12 []byte, startBlockIndex int64) []byte {
	return IncrementBlocks(ComputeJ0(iv12), startBlockIndex)
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padLen := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padLen)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padLen)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	n := len(data)
	if n == 0 || n%blockSize != 0 {
		return nil, errors.Wrap(ErrBadPadding, "data is not block aligned")
	}
	padLen := int(data[n-1])
	if padLen == 0 || padLen > blockSize || padLen > n {
		return nil, errors.Wrap(ErrBadPadding, "invalid padding length")
	}
	for _, b := range data[n-padLen:] {
		if int(b) != padLen {
			return nil, errors.Wrap(ErrBadPadding, "inconsistent padding bytes")
		}
	}
	return data[:n-padLen], nil
}
