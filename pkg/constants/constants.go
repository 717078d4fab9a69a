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

// Package constants collects the envelope header names and transfer
// tunables shared across the s3cse and transfer packages.
package constants

const (
	// HeaderKeyV1 carries the wrapped data key for the legacy (v1) envelope
	// format, with no AEAD protection of the wrap itself.
	HeaderKeyV1 = "x-amz-key"
	// HeaderKeyV2 carries the wrapped data key for the v2 envelope format.
	HeaderKeyV2 = "x-amz-key-v2"
	// HeaderIV carries the base64 nonce/IV.
	HeaderIV = "x-amz-iv"
	// HeaderCEKAlg names the content-encryption algorithm.
	HeaderCEKAlg = "x-amz-cek-alg"
	// HeaderWrapAlg names the key-wrap algorithm.
	HeaderWrapAlg = "x-amz-wrap-alg"
	// HeaderTagLen carries the AEAD tag length in bits, GCM only.
	HeaderTagLen = "x-amz-tag-len"
	// HeaderMatDesc carries the JSON material description.
	HeaderMatDesc = "x-amz-matdesc"
	// HeaderUnencryptedContentLength carries the decimal plaintext length.
	HeaderUnencryptedContentLength = "x-amz-unencrypted-content-length"
)

const (
	// CEKAlgGCM is the AEAD content cipher algorithm string.
	CEKAlgGCM = "AES/GCM/NoPadding"
	// CEKAlgCBC is the CBC+PKCS7 content cipher algorithm string.
	CEKAlgCBC = "AES/CBC/PKCS5Padding"

	// WrapAlgKMS names the KMS key-wrap algorithm.
	WrapAlgKMS = "kms"
	// WrapAlgAESWrap names the symmetric AES key-wrap algorithm.
	WrapAlgAESWrap = "AESWrap"
	// WrapAlgRSAOAEP names the asymmetric RSA-OAEP key-wrap algorithm.
	WrapAlgRSAOAEP = "RSA/ECB/OAEPWithSHA-256AndMGF1Padding"

	// GCMTagLenBits is the only AEAD tag length this engine produces.
	GCMTagLenBits = 128
)

const (
	// DataKeySize is the size, in bytes, of every content-encryption key.
	DataKeySize = 32
	// CipherBlockSize is the AES block size used for range alignment.
	CipherBlockSize = 16
)

const (
	// DefaultMultipartChunksize is the default per-part size for uploads.
	DefaultMultipartChunksize = 8 * 1024 * 1024
	// DefaultIOChunksize is the default read granularity from the source.
	DefaultIOChunksize = 256 * 1024
	// DefaultMaxConcurrency is the default number of parallel part workers.
	DefaultMaxConcurrency = 10
	// DefaultMaxIOQueue is the default bounded-queue depth between the
	// reader task and the uploader pool.
	DefaultMaxIOQueue = 100
	// DefaultPartSize is the default per-part size for downloads.
	DefaultPartSize = 8 * 1024 * 1024
)
