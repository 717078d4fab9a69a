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
	"encoding/base64"
	"encoding/json"
	"strconv"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/constants"
)

// EnvelopeMetadata is the header set stored alongside S3CSE ciphertext,
// bit-compatible with the S3 Encryption Client v1/v2 wire format.
type EnvelopeMetadata struct {
	// KeyV1 holds the wrapped data key for the legacy (v1) envelope, with
	// no v2 suffix. Mutually exclusive with KeyV2.
	KeyV1 []byte
	// KeyV2 holds the wrapped data key for the v2 envelope.
	KeyV2 []byte
	// IV is the raw (un-base64'd) nonce/IV: 12 bytes for GCM, 16 for CBC.
	IV []byte
	// CEKAlg names the content-encryption algorithm. Empty for v1 envelopes.
	CEKAlg string
	// WrapAlg names the key-wrap algorithm. Empty for v1 envelopes.
	WrapAlg string
	// TagLenBits is the AEAD tag length in bits; only meaningful for GCM.
	TagLenBits int
	// MaterialDescription is the opaque label set identifying how the key
	// was wrapped.
	MaterialDescription map[string]string
	// UnencryptedContentLength is the plaintext length in bytes.
	UnencryptedContentLength int64
}

// IsV1 reports whether this envelope uses the legacy v1 key header.
func (m EnvelopeMetadata) IsV1() bool {
	return len(m.KeyV1) > 0
}

// EncodeMetadata renders m into the string map S3 stores as object
// metadata. It never mutates m.
func EncodeMetadata(m EnvelopeMetadata) (map[string]string, error) {
	out := make(map[string]string, 7)

	if m.IsV1() {
		out[constants.HeaderKeyV1] = base64.StdEncoding.EncodeToString(m.KeyV1)
	} else {
		out[constants.HeaderKeyV2] = base64.StdEncoding.EncodeToString(m.KeyV2)
		out[constants.HeaderCEKAlg] = m.CEKAlg
		out[constants.HeaderWrapAlg] = m.WrapAlg
		if m.CEKAlg == constants.CEKAlgGCM {
			out[constants.HeaderTagLen] = strconv.Itoa(m.TagLenBits)
		}
	}

	out[constants.HeaderIV] = base64.StdEncoding.EncodeToString(m.IV)

	matdesc := m.MaterialDescription
	if matdesc == nil {
		matdesc = map[string]string{}
	}
	matdescJSON, err := json.Marshal(matdesc)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: marshal matdesc")
	}
	out[constants.HeaderMatDesc] = string(matdescJSON)

	out[constants.HeaderUnencryptedContentLength] = strconv.FormatInt(m.UnencryptedContentLength, 10)

	return out, nil
}

// DecodeMetadata parses the string map S3 returns as object metadata into
// an EnvelopeMetadata. Unknown keys in headers are ignored. Fails with
// ErrMalformedMetadata when a required header is missing, a binary field
// is not valid base64, matdesc does not decode to a flat string map, or
// the declared algorithm is unsupported.
func DecodeMetadata(headers map[string]string) (EnvelopeMetadata, error) {
	var m EnvelopeMetadata

	ivB64, ok := headers[constants.HeaderIV]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderIV)
	}
	iv, err := base64.StdEncoding.DecodeString(ivB64)
	if err != nil {
		return m, errors.Wrap(ErrMalformedMetadata, "invalid base64 in "+constants.HeaderIV)
	}
	m.IV = iv

	matdescRaw, ok := headers[constants.HeaderMatDesc]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderMatDesc)
	}
	matdesc := map[string]string{}
	if err := json.Unmarshal([]byte(matdescRaw), &matdesc); err != nil {
		return m, errors.Wrap(ErrMalformedMetadata, "matdesc is not a flat string map")
	}
	m.MaterialDescription = matdesc

	lengthRaw, ok := headers[constants.HeaderUnencryptedContentLength]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderUnencryptedContentLength)
	}
	length, err := strconv.ParseInt(lengthRaw, 10, 64)
	if err != nil {
		return m, errors.Wrap(ErrMalformedMetadata, "invalid "+constants.HeaderUnencryptedContentLength)
	}
	m.UnencryptedContentLength = length

	if keyV1B64, ok := headers[constants.HeaderKeyV1]; ok {
		keyV1, err := base64.StdEncoding.DecodeString(keyV1B64)
		if err != nil {
			return m, errors.Wrap(ErrMalformedMetadata, "invalid base64 in "+constants.HeaderKeyV1)
		}
		m.KeyV1 = keyV1
		return m, nil
	}

	keyV2B64, ok := headers[constants.HeaderKeyV2]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderKeyV1+" or "+constants.HeaderKeyV2)
	}
	keyV2, err := base64.StdEncoding.DecodeString(keyV2B64)
	if err != nil {
		return m, errors.Wrap(ErrMalformedMetadata, "invalid base64 in "+constants.HeaderKeyV2)
	}
	m.KeyV2 = keyV2

	cekAlg, ok := headers[constants.HeaderCEKAlg]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderCEKAlg)
	}
	if cekAlg != constants.CEKAlgGCM && cekAlg != constants.CEKAlgCBC {
		return m, errors.Wrapf(ErrMalformedMetadata, "unsupported %s: %s", constants.HeaderCEKAlg, cekAlg)
	}
	m.CEKAlg = cekAlg

	wrapAlg, ok := headers[constants.HeaderWrapAlg]
	if !ok {
		return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderWrapAlg)
	}
	if wrapAlg != constants.WrapAlgKMS && wrapAlg != constants.WrapAlgAESWrap && wrapAlg != constants.WrapAlgRSAOAEP {
		return m, errors.Wrapf(ErrMalformedMetadata, "unsupported %s: %s", constants.HeaderWrapAlg, wrapAlg)
	}
	m.WrapAlg = wrapAlg

	if cekAlg == constants.CEKAlgGCM {
		tagLenRaw, ok := headers[constants.HeaderTagLen]
		if !ok {
			return m, errors.Wrap(ErrMalformedMetadata, "missing "+constants.HeaderTagLen)
		}
		tagLen, err := strconv.Atoi(tagLenRaw)
		if err != nil {
			return m, errors.Wrap(ErrMalformedMetadata, "invalid "+constants.HeaderTagLen)
		}
		m.TagLenBits = tagLen
	}

	return m, nil
}
