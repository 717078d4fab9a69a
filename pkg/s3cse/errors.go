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

import "github.com/pkg/errors"

// Sentinel error kinds. Call sites wrap these with errors.Wrap/Wrapf for
// context; callers should compare with errors.Is.
var (
	// ErrDecrypt is returned for any failure to recover plaintext: tag
	// mismatch, bad padding, range request against a CBC object, or an
	// unsupported algorithm named in the envelope metadata.
	ErrDecrypt = errors.New("s3cse: decrypt failed")

	// ErrMalformedMetadata is returned when the envelope header set is
	// missing a required header, or a header's base64/JSON is invalid.
	ErrMalformedMetadata = errors.New("s3cse: malformed envelope metadata")

	// ErrMissingKmsKey is returned when encryption is requested on a KMS
	// CryptoContext that has no key ID configured.
	ErrMissingKmsKey = errors.New("s3cse: kms context has no key id")

	// ErrRangeNotSupported is returned when a ranged read is requested
	// against a CBC-encrypted object. Also matches ErrDecrypt.
	ErrRangeNotSupported error = &decryptKindError{msg: "s3cse: range_not_supported"}

	// ErrTagMismatch is returned when GCM authentication fails. Also
	// matches ErrDecrypt.
	ErrTagMismatch error = &decryptKindError{msg: "s3cse: gcm authentication tag mismatch"}

	// ErrBadPadding is returned when CBC PKCS7 padding fails to validate.
	// Also matches ErrDecrypt.
	ErrBadPadding error = &decryptKindError{msg: "s3cse: invalid pkcs7 padding"}
)

// decryptKindError is a sentinel for one specific way of failing to
// recover plaintext. errors.Is still matches the specific sentinel by
// identity, and additionally matches the umbrella ErrDecrypt, so callers
// can classify at either granularity.
type decryptKindError struct {
	msg string
}

func (e *decryptKindError) Error() string { return e.msg }

func (e *decryptKindError) Is(target error) bool { return target == ErrDecrypt }
