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
	"crypto/subtle"
	"encoding/binary"

	"github.com/pkg/errors"
)

// aesWrapIV is the default integrity-check IV from RFC 3394 section 2.2.3.1.
var aesWrapIV = [8]byte{0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6, 0xA6}

// aesKeyWrap implements the AES key-wrap algorithm of RFC 3394 over a
// plaintext that must be a multiple of 8 bytes. No library in this repo's
// dependency set implements RFC 3394; the Go standard library only
// provides the AES block cipher primitive this builds on.
func aesKeyWrap(kek, plaintext []byte) ([]byte, error) {
	if len(plaintext)%8 != 0 || len(plaintext) == 0 {
		return nil, errors.New("s3cse: key wrap input must be a non-zero multiple of 8 bytes")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new aes cipher for key wrap")
	}

	n := len(plaintext) / 8
	r := make([][8]byte, n+1)
	for i := 0; i < n; i++ {
		copy(r[i+1][:], plaintext[i*8:(i+1)*8])
	}

	var a [8]byte
	copy(a[:], aesWrapIV[:])

	buf := make([]byte, 16)
	for j := 0; j <= 5; j++ {
		for i := 1; i <= n; i++ {
			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Encrypt(buf, buf)

			copy(a[:], buf[:8])
			t := uint64(n*j + i)
			xorUint64(a[:], t)

			copy(r[i][:], buf[8:])
		}
	}

	out := make([]byte, 8*(n+1))
	copy(out[:8], a[:])
	for i := 1; i <= n; i++ {
		copy(out[i*8:(i+1)*8], r[i][:])
	}
	return out, nil
}

// aesKeyUnwrap is the inverse of aesKeyWrap. Returns an error if the
// integrity check value does not match aesWrapIV.
func aesKeyUnwrap(kek, wrapped []byte) ([]byte, error) {
	if len(wrapped)%8 != 0 || len(wrapped) < 16 {
		return nil, errors.New("s3cse: key unwrap input must be at least 16 bytes and a multiple of 8")
	}
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, errors.Wrap(err, "s3cse: new aes cipher for key unwrap")
	}

	n := len(wrapped)/8 - 1
	r := make([][8]byte, n+1)
	for i := 0; i < n; i++ {
		copy(r[i+1][:], wrapped[(i+1)*8:(i+2)*8])
	}

	var a [8]byte
	copy(a[:], wrapped[:8])

	buf := make([]byte, 16)
	for j := 5; j >= 0; j-- {
		for i := n; i >= 1; i-- {
			t := uint64(n*j + i)
			xorUint64(a[:], t)

			copy(buf[:8], a[:])
			copy(buf[8:], r[i][:])
			block.Decrypt(buf, buf)

			copy(a[:], buf[:8])
			copy(r[i][:], buf[8:])
		}
	}

	if subtle.ConstantTimeCompare(a[:], aesWrapIV[:]) != 1 {
		return nil, errors.New("s3cse: key unwrap integrity check failed")
	}

	out := make([]byte, 8*n)
	for i := 1; i <= n; i++ {
		copy(out[(i-1)*8:i*8], r[i][:])
	}
	return out, nil
}

func xorUint64(a []byte, t uint64) {
	var tb [8]byte
	binary.BigEndian.PutUint64(tb[:], t)
	for i := range a {
		a[i] ^= tb[i]
	}
}
