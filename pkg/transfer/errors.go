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

// Package transfer implements the bounded-concurrency multipart upload and
// download orchestrators that sit between a byte stream (ciphertext, when
// driven by the s3cse Facade) and an objectstore.Store.
package transfer

import (
	"context"

	"github.com/pkg/errors"

	"github.com/GoogleContainerTools/s3cse/pkg/objectstore"
)

var (
	// ErrNotFound is returned when an object or multipart upload key is
	// absent, normalized from the backing store's own NoSuchKey/NoSuchUpload.
	// It is an alias of objectstore.ErrNotFound so callers can check either
	// package's sentinel with errors.Is.
	ErrNotFound = objectstore.ErrNotFound

	// ErrTransferFailed wraps an upstream ObjectStore/KMS error observed
	// during a multipart session.
	ErrTransferFailed = errors.New("transfer: transfer failed")

	// ErrCancelled signals cooperative cancellation was observed.
	ErrCancelled = errors.New("transfer: cancelled")
)

// sentinelError pairs a fixed sentinel with the real upstream cause, so a
// caller can errors.Is against either the sentinel (to classify the
// failure) or the original error (e.g. objectstore.ErrNotFound) that
// triggered it.
type sentinelError struct {
	sentinel error
	cause    error
}

func (e *sentinelError) Error() string {
	return e.sentinel.Error() + ": " + e.cause.Error()
}

func (e *sentinelError) Unwrap() error { return e.cause }

func (e *sentinelError) Is(target error) bool { return target == e.sentinel }

// classifyGroupError wraps an errgroup failure observed during Upload or
// Download, preserving the upstream cause for errors.Is/errors.As while
// still classifying it as ErrCancelled or ErrTransferFailed. err must be
// non-nil.
func classifyGroupError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &sentinelError{sentinel: ErrCancelled, cause: err}
	}
	return &sentinelError{sentinel: ErrTransferFailed, cause: err}
}
