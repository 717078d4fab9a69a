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
	"math"

	"github.com/GoogleContainerTools/s3cse/pkg/constants"
)

// RangePlan is the cipher-block-aligned byte range and trim offsets
// needed to service a user-requested range [s, e] against a GCM object.
type RangePlan struct {
	AdjustedStart int64
	AdjustedEnd   int64
	TrimFront     int64
	TrimBack      int64
	BlockOffset   int64
}

// PlanRange aligns the user range [s, e] (inclusive) to cipher-block
// boundaries against an object of length objectLen, so the adjusted range
// can be fetched and decrypted with DecryptGCMRanged, then trimmed back
// down to exactly what the caller asked for.
func PlanRange(s, e, objectLen int64) RangePlan {
	const b = constants.CipherBlockSize

	adjustedStart := (s / b) * b
	adjustedEnd := ceilToMultiple(e+1, b) - 1
	if adjustedEnd > objectLen-1 {
		adjustedEnd = objectLen - 1
	}

	return RangePlan{
		AdjustedStart: adjustedStart,
		AdjustedEnd:   adjustedEnd,
		TrimFront:     s - adjustedStart,
		TrimBack:      adjustedEnd - e,
		BlockOffset:   adjustedStart / b,
	}
}

// ceilToMultiple rounds n up to the next multiple of b.
func ceilToMultiple(n, b int64) int64 {
	if n <= 0 {
		return 0
	}
	return ((n + b - 1) / b) * b
}

// getCipherBlockUpperBound rounds n up to the next multiple of 256 that is
// strictly greater than n, with floor 256; it saturates instead of
// overflowing when n sits within one unit of math.MaxInt64. This is a
// buffering clamp for sizing read-ahead, distinct from the 16-byte
// alignment PlanRange itself performs.
func getCipherBlockUpperBound(n int64) int64 {
	const unit = 256
	if n <= 0 {
		return unit
	}
	if n > math.MaxInt64-unit {
		return math.MaxInt64
	}
	return (n/unit + 1) * unit
}

// getCipherBlockLowerBound rounds n down to the previous multiple of 128,
// leaving at least one full block of slack below n, with floor 0.
func getCipherBlockLowerBound(n int64) int64 {
	const unit = 128
	adjusted := n - unit
	if adjusted <= 0 {
		return 0
	}
	return (adjusted / unit) * unit
}
