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
	"testing"
)

func TestGetCipherBlockUpperBound(t *testing.T) {
	cases := []struct {
		n, want int64
	}{
		{0, 256},
		{257, 512},
		{math.MaxInt64, math.MaxInt64},
	}
	for _, c := range cases {
		if got := getCipherBlockUpperBound(c.n); got != c.want {
			t.Errorf("getCipherBlockUpperBound(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestGetCipherBlockLowerBound(t *testing.T) {
	cases := []struct {
		n, want int64
	}{
		{0, 0},
		{20, 0},
		{257, 128},
		{510, 256},
	}
	for _, c := range cases {
		if got := getCipherBlockLowerBound(c.n); got != c.want {
			t.Errorf("getCipherBlockLowerBound(%d) = %d, want %d", c.n, got, c.want)
		}
	}
}

func TestCipherBlockBoundProperties(t *testing.T) {
	ns := []int64{0, 1, 16, 127, 128, 129, 255, 256, 257, 1000, 1 << 30}
	for _, n := range ns {
		upper := getCipherBlockUpperBound(n)
		if upper < n+1 && n != math.MaxInt64 {
			t.Errorf("getCipherBlockUpperBound(%d) = %d, want >= %d", n, upper, n+1)
		}
		if upper%256 != 0 && n != math.MaxInt64 {
			t.Errorf("getCipherBlockUpperBound(%d) = %d, want multiple of 256", n, upper)
		}

		lower := getCipherBlockLowerBound(n)
		if lower > n {
			t.Errorf("getCipherBlockLowerBound(%d) = %d, want <= %d", n, lower, n)
		}
		if lower != 0 && lower%128 != 0 {
			t.Errorf("getCipherBlockLowerBound(%d) = %d, want 0 or multiple of 128", n, lower)
		}
	}
}

func TestPlanRangeWithinObject(t *testing.T) {
	// A 100-byte object, user asks for bytes [20, 39].
	plan := PlanRange(20, 39, 100)

	if plan.AdjustedStart != 16 {
		t.Errorf("AdjustedStart = %d, want 16", plan.AdjustedStart)
	}
	if plan.AdjustedEnd != 47 {
		t.Errorf("AdjustedEnd = %d, want 47", plan.AdjustedEnd)
	}
	if plan.TrimFront != 4 {
		t.Errorf("TrimFront = %d, want 4", plan.TrimFront)
	}
	if plan.TrimBack != 8 {
		t.Errorf("TrimBack = %d, want 8", plan.TrimBack)
	}
	if plan.BlockOffset != 1 {
		t.Errorf("BlockOffset = %d, want 1", plan.BlockOffset)
	}
}

func TestPlanRangeClampsToObjectLength(t *testing.T) {
	// Object is only 30 bytes; asking for [20, 39] should clamp AdjustedEnd.
	plan := PlanRange(20, 39, 30)
	if plan.AdjustedEnd != 29 {
		t.Errorf("AdjustedEnd = %d, want 29 (object_len-1)", plan.AdjustedEnd)
	}
	if plan.TrimBack != plan.AdjustedEnd-39 {
		t.Errorf("TrimBack = %d, want %d", plan.TrimBack, plan.AdjustedEnd-39)
	}
}

func TestPlanRangeAlignedBoundaries(t *testing.T) {
	// A range that already sits on block boundaries needs no trimming.
	plan := PlanRange(16, 31, 64)
	if plan.AdjustedStart != 16 || plan.AdjustedEnd != 31 {
		t.Fatalf("plan = %+v, want aligned [16,31]", plan)
	}
	if plan.TrimFront != 0 || plan.TrimBack != 0 {
		t.Fatalf("plan = %+v, want zero trim", plan)
	}
}
