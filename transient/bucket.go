// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transient

import (
	"fmt"
	"math/bits"
	"strconv"
	"strings"
)

type bucketMode uint8

const (
	bucketExact bucketMode = iota
	bucketPow2
	bucketGranularity
)

// BucketPolicy decides how far a request may be rounded up so that nearby
// sizes share pooled entries. Texture width and height are rounded
// independently; buffers round their byte size.
//
// The zero value is BucketExact.
type BucketPolicy struct {
	mode bucketMode
	step uint64
}

var (
	// BucketExact reuses an entry only for an identical size.
	BucketExact = BucketPolicy{}

	// BucketPowerOfTwo rounds sizes up to the next power of two.
	BucketPowerOfTwo = BucketPolicy{mode: bucketPow2}
)

// BucketGranularity rounds sizes up to a multiple of step. A step of 0 or 1
// is the same as BucketExact.
func BucketGranularity(step uint64) BucketPolicy {
	if step <= 1 {
		return BucketExact
	}
	return BucketPolicy{mode: bucketGranularity, step: step}
}

// Round returns the bucketed size for v.
func (p BucketPolicy) Round(v uint64) uint64 {
	switch p.mode {
	case bucketPow2:
		if v <= 1 {
			return v
		}
		return 1 << bits.Len64(v-1)
	case bucketGranularity:
		return (v + p.step - 1) / p.step * p.step
	default:
		return v
	}
}

func (p BucketPolicy) String() string {
	switch p.mode {
	case bucketPow2:
		return "pow2"
	case bucketGranularity:
		return "granularity:" + strconv.FormatUint(p.step, 10)
	default:
		return "exact"
	}
}

// ParseBucketPolicy parses "exact", "pow2" or "granularity:N". An empty
// string selects BucketExact.
func ParseBucketPolicy(s string) (BucketPolicy, error) {
	switch s = strings.TrimSpace(strings.ToLower(s)); {
	case s == "" || s == "exact":
		return BucketExact, nil
	case s == "pow2" || s == "power-of-two":
		return BucketPowerOfTwo, nil
	case strings.HasPrefix(s, "granularity:"):
		n, err := strconv.ParseUint(strings.TrimPrefix(s, "granularity:"), 10, 64)
		if err != nil {
			return BucketExact, fmt.Errorf("transient: bucket granularity %q: %w", s, err)
		}
		return BucketGranularity(n), nil
	default:
		return BucketExact, fmt.Errorf("transient: unknown bucket policy %q", s)
	}
}

// MarshalText implements encoding.TextMarshaler.
func (p BucketPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *BucketPolicy) UnmarshalText(b []byte) error {
	v, err := ParseBucketPolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}
