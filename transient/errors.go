// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package transient

import "errors"

// Pool errors.
var (
	// ErrNilDevice is returned when creating a pool without a device.
	ErrNilDevice = errors.New("transient: device is nil")

	// ErrStaleHandle is returned when a handle from an earlier frame is used.
	ErrStaleHandle = errors.New("transient: handle is from an earlier frame")

	// ErrInvalidHandle is returned for a zero handle or one that never
	// referred to a live pool entry.
	ErrInvalidHandle = errors.New("transient: invalid handle")

	// ErrInvalidDescriptor is returned for a descriptor with a zero extent,
	// an undefined format or a zero buffer size.
	ErrInvalidDescriptor = errors.New("transient: invalid descriptor")

	// ErrWrongKind is returned when a buffer handle is used as a texture or
	// the other way round.
	ErrWrongKind = errors.New("transient: wrong resource kind")

	// ErrMipOutOfRange is returned by MipView for a level the texture lacks.
	ErrMipOutOfRange = errors.New("transient: mip level out of range")

	// ErrPoolDestroyed is returned after Destroy.
	ErrPoolDestroyed = errors.New("transient: pool destroyed")
)
