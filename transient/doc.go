// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package transient pools short-lived GPU textures and buffers.
//
// Render passes acquire intermediate targets while preparing a frame and
// resolve them while recording commands. At the end of the frame the
// composer calls RecycleAll, which returns every reservation to the free
// list so the next frame reuses the same GPU memory:
//
//	h, err := pool.Acquire(transient.TextureDesc("hdr", w, h,
//	    gputypes.TextureFormatRGBA16Float,
//	    gputypes.TextureUsageRenderAttachment|gputypes.TextureUsageTextureBinding))
//	...
//	view, err := pool.Resolver().TextureView(h)
//	...
//	pool.RecycleAll()
//
// Handles carry the frame epoch they were issued in. Using one after
// RecycleAll returns ErrStaleHandle instead of touching memory now owned
// by another pass.
//
// Matching is exact by default. WithBucketPolicy rounds requested sizes up
// (BucketPowerOfTwo, BucketGranularity) so nearby sizes share entries,
// which helps during interactive resizes.
package transient
