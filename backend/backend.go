// Copyright 2025 Bender Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package backend defines the compute device contract layers run on.
//
// Use the cpu package for the reference device and the webgpu package for GPU execution.
package backend

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Size is the height, width and channel count of an image.
type Size = backend.Size

// Image is a device resident HWC image.
type Image = backend.Image

// Device allocates images and buffers and encodes kernels into command buffers.
type Device = backend.Device

// ErrUnavailable is returned when a device cannot be created on this system.
var ErrUnavailable = backend.ErrUnavailable
