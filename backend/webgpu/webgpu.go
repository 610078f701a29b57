// Copyright 2025 Bender Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the WebGPU device for GPU-accelerated inference.
//
// WebGPU is a cross-platform graphics and compute API that works on:
//   - Windows (via wgpu-native/D3D12)
//   - macOS (via wgpu-native/Metal)
//   - Linux (via wgpu-native/Vulkan)
//
// The device is currently built on Windows only. Elsewhere Open returns an error wrapping
// backend.ErrUnavailable.
//
// Example:
//
//	import (
//	    "github.com/xmartlabs/Bender-sub000/backend/cpu"
//	    "github.com/xmartlabs/Bender-sub000/backend/webgpu"
//	)
//
//	func main() {
//	    device, err := webgpu.Open()
//	    if err != nil {
//	        device = cpu.New()
//	    }
//	    model, err := tensorflow.Load("model.pb", device, nil)
//	}
package webgpu

import (
	"github.com/xmartlabs/Bender-sub000/backend"
	internalwebgpu "github.com/xmartlabs/Bender-sub000/internal/backend/webgpu"
)

// Open creates a WebGPU device.
//
// This function initializes the WebGPU adapter and device and returns it ready for
// networks to initialize on.
//
// Returns an error if WebGPU initialization fails (e.g., no compatible GPU).
func Open() (backend.Device, error) {
	return internalwebgpu.Open()
}

// IsAvailable checks if WebGPU is available on the current system.
//
// This function attempts to open a device to verify that a compatible GPU and drivers are
// present. It's useful for graceful fallback to the CPU device when a GPU is not available.
//
// Example:
//
//	var device backend.Device = cpu.New()
//	if webgpu.IsAvailable() {
//	    device, _ = webgpu.Open()
//	}
func IsAvailable() bool {
	d, err := internalwebgpu.Open()
	if err != nil {
		return false
	}
	if r, ok := d.(interface{ Release() }); ok {
		r.Release()
	}
	return true
}
