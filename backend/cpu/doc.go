// Copyright 2025 Bender Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides a pure Go reference device for running networks.
//
// # Overview
//
// This package implements a CPU device with:
//   - Pure Go implementation (no CGO)
//   - Float16 image storage, the same as GPU textures
//   - Every kernel layers encode: convolution, depthwise, dense, pooling, normalization
//
// # Basic Usage
//
//	import (
//	    "github.com/xmartlabs/Bender-sub000/backend/cpu"
//	    "github.com/xmartlabs/Bender-sub000/tensorflow"
//	)
//
//	func main() {
//	    // Create CPU device
//	    device := cpu.New()
//
//	    // Load a model on it
//	    model, err := tensorflow.Load("model.pb", device, nil)
//	}
//
// # Performance
//
// Kernels run in encode order when a command buffer is committed. Convolutions split output
// rows across goroutines (see Device.Parallel). The device is meant for tests, tooling and
// machines without a GPU; use the webgpu package for speed.
//
// # Thread Safety
//
// A device is not safe for concurrent use. Commit command buffers from one goroutine.
package cpu
