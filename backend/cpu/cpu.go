// Copyright 2025 Bender Authors. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

package cpu

import (
	"github.com/xmartlabs/Bender-sub000/backend"
	internalcpu "github.com/xmartlabs/Bender-sub000/internal/backend/cpu"
)

// Device represents the CPU device implementation.
//
// The CPU device runs every kernel in pure Go and stores images as half floats, so its
// output matches a GPU run up to float16 rounding.
type Device = internalcpu.Device

// Compile-time check that Device implements backend.Device.
var _ backend.Device = (*Device)(nil)

// New creates a new CPU device.
//
// Example:
//
//	import (
//	    "github.com/xmartlabs/Bender-sub000/backend/cpu"
//	    "github.com/xmartlabs/Bender-sub000/tensorflow"
//	)
//
//	func main() {
//	    model, err := tensorflow.Load("model.pb", cpu.New(), nil)
//	}
func New() *Device {
	return internalcpu.New()
}
