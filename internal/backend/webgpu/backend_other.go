//go:build !windows

// Package webgpu implements the GPU compute device on WebGPU. It is built on Windows only;
// elsewhere Open reports backend.ErrUnavailable.
package webgpu

import (
	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Open reports that WebGPU is not available on this platform.
func Open() (backend.Device, error) {
	return nil, errors.WithMessage(backend.ErrUnavailable, "webgpu: not supported on this platform")
}
