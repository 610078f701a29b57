// Package backend defines the compute device contract the layers drive.
//
// A device allocates multi-channel images and weight buffers, records kernel dispatches into
// command buffers and runs them. Images use height x width x channels layout: the value of
// channel c at (x, y) is element (y*Width + x)*Channels + c.
package backend

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrUnavailable is returned when a device cannot be created on this system.
var ErrUnavailable = errors.New("backend: device not available")

// Size is the shape of an image.
type Size struct {
	Width    int
	Height   int
	Channels int
}

// Count returns the number of elements.
func (s Size) Count() int {
	return s.Width * s.Height * s.Channels
}

// String formats the size as HxWxC.
func (s Size) String() string {
	return fmt.Sprintf("%dx%dx%d", s.Height, s.Width, s.Channels)
}

// Image is a device-resident multi-channel image.
type Image interface {
	Size() Size
}

// Buffer is a device-resident float32 weight buffer.
type Buffer interface {
	Len() int
}

// Device is a compute device.
//
// Devices are not safe for concurrent use.
type Device interface {
	// Name identifies the device.
	Name() string
	// NewImage allocates an image. Its contents are undefined until written.
	NewImage(size Size) (Image, error)
	// NewBuffer allocates a buffer holding data.
	NewBuffer(data []float32) (Buffer, error)
	// WriteBuffer replaces the contents of b in place. len(data) must equal b.Len().
	WriteBuffer(b Buffer, data []float32) error
	// Upload writes host data into img. len(data) must equal img.Size().Count().
	Upload(img Image, data []float32) error
	// Download reads img back to the host.
	Download(img Image) ([]float32, error)
	// NewCommandBuffer starts recording dispatches.
	NewCommandBuffer() CommandBuffer
	// AllocatedBytes reports the memory held by live images and buffers.
	AllocatedBytes() uint64
	// Release frees every resource owned by the device.
	Release()
}

// CommandBuffer records dispatches and runs them in encode order.
type CommandBuffer interface {
	// Encode appends a dispatch.
	Encode(d Dispatch)
	// Commit submits the recorded work and waits for it to complete.
	// A command buffer cannot be reused after Commit.
	Commit() error
}

// Dispatch is one bound kernel invocation.
type Dispatch struct {
	Kernel  Kernel
	Inputs  []Image
	Weights []Buffer
	Output  Image
	Params  Params
}

// Params carries kernel geometry and options.
type Params struct {
	KernelWidth  int
	KernelHeight int
	StrideX      int
	StrideY      int
	PadLeft      int
	PadTop       int
	Activation   Activation
	Epsilon      float32

	// Destination offsets of KernelCopy.
	OffsetX int
	OffsetY int
	OffsetC int
}

// Kernel names a compute kernel. The weights each kernel expects are listed with it.
type Kernel string

const (
	// KernelCopy copies Inputs[0] into Output at (OffsetX, OffsetY, OffsetC).
	KernelCopy Kernel = "copy"
	// KernelConvolution: weights OHWI filter, bias[out].
	KernelConvolution Kernel = "convolution"
	// KernelDepthwise: weights IOWH filter (O is the channel multiplier), bias[in*multiplier].
	KernelDepthwise Kernel = "depthwise_convolution"
	// KernelFullyConnected: weights (out, in) matrix over the flattened input, bias[out].
	KernelFullyConnected Kernel = "fully_connected"
	// KernelAdd adds Inputs[0] and Inputs[1].
	KernelAdd Kernel = "add"
	// KernelBatchNorm: weights mean, variance, scale, offset.
	KernelBatchNorm Kernel = "batch_norm"
	// KernelInstanceNorm: weights scale, shift. Statistics are per channel over the image.
	KernelInstanceNorm Kernel = "instance_norm"
	// KernelMaxPool takes the maximum over each window.
	KernelMaxPool Kernel = "max_pool"
	// KernelAvgPool averages each window, ignoring padding.
	KernelAvgPool Kernel = "avg_pool"
	// KernelNeuron applies Params.Activation.
	KernelNeuron Kernel = "neuron"
	// KernelSoftmax normalizes over the channels of each pixel.
	KernelSoftmax Kernel = "softmax"
	// KernelGlobalAverage averages each channel into a 1x1 image.
	KernelGlobalAverage Kernel = "global_average"
)

// Activation is an elementwise non-linearity.
type Activation int

// Activations.
const (
	ActivationNone Activation = iota
	ActivationRelu
	ActivationRelu6
	ActivationTanh
	ActivationSigmoid
)

var activationNames = map[string]Activation{
	"":        ActivationNone,
	"None":    ActivationNone,
	"Relu":    ActivationRelu,
	"Relu6":   ActivationRelu6,
	"Tanh":    ActivationTanh,
	"Sigmoid": ActivationSigmoid,
}

// ParseActivation maps a TensorFlow op name to an Activation.
func ParseActivation(name string) (Activation, error) {
	if a, ok := activationNames[name]; ok {
		return a, nil
	}
	return ActivationNone, errors.Errorf("backend: unknown activation %q", name)
}

func (a Activation) String() string {
	switch a {
	case ActivationRelu:
		return "Relu"
	case ActivationRelu6:
		return "Relu6"
	case ActivationTanh:
		return "Tanh"
	case ActivationSigmoid:
		return "Sigmoid"
	}
	return "None"
}

// CheckLen returns an error unless got == want.
func CheckLen(what string, got, want int) error {
	if got != want {
		return errors.Errorf("backend: %s: %d values, expected %d", what, got, want)
	}
	return nil
}
