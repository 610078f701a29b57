// Package cpu implements the reference compute device.
//
// Images are stored as IEEE 754 half floats, the storage format of GPU textures, so results
// carry the same rounding a GPU run would. Kernels compute in float32 and run on Commit, in
// encode order.
package cpu

import (
	"github.com/pkg/errors"
	"github.com/x448/float16"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/parallel"
)

// Device is the CPU compute device.
type Device struct {
	// Parallel controls how convolution kernels split rows across goroutines.
	Parallel  parallel.Config
	allocated uint64
}

var _ backend.Device = (*Device)(nil)

// New creates a CPU device.
func New() *Device {
	return &Device{Parallel: parallel.DefaultConfig()}
}

// Name returns the device name.
func (d *Device) Name() string {
	return "CPU (float16 storage)"
}

// Image is a half precision image.
type Image struct {
	size backend.Size
	data []float16.Float16
}

// Size implements backend.Image.
func (img *Image) Size() backend.Size { return img.size }

// Buffer is a float32 weight buffer.
type Buffer struct {
	data []float32
}

// Len implements backend.Buffer.
func (b *Buffer) Len() int { return len(b.data) }

// NewImage allocates a zeroed image.
func (d *Device) NewImage(size backend.Size) (backend.Image, error) {
	if size.Width <= 0 || size.Height <= 0 || size.Channels <= 0 {
		return nil, errors.Errorf("cpu: invalid image size %s", size)
	}
	d.allocated += uint64(2 * size.Count())
	return &Image{size: size, data: make([]float16.Float16, size.Count())}, nil
}

// NewBuffer allocates a buffer holding a copy of data.
func (d *Device) NewBuffer(data []float32) (backend.Buffer, error) {
	d.allocated += uint64(4 * len(data))
	return &Buffer{data: append([]float32(nil), data...)}, nil
}

// WriteBuffer overwrites b in place.
func (d *Device) WriteBuffer(b backend.Buffer, data []float32) error {
	buf, err := asBuffer(b)
	if err != nil {
		return err
	}
	if err := backend.CheckLen("cpu: write buffer", len(data), len(buf.data)); err != nil {
		return err
	}
	copy(buf.data, data)
	return nil
}

// Upload writes data into img, rounding to half precision.
func (d *Device) Upload(img backend.Image, data []float32) error {
	im, err := asImage(img)
	if err != nil {
		return err
	}
	if err := backend.CheckLen("cpu: upload", len(data), len(im.data)); err != nil {
		return err
	}
	for i, v := range data {
		im.data[i] = float16.Fromfloat32(v)
	}
	return nil
}

// Download reads img as float32 values.
func (d *Device) Download(img backend.Image) ([]float32, error) {
	im, err := asImage(img)
	if err != nil {
		return nil, err
	}
	return im.floats(), nil
}

// AllocatedBytes reports bytes held by images and buffers created so far.
func (d *Device) AllocatedBytes() uint64 { return d.allocated }

// Release drops the allocation count. Memory is reclaimed by the garbage collector.
func (d *Device) Release() { d.allocated = 0 }

// NewCommandBuffer starts recording dispatches.
func (d *Device) NewCommandBuffer() backend.CommandBuffer {
	return &commandBuffer{parallel: d.Parallel}
}

type commandBuffer struct {
	parallel   parallel.Config
	dispatches []backend.Dispatch
	committed  bool
}

func (c *commandBuffer) Encode(d backend.Dispatch) {
	c.dispatches = append(c.dispatches, d)
}

// Commit runs every dispatch in encode order.
func (c *commandBuffer) Commit() error {
	if c.committed {
		return errors.New("cpu: command buffer already committed")
	}
	c.committed = true
	for i, d := range c.dispatches {
		if err := run(d, c.parallel); err != nil {
			return errors.WithMessagef(err, "dispatch %d (%s)", i, d.Kernel)
		}
	}
	return nil
}

func asImage(img backend.Image) (*Image, error) {
	im, ok := img.(*Image)
	if !ok || im == nil {
		return nil, errors.Errorf("cpu: image %T was not created by this device", img)
	}
	return im, nil
}

func asBuffer(b backend.Buffer) (*Buffer, error) {
	buf, ok := b.(*Buffer)
	if !ok || buf == nil {
		return nil, errors.Errorf("cpu: buffer %T was not created by this device", b)
	}
	return buf, nil
}

func (img *Image) floats() []float32 {
	out := make([]float32, len(img.data))
	for i, h := range img.data {
		out[i] = h.Float32()
	}
	return out
}

func (img *Image) store(values []float32) {
	for i, v := range values {
		img.data[i] = float16.Fromfloat32(v)
	}
}

// at returns the value at (x, y, c); coordinates outside the image read as zero.
func at(values []float32, size backend.Size, x, y, c int) (float32, bool) {
	if x < 0 || y < 0 || x >= size.Width || y >= size.Height {
		return 0, false
	}
	return values[(y*size.Width+x)*size.Channels+c], true
}

// kernelArgs is a dispatch with its images resolved to host values.
type kernelArgs struct {
	inputs   [][]float32
	sizes    []backend.Size
	weights  [][]float32
	out      []float32
	outSize  backend.Size
	params   backend.Params
	parallel parallel.Config
}

type kernelFunc func(a *kernelArgs) error

var kernels = map[backend.Kernel]kernelFunc{
	backend.KernelCopy:           copyKernel,
	backend.KernelConvolution:    convolution,
	backend.KernelDepthwise:      depthwiseConvolution,
	backend.KernelFullyConnected: fullyConnected,
	backend.KernelAdd:            add,
	backend.KernelBatchNorm:      batchNorm,
	backend.KernelInstanceNorm:   instanceNorm,
	backend.KernelMaxPool:        maxPool,
	backend.KernelAvgPool:        avgPool,
	backend.KernelNeuron:         neuron,
	backend.KernelSoftmax:        softmax,
	backend.KernelGlobalAverage:  globalAverage,
}

func run(d backend.Dispatch, cfg parallel.Config) error {
	kernel, ok := kernels[d.Kernel]
	if !ok {
		return errors.Errorf("cpu: unknown kernel %q", d.Kernel)
	}
	out, err := asImage(d.Output)
	if err != nil {
		return err
	}
	a := &kernelArgs{
		outSize:  out.size,
		params:   d.Params,
		out:      out.floats(),
		parallel: cfg,
	}
	for _, in := range d.Inputs {
		im, err := asImage(in)
		if err != nil {
			return err
		}
		a.inputs = append(a.inputs, im.floats())
		a.sizes = append(a.sizes, im.size)
	}
	for _, w := range d.Weights {
		buf, err := asBuffer(w)
		if err != nil {
			return err
		}
		a.weights = append(a.weights, buf.data)
	}
	if err := kernel(a); err != nil {
		return err
	}
	out.store(a.out)
	return nil
}

func (a *kernelArgs) expect(inputs, weights int) error {
	if len(a.inputs) != inputs || len(a.weights) != weights {
		return errors.Errorf("cpu: expected %d inputs and %d weights, got %d and %d",
			inputs, weights, len(a.inputs), len(a.weights))
	}
	return nil
}
