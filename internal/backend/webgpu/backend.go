//go:build windows

// Package webgpu implements the GPU compute device on WebGPU.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Images live in f32 storage buffers in HWC order. Each kernel is one WGSL compute shader,
// compiled and cached on first use.
package webgpu

import (
	"fmt"
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Device is a WebGPU compute device.
type Device struct {
	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue
	info     wgpu.AdapterInfo

	shaders   map[backend.Kernel]*wgpu.ShaderModule
	pipelines map[backend.Kernel]*wgpu.ComputePipeline
	mu        sync.RWMutex

	staging *BufferPool

	memoryStats struct {
		allocatedBytes uint64
		peakBytes      uint64
		live           []releaser
		mu             sync.Mutex
	}
}

var _ backend.Device = (*Device)(nil)

// Open creates the WebGPU device as a backend.Device.
func Open() (backend.Device, error) {
	d, err := New()
	if err != nil {
		return nil, err
	}
	return d, nil
}

// New creates a WebGPU device on the high performance adapter.
// The returned error wraps backend.ErrUnavailable when no adapter can be used.
func New() (d *Device, err error) {
	// Recover from panic if wgpu_native library is not found.
	defer func() {
		if r := recover(); r != nil {
			d = nil
			err = errors.WithMessagef(backend.ErrUnavailable, "webgpu: native library not available: %v", r)
		}
	}()

	instance := wgpu.CreateInstance(nil)
	adapter, adapterErr := instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		PowerPreference: wgpu.PowerPreferenceHighPerformance,
	})
	if adapterErr != nil {
		instance.Release()
		return nil, errors.WithMessagef(backend.ErrUnavailable, "webgpu: failed to request adapter: %v", adapterErr)
	}
	info := adapter.GetInfo()

	device, deviceErr := adapter.RequestDevice(nil)
	if deviceErr != nil {
		adapter.Release()
		instance.Release()
		return nil, errors.WithMessagef(backend.ErrUnavailable, "webgpu: failed to request device: %v", deviceErr)
	}
	queue := device.GetQueue()
	if queue == nil {
		device.Release()
		adapter.Release()
		instance.Release()
		return nil, errors.WithMessage(backend.ErrUnavailable, "webgpu: failed to get queue")
	}

	d = &Device{
		instance:  instance,
		adapter:   adapter,
		device:    device,
		queue:     queue,
		info:      info,
		shaders:   make(map[backend.Kernel]*wgpu.ShaderModule),
		pipelines: make(map[backend.Kernel]*wgpu.ComputePipeline),
		staging:   NewBufferPool(device),
	}
	klog.V(1).Infof("webgpu: using %s", d.Name())
	return d, nil
}

// Name returns the adapter description.
func (d *Device) Name() string {
	return fmt.Sprintf("WebGPU (%s)", d.info.Device)
}

// Image is an image in a storage buffer.
type Image struct {
	size   backend.Size
	buffer *wgpu.Buffer
	bytes  uint64
}

// Size implements backend.Image.
func (img *Image) Size() backend.Size { return img.size }

// Buffer is a read-only weight storage buffer.
type Buffer struct {
	n      int
	buffer *wgpu.Buffer
	bytes  uint64
}

// Len implements backend.Buffer.
func (b *Buffer) Len() int { return b.n }

// NewImage allocates a zeroed image.
func (d *Device) NewImage(size backend.Size) (backend.Image, error) {
	if size.Width <= 0 || size.Height <= 0 || size.Channels <= 0 {
		return nil, errors.Errorf("webgpu: invalid image size %s", size)
	}
	bytes := uint64(4 * size.Count())
	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: wgpu.BufferUsageStorage | wgpu.BufferUsageCopySrc | wgpu.BufferUsageCopyDst,
		Size:  bytes,
	})
	d.track(buffer, bytes)
	return &Image{size: size, buffer: buffer, bytes: bytes}, nil
}

// NewBuffer uploads data into a new storage buffer.
func (d *Device) NewBuffer(data []float32) (backend.Buffer, error) {
	if len(data) == 0 {
		return nil, errors.New("webgpu: empty weight buffer")
	}
	bytes := uint64(4 * len(data))
	buffer := d.createBuffer(floatBytes(data), wgpu.BufferUsageStorage|wgpu.BufferUsageCopyDst)
	d.track(buffer, bytes)
	return &Buffer{n: len(data), buffer: buffer, bytes: bytes}, nil
}

// WriteBuffer overwrites b in place.
func (d *Device) WriteBuffer(b backend.Buffer, data []float32) error {
	buf, err := d.asBuffer(b)
	if err != nil {
		return err
	}
	if err := backend.CheckLen("webgpu: write buffer", len(data), buf.n); err != nil {
		return err
	}
	d.writeBuffer(buf.buffer, floatBytes(data))
	return nil
}

// Upload writes data into img.
func (d *Device) Upload(img backend.Image, data []float32) error {
	im, err := d.asImage(img)
	if err != nil {
		return err
	}
	if err := backend.CheckLen("webgpu: upload", len(data), im.size.Count()); err != nil {
		return err
	}
	d.writeBuffer(im.buffer, floatBytes(data))
	return nil
}

// Download reads img back, waiting for pending work.
func (d *Device) Download(img backend.Image) ([]float32, error) {
	im, err := d.asImage(img)
	if err != nil {
		return nil, err
	}
	data, err := d.readBuffer(im.buffer, im.bytes)
	if err != nil {
		return nil, err
	}
	return bytesFloats(data), nil
}

// AllocatedBytes reports bytes held by images and buffers.
func (d *Device) AllocatedBytes() uint64 {
	d.memoryStats.mu.Lock()
	defer d.memoryStats.mu.Unlock()
	return d.memoryStats.allocatedBytes
}

// PeakBytes reports the largest AllocatedBytes seen.
func (d *Device) PeakBytes() uint64 {
	d.memoryStats.mu.Lock()
	defer d.memoryStats.mu.Unlock()
	return d.memoryStats.peakBytes
}

func (d *Device) track(buffer *wgpu.Buffer, bytes uint64) {
	d.memoryStats.mu.Lock()
	defer d.memoryStats.mu.Unlock()
	d.memoryStats.allocatedBytes += bytes
	d.memoryStats.peakBytes = max(d.memoryStats.peakBytes, d.memoryStats.allocatedBytes)
	d.memoryStats.live = append(d.memoryStats.live, buffer)
}

// Release frees all GPU resources. The device cannot be used afterwards.
func (d *Device) Release() {
	d.memoryStats.mu.Lock()
	for _, r := range d.memoryStats.live {
		r.Release()
	}
	d.memoryStats.live = nil
	d.memoryStats.allocatedBytes = 0
	d.memoryStats.mu.Unlock()

	d.staging.Clear()

	d.mu.Lock()
	for _, p := range d.pipelines {
		p.Release()
	}
	for _, s := range d.shaders {
		s.Release()
	}
	d.pipelines = make(map[backend.Kernel]*wgpu.ComputePipeline)
	d.shaders = make(map[backend.Kernel]*wgpu.ShaderModule)
	d.mu.Unlock()

	if d.queue != nil {
		d.queue.Release()
	}
	if d.device != nil {
		d.device.Release()
	}
	if d.adapter != nil {
		d.adapter.Release()
	}
	if d.instance != nil {
		d.instance.Release()
	}
}

// NewCommandBuffer starts recording dispatches.
func (d *Device) NewCommandBuffer() backend.CommandBuffer {
	return &commandBuffer{device: d}
}

type commandBuffer struct {
	device     *Device
	dispatches []backend.Dispatch
	committed  bool
}

func (c *commandBuffer) Encode(d backend.Dispatch) {
	c.dispatches = append(c.dispatches, d)
}

// Commit encodes one compute pass per dispatch, submits them together and waits by reading
// back the first element of the last output.
func (c *commandBuffer) Commit() error {
	if c.committed {
		return errors.New("webgpu: command buffer already committed")
	}
	c.committed = true
	if len(c.dispatches) == 0 {
		return nil
	}

	d := c.device
	var resources []releaser
	defer func() {
		for _, r := range resources {
			r.Release()
		}
	}()

	encoder := d.device.CreateCommandEncoder(nil)
	for i, dispatch := range c.dispatches {
		res, err := d.encode(encoder, dispatch)
		resources = append(resources, res...)
		if err != nil {
			return errors.WithMessagef(err, "dispatch %d (%s)", i, dispatch.Kernel)
		}
	}
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	last, err := d.asImage(c.dispatches[len(c.dispatches)-1].Output)
	if err != nil {
		return err
	}
	_, err = d.readBuffer(last.buffer, 4)
	return err
}

func (d *Device) asImage(img backend.Image) (*Image, error) {
	im, ok := img.(*Image)
	if !ok || im == nil {
		return nil, errors.Errorf("webgpu: image %T was not created by this device", img)
	}
	return im, nil
}

func (d *Device) asBuffer(b backend.Buffer) (*Buffer, error) {
	buf, ok := b.(*Buffer)
	if !ok || buf == nil {
		return nil, errors.Errorf("webgpu: buffer %T was not created by this device", b)
	}
	return buf, nil
}
