//go:build windows

package webgpu

import (
	"unsafe"

	"github.com/go-webgpu/webgpu/wgpu"
	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// pipeline returns the cached compute pipeline for kernel, compiling it on first use.
func (d *Device) pipeline(kernel backend.Kernel) (*wgpu.ComputePipeline, error) {
	d.mu.RLock()
	if p, exists := d.pipelines[kernel]; exists {
		d.mu.RUnlock()
		return p, nil
	}
	d.mu.RUnlock()

	code, ok := shaderSources[kernel]
	if !ok {
		return nil, errors.Errorf("webgpu: unknown kernel %q", kernel)
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	shader, exists := d.shaders[kernel]
	if !exists {
		shader = d.device.CreateShaderModuleWGSL(code)
		d.shaders[kernel] = shader
	}
	// Auto layout (nil) derives the bind group layout from the shader.
	p := d.device.CreateComputePipelineSimple(nil, shader, "main")
	d.pipelines[kernel] = p
	return p, nil
}

// createBuffer creates a GPU buffer holding data.
func (d *Device) createBuffer(data []byte, usage wgpu.BufferUsage) *wgpu.Buffer {
	size := uint64(len(data))
	buffer := d.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage:            usage,
		Size:             size,
		MappedAtCreation: wgpu.True,
	})
	mappedPtr := buffer.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	copy(mappedSlice, data)
	buffer.Unmap()
	return buffer
}

// writeBuffer replaces the contents of dst through a temporary upload buffer.
func (d *Device) writeBuffer(dst *wgpu.Buffer, data []byte) {
	size := uint64(len(data))
	staging := d.createBuffer(data, wgpu.BufferUsageCopySrc)
	defer staging.Release()

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(staging, 0, dst, 0, size)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)
}

// readBuffer copies size bytes of src into a pooled staging buffer and maps it. The map
// waits for all work submitted before it.
func (d *Device) readBuffer(src *wgpu.Buffer, size uint64) ([]byte, error) {
	staging, capacity := d.staging.Acquire(size)
	defer d.staging.Release(staging, capacity)

	encoder := d.device.CreateCommandEncoder(nil)
	encoder.CopyBufferToBuffer(src, 0, staging, 0, size)
	cmdBuffer := encoder.Finish(nil)
	d.queue.Submit(cmdBuffer)

	if err := staging.MapAsync(d.device, wgpu.MapModeRead, 0, size); err != nil {
		return nil, errors.Wrap(err, "webgpu: failed to map staging buffer")
	}
	mappedPtr := staging.GetMappedRange(0, size)
	//nolint:gosec // unsafe.Slice for zero-copy conversion from unsafe.Pointer
	mappedSlice := unsafe.Slice((*byte)(mappedPtr), size)
	result := make([]byte, size)
	copy(result, mappedSlice)
	staging.Unmap()
	return result, nil
}

// encode records one dispatch as its own compute pass. Returned resources live until the
// command buffer completes.
func (d *Device) encode(encoder *wgpu.CommandEncoder, dispatch backend.Dispatch) ([]releaser, error) {
	out, err := d.asImage(dispatch.Output)
	if err != nil {
		return nil, err
	}
	pipeline, err := d.pipeline(dispatch.Kernel)
	if err != nil {
		return nil, err
	}

	var in backend.Size
	entries := []wgpu.BindGroupEntry{{}, wgpu.BufferBindingEntry(1, out.buffer, 0, out.bytes)}
	binding := uint32(2)
	for i, img := range dispatch.Inputs {
		im, err := d.asImage(img)
		if err != nil {
			return nil, err
		}
		if i == 0 {
			in = im.size
		}
		entries = append(entries, wgpu.BufferBindingEntry(binding, im.buffer, 0, im.bytes))
		binding++
	}
	for _, w := range dispatch.Weights {
		buf, err := d.asBuffer(w)
		if err != nil {
			return nil, err
		}
		entries = append(entries, wgpu.BufferBindingEntry(binding, buf.buffer, 0, buf.bytes))
		binding++
	}

	uniform := d.createBuffer(encodeParams(dispatch.Kernel, in, out.size, dispatch.Params),
		wgpu.BufferUsageUniform|wgpu.BufferUsageCopyDst)
	entries[0] = wgpu.BufferBindingEntry(0, uniform, 0, paramsSize)

	bindGroupLayout := pipeline.GetBindGroupLayout(0)
	bindGroup := d.device.CreateBindGroupSimple(bindGroupLayout, entries)

	computePass := encoder.BeginComputePass(nil)
	computePass.SetPipeline(pipeline)
	computePass.SetBindGroup(0, bindGroup, nil)
	computePass.DispatchWorkgroups(workgroups(threadCount(dispatch.Kernel, in, out.size)), 1, 1)
	computePass.End()

	return []releaser{bindGroup, uniform}, nil
}

type releaser interface {
	Release()
}
