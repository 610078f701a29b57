//go:build windows

package webgpu

import (
	"sync"

	"github.com/go-webgpu/webgpu/wgpu"
)

// stagingClass groups staging buffers by size.
type stagingClass int

const (
	smallStaging stagingClass = iota
	mediumStaging
	largeStaging
)

const (
	smallThreshold  = 4 * 1024    // 4KB
	mediumThreshold = 1024 * 1024 // 1MB
	maxPoolSize     = 16          // Max idle buffers per class
)

const stagingUsage = wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst

type pooledBuffer struct {
	buffer *wgpu.Buffer
	size   uint64
}

// BufferPool recycles the map-read staging buffers used by downloads and command fences.
// Network outputs are read back every run with the same sizes, so buffers are reused across
// runs instead of reallocated.
type BufferPool struct {
	device *wgpu.Device

	classes [3][]*pooledBuffer
	mu      sync.Mutex

	allocated uint64
	hits      uint64
	misses    uint64
}

// NewBufferPool creates a staging pool for device.
func NewBufferPool(device *wgpu.Device) *BufferPool {
	return &BufferPool{device: device}
}

// Acquire returns an unmapped staging buffer of at least size bytes.
func (p *BufferPool) Acquire(size uint64) (*wgpu.Buffer, uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	for i, pb := range p.classes[class] {
		if pb.size >= size {
			p.classes[class] = append(p.classes[class][:i], p.classes[class][i+1:]...)
			p.hits++
			return pb.buffer, pb.size
		}
	}

	p.misses++
	p.allocated++
	buffer := p.device.CreateBuffer(&wgpu.BufferDescriptor{
		Usage: stagingUsage,
		Size:  size,
	})
	return buffer, size
}

// Release returns an unmapped buffer to the pool, or frees it when its class is full.
func (p *BufferPool) Release(buffer *wgpu.Buffer, size uint64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	class := classify(size)
	if len(p.classes[class]) >= maxPoolSize {
		buffer.Release()
		return
	}
	p.classes[class] = append(p.classes[class], &pooledBuffer{buffer: buffer, size: size})
}

// Clear frees every pooled buffer.
func (p *BufferPool) Clear() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for class := range p.classes {
		for _, pb := range p.classes[class] {
			pb.buffer.Release()
		}
		p.classes[class] = nil
	}
}

// Stats reports buffers created, pool hits and misses, and idle buffers.
func (p *BufferPool) Stats() (allocated, hits, misses uint64, pooled int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.classes {
		pooled += len(c)
	}
	return p.allocated, p.hits, p.misses, pooled
}

func classify(size uint64) stagingClass {
	switch {
	case size < smallThreshold:
		return smallStaging
	case size < mediumThreshold:
		return mediumStaging
	}
	return largeStaging
}
