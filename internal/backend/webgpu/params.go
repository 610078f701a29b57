package webgpu

import (
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// paramsSize is the byte size of the Params uniform, a multiple of 16.
const paramsSize = 80

// encodeParams lays out the Params uniform for one dispatch. in is the size of the first
// input, zero when the kernel has none.
func encodeParams(kernel backend.Kernel, in, out backend.Size, p backend.Params) []byte {
	fields := []uint32{
		uint32(in.Width), uint32(in.Height), uint32(in.Channels), uint32(out.Width),
		uint32(out.Height), uint32(out.Channels), uint32(p.KernelWidth), uint32(p.KernelHeight),
		uint32(p.StrideX), uint32(p.StrideY), uint32(int32(p.PadLeft)), uint32(int32(p.PadTop)),
		uint32(p.Activation), uint32(p.OffsetX), uint32(p.OffsetY), uint32(p.OffsetC),
		math.Float32bits(p.Epsilon), uint32(threadCount(kernel, in, out)), 0, 0,
	}
	data := make([]byte, paramsSize)
	for i, f := range fields {
		binary.LittleEndian.PutUint32(data[4*i:], f)
	}
	return data
}

// threadCount is the number of shader invocations a dispatch needs.
func threadCount(kernel backend.Kernel, in, out backend.Size) int {
	switch kernel {
	case backend.KernelCopy:
		return in.Count()
	case backend.KernelInstanceNorm, backend.KernelGlobalAverage:
		return in.Channels
	case backend.KernelSoftmax:
		return out.Width * out.Height
	}
	return out.Count()
}

func workgroups(threads int) uint32 {
	return uint32((threads + workgroupSize - 1) / workgroupSize)
}

// floatBytes views data as little endian bytes without copying.
func floatBytes(data []float32) []byte {
	if len(data) == 0 {
		return nil
	}
	//nolint:gosec // unsafe.Slice for zero-copy conversion
	return unsafe.Slice((*byte)(unsafe.Pointer(&data[0])), 4*len(data))
}

func bytesFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}
