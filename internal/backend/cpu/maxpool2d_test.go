package cpu

import (
	"testing"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

var pool4x4 = []float32{
	1, 2, 3, 4,
	5, 6, 7, 8,
	9, 10, 11, 12,
	13, 14, 15, 16,
}

func TestMaxPool(t *testing.T) {
	in := backend.Size{Width: 4, Height: 4, Channels: 1}
	out := backend.Size{Width: 2, Height: 2, Channels: 1}
	got := dispatch(t, backend.KernelMaxPool, out,
		backend.Params{KernelWidth: 2, KernelHeight: 2, StrideX: 2, StrideY: 2},
		[]backend.Size{in}, [][]float32{pool4x4})
	assertFloats(t, []float32{6, 8, 14, 16}, got)
}

func TestMaxPoolNegativeValuesIgnorePadding(t *testing.T) {
	in := backend.Size{Width: 2, Height: 1, Channels: 1}
	out := backend.Size{Width: 2, Height: 1, Channels: 1}
	got := dispatch(t, backend.KernelMaxPool, out,
		backend.Params{KernelWidth: 3, KernelHeight: 1, StrideX: 1, StrideY: 1, PadLeft: 1},
		[]backend.Size{in}, [][]float32{{-3, -4}})
	assertFloats(t, []float32{-3, -3}, got)
}

func TestAvgPool(t *testing.T) {
	in := backend.Size{Width: 4, Height: 4, Channels: 1}
	out := backend.Size{Width: 2, Height: 2, Channels: 1}
	got := dispatch(t, backend.KernelAvgPool, out,
		backend.Params{KernelWidth: 2, KernelHeight: 2, StrideX: 2, StrideY: 2},
		[]backend.Size{in}, [][]float32{pool4x4})
	assertFloats(t, []float32{3.5, 5.5, 11.5, 13.5}, got)
}

func TestAvgPoolExcludesPadding(t *testing.T) {
	// SAME 3x3 window at the corner of a 2x2 image covers the whole image.
	in := backend.Size{Width: 2, Height: 2, Channels: 1}
	got := dispatch(t, backend.KernelAvgPool, in,
		backend.Params{KernelWidth: 3, KernelHeight: 3, StrideX: 1, StrideY: 1, PadLeft: 1, PadTop: 1},
		[]backend.Size{in}, [][]float32{{1, 2, 3, 4}})
	assertFloats(t, []float32{2.5, 2.5, 2.5, 2.5}, got)
}
