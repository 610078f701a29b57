package cpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// dispatch runs one kernel on a fresh device and returns the output values.
func dispatch(t *testing.T, kernel backend.Kernel, out backend.Size, params backend.Params,
	inputs []backend.Size, data [][]float32, weights ...[]float32) []float32 {
	t.Helper()
	d := New()
	var ins []backend.Image
	for i, size := range inputs {
		img, err := d.NewImage(size)
		require.NoError(t, err)
		require.NoError(t, d.Upload(img, data[i]))
		ins = append(ins, img)
	}
	var bufs []backend.Buffer
	for _, w := range weights {
		buf, err := d.NewBuffer(w)
		require.NoError(t, err)
		bufs = append(bufs, buf)
	}
	output, err := d.NewImage(out)
	require.NoError(t, err)
	cmd := d.NewCommandBuffer()
	cmd.Encode(backend.Dispatch{Kernel: kernel, Inputs: ins, Weights: bufs, Output: output, Params: params})
	require.NoError(t, cmd.Commit())
	values, err := d.Download(output)
	require.NoError(t, err)
	return values
}

func assertFloats(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 0.01, "element %d", i)
	}
}

func TestUploadRoundsToHalf(t *testing.T) {
	d := New()
	img, err := d.NewImage(backend.Size{Width: 2, Height: 1, Channels: 1})
	require.NoError(t, err)
	require.NoError(t, d.Upload(img, []float32{1.0001, 65504}))
	got, err := d.Download(img)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 65504}, got)
	assert.Equal(t, uint64(4), d.AllocatedBytes())

	assert.Error(t, d.Upload(img, []float32{1}))
	_, err = d.NewImage(backend.Size{})
	assert.Error(t, err)
}

func TestWriteBuffer(t *testing.T) {
	d := New()
	buf, err := d.NewBuffer([]float32{1, 2})
	require.NoError(t, err)
	require.NoError(t, d.WriteBuffer(buf, []float32{3, 4}))
	assert.Equal(t, []float32{3, 4}, buf.(*Buffer).data)
	assert.Error(t, d.WriteBuffer(buf, []float32{1}))
}

func TestCommandBufferCommitsOnce(t *testing.T) {
	d := New()
	cmd := d.NewCommandBuffer()
	require.NoError(t, cmd.Commit())
	assert.Error(t, cmd.Commit())
}

func TestUnknownKernel(t *testing.T) {
	d := New()
	out, err := d.NewImage(backend.Size{Width: 1, Height: 1, Channels: 1})
	require.NoError(t, err)
	cmd := d.NewCommandBuffer()
	cmd.Encode(backend.Dispatch{Kernel: "bogus", Output: out})
	assert.ErrorContains(t, cmd.Commit(), "bogus")
}

func TestCopyAtOffsets(t *testing.T) {
	// Two 1x1x2 images assembled along the channel axis.
	d := New()
	size := backend.Size{Width: 1, Height: 1, Channels: 2}
	a, _ := d.NewImage(size)
	b, _ := d.NewImage(size)
	require.NoError(t, d.Upload(a, []float32{1, 2}))
	require.NoError(t, d.Upload(b, []float32{3, 4}))
	out, _ := d.NewImage(backend.Size{Width: 1, Height: 1, Channels: 4})
	cmd := d.NewCommandBuffer()
	cmd.Encode(backend.Dispatch{Kernel: backend.KernelCopy, Inputs: []backend.Image{a}, Output: out})
	cmd.Encode(backend.Dispatch{Kernel: backend.KernelCopy, Inputs: []backend.Image{b}, Output: out,
		Params: backend.Params{OffsetC: 2}})
	require.NoError(t, cmd.Commit())
	got, err := d.Download(out)
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2, 3, 4}, got)

	cmd = d.NewCommandBuffer()
	cmd.Encode(backend.Dispatch{Kernel: backend.KernelCopy, Inputs: []backend.Image{b}, Output: out,
		Params: backend.Params{OffsetC: 3}})
	assert.ErrorContains(t, cmd.Commit(), "overflows")
}

func TestActivations(t *testing.T) {
	in := []float32{-2, 0.5, 8}
	size := backend.Size{Width: 3, Height: 1, Channels: 1}
	for _, tc := range []struct {
		act  backend.Activation
		want []float32
	}{
		{backend.ActivationNone, []float32{-2, 0.5, 8}},
		{backend.ActivationRelu, []float32{0, 0.5, 8}},
		{backend.ActivationRelu6, []float32{0, 0.5, 6}},
		{backend.ActivationTanh, []float32{-0.964, 0.462, 1}},
		{backend.ActivationSigmoid, []float32{0.119, 0.622, 1}},
	} {
		t.Run(tc.act.String(), func(t *testing.T) {
			got := dispatch(t, backend.KernelNeuron, size, backend.Params{Activation: tc.act},
				[]backend.Size{size}, [][]float32{in})
			assertFloats(t, tc.want, got)
		})
	}
}

func TestSoftmax(t *testing.T) {
	size := backend.Size{Width: 2, Height: 1, Channels: 2}
	got := dispatch(t, backend.KernelSoftmax, size, backend.Params{},
		[]backend.Size{size}, [][]float32{{0, 0, 1, 3}})
	assertFloats(t, []float32{0.5, 0.5, 0.119, 0.881}, got)
}

func TestAddAndBatchNorm(t *testing.T) {
	size := backend.Size{Width: 2, Height: 1, Channels: 1}
	got := dispatch(t, backend.KernelAdd, size, backend.Params{Activation: backend.ActivationRelu},
		[]backend.Size{size, size}, [][]float32{{1, -5}, {2, 3}})
	assertFloats(t, []float32{3, 0}, got)

	size = backend.Size{Width: 1, Height: 1, Channels: 2}
	got = dispatch(t, backend.KernelBatchNorm, size, backend.Params{Epsilon: 0},
		[]backend.Size{size}, [][]float32{{3, 10}},
		[]float32{1, 10}, []float32{4, 1}, []float32{2, 1}, []float32{0.5, -1})
	// (3-1)*2/2+0.5 and (10-10)*1/1-1
	assertFloats(t, []float32{2.5, -1}, got)
}
