package layers

import (
	"testing"

	"github.com/gomlx/exceptions"
	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/backend/cpu"
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

func sequence(n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = float32(i)
	}
	return out
}

func newContext(loader params.Loader) *Context {
	return &Context{Device: cpu.New(), Loader: loader}
}

// runLayers initializes and executes every layer reachable from start and returns the output
// of last.
func runLayers(t *testing.T, ctx *Context, start *Start, input []float32, last Layer) []float32 {
	t.Helper()
	order := graph.DependencyList[Layer](start)
	for _, l := range order {
		require.NoError(t, l.Initialize(ctx))
	}
	img := must.M1(ctx.Device.NewImage(start.OutputSize()))
	require.NoError(t, ctx.Device.Upload(img, input))
	start.SetInput(img)
	return execute(t, ctx, order, last)
}

func execute(t *testing.T, ctx *Context, order []Layer, last Layer) []float32 {
	t.Helper()
	cmd := ctx.Device.NewCommandBuffer()
	for _, l := range order {
		l.Execute(cmd)
	}
	require.NoError(t, cmd.Commit())
	return must.M1(ctx.Device.Download(last.Output()))
}

func assertFloats(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 0.01, "element %d", i)
	}
}

func TestTransposeRoundTrip(t *testing.T) {
	const H, W, I, O = 3, 3, 4, 8
	hwio := sequence(H * W * I * O)
	assert.Equal(t, hwio, OHWIToHWIO(HWIOToOHWI(hwio, H, W, I, O), H, W, I, O))
	assert.Equal(t, hwio, IOWHToHWIO(HWIOToIOWH(hwio, H, W, I, O), H, W, I, O))
	m := sequence(I * O)
	assert.Equal(t, m, OutInToInOut(InOutToOutIn(m, I, O), I, O))

	// Element (h=1, w=2, i=3, o=5) of HWIO lands at ((o*H+h)*W+w)*I+i in OHWI.
	src := ((1*W+2)*I+3)*O + 5
	assert.Equal(t, hwio[src], HWIOToOHWI(hwio, H, W, I, O)[((5*H+1)*W+2)*I+3])
}

func TestConcatWidth(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 5, Height: 3, Channels: 8})
	// Max pools of width 4 and 3 over the input give (H3,W2,C8) and (H3,W3,C8).
	left := NewPooling("left", PoolMax, Window{Width: 4, Height: 1, StrideX: 1, StrideY: 1})
	copied := NewIdentity("copy")
	right := NewPooling("right", PoolMax, Window{Width: 3, Height: 1, StrideX: 1, StrideY: 1})
	concat := NewConcat("concat", AxisWidth)
	graph.Connect[Layer](start, left)
	graph.Connect[Layer](start, copied)
	graph.Connect[Layer](copied, right)
	graph.Connect[Layer](left, concat)
	graph.Connect[Layer](right, concat)

	input := make([]float32, 3*5*8)
	for i := range input {
		input[i] = float32((i * 7) % 11)
	}
	got := runLayers(t, ctx, start, input, concat)
	require.Equal(t, backend.Size{Width: 5, Height: 3, Channels: 8}, concat.OutputSize())

	windowMax := func(x, y, c, k int) float32 {
		var m float32
		for i := range k {
			m = max(m, input[(y*5+x+i)*8+c])
		}
		return m
	}
	for y := range 3 {
		for x := range 5 {
			for c := range 8 {
				want := windowMax(x, y, c, 4)
				if x >= 2 {
					want = windowMax(x-2, y, c, 3)
				}
				assert.InDelta(t, want, got[(y*5+x)*8+c], 0.01, "(%d,%d,%d)", x, y, c)
			}
		}
	}
}

func TestConcatShapeMismatch(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 4, Height: 4, Channels: 2})
	pool := NewPooling("pool", PoolMax, Window{Width: 2, Height: 2, StrideX: 2, StrideY: 2})
	concat := NewConcat("concat", AxisChannels)
	graph.Connect[Layer](start, pool)
	graph.Connect[Layer](start, concat)
	graph.Connect[Layer](pool, concat)

	require.NoError(t, start.Initialize(ctx))
	require.NoError(t, pool.Initialize(ctx))
	err := exceptions.TryCatch[error](func() { _ = concat.Initialize(ctx) })
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
	assert.Equal(t, "concat", shapeErr.Layer)
	assert.Contains(t, shapeErr.Reason, "along channels")
}

func TestExecuteBeforeInitialize(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 1})
	neuron := NewNeuron("relu", backend.ActivationRelu)
	graph.Connect[Layer](start, neuron)
	err := exceptions.TryCatch[error](func() { neuron.Execute(ctx.Device.NewCommandBuffer()) })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "before initialization")
}

func TestConvolutionLoadsWeights(t *testing.T) {
	// 1x1 convolution from 2 to 3 channels: out[o] = sum_i in[i]*w[i][o] + b[o].
	loader := params.NewMemory()
	loader.Set("", "conv", params.Weights, []float32{1, 2, 3, 4, 5, 6}) // HWIO with H=W=1
	loader.Set("", "conv", params.Bias, []float32{0.5, 0, -100})
	ctx := newContext(loader)

	start := NewStart(backend.Size{Width: 2, Height: 1, Channels: 2})
	conv := NewConvolution("conv", ConvolutionConfig{
		Window:      Window{Width: 1, Height: 1, StrideX: 1, StrideY: 1, Padding: PaddingSame},
		OutChannels: 3,
		Activation:  backend.ActivationRelu,
		Weights:     NewParameter(params.Weights, nil),
		Bias:        NewParameter(params.Bias, nil),
	})
	graph.Connect[Layer](start, conv)
	got := runLayers(t, ctx, start, []float32{1, 1, 2, 0}, conv)
	assertFloats(t, []float32{
		1 + 4 + 0.5, 2 + 5, 0,
		2 + 0.5, 4, 0,
	}, got)
	assert.Equal(t, 6, conv.Weights.Count())
	assert.False(t, conv.Weights.Fixed())
}

func TestConvolutionWithoutBias(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 3, Height: 3, Channels: 1})
	conv := NewConvolution("conv", ConvolutionConfig{
		Window:      Window{Width: 3, Height: 3, StrideX: 1, StrideY: 1, Padding: PaddingValid},
		OutChannels: 1,
		Weights:     NewParameter(params.Weights, []float32{0, 0, 0, 0, 1, 0, 0, 0, 0}),
	})
	graph.Connect[Layer](start, conv)
	got := runLayers(t, ctx, start, sequence(9), conv)
	assert.Equal(t, backend.Size{Width: 1, Height: 1, Channels: 1}, conv.OutputSize())
	assertFloats(t, []float32{4}, got)
	assert.True(t, conv.Bias.Fixed())
}

func TestDepthwiseConvolution(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 2})
	// HWIO with I=2, multiplier 2: in0 -> (1, 2), in1 -> (3, 4).
	conv := NewConvolution("dw", ConvolutionConfig{
		Window:      Window{Width: 1, Height: 1, StrideX: 1, StrideY: 1, Padding: PaddingSame},
		OutChannels: 2,
		Depthwise:   true,
		Weights:     NewParameter(params.Weights, []float32{1, 2, 3, 4}),
	})
	graph.Connect[Layer](start, conv)
	got := runLayers(t, ctx, start, []float32{10, 100}, conv)
	assert.Equal(t, 4, conv.OutputSize().Channels)
	assertFloats(t, []float32{10, 20, 300, 400}, got)
}

func TestFullyConnected(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 3})
	// [in][out] with in=3, out=2.
	fc := NewFullyConnected("fc", 2, backend.ActivationNone,
		NewParameter(params.Weights, []float32{1, 0, 0, 1, 1, -1}),
		NewParameter(params.Bias, []float32{0.5, 0}))
	graph.Connect[Layer](start, fc)
	got := runLayers(t, ctx, start, []float32{1, 2, 3}, fc)
	assert.Equal(t, backend.Size{Width: 1, Height: 1, Channels: 2}, fc.OutputSize())
	assertFloats(t, []float32{4.5, -1}, got)
}

func TestBatchNorm(t *testing.T) {
	input := []float32{1, 2, 3, 4}
	mean := []float32{1, 2}
	variance := []float32{4, 16}

	t.Run("without scale and offset", func(t *testing.T) {
		ctx := newContext(nil)
		start := NewStart(backend.Size{Width: 2, Height: 1, Channels: 2})
		bn := NewBatchNorm("bn", 0, NewParameter(params.Mean, mean), NewParameter(params.Variance, variance), nil, nil)
		graph.Connect[Layer](start, bn)
		got := runLayers(t, ctx, start, input, bn)
		assertFloats(t, []float32{0, 0, 1, 0.5}, got)
	})

	t.Run("with scale and offset", func(t *testing.T) {
		ctx := newContext(nil)
		start := NewStart(backend.Size{Width: 2, Height: 1, Channels: 2})
		bn := NewBatchNorm("bn", 0, NewParameter(params.Mean, mean), NewParameter(params.Variance, variance),
			NewParameter(params.Scale, []float32{2, 4}), NewParameter(params.Offset, []float32{1, -1}))
		graph.Connect[Layer](start, bn)
		got := runLayers(t, ctx, start, input, bn)
		assertFloats(t, []float32{1, -1, 3, 1}, got)
	})
}

func TestInstanceNorm(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 2, Height: 1, Channels: 1})
	in := NewInstanceNorm("in", 0, NewParameter(params.Scale, []float32{2}), NewParameter(params.Shift, []float32{1}))
	graph.Connect[Layer](start, in)
	got := runLayers(t, ctx, start, []float32{1, 3}, in)
	assertFloats(t, []float32{-1, 3}, got)
}

func TestAddAndSoftmax(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 2})
	copied := NewIdentity("copy")
	add := NewAdd("add")
	softmax := NewSoftmax("softmax")
	graph.Connect[Layer](start, copied)
	graph.Connect[Layer](start, add)
	graph.Connect[Layer](copied, add)
	graph.Connect[Layer](add, softmax)
	got := runLayers(t, ctx, start, []float32{0, 0.5}, softmax)
	// softmax(0, 1)
	assertFloats(t, []float32{0.269, 0.731}, got)
}

func TestAddShapeMismatch(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 2, Height: 2, Channels: 1})
	avg := NewGlobalAverage("avg")
	add := NewAdd("add")
	graph.Connect[Layer](start, avg)
	graph.Connect[Layer](start, add)
	graph.Connect[Layer](avg, add)
	require.NoError(t, start.Initialize(ctx))
	require.NoError(t, avg.Initialize(ctx))
	err := exceptions.TryCatch[error](func() { _ = add.Initialize(ctx) })
	var shapeErr *ShapeError
	require.ErrorAs(t, err, &shapeErr)
}

func TestDummyForwardsInput(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 2, Height: 1, Channels: 1})
	dummy := NewDummy("input")
	relu := NewNeuron("relu", backend.ActivationRelu)
	graph.Connect[Layer](start, dummy)
	graph.Connect[Layer](dummy, relu)
	got := runLayers(t, ctx, start, []float32{-1, 2}, relu)
	assertFloats(t, []float32{0, 2}, got)
	assert.Same(t, start.Output(), dummy.Output())
	_, ok := Layer(dummy).(Passthrough)
	assert.True(t, ok)
}

func TestPoolingGeometry(t *testing.T) {
	ctx := newContext(nil)
	start := NewStart(backend.Size{Width: 5, Height: 5, Channels: 1})
	pool := NewPooling("pool", PoolAverage, Window{Width: 3, Height: 3, StrideX: 2, StrideY: 2, Padding: PaddingSame})
	graph.Connect[Layer](start, pool)
	runLayers(t, ctx, start, sequence(25), pool)
	assert.Equal(t, backend.Size{Width: 3, Height: 3, Channels: 1}, pool.OutputSize())

	size, p := Window{Width: 2, Height: 2, StrideX: 2, StrideY: 2, Padding: PaddingSame}.apply("p",
		backend.Size{Width: 7, Height: 6, Channels: 3}, 3)
	assert.Equal(t, backend.Size{Width: 4, Height: 3, Channels: 3}, size)
	assert.Equal(t, 0, p.PadLeft)
	assert.Equal(t, 0, p.PadTop)

	err := exceptions.TryCatch[error](func() {
		Window{Width: 9, Height: 1, StrideX: 1, StrideY: 1}.apply("p", backend.Size{Width: 3, Height: 3, Channels: 1}, 1)
	})
	require.Error(t, err)
}

func TestReloadWeights(t *testing.T) {
	loader := params.NewMemory()
	loader.Set("a/", "fc", params.Weights, []float32{1})
	loader.Set("b/", "fc", params.Weights, []float32{-3})
	loader.SetCheckpoint("a/")
	ctx := newContext(loader)

	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 1})
	fc := NewFullyConnected("fc", 1, backend.ActivationNone, nil, nil)
	graph.Connect[Layer](start, fc)
	got := runLayers(t, ctx, start, []float32{2}, fc)
	assertFloats(t, []float32{2}, got)
	buffer := fc.Weights.Buffer()

	loader.SetCheckpoint("b/")
	require.NoError(t, fc.ReloadWeights(ctx))
	assert.Same(t, buffer, fc.Weights.Buffer())
	got = execute(t, ctx, []Layer{start, fc}, fc)
	assertFloats(t, []float32{-6}, got)

	loader.SetCheckpoint("missing/")
	assert.ErrorIs(t, fc.ReloadWeights(ctx), params.ErrNotFound)

	unbound := NewFullyConnected("other", 1, backend.ActivationNone, nil, nil)
	assert.ErrorIs(t, unbound.ReloadWeights(ctx), ErrNotInitialized)
}

func TestTransposedWeightsReload(t *testing.T) {
	// [out][in] with in=3, out=2, the same matrix as TestFullyConnected.
	loader := params.NewMemory()
	loader.Set("a/", "fc", params.Weights, []float32{1, 0, 1, 0, 1, -1})
	loader.Set("b/", "fc", params.Weights, []float32{0, 0, 1, 1, 0, 0})
	loader.SetCheckpoint("a/")
	ctx := newContext(loader)

	start := NewStart(backend.Size{Width: 1, Height: 1, Channels: 3})
	fc := NewFullyConnected("fc", 2, backend.ActivationNone,
		NewParameter(params.Weights, []float32{1, 0, 1, 0, 1, -1}), nil)
	fc.TransposedWeights = true
	graph.Connect[Layer](start, fc)
	got := runLayers(t, ctx, start, []float32{1, 2, 3}, fc)
	assertFloats(t, []float32{4, -1}, got)

	loader.SetCheckpoint("b/")
	require.NoError(t, fc.ReloadWeights(ctx))
	got = execute(t, ctx, []Layer{start, fc}, fc)
	assertFloats(t, []float32{3, 1}, got)

	// Reloading the first checkpoint reads the same layout as the inline values.
	loader.SetCheckpoint("a/")
	require.NoError(t, fc.ReloadWeights(ctx))
	got = execute(t, ctx, []Layer{start, fc}, fc)
	assertFloats(t, []float32{4, -1}, got)
}

func TestParsePadding(t *testing.T) {
	p, err := ParsePadding("SAME")
	require.NoError(t, err)
	assert.Equal(t, PaddingSame, p)
	_, err = ParsePadding("REFLECT")
	assert.Error(t, err)
}
