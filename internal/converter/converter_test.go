package converter

import (
	"testing"

	"github.com/janpfeifer/must"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/backend/cpu"
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/network"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// builder assembles GraphDefs for the tests.
type builder struct {
	def tensorflow.GraphDef
}

func (b *builder) node(name, op string, inputs ...string) *tensorflow.NodeDef {
	n := &tensorflow.NodeDef{Name: name, Op: op, Inputs: inputs, Attr: map[string]*tensorflow.AttrValue{}}
	b.def.Nodes = append(b.def.Nodes, n)
	return n
}

func (b *builder) input(name string, h, w, c int64) {
	b.node(name, tensorflow.OpPlaceholder).Attr["shape"] = &tensorflow.AttrValue{
		Kind:  tensorflow.AttrShape,
		Shape: &tensorflow.TensorShape{Dims: []int64{-1, h, w, c}},
	}
}

func (b *builder) constant(name string, dims []int64, values ...float32) {
	b.node(name, tensorflow.OpConst).Attr["value"] = tensorflow.TensorAttr(tensorflow.FloatTensor(dims, values))
}

func (b *builder) axis(name string, axis int32) {
	b.node(name, tensorflow.OpConst).Attr["value"] = tensorflow.TensorAttr(tensorflow.IntTensor(nil, axis))
}

func (b *builder) convert(t *testing.T, opts ...Options) *Result {
	t.Helper()
	g, err := tensorflow.BuildGraph(&b.def)
	require.NoError(t, err)
	res, err := New(opts...).Convert(g)
	require.NoError(t, err)
	return res
}

func ids(ls []layers.Layer) []string {
	out := make([]string, len(ls))
	for i, l := range ls {
		out[i] = l.ID()
	}
	return out
}

// infer runs the converted layers on the CPU device.
func infer(t *testing.T, res *Result, input []float32) []float32 {
	t.Helper()
	net := network.New(cpu.New(), nil, res.InputSize)
	net.AddInputs(res.Inputs...)
	require.NoError(t, net.Initialize())
	return must.M1(net.Infer(input))
}

func assertFloats(t *testing.T, want, got []float32) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		assert.InDelta(t, want[i], got[i], 0.01, "element %d", i)
	}
}

func TestConvolutionBiasRelu(t *testing.T) {
	var b builder
	b.input("input", 2, 2, 1)
	b.constant("w", []int64{1, 1, 1, 1}, 2)
	conv := b.node("conv", tensorflow.OpConv2D, "input", "w")
	conv.Attr["strides"] = tensorflow.IntsAttr(1, 1, 1, 1)
	conv.Attr["padding"] = tensorflow.StringAttr("SAME")
	b.constant("b", []int64{1}, 1)
	b.node("bias", tensorflow.OpBiasAdd, "conv", "b")
	b.node("relu", tensorflow.OpRelu, "bias")

	res := b.convert(t)
	assert.True(t, res.Report.Clean())
	assert.Equal(t, []string{"input", "bias"}, ids(res.Layers))
	assert.Equal(t, []string{"input"}, ids(res.Inputs))
	assert.Equal(t, []string{"bias"}, ids(res.Outputs))
	assert.Equal(t, backend.Size{Width: 2, Height: 2, Channels: 1}, res.InputSize)

	conv2d, ok := res.Layers[1].(*layers.Convolution)
	require.True(t, ok)
	assert.Equal(t, backend.ActivationRelu, conv2d.Activation)
	assertFloats(t, []float32{3, 0, 7, 0}, infer(t, res, []float32{1, -2, 3, -4}))
}

func TestDense(t *testing.T) {
	var b builder
	b.input("input", 1, 1, 3)
	b.constant("w", []int64{3, 2}, 1, 0, 0, 1, 1, -1)
	b.node("matmul", tensorflow.OpMatMul, "input", "w")
	b.constant("b", []int64{2}, 0.5, 0)
	b.node("logits", tensorflow.OpBiasAdd, "matmul", "b")

	res := b.convert(t)
	require.Equal(t, []string{"input", "logits"}, ids(res.Layers))
	assertFloats(t, []float32{4.5, -1}, infer(t, res, []float32{1, 2, 3}))
}

func TestBatchNormMapping(t *testing.T) {
	var b builder
	b.input("input", 1, 2, 2)
	b.constant("scale", []int64{2}, 2, 4)
	b.constant("offset", []int64{2}, 1, -1)
	b.constant("mean", []int64{2}, 1, 2)
	b.constant("variance", []int64{2}, 4, 16)
	b.node("bn", tensorflow.OpFusedBatchNormV3, "input", "scale", "offset", "mean", "variance").
		Attr[tensorflow.AttrEpsilon] = tensorflow.FloatAttr(0)

	res := b.convert(t)
	assertFloats(t, []float32{1, -1, 3, 1}, infer(t, res, []float32{1, 2, 3, 4}))
}

func TestConcatMapping(t *testing.T) {
	var b builder
	b.input("input", 1, 1, 2)
	b.node("relu", tensorflow.OpRelu, "input")
	b.node("tanh", tensorflow.OpTanh, "input")
	b.axis("axis", 3)
	b.node("concat", tensorflow.OpConcatV2, "relu", "tanh", "axis")
	b.axis("axis0", 0)
	b.node("batch", tensorflow.OpConcatV2, "relu", "tanh", "axis0")

	res := b.convert(t)
	require.Len(t, res.Report.Dropped, 1)
	assert.Equal(t, "batch", res.Report.Dropped[0].Name)
	assert.Contains(t, res.Report.Dropped[0].Reason, "axis 0")

	concat := res.Layers[len(res.Layers)-1]
	require.Equal(t, "concat", concat.ID())
	assert.Equal(t, []string{"relu", "tanh"}, ids(concat.Links().Incoming()))
	assertFloats(t, []float32{0, 0.5, -0.762, 0.462}, infer(t, res, []float32{-1, 0.5}))
}

// unsupportedGraph has an Erf between relu and its consumers: input -> relu -> erf -> {tanh, add}
// and relu -> add.
func unsupportedGraph() *builder {
	b := &builder{}
	b.input("input", 1, 1, 1)
	b.node("relu", tensorflow.OpRelu, "input")
	b.node("erf", "Erf", "relu")
	b.node("tanh", tensorflow.OpTanh, "erf")
	b.node("add", tensorflow.OpAdd, "relu", "erf")
	return b
}

func TestUnsupportedOperatorDegrades(t *testing.T) {
	res := unsupportedGraph().convert(t)
	assert.False(t, res.Report.Clean())
	assert.Equal(t, []DroppedNode{
		{Name: "erf", Op: "Erf", Reason: "no mapper"},
		{Name: "tanh", Op: tensorflow.OpTanh, Reason: "every input was dropped"},
	}, res.Report.Dropped)
	assert.ElementsMatch(t, []Edge{{"erf", "tanh"}, {"erf", "add"}}, res.Report.Severed)
	assert.Equal(t, []string{"input", "relu", "add"}, ids(res.Layers))
	assert.Equal(t, []string{"add"}, ids(res.Outputs))

	// Graph nodes keep their edges; layers lose the dropped producer.
	add, ok := res.Graph.Find("add")
	require.True(t, ok)
	assert.Len(t, add.Incoming(), 2)
	byID := make(map[string]layers.Layer)
	for _, l := range res.Layers {
		byID[l.ID()] = l
	}
	assert.Len(t, byID["add"].Links().Incoming(), 1)
	assert.Contains(t, res.Report.String(), "erf (Erf)")
}

func TestStrictMode(t *testing.T) {
	b := unsupportedGraph()
	g := must.M1(tensorflow.BuildGraph(&b.def))
	_, err := New(Options{StrictMode: true}).Convert(g)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported operator Erf")
}

func TestCustomMapper(t *testing.T) {
	erf := func(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
		return layers.NewNeuron(n.Name(), backend.ActivationTanh), nil
	}
	res := unsupportedGraph().convert(t, Options{CustomMappers: map[string]MapFunc{"Erf": erf}})
	assert.True(t, res.Report.Clean())
	assert.Contains(t, ids(res.Layers), "erf")
	assert.ElementsMatch(t, []string{"tanh", "add"}, ids(res.Outputs))
}

func TestCycleIsAnError(t *testing.T) {
	var b builder
	b.input("input", 1, 1, 1)
	b.node("a", tensorflow.OpAdd, "input", "b")
	b.node("b", tensorflow.OpRelu, "a")
	g := must.M1(tensorflow.BuildGraph(&b.def))
	_, err := New().Convert(g)
	var cycle *graph.CycleError
	require.ErrorAs(t, err, &cycle)
}

func TestSupportedOps(t *testing.T) {
	ops := NewRegistry().SupportedOps()
	assert.IsIncreasing(t, ops)
	for _, op := range []string{
		tensorflow.OpConvolution, tensorflow.OpDense, tensorflow.OpInstanceNorm,
		tensorflow.OpPlaceholder, tensorflow.OpConcatV2, tensorflow.OpMean,
	} {
		assert.Contains(t, ops, op)
	}
	assert.NotContains(t, ops, tensorflow.OpConst)
}
