package converter

import (
	"fmt"
	"slices"

	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/params"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

func (r *Registry) registerBuiltins() {
	r.Register(tensorflow.OpConvolution, mapFusedConvolution)
	r.Register(tensorflow.OpConv2D, mapConvolution)
	r.Register(tensorflow.OpDepthwiseConv2D, mapConvolution)
	r.Register(tensorflow.OpDense, mapFusedDense)
	r.Register(tensorflow.OpMatMul, mapMatMul)
	for _, op := range tensorflow.Activations {
		r.Register(op, mapNeuron)
	}
	r.Register(tensorflow.OpSoftmax, mapSoftmax)
	r.Register(tensorflow.OpMaxPool, mapPooling)
	r.Register(tensorflow.OpAvgPool, mapPooling)
	r.Register(tensorflow.OpAdd, mapAdd)
	r.Register(tensorflow.OpAddV2, mapAdd)
	r.Register(tensorflow.OpConcat, mapConcat)
	r.Register(tensorflow.OpConcatV2, mapConcat)
	r.Register(tensorflow.OpFusedBatchNorm, mapBatchNorm)
	r.Register(tensorflow.OpFusedBatchNormV3, mapBatchNorm)
	r.Register(tensorflow.OpInstanceNorm, mapInstanceNorm)
	r.Register(tensorflow.OpMean, mapMean)
	r.Register(tensorflow.OpIdentity, mapIdentity)
	r.Register(tensorflow.OpPlaceholder, mapPlaceholder)
}

// operandOps are consumed by the nodes they feed and never become layers.
var operandOps = []string{
	tensorflow.OpConst, tensorflow.OpVariable, tensorflow.OpVariableV2, tensorflow.OpInstanceNormMul,
}

func isOperand(n *tensorflow.Node) bool { return n.IsOp(operandOps...) }

// dataInputs returns the producers of n that carry images, in edge order.
func dataInputs(n *tensorflow.Node) []*tensorflow.Node {
	var out []*tensorflow.Node
	for _, in := range n.Incoming() {
		if !isOperand(in) {
			out = append(out, in)
		}
	}
	return out
}

func unsupportedf(n *tensorflow.Node, format string, args ...any) error {
	return errors.WithMessagef(ErrUnsupported, "%s (%s): %s", n.Name(), n.Op(), fmt.Sprintf(format, args...))
}

func activationOf(n *tensorflow.Node) (backend.Activation, error) {
	act, err := backend.ParseActivation(n.Str(tensorflow.AttrActivation, ""))
	if err != nil {
		return act, unsupportedf(n, "%v", err)
	}
	return act, nil
}

// windowOf reads strides and padding of an NHWC op for a kh x kw window.
func windowOf(n *tensorflow.Node, kh, kw int) (layers.Window, error) {
	strides := n.Ints("strides")
	if strides == nil {
		strides = []int64{1, 1, 1, 1}
	}
	if len(strides) != 4 || strides[0] != 1 || strides[3] != 1 {
		return layers.Window{}, unsupportedf(n, "strides %v", strides)
	}
	for _, d := range n.Ints("dilations") {
		if d != 1 {
			return layers.Window{}, unsupportedf(n, "dilations %v", n.Ints("dilations"))
		}
	}
	padding, err := layers.ParsePadding(n.Str("padding", "VALID"))
	if err != nil {
		return layers.Window{}, unsupportedf(n, "%v", err)
	}
	return layers.Window{
		Width:   kw,
		Height:  kh,
		StrideX: int(strides[2]),
		StrideY: int(strides[1]),
		Padding: padding,
	}, nil
}

func convolution(ctx *MapContext, n, filter, bias *tensorflow.Node, depthwise bool, act backend.Activation) (layers.Layer, error) {
	weights, dims, err := ctx.Parameter(filter, params.Weights)
	if err != nil {
		return nil, err
	}
	if len(dims) != 4 {
		return nil, tensorflow.Errorf(n, "filter %s must be HWIO, has dimensions %v", filter, dims)
	}
	window, err := windowOf(n, dims[0], dims[1])
	if err != nil {
		return nil, err
	}
	b, _, err := ctx.Parameter(bias, params.Bias)
	if err != nil {
		return nil, err
	}
	return layers.NewConvolution(n.Name(), layers.ConvolutionConfig{
		Window:      window,
		OutChannels: dims[3],
		Depthwise:   depthwise,
		Activation:  act,
		Weights:     weights,
		Bias:        b,
	}), nil
}

func mapConvolution(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	in := n.Incoming()
	tensorflow.Expect(len(in) == 2, n, "expected data and filter inputs, found %d", len(in))
	return convolution(ctx, n, in[1], nil, n.IsOp(tensorflow.OpDepthwiseConv2D), backend.ActivationNone)
}

func mapFusedConvolution(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	filter := tensorflow.Role(n, tensorflow.AttrWeights)
	tensorflow.Expect(filter != nil, n, "fused convolution without weights")
	act, err := activationOf(n)
	if err != nil {
		return nil, err
	}
	return convolution(ctx, n, filter, tensorflow.Role(n, tensorflow.AttrBias), n.Bool(tensorflow.AttrDepthwise, false), act)
}

func dense(ctx *MapContext, n, matrix, bias *tensorflow.Node, act backend.Activation) (layers.Layer, error) {
	values, dims, err := ctx.Values(matrix)
	if err != nil {
		return nil, err
	}
	if len(dims) != 2 {
		return nil, tensorflow.Errorf(n, "weights %s must be a matrix, has dimensions %v", matrix, dims)
	}
	out := dims[1]
	transposed := n.Bool("transpose_b", false)
	if transposed {
		out = dims[0]
	}
	b, _, err := ctx.Parameter(bias, params.Bias)
	if err != nil {
		return nil, err
	}
	fc := layers.NewFullyConnected(n.Name(), out, act, layers.NewParameter(params.Weights, values), b)
	fc.TransposedWeights = transposed
	return fc, nil
}

func mapMatMul(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	in := n.Incoming()
	tensorflow.Expect(len(in) == 2, n, "expected data and weights inputs, found %d", len(in))
	if n.Bool("transpose_a", false) {
		return nil, unsupportedf(n, "transposed input")
	}
	return dense(ctx, n, in[1], nil, backend.ActivationNone)
}

func mapFusedDense(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	matrix := tensorflow.Role(n, tensorflow.AttrWeights)
	tensorflow.Expect(matrix != nil, n, "fused dense layer without weights")
	act, err := activationOf(n)
	if err != nil {
		return nil, err
	}
	return dense(ctx, n, matrix, tensorflow.Role(n, tensorflow.AttrBias), act)
}

func mapNeuron(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	act, err := backend.ParseActivation(n.Op())
	if err != nil {
		return nil, unsupportedf(n, "%v", err)
	}
	return layers.NewNeuron(n.Name(), act), nil
}

func mapSoftmax(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	return layers.NewSoftmax(n.Name()), nil
}

func mapPooling(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	ksize := n.MustInts("ksize")
	if len(ksize) != 4 || ksize[0] != 1 || ksize[3] != 1 {
		return nil, unsupportedf(n, "window %v", ksize)
	}
	window, err := windowOf(n, int(ksize[1]), int(ksize[2]))
	if err != nil {
		return nil, err
	}
	kind := layers.PoolMax
	if n.IsOp(tensorflow.OpAvgPool) {
		kind = layers.PoolAverage
	}
	return layers.NewPooling(n.Name(), kind, window), nil
}

func mapAdd(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	if len(dataInputs(n)) != 2 || len(n.Incoming()) != 2 {
		return nil, unsupportedf(n, "add of a constant")
	}
	return layers.NewAdd(n.Name()), nil
}

// concatAxes maps NHWC axes to image axes.
var concatAxes = map[int64]layers.Axis{
	1:  layers.AxisHeight,
	2:  layers.AxisWidth,
	3:  layers.AxisChannels,
	-1: layers.AxisChannels,
	-2: layers.AxisWidth,
	-3: layers.AxisHeight,
}

func mapConcat(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	in := n.Incoming()
	tensorflow.Expect(len(in) >= 2, n, "concat without inputs")
	// ConcatV2 takes the axis last, Concat first.
	axisNode := in[len(in)-1]
	if n.IsOp(tensorflow.OpConcat) {
		axisNode = in[0]
	}
	tensorflow.Expect(axisNode.IsOp(tensorflow.OpConst), n, "concat axis must be constant")
	values, err := axisNode.MustTensor("value").Ints()
	tensorflow.Expect(err == nil && len(values) == 1, axisNode, "bad concat axis: %v", err)
	axis, ok := concatAxes[values[0]]
	if !ok {
		return nil, unsupportedf(n, "concat along axis %d", values[0])
	}
	return layers.NewConcat(n.Name(), axis), nil
}

func mapBatchNorm(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	in := n.Incoming()
	tensorflow.Expect(len(in) >= 5, n, "expected input, scale, offset, mean and variance, found %d inputs", len(in))
	if n.Bool("is_training", false) {
		return nil, unsupportedf(n, "training mode")
	}
	var ps [4]*layers.Parameter
	for i, modifier := range []string{params.Scale, params.Offset, params.Mean, params.Variance} {
		p, _, err := ctx.Parameter(in[i+1], modifier)
		if err != nil {
			return nil, err
		}
		ps[i] = p
	}
	eps := n.Float(tensorflow.AttrEpsilon, layers.DefaultEpsilon)
	return layers.NewBatchNorm(n.Name(), eps, ps[2], ps[3], ps[0], ps[1]), nil
}

func mapInstanceNorm(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	mul := n.IncomingOp(tensorflow.OpInstanceNormMul)
	tensorflow.Expect(mul != nil, n, "instance norm without its scale operand")
	scale, _, err := ctx.Parameter(tensorflow.Role(mul, tensorflow.AttrScale), params.Scale)
	if err != nil {
		return nil, err
	}
	shift, _, err := ctx.Parameter(tensorflow.Role(n, tensorflow.AttrShift), params.Shift)
	if err != nil {
		return nil, err
	}
	tensorflow.Expect(scale != nil && shift != nil, n, "instance norm without scale or shift")
	return layers.NewInstanceNorm(n.Name(), n.Float(tensorflow.AttrEpsilon, layers.DefaultEpsilon), scale, shift), nil
}

func mapMean(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	in := n.Incoming()
	tensorflow.Expect(len(in) == 2, n, "expected input and axes, found %d inputs", len(in))
	tensorflow.Expect(in[1].IsOp(tensorflow.OpConst), n, "mean axes must be constant")
	axes, err := in[1].MustTensor("value").Ints()
	tensorflow.Expect(err == nil, in[1], "bad axes: %v", err)
	slices.Sort(axes)
	if !slices.Equal(axes, []int64{1, 2}) {
		return nil, unsupportedf(n, "mean over axes %v", axes)
	}
	return layers.NewGlobalAverage(n.Name()), nil
}

func mapIdentity(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	return layers.NewIdentity(n.Name()), nil
}

func mapPlaceholder(_ *MapContext, n *tensorflow.Node) (layers.Layer, error) {
	return layers.NewDummy(n.Name()), nil
}
