package optimizer

import (
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

var biasOps = []string{tensorflow.OpBiasAdd, tensorflow.OpAdd, tensorflow.OpAddV2}

// biasOf returns the bias add consuming n and its bias parameter, if n is followed by one.
func biasOf(n *tensorflow.Node) (add, bias *tensorflow.Node) {
	add = singleConsumer(n)
	if add == nil || !add.IsOp(biasOps...) || len(add.Incoming()) != 2 {
		return nil, nil
	}
	bias = parameterOf(add, otherInput(add, n))
	if bias == nil {
		return nil, nil
	}
	return add, bias
}

// DenseFusion folds MatMul + bias add (+ activation) into one BenderDense node. The bias add
// node is retagged and keeps its name; the matmul is stripped. A Reshape with a constant
// shape feeding only the matmul is elided.
type DenseFusion struct{}

// Name implements Pass.
func (DenseFusion) Name() string { return "DenseFusion" }

// Optimize implements Pass.
func (DenseFusion) Optimize(g *tensorflow.Graph) {
	for _, matmul := range nodesOf(g, tensorflow.OpMatMul) {
		add, bias := biasOf(matmul)
		if add == nil {
			continue
		}
		in := matmul.Incoming()
		tensorflow.Expect(len(in) == 2, matmul, "expected data and weights inputs, found %d", len(in))
		tensorflow.Expect(!matmul.Bool("transpose_a", false), matmul, "transposed input is not supported")
		data := in[0]
		weights := parameterOf(matmul, in[1])
		tensorflow.Expect(weights != nil, matmul, "weights must be a parameter")

		if reshape := data; reshape.IsOp(tensorflow.OpReshape) && singleConsumer(reshape) == matmul {
			if src, ok := constantReshapeInput(reshape); ok {
				data = src
				graph.Strip(reshape)
			}
		}

		add.Retag(tensorflow.OpDense)
		add.SetAttr(tensorflow.AttrWeights, tensorflow.StringAttr(weights.Name()))
		add.SetAttr(tensorflow.AttrBias, tensorflow.StringAttr(bias.Name()))
		if matmul.Bool("transpose_b", false) {
			add.SetAttr("transpose_b", tensorflow.BoolAttr(true))
		}
		graph.Replace(add, matmul, data)
		graph.Connect(weights, add)
		graph.Strip(matmul)
		fuseActivation(add)
	}
}

// ConvBiasFusion folds Conv2D or DepthwiseConv2dNative + bias add (+ activation) into one
// BenderConv2D node, carrying over strides and padding.
type ConvBiasFusion struct{}

// Name implements Pass.
func (ConvBiasFusion) Name() string { return "ConvBiasFusion" }

// Optimize implements Pass.
func (ConvBiasFusion) Optimize(g *tensorflow.Graph) {
	for _, conv := range nodesOf(g, tensorflow.OpConv2D, tensorflow.OpDepthwiseConv2D) {
		add, bias := biasOf(conv)
		if add == nil {
			continue
		}
		in := conv.Incoming()
		tensorflow.Expect(len(in) == 2, conv, "expected data and filter inputs, found %d", len(in))
		data := in[0]
		weights := parameterOf(conv, in[1])
		tensorflow.Expect(weights != nil, conv, "filter must be a parameter")
		format := conv.Str("data_format", "NHWC")
		tensorflow.Expect(format == "NHWC", conv, "data format %s is not supported", format)

		add.Retag(tensorflow.OpConvolution)
		add.SetAttr(tensorflow.AttrWeights, tensorflow.StringAttr(weights.Name()))
		add.SetAttr(tensorflow.AttrBias, tensorflow.StringAttr(bias.Name()))
		add.SetAttr(tensorflow.AttrDepthwise, tensorflow.BoolAttr(conv.IsOp(tensorflow.OpDepthwiseConv2D)))
		for _, name := range []string{"strides", "padding", "dilations"} {
			if a, ok := conv.Attr(name); ok {
				add.SetAttr(name, a)
			}
		}
		graph.Replace(add, conv, data)
		graph.Connect(weights, add)
		graph.Strip(conv)
		fuseActivation(add)
	}
}

// constantReshapeInput returns the data input of a Reshape whose shape operand is constant.
func constantReshapeInput(reshape *tensorflow.Node) (*tensorflow.Node, bool) {
	in := reshape.Incoming()
	if len(in) != 2 || !in[1].IsOp(tensorflow.OpConst) {
		return nil, false
	}
	return in[0], true
}

// ReshapeElision removes Reshape nodes whose shape operand is constant. Images keep their
// layout on the device, so such a reshape is a pass-through.
type ReshapeElision struct{}

// Name implements Pass.
func (ReshapeElision) Name() string { return "ReshapeElision" }

// Optimize implements Pass.
func (ReshapeElision) Optimize(g *tensorflow.Graph) {
	for _, reshape := range nodesOf(g, tensorflow.OpReshape) {
		if _, ok := constantReshapeInput(reshape); !ok {
			continue
		}
		graph.Disconnect(reshape.Incoming()[1], reshape)
		graph.Remove(reshape)
	}
}

// IgnoredOpsDeleter removes ops that do nothing at inference time. Pass-through ops are
// removed with their path preserved; an Identity without consumers names a graph output and
// is kept. Control-only ops are stripped.
type IgnoredOpsDeleter struct{}

var (
	passThroughOps = []string{
		tensorflow.OpIdentity, tensorflow.OpStopGradient,
		tensorflow.OpPreventGradient, tensorflow.OpCheckNumerics,
	}
	controlOps = []string{tensorflow.OpNoOp, tensorflow.OpAssert}
)

// Name implements Pass.
func (IgnoredOpsDeleter) Name() string { return "IgnoredOpsDeleter" }

// Optimize implements Pass.
func (IgnoredOpsDeleter) Optimize(g *tensorflow.Graph) {
	for _, n := range nodesOf(g, passThroughOps...) {
		if len(n.Outgoing()) == 0 {
			continue
		}
		tensorflow.Expect(len(n.Incoming()) <= 1, n, "pass-through op with %d inputs", len(n.Incoming()))
		graph.Remove(n)
	}
	for _, n := range nodesOf(g, controlOps...) {
		graph.Strip(n)
	}
}
