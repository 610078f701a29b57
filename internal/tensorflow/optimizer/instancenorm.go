package optimizer

import (
	"regexp"

	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

var momentsMean = regexp.MustCompile(`^(.+)/moments/mean$`)

// InstanceNormFusion collapses the instance normalization idiom
//
//	(x - mean) / sqrt(variance + epsilon) * scale + shift
//
// built from tf.nn.moments into a BenderInstanceNorm node fed by x. The scale multiply is kept
// as a BenderInstanceNormMul operand of the fused node; every other node of the idiom is
// stripped. The idiom is located by the name of its moments mean; once found, the rest of the
// chain must be present.
type InstanceNormFusion struct{}

// Name implements Pass.
func (InstanceNormFusion) Name() string { return "InstanceNormFusion" }

// Optimize implements Pass.
func (InstanceNormFusion) Optimize(g *tensorflow.Graph) {
	for _, mean := range nodesOf(g, tensorflow.OpMean) {
		if m := momentsMean.FindStringSubmatch(mean.Name()); m != nil {
			fuseInstanceNorm(g, mean, m[1])
		}
	}
}

func fuseInstanceNorm(g *tensorflow.Graph, mean *tensorflow.Node, scope string) {
	var idiom []*tensorflow.Node
	strip := func(nodes ...*tensorflow.Node) { idiom = append(idiom, nodes...) }

	// Mean(x, axes).
	tensorflow.Expect(len(mean.Incoming()) == 2, mean, "moments mean expects input and axes")
	x, axes := mean.Incoming()[0], mean.Incoming()[1]
	tensorflow.Expect(axes.IsOp(tensorflow.OpConst), mean, "moments axes must be constant")
	strip(mean, axes)

	variance, ok := g.Find(scope + "/moments/variance")
	tensorflow.Expect(ok, mean, "moments without %s/moments/variance", scope)
	strip(variance)
	strip(variance.Incoming()...)
	for _, sq := range variance.Incoming() {
		for _, in := range sq.Incoming() {
			if in.IsOp(tensorflow.OpStopGradient) {
				strip(in)
			}
		}
	}

	// variance + epsilon
	addEps := variance.OutgoingOp(tensorflow.OpAdd, tensorflow.OpAddV2)
	tensorflow.Expect(addEps != nil, variance, "variance is not offset by epsilon")
	epsNode := otherInput(addEps, variance)
	tensorflow.Expect(epsNode.IsOp(tensorflow.OpConst), addEps, "epsilon must be constant")
	eps, err := epsNode.MustTensor("value").Floats()
	tensorflow.Expect(err == nil && len(eps) > 0, epsNode, "bad epsilon tensor: %v", err)
	strip(addEps, epsNode)

	// x - mean
	sub := mean.OutgoingOp(tensorflow.OpSub)
	tensorflow.Expect(sub != nil, mean, "mean is not subtracted from the input")
	tensorflow.Expect(otherInput(sub, mean) == x, sub, "subtraction does not use the moments input")
	strip(sub)

	// Normalized value: (x - mean) / pow(·, 0.5) | sqrt(·), or (x - mean) * rsqrt(·).
	var normalized *tensorflow.Node
	if root := addEps.OutgoingOp(tensorflow.OpPow, tensorflow.OpSqrt); root != nil {
		if root.IsOp(tensorflow.OpPow) {
			strip(otherInput(root, addEps))
		}
		normalized = sub.OutgoingOp(tensorflow.OpRealDiv, tensorflow.OpDiv)
		tensorflow.Expect(normalized != nil && otherInput(normalized, sub) == root, sub, "expected a division by the root of the variance")
		strip(root, normalized)
	} else {
		rsqrt := addEps.OutgoingOp(tensorflow.OpRsqrt)
		tensorflow.Expect(rsqrt != nil, addEps, "expected a root of the variance")
		normalized = sub.OutgoingOp(tensorflow.OpMul)
		tensorflow.Expect(normalized != nil && otherInput(normalized, sub) == rsqrt, sub, "expected a multiplication by the reciprocal root")
		strip(rsqrt, normalized)
	}

	// * scale + shift
	scaleMul := singleConsumer(normalized)
	tensorflow.Expect(scaleMul != nil && scaleMul.IsOp(tensorflow.OpMul), normalized, "normalized value is not scaled")
	scale := parameterOf(scaleMul, otherInput(scaleMul, normalized))
	tensorflow.Expect(scale != nil, scaleMul, "scale must be a parameter")
	shiftAdd := singleConsumer(scaleMul)
	tensorflow.Expect(shiftAdd != nil && shiftAdd.IsOp(tensorflow.OpAdd, tensorflow.OpAddV2, tensorflow.OpBiasAdd), scaleMul, "scaled value is not shifted")
	shift := parameterOf(shiftAdd, otherInput(shiftAdd, scaleMul))
	tensorflow.Expect(shift != nil, shiftAdd, "shift must be a parameter")

	for _, n := range idiom {
		if n != x {
			graph.Strip(n)
		}
	}

	scaleMul.Retag(tensorflow.OpInstanceNormMul)
	scaleMul.SetAttr(tensorflow.AttrScale, tensorflow.StringAttr(scale.Name()))
	shiftAdd.Retag(tensorflow.OpInstanceNorm)
	shiftAdd.SetAttr(tensorflow.AttrShift, tensorflow.StringAttr(shift.Name()))
	shiftAdd.SetAttr(tensorflow.AttrEpsilon, tensorflow.FloatAttr(eps[0]))
	graph.Connect(x, shiftAdd)
}
