package tensorflow

// TensorFlow operator types the importer recognizes.
const (
	OpConst            = "Const"
	OpPlaceholder      = "Placeholder"
	OpVariable         = "Variable"
	OpVariableV2       = "VariableV2"
	OpAssign           = "Assign"
	OpIdentity         = "Identity"
	OpStopGradient     = "StopGradient"
	OpPreventGradient  = "PreventGradient"
	OpCheckNumerics    = "CheckNumerics"
	OpNoOp             = "NoOp"
	OpAssert           = "Assert"
	OpMatMul           = "MatMul"
	OpBiasAdd          = "BiasAdd"
	OpAdd              = "Add"
	OpAddV2            = "AddV2"
	OpSub              = "Sub"
	OpMul              = "Mul"
	OpRealDiv          = "RealDiv"
	OpDiv              = "Div"
	OpPow              = "Pow"
	OpSqrt             = "Sqrt"
	OpRsqrt            = "Rsqrt"
	OpMean             = "Mean"
	OpSquaredDiff      = "SquaredDifference"
	OpShape            = "Shape"
	OpReshape          = "Reshape"
	OpConv2D           = "Conv2D"
	OpDepthwiseConv2D  = "DepthwiseConv2dNative"
	OpRelu             = "Relu"
	OpRelu6            = "Relu6"
	OpTanh             = "Tanh"
	OpSigmoid          = "Sigmoid"
	OpSoftmax          = "Softmax"
	OpMaxPool          = "MaxPool"
	OpAvgPool          = "AvgPool"
	OpConcat           = "Concat"
	OpConcatV2         = "ConcatV2"
	OpFusedBatchNorm   = "FusedBatchNorm"
	OpFusedBatchNormV3 = "FusedBatchNormV3"
)

// Operator types produced by the optimizer.
const (
	OpDense           = "BenderDense"
	OpConvolution     = "BenderConv2D"
	OpInstanceNorm    = "BenderInstanceNorm"
	OpInstanceNormMul = "BenderInstanceNormMul"
)

// Attributes written by the optimizer on fused nodes. The role attributes hold the name of
// the constant producer playing that role.
const (
	AttrWeights    = "_weights"
	AttrBias       = "_bias"
	AttrScale      = "_scale"
	AttrShift      = "_shift"
	AttrActivation = "activation"
	AttrEpsilon    = "epsilon"
	AttrDepthwise  = "depthwise"
)

// Activations an optimizer can fold into a fused node.
var Activations = []string{OpRelu, OpRelu6, OpTanh, OpSigmoid}

// IsParameter reports whether n holds weights: a constant or a variable.
func IsParameter(n *Node) bool {
	return n.IsOp(OpConst, OpVariable, OpVariableV2)
}

// Role returns the producer of n named by the role attribute, or nil.
func Role(n *Node, attr string) *Node {
	name := n.Str(attr, "")
	if name == "" {
		return nil
	}
	for _, in := range n.Incoming() {
		if in.Name() == name {
			return in
		}
	}
	return nil
}
