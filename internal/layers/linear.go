package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// FullyConnected multiplies the flattened input by a weight matrix, then adds a bias and
// applies the activation.
//
// Weights arrive as [in][out] with in the HWC-flattened input size, or as [out][in] when
// TransposedWeights is set (MatMul with transpose_b). The output is 1x1xout.
type FullyConnected struct {
	Base
	weighted
	OutputCount       int
	Activation        backend.Activation
	Weights           *Parameter
	Bias              *Parameter
	TransposedWeights bool
}

var _ Reloader = (*FullyConnected)(nil)

// NewFullyConnected creates a dense layer with outputs neurons. A nil bias means no bias.
func NewFullyConnected(id string, outputs int, act backend.Activation, weights, bias *Parameter) *FullyConnected {
	if weights == nil {
		weights = NewParameter(params.Weights, nil)
	}
	if bias == nil {
		bias = FixedParameter(params.Bias, 0)
	}
	return &FullyConnected{
		Base:        NewBase(id),
		weighted:    weighted{parameters: []*Parameter{weights, bias}},
		OutputCount: outputs,
		Activation:  act,
		Weights:     weights,
		Bias:        bias,
	}
}

// Initialize binds the matrix and bias and allocates the output.
func (l *FullyConnected) Initialize(ctx *Context) error {
	in := l.expectInputs(1)[0].OutputSize().Count()
	out := l.OutputCount
	if out <= 0 {
		fatalf(l.id, "fully connected layer without outputs")
	}
	layout := func(m []float32) []float32 { return InOutToOutIn(m, in, out) }
	if l.TransposedWeights {
		// Already in kernel order, for inline values and every checkpoint alike.
		layout = nil
	}
	if err := l.Weights.bind(ctx, l.id, in*out, layout); err != nil {
		return err
	}
	if err := l.Bias.bind(ctx, l.id, out, nil); err != nil {
		return err
	}
	return l.allocate(ctx, backend.Size{Width: 1, Height: 1, Channels: out})
}

// Execute encodes the matrix product.
func (l *FullyConnected) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelFullyConnected, l.Inputs(), l.parameters,
		backend.Params{Activation: l.Activation})
}
