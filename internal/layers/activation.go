package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Neuron applies an activation elementwise.
type Neuron struct {
	Base
	Activation backend.Activation
}

// NewNeuron creates an activation layer.
func NewNeuron(id string, act backend.Activation) *Neuron {
	return &Neuron{Base: NewBase(id), Activation: act}
}

// Initialize allocates an output the size of the input.
func (l *Neuron) Initialize(ctx *Context) error {
	return l.allocate(ctx, l.expectInputs(1)[0].OutputSize())
}

// Execute encodes the activation.
func (l *Neuron) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelNeuron, l.Inputs(), nil, backend.Params{Activation: l.Activation})
}

// Softmax normalizes the channels of every pixel into a distribution.
type Softmax struct {
	Base
}

// NewSoftmax creates a softmax layer.
func NewSoftmax(id string) *Softmax {
	return &Softmax{Base: NewBase(id)}
}

// Initialize allocates an output the size of the input.
func (l *Softmax) Initialize(ctx *Context) error {
	return l.allocate(ctx, l.expectInputs(1)[0].OutputSize())
}

// Execute encodes the softmax.
func (l *Softmax) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelSoftmax, l.Inputs(), nil, backend.Params{})
}
