package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// DefaultEpsilon is the variance epsilon used when a graph does not set one.
const DefaultEpsilon = 0.001

// BatchNorm normalizes every channel with fixed statistics:
//
//	out = (x - mean[c]) * scale[c] / sqrt(variance[c] + epsilon) + offset[c]
//
// Without scale and offset it computes (x - mean[c]) / sqrt(variance[c] + epsilon).
type BatchNorm struct {
	Base
	weighted
	Epsilon  float32
	Mean     *Parameter
	Variance *Parameter
	Scale    *Parameter
	Offset   *Parameter
}

var _ Reloader = (*BatchNorm)(nil)

// NewBatchNorm creates a batch normalization layer. Nil mean and variance are loaded; nil
// scale and offset are left out.
func NewBatchNorm(id string, epsilon float32, mean, variance, scale, offset *Parameter) *BatchNorm {
	if mean == nil {
		mean = NewParameter(params.Mean, nil)
	}
	if variance == nil {
		variance = NewParameter(params.Variance, nil)
	}
	if scale == nil {
		scale = FixedParameter(params.Scale, 1)
	}
	if offset == nil {
		offset = FixedParameter(params.Offset, 0)
	}
	return &BatchNorm{
		Base:     NewBase(id),
		weighted: weighted{parameters: []*Parameter{mean, variance, scale, offset}},
		Epsilon:  epsilon,
		Mean:     mean,
		Variance: variance,
		Scale:    scale,
		Offset:   offset,
	}
}

// Initialize binds the per-channel parameters and allocates the output.
func (l *BatchNorm) Initialize(ctx *Context) error {
	size := l.expectInputs(1)[0].OutputSize()
	for _, p := range l.parameters {
		if err := p.bind(ctx, l.id, size.Channels, nil); err != nil {
			return err
		}
	}
	return l.allocate(ctx, size)
}

// Execute encodes the normalization.
func (l *BatchNorm) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelBatchNorm, l.Inputs(), l.parameters, backend.Params{Epsilon: l.Epsilon})
}

// InstanceNorm normalizes every channel with its own statistics over the image:
//
//	out = (x - mean_c) / sqrt(var_c + epsilon) * scale[c] + shift[c]
type InstanceNorm struct {
	Base
	weighted
	Epsilon float32
	Scale   *Parameter
	Shift   *Parameter
}

var _ Reloader = (*InstanceNorm)(nil)

// NewInstanceNorm creates an instance normalization layer. Nil parameters are loaded.
func NewInstanceNorm(id string, epsilon float32, scale, shift *Parameter) *InstanceNorm {
	if scale == nil {
		scale = NewParameter(params.Scale, nil)
	}
	if shift == nil {
		shift = NewParameter(params.Shift, nil)
	}
	return &InstanceNorm{
		Base:     NewBase(id),
		weighted: weighted{parameters: []*Parameter{scale, shift}},
		Epsilon:  epsilon,
		Scale:    scale,
		Shift:    shift,
	}
}

// Initialize binds scale and shift and allocates the output.
func (l *InstanceNorm) Initialize(ctx *Context) error {
	size := l.expectInputs(1)[0].OutputSize()
	for _, p := range l.parameters {
		if err := p.bind(ctx, l.id, size.Channels, nil); err != nil {
			return err
		}
	}
	return l.allocate(ctx, size)
}

// Execute encodes the normalization.
func (l *InstanceNorm) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelInstanceNorm, l.Inputs(), l.parameters, backend.Params{Epsilon: l.Epsilon})
}
