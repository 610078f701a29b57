package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// PoolKind selects the reduction of a Pooling layer.
type PoolKind int

// Pooling reductions.
const (
	PoolMax PoolKind = iota
	PoolAverage
)

// Pooling reduces each window of every channel to its maximum or average. Average pooling
// counts only the taps inside the input.
type Pooling struct {
	Base
	Kind   PoolKind
	Window Window
	params backend.Params
}

// NewPooling creates a pooling layer.
func NewPooling(id string, kind PoolKind, window Window) *Pooling {
	return &Pooling{Base: NewBase(id), Kind: kind, Window: window}
}

// Initialize computes the output size and allocates it.
func (l *Pooling) Initialize(ctx *Context) error {
	in := l.expectInputs(1)[0].OutputSize()
	size, p := l.Window.apply(l.id, in, in.Channels)
	l.params = p
	return l.allocate(ctx, size)
}

// Execute encodes the pooling.
func (l *Pooling) Execute(cmd backend.CommandBuffer) {
	kernel := backend.KernelMaxPool
	if l.Kind == PoolAverage {
		kernel = backend.KernelAvgPool
	}
	l.encode(cmd, kernel, l.Inputs(), nil, l.params)
}

// GlobalAverage averages every channel over the whole image into a 1x1 output.
type GlobalAverage struct {
	Base
}

// NewGlobalAverage creates a global average pooling layer.
func NewGlobalAverage(id string) *GlobalAverage {
	return &GlobalAverage{Base: NewBase(id)}
}

// Initialize allocates a 1x1 output with the input's channels.
func (l *GlobalAverage) Initialize(ctx *Context) error {
	in := l.expectInputs(1)[0].OutputSize()
	return l.allocate(ctx, backend.Size{Width: 1, Height: 1, Channels: in.Channels})
}

// Execute encodes the average.
func (l *GlobalAverage) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelGlobalAverage, l.Inputs(), nil, backend.Params{})
}
