package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Add sums two inputs of the same size and applies an optional activation.
type Add struct {
	Base
	Activation backend.Activation
}

// NewAdd creates an add layer.
func NewAdd(id string) *Add {
	return &Add{Base: NewBase(id)}
}

// Initialize checks both inputs agree and allocates the output.
func (l *Add) Initialize(ctx *Context) error {
	in := l.expectInputs(2)
	a, b := in[0].OutputSize(), in[1].OutputSize()
	if a != b {
		fatalf(l.id, "cannot add %s and %s", a, b)
	}
	return l.allocate(ctx, a)
}

// Execute encodes the sum.
func (l *Add) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelAdd, l.expectInputs(2), nil, backend.Params{Activation: l.Activation})
}

// Axis is a concatenation axis.
type Axis int

// Concatenation axes of an HWC image.
const (
	AxisHeight Axis = iota
	AxisWidth
	AxisChannels
)

func (a Axis) String() string {
	switch a {
	case AxisHeight:
		return "height"
	case AxisWidth:
		return "width"
	}
	return "channels"
}

// Concat places its inputs next to each other along Axis, in edge order. All other
// dimensions must agree.
//
// Example: (H3,W2,C8) ++ (H3,W3,C8) along AxisWidth gives (H3,W5,C8).
type Concat struct {
	Base
	Axis Axis
}

// NewConcat creates a concatenation layer.
func NewConcat(id string, axis Axis) *Concat {
	return &Concat{Base: NewBase(id), Axis: axis}
}

// Initialize computes the joined size, panicking with a *ShapeError on mismatched inputs.
func (l *Concat) Initialize(ctx *Context) error {
	in := l.Inputs()
	if len(in) == 0 {
		fatalf(l.id, "concat without inputs")
	}
	size := in[0].OutputSize()
	for _, other := range in[1:] {
		s := other.OutputSize()
		switch l.Axis {
		case AxisHeight:
			if s.Width != size.Width || s.Channels != size.Channels {
				fatalf(l.id, "cannot concat %s and %s along %s", size, s, l.Axis)
			}
			size.Height += s.Height
		case AxisWidth:
			if s.Height != size.Height || s.Channels != size.Channels {
				fatalf(l.id, "cannot concat %s and %s along %s", size, s, l.Axis)
			}
			size.Width += s.Width
		default:
			if s.Width != size.Width || s.Height != size.Height {
				fatalf(l.id, "cannot concat %s and %s along %s", size, s, l.Axis)
			}
			size.Channels += s.Channels
		}
	}
	return l.allocate(ctx, size)
}

// Execute encodes one copy per input at its offset.
func (l *Concat) Execute(cmd backend.CommandBuffer) {
	var p backend.Params
	for _, in := range l.Inputs() {
		l.encode(cmd, backend.KernelCopy, []Layer{in}, nil, p)
		s := in.OutputSize()
		switch l.Axis {
		case AxisHeight:
			p.OffsetY += s.Height
		case AxisWidth:
			p.OffsetX += s.Width
		default:
			p.OffsetC += s.Channels
		}
	}
}
