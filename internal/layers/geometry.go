package layers

import (
	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Padding is the padding mode of a sliding window.
type Padding int

// Padding modes.
const (
	// PaddingValid only places the window fully inside the input.
	PaddingValid Padding = iota
	// PaddingSame pads so the output has ceil(input/stride) positions.
	PaddingSame
)

// ParsePadding parses the TensorFlow padding attribute.
func ParsePadding(s string) (Padding, error) {
	switch s {
	case "SAME":
		return PaddingSame, nil
	case "VALID":
		return PaddingValid, nil
	}
	return PaddingValid, errors.Errorf("layers: unknown padding %q", s)
}

func (p Padding) String() string {
	if p == PaddingSame {
		return "SAME"
	}
	return "VALID"
}

// Window is the geometry of a convolution or pooling window.
type Window struct {
	Width   int
	Height  int
	StrideX int
	StrideY int
	Padding Padding
}

// along returns the output length and the padding before the first position for one axis.
//
//	SAME:  out = ceil(in/s), pad = max((out-1)*s + k - in, 0) / 2
//	VALID: out = ceil((in-k+1)/s), pad = 0
func (p Padding) along(in, k, s int) (out, before int) {
	if p == PaddingSame {
		out = (in + s - 1) / s
		total := max((out-1)*s+k-in, 0)
		return out, total / 2
	}
	return (in - k + s) / s, 0
}

// apply computes the output size of w over in with the given channel count, and the kernel
// parameters of the dispatch.
func (w Window) apply(id string, in backend.Size, channels int) (backend.Size, backend.Params) {
	if w.Width <= 0 || w.Height <= 0 || w.StrideX <= 0 || w.StrideY <= 0 {
		fatalf(id, "invalid window %dx%d stride %dx%d", w.Width, w.Height, w.StrideX, w.StrideY)
	}
	if w.Padding == PaddingValid && (w.Width > in.Width || w.Height > in.Height) {
		fatalf(id, "%dx%d window does not fit a %s input", w.Height, w.Width, in)
	}
	width, left := w.Padding.along(in.Width, w.Width, w.StrideX)
	height, top := w.Padding.along(in.Height, w.Height, w.StrideY)
	return backend.Size{Width: width, Height: height, Channels: channels}, backend.Params{
		KernelWidth:  w.Width,
		KernelHeight: w.Height,
		StrideX:      w.StrideX,
		StrideY:      w.StrideY,
		PadLeft:      left,
		PadTop:       top,
	}
}
