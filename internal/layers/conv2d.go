package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// ConvolutionConfig configures a Convolution.
type ConvolutionConfig struct {
	Window Window
	// OutChannels is the number of filters, or the channel multiplier of a depthwise
	// convolution.
	OutChannels int
	Depthwise   bool
	Activation  backend.Activation
	// Weights holds the HWIO filter. For depthwise convolutions O is the multiplier.
	Weights *Parameter
	// Bias may be nil for a convolution without bias.
	Bias *Parameter
}

// Convolution applies a 2D convolution, regular or depthwise, with fused bias and activation.
//
// Output size: spatial dims follow Window; channels are OutChannels, or input channels times
// OutChannels for a depthwise convolution.
//
// Example:
//
//	conv := layers.NewConvolution("conv1", layers.ConvolutionConfig{
//	    Window:      layers.Window{Width: 3, Height: 3, StrideX: 1, StrideY: 1, Padding: layers.PaddingSame},
//	    OutChannels: 16,
//	    Activation:  backend.ActivationRelu,
//	    Weights:     layers.NewParameter(params.Weights, nil),
//	    Bias:        layers.NewParameter(params.Bias, nil),
//	})
type Convolution struct {
	Base
	weighted
	ConvolutionConfig
	params backend.Params
}

var _ Reloader = (*Convolution)(nil)

// NewConvolution creates a convolution layer.
func NewConvolution(id string, cfg ConvolutionConfig) *Convolution {
	if cfg.Weights == nil {
		cfg.Weights = NewParameter(params.Weights, nil)
	}
	if cfg.Bias == nil {
		cfg.Bias = FixedParameter(params.Bias, 0)
	}
	return &Convolution{
		Base:              NewBase(id),
		weighted:          weighted{parameters: []*Parameter{cfg.Weights, cfg.Bias}},
		ConvolutionConfig: cfg,
	}
}

// Initialize binds the filter and bias and allocates the output.
func (c *Convolution) Initialize(ctx *Context) error {
	in := c.expectInputs(1)[0].OutputSize()
	if c.OutChannels <= 0 {
		fatalf(c.id, "convolution without output channels")
	}
	channels := c.OutChannels
	if c.Depthwise {
		channels *= in.Channels
	}
	size, p := c.Window.apply(c.id, in, channels)
	p.Activation = c.Activation
	c.params = p

	H, W, I, O := c.Window.Height, c.Window.Width, in.Channels, c.OutChannels
	layout := func(hwio []float32) []float32 { return HWIOToOHWI(hwio, H, W, I, O) }
	if c.Depthwise {
		layout = func(hwio []float32) []float32 { return HWIOToIOWH(hwio, H, W, I, O) }
	}
	if err := c.Weights.bind(ctx, c.id, H*W*I*O, layout); err != nil {
		return err
	}
	if err := c.Bias.bind(ctx, c.id, channels, nil); err != nil {
		return err
	}
	return c.allocate(ctx, size)
}

// Execute encodes the convolution.
func (c *Convolution) Execute(cmd backend.CommandBuffer) {
	kernel := backend.KernelConvolution
	if c.Depthwise {
		kernel = backend.KernelDepthwise
	}
	c.encode(cmd, kernel, c.Inputs(), c.parameters, c.params)
}
