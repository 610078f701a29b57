// Package layers implements the executable layers of a network.
//
// Layers link into a graph the same way imported nodes do. A network initializes them in
// dependency order and then executes them into one command buffer per run:
//   - Initialize computes the output size from the inputs, binds weights and allocates the
//     output image
//   - Execute encodes the layer's kernel dispatches
//   - ReloadWeights (Reloader) rewrites the weight buffers in place for another checkpoint
//
// Layer kinds: Start, Dummy, Identity, Convolution, FullyConnected, Add, Concat, BatchNorm,
// InstanceNorm, Pooling, Neuron, Softmax and GlobalAverage.
package layers

import (
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// Layer is an executable unit of a network.
//
// A layer must be initialized before it is executed. Execute on an uninitialized layer
// panics.
type Layer interface {
	// Links returns the layer's edges.
	Links() *graph.Links[Layer]
	// Same reports identity: a layer is only equal to itself.
	Same(other Layer) bool
	// String names the layer in diagnostics.
	String() string

	// ID is the layer identifier used to look up its weights.
	ID() string
	// OutputSize is valid after Initialize.
	OutputSize() backend.Size
	// Output is the image the layer writes. Valid after Initialize.
	Output() backend.Image
	// Initialize computes the output size from the inputs, binds weights and allocates
	// the output.
	Initialize(ctx *Context) error
	// Execute encodes the layer's work.
	Execute(cmd backend.CommandBuffer)
}

// Reloader is implemented by layers with weights.
type Reloader interface {
	Layer
	// ReloadWeights fetches the weights for the loader's current checkpoint and writes
	// them into the existing buffers.
	ReloadWeights(ctx *Context) error
	// Parameters lists the layer's weights.
	Parameters() []*Parameter
}

// Passthrough is implemented by layers that encode no work. The network drops them from the
// execution list once initialized.
type Passthrough interface {
	Layer
	passthrough()
}

// Context carries what layers need to initialize. It is passed explicitly; layers keep no
// global state.
type Context struct {
	Device backend.Device
	Loader params.Loader
}

// Base holds the state every layer shares. Layer kinds embed it.
type Base struct {
	id          string
	links       graph.Links[Layer]
	size        backend.Size
	output      backend.Image
	initialized bool
}

// NewBase creates the shared state of a layer named id.
func NewBase(id string) Base {
	return Base{id: id}
}

// Links implements Layer.
func (b *Base) Links() *graph.Links[Layer] { return &b.links }

// Same implements Layer.
func (b *Base) Same(other Layer) bool {
	return other != nil && other.Links() == &b.links
}

// String implements Layer.
func (b *Base) String() string { return b.id }

// ID implements Layer.
func (b *Base) ID() string { return b.id }

// OutputSize implements Layer.
func (b *Base) OutputSize() backend.Size { return b.size }

// Output implements Layer.
func (b *Base) Output() backend.Image { return b.output }

// Initialized reports whether Initialize has completed.
func (b *Base) Initialized() bool { return b.initialized }

// Inputs returns the producers of the layer in edge order.
func (b *Base) Inputs() []Layer { return b.links.Incoming() }

// expectInputs returns the inputs, panicking with a *ShapeError unless there are n.
func (b *Base) expectInputs(n int) []Layer {
	in := b.links.Incoming()
	if len(in) != n {
		fatalf(b.id, "expected %d inputs, got %d", n, len(in))
	}
	return in
}

// allocate sets the output size and creates the output image.
func (b *Base) allocate(ctx *Context, size backend.Size) error {
	if size.Width <= 0 || size.Height <= 0 || size.Channels <= 0 {
		fatalf(b.id, "invalid output size %s", size)
	}
	img, err := ctx.Device.NewImage(size)
	if err != nil {
		return errors.WithMessagef(err, "layer %s", b.id)
	}
	b.size = size
	b.output = img
	b.initialized = true
	klog.V(2).Infof("layers: %s initialized with output %s", b.id, size)
	return nil
}

func (b *Base) checkInitialized() {
	if !b.initialized {
		exceptions.Panicf("layer %s executed before initialization", b.id)
	}
}

// weighted is embedded by layers that own parameters.
type weighted struct {
	parameters []*Parameter
}

// Parameters implements Reloader.
func (w *weighted) Parameters() []*Parameter { return w.parameters }

// ReloadWeights implements Reloader.
func (w *weighted) ReloadWeights(ctx *Context) error {
	for _, p := range w.parameters {
		if err := p.reload(ctx); err != nil {
			return err
		}
	}
	return nil
}

// encode records one dispatch writing the layer's output.
func (b *Base) encode(cmd backend.CommandBuffer, kernel backend.Kernel, inputs []Layer,
	weights []*Parameter, p backend.Params) {
	b.checkInitialized()
	d := backend.Dispatch{Kernel: kernel, Output: b.output, Params: p}
	for _, in := range inputs {
		d.Inputs = append(d.Inputs, in.Output())
	}
	for _, w := range weights {
		d.Weights = append(d.Weights, w.buffer)
	}
	cmd.Encode(d)
}
