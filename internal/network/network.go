// Package network runs a graph of layers on a compute device.
//
// A Network owns the root Start layer. Layers are linked to it (directly or through other
// layers), initialized once in dependency order, and then executed for every input frame
// into a single command buffer:
//
//	net := network.New(device, loader, backend.Size{Width: 224, Height: 224, Channels: 3})
//	conv := layers.NewConvolution("conv1", cfg)
//	net.Add(conv)
//	if err := net.Initialize(); err != nil {
//	    log.Fatal(err)
//	}
//	err := net.Run(frame, func(out backend.Image) { ... })
//
// Switching to another checkpoint of the same architecture with Change rewrites the weight
// buffers in place: output images are not reallocated.
package network

import (
	"sync"

	"github.com/dustin/go-humanize"
	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// Options configures a Network.
type Options struct {
	// Checkpoint selects the weights loaded at Initialize. Empty keeps the loader's current
	// checkpoint.
	Checkpoint string
}

// Network schedules layers on a device.
//
// A Network is not safe for concurrent use: Run, Change and Initialize serialize on an
// internal mutex.
type Network struct {
	mu      sync.Mutex
	ctx     *layers.Context
	opts    Options
	start   *layers.Start
	order   []layers.Layer // every reachable layer, dependency order
	layers  []layers.Layer // execution list, pass-through layers dropped
	output  layers.Layer
	ready   bool
	inImage backend.Image
}

// New creates a network reading inputs of inputSize. loader may be nil when every layer
// carries inline weights.
func New(device backend.Device, loader params.Loader, inputSize backend.Size, opts ...Options) *Network {
	var opt Options
	if len(opts) > 0 {
		opt = opts[0]
	}
	return &Network{
		ctx:   &layers.Context{Device: device, Loader: loader},
		opts:  opt,
		start: layers.NewStart(inputSize),
	}
}

// Start returns the root layer.
func (n *Network) Start() *layers.Start { return n.start }

// Add attaches layers to the network. Layers without producers are connected to Start;
// the rest are reached through their producers.
func (n *Network) Add(ls ...layers.Layer) {
	for _, l := range ls {
		if l.Same(n.start) || len(l.Links().Incoming()) > 0 {
			continue
		}
		graph.Connect[layers.Layer](n.start, l)
	}
}

// AddInputs connects each input layer to Start. Layers reached from them through their own
// producers become part of the network; nothing else is rooted.
func (n *Network) AddInputs(inputs ...layers.Layer) {
	for _, l := range inputs {
		graph.Connect[layers.Layer](n.start, l)
	}
}

// Initialize builds the execution list and initializes every layer.
//
// Structural failures (cycles, layers whose inputs do not agree) are returned as errors
// wrapping the *graph.CycleError, *graph.UnreachableError or *layers.ShapeError.
func (n *Network) Initialize() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	var order []layers.Layer
	if err := exceptions.TryCatch[error](func() {
		order = graph.DependencyList[layers.Layer](n.start)
	}); err != nil {
		return errors.WithMessage(err, "network")
	}
	if n.opts.Checkpoint != "" {
		if n.ctx.Loader == nil {
			return errors.Errorf("network: checkpoint %q without a parameter loader", n.opts.Checkpoint)
		}
		n.ctx.Loader.SetCheckpoint(n.opts.Checkpoint)
	}

	for _, l := range order {
		if err := n.initialize(l); err != nil {
			return errors.WithMessagef(err, "network: initialize %s", l)
		}
	}

	n.layers = n.layers[:0]
	for _, l := range order {
		if _, ok := l.(layers.Passthrough); ok {
			continue
		}
		n.layers = append(n.layers, l)
	}
	n.order = order
	n.output = order[len(order)-1]
	n.ready = true
	klog.V(1).Infof("network: %d layers (%d executed), output %s, %s on %s",
		len(order), len(n.layers), n.output.OutputSize(),
		humanize.IBytes(n.ctx.Device.AllocatedBytes()), n.ctx.Device.Name())
	return nil
}

func (n *Network) initialize(l layers.Layer) (err error) {
	if caught := exceptions.TryCatch[error](func() { err = l.Initialize(n.ctx) }); caught != nil {
		return caught
	}
	return err
}

// Run executes the network on input and calls callback with the output image once the
// device has finished. The output image is reused by the next run.
func (n *Network) Run(input backend.Image, callback func(backend.Image)) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.run(input, callback)
}

func (n *Network) run(input backend.Image, callback func(backend.Image)) error {
	if !n.ready {
		return errors.WithMessage(layers.ErrNotInitialized, "network: run")
	}
	if got, want := input.Size(), n.start.OutputSize(); got != want {
		return errors.Errorf("network: input size %s, expected %s", got, want)
	}

	n.start.SetInput(input)
	cmd := n.ctx.Device.NewCommandBuffer()
	if err := exceptions.TryCatch[error](func() {
		for _, l := range n.layers {
			l.Execute(cmd)
		}
	}); err != nil {
		return errors.WithMessage(err, "network: encode")
	}
	if err := cmd.Commit(); err != nil {
		return errors.WithMessage(err, "network: run")
	}
	if callback != nil {
		callback(n.output.Output())
	}
	return nil
}

// Infer uploads values as the input, runs the network and downloads the output.
func (n *Network) Infer(values []float32) ([]float32, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	input, err := n.inputImage(values)
	if err != nil {
		return nil, err
	}
	var out []float32
	var downloadErr error
	err = n.run(input, func(img backend.Image) {
		out, downloadErr = n.ctx.Device.Download(img)
	})
	if err != nil {
		return nil, err
	}
	return out, errors.WithMessage(downloadErr, "network: download output")
}

// inputImage uploads values into the network's input image, allocating it on first use.
// Callers hold n.mu.
func (n *Network) inputImage(values []float32) (backend.Image, error) {
	if n.inImage == nil {
		img, err := n.ctx.Device.NewImage(n.start.OutputSize())
		if err != nil {
			return nil, errors.WithMessage(err, "network: input image")
		}
		n.inImage = img
	}
	if err := n.ctx.Device.Upload(n.inImage, values); err != nil {
		return nil, errors.WithMessage(err, "network: upload input")
	}
	return n.inImage, nil
}

// Change switches the weights to checkpoint, rewriting every weight buffer in place. It is a
// no-op when checkpoint is already active.
func (n *Network) Change(checkpoint string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.ctx.Loader == nil {
		return errors.Errorf("network: change to %q without a parameter loader", checkpoint)
	}
	if n.ctx.Loader.Checkpoint() == checkpoint {
		return nil
	}
	previous := n.ctx.Loader.Checkpoint()
	n.ctx.Loader.SetCheckpoint(checkpoint)
	if !n.ready {
		n.opts.Checkpoint = checkpoint
		return nil
	}
	for _, l := range n.order {
		r, ok := l.(layers.Reloader)
		if !ok {
			continue
		}
		if err := r.ReloadWeights(n.ctx); err != nil {
			n.ctx.Loader.SetCheckpoint(previous)
			return errors.WithMessagef(err, "network: change to %q: %s", checkpoint, l)
		}
	}
	klog.V(1).Infof("network: checkpoint %q -> %q", previous, checkpoint)
	return nil
}

// Checkpoint returns the active checkpoint.
func (n *Network) Checkpoint() string {
	if n.ctx.Loader == nil {
		return n.opts.Checkpoint
	}
	return n.ctx.Loader.Checkpoint()
}

// Layers returns the execution list. Valid after Initialize.
func (n *Network) Layers() []layers.Layer {
	return append([]layers.Layer(nil), n.layers...)
}

// Output returns the final layer's output image. Valid after Initialize.
func (n *Network) Output() backend.Image {
	if n.output == nil {
		return nil
	}
	return n.output.Output()
}

// OutputSize returns the final layer's output size. Valid after Initialize.
func (n *Network) OutputSize() backend.Size {
	if n.output == nil {
		return backend.Size{}
	}
	return n.output.OutputSize()
}

// Device returns the device the network runs on.
func (n *Network) Device() backend.Device { return n.ctx.Device }
