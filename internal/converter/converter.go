// Package converter maps optimized TensorFlow graphs to layers.
//
// Conversion runs the optimizer pipeline on the imported graph, orders the surviving nodes
// topologically and asks the registry for a layer per node. Each layer is connected to the
// layers of its node's producers, so the layer graph mirrors the node graph minus operands
// (constants, variables) and nodes that could not be mapped.
//
// An operator without a mapper is dropped with a warning by default: its consumers lose that
// input, which changes what the network computes. A consumer that loses every input is dropped
// as well rather than left without producers. The Report lists every dropped node and severed
// edge; Options.StrictMode turns the first drop into an error instead.
package converter

import (
	"fmt"
	"slices"
	"strings"

	"github.com/gomlx/exceptions"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/graph"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow/optimizer"
)

// Options configures a conversion.
type Options struct {
	// StrictMode fails on unsupported operators (default: false = drop with warning).
	StrictMode bool

	// Pipeline overrides the optimizer passes. Nil runs optimizer.DefaultPipeline.
	Pipeline *optimizer.Pipeline

	// CustomMappers adds or replaces operator mappers.
	CustomMappers map[string]MapFunc

	// Checkpoint selects the weights a network built from the result loads first.
	Checkpoint string

	// InputSize overrides the input size read from the placeholder shape.
	InputSize backend.Size
}

// DefaultOptions returns the default conversion options.
func DefaultOptions() Options {
	return Options{
		StrictMode:    false,
		CustomMappers: nil,
	}
}

// DroppedNode is a node no layer was produced for.
type DroppedNode struct {
	Name   string
	Op     string
	Reason string
}

// Edge is a producer to consumer connection, by node name.
type Edge struct {
	Producer string
	Consumer string
}

func (e Edge) String() string { return e.Producer + " -> " + e.Consumer }

// Report lists what a conversion had to leave out.
type Report struct {
	Dropped []DroppedNode
	// Severed lists inputs that mapped layers lost because their producer was dropped.
	Severed []Edge
}

// Clean reports whether every node was converted.
func (r Report) Clean() bool { return len(r.Dropped) == 0 }

func (r Report) String() string {
	if r.Clean() {
		return "all nodes converted"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%d nodes dropped:", len(r.Dropped))
	for _, d := range r.Dropped {
		fmt.Fprintf(&b, " %s (%s)", d.Name, d.Op)
	}
	if len(r.Severed) > 0 {
		fmt.Fprintf(&b, "; %d edges severed:", len(r.Severed))
		for _, e := range r.Severed {
			fmt.Fprintf(&b, " %s", e)
		}
	}
	return b.String()
}

// Result is a converted model.
type Result struct {
	// Graph is the optimized node graph.
	Graph *tensorflow.Graph
	// Layers in topological order.
	Layers []layers.Layer
	// Inputs are the layers created for input placeholders.
	Inputs []layers.Layer
	// Outputs are the layers of graph nodes nothing consumes, by id. Layers that only lost
	// their consumers to dropped nodes are not outputs.
	Outputs []layers.Layer
	// InputSize is read from the first placeholder's shape; zero when unknown.
	InputSize backend.Size
	Report    Report
}

// Converter turns imported graphs into layers.
type Converter struct {
	opts     Options
	registry *Registry
}

// New creates a converter.
func New(opts ...Options) *Converter {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Pipeline == nil {
		opt.Pipeline = optimizer.DefaultPipeline()
	}
	registry := NewRegistry()
	for op, fn := range opt.CustomMappers {
		registry.Register(op, fn)
	}
	return &Converter{opts: opt, registry: registry}
}

// Registry returns the converter's mappers.
func (c *Converter) Registry() *Registry { return c.registry }

// Options returns the converter's options.
func (c *Converter) Options() Options { return c.opts }

// Convert optimizes g in place and maps it to layers.
//
// Structural failures of the graph (cycles, failed optimizer guards) are returned as errors
// wrapping *graph.CycleError or *tensorflow.ImportError.
func (c *Converter) Convert(g *tensorflow.Graph) (*Result, error) {
	if err := c.opts.Pipeline.Run(g); err != nil {
		return nil, err
	}
	var res *Result
	var convertErr error
	if err := exceptions.TryCatch[error](func() { res, convertErr = c.convert(g) }); err != nil {
		return nil, errors.WithMessage(err, "converter")
	}
	if convertErr != nil {
		return nil, errors.WithMessage(convertErr, "converter")
	}
	return res, nil
}

func (c *Converter) convert(g *tensorflow.Graph) (*Result, error) {
	g.SortNodes()
	res := &Result{Graph: g}
	ctx := &MapContext{Graph: g}
	layerOf := make(map[*tensorflow.Node]layers.Layer, g.Len())
	dropped := make(map[*tensorflow.Node]bool)

	for _, n := range g.Nodes {
		if isOperand(n) {
			continue
		}
		if lostInputs(n, layerOf, dropped) {
			// A consumer whose producers were all dropped would compute on nothing.
			klog.Warningf("converter: dropping %s (%s): every input was dropped", n.Name(), n.Op())
			dropped[n] = true
			res.Report.Dropped = append(res.Report.Dropped, DroppedNode{Name: n.Name(), Op: n.Op(), Reason: "every input was dropped"})
			res.Report.Severed = append(res.Report.Severed, severed(n, dropped)...)
			continue
		}
		layer, reason, err := c.mapNode(ctx, n)
		if err != nil {
			return nil, err
		}
		if layer == nil {
			if c.opts.StrictMode {
				return nil, errors.Errorf("unsupported operator %s: node %s: %s", n.Op(), n.Name(), reason)
			}
			klog.Warningf("converter: dropping %s (%s): %s", n.Name(), n.Op(), reason)
			dropped[n] = true
			res.Report.Dropped = append(res.Report.Dropped, DroppedNode{Name: n.Name(), Op: n.Op(), Reason: reason})
			continue
		}

		for _, producer := range n.Incoming() {
			if l, ok := layerOf[producer]; ok {
				graph.Connect(l, layer)
			}
		}
		res.Report.Severed = append(res.Report.Severed, severed(n, dropped)...)
		layerOf[n] = layer
		res.Layers = append(res.Layers, layer)
		if n.IsOp(tensorflow.OpPlaceholder) {
			res.Inputs = append(res.Inputs, layer)
			if res.InputSize == (backend.Size{}) {
				res.InputSize = placeholderSize(n)
			}
		}
	}

	for n, l := range layerOf {
		if len(n.Outgoing()) == 0 {
			res.Outputs = append(res.Outputs, l)
		}
	}
	slices.SortFunc(res.Outputs, func(a, b layers.Layer) int { return strings.Compare(a.ID(), b.ID()) })
	klog.V(1).Infof("converter: %d nodes -> %d layers, %s", g.Len(), len(res.Layers), res.Report)
	return res, nil
}

// lostInputs reports whether n had producers and every one of them was dropped.
func lostInputs(n *tensorflow.Node, layerOf map[*tensorflow.Node]layers.Layer, dropped map[*tensorflow.Node]bool) bool {
	lost := false
	for _, producer := range n.Incoming() {
		if _, ok := layerOf[producer]; ok {
			return false
		}
		lost = lost || dropped[producer]
	}
	return lost
}

// severed lists the inputs of n that were dropped.
func severed(n *tensorflow.Node, dropped map[*tensorflow.Node]bool) []Edge {
	var edges []Edge
	for _, producer := range n.Incoming() {
		if dropped[producer] {
			edges = append(edges, Edge{Producer: producer.Name(), Consumer: n.Name()})
		}
	}
	return edges
}

// mapNode returns the layer of n, or a nil layer and the reason it is unsupported.
func (c *Converter) mapNode(ctx *MapContext, n *tensorflow.Node) (layers.Layer, string, error) {
	fn, ok := c.registry.Get(n.Op())
	if !ok {
		return nil, "no mapper", nil
	}
	layer, err := fn(ctx, n)
	switch {
	case errors.Is(err, ErrUnsupported):
		return nil, err.Error(), nil
	case err != nil:
		return nil, "", err
	case layer == nil:
		return nil, "mapper produced no layer", nil
	}
	return layer, "", nil
}

// placeholderSize reads an NHWC shape attribute, ignoring the batch dimension.
func placeholderSize(n *tensorflow.Node) backend.Size {
	s := n.Shape("shape")
	if s == nil || len(s.Dims) != 4 {
		return backend.Size{}
	}
	h, w, ch := s.Dims[1], s.Dims[2], s.Dims[3]
	if h <= 0 || w <= 0 || ch <= 0 {
		return backend.Size{}
	}
	return backend.Size{Width: int(w), Height: int(h), Channels: int(ch)}
}
