package converter

import (
	"slices"

	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// ErrUnsupported is returned by a MapFunc for a node it recognizes but cannot express as a
// layer, such as a concatenation along the batch axis. The converter treats such nodes like
// nodes without a mapper.
var ErrUnsupported = errors.New("converter: unsupported node")

// MapFunc turns one optimized graph node into a layer. The converter connects the layer to
// the layers of the node's producers; a MapFunc only configures it.
type MapFunc func(ctx *MapContext, n *tensorflow.Node) (layers.Layer, error)

// MapContext is passed to every MapFunc.
type MapContext struct {
	// Graph is the optimized graph being converted.
	Graph *tensorflow.Graph
}

// Values returns the constant values and dimensions of a parameter node. Values is nil for
// a variable, whose weights come from the parameter loader.
func (c *MapContext) Values(operand *tensorflow.Node) ([]float32, []int, error) {
	switch {
	case operand == nil:
		return nil, nil, errors.New("converter: missing parameter operand")
	case operand.IsOp(tensorflow.OpConst):
		t := operand.MustTensor("value")
		values, err := t.Floats()
		if err != nil {
			return nil, nil, errors.WithMessagef(err, "node %s", operand.Name())
		}
		return values, t.Dims(), nil
	case operand.IsOp(tensorflow.OpVariable, tensorflow.OpVariableV2):
		var dims []int
		if s := operand.Shape("shape"); s != nil {
			for _, d := range s.Dims {
				dims = append(dims, int(d))
			}
		}
		return nil, dims, nil
	}
	return nil, nil, tensorflow.Errorf(operand, "expected a constant or variable operand")
}

// Parameter builds the layer parameter held by operand under modifier. A nil operand gives a
// nil parameter, which layers treat as absent.
func (c *MapContext) Parameter(operand *tensorflow.Node, modifier string) (*layers.Parameter, []int, error) {
	if operand == nil {
		return nil, nil, nil
	}
	values, dims, err := c.Values(operand)
	if err != nil {
		return nil, nil, err
	}
	return layers.NewParameter(modifier, values), dims, nil
}

// Registry maps operator types to MapFuncs.
type Registry struct {
	mappers map[string]MapFunc
}

// NewRegistry creates a registry with every built-in mapper.
func NewRegistry() *Registry {
	r := &Registry{mappers: make(map[string]MapFunc)}
	r.registerBuiltins()
	return r
}

// Register adds or replaces the mapper of op.
func (r *Registry) Register(op string, fn MapFunc) {
	r.mappers[op] = fn
}

// Get returns the mapper of op.
func (r *Registry) Get(op string) (MapFunc, bool) {
	fn, ok := r.mappers[op]
	return fn, ok
}

// SupportedOps lists the operator types with a mapper, sorted.
func (r *Registry) SupportedOps() []string {
	ops := make([]string, 0, len(r.mappers))
	for op := range r.mappers {
		ops = append(ops, op)
	}
	slices.Sort(ops)
	return ops
}
