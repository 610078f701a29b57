package layers

import (
	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// Parameter is one weight array of a layer.
//
// Values come from the loader under the layer id and the parameter's modifier. Initial
// values, when given (constants embedded in an imported graph), are used at first
// initialization instead; checkpoint reloads always go to the loader. A fixed parameter
// stands for an absent optional weight (a missing bias, batch norm without scale) and is
// never reloaded.
//
// Loader values are in the imported layout; the layer converts them to the kernel layout.
//
// Example:
//
//	bias := layers.NewParameter(params.Bias, nil)            // loaded
//	weights := layers.NewParameter(params.Weights, hwio)     // inline HWIO filter
type Parameter struct {
	modifier string
	initial  []float32
	fixed    bool
	value    float32

	// Set by bind.
	id     string
	count  int
	layout func([]float32) []float32
	buffer backend.Buffer
}

// NewParameter creates a parameter loaded under modifier, starting from initial if not nil.
func NewParameter(modifier string, initial []float32) *Parameter {
	return &Parameter{modifier: modifier, initial: initial}
}

// FixedParameter creates a parameter where every element is value.
func FixedParameter(modifier string, value float32) *Parameter {
	return &Parameter{modifier: modifier, fixed: true, value: value}
}

// Modifier returns the role of the parameter, such as "weights" or "bias".
func (p *Parameter) Modifier() string { return p.modifier }

// Count returns the number of values. Valid after the layer is initialized.
func (p *Parameter) Count() int { return p.count }

// Fixed reports whether the parameter is a constant fill.
func (p *Parameter) Fixed() bool { return p.fixed }

// Buffer returns the device buffer. Valid after the layer is initialized.
func (p *Parameter) Buffer() backend.Buffer { return p.buffer }

// bind loads count values for layer id and uploads them. layout converts loaded values to
// the kernel layout and may be nil.
func (p *Parameter) bind(ctx *Context, id string, count int, layout func([]float32) []float32) error {
	p.id, p.count, p.layout = id, count, layout
	values, err := p.values(ctx, true)
	if err != nil {
		return err
	}
	buf, err := ctx.Device.NewBuffer(values)
	if err != nil {
		return errors.WithMessagef(err, "layer %s: %s buffer", id, p.modifier)
	}
	p.buffer = buf
	return nil
}

// reload writes the loader's values for the current checkpoint into the bound buffer.
func (p *Parameter) reload(ctx *Context) error {
	if p.buffer == nil {
		return errors.WithMessagef(ErrNotInitialized, "parameter %s", p.modifier)
	}
	if p.fixed {
		return nil
	}
	values, err := p.values(ctx, false)
	if err != nil {
		return err
	}
	return errors.WithMessagef(ctx.Device.WriteBuffer(p.buffer, values), "layer %s: %s buffer", p.id, p.modifier)
}

func (p *Parameter) values(ctx *Context, first bool) ([]float32, error) {
	var values []float32
	switch {
	case p.fixed:
		values = make([]float32, p.count)
		for i := range values {
			values[i] = p.value
		}
		return values, nil
	case first && p.initial != nil:
		if err := backend.CheckLen(p.id+" "+p.modifier, len(p.initial), p.count); err != nil {
			return nil, err
		}
		values = p.initial
	default:
		if ctx.Loader == nil {
			return nil, errors.Errorf("layer %s: no parameter loader for %s", p.id, p.modifier)
		}
		var err error
		values, err = ctx.Loader.LoadWeights(p.id, p.modifier, p.count)
		if err != nil {
			return nil, errors.WithMessagef(err, "layer %s", p.id)
		}
	}
	if p.layout != nil {
		values = p.layout(values)
	}
	return values, nil
}
