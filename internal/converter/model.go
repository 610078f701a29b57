package converter

import (
	"github.com/pkg/errors"

	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/layers"
	"github.com/xmartlabs/Bender-sub000/internal/network"
	"github.com/xmartlabs/Bender-sub000/internal/params"
	"github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// Model is a converted graph initialized on a device.
type Model struct {
	*network.Network
	result *Result
}

// Load parses a GraphDef file (binary or text, by extension), converts it and initializes it
// on device. loader may be nil when every weight is a constant of the graph.
//
// Example:
//
//	model, err := converter.Load("style.pb", cpu.New(), params.NewPerLayer("weights/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := model.Infer(pixels)
func Load(path string, device backend.Device, loader params.Loader, opts ...Options) (*Model, error) {
	def, err := tensorflow.ParseFile(path)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse GraphDef file")
	}
	return LoadGraphDef(def, device, loader, opts...)
}

// LoadFromBytes is Load for an in-memory GraphDef.
func LoadFromBytes(data []byte, format tensorflow.Format, device backend.Device, loader params.Loader, opts ...Options) (*Model, error) {
	def, err := tensorflow.Parse(data, format)
	if err != nil {
		return nil, errors.WithMessage(err, "failed to parse GraphDef data")
	}
	return LoadGraphDef(def, device, loader, opts...)
}

// LoadGraphDef converts a parsed GraphDef and initializes it on device.
func LoadGraphDef(def *tensorflow.GraphDef, device backend.Device, loader params.Loader, opts ...Options) (*Model, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	g, err := tensorflow.BuildGraph(def)
	if err != nil {
		return nil, err
	}
	res, err := New(opt).Convert(g)
	if err != nil {
		return nil, err
	}

	size := opt.InputSize
	if size == (backend.Size{}) {
		size = res.InputSize
	}
	if size == (backend.Size{}) {
		return nil, errors.New("converter: input size unknown: the graph has no placeholder with a full NHWC shape, set Options.InputSize")
	}
	if len(res.Outputs) == 0 {
		return nil, errors.Errorf("converter: no graph output survived conversion: %s", res.Report)
	}
	inputs := make(map[layers.Layer]bool, len(res.Inputs))
	for _, l := range res.Inputs {
		inputs[l] = true
	}
	for _, l := range res.Layers {
		if !inputs[l] && len(l.Links().Incoming()) == 0 {
			return nil, errors.Errorf("converter: layer %s has no inputs", l)
		}
	}

	net := network.New(device, loader, size, network.Options{Checkpoint: opt.Checkpoint})
	net.AddInputs(res.Inputs...)
	if err := net.Initialize(); err != nil {
		return nil, err
	}
	return &Model{Network: net, result: res}, nil
}

// Result returns the conversion result.
func (m *Model) Result() *Result { return m.result }

// Report returns what the conversion left out.
func (m *Model) Report() Report { return m.result.Report }

// InputSize returns the size of the images Run expects.
func (m *Model) InputSize() backend.Size { return m.Start().OutputSize() }
