// Package tensorflow provides TensorFlow model import for Bender.
//
// This package loads a frozen TensorFlow GraphDef (protobuf binary or text), rewrites it into
// a compact layer graph and runs it on a compute device.
//
// # Supported Features
//
//   - GraphDef parsing, binary (.pb) and text (.pbtxt)
//   - Variable collapsing and removal of training-only subgraphs (dropout, save, regularizers)
//   - Fusion of convolution and dense layers with their bias and activation
//   - Fusion of instance normalization built from tf.nn.moments
//   - Checkpoint switching without reallocating outputs
//
// # Example Usage
//
//	import (
//	    "github.com/xmartlabs/Bender-sub000/backend/cpu"
//	    "github.com/xmartlabs/Bender-sub000/loader"
//	    "github.com/xmartlabs/Bender-sub000/tensorflow"
//	)
//
//	model, err := tensorflow.Load("style.pb", cpu.New(), loader.NewPerLayer("weights/"))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	out, err := model.Infer(pixels)
//
// # Supported Operators
//
//   - Convolution: Conv2D, DepthwiseConv2dNative (with BiasAdd and activation fused)
//   - Dense: MatMul (with BiasAdd and activation fused)
//   - Activation: Relu, Relu6, Tanh, Sigmoid, Softmax
//   - Pooling: MaxPool, AvgPool, Mean over height and width
//   - Normalization: FusedBatchNorm, FusedBatchNormV3, instance normalization
//   - Other: Add, AddV2, Concat, ConcatV2, Identity, Placeholder
//
// Use [ListSupportedOps] to get the complete list of supported operators.
package tensorflow

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/converter"
	"github.com/xmartlabs/Bender-sub000/internal/params"
	internaltf "github.com/xmartlabs/Bender-sub000/internal/tensorflow"
)

// LoadOptions configures model loading behavior.
type LoadOptions = converter.Options

// Report lists the nodes a load dropped and the edges it severed.
type Report = converter.Report

// Format is an on-disk GraphDef encoding.
type Format = internaltf.Format

// GraphDef encodings.
const (
	Binary = internaltf.Binary
	Text   = internaltf.Text
)

// DefaultLoadOptions returns the default options for loading models.
//
// Default configuration:
//   - Strict mode: disabled (unsupported operators are dropped and reported)
//   - Optimizer: the default pass pipeline
func DefaultLoadOptions() LoadOptions {
	return converter.DefaultOptions()
}

// Load loads a GraphDef from a file path and initializes it on device.
//
// The encoding is chosen by extension: .pbtxt, .prototxt and .txt are text, anything else is
// binary. Weights that are not constants of the graph are read through loader, which may be
// nil otherwise.
//
// Example:
//
//	model, err := tensorflow.Load("mobilenet.pb", device, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println("Input:", model.InputSize())
//
// For custom loading options, pass LoadOptions:
//
//	opts := tensorflow.DefaultLoadOptions()
//	opts.StrictMode = true // Fail on unsupported ops
//	model, err := tensorflow.Load("model.pb", device, nil, opts)
func Load(path string, device backend.Device, loader params.Loader, opts ...LoadOptions) (Model, error) {
	m, err := converter.Load(path, device, loader, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// LoadFromBytes loads a GraphDef from raw bytes in the given encoding.
//
// This is useful when the model is embedded in the binary or loaded
// from a network source.
//
// Example:
//
//	data, _ := os.ReadFile("model.pb")
//	model, err := tensorflow.LoadFromBytes(data, tensorflow.Binary, device, nil)
func LoadFromBytes(data []byte, format Format, device backend.Device, loader params.Loader, opts ...LoadOptions) (Model, error) {
	m, err := converter.LoadFromBytes(data, format, device, loader, opts...)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// ListSupportedOps returns the TensorFlow operators Bender maps to layers, sorted.
//
// Example:
//
//	for _, op := range tensorflow.ListSupportedOps() {
//	    fmt.Println(op)
//	}
func ListSupportedOps() []string {
	return converter.NewRegistry().SupportedOps()
}
