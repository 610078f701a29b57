// Package loader provides weight loading for Bender networks.
//
// This package wraps the internal loader implementations and exports a clean public API
// for supplying weights that are not constants of the imported graph.
//
// Weights are addressed by checkpoint, layer id and modifier. The checkpoint is a prefix, so
// one source can hold several trained variants of the same network (for example one per
// style of a style transfer model) and a model switches between them with Change.
//
// Example usage:
//
//	import (
//	    "github.com/xmartlabs/Bender-sub000/backend/cpu"
//	    "github.com/xmartlabs/Bender-sub000/loader"
//	    "github.com/xmartlabs/Bender-sub000/tensorflow"
//	)
//
//	// One raw little-endian float32 file per weight: weights/<checkpoint><id>_<modifier>.data
//	weights := loader.NewPerLayer("weights/")
//
//	model, err := tensorflow.Load("style.pb", cpu.New(), weights)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if err := model.Change("mosaic/"); err != nil {
//	    log.Fatal(err)
//	}
package loader

import (
	"github.com/xmartlabs/Bender-sub000/internal/params"
)

// Loader supplies layer weights by (checkpoint, layer id, modifier).
type Loader = params.Loader

// Modifiers name the weights of a layer.
const (
	Weights  = params.Weights
	Bias     = params.Bias
	Mean     = params.Mean
	Variance = params.Variance
	Scale    = params.Scale
	Offset   = params.Offset
	Shift    = params.Shift
)

// ErrNotFound is returned when a loader has no weights for a key.
var ErrNotFound = params.ErrNotFound

// Memory is a loader backed by a map, useful in tests and for generated weights.
type Memory = params.Memory

// PerLayer reads one raw file per weight from a directory.
type PerLayer = params.PerLayer

// SingleFile reads every weight from one memory-mapped .bender file.
type SingleFile = params.SingleFile

// Writer builds .bender files.
type Writer = params.Writer

// NewMemory creates an empty in-memory loader.
func NewMemory() *Memory {
	return params.NewMemory()
}

// NewPerLayer creates a loader reading <dir>/<checkpoint><id>_<modifier>.data files.
//
// Each file holds raw little-endian float32 values in the layout TensorFlow stores them
// (HWIO for convolutions, input by output for dense layers).
func NewPerLayer(dir string) *PerLayer {
	return params.NewPerLayer(dir)
}

// OpenFile memory-maps a .bender weights file.
//
// Example:
//
//	weights, err := loader.OpenFile("styles.bender")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer weights.Close()
//
//	for _, e := range weights.Index().Entries {
//	    fmt.Println(e.Key, e.Count)
//	}
func OpenFile(path string) (*SingleFile, error) {
	return params.OpenFile(path)
}

// NewWriter creates an empty .bender file writer.
func NewWriter() *Writer {
	return params.NewWriter()
}
