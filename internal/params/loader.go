// Package params supplies layer weights to a network.
//
// A Loader resolves (checkpoint, layer id, modifier) to a float32 slice of a known length.
// The checkpoint is a namespace prefix: changing it and reloading swaps every layer to another
// set of trained weights without rebuilding the network.
package params

import (
	"fmt"

	"github.com/pkg/errors"
)

// Weight modifiers used by the layers.
const (
	Weights  = "weights"
	Bias     = "bias"
	Mean     = "mean"
	Variance = "variance"
	Scale    = "scale"
	Offset   = "offset"
	Shift    = "shift"
)

// ErrNotFound is returned when a loader has no entry for a key.
var ErrNotFound = errors.New("params: weights not found")

// Loader loads layer weights.
type Loader interface {
	// LoadWeights returns exactly count values for the layer id and modifier under the
	// current checkpoint.
	LoadWeights(id, modifier string, count int) ([]float32, error)
	// Checkpoint returns the current checkpoint prefix.
	Checkpoint() string
	// SetCheckpoint changes the checkpoint used by later loads.
	SetCheckpoint(checkpoint string)
}

// SizeError reports a stored entry whose length differs from the requested count.
type SizeError struct {
	Key   string
	Got   int
	Count int
}

// Error implements the error interface.
func (e *SizeError) Error() string {
	return fmt.Sprintf("params: %s holds %d values, expected %d", e.Key, e.Got, e.Count)
}

// Key is the name of an entry: checkpoint, id and modifier joined as the per-layer files
// name them.
func Key(checkpoint, id, modifier string) string {
	return checkpoint + id + "_" + modifier
}

func notFound(key string) error {
	return errors.WithMessagef(ErrNotFound, "%q", key)
}

func checkCount(key string, got, count int) error {
	if got != count {
		return &SizeError{Key: key, Got: got, Count: count}
	}
	return nil
}
