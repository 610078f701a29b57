package tensorflow

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
	"github.com/xmartlabs/Bender-sub000/internal/converter"
)

// Model represents a loaded model ready for inference.
//
// This interface hides the internal implementation and allows for:
//   - Easy mocking in tests
//   - Decoupling from internal package structure
//
// A Model is not safe for concurrent use; calls serialize.
type Model interface {
	// Run executes the model on input and calls callback with the output image once the
	// device is done. The output image is reused by the next run.
	Run(input backend.Image, callback func(backend.Image)) error

	// Infer uploads values as the input (HWC order), runs the model and returns the output.
	//
	// Example:
	//
	//	out, err := model.Infer(pixels)
	//	if err != nil {
	//	    log.Fatal(err)
	//	}
	Infer(values []float32) ([]float32, error)

	// Change switches to the weights of another checkpoint in place.
	Change(checkpoint string) error

	// Checkpoint returns the active checkpoint.
	Checkpoint() string

	// InputSize returns the size of the images Run expects.
	InputSize() backend.Size

	// OutputSize returns the size of the output image.
	OutputSize() backend.Size

	// Report lists the nodes the import dropped. A model with dropped nodes computes
	// something other than the original graph.
	Report() Report
}

var _ Model = (*converter.Model)(nil)
