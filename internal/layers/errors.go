package layers

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrNotInitialized is returned when weights are reloaded on a layer that was never
// initialized.
var ErrNotInitialized = errors.New("layers: not initialized")

// ShapeError reports a layer whose inputs cannot produce a valid output, such as concatenated
// inputs that disagree off the concat axis. It is raised as a panic during Initialize.
type ShapeError struct {
	Layer  string
	Reason string
}

// Error implements the error interface.
func (e *ShapeError) Error() string {
	return fmt.Sprintf("layer %s: %s", e.Layer, e.Reason)
}

func fatalf(id, format string, args ...any) {
	panic(&ShapeError{Layer: id, Reason: fmt.Sprintf(format, args...)})
}
