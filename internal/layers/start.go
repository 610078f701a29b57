package layers

import (
	"github.com/xmartlabs/Bender-sub000/internal/backend"
)

// StartID is the id of the root layer of every network.
const StartID = "start"

// Start is the root of a network. Its output is the image handed to each run.
type Start struct {
	Base
	input backend.Image
}

var _ Passthrough = (*Start)(nil)

// NewStart creates the root layer for inputs of the given size.
func NewStart(size backend.Size) *Start {
	s := &Start{Base: NewBase(StartID)}
	s.size = size
	return s
}

// SetInput assigns the image the next run reads.
func (s *Start) SetInput(img backend.Image) { s.input = img }

// Output returns the current input image.
func (s *Start) Output() backend.Image { return s.input }

// Initialize validates the input size.
func (s *Start) Initialize(*Context) error {
	if s.size.Width <= 0 || s.size.Height <= 0 || s.size.Channels <= 0 {
		fatalf(s.id, "invalid input size %s", s.size)
	}
	s.initialized = true
	return nil
}

// Execute does nothing.
func (s *Start) Execute(backend.CommandBuffer) {}

func (s *Start) passthrough() {}

// Dummy forwards its single input without encoding work. Input placeholders of an imported
// graph become Dummy layers.
type Dummy struct {
	Base
}

var _ Passthrough = (*Dummy)(nil)

// NewDummy creates a pass-through layer.
func NewDummy(id string) *Dummy {
	return &Dummy{Base: NewBase(id)}
}

// Output returns the input's output.
func (d *Dummy) Output() backend.Image {
	return d.expectInputs(1)[0].Output()
}

// Initialize takes the input size.
func (d *Dummy) Initialize(*Context) error {
	d.size = d.expectInputs(1)[0].OutputSize()
	d.initialized = true
	return nil
}

// Execute does nothing.
func (d *Dummy) Execute(backend.CommandBuffer) {}

func (d *Dummy) passthrough() {}

// Identity copies its input into its own output image.
type Identity struct {
	Base
}

// NewIdentity creates an identity layer.
func NewIdentity(id string) *Identity {
	return &Identity{Base: NewBase(id)}
}

// Initialize allocates an output the size of the input.
func (l *Identity) Initialize(ctx *Context) error {
	return l.allocate(ctx, l.expectInputs(1)[0].OutputSize())
}

// Execute copies the input.
func (l *Identity) Execute(cmd backend.CommandBuffer) {
	l.encode(cmd, backend.KernelCopy, l.expectInputs(1), nil, backend.Params{})
}
