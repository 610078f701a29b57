package params

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
)

// PerLayer is a Loader over a directory with one file per weight, named
// <checkpoint><id>_<modifier>.data and holding little endian float32 values.
type PerLayer struct {
	Dir        string
	checkpoint string
}

var _ Loader = (*PerLayer)(nil)

// NewPerLayer creates a loader reading from dir.
func NewPerLayer(dir string) *PerLayer {
	return &PerLayer{Dir: dir}
}

// Path returns the file holding (id, modifier) under the current checkpoint.
func (p *PerLayer) Path(id, modifier string) string {
	return filepath.Join(p.Dir, Key(p.checkpoint, id, modifier)+".data")
}

// LoadWeights implements Loader.
func (p *PerLayer) LoadWeights(id, modifier string, count int) ([]float32, error) {
	path := p.Path(id, modifier)
	//nolint:gosec // G304: weight paths come from the model directory
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, notFound(path)
	}
	if err != nil {
		return nil, errors.Wrapf(err, "params: failed to read %s", path)
	}
	if len(data)%4 != 0 {
		return nil, errors.Errorf("params: %s is %d bytes, not a float32 array", path, len(data))
	}
	if err := checkCount(path, len(data)/4, count); err != nil {
		return nil, err
	}
	return decodeFloats(data), nil
}

// Checkpoint implements Loader.
func (p *PerLayer) Checkpoint() string { return p.checkpoint }

// SetCheckpoint implements Loader.
func (p *PerLayer) SetCheckpoint(checkpoint string) { p.checkpoint = checkpoint }

// WriteFile stores values in the file LoadWeights would read for (id, modifier).
func (p *PerLayer) WriteFile(id, modifier string, values []float32) error {
	path := p.Path(id, modifier)
	if err := os.WriteFile(path, encodeFloats(values), 0o600); err != nil {
		return errors.Wrapf(err, "params: failed to write %s", path)
	}
	return nil
}

func decodeFloats(data []byte) []float32 {
	out := make([]float32, len(data)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4*i:]))
	}
	return out
}

func encodeFloats(values []float32) []byte {
	data := make([]byte, 4*len(values))
	for i, v := range values {
		binary.LittleEndian.PutUint32(data[4*i:], math.Float32bits(v))
	}
	return data
}
