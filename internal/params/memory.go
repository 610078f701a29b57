package params

// Memory is a Loader over an in-memory table.
type Memory struct {
	checkpoint string
	entries    map[string][]float32
}

var _ Loader = (*Memory)(nil)

// NewMemory creates an empty table.
func NewMemory() *Memory {
	return &Memory{entries: make(map[string][]float32)}
}

// Set stores values for (checkpoint, id, modifier).
func (m *Memory) Set(checkpoint, id, modifier string, values []float32) {
	m.entries[Key(checkpoint, id, modifier)] = append([]float32(nil), values...)
}

// LoadWeights implements Loader. The returned slice is a copy.
func (m *Memory) LoadWeights(id, modifier string, count int) ([]float32, error) {
	key := Key(m.checkpoint, id, modifier)
	values, ok := m.entries[key]
	if !ok {
		return nil, notFound(key)
	}
	if err := checkCount(key, len(values), count); err != nil {
		return nil, err
	}
	return append([]float32(nil), values...), nil
}

// Checkpoint implements Loader.
func (m *Memory) Checkpoint() string { return m.checkpoint }

// SetCheckpoint implements Loader.
func (m *Memory) SetCheckpoint(checkpoint string) { m.checkpoint = checkpoint }
