package params

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"io"
	"os"
	"sort"
	"time"

	"github.com/pkg/errors"
)

// Writer collects weights and writes them as a .bender file.
type Writer struct {
	values map[string][]float32
}

// NewWriter creates an empty writer.
func NewWriter() *Writer {
	return &Writer{values: make(map[string][]float32)}
}

// Add stores values for (checkpoint, id, modifier), replacing any previous entry.
func (w *Writer) Add(checkpoint, id, modifier string, values []float32) {
	w.values[Key(checkpoint, id, modifier)] = append([]float32(nil), values...)
}

// WriteTo writes the file. Entries are sorted by key so output is reproducible apart from
// the creation time.
func (w *Writer) WriteTo(out io.Writer) (int64, error) {
	keys := make([]string, 0, len(w.values))
	for k := range w.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var section bytes.Buffer
	index := Index{CreatedAt: time.Now().UTC(), Entries: make([]Entry, 0, len(keys))}
	for _, k := range keys {
		index.Entries = append(index.Entries, Entry{Key: k, Offset: int64(section.Len()), Count: len(w.values[k])})
		section.Write(encodeFloats(w.values[k]))
	}
	sum := sha256.Sum256(section.Bytes())
	index.Checksum = hex.EncodeToString(sum[:])

	indexJSON, err := json.Marshal(index)
	if err != nil {
		return 0, errors.Wrap(err, "params: failed to marshal index")
	}

	var header bytes.Buffer
	header.WriteString(MagicBytes)
	_ = binary.Write(&header, binary.LittleEndian, uint32(FormatVersion))
	_ = binary.Write(&header, binary.LittleEndian, uint32(0))
	_ = binary.Write(&header, binary.LittleEndian, uint64(len(indexJSON)))
	header.Write(indexJSON)
	header.Write(make([]byte, alignUp(int64(header.Len()))-int64(header.Len())))

	n, err := out.Write(header.Bytes())
	total := int64(n)
	if err != nil {
		return total, errors.Wrap(err, "params: failed to write header")
	}
	n, err = out.Write(section.Bytes())
	total += int64(n)
	if err != nil {
		return total, errors.Wrap(err, "params: failed to write data")
	}
	return total, nil
}

// WriteFile writes the file to path.
func (w *Writer) WriteFile(path string) error {
	//nolint:gosec // G304: output path comes from user input
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrap(err, "params: failed to create weight file")
	}
	if _, err := w.WriteTo(f); err != nil {
		_ = f.Close()
		return err
	}
	return errors.Wrap(f.Close(), "params: failed to close weight file")
}
