package params

import (
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"encoding/json"
	"os"

	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// SingleFile is a Loader over one memory-mapped .bender file. Only the index is parsed when
// the file is opened; weight data is read on demand through the OS page cache.
//
// Always call Close when done to unmap the file.
type SingleFile struct {
	file       *os.File
	data       []byte // mmap'd region (read-only)
	index      Index
	entries    map[string]Entry
	dataOffset int64
	checkpoint string
	closed     bool
}

var _ Loader = (*SingleFile)(nil)

// OpenFile maps a .bender file.
func OpenFile(path string) (*SingleFile, error) {
	//nolint:gosec // G304: weight paths come from user input
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "params: failed to open weight file")
	}
	stat, err := file.Stat()
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "params: failed to stat weight file")
	}
	if stat.Size() < fixedHeaderSize {
		_ = file.Close()
		return nil, errors.Errorf("params: %s too small: %d bytes", path, stat.Size())
	}

	data, err := mmapFile(file, stat.Size())
	if err != nil {
		_ = file.Close()
		return nil, errors.Wrap(err, "params: mmap failed")
	}

	f := &SingleFile{file: file, data: data}
	if err := f.parseIndex(); err != nil {
		_ = f.Close()
		return nil, errors.WithMessagef(err, "params: %s", path)
	}
	klog.V(1).Infof("params: mapped %s with %d entries", path, len(f.entries))
	return f, nil
}

func (f *SingleFile) parseIndex() error {
	if string(f.data[0:4]) != MagicBytes {
		return ErrInvalidMagic
	}
	if version := binary.LittleEndian.Uint32(f.data[4:8]); version != FormatVersion {
		return errors.WithMessagef(ErrUnsupportedVersion, "got %d, expected %d", version, FormatVersion)
	}
	indexSize := binary.LittleEndian.Uint64(f.data[12:20])
	if indexSize > maxIndexSize {
		return errors.Errorf("index of %d bytes exceeds the maximum", indexSize)
	}
	indexEnd := fixedHeaderSize + int64(indexSize)
	if indexEnd > int64(len(f.data)) {
		return errors.Errorf("index extends beyond file: index_end=%d, file_size=%d", indexEnd, len(f.data))
	}
	if err := json.Unmarshal(f.data[fixedHeaderSize:indexEnd], &f.index); err != nil {
		return errors.Wrap(err, "failed to parse index JSON")
	}

	f.dataOffset = alignUp(indexEnd)
	dataSize := int64(len(f.data)) - f.dataOffset
	if dataSize < 0 {
		dataSize = 0
	}
	if err := f.index.validate(dataSize); err != nil {
		return err
	}
	f.entries = make(map[string]Entry, len(f.index.Entries))
	for _, e := range f.index.Entries {
		f.entries[e.Key] = e
	}
	return nil
}

// Index returns the parsed index.
func (f *SingleFile) Index() Index { return f.index }

// Verify recomputes the data checksum. It reads the whole file.
func (f *SingleFile) Verify() error {
	if f.closed {
		return errors.New("params: file is closed")
	}
	var section []byte
	if f.dataOffset < int64(len(f.data)) {
		section = f.data[f.dataOffset:]
	}
	sum := sha256.Sum256(section)
	if hex.EncodeToString(sum[:]) != f.index.Checksum {
		return ErrChecksumMismatch
	}
	return nil
}

// LoadWeights implements Loader. The values are copied out of the mapping.
func (f *SingleFile) LoadWeights(id, modifier string, count int) ([]float32, error) {
	if f.closed {
		return nil, errors.New("params: file is closed")
	}
	key := Key(f.checkpoint, id, modifier)
	e, ok := f.entries[key]
	if !ok {
		return nil, notFound(key)
	}
	if err := checkCount(key, e.Count, count); err != nil {
		return nil, err
	}
	start := f.dataOffset + e.Offset
	return decodeFloats(f.data[start : start+4*int64(e.Count)]), nil
}

// Checkpoint implements Loader.
func (f *SingleFile) Checkpoint() string { return f.checkpoint }

// SetCheckpoint implements Loader.
func (f *SingleFile) SetCheckpoint(checkpoint string) { f.checkpoint = checkpoint }

// Close unmaps and closes the file.
func (f *SingleFile) Close() error {
	if f.closed {
		return nil
	}
	f.closed = true

	var err error
	if f.data != nil {
		err = munmapFile(f.data)
		f.data = nil
	}
	if closeErr := f.file.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	return err
}
