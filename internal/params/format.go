package params

import (
	"sort"
	"time"

	"github.com/pkg/errors"
)

// .bender weight file layout:
//
//	0x00 magic "BNDR"
//	0x04 version   uint32
//	0x08 flags     uint32
//	0x0C index size uint64
//	0x14 JSON index
//	     zero padding to a 64-byte boundary
//	     float32 data
const (
	MagicBytes      = "BNDR"
	FileExtension   = ".bender"
	FormatVersion   = 1
	DataAlignment   = 64
	fixedHeaderSize = 20
	maxIndexSize    = 64 * 1024 * 1024
)

// Errors reading weight files.
var (
	ErrInvalidMagic       = errors.New("params: invalid magic bytes")
	ErrUnsupportedVersion = errors.New("params: unsupported format version")
	ErrChecksumMismatch   = errors.New("params: checksum mismatch: file may be corrupted")
)

// Index is the JSON index of a weight file.
type Index struct {
	CreatedAt time.Time `json:"created_at"`
	// Checksum is the hex SHA-256 of the data section.
	Checksum string  `json:"checksum"`
	Entries  []Entry `json:"entries"`
}

// Entry locates one weight array in the data section.
type Entry struct {
	Key    string `json:"key"`
	Offset int64  `json:"offset"` // bytes from the start of the data section
	Count  int    `json:"count"`  // float32 values
}

// validate checks entries are aligned, in bounds and do not overlap.
func (idx *Index) validate(dataSize int64) error {
	sorted := append([]Entry(nil), idx.Entries...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Offset < sorted[j].Offset })
	seen := make(map[string]bool, len(sorted))
	var end int64
	for _, e := range sorted {
		switch {
		case seen[e.Key]:
			return errors.Errorf("params: duplicate entry %q", e.Key)
		case e.Offset < 0 || e.Count < 0:
			return errors.Errorf("params: entry %q has offset %d count %d", e.Key, e.Offset, e.Count)
		case e.Offset%4 != 0:
			return errors.Errorf("params: entry %q is not float32 aligned", e.Key)
		case e.Offset < end:
			return errors.Errorf("params: entry %q overlaps the previous entry", e.Key)
		}
		seen[e.Key] = true
		end = e.Offset + 4*int64(e.Count)
		if end > dataSize {
			return errors.Errorf("params: entry %q extends beyond the data section", e.Key)
		}
	}
	return nil
}

func alignUp(n int64) int64 {
	return (n + DataAlignment - 1) / DataAlignment * DataAlignment
}
