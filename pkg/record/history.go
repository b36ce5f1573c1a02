// Package record reads and writes the binary files exchanged with the
// transport kernel: the history header, detected photon paths and raw
// float32 field dumps.
//
// All records are little-endian. The photon-path file is one or more blocks,
// each a History header followed by SavedPhoton*ColCount float32 values.
package record

import (
	"encoding/binary"
	"errors"
	"io"

	"mcxprep/pkg/mcxerr"
)

// ByteOrder is the byte order of every record
var ByteOrder = binary.LittleEndian

// Magic tags the start of every history header
var Magic = [4]byte{'M', 'C', 'X', 'H'}

// Version is the header format written by this package
const Version = 1

// HistorySize is the encoded size of a History in bytes
const HistorySize = 64

// History summarizes one simulation run. Its layout is fixed on disk.
type History struct {
	Magic       [4]byte
	Version     uint32
	MaxMedia    uint32
	DetNum      uint32
	ColCount    uint32
	TotalPhoton uint32
	Detected    uint32
	SavedPhoton uint32
	UnitInMM    float32
	SeedByte    uint32
	Reserved    [6]int32
}

// NewHistory returns a header with the magic tag, current version and a
// 1 mm grid unit
func NewHistory() History {
	return History{Magic: Magic, Version: Version, UnitInMM: 1}
}

// WriteHistory encodes h to w
func WriteHistory(w io.Writer, h *History) error {
	return binary.Write(w, ByteOrder, h)
}

// ReadHistory decodes one header from r. io.EOF is returned untouched when r
// is exhausted before the first byte. Headers written by a newer version
// have their reserved fields cleared, since their meaning is unknown here.
func ReadHistory(r io.Reader) (History, error) {
	var h History
	if err := binary.Read(r, ByteOrder, &h); err != nil {
		if errors.Is(err, io.EOF) {
			return h, io.EOF
		}
		return h, mcxerr.Wrap(err, mcxerr.FormatError, mcxerr.CodeIncompleteInput,
			"truncated history header")
	}
	if h.Magic != Magic {
		return h, mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeIncompleteInput,
			"bad history magic %q", h.Magic[:])
	}
	if h.Version > Version {
		h.Reserved = [6]int32{}
	}
	return h, nil
}
