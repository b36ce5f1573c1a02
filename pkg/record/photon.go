package record

import (
	"bufio"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"

	"mcxprep/pkg/mcxerr"
)

// PhotonPath is one detected photon: the detector id, the partial path
// length in each medium 1..MaxMedia, then the exit weight
type PhotonPath []float32

// Detector returns the id of the detector that captured the photon
func (p PhotonPath) Detector() int {
	return int(p[0])
}

// PathLength returns the path length travelled in medium m, 1-based
func (p PhotonPath) PathLength(m int) float32 {
	return p[m]
}

// Weight returns the photon weight at exit
func (p PhotonPath) Weight() float32 {
	return p[len(p)-1]
}

// Block is one header with the photon rows that follow it
type Block struct {
	History History
	Data    []float32
}

// Rows splits the block data into ColCount-wide photon records
func (b *Block) Rows() []PhotonPath {
	cols := int(b.History.ColCount)
	if cols == 0 {
		return nil
	}
	rows := make([]PhotonPath, 0, len(b.Data)/cols)
	for i := 0; i+cols <= len(b.Data); i += cols {
		rows = append(rows, PhotonPath(b.Data[i:i+cols:i+cols]))
	}
	return rows
}

// SavePhotonPaths writes h followed by the first count rows of ppath.
// h.ColCount sets the row width.
func SavePhotonPaths(path string, h History, ppath []float32, count int, appendMode bool) error {
	n := count * int(h.ColCount)
	if count < 0 || n > len(ppath) {
		return mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeSaveData,
			"%d photons of %d columns need %d values, buffer has %d",
			count, h.ColCount, n, len(ppath))
	}
	return SaveField(path, ppath[:n], appendMode, &h)
}

// ReadPhotonPaths reads every block of a photon-path file
func ReadPhotonPaths(path string) ([]Block, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeSaveData, "can not read photon path file")
	}
	defer f.Close()
	return DecodePhotonPaths(bufio.NewReader(f))
}

// DecodePhotonPaths reads header and row blocks from r until it is exhausted.
// All blocks must agree on ColCount.
func DecodePhotonPaths(r io.Reader) ([]Block, error) {
	var blocks []Block
	for {
		h, err := ReadHistory(r)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if len(blocks) > 0 && h.ColCount != blocks[0].History.ColCount {
			return nil, mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeIncompleteInput,
				"block %d has %d columns, expected %d",
				len(blocks), h.ColCount, blocks[0].History.ColCount)
		}

		data, err := readValues(r, uint64(h.SavedPhoton)*uint64(h.ColCount))
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, Block{History: h, Data: data})
	}
	return blocks, nil
}

// chunkValues bounds how many values are buffered per read, so the memory
// used follows the bytes actually present rather than the header counts
const chunkValues = 1 << 16

// readValues reads n float32 values from r in bounded chunks
func readValues(r io.Reader, n uint64) ([]float32, error) {
	if n > math.MaxInt/4 {
		return nil, mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeIncompleteInput,
			"truncated photon path data: header declares %d values", n)
	}
	data := make([]float32, 0, min(n, chunkValues))
	buf := make([]float32, min(n, chunkValues))
	for left := n; left > 0; {
		k := min(left, chunkValues)
		if err := binary.Read(r, ByteOrder, buf[:k]); err != nil {
			return nil, mcxerr.Wrap(err, mcxerr.FormatError, mcxerr.CodeIncompleteInput,
				"truncated photon path data")
		}
		data = append(data, buf[:k]...)
		left -= k
	}
	return data, nil
}
