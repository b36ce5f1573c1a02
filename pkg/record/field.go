package record

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"os"

	"mcxprep/pkg/mcxerr"
)

// create opens path for writing, truncating it or appending to it
func create(path string, appendMode bool) (*os.File, error) {
	flags := os.O_WRONLY | os.O_CREATE | os.O_TRUNC
	if appendMode {
		flags = os.O_WRONLY | os.O_CREATE | os.O_APPEND
	}
	f, err := os.OpenFile(path, flags, 0644)
	if err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeSaveData, "can not save data to disk")
	}
	return f, nil
}

// SaveField writes data as raw float32 values to path. When h is non-nil
// the header is written first. With appendMode the data is added to the end
// of an existing file.
func SaveField(path string, data []float32, appendMode bool, h *History) error {
	f, err := create(path, appendMode)
	if err != nil {
		return err
	}

	w := bufio.NewWriter(f)
	if h != nil {
		err = WriteHistory(w, h)
	}
	if err == nil && len(data) > 0 {
		err = binary.Write(w, ByteOrder, data)
	}
	if err == nil {
		err = w.Flush()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeSaveData, "can not save data to disk")
	}
	return nil
}

// ReadField reads n float32 values from a headerless field file
func ReadField(path string, n int) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeSaveData, "can not read field file")
	}
	defer f.Close()

	data := make([]float32, n)
	if err := binary.Read(bufio.NewReader(f), ByteOrder, data); err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.FormatError, mcxerr.CodeVolumeSize,
			fmt.Sprintf("field file holds fewer than %d values", n))
	}
	return data, nil
}
