package volume

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcxprep/internal/models"
	"mcxprep/pkg/mcxerr"
)

func writeVolume(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vol.bin")
	require.NoError(t, os.WriteFile(path, data, 0644))
	return path
}

func pattern(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i % 7)
	}
	return data
}

func TestCellPacking(t *testing.T) {
	for b := 0; b < 256; b++ {
		c := UnpackCell(byte(b))
		assert.Equal(t, byte(b), c.Pack())
		assert.Equal(t, uint8(b&0x7f), c.Medium)
		assert.Equal(t, b >= 128, c.Detectable)
	}

	// The flag never leaks into the medium index
	assert.Equal(t, byte(0x85), Cell{Medium: 0x85, Detectable: true}.Pack())
	assert.Equal(t, byte(0x05), Cell{Medium: 0x85}.Pack())
}

func TestLoadExactSize(t *testing.T) {
	dim := models.Dim{X: 3, Y: 4, Z: 5}
	data := pattern(dim.Len())
	path := writeVolume(t, data)

	g, err := Load(path, dim, RowMajor)
	require.NoError(t, err)
	assert.Equal(t, dim, g.Dim)
	assert.Equal(t, RowMajor, g.Layout)
	assert.Equal(t, data, g.Bytes())
}

func TestLoadSizeMismatch(t *testing.T) {
	dim := models.Dim{X: 3, Y: 4, Z: 5}

	for _, n := range []int{0, dim.Len() - 1, dim.Len() + 1, 2 * dim.Len()} {
		path := writeVolume(t, pattern(n))
		g, err := Load(path, dim, Canonical)
		assert.Nil(t, g)
		require.Error(t, err, "length %d", n)
		assert.Equal(t, mcxerr.FormatError, mcxerr.KindOf(err), "length %d", n)
		assert.Equal(t, mcxerr.CodeVolumeSize, mcxerr.CodeOf(err))
	}
}

func TestLoadOversizedDims(t *testing.T) {
	path := writeVolume(t, pattern(8))

	for _, dim := range []models.Dim{
		{X: 2097152, Y: 2097152, Z: 2097152},
		{X: 4000, Y: 4000, Z: 4000},
		{X: -2, Y: -2, Z: 2},
	} {
		g, err := Load(path, dim, Canonical)
		assert.Nil(t, g)
		require.Error(t, err, "dims %v", dim)
		assert.Equal(t, mcxerr.FormatError, mcxerr.KindOf(err), "dims %v", dim)
		assert.Equal(t, mcxerr.CodeVolumeSize, mcxerr.CodeOf(err), "dims %v", dim)
	}
}

func TestFromBytesOversizedDims(t *testing.T) {
	_, err := FromBytes(models.Dim{X: 2097152, Y: 2097152, Z: 2097152}, Canonical, pattern(8))
	require.Error(t, err)
	assert.Equal(t, mcxerr.FormatError, mcxerr.KindOf(err))

	// 2^21 cubed wraps to 0 in 64-bit arithmetic
	_, err = FromBytes(models.Dim{X: 2097152, Y: 2097152, Z: 2097152}, Canonical, nil)
	require.Error(t, err)
	assert.Equal(t, mcxerr.CodeVolumeSize, mcxerr.CodeOf(err))
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.bin"), models.Dim{X: 1, Y: 1, Z: 1}, Canonical)
	require.Error(t, err)
	assert.Equal(t, mcxerr.IOError, mcxerr.KindOf(err))
	assert.Equal(t, mcxerr.CodeVolumeMissing, mcxerr.CodeOf(err))
}

func TestReplace(t *testing.T) {
	g := New(models.Dim{X: 2, Y: 2, Z: 2}, Canonical)
	next, err := FromBytes(models.Dim{X: 1, Y: 2, Z: 3}, RowMajor, pattern(6))
	require.NoError(t, err)

	g.Replace(next)
	assert.Equal(t, models.Dim{X: 1, Y: 2, Z: 3}, g.Dim)
	assert.Equal(t, RowMajor, g.Layout)
	assert.Equal(t, pattern(6), g.Bytes())
	assert.Zero(t, next.Len())
}

func TestIndexCoordsInverse(t *testing.T) {
	dim := models.Dim{X: 3, Y: 4, Z: 5}
	for _, layout := range []Layout{Canonical, RowMajor} {
		g := New(dim, layout)
		for i := 0; i < dim.Len(); i++ {
			x, y, z := g.Coords(i)
			require.True(t, g.InBounds(x, y, z))
			assert.Equal(t, i, g.Index(x, y, z), "%s idx %d", layout, i)
		}
	}

	g := New(dim, Canonical)
	assert.Equal(t, 1, g.Index(1, 0, 0))
	assert.Equal(t, 12, g.Index(0, 0, 1))
	g.Layout = RowMajor
	assert.Equal(t, 1, g.Index(0, 0, 1))
	assert.Equal(t, 20, g.Index(1, 0, 0))
}

func TestConvertRoundTrip(t *testing.T) {
	dims := []models.Dim{{X: 1, Y: 1, Z: 1}, {X: 2, Y: 3, Z: 4}, {X: 7, Y: 1, Z: 5}, {X: 4, Y: 4, Z: 4}}
	for _, dim := range dims {
		data := pattern(dim.Len())
		for i := range data {
			data[i] = byte(i)
		}
		g, err := FromBytes(dim, RowMajor, data)
		require.NoError(t, err)

		g.Normalize()
		assert.Equal(t, Canonical, g.Layout)
		assert.Equal(t, dim.Len(), g.Len())
		g.Convert(RowMajor)
		assert.Equal(t, data, g.Bytes(), "dim %v", dim)
	}
}

func TestConvertAddressing(t *testing.T) {
	dim := models.Dim{X: 2, Y: 3, Z: 4}
	g := New(dim, RowMajor)
	for x := 0; x < dim.X; x++ {
		for y := 0; y < dim.Y; y++ {
			for z := 0; z < dim.Z; z++ {
				g.Set(x, y, z, Cell{Medium: uint8(x*12 + y*4 + z)})
			}
		}
	}
	want := make(map[[3]int]Cell)
	for i := 0; i < g.Len(); i++ {
		x, y, z := g.Coords(i)
		want[[3]int{x, y, z}] = g.Cells()[i]
	}

	g.Normalize()
	for k, c := range want {
		assert.Equal(t, c, g.Cells()[k[2]*dim.X*dim.Y+k[1]*dim.X+k[0]])
	}
}

func TestConvertNoOp(t *testing.T) {
	g := &Grid{Dim: models.Dim{X: 2, Y: 0, Z: 2}, Layout: RowMajor}
	g.Normalize()
	assert.Equal(t, RowMajor, g.Layout)

	g = &Grid{Dim: models.Dim{X: 2, Y: 2, Z: 2}, Layout: RowMajor}
	g.Normalize()
	assert.Equal(t, RowMajor, g.Layout, "grid without a buffer is untouched")
}

func TestMaxMediumAndCount(t *testing.T) {
	g, err := FromBytes(models.Dim{X: 2, Y: 2, Z: 1}, Canonical, []byte{0, 3, 0x81, 0x82})
	require.NoError(t, err)
	assert.Equal(t, uint8(3), g.MaxMedium())
	assert.Equal(t, 2, g.CountDetectable())
}
