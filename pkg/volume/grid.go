// Package volume holds the voxelized medium handed to the transport kernel.
// A Grid owns its cells exclusively; loading or converting a grid always
// installs a complete new buffer in a single step.
package volume

import (
	"fmt"
	"io"
	"math"
	"os"

	"mcxprep/internal/models"
	"mcxprep/pkg/mcxerr"
)

// Layout is the linearization convention of a grid buffer
type Layout int

const (
	// Canonical addresses (x,y,z) at z*nx*ny + y*nx + x, x varying fastest.
	// Masking and the kernel require this layout.
	Canonical Layout = iota

	// RowMajor addresses (x,y,z) at x*ny*nz + y*nz + z, z varying fastest
	RowMajor
)

func (l Layout) String() string {
	if l == RowMajor {
		return "row-major"
	}
	return "canonical"
}

const detectableBit = 1 << 7

// Cell is one voxel: a medium index plus the detector-visibility flag
type Cell struct {
	// Medium is the index into the media table, 0 for background
	Medium uint8

	// Detectable is set when a detector can register photons leaving
	// through this voxel
	Detectable bool
}

// Pack encodes the cell into its on-disk byte: the medium in the low
// seven bits and the flag in bit 7
func (c Cell) Pack() byte {
	b := c.Medium &^ detectableBit
	if c.Detectable {
		b |= detectableBit
	}
	return b
}

// UnpackCell decodes an on-disk voxel byte
func UnpackCell(b byte) Cell {
	return Cell{Medium: b &^ detectableBit, Detectable: b&detectableBit != 0}
}

// Background reports whether the cell is ambient medium
func (c Cell) Background() bool {
	return c.Medium == 0
}

// Grid is a dense 3D voxel array
type Grid struct {
	Dim    models.Dim
	Layout Layout
	cells  []Cell
}

// New returns a background-filled grid
func New(dim models.Dim, layout Layout) *Grid {
	return &Grid{Dim: dim, Layout: layout, cells: make([]Cell, dim.Len())}
}

// voxelCount returns dim.Len(), or false when an axis is negative or the
// product does not fit in an int
func voxelCount(dim models.Dim) (int, bool) {
	if dim.X < 0 || dim.Y < 0 || dim.Z < 0 {
		return 0, false
	}
	n := 1
	for _, v := range []int{dim.X, dim.Y, dim.Z} {
		if v != 0 && n > math.MaxInt/v {
			return 0, false
		}
		n *= v
	}
	return n, true
}

// FromBytes builds a grid from packed voxel bytes laid out as layout
func FromBytes(dim models.Dim, layout Layout, raw []byte) (*Grid, error) {
	if n, ok := voxelCount(dim); !ok || len(raw) != n {
		return nil, mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeVolumeSize,
			"buffer holds %d voxels, dimensions %dx%dx%d need %d",
			len(raw), dim.X, dim.Y, dim.Z, dim.Len())
	}
	g := New(dim, layout)
	for i, b := range raw {
		g.cells[i] = UnpackCell(b)
	}
	return g, nil
}

// Load reads a headerless volume file of exactly dim.Len() bytes
func Load(path string, dim models.Dim, layout Layout) (*Grid, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeVolumeMissing,
			"the specified binary volume file does not exist")
	}
	defer f.Close()

	datalen, ok := voxelCount(dim)
	if !ok {
		return nil, mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeVolumeSize,
			"dimensions %dx%dx%d are out of range", dim.X, dim.Y, dim.Z)
	}
	if st, err := f.Stat(); err == nil && st.Mode().IsRegular() && st.Size() != int64(datalen) {
		return nil, mcxerr.New(mcxerr.FormatError, mcxerr.CodeVolumeSize,
			"file size does not match specified dimensions")
	}

	raw := make([]byte, datalen)
	n, err := io.ReadFull(f, raw)
	if err != nil && err != io.ErrUnexpectedEOF && err != io.EOF {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeVolumeMissing,
			"failed to read volume file")
	}
	if n != datalen {
		return nil, mcxerr.New(mcxerr.FormatError, mcxerr.CodeVolumeSize,
			"file size does not match specified dimensions")
	}

	// Anything past datalen is also a size mismatch
	var extra [1]byte
	if m, _ := f.Read(extra[:]); m > 0 {
		return nil, mcxerr.New(mcxerr.FormatError, mcxerr.CodeVolumeSize,
			"file size does not match specified dimensions")
	}

	return FromBytes(dim, layout, raw)
}

// Replace installs other's buffer, dimensions and layout in g.
// other is emptied so the buffer has a single owner.
func (g *Grid) Replace(other *Grid) {
	g.Dim, g.Layout, g.cells = other.Dim, other.Layout, other.cells
	other.Dim, other.cells = models.Dim{}, nil
}

// Len returns the number of cells held
func (g *Grid) Len() int {
	return len(g.cells)
}

// Cells exposes the underlying buffer in the grid's own layout
func (g *Grid) Cells() []Cell {
	return g.cells
}

// Index returns the buffer offset of (x, y, z) under the grid's layout
func (g *Grid) Index(x, y, z int) int {
	return g.Layout.index(g.Dim, x, y, z)
}

// Coords is the inverse of Index
func (g *Grid) Coords(idx int) (x, y, z int) {
	d := g.Dim
	if g.Layout == RowMajor {
		z = idx % d.Z
		y = (idx / d.Z) % d.Y
		x = idx / (d.Y * d.Z)
		return x, y, z
	}
	x = idx % d.X
	y = (idx / d.X) % d.Y
	z = idx / (d.X * d.Y)
	return x, y, z
}

// InBounds reports whether (x, y, z) lies inside the grid
func (g *Grid) InBounds(x, y, z int) bool {
	return x >= 0 && y >= 0 && z >= 0 && x < g.Dim.X && y < g.Dim.Y && z < g.Dim.Z
}

// At returns the cell at (x, y, z)
func (g *Grid) At(x, y, z int) Cell {
	return g.cells[g.Index(x, y, z)]
}

// Set stores c at (x, y, z)
func (g *Grid) Set(x, y, z int, c Cell) {
	g.cells[g.Index(x, y, z)] = c
}

// Bytes packs the grid into voxel bytes in its current layout
func (g *Grid) Bytes() []byte {
	raw := make([]byte, len(g.cells))
	for i, c := range g.cells {
		raw[i] = c.Pack()
	}
	return raw
}

// MaxMedium returns the largest medium index present
func (g *Grid) MaxMedium() uint8 {
	var m uint8
	for _, c := range g.cells {
		if c.Medium > m {
			m = c.Medium
		}
	}
	return m
}

// CountDetectable returns how many cells carry the visibility flag
func (g *Grid) CountDetectable() int {
	n := 0
	for _, c := range g.cells {
		if c.Detectable {
			n++
		}
	}
	return n
}

func (g *Grid) String() string {
	return fmt.Sprintf("%dx%dx%d %s grid", g.Dim.X, g.Dim.Y, g.Dim.Z, g.Layout)
}
