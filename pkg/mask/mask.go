// Package mask flags the surface voxels each detector can see.
//
// A voxel is detectable when it is non-background, has at least one
// background voxel among its 26 neighbours, and lies inside the search sphere
// of some detector. Photons can only be registered when they leave the medium
// through such a voxel.
package mask

import (
	"math"
	"os"

	"gonum.org/v1/gonum/spatial/r3"

	"mcxprep/internal/models"
	"mcxprep/pkg/mcxerr"
	"mcxprep/pkg/volume"
)

// padded is a solid/background map of a grid surrounded by one layer of
// background on every face, so the 26-neighbourhood of any real voxel is
// always addressable.
type padded struct {
	dx, dy, dz int
	solid      []bool
}

func newPadded(g *volume.Grid) *padded {
	p := &padded{dx: g.Dim.X + 2, dy: g.Dim.Y + 2, dz: g.Dim.Z + 2}
	p.solid = make([]bool, p.dx*p.dy*p.dz)

	cells := g.Cells()
	for z := 0; z < g.Dim.Z; z++ {
		for y := 0; y < g.Dim.Y; y++ {
			row := cells[z*g.Dim.X*g.Dim.Y+y*g.Dim.X:]
			dst := p.solid[p.idx(1, y+1, z+1):]
			for x := 0; x < g.Dim.X; x++ {
				dst[x] = !row[x].Background()
			}
		}
	}
	return p
}

func (p *padded) idx(x, y, z int) int {
	return z*p.dy*p.dx + y*p.dx + x
}

// onSurface reports whether the unpadded voxel (x, y, z) is solid and
// touches background through a face, edge or corner
func (p *padded) onSurface(x, y, z int) bool {
	c := p.idx(x+1, y+1, z+1)
	if !p.solid[c] {
		return false
	}
	for k := -1; k <= 1; k++ {
		for j := -1; j <= 1; j++ {
			for i := -1; i <= 1; i++ {
				if !p.solid[c+k*p.dy*p.dx+j*p.dx+i] {
					return true
				}
			}
		}
	}
	return false
}

// Mask sets the Detectable flag on every surface voxel within reach of a
// detector and returns how many cells were newly flagged. Flags already set
// are kept. The grid must be in the canonical layout.
func Mask(g *volume.Grid, detectors []models.Detector) (int, error) {
	if g.Layout != volume.Canonical {
		return 0, mcxerr.New(mcxerr.FormatError, mcxerr.CodeLayout,
			"detector masking needs a canonical volume")
	}
	if len(detectors) == 0 || g.Len() == 0 {
		return 0, nil
	}

	p := newPadded(g)
	cells := g.Cells()
	marked := 0

	for _, det := range detectors {
		radius := float64(det.Radius())
		reach := int(math.Ceil(radius))
		limit := (radius + 1) * (radius + 1)
		center := r3.Vec{
			X: math.Floor(float64(det.Pos.X)),
			Y: math.Floor(float64(det.Pos.Y)),
			Z: math.Floor(float64(det.Pos.Z)),
		}
		cx, cy, cz := int(center.X), int(center.Y), int(center.Z)

		// The search cube clipped to the grid
		x0, x1 := max(cx-reach, 0), min(cx+reach, g.Dim.X-1)
		y0, y1 := max(cy-reach, 0), min(cy+reach, g.Dim.Y-1)
		z0, z1 := max(cz-reach, 0), min(cz+reach, g.Dim.Z-1)

		for z := z0; z <= z1; z++ {
			for y := y0; y <= y1; y++ {
				for x := x0; x <= x1; x++ {
					off := r3.Vec{X: float64(x - cx), Y: float64(y - cy), Z: float64(z - cz)}
					if r3.Dot(off, off) > limit {
						continue
					}
					if !p.onSurface(x, y, z) {
						continue
					}
					i := g.Index(x, y, z)
					if !cells[i].Detectable {
						cells[i].Detectable = true
						marked++
					}
				}
			}
		}
	}
	return marked, nil
}

// Dump writes the packed grid to path, one byte per voxel
func Dump(g *volume.Grid, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeMaskFile, "can not save mask file")
	}

	raw := g.Bytes()
	n, err := f.Write(raw)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil || n != g.Dim.Len() {
		return mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeMaskFile, "can not save mask file")
	}
	return nil
}
