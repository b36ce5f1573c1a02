package volume

import "mcxprep/internal/models"

func (l Layout) index(d models.Dim, x, y, z int) int {
	if l == RowMajor {
		return x*d.Y*d.Z + y*d.Z + z
	}
	return z*d.X*d.Y + y*d.X + x
}

// Convert re-addresses every cell under the target layout. Cell values and
// count are preserved; only positions change. Empty or degenerate grids and
// grids already in target are left alone.
func (g *Grid) Convert(target Layout) {
	if g.cells == nil || g.Dim.Degenerate() || g.Layout == target {
		return
	}

	d := g.Dim
	converted := make([]Cell, len(g.cells))
	for x := 0; x < d.X; x++ {
		for y := 0; y < d.Y; y++ {
			for z := 0; z < d.Z; z++ {
				converted[target.index(d, x, y, z)] = g.cells[g.Layout.index(d, x, y, z)]
			}
		}
	}

	g.cells = converted
	g.Layout = target
}

// Normalize converts the grid to the canonical layout
func (g *Grid) Normalize() {
	g.Convert(Canonical)
}
