package mask

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcxprep/internal/models"
	"mcxprep/pkg/mcxerr"
	"mcxprep/pkg/volume"
)

func solidCube(n int) *volume.Grid {
	g := volume.New(models.Dim{X: n, Y: n, Z: n}, volume.Canonical)
	for i := range g.Cells() {
		g.Cells()[i].Medium = 1
	}
	return g
}

func TestMaskCornerScenario(t *testing.T) {
	g := solidCube(4)
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				g.Set(x, y, z, volume.Cell{})
			}
		}
	}

	n, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 3, Y: 3, Z: 3}, 1)})
	require.NoError(t, err)
	assert.Equal(t, 8, n)

	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				want := x >= 2 && y >= 2 && z >= 2
				assert.Equal(t, want, g.At(x, y, z).Detectable, "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestMaskInteriorExcluded(t *testing.T) {
	g := solidCube(5)

	n, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 2, Y: 2, Z: 2}, 2)})
	require.NoError(t, err)

	// 98 surface voxels minus the 8 corners at squared distance 12 > 9
	assert.Equal(t, 90, n)
	for z := 0; z < 5; z++ {
		for y := 0; y < 5; y++ {
			for x := 0; x < 5; x++ {
				interior := x > 0 && x < 4 && y > 0 && y < 4 && z > 0 && z < 4
				corner := (x == 0 || x == 4) && (y == 0 || y == 4) && (z == 0 || z == 4)
				want := !interior && !corner
				assert.Equal(t, want, g.At(x, y, z).Detectable, "voxel (%d,%d,%d)", x, y, z)
			}
		}
	}
}

func TestMaskSphereNotCube(t *testing.T) {
	// A flat slab: every voxel is on the surface, so only distance decides
	g := volume.New(models.Dim{X: 9, Y: 9, Z: 1}, volume.Canonical)
	for i := range g.Cells() {
		g.Cells()[i].Medium = 2
	}

	_, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 4, Y: 4, Z: 0}, 3)})
	require.NoError(t, err)

	for y := 0; y < 9; y++ {
		for x := 0; x < 9; x++ {
			dx, dy := x-4, y-4
			want := dx >= -3 && dx <= 3 && dy >= -3 && dy <= 3 && dx*dx+dy*dy <= 16
			assert.Equal(t, want, g.At(x, y, 0).Detectable, "voxel (%d,%d)", x, y)
		}
	}
	assert.False(t, g.At(1, 1, 0).Detectable, "cube corner at squared distance 18")
	assert.True(t, g.At(1, 4, 0).Detectable)
}

func TestMaskIdempotent(t *testing.T) {
	g := solidCube(6)
	g.Set(3, 3, 3, volume.Cell{})
	dets := []models.Detector{
		models.NewDetector(models.Vec3{X: 0, Y: 0, Z: 0}, 2.5),
		models.NewDetector(models.Vec3{X: 3, Y: 3, Z: 3}, 1),
	}

	first, err := Mask(g, dets)
	require.NoError(t, err)
	once := g.Bytes()

	second, err := Mask(g, dets)
	require.NoError(t, err)
	assert.Positive(t, first)
	assert.Zero(t, second)
	assert.Equal(t, once, g.Bytes())
}

func TestMaskOverlappingDetectors(t *testing.T) {
	g := solidCube(4)
	det := models.NewDetector(models.Vec3{X: 0, Y: 0, Z: 0}, 1)

	n, err := Mask(g, []models.Detector{det, det})
	require.NoError(t, err)
	// (1,1,1) only touches solid voxels
	assert.Equal(t, 7, n)
	assert.Equal(t, 7, g.CountDetectable())
}

func TestMaskLargeRadiusClippedToGrid(t *testing.T) {
	g := solidCube(4)

	// Every surface voxel is in reach: 64 minus the 2x2x2 interior
	n, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 1, Y: 1, Z: 1}, 400)})
	require.NoError(t, err)
	assert.Equal(t, 56, n)
	assert.False(t, g.At(1, 1, 1).Detectable)
	assert.False(t, g.At(2, 2, 2).Detectable)

	// A detector far outside the grid whose sphere still covers a corner
	h := solidCube(4)
	n, err = Mask(h, []models.Detector{models.NewDetector(models.Vec3{X: 9, Y: 3, Z: 3}, 6)})
	require.NoError(t, err)
	assert.True(t, h.At(3, 3, 3).Detectable)
	assert.False(t, h.At(0, 0, 0).Detectable)
	assert.Equal(t, n, h.CountDetectable())

	// Out of reach entirely
	n, err = Mask(solidCube(4), []models.Detector{models.NewDetector(models.Vec3{X: 1000, Y: 1000, Z: 1000}, 2)})
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestMaskKeepsExistingFlags(t *testing.T) {
	g := solidCube(5)
	g.Set(2, 2, 2, volume.Cell{Medium: 1, Detectable: true})

	_, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 0, Y: 0, Z: 0}, 1)})
	require.NoError(t, err)
	assert.True(t, g.At(2, 2, 2).Detectable)
}

func TestMaskFractionalPosition(t *testing.T) {
	g := solidCube(4)

	_, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{X: 0.9, Y: 0.2, Z: 0.5}, 0.5)})
	require.NoError(t, err)
	assert.True(t, g.At(0, 0, 0).Detectable)
	assert.True(t, g.At(1, 1, 0).Detectable)
	assert.False(t, g.At(1, 1, 1).Detectable)
	assert.False(t, g.At(2, 0, 0).Detectable)
}

func TestMaskNoDetectors(t *testing.T) {
	g := solidCube(3)
	g.Set(1, 1, 1, volume.Cell{Medium: 4})
	before := g.Bytes()

	n, err := Mask(g, nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, g.Bytes())

	path := filepath.Join(t.TempDir(), "test.mask")
	require.NoError(t, Dump(g, path))
	dumped, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, before, dumped)
}

func TestMaskRequiresCanonical(t *testing.T) {
	g := volume.New(models.Dim{X: 2, Y: 2, Z: 2}, volume.RowMajor)
	_, err := Mask(g, []models.Detector{models.NewDetector(models.Vec3{}, 1)})
	require.Error(t, err)
	assert.Equal(t, mcxerr.FormatError, mcxerr.KindOf(err))
}

func TestDumpUnwritable(t *testing.T) {
	g := solidCube(2)
	err := Dump(g, filepath.Join(t.TempDir(), "missing", "test.mask"))
	require.Error(t, err)
	assert.Equal(t, mcxerr.IOError, mcxerr.KindOf(err))
	assert.Equal(t, mcxerr.CodeMaskFile, mcxerr.CodeOf(err))
}
