package visualization

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"

	"mcxprep/pkg/volume"
)

// Viewer renders axis-aligned slices of a prepared volume for inspection.
// Background is black, media are grey levels scaled by the highest medium
// index, and detectable voxels are white.
type Viewer struct {
	grid *volume.Grid

	// maxMedium scales medium indices to grey levels
	maxMedium uint8
}

// NewViewer creates a viewer over g
func NewViewer(g *volume.Grid) *Viewer {
	return &Viewer{grid: g, maxMedium: g.MaxMedium()}
}

func (v *Viewer) shade(c volume.Cell) color.Gray {
	if c.Detectable {
		return color.Gray{Y: 255}
	}
	if c.Background() || v.maxMedium == 0 {
		return color.Gray{}
	}
	// Keep media below the detectable white
	return color.Gray{Y: uint8(40 + int(c.Medium)*180/int(v.maxMedium))}
}

// ExtractSlice extracts a 2D slice from the volume along the specified axis
func (v *Viewer) ExtractSlice(axis string, position int) (*image.Gray, error) {
	if position < 0 {
		return nil, fmt.Errorf("position must be non-negative")
	}

	d := v.grid.Dim
	var img *image.Gray

	switch axis {
	case "x", "X":
		// YZ plane
		if position >= d.X {
			return nil, fmt.Errorf("position %d exceeds x dimension %d", position, d.X)
		}
		img = image.NewGray(image.Rect(0, 0, d.Z, d.Y))
		for y := 0; y < d.Y; y++ {
			for z := 0; z < d.Z; z++ {
				img.SetGray(z, y, v.shade(v.grid.At(position, y, z)))
			}
		}

	case "y", "Y":
		// XZ plane
		if position >= d.Y {
			return nil, fmt.Errorf("position %d exceeds y dimension %d", position, d.Y)
		}
		img = image.NewGray(image.Rect(0, 0, d.X, d.Z))
		for z := 0; z < d.Z; z++ {
			for x := 0; x < d.X; x++ {
				img.SetGray(x, z, v.shade(v.grid.At(x, position, z)))
			}
		}

	case "z", "Z":
		// XY plane
		if position >= d.Z {
			return nil, fmt.Errorf("position %d exceeds z dimension %d", position, d.Z)
		}
		img = image.NewGray(image.Rect(0, 0, d.X, d.Y))
		for y := 0; y < d.Y; y++ {
			for x := 0; x < d.X; x++ {
				img.SetGray(x, y, v.shade(v.grid.At(x, y, position)))
			}
		}

	default:
		return nil, fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	return img, nil
}

// SaveSlice saves an extracted slice as a PNG image
func (v *Viewer) SaveSlice(img image.Image, filename string) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	return png.Encode(file, img)
}

// SaveSliceSequence extracts and saves every slice along the specified axis
func (v *Viewer) SaveSliceSequence(axis string, outputDir string) error {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return err
	}

	var maxPos int
	switch axis {
	case "x", "X":
		maxPos = v.grid.Dim.X
	case "y", "Y":
		maxPos = v.grid.Dim.Y
	case "z", "Z":
		maxPos = v.grid.Dim.Z
	default:
		return fmt.Errorf("invalid axis: %s (must be x, y, or z)", axis)
	}

	for pos := 0; pos < maxPos; pos++ {
		img, err := v.ExtractSlice(axis, pos)
		if err != nil {
			return err
		}

		filename := filepath.Join(outputDir, fmt.Sprintf("slice_%s_%03d.png", axis, pos))
		if err := v.SaveSlice(img, filename); err != nil {
			return err
		}
	}

	return nil
}
