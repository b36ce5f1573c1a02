package models

import "math"

// Dim is the size of a voxel grid along each axis
type Dim struct {
	X, Y, Z int
}

// Len returns the total number of voxels, X*Y*Z
func (d Dim) Len() int {
	return d.X * d.Y * d.Z
}

// Degenerate reports whether any axis is empty
func (d Dim) Degenerate() bool {
	return d.X <= 0 || d.Y <= 0 || d.Z <= 0
}

// Vec3 is a position or direction in grid coordinates
type Vec3 struct {
	X, Y, Z float32
}

// Medium holds the optical properties of one tissue type.
// The field order matches the property table consumed by the kernel.
type Medium struct {
	// Mua is the absorption coefficient in 1/mm
	Mua float32

	// Mus is the scattering coefficient in 1/mm
	Mus float32

	// G is the anisotropy factor
	G float32

	// N is the refractive index
	N float32
}

// Ambient is medium 0, the background surrounding the volume
var Ambient = Medium{N: 1}

// Detector is a spherical capture region centred at Pos.
// The radius is kept squared, as the kernel compares squared distances.
type Detector struct {
	Pos Vec3
	R2  float32
}

// NewDetector returns a detector at pos with the given radius
func NewDetector(pos Vec3, radius float32) Detector {
	return Detector{Pos: pos, R2: radius * radius}
}

// Radius returns the capture radius
func (d Detector) Radius() float32 {
	return float32(math.Sqrt(float64(d.R2)))
}
