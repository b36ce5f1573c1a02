package session

import (
	"gonum.org/v1/gonum/blas/blas32"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"mcxprep/pkg/record"
)

// CreateField allocates a zeroed accumulation buffer of one float per voxel
// per time gate
func (s *Session) CreateField() []float32 {
	return make([]float32, s.Input.Dim().Len()*s.MaxGate)
}

func vec(f []float32) blas32.Vector {
	return blas32.Vector{N: len(f), Inc: 1, Data: f}
}

// NormalizeField multiplies every value of f by scale in place
func NormalizeField(f []float32, scale float32) {
	if len(f) == 0 {
		return
	}
	blas32.Scal(scale, vec(f))
}

// FieldEnergy returns the sum of absolute values of f
func FieldEnergy(f []float32) float32 {
	if len(f) == 0 {
		return 0
	}
	return blas32.Asum(vec(f))
}

// NormalizeOutput scales f in place when the settings ask for normalized
// output and reports whether it did
func (s *Session) NormalizeOutput(f []float32, scale float32) bool {
	if !s.Settings.Simulation.Normalize {
		return false
	}
	NormalizeField(f, scale)
	return true
}

// CreatePhotonBuffer allocates the detected photon path buffer, room for
// MaxDetectedPhotons rows of ColCount values. It is nil when detected
// photons are not saved.
func (s *Session) CreatePhotonBuffer() []float32 {
	if !s.SaveDetected || s.Settings.Detection.MaxDetectedPhotons <= 0 {
		return nil
	}
	return make([]float32, s.Settings.Detection.MaxDetectedPhotons*int(s.History.ColCount))
}

// FieldStats summarizes an output field
type FieldStats struct {
	Mean, StdDev, Max, Total float64
	NonZero                  int
}

// SummarizeField computes summary statistics of f
func SummarizeField(f []float32) FieldStats {
	if len(f) == 0 {
		return FieldStats{}
	}
	data := make([]float64, len(f))
	st := FieldStats{}
	for i, v := range f {
		data[i] = float64(v)
		if v != 0 {
			st.NonZero++
		}
	}
	st.Mean, st.StdDev = stat.MeanStdDev(data, nil)
	st.Max = floats.Max(data)
	st.Total = floats.Sum(data)
	return st
}

// SaveField writes data to <session>.<suffix>. Only the "mch" suffix gets
// the history header in front. Such a file reads back through
// record.ReadPhotonPaths only when History.SavedPhoton*History.ColCount
// equals len(data); use SaveDetectedPhotons to write photon paths.
func (s *Session) SaveField(data []float32, suffix string, appendMode bool) error {
	var h *record.History
	if suffix == "mch" {
		h = &s.History
	}
	return record.SaveField(s.Settings.OutputPath(suffix), data, appendMode, h)
}

// SaveDetectedPhotons records the detection counters in the history header and
// writes count photon rows from ppath to <session>.mch
func (s *Session) SaveDetectedPhotons(ppath []float32, detected, count int, appendMode bool) error {
	s.History.Detected = uint32(detected)
	s.History.SavedPhoton = uint32(count)
	return record.SavePhotonPaths(s.Settings.OutputPath("mch"), s.History, ppath, count, appendMode)
}
