// Package session ties the preparation stages together. A Session is the
// configuration context of one run: it owns the volume, the media and
// detector tables and the history header, and prepares them for the
// transport kernel in a fixed order.
package session

import (
	"errors"
	"fmt"
	"io"
	"log"
	"math"
	"os"
	"path/filepath"

	"gonum.org/v1/gonum/spatial/r3"

	"mcxprep/internal/models"
	"mcxprep/pkg/config"
	"mcxprep/pkg/mask"
	"mcxprep/pkg/mcxerr"
	"mcxprep/pkg/record"
	"mcxprep/pkg/volume"
)

// ErrMaskDumped is returned by Prepare after the detector mask was written
// in dump mode. The run ends there; it is not a failure.
var ErrMaskDumped = errors.New("detector mask dumped")

// Session is the prepared state of one simulation run
type Session struct {
	Settings *config.Settings
	Input    *config.Input

	// Grid is nil until Prepare succeeds. It always points at the
	// session's own grid, whose buffer each Prepare replaces.
	Grid *volume.Grid
	grid volume.Grid

	// History is the header written in front of photon path data
	History record.History

	// Source is the launch position after it was moved onto tissue
	Source models.Vec3

	// MaxGate is the settings' gate count clamped to the time window
	MaxGate int

	// SaveDetected is false when no detectors are defined
	SaveDetected bool

	// Marked is the number of voxels flagged by detector masking
	Marked int

	logger  *log.Logger
	logFile *os.File
}

// New creates a session using settings. Log lines go to stdout.
func New(settings *config.Settings) *Session {
	s := &Session{Settings: settings, logger: log.New(os.Stdout, "", 0)}
	s.resetHistory()
	return s
}

func (s *Session) resetHistory() {
	s.History = record.NewHistory()
	s.History.UnitInMM = s.Settings.Volume.UnitInMM
}

// SetLogOutput redirects log lines to w
func (s *Session) SetLogOutput(w io.Writer) {
	s.logger.SetOutput(w)
}

// OpenLog sends log lines to <session>.log when the settings ask for it.
// If the file cannot be created, logging stays on stdout.
func (s *Session) OpenLog() {
	if !s.Settings.Output.LogToFile || s.Settings.Session == "" {
		return
	}
	f, err := os.Create(s.Settings.OutputPath("log"))
	if err != nil {
		s.Printf("unable to save to log file, will print from stdout")
		return
	}
	s.logFile = f
	s.logger.SetOutput(f)
}

// Printf writes one log line
func (s *Session) Printf(format string, args ...interface{}) {
	s.logger.Printf(format, args...)
}

func (s *Session) debugf(format string, args ...interface{}) {
	if s.Settings.Output.Verbose {
		s.logger.Printf(format, args...)
	}
}

// Configure installs the input description. It releases any previously
// prepared volume; call Prepare afterwards.
func (s *Session) Configure(in *config.Input) {
	s.Grid = nil
	s.Input = in
	s.resetHistory()

	photons := s.Settings.Photons
	if photons == 0 {
		photons = in.Photons
	}
	s.History.TotalPhoton = uint32(photons)

	s.MaxGate = s.Settings.Simulation.MaxGate
	if gates := in.Gates(); s.MaxGate > gates {
		s.MaxGate = gates
	}

	s.SaveDetected = s.Settings.Detection.SaveDetected && len(in.Detectors) > 0
}

// VolumePath returns the volume file path with the root path applied
func (s *Session) VolumePath() string {
	if s.Settings.RootPath == "" {
		return s.Input.VolumeFile
	}
	return filepath.Join(s.Settings.RootPath, s.Input.VolumeFile)
}

// Prepare loads, normalizes and masks the volume and validates the source.
// The Grid is only installed when every step succeeds. In dump-mask mode
// the mask file is written and ErrMaskDumped returned.
func (s *Session) Prepare() error {
	s.Grid = nil
	if s.Input == nil || s.Input.VolumeFile == "" {
		return mcxerr.New(mcxerr.ConfigError, mcxerr.CodeNoVolume,
			"one must specify a binary volume file in order to run the simulation")
	}

	layout := volume.Canonical
	if s.Settings.Volume.RowMajor {
		layout = volume.RowMajor
	}
	g, err := volume.Load(s.VolumePath(), s.Input.Dim(), layout)
	if err != nil {
		return fmt.Errorf("loading volume: %w", err)
	}
	s.debugf("loaded %s from %s", g, s.VolumePath())

	// From here on the volume is always canonical
	g.Normalize()

	s.Marked = 0
	if s.SaveDetected {
		n, err := mask.Mask(g, s.Input.Detectors)
		if err != nil {
			return err
		}
		s.Marked = n
		s.debugf("flagged %d voxels visible to %d detectors", n, len(s.Input.Detectors))
	}

	if s.Settings.Detection.DumpMask {
		path := s.Settings.OutputPath("mask")
		if err := mask.Dump(g, path); err != nil {
			return err
		}
		s.Printf("detector mask saved to %s", path)
		return ErrMaskDumped
	}

	src, err := s.locateSource(g)
	if err != nil {
		return err
	}

	s.Source = src
	s.History.MaxMedia = uint32(len(s.Input.Media) - 1)
	s.History.DetNum = uint32(len(s.Input.Detectors))
	s.History.ColCount = uint32(len(s.Input.Media) + 1)
	s.grid.Replace(g)
	s.Grid = &s.grid
	return nil
}

func toR3(v models.Vec3) r3.Vec {
	return r3.Vec{X: float64(v.X), Y: float64(v.Y), Z: float64(v.Z)}
}

func fromR3(v r3.Vec) models.Vec3 {
	return models.Vec3{X: float32(v.X), Y: float32(v.Y), Z: float32(v.Z)}
}

func voxelOf(g *volume.Grid, p r3.Vec) (x, y, z int, ok bool) {
	if p.X < 0 || p.Y < 0 || p.Z < 0 {
		return 0, 0, 0, false
	}
	x, y, z = int(math.Floor(p.X)), int(math.Floor(p.Y)), int(math.Floor(p.Z))
	return x, y, z, g.InBounds(x, y, z)
}

// locateSource checks that the source is inside the grid. A source sitting
// in background is advanced along its direction until it reaches tissue,
// for at most MaxSourceSteps steps.
func (s *Session) locateSource(g *volume.Grid) (models.Vec3, error) {
	pos := toR3(s.Input.SrcPos)
	dir := toR3(s.Input.SrcDir)

	x, y, z, ok := voxelOf(g, pos)
	if !ok {
		return models.Vec3{}, mcxerr.New(mcxerr.DomainError, mcxerr.CodeSourceDomain,
			"source position is outside of the volume")
	}
	if !g.At(x, y, z).Background() {
		return s.Input.SrcPos, nil
	}

	s.Printf("source (%g %g %g) is located outside the domain, vol[%d]=0",
		pos.X, pos.Y, pos.Z, g.Index(x, y, z))
	for step := 0; step < s.Settings.Volume.MaxSourceSteps; step++ {
		pos = r3.Add(pos, dir)
		s.debugf("fixing source position to (%g %g %g)", pos.X, pos.Y, pos.Z)

		x, y, z, ok = voxelOf(g, pos)
		if !ok {
			return models.Vec3{}, mcxerr.New(mcxerr.DomainError, mcxerr.CodeSourceDomain,
				"source direction leaves the volume before reaching a non-background voxel")
		}
		if !g.At(x, y, z).Background() {
			s.Printf("source moved to (%g %g %g)", pos.X, pos.Y, pos.Z)
			return fromR3(pos), nil
		}
	}
	return models.Vec3{}, mcxerr.Newf(mcxerr.DomainError, mcxerr.CodeSourceDomain,
		"source did not reach a non-background voxel within %d steps", s.Settings.Volume.MaxSourceSteps)
}

// Clear releases the volume and tables and resets the history header
func (s *Session) Clear() {
	s.Grid = nil
	s.grid.Replace(&volume.Grid{})
	s.Input = nil
	s.Marked = 0
	s.MaxGate = 0
	s.SaveDetected = false
	s.resetHistory()
	if s.logFile != nil {
		s.logFile.Close()
		s.logFile = nil
		s.logger.SetOutput(os.Stdout)
	}
}

// MediaTable flattens the media into {mua, mus, g, n} rows
func (s *Session) MediaTable() []float32 {
	t := make([]float32, 0, 4*len(s.Input.Media))
	for _, m := range s.Input.Media {
		t = append(t, m.Mua, m.Mus, m.G, m.N)
	}
	return t
}

// DetectorTable flattens the detectors into {x, y, z, r²} rows
func (s *Session) DetectorTable() []float32 {
	t := make([]float32, 0, 4*len(s.Input.Detectors))
	for _, d := range s.Input.Detectors {
		t = append(t, d.Pos.X, d.Pos.Y, d.Pos.Z, d.R2)
	}
	return t
}
