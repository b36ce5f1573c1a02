// Package config provides run settings and the text input format for mcxprep.
// Settings are loaded from YAML files and provide default values; the text
// input describes the photon source, volume, media and detectors.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Settings represents the run options loaded from YAML. Command line flags
// override individual fields.
type Settings struct {
	// Session names the run; output files are <session>.<suffix>
	Session string `yaml:"session"`

	// RootPath is prepended to the volume path and to all outputs
	RootPath string `yaml:"rootPath"`

	// Photons overrides the photon count of the input file when non-zero
	Photons int `yaml:"photons"`

	Volume struct {
		// RowMajor marks a C-style volume file (z varies fastest)
		RowMajor bool `yaml:"rowMajor"`

		// SrcFrom0 means source and detector coordinates in the input
		// start at 0 instead of 1
		SrcFrom0 bool `yaml:"srcFrom0"`

		// UnitInMM is the voxel edge length in mm
		UnitInMM float32 `yaml:"unitInMM"`

		// MaxSourceSteps bounds the walk that moves a source sitting in
		// background along its direction
		MaxSourceSteps int `yaml:"maxSourceSteps"`
	} `yaml:"volume"`

	Detection struct {
		// SaveDetected turns on detector masking and photon path output
		SaveDetected bool `yaml:"saveDetected"`

		// DumpMask writes <session>.mask after masking and stops the run
		DumpMask bool `yaml:"dumpMask"`

		// MaxDetectedPhotons is the number of rows in the photon path
		// buffer handed to the kernel
		MaxDetectedPhotons int `yaml:"maxDetectedPhotons"`
	} `yaml:"detection"`

	Simulation struct {
		// MaxGate is the number of time gates recorded per run
		MaxGate int `yaml:"maxGate"`

		// Respin is the number of repetitions of the whole simulation.
		// It is passed to the kernel unchanged, as are Reflect, MinEnergy
		// and SkipRadius.
		Respin int `yaml:"respin"`

		// Reflect enables reflection at medium boundaries
		Reflect bool `yaml:"reflect"`

		// Normalize scales output fields by the session's normalization
		// factor before they are saved
		Normalize bool `yaml:"normalize"`

		// MinEnergy is the photon weight below which the kernel stops
		// tracking a photon
		MinEnergy float32 `yaml:"minEnergy"`

		// SkipRadius is the distance from the source within which the
		// kernel does not accumulate the field
		SkipRadius float32 `yaml:"skipRadius"`
	} `yaml:"simulation"`

	Output struct {
		// Verbose controls the level of logging output
		Verbose bool `yaml:"verbose"`

		// LogToFile sends log lines to <session>.log instead of stdout
		LogToFile bool `yaml:"logToFile"`
	} `yaml:"output"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() *Settings {
	s := &Settings{}

	s.Volume.UnitInMM = 1
	s.Volume.MaxSourceSteps = 10000

	s.Detection.MaxDetectedPhotons = 1000000

	s.Simulation.MaxGate = 1
	s.Simulation.Respin = 1
	s.Simulation.Reflect = true
	s.Simulation.Normalize = true

	return s
}

// LoadSettings loads settings from a YAML file.
// If the file doesn't exist, it returns the default settings.
func LoadSettings(path string) (*Settings, error) {
	s := DefaultSettings()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading settings file: %w", err)
	}

	if err := yaml.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("error parsing settings file: %w", err)
	}

	return s, nil
}

// SaveSettings saves the settings to a YAML file
func SaveSettings(s *Settings, path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("error creating settings directory: %w", err)
	}

	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("error marshaling settings: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("error writing settings file: %w", err)
	}

	return nil
}

// CreateDefaultSettingsFile creates a default settings file at the specified path
func CreateDefaultSettingsFile(path string) error {
	return SaveSettings(DefaultSettings(), path)
}

// OutputPath returns <root>/<session>.<suffix>, or <session>.<suffix>
// without a root path
func (s *Settings) OutputPath(suffix string) string {
	name := s.Session + "." + suffix
	if s.RootPath == "" {
		return name
	}
	return filepath.Join(s.RootPath, name)
}
