package main

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"mcxprep/pkg/config"
	"mcxprep/pkg/mcxerr"
	"mcxprep/pkg/record"
	"mcxprep/pkg/session"
	"mcxprep/pkg/visualization"
)

func main() {
	// Parse command line arguments
	inputFile := flag.String("f", "", "Input file describing source, volume, media and detectors")
	settingsFile := flag.String("c", "mcxprep.yaml", "YAML settings file (defaults are used when it does not exist)")
	sessionName := flag.String("s", "", "Session name, output files are <session>.<suffix> (default: input file name)")
	rowMajor := flag.Bool("a", false, "Volume file is row-major (z varies fastest)")
	srcFrom0 := flag.Bool("z", false, "Source and detector coordinates start at 0")
	saveDetected := flag.Bool("d", false, "Mask detector-visible voxels and save detected photon paths")
	dumpMask := flag.Bool("M", false, "Write the detector mask to <session>.mask and stop")
	rootPath := flag.String("o", "", "Root path for the volume file and all outputs")
	photons := flag.Int("n", 0, "Photon count, overrides the input file when non-zero")
	maxGate := flag.Int("g", 0, "Number of time gates per run, overrides the settings when non-zero")
	slicesDir := flag.String("slices", "", "Directory to save slices of the prepared volume along all axes")
	fieldFile := flag.String("field", "", "Summarize a saved .dat field file of the prepared session")
	verbose := flag.Bool("v", false, "Verbose output")
	writeSettings := flag.Bool("write-settings", false, "Write the effective settings to the settings file and exit")
	flag.Parse()

	settings, err := config.LoadSettings(*settingsFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load settings: %v\n", err)
		os.Exit(1)
	}

	// Apply only the flags given on the command line over the settings file
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "s":
			settings.Session = *sessionName
		case "a":
			settings.Volume.RowMajor = *rowMajor
		case "z":
			settings.Volume.SrcFrom0 = *srcFrom0
		case "d":
			settings.Detection.SaveDetected = *saveDetected
		case "M":
			settings.Detection.DumpMask = *dumpMask
		case "o":
			settings.RootPath = *rootPath
		case "n":
			settings.Photons = *photons
		case "g":
			if *maxGate > 0 {
				settings.Simulation.MaxGate = *maxGate
			}
		case "v":
			settings.Output.Verbose = *verbose
		}
	})

	if *writeSettings {
		if err := config.SaveSettings(settings, *settingsFile); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to save settings: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Settings saved to: %s\n", *settingsFile)
		return
	}

	// Validate inputs
	if *inputFile == "" {
		flag.Usage()
		os.Exit(1)
	}
	if settings.Session == "" {
		base := filepath.Base(*inputFile)
		settings.Session = strings.TrimSuffix(base, filepath.Ext(base))
	}

	in, err := config.ReadInputFile(*inputFile, settings.Volume.SrcFrom0)
	if err != nil {
		fail(err)
	}

	sess := session.New(settings)
	sess.OpenLog()
	defer sess.Clear()

	sess.Printf("================================")
	sess.Printf("MCX VOLUME AND DETECTOR PREPARATION")
	sess.Printf("================================")

	sess.Configure(in)

	startTime := time.Now()
	err = sess.Prepare()
	if errors.Is(err, session.ErrMaskDumped) {
		return
	}
	if err != nil {
		sess.Clear()
		fail(err)
	}
	processingTime := time.Since(startTime)

	printSummary(sess, processingTime)

	// Extract and save slices if requested
	if *slicesDir != "" {
		sess.Printf("Extracting prepared volume slices along all axes...")

		viewer := visualization.NewViewer(sess.Grid)
		for _, axis := range []string{"x", "y", "z"} {
			axisDir := filepath.Join(*slicesDir, axis)
			sess.Printf("Saving %s-axis slices to: %s", axis, axisDir)

			if err := viewer.SaveSliceSequence(axis, axisDir); err != nil {
				sess.Printf("Warning: Failed to save %s-axis slices: %v", axis, err)
			}
		}

		sess.Printf("Slice extraction completed!")
	}

	if *fieldFile != "" {
		field, err := record.ReadField(*fieldFile, len(sess.CreateField()))
		if err != nil {
			sess.Clear()
			fail(err)
		}
		st := session.SummarizeField(field)
		sess.Printf("Field %s:", *fieldFile)
		sess.Printf("- Total: %g  Mean: %g  StdDev: %g  Max: %g", st.Total, st.Mean, st.StdDev, st.Max)
		sess.Printf("- Non-zero voxels: %d of %d", st.NonZero, len(field))
	}
}

func printSummary(sess *session.Session, elapsed time.Duration) {
	in := sess.Input
	d := in.Dim()

	sess.Printf("Volume: %s", sess.VolumePath())
	sess.Printf("- Dimensions: %d x %d x %d (%d voxels, %g mm/voxel)",
		d.X, d.Y, d.Z, d.Len(), sess.History.UnitInMM)
	sess.Printf("- Highest medium index: %d", sess.Grid.MaxMedium())

	sess.Printf("Media: %d", len(in.Media)-1)
	for i, m := range in.Media[1:] {
		sess.Printf("- %d: mua=%g mus=%g g=%g n=%g", i+1, m.Mua, m.Mus, m.G, m.N)
	}

	sess.Printf("Detectors: %d", len(in.Detectors))
	for i, det := range in.Detectors {
		sess.Printf("- %d: (%g %g %g) r=%g", i+1, det.Pos.X, det.Pos.Y, det.Pos.Z, det.Radius())
	}
	if sess.SaveDetected {
		sess.Printf("- Marked voxels: %d", sess.Marked)
	}

	sess.Printf("Source: (%g %g %g) direction (%g %g %g)",
		sess.Source.X, sess.Source.Y, sess.Source.Z, in.SrcDir.X, in.SrcDir.Y, in.SrcDir.Z)
	sess.Printf("Photons: %d  Time gates: %d of %d", sess.History.TotalPhoton, sess.MaxGate, in.Gates())

	sim := sess.Settings.Simulation
	sess.Printf("Kernel settings:")
	sess.Printf("- Respin: %d  Reflect: %t  Normalize: %t", sim.Respin, sim.Reflect, sim.Normalize)
	sess.Printf("- Min energy: %g  Skip radius: %g", sim.MinEnergy, sim.SkipRadius)
	if sess.SaveDetected {
		sess.Printf("- Photon path buffer: %d rows of %d values",
			sess.Settings.Detection.MaxDetectedPhotons, sess.History.ColCount)
	}
	sess.Printf("Preparation completed in %.3f seconds", elapsed.Seconds())
}

// fail reports err and exits with its error code
func fail(err error) {
	fmt.Fprintln(os.Stderr, err)
	os.Exit(-mcxerr.CodeOf(err))
}
