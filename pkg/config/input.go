package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"mcxprep/internal/models"
	"mcxprep/pkg/mcxerr"
)

// Axis holds the per-axis volume description of the input file
type Axis struct {
	Step         float32
	Dim          int
	Crop0, Crop1 int
}

// Input is the simulation description read from the text input file.
// Positions are 0-based grid coordinates once read.
type Input struct {
	Photons int
	Seed    int

	SrcPos models.Vec3
	SrcDir models.Vec3

	TStart, TEnd, TStep float32

	// VolumeFile is the path as written in the input, before any root
	// path is applied
	VolumeFile string

	X, Y, Z Axis

	// Media includes the ambient medium at index 0
	Media []models.Medium

	DetRadius float32
	Detectors []models.Detector

	// SrcFrom0 records that positions were given 0-based
	SrcFrom0 bool
}

// Dim returns the volume dimensions
func (in *Input) Dim() models.Dim {
	return models.Dim{X: in.X.Dim, Y: in.Y.Dim, Z: in.Z.Dim}
}

// Steps returns the voxel sizes in mm
func (in *Input) Steps() models.Vec3 {
	return models.Vec3{X: in.X.Step, Y: in.Y.Step, Z: in.Z.Step}
}

// Gates returns the number of time gates spanned by the time window
func (in *Input) Gates() int {
	return int((in.TEnd-in.TStart)/in.TStep + 0.5)
}

// fieldReader pulls whitespace separated fields from an input stream.
// Each record starts at a field and ends at the end of the line holding its
// last field; whatever follows on that line is a comment.
type fieldReader struct {
	sc   *bufio.Scanner
	toks []string
	line int
	err  error
}

func newFieldReader(r io.Reader) *fieldReader {
	return &fieldReader{sc: bufio.NewScanner(r)}
}

func (f *fieldReader) token(name string) string {
	if f.err != nil {
		return ""
	}
	for len(f.toks) == 0 {
		if !f.sc.Scan() {
			f.err = mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeIncompleteInput,
				"incomplete input: missing %s after line %d", name, f.line)
			return ""
		}
		f.line++
		f.toks = strings.Fields(f.sc.Text())
	}
	tok := f.toks[0]
	f.toks = f.toks[1:]
	return tok
}

func (f *fieldReader) fail(name, tok string) {
	if f.err == nil {
		f.err = mcxerr.Newf(mcxerr.FormatError, mcxerr.CodeIncompleteInput,
			"malformed %s %q at line %d", name, tok, f.line)
	}
}

func (f *fieldReader) float(name string) float32 {
	tok := f.token(name)
	if f.err != nil {
		return 0
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		f.fail(name, tok)
	}
	return float32(v)
}

func (f *fieldReader) int(name string) int {
	tok := f.token(name)
	if f.err != nil {
		return 0
	}
	v, err := strconv.Atoi(tok)
	if err != nil {
		f.fail(name, tok)
	}
	return v
}

func (f *fieldReader) uint(name string) int {
	v := f.int(name)
	if v < 0 {
		f.fail(name, strconv.Itoa(v))
	}
	return v
}

func (f *fieldReader) vec(name string) models.Vec3 {
	return models.Vec3{X: f.float(name + ".x"), Y: f.float(name + ".y"), Z: f.float(name + ".z")}
}

func (f *fieldReader) axis(name string) Axis {
	return Axis{
		Step:  f.float(name + " voxel size"),
		Dim:   f.uint(name + " dimension"),
		Crop0: f.uint(name + " crop start"),
		Crop1: f.uint(name + " crop end"),
	}
}

// endRecord discards and returns the rest of the current line
func (f *fieldReader) endRecord() []string {
	rest := f.toks
	f.toks = nil
	return rest
}

// ReadInputFile reads the text input at path
func ReadInputFile(path string, srcFrom0 bool) (*Input, error) {
	fp, err := os.Open(path)
	if err != nil {
		return nil, mcxerr.Wrap(err, mcxerr.IOError, mcxerr.CodeInputFile,
			"can not load the specified config file")
	}
	defer fp.Close()
	return ReadInput(fp, srcFrom0)
}

// ReadInput parses the text input format. Unless srcFrom0 is set, or the
// source line carries a non-zero flag after the position, source and
// detector positions are taken as 1-based and shifted to 0-based.
func ReadInput(r io.Reader, srcFrom0 bool) (*Input, error) {
	f := newFieldReader(r)
	in := &Input{SrcFrom0: srcFrom0}

	in.Photons = f.int("photon count")
	f.endRecord()
	in.Seed = f.int("seed")
	f.endRecord()

	in.SrcPos = f.vec("source position")
	if rest := f.endRecord(); !in.SrcFrom0 && len(rest) > 0 {
		if flag, err := strconv.Atoi(rest[0]); err == nil && flag != 0 {
			in.SrcFrom0 = true
		}
	}

	in.SrcDir = f.vec("source direction")
	f.endRecord()

	in.TStart = f.float("time gate start")
	in.TEnd = f.float("time gate end")
	in.TStep = f.float("time gate step")
	f.endRecord()
	if f.err == nil && (in.TStart > in.TEnd || in.TStep == 0) {
		return nil, mcxerr.New(mcxerr.ConfigError, mcxerr.CodeTimeGate, "incorrect time gate settings")
	}

	in.VolumeFile = f.token("volume file")
	f.endRecord()

	in.X = f.axis("x")
	f.endRecord()
	in.Y = f.axis("y")
	f.endRecord()
	in.Z = f.axis("z")
	f.endRecord()

	n := f.uint("medium count")
	f.endRecord()
	if f.err != nil {
		return nil, f.err
	}
	in.Media = make([]models.Medium, n+1)
	in.Media[0] = models.Ambient
	for i := 1; i <= n; i++ {
		name := fmt.Sprintf("medium %d", i)
		m := &in.Media[i]
		m.Mus = f.float(name + " mus")
		m.G = f.float(name + " anisotropy")
		m.Mua = f.float(name + " mua")
		m.N = f.float(name + " refractive index")
		f.endRecord()
	}

	ndet := f.uint("detector count")
	in.DetRadius = f.float("detector radius")
	f.endRecord()
	if f.err != nil {
		return nil, f.err
	}
	in.Detectors = make([]models.Detector, ndet)
	for i := range in.Detectors {
		pos := f.vec(fmt.Sprintf("detector %d", i))
		f.endRecord()
		in.Detectors[i] = models.NewDetector(pos, in.DetRadius)
	}
	if f.err != nil {
		return nil, f.err
	}

	if !in.SrcFrom0 {
		in.SrcPos = shift(in.SrcPos, -1)
		for i := range in.Detectors {
			in.Detectors[i].Pos = shift(in.Detectors[i].Pos, -1)
		}
	}
	return in, nil
}

func shift(v models.Vec3, d float32) models.Vec3 {
	return models.Vec3{X: v.X + d, Y: v.Y + d, Z: v.Z + d}
}

func ftoa(v float32) string {
	return strconv.FormatFloat(float64(v), 'g', -1, 32)
}

func vtoa(v models.Vec3) string {
	return ftoa(v.X) + " " + ftoa(v.Y) + " " + ftoa(v.Z)
}

// WriteInput writes in using the text input format ReadInput accepts
func WriteInput(w io.Writer, in *Input) error {
	bw := bufio.NewWriter(w)

	src := in.SrcPos
	dets := make([]models.Vec3, len(in.Detectors))
	for i, d := range in.Detectors {
		dets[i] = d.Pos
	}
	flag := " 1"
	if !in.SrcFrom0 {
		src = shift(src, 1)
		for i := range dets {
			dets[i] = shift(dets[i], 1)
		}
		flag = ""
	}

	fmt.Fprintf(bw, "%d\n", in.Photons)
	fmt.Fprintf(bw, "%d\n", in.Seed)
	fmt.Fprintf(bw, "%s%s\n", vtoa(src), flag)
	fmt.Fprintf(bw, "%s\n", vtoa(in.SrcDir))
	fmt.Fprintf(bw, "%s %s %s\n", ftoa(in.TStart), ftoa(in.TEnd), ftoa(in.TStep))
	fmt.Fprintf(bw, "%s\n", in.VolumeFile)
	for _, a := range []Axis{in.X, in.Y, in.Z} {
		fmt.Fprintf(bw, "%s %d %d %d\n", ftoa(a.Step), a.Dim, a.Crop0, a.Crop1)
	}

	media := in.Media
	if len(media) > 0 {
		media = media[1:]
	}
	fmt.Fprintf(bw, "%d\n", len(media))
	for _, m := range media {
		fmt.Fprintf(bw, "%s %s %s %s\n", ftoa(m.Mus), ftoa(m.G), ftoa(m.Mua), ftoa(m.N))
	}

	fmt.Fprintf(bw, "%d %s\n", len(dets), ftoa(in.DetRadius))
	for _, d := range dets {
		fmt.Fprintf(bw, "%s\n", vtoa(d))
	}
	return bw.Flush()
}
