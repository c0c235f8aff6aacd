package spectrum

import (
	"math"
	"math/cmplx"

	"github.com/lucasb-eyer/go-colorful"
	"github.com/mjibson/go-dsp/fft"
)

const (
	FFTSize  = 2048
	minFreq  = 40.0
	maxFreq  = 16000.0
	floorDB  = -60.0
	falloff  = 0.85 // per-frame decay of a falling bar
	palSteps = 8
)

// MaxBands is the most bands the FFT resolution can give one bin each.
const MaxBands = FFTSize / 2

// Palette maps a level to one of a few gradient colors so neighbouring
// bands of similar height share a color and batch together.
type Palette struct {
	colors [palSteps]uint32
}

// NewPalette builds a green-to-red gradient.
func NewPalette() *Palette {
	low := colorful.Color{R: 0.1, G: 0.85, B: 0.25}
	high := colorful.Color{R: 0.95, G: 0.15, B: 0.1}
	p := &Palette{}
	for i := range p.colors {
		c := low.BlendHcl(high, float64(i)/float64(palSteps-1)).Clamped()
		r, g, b := c.RGB255()
		p.colors[i] = uint32(r)<<16 | uint32(g)<<8 | uint32(b)
	}
	return p
}

// Color returns the packed color for level out of height.
func (p *Palette) Color(level uint16, height int) uint32 {
	if height <= 0 {
		return p.colors[0]
	}
	idx := int(level) * palSteps / (height + 1)
	return p.colors[min(idx, palSteps-1)]
}

// Analyzer turns a window of mono samples into band levels and colors.
// It keeps per-band decay state and is not safe for concurrent use.
type Analyzer struct {
	height  int
	edges   []int // FFT bin edges, len = bands+1
	window  []float64
	buf     []float64
	prev    []float64
	palette *Palette
}

// NewAnalyzer creates an analyzer for the given sample rate, band count and
// maximum level. bands is capped at MaxBands; levels past the cap stay zero.
func NewAnalyzer(sampleRate, bands, height int) *Analyzer {
	bands = max(0, min(bands, MaxBands))
	a := &Analyzer{
		height:  height,
		edges:   bandEdges(sampleRate, bands),
		window:  make([]float64, FFTSize),
		buf:     make([]float64, FFTSize),
		prev:    make([]float64, bands),
		palette: NewPalette(),
	}
	for i := range a.window {
		a.window[i] = 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(FFTSize-1))
	}
	return a
}

// Bands returns the band count.
func (a *Analyzer) Bands() int {
	return len(a.prev)
}

// Analyze fills levels and colors from samples (most recent FFTSize used).
// An empty window decays the previous levels.
func (a *Analyzer) Analyze(samples []float64, levels []uint16, colors []uint32) {
	n := min(len(levels), len(colors), len(a.prev))
	if len(samples) == 0 {
		for b := 0; b < n; b++ {
			a.prev[b] *= falloff
			levels[b] = uint16(a.prev[b])
			colors[b] = a.palette.Color(levels[b], a.height)
		}
		return
	}

	if len(samples) > FFTSize {
		samples = samples[len(samples)-FFTSize:]
	}
	clear(a.buf)
	for i, v := range samples {
		a.buf[i] = v * a.window[i]
	}
	spec := fft.FFTReal(a.buf)

	for b := 0; b < n; b++ {
		lo, hi := a.edges[b], a.edges[b+1]
		var sum float64
		for k := lo; k < hi; k++ {
			sum += cmplx.Abs(spec[k])
		}
		mag := sum / float64(hi-lo) / (FFTSize / 4)
		db := 20 * math.Log10(mag+1e-9)
		v := (db - floorDB) / -floorDB * float64(a.height)
		v = math.Max(0, math.Min(v, float64(a.height)))

		if decayed := a.prev[b] * falloff; decayed > v {
			v = decayed
		}
		a.prev[b] = v
		levels[b] = uint16(v)
		colors[b] = a.palette.Color(levels[b], a.height)
	}
}

// bandEdges splits [minFreq, maxFreq] logarithmically into FFT bin ranges,
// each at least one bin wide. bands is capped at MaxBands.
func bandEdges(sampleRate, bands int) []int {
	if bands <= 0 {
		return []int{0}
	}
	bands = min(bands, MaxBands)
	top := math.Min(maxFreq, float64(sampleRate)/2)
	edges := make([]int, bands+1)
	for i := range edges {
		f := minFreq * math.Pow(top/minFreq, float64(i)/float64(bands))
		edges[i] = int(f * FFTSize / float64(sampleRate))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			edges[i] = edges[i-1] + 1
		}
	}
	if last := edges[bands]; last > FFTSize/2 {
		// Too many bands for the resolution: pack them at the top.
		for i := bands; i >= 0; i-- {
			edges[i] = min(edges[i], FFTSize/2-(bands-i))
		}
	}
	return edges
}
