package spectrum

import (
	"math"
	"sync"
	"testing"
)

const (
	red  = 0xFF0000
	blue = 0x0000FF
)

// --- Batcher ---

func TestBatchByColor(t *testing.T) {
	snap := &Snapshot{
		Levels: []uint16{5, 8, 3},
		Colors: []uint32{red, blue, red},
	}
	geo := NewBatcher(10).Build(snap, Viewport{Width: 300, Height: 100})

	if len(geo.Batches) != 2 {
		t.Fatalf("batches = %d, want 2", len(geo.Batches))
	}
	if geo.Batches[0].Color != red || geo.Batches[1].Color != blue {
		t.Errorf("batch order = %06x, %06x; want red then blue", geo.Batches[0].Color, geo.Batches[1].Color)
	}
	if got := geo.Batches[0].Triangles(); got != 4 {
		t.Errorf("red triangles = %d, want 4", got)
	}
	if got := geo.Batches[1].Triangles(); got != 2 {
		t.Errorf("blue triangles = %d, want 2", got)
	}
	if got := geo.Triangles(); got != 2*snap.Bands() {
		t.Errorf("total triangles = %d, want %d", got, 2*snap.Bands())
	}
}

func TestBarGeometry(t *testing.T) {
	snap := &Snapshot{
		Levels: []uint16{5, 10},
		Colors: []uint32{red, blue},
	}
	geo := NewBatcher(10).Build(snap, Viewport{Width: 200, Height: 100})

	// Bar 0: x 0..100, y 50..100
	want := []float32{0, 50, 100, 50, 100, 100, 0, 50, 100, 100, 0, 100}
	got := geo.Batches[0].Vertices
	if len(got) != FloatsPerBar {
		t.Fatalf("vertices = %d floats, want %d", len(got), FloatsPerBar)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("bar0 v[%d] = %v, want %v", i, got[i], want[i])
		}
	}

	// Bar 1 at full level spans the whole height.
	v := geo.Batches[1].Vertices
	if v[0] != 100 || v[1] != 0 || v[4] != 200 || v[5] != 100 {
		t.Errorf("bar1 = %v, want x 100..200, y 0..100", v[:6])
	}
}

func TestBuildClampsLevel(t *testing.T) {
	snap := &Snapshot{Levels: []uint16{99}, Colors: []uint32{red}}
	geo := NewBatcher(10).Build(snap, Viewport{Width: 10, Height: 10})
	if y := geo.Batches[0].Vertices[1]; y != 0 {
		t.Errorf("top y = %v, want 0 for over-range level", y)
	}
}

func TestBuildReusesBuffers(t *testing.T) {
	b := NewBatcher(10)
	snap := &Snapshot{Levels: []uint16{1, 2, 3, 4}, Colors: []uint32{red, blue, red, blue}}
	vp := Viewport{Width: 40, Height: 10}
	b.Build(snap, vp)

	allocs := testing.AllocsPerRun(20, func() {
		b.Build(snap, vp)
	})
	if allocs != 0 {
		t.Errorf("Build allocated %v times per frame after warm-up, want 0", allocs)
	}

	// A frame with fewer colors must not leak stale batches.
	one := &Snapshot{Levels: []uint16{1}, Colors: []uint32{blue}}
	geo := b.Build(one, vp)
	if len(geo.Batches) != 1 || geo.Batches[0].Color != blue || geo.Triangles() != 2 {
		t.Errorf("reused geometry = %+v, want one blue bar", geo.Batches)
	}
}

func TestBuildEmpty(t *testing.T) {
	b := NewBatcher(10)
	if geo := b.Build(NewSnapshot(0), Viewport{100, 100}); len(geo.Batches) != 0 {
		t.Errorf("empty snapshot produced %d batches", len(geo.Batches))
	}
	if geo := b.Build(NewSnapshot(4), Viewport{0, 100}); len(geo.Batches) != 0 {
		t.Errorf("zero viewport produced %d batches", len(geo.Batches))
	}
}

// --- Store ---

func TestStoreStartsZeroed(t *testing.T) {
	s := NewStore(16)
	snap := s.Load()
	if snap.Bands() != 16 || len(snap.Colors) != 16 {
		t.Fatalf("initial snapshot has %d/%d bands, want 16", len(snap.Levels), len(snap.Colors))
	}
	for i, l := range snap.Levels {
		if l != 0 {
			t.Errorf("level[%d] = %d, want 0", i, l)
		}
	}
}

func TestStoreSwapAndReset(t *testing.T) {
	s := NewStore(2)
	next := &Snapshot{Levels: []uint16{1, 2}, Colors: []uint32{red, blue}}
	s.Swap(next)
	if s.Load() != next {
		t.Error("Load did not return the swapped snapshot")
	}
	if s.Swaps() != 1 {
		t.Errorf("Swaps = %d, want 1", s.Swaps())
	}
	s.Reset()
	if s.Load().Levels[1] != 0 {
		t.Error("Reset did not publish a zero snapshot")
	}
}

func TestStoreConcurrentReadersSeeConsistentSnapshots(t *testing.T) {
	s := NewStore(8)
	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				snap := s.Load()
				if len(snap.Levels) != len(snap.Colors) {
					t.Errorf("torn snapshot: %d levels, %d colors", len(snap.Levels), len(snap.Colors))
					return
				}
				// Each writer stamps level == color for every band.
				for i := range snap.Levels {
					if uint32(snap.Levels[i]) != snap.Colors[i] {
						t.Errorf("mixed snapshot at band %d: level %d color %d", i, snap.Levels[i], snap.Colors[i])
						return
					}
				}
			}
		}()
	}

	for gen := 1; gen <= 2000; gen++ {
		n := 1 + gen%8
		snap := NewSnapshot(n)
		for i := range snap.Levels {
			snap.Levels[i] = uint16(gen)
			snap.Colors[i] = uint32(gen)
		}
		s.Swap(snap)
	}
	close(stop)
	wg.Wait()
}

// --- Analyzer / palette ---

func TestPaletteRange(t *testing.T) {
	p := NewPalette()
	lowC, highC := p.Color(0, 64), p.Color(64, 64)
	if lowC == highC {
		t.Error("palette endpoints should differ")
	}
	if g := (lowC >> 8) & 0xFF; g < 0x80 {
		t.Errorf("low color %06x should be green-dominant", lowC)
	}
	if r := (highC >> 16) & 0xFF; r < 0x80 {
		t.Errorf("high color %06x should be red-dominant", highC)
	}
	if p.Color(1, 64) != p.Color(2, 64) {
		t.Error("nearby levels should share a palette entry")
	}
}

func TestBandEdgesMonotonic(t *testing.T) {
	for _, bands := range []int{8, 32, 128} {
		edges := bandEdges(48000, bands)
		if len(edges) != bands+1 {
			t.Fatalf("bands=%d: %d edges, want %d", bands, len(edges), bands+1)
		}
		for i := 1; i < len(edges); i++ {
			if edges[i] <= edges[i-1] {
				t.Errorf("bands=%d: edge %d (%d) <= edge %d (%d)", bands, i, edges[i], i-1, edges[i-1])
			}
		}
		if edges[bands] > FFTSize/2 {
			t.Errorf("bands=%d: top edge %d beyond Nyquist bin", bands, edges[bands])
		}
	}
}

func TestBandEdgesCapped(t *testing.T) {
	for _, bands := range []int{MaxBands, 2000} {
		edges := bandEdges(48000, bands)
		if len(edges) != MaxBands+1 {
			t.Fatalf("bands=%d: %d edges, want %d", bands, len(edges), MaxBands+1)
		}
		if edges[0] < 0 || edges[MaxBands] > FFTSize/2 {
			t.Errorf("bands=%d: edges span %d..%d, want within 0..%d", bands, edges[0], edges[MaxBands], FFTSize/2)
		}
		for i := 1; i < len(edges); i++ {
			if edges[i] <= edges[i-1] {
				t.Fatalf("bands=%d: edge %d (%d) <= edge %d (%d)", bands, i, edges[i], i-1, edges[i-1])
			}
		}
	}
}

func TestAnalyzeTooManyBands(t *testing.T) {
	const rate, bands = 48000, 2000
	a := NewAnalyzer(rate, bands, 64)
	if a.Bands() != MaxBands {
		t.Errorf("Bands = %d, want %d", a.Bands(), MaxBands)
	}
	samples := make([]float64, FFTSize)
	for i := range samples {
		samples[i] = 0.8 * math.Sin(2*math.Pi*1000*float64(i)/rate)
	}
	levels := make([]uint16, bands)
	colors := make([]uint32, bands)
	a.Analyze(samples, levels, colors)
	for i := MaxBands; i < bands; i++ {
		if levels[i] != 0 || colors[i] != 0 {
			t.Fatalf("band %d past the cap = %d/%06x, want untouched", i, levels[i], colors[i])
		}
	}
}

func TestAnalyzeSineLightsItsBand(t *testing.T) {
	const rate = 48000
	a := NewAnalyzer(rate, 16, 64)
	samples := make([]float64, FFTSize)
	for i := range samples {
		samples[i] = 0.8 * math.Sin(2*math.Pi*1000*float64(i)/rate)
	}
	levels := make([]uint16, 16)
	colors := make([]uint32, 16)
	a.Analyze(samples, levels, colors)

	peak := 0
	for i := range levels {
		if levels[i] > levels[peak] {
			peak = i
		}
	}
	bin := 1000 * FFTSize / rate
	if bin < a.edges[peak]-1 || bin > a.edges[peak+1]+1 {
		t.Errorf("peak band %d covers bins %d..%d, want 1kHz bin %d", peak, a.edges[peak], a.edges[peak+1], bin)
	}
	if levels[peak] < 32 {
		t.Errorf("peak level = %d, want a loud bar", levels[peak])
	}
	for i := range levels {
		if levels[i] > 64 {
			t.Errorf("level[%d] = %d exceeds height", i, levels[i])
		}
	}
}

func TestAnalyzeSilenceDecays(t *testing.T) {
	a := NewAnalyzer(48000, 4, 64)
	a.prev = []float64{64, 32, 0, 10}
	levels := make([]uint16, 4)
	colors := make([]uint32, 4)
	a.Analyze(nil, levels, colors)
	if levels[0] >= 64 || levels[0] == 0 {
		t.Errorf("level[0] = %d, want decayed below 64", levels[0])
	}
	if levels[2] != 0 {
		t.Errorf("level[2] = %d, want 0", levels[2])
	}
}
