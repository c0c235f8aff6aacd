// Package source provides concrete SampleSources: a PCM music player that
// reports a live spectrum, an effect bank player and a test tone.
package source

import (
	"sync/atomic"

	"github.com/satindergrewal/pt3play/internal/audio"
	"github.com/satindergrewal/pt3play/internal/spectrum"
)

// track is one loaded asset. samples is immutable after load; pos is
// advanced by the production path and read by the spectrum path.
type track struct {
	samples []audio.StereoSample
	pos     atomic.Int64
}

// Music plays a decoded asset in a loop and analyzes the audio around the
// current play position for the visualizer.
type Music struct {
	rate     int
	cur      atomic.Pointer[track]
	analyzer *spectrum.Analyzer
	window   []float64
}

// NewMusic creates a music source rendering at rate with the given band
// count and maximum level.
func NewMusic(rate, bands, height int) *Music {
	return &Music{
		rate:     rate,
		analyzer: spectrum.NewAnalyzer(rate, bands, height),
		window:   make([]float64, spectrum.FFTSize),
	}
}

// LoadAsset decodes data and swaps it in. A failed decode leaves the current
// track playing.
func (m *Music) LoadAsset(data []byte) error {
	samples, err := audio.DecodeAsset(data, m.rate)
	if err != nil {
		return err
	}
	m.cur.Store(&track{samples: samples})
	return nil
}

// Release stops playback and drops the track.
func (m *Music) Release() {
	m.cur.Store(nil)
}

// Loaded reports whether a track is active.
func (m *Music) Loaded() bool {
	return m.cur.Load() != nil
}

// Position returns the play position in samples.
func (m *Music) Position() int64 {
	t := m.cur.Load()
	if t == nil {
		return 0
	}
	return t.pos.Load()
}

// EmulateSample returns the next pair, looping at the end of the track.
func (m *Music) EmulateSample() audio.StereoSample {
	t := m.cur.Load()
	if t == nil || len(t.samples) == 0 {
		return audio.StereoSample{}
	}
	p := t.pos.Load()
	s := t.samples[p]
	p++
	if p >= int64(len(t.samples)) {
		p = 0
	}
	t.pos.Store(p)
	return s
}

// Spectrum analyzes the window ending at the current play position. It is
// called from the frame path only.
func (m *Music) Spectrum(levels []uint16, colors []uint32) {
	t := m.cur.Load()
	if t == nil || len(t.samples) == 0 {
		m.analyzer.Analyze(nil, levels, colors)
		return
	}

	end := int(t.pos.Load())
	n := min(len(m.window), len(t.samples))
	for i := 0; i < n; i++ {
		idx := end - n + i
		if idx < 0 {
			idx += len(t.samples)
		}
		s := t.samples[idx]
		m.window[i] = (float64(s.L) + float64(s.R)) / 2 / 32768
	}
	m.analyzer.Analyze(m.window[:n], levels, colors)
}
