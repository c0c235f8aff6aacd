package source

import (
	"fmt"
	"strconv"
	"sync/atomic"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/generators"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// Tone is a sine test source. Its asset is the frequency in Hz as text,
// so it can stand in for a music engine without any files.
type Tone struct {
	rate int
	gen  atomic.Pointer[beep.Streamer]
	buf  [1][2]float64 // production path only
}

// NewTone creates a silent tone source rendering at rate.
func NewTone(rate int) *Tone {
	return &Tone{rate: rate}
}

// LoadAsset parses a frequency such as "440" and starts the tone.
func (t *Tone) LoadAsset(data []byte) error {
	freq, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return fmt.Errorf("tone frequency: %w", err)
	}
	s, err := generators.SineTone(beep.SampleRate(t.rate), freq)
	if err != nil {
		return fmt.Errorf("tone %vHz: %w", freq, err)
	}
	t.gen.Store(&s)
	return nil
}

// Release silences the tone.
func (t *Tone) Release() {
	t.gen.Store(nil)
}

// EmulateSample returns the next sine pair at half scale.
func (t *Tone) EmulateSample() audio.StereoSample {
	g := t.gen.Load()
	if g == nil {
		return audio.StereoSample{}
	}
	(*g).Stream(t.buf[:])
	v := int16(t.buf[0][0] * 16383)
	return audio.StereoSample{L: v, R: v}
}
