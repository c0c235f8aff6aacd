package source

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"
	"github.com/gopxl/beep/generators"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// ErrEmptyBank is returned for a bank without effects.
var ErrEmptyBank = errors.New("effect bank has no effects")

const (
	sweepSteps = 16
	attackMs   = 2
	releaseMs  = 20
)

// Recipe describes one synthesized effect in a bank file.
type Recipe struct {
	Name     string  `json:"name"`
	Wave     string  `json:"wave"`   // sine, square, triangle, saw, noise
	Freq     float64 `json:"freq"`   // start frequency in Hz
	Sweep    float64 `json:"sweep"`  // frequency change over the effect in Hz
	Duration int     `json:"ms"`     // length in milliseconds
	Volume   float64 `json:"volume"` // 0..1, default 1
}

// BankFile is the on-disk effect bank layout.
type BankFile struct {
	Effects []Recipe `json:"effects"`
}

// Effect is one rendered effect.
type Effect struct {
	Name    string
	Samples []audio.StereoSample
}

// ParseBank decodes a JSON bank and renders every effect at rate.
func ParseBank(data []byte, rate int) ([]Effect, error) {
	var f BankFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse effect bank: %w", err)
	}
	if len(f.Effects) == 0 {
		return nil, ErrEmptyBank
	}

	out := make([]Effect, 0, len(f.Effects))
	for i, r := range f.Effects {
		samples, err := Render(r, rate)
		if err != nil {
			return nil, fmt.Errorf("effect %d (%s): %w", i, r.Name, err)
		}
		out = append(out, Effect{Name: r.Name, Samples: samples})
	}
	return out, nil
}

// Render synthesizes a recipe. Sweeps are stepped in sweepSteps segments.
func Render(r Recipe, rate int) ([]audio.StereoSample, error) {
	if r.Duration <= 0 {
		return nil, fmt.Errorf("duration %dms must be positive", r.Duration)
	}
	sr := beep.SampleRate(rate)
	total := sr.N(time.Duration(r.Duration) * time.Millisecond)

	steps := 1
	if r.Sweep != 0 {
		steps = sweepSteps
	}
	segment := total / steps

	parts := make([]beep.Streamer, 0, steps)
	for i := 0; i < steps; i++ {
		freq := r.Freq + r.Sweep*float64(i)/float64(steps)
		tone, err := toner(r.Wave, sr, freq)
		if err != nil {
			return nil, err
		}
		n := segment
		if i == steps-1 {
			n = total - segment*(steps-1)
		}
		parts = append(parts, beep.Take(n, tone))
	}

	var s beep.Streamer = beep.Seq(parts...)
	vol := r.Volume
	if vol == 0 {
		vol = 1
	}
	s = &effects.Gain{Streamer: s, Gain: vol - 1}

	samples, err := audio.Drain(s, total)
	if err != nil {
		return nil, err
	}
	audio.ApplyEnvelope(samples, rate*attackMs/1000, rate*releaseMs/1000)
	return samples, nil
}

func toner(wave string, sr beep.SampleRate, freq float64) (beep.Streamer, error) {
	switch wave {
	case "sine":
		return generators.SineTone(sr, freq)
	case "square", "":
		return generators.SquareTone(sr, freq)
	case "triangle":
		return generators.TriangleTone(sr, freq)
	case "saw":
		return generators.SawtoothTone(sr, freq)
	case "noise":
		return noise(), nil
	}
	return nil, fmt.Errorf("unknown wave %q", wave)
}

func noise() beep.Streamer {
	return beep.StreamerFunc(func(samples [][2]float64) (int, bool) {
		for i := range samples {
			v := rand.Float64()*2 - 1
			samples[i] = [2]float64{v, v}
		}
		return len(samples), true
	})
}
