package source

import (
	"fmt"
	"sync/atomic"

	"github.com/satindergrewal/pt3play/internal/audio"
)

type voice struct {
	effect *Effect
	pos    int // advanced by the production path only
}

// Effects plays one effect at a time from a loaded bank. Triggering a new
// effect cuts the current one, like a single-channel sound chip.
type Effects struct {
	rate  int
	bank  atomic.Pointer[[]Effect]
	voice atomic.Pointer[voice]
}

// NewEffects creates an effect source rendering at rate.
func NewEffects(rate int) *Effects {
	return &Effects{rate: rate}
}

// LoadAsset parses and renders a JSON bank. The previous bank stays on error.
func (e *Effects) LoadAsset(data []byte) error {
	bank, err := ParseBank(data, e.rate)
	if err != nil {
		return err
	}
	e.voice.Store(nil)
	e.bank.Store(&bank)
	return nil
}

// Release drops the bank and silences any playing effect.
func (e *Effects) Release() {
	e.voice.Store(nil)
	e.bank.Store(nil)
}

// Count returns the number of effects in the loaded bank.
func (e *Effects) Count() int {
	b := e.bank.Load()
	if b == nil {
		return 0
	}
	return len(*b)
}

// Name returns the name of effect i, or "" when out of range.
func (e *Effects) Name(i int) string {
	b := e.bank.Load()
	if b == nil || i < 0 || i >= len(*b) {
		return ""
	}
	return (*b)[i].Name
}

// Trigger starts effect i from the beginning.
func (e *Effects) Trigger(i int) error {
	b := e.bank.Load()
	if b == nil {
		return fmt.Errorf("trigger effect %d: no bank loaded", i)
	}
	if i < 0 || i >= len(*b) {
		return fmt.Errorf("trigger effect %d: out of range (bank has %d)", i, len(*b))
	}
	e.voice.Store(&voice{effect: &(*b)[i]})
	return nil
}

// Active reports whether an effect is sounding.
func (e *Effects) Active() bool {
	return e.voice.Load() != nil
}

// EmulateSample returns the next pair of the active effect, or silence.
func (e *Effects) EmulateSample() audio.StereoSample {
	v := e.voice.Load()
	if v == nil {
		return audio.StereoSample{}
	}
	if v.pos >= len(v.effect.Samples) {
		// Finished; a concurrent Trigger wins the swap.
		e.voice.CompareAndSwap(v, nil)
		return audio.StereoSample{}
	}
	s := v.effect.Samples[v.pos]
	v.pos++
	return s
}
