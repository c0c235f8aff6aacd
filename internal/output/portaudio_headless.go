//go:build headless

package output

import (
	"errors"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// PortAudio is unavailable in headless builds.
type PortAudio struct{}

func NewPortAudio(p audio.Puller, rate, frames int) *PortAudio { return &PortAudio{} }

func (pa *PortAudio) Start() error {
	return errors.New("portaudio output not available in headless build")
}
func (pa *PortAudio) Close() error { return nil }
