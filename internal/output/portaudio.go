//go:build !headless

package output

import (
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// PortAudio plays through the default output device using a callback
// stream. The callback pulls one buffer of pairs per invocation.
type PortAudio struct {
	p       audio.Puller
	rate    int
	frames  int
	g       gate
	scratch []audio.StereoSample

	mu     sync.Mutex
	stream *portaudio.Stream
}

// NewPortAudio creates a callback sink requesting frames pairs per buffer.
func NewPortAudio(p audio.Puller, rate, frames int) *PortAudio {
	return &PortAudio{
		p:       p,
		rate:    rate,
		frames:  frames,
		scratch: make([]audio.StereoSample, frames),
	}
}

// callback runs on the PortAudio thread. out is interleaved stereo.
func (pa *PortAudio) callback(out []int16) {
	if !pa.g.enter() {
		clear(out)
		return
	}
	defer pa.g.leave()

	for off := 0; off < len(out); {
		pairs := min((len(out)-off)/audio.Channels, len(pa.scratch))
		if pairs == 0 {
			clear(out[off:])
			return
		}
		got := pa.p.Pull(pa.scratch[:pairs])
		audio.Interleave(out[off:], pa.scratch[:got])
		off += got * audio.Channels
	}
}

// Start initializes PortAudio and opens the default output stream.
func (pa *PortAudio) Start() error {
	pa.mu.Lock()
	defer pa.mu.Unlock()

	if pa.g.isClosed() {
		return ErrClosed
	}
	if pa.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("initialize portaudio: %w", err)
	}
	stream, err := portaudio.OpenDefaultStream(0, audio.Channels, float64(pa.rate), pa.frames, pa.callback)
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("open audio stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("start audio stream: %w", err)
	}
	pa.stream = stream
	return nil
}

// Close stops the stream and terminates PortAudio.
func (pa *PortAudio) Close() error {
	pa.g.close()

	pa.mu.Lock()
	defer pa.mu.Unlock()
	if pa.stream == nil {
		return nil
	}
	err := pa.stream.Stop()
	pa.stream.Close()
	pa.stream = nil
	portaudio.Terminate()
	return err
}
