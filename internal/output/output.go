// Package output drives audio devices from a scheduler. Every sink pulls
// on its own schedule and stops pulling once Close returns.
package output

import (
	"errors"
	"sync"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// ErrClosed is returned when starting a sink that was already closed.
var ErrClosed = errors.New("sink closed")

// Sink is an audio device consuming pulled samples.
type Sink interface {
	Start() error
	Close() error
}

// gate keeps pulls out of a closed sink. Close waits for an in-flight pull.
type gate struct {
	mu     sync.RWMutex
	closed bool
}

// enter reports whether the sink is still open; on true the caller must
// call leave when the pull is done.
func (g *gate) enter() bool {
	g.mu.RLock()
	if g.closed {
		g.mu.RUnlock()
		return false
	}
	return true
}

func (g *gate) leave() { g.mu.RUnlock() }

// close shuts the gate and reports whether it was open.
func (g *gate) close() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	was := !g.closed
	g.closed = true
	return was
}

func (g *gate) isClosed() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.closed
}

// Reader adapts a Puller to an io.Reader of interleaved little-endian
// 16-bit stereo, the layout oto and the stream encoders expect.
type Reader struct {
	p       audio.Puller
	g       *gate
	scratch []audio.StereoSample
}

// NewReader creates a reader pulling at most chunk pairs per Pull.
func NewReader(p audio.Puller, chunk int) *Reader {
	return &Reader{p: p, g: &gate{}, scratch: make([]audio.StereoSample, chunk)}
}

// Read fills p with whole sample pairs. After Close it yields silence
// without touching the puller.
func (r *Reader) Read(p []byte) (int, error) {
	n := len(p) / audio.BytesPerPair * audio.BytesPerPair
	if !r.g.enter() {
		clear(p[:n])
		return n, nil
	}
	defer r.g.leave()

	for off := 0; off < n; {
		pairs := min((n-off)/audio.BytesPerPair, len(r.scratch))
		got := r.p.Pull(r.scratch[:pairs])
		if got == 0 {
			clear(p[off:n])
			break
		}
		off += audio.PutSamples(p[off:], r.scratch[:got])
	}
	return n, nil
}

// Close stops further pulls and waits for an in-flight Read.
func (r *Reader) Close() error {
	r.g.close()
	return nil
}
