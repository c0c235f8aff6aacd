package stream

import (
	"errors"
	"sync"
	"time"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// ErrPacerClosed is returned when starting a closed pacer.
var ErrPacerClosed = errors.New("pacer closed")

// Pacer is the audio sink for network output. It pulls one frame of pairs
// per interval and publishes it interleaved.
type Pacer struct {
	p        audio.Puller
	b        *Broadcaster
	interval time.Duration
	buf      []audio.StereoSample
	ring     [][]int16
	next     int

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
}

// pacerRing is the number of published frames the pacer cycles through. A
// slot is reused only after a full listener backlog plus the frame being
// encoded have moved past it.
const pacerRing = ListenerBuffer + 2

// NewPacer creates a pacer publishing frame pairs from p every interval.
func NewPacer(p audio.Puller, b *Broadcaster, frame int, interval time.Duration) *Pacer {
	ring := make([][]int16, pacerRing)
	backing := make([]int16, pacerRing*frame*audio.Channels)
	for i := range ring {
		ring[i] = backing[i*frame*audio.Channels : (i+1)*frame*audio.Channels : (i+1)*frame*audio.Channels]
	}
	return &Pacer{
		p:        p,
		b:        b,
		interval: interval,
		buf:      make([]audio.StereoSample, frame),
		ring:     ring,
	}
}

// Start launches the pull loop.
func (pc *Pacer) Start() error {
	pc.mu.Lock()
	defer pc.mu.Unlock()
	if pc.closed {
		return ErrPacerClosed
	}
	if pc.stop != nil {
		return nil
	}
	pc.stop = make(chan struct{})
	pc.done = make(chan struct{})
	go pc.loop(pc.stop, pc.done)
	return nil
}

func (pc *Pacer) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(pc.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			pc.tick()
		}
	}
}

// tick pulls one frame into the next ring slot and publishes it.
func (pc *Pacer) tick() {
	pc.p.Pull(pc.buf)
	frame := pc.ring[pc.next]
	pc.next = (pc.next + 1) % len(pc.ring)
	audio.Interleave(frame, pc.buf)
	pc.b.Publish(frame)
}

// Close stops the loop and waits for the pull in progress. Listeners stay
// subscribed; the next session's pacer feeds them again.
func (pc *Pacer) Close() error {
	pc.mu.Lock()
	if pc.closed {
		pc.mu.Unlock()
		return nil
	}
	pc.closed = true
	stop, done := pc.stop, pc.done
	pc.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
