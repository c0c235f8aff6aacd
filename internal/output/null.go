package output

import (
	"sync"
	"time"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// Null consumes audio in real time without a device, one frame per tick.
// It keeps sources advancing when playback has no audible output.
type Null struct {
	p        audio.Puller
	interval time.Duration
	buf      []audio.StereoSample

	mu     sync.Mutex
	stop   chan struct{}
	done   chan struct{}
	closed bool
	pulls  int
}

// NewNull creates a sink pulling frame pairs every interval.
func NewNull(p audio.Puller, frame int, interval time.Duration) *Null {
	return &Null{p: p, interval: interval, buf: make([]audio.StereoSample, frame)}
}

// Start launches the pull loop.
func (n *Null) Start() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.closed {
		return ErrClosed
	}
	if n.stop != nil {
		return nil
	}
	n.stop = make(chan struct{})
	n.done = make(chan struct{})
	go n.loop(n.stop, n.done)
	return nil
}

func (n *Null) loop(stop, done chan struct{}) {
	defer close(done)
	ticker := time.NewTicker(n.interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			n.p.Pull(n.buf)
			n.mu.Lock()
			n.pulls++
			n.mu.Unlock()
		}
	}
}

// Pulls returns how many frames were consumed.
func (n *Null) Pulls() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.pulls
}

// Close stops the loop and waits for it.
func (n *Null) Close() error {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return nil
	}
	n.closed = true
	stop, done := n.stop, n.done
	n.mu.Unlock()

	if stop != nil {
		close(stop)
		<-done
	}
	return nil
}
