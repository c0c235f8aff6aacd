// Package stream serves the mixed output to network listeners: a Pacer
// pulls the scheduler in real time and a Broadcaster fans the frames out to
// HTTP MP3 and WebRTC Opus clients.
package stream

import "sync"

// ListenerBuffer is the per-listener frame backlog, about three seconds at
// 50 frames per second.
const ListenerBuffer = 150

// Broadcaster fans out interleaved PCM frames to N listeners.
type Broadcaster struct {
	mu        sync.RWMutex
	listeners map[*Listener]struct{}
	published uint64
	dropped   uint64
}

// Listener receives PCM frames from the broadcaster.
type Listener struct {
	C    chan []int16 // interleaved stereo frames
	done chan struct{}
}

// Done is closed when the listener is unsubscribed.
func (l *Listener) Done() <-chan struct{} {
	return l.done
}

// NewBroadcaster creates an empty broadcaster.
func NewBroadcaster() *Broadcaster {
	return &Broadcaster{
		listeners: make(map[*Listener]struct{}),
	}
}

// Subscribe registers a new listener.
func (b *Broadcaster) Subscribe() *Listener {
	l := &Listener{
		C:    make(chan []int16, ListenerBuffer),
		done: make(chan struct{}),
	}
	b.mu.Lock()
	b.listeners[l] = struct{}{}
	b.mu.Unlock()
	return l
}

// Unsubscribe removes a listener and closes its Done channel. Calling it
// twice is safe.
func (b *Broadcaster) Unsubscribe(l *Listener) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.listeners[l]; !ok {
		return
	}
	delete(b.listeners, l)
	close(l.done)
}

// ListenerCount returns the number of active listeners.
func (b *Broadcaster) ListenerCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Publish hands frame to every listener. Slow listeners lose the frame
// rather than stall the pacer. frame must not be modified until a full
// listener backlog of later frames has been published.
func (b *Broadcaster) Publish(frame []int16) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published++
	for l := range b.listeners {
		select {
		case l.C <- frame:
		default:
			b.dropped++
		}
	}
}

// Counts returns published frames and per-listener drops.
func (b *Broadcaster) Counts() (published, dropped uint64) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.published, b.dropped
}
