package playback

import (
	"sync"
	"sync/atomic"
	"time"
)

// FrameClock runs a tick function at a fixed rate, never concurrently with
// itself. A tick that arrives while another is running is dropped.
type FrameClock struct {
	interval time.Duration
	tick     func()

	inFlight atomic.Bool
	ticks    atomic.Uint64
	dropped  atomic.Uint64

	mu      sync.Mutex
	stopped bool
	started bool
	running sync.WaitGroup // ticks in progress
	stop    chan struct{}
	done    chan struct{}
}

// NewFrameClock creates a clock firing rate times per second.
func NewFrameClock(rate int, tick func()) *FrameClock {
	return &FrameClock{
		interval: time.Second / time.Duration(rate),
		tick:     tick,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Interval returns the tick period.
func (c *FrameClock) Interval() time.Duration {
	return c.interval
}

// Start launches the ticker goroutine. It is a no-op after Stop.
func (c *FrameClock) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.started || c.stopped {
		return
	}
	c.started = true
	go c.loop()
}

func (c *FrameClock) loop() {
	defer close(c.done)
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.Trigger()
		}
	}
}

// Trigger runs one tick on the calling goroutine unless a tick is already
// in flight or the clock is stopped. It reports whether the tick ran.
func (c *FrameClock) Trigger() bool {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return false
	}
	if !c.inFlight.CompareAndSwap(false, true) {
		c.mu.Unlock()
		c.dropped.Add(1)
		return false
	}
	c.running.Add(1)
	c.mu.Unlock()

	defer func() {
		c.inFlight.Store(false)
		c.running.Done()
	}()
	c.tick()
	c.ticks.Add(1)
	return true
}

// Stop halts the ticker and waits for any tick in flight. No tick starts
// after Stop returns.
func (c *FrameClock) Stop() {
	c.mu.Lock()
	if c.stopped {
		c.mu.Unlock()
		return
	}
	c.stopped = true
	started := c.started
	c.mu.Unlock()

	close(c.stop)
	if started {
		<-c.done
	}
	c.running.Wait()
}

// Ticks returns how many ticks ran.
func (c *FrameClock) Ticks() uint64 {
	return c.ticks.Load()
}

// Dropped returns how many ticks were skipped because one was in flight.
func (c *FrameClock) Dropped() uint64 {
	return c.dropped.Load()
}
