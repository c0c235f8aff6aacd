package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"sync/atomic"

	"github.com/pion/logging"
)

// ErrInvalidWatermarks is returned for watermarks violating 0 <= low < high, request > 0.
var ErrInvalidWatermarks = errors.New("invalid watermarks")

// Watermarks control refills. All counts are in blocks.
type Watermarks struct {
	LowTide     int // refill when queued blocks drop to or below this
	HighTide    int // refill until queued blocks reach this
	RequestSize int // blocks produced per refill batch
}

// Validate checks the watermark invariant.
func (w Watermarks) Validate() error {
	if w.LowTide < 0 || w.LowTide >= w.HighTide || w.RequestSize <= 0 {
		return fmt.Errorf("%w: low=%d high=%d request=%d", ErrInvalidWatermarks, w.LowTide, w.HighTide, w.RequestSize)
	}
	return nil
}

// UnderrunPolicy selects what Pull does when the queue is short.
type UnderrunPolicy int

const (
	// CatchUp produces the shortfall synchronously inside Pull.
	CatchUp UnderrunPolicy = iota
	// PadSilence zero-fills the shortfall.
	PadSilence
)

// ParseUnderrunPolicy maps "catchup" / "silence" to a policy.
func ParseUnderrunPolicy(s string) (UnderrunPolicy, error) {
	switch s {
	case "catchup", "":
		return CatchUp, nil
	case "silence":
		return PadSilence, nil
	}
	return CatchUp, fmt.Errorf("unknown underrun policy %q", s)
}

func (p UnderrunPolicy) String() string {
	if p == PadSilence {
		return "silence"
	}
	return "catchup"
}

// SchedulerConfig holds buffer scheduler parameters.
type SchedulerConfig struct {
	BlockSize  int
	Watermarks Watermarks
	Policy     UnderrunPolicy
}

// Stats are cumulative scheduler counters.
type Stats struct {
	Underruns uint64 `json:"underruns"`
	Dropped   uint64 `json:"dropped"`  // samples discarded because the queue was full
	Refills   uint64 `json:"refills"`  // refill batches produced
	Produced  uint64 `json:"produced"` // samples mixed in total
}

type sourcePair struct {
	music, sfx SampleSource
}

// Scheduler buffers mixed samples between the sources and the audio sink.
// The sink pulls at its own cadence; Run refills in the background whenever
// the queue drops to the low tide.
type Scheduler struct {
	cfg SchedulerConfig
	log logging.LeveledLogger

	sources atomic.Pointer[sourcePair]

	mu      sync.Mutex // guards ring state and serializes production
	ring    []StereoSample
	head    int // next sample to read
	count   int // queued samples
	scratch []StereoSample

	refillCh chan struct{}

	underruns atomic.Uint64
	dropped   atomic.Uint64
	refills   atomic.Uint64
	produced  atomic.Uint64
}

// NewScheduler creates a scheduler with a preallocated queue bounded at
// HighTide+RequestSize blocks.
func NewScheduler(cfg SchedulerConfig, music, sfx SampleSource, log logging.LeveledLogger) (*Scheduler, error) {
	if err := cfg.Watermarks.Validate(); err != nil {
		return nil, err
	}
	if cfg.BlockSize <= 0 {
		cfg.BlockSize = BlockSize
	}
	if log == nil {
		log = logging.NewDefaultLeveledLoggerForScope("scheduler", logging.LogLevelDisabled, io.Discard)
	}
	capacity := (cfg.Watermarks.HighTide + cfg.Watermarks.RequestSize) * cfg.BlockSize
	s := &Scheduler{
		cfg:      cfg,
		log:      log,
		ring:     make([]StereoSample, capacity),
		scratch:  make([]StereoSample, cfg.Watermarks.RequestSize*cfg.BlockSize),
		refillCh: make(chan struct{}, 1),
	}
	s.SetSources(music, sfx)
	return s, nil
}

// SetSources swaps the music/effects pair used for production.
func (s *Scheduler) SetSources(music, sfx SampleSource) {
	if music == nil {
		music = Silence{}
	}
	if sfx == nil {
		sfx = Silence{}
	}
	s.sources.Store(&sourcePair{music: music, sfx: sfx})
}

// Capacity returns the queue bound in samples.
func (s *Scheduler) Capacity() int {
	return len(s.ring)
}

// BlockSize returns the samples per block.
func (s *Scheduler) BlockSize() int {
	return s.cfg.BlockSize
}

// Queued returns the number of whole blocks waiting in the queue.
func (s *Scheduler) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count / s.cfg.BlockSize
}

// Stats returns the cumulative counters.
func (s *Scheduler) Stats() Stats {
	return Stats{
		Underruns: s.underruns.Load(),
		Dropped:   s.dropped.Load(),
		Refills:   s.refills.Load(),
		Produced:  s.produced.Load(),
	}
}

// Pull fills dst with the next samples and always returns len(dst). A short
// queue counts as an underrun and is covered according to the policy.
func (s *Scheduler) Pull(dst []StereoSample) int {
	s.mu.Lock()
	n := s.dequeue(dst)
	if n < len(dst) {
		s.underruns.Add(1)
		if s.cfg.Policy == CatchUp {
			s.produce(dst[n:])
		} else {
			clear(dst[n:])
		}
	}
	low := s.count/s.cfg.BlockSize <= s.cfg.Watermarks.LowTide
	s.mu.Unlock()

	if low {
		select {
		case s.refillCh <- struct{}{}:
		default:
		}
	}
	return len(dst)
}

// Refill appends RequestSize blocks at a time until the queue holds at
// least HighTide blocks. Returns the number of batches produced.
func (s *Scheduler) Refill() int {
	batches := 0
	for {
		s.mu.Lock()
		if s.count/s.cfg.BlockSize >= s.cfg.Watermarks.HighTide {
			s.mu.Unlock()
			return batches
		}
		s.produce(s.scratch)
		s.enqueue(s.scratch)
		s.mu.Unlock()

		batches++
		s.refills.Add(1)
	}
}

// Run services refill requests until ctx is cancelled. The queue is primed
// to the high tide before the first pull.
func (s *Scheduler) Run(ctx context.Context) {
	s.Refill()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.refillCh:
			if n := s.Refill(); n > 0 {
				s.log.Tracef("refilled %d batches, queued=%d blocks", n, s.Queued())
			}
		}
	}
}

// Discard drops everything queued.
func (s *Scheduler) Discard() {
	s.mu.Lock()
	s.head, s.count = 0, 0
	s.mu.Unlock()
}

// produce mixes len(dst) samples from the current sources. Caller holds mu.
func (s *Scheduler) produce(dst []StereoSample) {
	p := s.sources.Load()
	for i := range dst {
		dst[i] = Mix(p.music.EmulateSample(), p.sfx.EmulateSample())
	}
	s.produced.Add(uint64(len(dst)))
}

// enqueue appends as much of src as fits. Samples beyond capacity are
// dropped; queued samples are never overwritten. Caller holds mu.
func (s *Scheduler) enqueue(src []StereoSample) {
	free := len(s.ring) - s.count
	if len(src) > free {
		s.dropped.Add(uint64(len(src) - free))
		src = src[:free]
	}
	tail := (s.head + s.count) % len(s.ring)
	n := copy(s.ring[tail:], src)
	copy(s.ring, src[n:])
	s.count += len(src)
}

// dequeue copies up to len(dst) queued samples into dst. Caller holds mu.
func (s *Scheduler) dequeue(dst []StereoSample) int {
	n := min(len(dst), s.count)
	first := copy(dst[:n], s.ring[s.head:])
	copy(dst[first:n], s.ring)
	s.head = (s.head + n) % len(s.ring)
	s.count -= n
	return n
}
