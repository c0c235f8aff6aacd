package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pion/logging"
	"golang.org/x/time/rate"

	"github.com/satindergrewal/pt3play/internal/audio"
	"github.com/satindergrewal/pt3play/internal/output"
	"github.com/satindergrewal/pt3play/internal/spectrum"
)

// ErrSessionClosed is returned by Ensure after Shutdown.
var ErrSessionClosed = errors.New("session shut down")

// SinkFactory opens the audio device for a new session.
type SinkFactory func(p audio.Puller) (output.Sink, error)

// Redrawer draws the current snapshot. render.Renderer implements it.
type Redrawer interface {
	Redraw() error
}

// SessionConfig holds the per-session audio parameters.
type SessionConfig struct {
	Scheduler audio.SchedulerConfig
	FrameRate int
	// UnderrunLogEvery bounds how often underruns are logged.
	UnderrunLogEvery time.Duration
}

// Stats is a session-level snapshot for the API.
type Stats struct {
	ID        string      `json:"id"`
	Active    bool        `json:"active"`
	Queued    int         `json:"queued_blocks"`
	Scheduler audio.Stats `json:"scheduler"`
	Frames    uint64      `json:"frames"`
	Dropped   uint64      `json:"dropped_frames"`
}

// Session owns one audio session: the scheduler queue, the sink pulling
// from it and the frame clock driving the visualization. It starts lazily
// on the first Play and can be closed and restarted.
type Session struct {
	cfg     SessionConfig
	ctrl    *Controller
	store   *spectrum.Store
	music   audio.SampleSource
	sfx     audio.SampleSource
	newSink SinkFactory
	view    Redrawer
	log     logging.LeveledLogger

	mu       sync.Mutex
	id       uuid.UUID
	active   bool
	shutdown bool
	sched    *audio.Scheduler
	sink     output.Sink
	clock    *FrameClock
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

// NewSession wires a session to ctrl so the first Play starts audio.
// view may be nil when nothing is displayed.
func NewSession(cfg SessionConfig, ctrl *Controller, store *spectrum.Store, music, sfx audio.SampleSource, newSink SinkFactory, view Redrawer, log logging.LeveledLogger) *Session {
	if cfg.UnderrunLogEvery <= 0 {
		cfg.UnderrunLogEvery = 5 * time.Second
	}
	s := &Session{
		cfg:     cfg,
		ctrl:    ctrl,
		store:   store,
		music:   music,
		sfx:     sfx,
		newSink: newSink,
		view:    view,
		log:     log,
	}
	ctrl.OnFirstPlay(s.Ensure)
	return s
}

// Ensure starts the session if it is not running. It is idempotent.
func (s *Session) Ensure(ctx context.Context) error {
	s.mu.Lock()
	if s.shutdown {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if s.active {
		s.mu.Unlock()
		return nil
	}
	err := s.start()
	s.mu.Unlock()
	if err != nil {
		return err
	}

	if s.ctrl.sfx.Count() == 0 && s.ctrl.bankID != "" {
		if err := s.ctrl.LoadEffectBank(ctx); err != nil {
			s.log.Warnf("Effects unavailable: %v", err)
		}
	}
	return nil
}

// start builds the scheduler, sink and clock. Caller holds mu.
func (s *Session) start() error {
	sched, err := audio.NewScheduler(s.cfg.Scheduler, s.music, s.sfx, s.log)
	if err != nil {
		return fmt.Errorf("create scheduler: %w", err)
	}
	s.store.Reset()

	ctx, cancel := context.WithCancel(context.Background())
	sched.Refill()
	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		sched.Run(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.monitor(ctx, sched)
	}()

	sink, err := s.newSink(sched)
	if err == nil {
		err = sink.Start()
	}
	if err != nil {
		cancel()
		s.wg.Wait()
		if sink != nil {
			sink.Close()
		}
		return fmt.Errorf("open audio output: %w", err)
	}

	clock := NewFrameClock(s.cfg.FrameRate, s.frame)
	clock.Start()

	s.id = uuid.New()
	s.sched, s.sink, s.clock, s.cancel = sched, sink, clock, cancel
	s.active = true
	s.log.Infof("Audio session %s started (%d-sample blocks, queue %d samples)", s.id, sched.BlockSize(), sched.Capacity())
	return nil
}

// frame is one clock tick: refresh the snapshot, then redraw.
func (s *Session) frame() {
	s.ctrl.RefreshSnapshot()
	if s.view == nil {
		return
	}
	if err := s.view.Redraw(); err != nil {
		s.log.Debugf("Redraw: %v", err)
	}
}

// monitor logs underruns, rate limited.
func (s *Session) monitor(ctx context.Context, sched *audio.Scheduler) {
	every := rate.Sometimes{Interval: s.cfg.UnderrunLogEvery}
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var last uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			st := sched.Stats()
			if st.Underruns > last {
				n := st.Underruns - last
				every.Do(func() {
					s.log.Warnf("Audio underrun: %d in the last interval (%d total)", n, st.Underruns)
				})
				last = st.Underruns
			}
		}
	}
}

// Close tears the session down: stop the frame clock and wait for its
// tick, close the sink, discard the queue, then release both sources.
// A later Play starts a fresh session.
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.close()
}

func (s *Session) close() error {
	if !s.active {
		return nil
	}
	s.active = false

	s.clock.Stop()
	err := s.sink.Close()
	s.cancel()
	s.wg.Wait()
	s.sched.Discard()
	s.ctrl.Release()
	s.store.Reset()

	s.log.Infof("Audio session %s closed", s.id)
	s.sched, s.sink, s.clock, s.cancel = nil, nil, nil, nil
	if err != nil {
		return fmt.Errorf("close audio output: %w", err)
	}
	return nil
}

// Shutdown closes the session for good; later plays fail.
func (s *Session) Shutdown() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdown = true
	return s.close()
}

// Active reports whether a session is running.
func (s *Session) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Stats returns the current session counters.
func (s *Session) Stats() Stats {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.active {
		return Stats{}
	}
	return Stats{
		ID:        s.id.String(),
		Active:    true,
		Queued:    s.sched.Queued(),
		Scheduler: s.sched.Stats(),
		Frames:    s.clock.Ticks(),
		Dropped:   s.clock.Dropped(),
	}
}
