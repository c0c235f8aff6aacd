package audio

import (
	"context"
	"errors"
	"io"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/pion/logging"
)

// counter emits 2, 4, 6, ... on the left channel and the negation on the
// right. Mixed against Silence the queue then carries 1, 2, 3, ...
type counter struct {
	n atomic.Int64
}

func (c *counter) EmulateSample() StereoSample {
	v := 2 * c.n.Add(1)
	return StereoSample{L: int16(v), R: int16(-v)}
}
func (c *counter) LoadAsset([]byte) error { return nil }
func (c *counter) Release()               {}

func testLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = io.Discard
	return f.NewLogger("test")
}

func newTestScheduler(t *testing.T, w Watermarks, policy UnderrunPolicy) (*Scheduler, *counter) {
	t.Helper()
	music := &counter{}
	s, err := NewScheduler(SchedulerConfig{BlockSize: 4, Watermarks: w, Policy: policy}, music, Silence{}, testLogger())
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	return s, music
}

// --- Watermarks ---

func TestWatermarksValidate(t *testing.T) {
	tests := []struct {
		w    Watermarks
		fail bool
	}{
		{Watermarks{10, 50, 10}, false},
		{Watermarks{0, 1, 1}, false},
		{Watermarks{-1, 50, 10}, true},
		{Watermarks{50, 50, 10}, true},
		{Watermarks{60, 50, 10}, true},
		{Watermarks{10, 50, 0}, true},
	}
	for _, tt := range tests {
		err := tt.w.Validate()
		if tt.fail && !errors.Is(err, ErrInvalidWatermarks) {
			t.Errorf("Validate(%+v) = %v, want ErrInvalidWatermarks", tt.w, err)
		}
		if !tt.fail && err != nil {
			t.Errorf("Validate(%+v) = %v, want nil", tt.w, err)
		}
	}
}

func TestNewSchedulerRejectsBadWatermarks(t *testing.T) {
	_, err := NewScheduler(SchedulerConfig{Watermarks: Watermarks{5, 5, 1}}, nil, nil, testLogger())
	if !errors.Is(err, ErrInvalidWatermarks) {
		t.Errorf("NewScheduler error = %v, want ErrInvalidWatermarks", err)
	}
}

func TestNewSchedulerNilLogger(t *testing.T) {
	s, err := NewScheduler(SchedulerConfig{BlockSize: 4, Watermarks: Watermarks{2, 8, 2}}, &counter{}, Silence{}, nil)
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Run(ctx)
	}()

	// Draining the queue signals a refill, which logs.
	dst := make([]StereoSample, 32)
	for i := 0; i < 5; i++ {
		s.Pull(dst)
		time.Sleep(time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestParseUnderrunPolicy(t *testing.T) {
	for in, want := range map[string]UnderrunPolicy{"": CatchUp, "catchup": CatchUp, "silence": PadSilence} {
		got, err := ParseUnderrunPolicy(in)
		if err != nil || got != want {
			t.Errorf("ParseUnderrunPolicy(%q) = %v, %v; want %v", in, got, err, want)
		}
	}
	if _, err := ParseUnderrunPolicy("bogus"); err == nil {
		t.Error("ParseUnderrunPolicy(bogus) should fail")
	}
}

// --- Refill ---

func TestRefillFromLowTide(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{LowTide: 10, HighTide: 50, RequestSize: 10}, CatchUp)

	// Prime to 10 blocks exactly.
	s.mu.Lock()
	s.produce(s.ring[:10*4])
	s.count = 10 * 4
	s.mu.Unlock()

	if got := s.Refill(); got != 4 {
		t.Errorf("Refill batches = %d, want 4", got)
	}
	if got := s.Queued(); got != 50 {
		t.Errorf("Queued = %d, want 50", got)
	}
	if got := s.Stats().Refills; got != 4 {
		t.Errorf("Stats.Refills = %d, want 4", got)
	}
}

func TestRefillOvershootBounded(t *testing.T) {
	w := Watermarks{LowTide: 10, HighTide: 45, RequestSize: 10}
	s, _ := newTestScheduler(t, w, CatchUp)
	s.Refill()
	q := s.Queued()
	if q < w.HighTide || q > w.HighTide+w.RequestSize-1 {
		t.Errorf("Queued = %d, want in [%d, %d]", q, w.HighTide, w.HighTide+w.RequestSize-1)
	}
	if s.Stats().Dropped != 0 {
		t.Errorf("Dropped = %d, want 0", s.Stats().Dropped)
	}
}

func TestRefillNoopAboveHighTide(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{1, 4, 2}, CatchUp)
	s.Refill()
	if got := s.Refill(); got != 0 {
		t.Errorf("second Refill = %d batches, want 0", got)
	}
}

// --- Pull ---

func TestPullPreservesOrder(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{1, 4, 2}, CatchUp)
	s.Refill()

	dst := make([]StereoSample, 5)
	want := int16(1)
	for round := 0; round < 3; round++ {
		s.Pull(dst)
		for i, v := range dst {
			if v.L != want || v.R != -want {
				t.Fatalf("round %d sample %d = %v, want {%d %d}", round, i, v, want, -want)
			}
			want++
		}
	}
}

func TestPullCatchUpNeverShort(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{2, 8, 2}, CatchUp)
	dst := make([]StereoSample, 7)
	want := int16(1)
	for round := 0; round < 20; round++ {
		if n := s.Pull(dst); n != len(dst) {
			t.Fatalf("Pull returned %d, want %d", n, len(dst))
		}
		for _, v := range dst {
			if v.L != want {
				t.Fatalf("round %d: got %d, want %d", round, v.L, want)
			}
			want++
		}
	}
	if s.Stats().Underruns == 0 {
		t.Error("expected underruns on an unrefilled queue")
	}
}

func TestPullPadSilence(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{0, 1, 1}, PadSilence)
	s.Refill() // one block of 4

	dst := make([]StereoSample, 6)
	for i := range dst {
		dst[i] = StereoSample{99, 99}
	}
	s.Pull(dst)
	for i := 0; i < 4; i++ {
		if dst[i].L != int16(i+1) {
			t.Errorf("dst[%d].L = %d, want %d", i, dst[i].L, i+1)
		}
	}
	for i := 4; i < 6; i++ {
		if dst[i] != (StereoSample{}) {
			t.Errorf("dst[%d] = %v, want silence", i, dst[i])
		}
	}
	if got := s.Stats().Underruns; got != 1 {
		t.Errorf("Underruns = %d, want 1", got)
	}
}

func TestPullWithPromptRefillHasNoUnderruns(t *testing.T) {
	w := Watermarks{LowTide: 10, HighTide: 50, RequestSize: 10}
	s, _ := newTestScheduler(t, w, CatchUp)
	s.Refill()

	dst := make([]StereoSample, 4*10) // pull size within high tide
	for i := 0; i < 100; i++ {
		s.Pull(dst)
		if s.Queued() <= w.LowTide {
			s.Refill()
		}
	}
	if got := s.Stats().Underruns; got != 0 {
		t.Errorf("Underruns = %d, want 0", got)
	}
}

func TestPullSignalsRefill(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{2, 6, 2}, CatchUp)
	s.Pull(make([]StereoSample, 1))
	select {
	case <-s.refillCh:
	default:
		t.Error("Pull on an empty queue did not request a refill")
	}
}

func TestPullDoesNotAllocate(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{2, 8, 2}, CatchUp)
	s.Refill()
	dst := make([]StereoSample, 16)
	allocs := testing.AllocsPerRun(50, func() {
		s.Pull(dst)
	})
	if allocs != 0 {
		t.Errorf("Pull allocated %v times per call, want 0", allocs)
	}
}

// --- Bounds and teardown ---

func TestEnqueueDropsWhenFull(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{0, 1, 1}, CatchUp)
	s.mu.Lock()
	s.enqueue(make([]StereoSample, s.Capacity()+3))
	count := s.count
	s.mu.Unlock()

	if count != s.Capacity() {
		t.Errorf("count = %d, want capacity %d", count, s.Capacity())
	}
	if got := s.Stats().Dropped; got != 3 {
		t.Errorf("Dropped = %d, want 3", got)
	}
}

func TestDiscardEmptiesQueue(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{1, 4, 2}, CatchUp)
	s.Refill()
	s.Discard()
	if got := s.Queued(); got != 0 {
		t.Errorf("Queued after Discard = %d, want 0", got)
	}
}

func TestSetSourcesSwapsProduction(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{0, 1, 1}, CatchUp)
	s.SetSources(nil, nil)
	dst := make([]StereoSample, 8)
	s.Pull(dst)
	for i, v := range dst {
		if v != (StereoSample{}) {
			t.Errorf("dst[%d] = %v, want silence from nil sources", i, v)
		}
	}
}

// --- Background refill ---

func TestRunRefillsAndStops(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{2, 8, 2}, CatchUp)
	ctx, cancel := context.WithCancel(context.Background())

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.Run(ctx)
	}()

	deadline := time.After(2 * time.Second)
	for s.Queued() < 8 {
		select {
		case <-deadline:
			t.Fatal("Run did not prime the queue")
		case <-time.After(time.Millisecond):
		}
	}

	cancel()
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop after context cancel")
	}
}

func TestConcurrentPullAndRefill(t *testing.T) {
	s, _ := newTestScheduler(t, Watermarks{4, 16, 4}, CatchUp)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	dst := make([]StereoSample, 12)
	want := int16(1)
	for i := 0; i < 500; i++ {
		s.Pull(dst)
		for _, v := range dst {
			if v.L != want {
				t.Fatalf("pull %d: got %d, want %d", i, v.L, want)
			}
			want++
		}
	}
}
