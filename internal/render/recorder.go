package render

import (
	"sync"
)

// Call is one recorded DrawTriangles.
type Call struct {
	Color    uint32
	Vertices []float32
}

// Recorder is a headless Canvas that keeps the last presented frame.
type Recorder struct {
	mu       sync.Mutex
	vp       [2]int
	pending  []Call
	last     []Call
	presents int
	calls    int
}

// NewRecorder creates an empty recorder.
func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) SetViewport(width, height int) {
	r.mu.Lock()
	r.vp = [2]int{width, height}
	r.mu.Unlock()
}

func (r *Recorder) Clear() {
	r.mu.Lock()
	r.pending = r.pending[:0]
	r.mu.Unlock()
}

// DrawTriangles copies vertices; the caller reuses its buffers.
func (r *Recorder) DrawTriangles(color uint32, vertices []float32) {
	r.mu.Lock()
	r.pending = append(r.pending, Call{Color: color, Vertices: append([]float32(nil), vertices...)})
	r.calls++
	r.mu.Unlock()
}

func (r *Recorder) Present() error {
	r.mu.Lock()
	r.last = append(r.last[:0], r.pending...)
	r.presents++
	r.mu.Unlock()
	return nil
}

// Frame returns the calls of the last presented frame.
func (r *Recorder) Frame() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Call(nil), r.last...)
}

// Viewport returns the last viewport set.
func (r *Recorder) Viewport() (int, int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.vp[0], r.vp[1]
}

// Counts returns the total DrawTriangles and Present calls.
func (r *Recorder) Counts() (draws, presents int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls, r.presents
}
