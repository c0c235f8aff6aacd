// Package render draws spectrum snapshots onto a Canvas: a terminal, an
// ebiten window or an in-memory recorder.
package render

import (
	"fmt"
	"sync"

	"github.com/satindergrewal/pt3play/internal/spectrum"
)

// Canvas is a triangle sink. DrawTriangles receives one color and a flat
// list of x,y pairs, three vertices per triangle, in viewport coordinates
// with the origin at the top left.
type Canvas interface {
	SetViewport(width, height int)
	Clear()
	DrawTriangles(color uint32, vertices []float32)
	Present() error
}

// Sizer is implemented by canvases whose size can change, like a terminal.
type Sizer interface {
	Size() (width, height int)
}

// Renderer turns the current snapshot into draw calls once per frame.
// Redraw is not safe for concurrent use; the frame clock serializes it.
type Renderer struct {
	store   *spectrum.Store
	batcher *spectrum.Batcher
	canvas  Canvas
	vp      spectrum.Viewport

	mu     sync.Mutex
	frames uint64
}

// NewRenderer creates a renderer with a fixed viewport. Canvases that
// implement Sizer override it on every frame.
func NewRenderer(store *spectrum.Store, height int, canvas Canvas, vp spectrum.Viewport) *Renderer {
	return &Renderer{
		store:   store,
		batcher: spectrum.NewBatcher(height),
		canvas:  canvas,
		vp:      vp,
	}
}

// Redraw draws the latest snapshot and presents it.
func (r *Renderer) Redraw() error {
	vp := r.vp
	if s, ok := r.canvas.(Sizer); ok {
		vp.Width, vp.Height = s.Size()
	}

	geo := r.batcher.Build(r.store.Load(), vp)

	r.canvas.SetViewport(vp.Width, vp.Height)
	r.canvas.Clear()
	for i := range geo.Batches {
		b := &geo.Batches[i]
		r.canvas.DrawTriangles(b.Color, b.Vertices)
	}
	if err := r.canvas.Present(); err != nil {
		return fmt.Errorf("present frame: %w", err)
	}

	r.mu.Lock()
	r.frames++
	r.mu.Unlock()
	return nil
}

// Frames returns the number of frames presented.
func (r *Renderer) Frames() uint64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}
