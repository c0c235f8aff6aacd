//go:build !headless

// Package ebitenview shows the spectrum in a window. Bars are drawn with a
// Kage shader whose Color uniform is set once per batch.
package ebitenview

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/render"
)

// ErrShaderCompile is returned when the bar shader cannot be built. The
// window keeps running without bars.
var ErrShaderCompile = errors.New("bar shader compile failed")

var barShader = []byte(`//kage:unit pixels

package main

var Color vec4

func Fragment(dstPos vec4, srcPos vec2, color vec4) vec4 {
	return Color
}
`)

type batch struct {
	color    uint32
	vertices []float32
}

// frame is one presented set of batches.
type frame struct {
	batches []batch
	n       int
}

func (f *frame) reset() { f.n = 0 }

func (f *frame) add(color uint32, vertices []float32) {
	if f.n == len(f.batches) {
		f.batches = append(f.batches, batch{})
	}
	b := &f.batches[f.n]
	b.color = color
	b.vertices = append(b.vertices[:0], vertices...)
	f.n++
}

// View is both the render.Canvas fed by the frame clock and the
// ebiten.Game that displays the latest presented frame.
type View struct {
	width, height int
	log           logging.LeveledLogger
	shaderSrc     []byte

	mu        sync.Mutex
	pending   *frame
	ready     *frame
	status    string
	handler   func(render.Action)
	shaderErr error

	shader     *ebiten.Shader
	shaderOnce sync.Once
	drawn      frame // Draw goroutine only
	verts      []ebiten.Vertex
	indices    []uint16
	draws      atomic.Uint64
	closing    atomic.Bool
}

// New creates a view with a fixed logical size.
func New(width, height int, log logging.LeveledLogger) *View {
	return &View{
		width:     width,
		height:    height,
		log:       log,
		shaderSrc: barShader,
		pending:   &frame{},
		ready:     &frame{},
	}
}

// SetKeyHandler sets the callback for bound keys.
func (v *View) SetKeyHandler(fn func(render.Action)) {
	v.mu.Lock()
	v.handler = fn
	v.mu.Unlock()
}

// SetStatus sets the text overlay.
func (v *View) SetStatus(s string) {
	v.mu.Lock()
	v.status = s
	v.mu.Unlock()
}

// SetViewport is fixed by Layout; the renderer's viewport matches it.
func (v *View) SetViewport(width, height int) {}

func (v *View) Clear() {
	v.mu.Lock()
	v.pending.reset()
	v.mu.Unlock()
}

func (v *View) DrawTriangles(color uint32, vertices []float32) {
	v.mu.Lock()
	v.pending.add(color, vertices)
	v.mu.Unlock()
}

// Present publishes the pending frame to the window.
func (v *View) Present() error {
	v.mu.Lock()
	v.ready, v.pending = v.pending, v.ready
	v.mu.Unlock()
	return nil
}

// ShaderErr returns the compile error once the first frame was drawn.
func (v *View) ShaderErr() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.shaderErr
}

// Draws returns the number of frames drawn with bars.
func (v *View) Draws() uint64 {
	return v.draws.Load()
}

func (v *View) compile() {
	s, err := ebiten.NewShader(v.shaderSrc)
	if err != nil {
		err = fmt.Errorf("%w: %v", ErrShaderCompile, err)
		v.log.Errorf("Visualization disabled: %v", err)
		v.mu.Lock()
		v.shaderErr = err
		v.mu.Unlock()
		return
	}
	v.shader = s
}

// Run opens the window and blocks until it is closed or quit is pressed.
// It must be called from the main goroutine.
func (v *View) Run(title string) error {
	ebiten.SetWindowSize(v.width, v.height)
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowResizable(true)
	ebiten.SetRunnableOnUnfocused(true)
	err := ebiten.RunGame(v)
	if errors.Is(err, ebiten.Termination) {
		return nil
	}
	return err
}

// Close makes Run return after the current frame.
func (v *View) Close() {
	v.closing.Store(true)
}

func (v *View) Update() error {
	if v.closing.Load() || ebiten.IsWindowBeingClosed() {
		return ebiten.Termination
	}

	v.mu.Lock()
	handle := v.handler
	v.mu.Unlock()

	var actions []render.Action
	for _, r := range ebiten.AppendInputChars(nil) {
		actions = append(actions, render.ActionForRune(r))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyNumpadEnter) {
		actions = append(actions, render.ActPlay)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		actions = append(actions, render.ActQuit)
	}

	for _, a := range actions {
		switch {
		case a == render.ActQuit:
			return ebiten.Termination
		case a != render.ActNone && handle != nil:
			// Handlers may block on asset fetches.
			go handle(a)
		}
	}
	return nil
}

func (v *View) Draw(screen *ebiten.Image) {
	v.shaderOnce.Do(v.compile)

	v.mu.Lock()
	v.drawn.reset()
	for i := 0; i < v.ready.n; i++ {
		v.drawn.add(v.ready.batches[i].color, v.ready.batches[i].vertices)
	}
	status := v.status
	v.mu.Unlock()

	if v.shader != nil {
		for i := 0; i < v.drawn.n; i++ {
			b := &v.drawn.batches[i]
			v.verts, v.indices = appendTriangles(v.verts[:0], v.indices[:0], b.vertices)
			op := &ebiten.DrawTrianglesShaderOptions{
				Uniforms: map[string]any{"Color": unpackColor(b.color)},
			}
			screen.DrawTrianglesShader(v.verts, v.indices, v.shader, op)
		}
		v.draws.Add(1)
	}

	if status != "" {
		ebitenutil.DebugPrint(screen, status)
	}
}

func (v *View) Layout(_, _ int) (int, int) {
	return v.width, v.height
}

// appendTriangles converts flat x,y pairs to ebiten vertices with a
// sequential index list.
func appendTriangles(dst []ebiten.Vertex, idx []uint16, xy []float32) ([]ebiten.Vertex, []uint16) {
	for i := 0; i+1 < len(xy); i += 2 {
		idx = append(idx, uint16(len(dst)))
		dst = append(dst, ebiten.Vertex{
			DstX: xy[i], DstY: xy[i+1],
			ColorR: 1, ColorG: 1, ColorB: 1, ColorA: 1,
		})
	}
	return dst, idx
}

// unpackColor turns 0xRRGGBB into an opaque vec4.
func unpackColor(c uint32) []float32 {
	return []float32{
		float32(c>>16&0xFF) / 255,
		float32(c>>8&0xFF) / 255,
		float32(c&0xFF) / 255,
		1,
	}
}
