package render

import (
	"context"
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"
)

// Terminal is a Canvas on a tcell screen. Each cell is two virtual pixels
// tall so bars resolve to half a row.
type Terminal struct {
	mu     sync.Mutex
	screen tcell.Screen
	status string
}

// NewTerminal initializes the screen. Pass tcell.NewSimulationScreen in tests.
func NewTerminal(screen tcell.Screen) (*Terminal, error) {
	if err := screen.Init(); err != nil {
		return nil, fmt.Errorf("init terminal: %w", err)
	}
	screen.HideCursor()
	screen.Clear()
	return &Terminal{screen: screen}, nil
}

// Size returns the drawable area in virtual pixels. The bottom row is
// reserved for the status line.
func (t *Terminal) Size() (int, int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	w, h := t.screen.Size()
	return w, max(h-1, 0) * 2
}

// SetViewport is a no-op; the terminal size drives the viewport.
func (t *Terminal) SetViewport(width, height int) {}

func (t *Terminal) Clear() {
	t.mu.Lock()
	t.screen.Clear()
	t.mu.Unlock()
}

// SetStatus sets the text drawn on the bottom row at the next Present.
func (t *Terminal) SetStatus(s string) {
	t.mu.Lock()
	t.status = s
	t.mu.Unlock()
}

// DrawTriangles fills the bounding box of every six-vertex bar.
func (t *Terminal) DrawTriangles(color uint32, vertices []float32) {
	t.mu.Lock()
	defer t.mu.Unlock()

	style := tcell.StyleDefault.Foreground(tcell.NewHexColor(int32(color)))
	for i := 0; i+12 <= len(vertices); i += 12 {
		x1, y1, x2, y2 := vertices[i], vertices[i+1], vertices[i+2], vertices[i+5]
		t.fillRect(int(x1+0.5), int(y1+0.5), int(x2+0.5), int(y2+0.5), style)
	}
}

// fillRect fills [x1,x2) x [y1,y2) in virtual pixels. Caller holds mu.
func (t *Terminal) fillRect(x1, y1, x2, y2 int, style tcell.Style) {
	for py := y1 - y1%2; py < y2; py += 2 {
		top := py >= y1
		bottom := py+1 >= y1 && py+1 < y2
		var ch rune
		switch {
		case top && bottom:
			ch = '█'
		case bottom:
			ch = '▄'
		case top:
			ch = '▀'
		default:
			continue
		}
		for x := x1; x < x2; x++ {
			t.screen.SetContent(x, py/2, ch, nil, style)
		}
	}
}

func (t *Terminal) Present() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	_, h := t.screen.Size()
	for i, r := range []rune(t.status) {
		t.screen.SetContent(i, h-1, r, nil, tcell.StyleDefault)
	}
	t.screen.Show()
	return nil
}

// Run delivers key actions to handle until ctx is done or the quit key is
// pressed. It returns nil on quit.
func (t *Terminal) Run(ctx context.Context, handle func(Action)) error {
	events := make(chan tcell.Event, 16)
	quit := make(chan struct{})
	go t.screen.ChannelEvents(events, quit)
	defer close(quit)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			switch ev := ev.(type) {
			case *tcell.EventKey:
				a := keyAction(ev)
				if a == ActQuit {
					return nil
				}
				if a != ActNone {
					handle(a)
				}
			case *tcell.EventResize:
				t.mu.Lock()
				t.screen.Sync()
				t.mu.Unlock()
			}
		}
	}
}

func keyAction(ev *tcell.EventKey) Action {
	switch ev.Key() {
	case tcell.KeyEnter:
		return ActPlay
	case tcell.KeyEscape, tcell.KeyCtrlC:
		return ActQuit
	case tcell.KeyRune:
		return ActionForRune(ev.Rune())
	}
	return ActNone
}

// Close restores the terminal.
func (t *Terminal) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.screen.Fini()
}
