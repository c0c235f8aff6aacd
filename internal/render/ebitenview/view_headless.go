//go:build headless

package ebitenview

import (
	"errors"

	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/render"
)

var ErrShaderCompile = errors.New("bar shader compile failed")

// View is unavailable in headless builds; Run fails immediately.
type View struct{}

func New(width, height int, log logging.LeveledLogger) *View { return &View{} }

func (v *View) SetKeyHandler(fn func(render.Action))           {}
func (v *View) SetStatus(s string)                             {}
func (v *View) SetViewport(width, height int)                  {}
func (v *View) Clear()                                         {}
func (v *View) DrawTriangles(color uint32, vertices []float32) {}
func (v *View) Present() error                                 { return nil }
func (v *View) ShaderErr() error                               { return nil }
func (v *View) Close()                                         {}
func (v *View) Run(title string) error {
	return errors.New("window not available in headless build")
}
