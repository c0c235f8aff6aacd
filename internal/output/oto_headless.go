//go:build headless

package output

import (
	"errors"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// Oto is unavailable in headless builds.
type Oto struct{}

func NewOto(p audio.Puller, rate int) *Oto { return &Oto{} }

func (o *Oto) Start() error { return errors.New("oto output not available in headless build") }
func (o *Oto) Close() error { return nil }
