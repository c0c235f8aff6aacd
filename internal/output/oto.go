//go:build !headless

package output

import (
	"fmt"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/satindergrewal/pt3play/internal/audio"
)

// oto allows one context per process; sinks share it across sessions.
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

func otoContext(rate int) (*oto.Context, error) {
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   rate,
			ChannelCount: audio.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   40 * time.Millisecond,
		}
		ctx, ready, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("open oto context: %w", err)
			return
		}
		<-ready
		otoCtx, otoRate = ctx, rate
	})
	if otoErr == nil && otoRate != rate {
		return nil, fmt.Errorf("oto context already open at %d Hz", otoRate)
	}
	return otoCtx, otoErr
}

// Oto plays through the system audio device via oto.
type Oto struct {
	rate   int
	reader *Reader

	mu     sync.Mutex
	player *oto.Player
}

// NewOto creates a device sink pulling from p.
func NewOto(p audio.Puller, rate int) *Oto {
	return &Oto{rate: rate, reader: NewReader(p, audio.FrameSize)}
}

// Start opens the device on first use and begins playback.
func (o *Oto) Start() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.reader.g.isClosed() {
		return ErrClosed
	}
	if o.player != nil {
		return nil
	}
	ctx, err := otoContext(o.rate)
	if err != nil {
		return err
	}
	o.player = ctx.NewPlayer(o.reader)
	o.player.Play()
	return nil
}

// Close stops playback. No Pull happens after Close returns.
func (o *Oto) Close() error {
	o.reader.Close()

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player == nil {
		return nil
	}
	o.player.Pause()
	err := o.player.Close()
	o.player = nil
	return err
}
