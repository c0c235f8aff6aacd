package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/satindergrewal/pt3play/internal/assets"
	"github.com/satindergrewal/pt3play/internal/config"
	"github.com/satindergrewal/pt3play/internal/playback"
	"github.com/satindergrewal/pt3play/internal/source"
	"github.com/satindergrewal/pt3play/internal/spectrum"
	"github.com/satindergrewal/pt3play/internal/stream"
)

// tone plays a sine at hz through the configured output, to check the
// audio path without any assets.
func tone(cfg config.Config, hz string) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	lf := newLoggerFactory(cfg, os.Stderr)
	log := lf.NewLogger("tone")

	store := spectrum.NewStore(cfg.Bands)
	music := source.NewTone(cfg.SampleRate)
	sfx := source.NewEffects(cfg.SampleRate)
	ctrl := playback.NewController(assets.Static{"tone": []byte(hz)}, music, sfx, store,
		[]string{"tone"}, "", lf.NewLogger("playback"))
	sess := playback.NewSession(sessionConfig(cfg), ctrl, store, music, sfx,
		sinkFactory(cfg, stream.NewBroadcaster()), nil, lf.NewLogger("session"))
	defer sess.Shutdown()

	if err := ctrl.Play(ctx, 0); err != nil {
		return fmt.Errorf("tone %s: %w", hz, err)
	}
	log.Infof("Playing %sHz on %s output, interrupt to stop", hz, cfg.AudioOutput)
	<-ctx.Done()
	return nil
}
