package main

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"
	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/assets"
	"github.com/satindergrewal/pt3play/internal/audio"
	"github.com/satindergrewal/pt3play/internal/config"
	"github.com/satindergrewal/pt3play/internal/output"
	"github.com/satindergrewal/pt3play/internal/playback"
	"github.com/satindergrewal/pt3play/internal/render"
	"github.com/satindergrewal/pt3play/internal/source"
	"github.com/satindergrewal/pt3play/internal/spectrum"
	"github.com/satindergrewal/pt3play/internal/stream"
)

func discardLogger() logging.LeveledLogger {
	f := logging.NewDefaultLoggerFactory()
	f.Writer = io.Discard
	return f.NewLogger("test")
}

func TestParseLevel(t *testing.T) {
	tests := map[string]logging.LogLevel{
		"debug":   logging.LogLevelDebug,
		"warn":    logging.LogLevelWarn,
		"off":     logging.LogLevelDisabled,
		"info":    logging.LogLevelInfo,
		"unknown": logging.LogLevelInfo,
	}
	for in, want := range tests {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestPickVisExplicit(t *testing.T) {
	for _, v := range []string{"ebiten", "terminal", "none"} {
		if got := pickVis(config.Config{Vis: v}); got != v {
			t.Errorf("pickVis(%q) = %q", v, got)
		}
	}
}

type silentPuller struct{}

func (silentPuller) Pull(dst []audio.StereoSample) int {
	clear(dst)
	return len(dst)
}

func TestSinkFactory(t *testing.T) {
	cfg := config.Config{SampleRate: 48000, FrameRate: 50}
	b := stream.NewBroadcaster()

	cfg.AudioOutput = "none"
	s, err := sinkFactory(cfg, b)(silentPuller{})
	if _, ok := s.(*output.Null); !ok || err != nil {
		t.Errorf("none output = %T, %v, want *output.Null", s, err)
	}

	cfg.AudioOutput = "stream"
	s, err = sinkFactory(cfg, b)(silentPuller{})
	if _, ok := s.(*stream.Pacer); !ok || err != nil {
		t.Errorf("stream output = %T, %v, want *stream.Pacer", s, err)
	}
}

func TestSessionConfig(t *testing.T) {
	cfg := config.Config{BlockSize: 64, LowTide: 2, HighTide: 8, RequestSize: 3, UnderrunPolicy: "silence", FrameRate: 25}
	sc := sessionConfig(cfg)
	if sc.Scheduler.BlockSize != 64 || sc.Scheduler.Watermarks.HighTide != 8 || sc.FrameRate != 25 {
		t.Errorf("sessionConfig = %+v", sc)
	}
	if sc.Scheduler.Policy != audio.PadSilence {
		t.Errorf("Policy = %v, want PadSilence", sc.Scheduler.Policy)
	}
}

func TestKeyHandler(t *testing.T) {
	store := spectrum.NewStore(4)
	music := source.NewTone(audio.SampleRate)
	ctrl := playback.NewController(assets.Static{"a": []byte("440"), "b": []byte("880")}, music,
		source.NewEffects(audio.SampleRate), store, []string{"a", "b"}, "", discardLogger())

	updates := 0
	handle := keyHandler(context.Background(), ctrl, discardLogger(), func() { updates++ })

	handle(render.ActNextSong)
	if st := ctrl.Status(); st.Music != playback.Playing || st.NowPlaying != "b" {
		t.Errorf("after next: %+v, want playing b", st)
	}
	handle(render.ActStop)
	if st := ctrl.Status(); st.Music != playback.Idle {
		t.Errorf("after stop: %v, want idle", st.Music)
	}
	handle(render.ActPlayEffect) // no bank: logged, not fatal
	if updates != 3 {
		t.Errorf("status updates = %d, want 3", updates)
	}
}

func TestStatusLine(t *testing.T) {
	st := playback.Status{
		Music: playback.Playing, Song: 1, Songs: 3, SongID: "music/b.wav", NowPlaying: "music/b.wav",
		Effect: 0, EffectCount: 2, EffectName: "blip",
	}
	line := statusLine(st)
	for _, want := range []string{"[playing]", "2/3 b.wav", "1/2 blip"} {
		if !strings.Contains(line, want) {
			t.Errorf("statusLine = %q, missing %q", line, want)
		}
	}
}

func TestList(t *testing.T) {
	color.NoColor = true
	dir := t.TempDir()
	os.MkdirAll(filepath.Join(dir, "music"), 0o755)
	os.WriteFile(filepath.Join(dir, "music", "here.wav"), []byte("x"), 0o644)

	var buf bytes.Buffer
	cfg := config.Config{AssetDir: dir, Songs: []string{"music/here.wav", "music/gone.wav"}, EffectBank: "sfx/bank.json"}
	if err := list(cfg, &buf); err != nil {
		t.Fatalf("list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 4 {
		t.Fatalf("list printed %d lines, want 4:\n%s", len(lines), buf.String())
	}
	if strings.Contains(lines[1], "missing") || !strings.Contains(lines[2], "(missing)") {
		t.Errorf("missing flags wrong:\n%s", buf.String())
	}
}
