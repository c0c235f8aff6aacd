package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strconv"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/pion/logging"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/satindergrewal/pt3play/internal/api"
	"github.com/satindergrewal/pt3play/internal/assets"
	"github.com/satindergrewal/pt3play/internal/audio"
	"github.com/satindergrewal/pt3play/internal/config"
	"github.com/satindergrewal/pt3play/internal/history"
	"github.com/satindergrewal/pt3play/internal/output"
	"github.com/satindergrewal/pt3play/internal/playback"
	"github.com/satindergrewal/pt3play/internal/render"
	"github.com/satindergrewal/pt3play/internal/render/ebitenview"
	"github.com/satindergrewal/pt3play/internal/source"
	"github.com/satindergrewal/pt3play/internal/spectrum"
	"github.com/satindergrewal/pt3play/internal/stream"
)

const usage = `usage: pt3play [command]

commands:
  run         play with the configured display and audio output (default)
  list        print the song catalog
  tone <hz>   play a sine test tone until interrupted
`

func main() {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	cmd := "run"
	if len(os.Args) > 1 {
		cmd = os.Args[1]
	}

	var err error
	switch cmd {
	case "run":
		err = run(cfg)
	case "list":
		err = list(cfg, os.Stdout)
	case "tone":
		if len(os.Args) < 3 {
			fmt.Fprint(os.Stderr, usage)
			os.Exit(2)
		}
		err = tone(cfg, os.Args[2])
	default:
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "pt3play:", err)
		os.Exit(1)
	}
}

func parseLevel(s string) logging.LogLevel {
	switch s {
	case "disabled", "off":
		return logging.LogLevelDisabled
	case "error":
		return logging.LogLevelError
	case "warn":
		return logging.LogLevelWarn
	case "debug":
		return logging.LogLevelDebug
	case "trace":
		return logging.LogLevelTrace
	}
	return logging.LogLevelInfo
}

func newLoggerFactory(cfg config.Config, w io.Writer) *logging.DefaultLoggerFactory {
	lf := logging.NewDefaultLoggerFactory()
	lf.DefaultLogLevel = parseLevel(cfg.LogLevel)
	lf.Writer = w
	return lf
}

// pickVis resolves "auto" to a concrete front end.
func pickVis(cfg config.Config) string {
	if cfg.Vis != "auto" {
		return cfg.Vis
	}
	if os.Getenv("DISPLAY") != "" || os.Getenv("WAYLAND_DISPLAY") != "" ||
		runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		return "ebiten"
	}
	if term.IsTerminal(int(os.Stdout.Fd())) {
		return "terminal"
	}
	return "none"
}

func newFetcher(ctx context.Context, cfg config.Config, log logging.LeveledLogger) assets.Fetcher {
	if cfg.AssetURL == "" {
		return assets.NewDir(cfg.AssetDir)
	}
	h := assets.NewHTTP(cfg.AssetURL, cfg.AssetKey, log)
	waitCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()
	if err := h.WaitForHealthy(waitCtx, 2*time.Second); err != nil {
		log.Warnf("Asset server %s not reachable yet: %v", cfg.AssetURL, err)
	}
	return h
}

func sessionConfig(cfg config.Config) playback.SessionConfig {
	policy, _ := audio.ParseUnderrunPolicy(cfg.UnderrunPolicy)
	return playback.SessionConfig{
		Scheduler: audio.SchedulerConfig{
			BlockSize: cfg.BlockSize,
			Watermarks: audio.Watermarks{
				LowTide:     cfg.LowTide,
				HighTide:    cfg.HighTide,
				RequestSize: cfg.RequestSize,
			},
			Policy: policy,
		},
		FrameRate: cfg.FrameRate,
	}
}

// sinkFactory opens the configured audio output for each session.
func sinkFactory(cfg config.Config, b *stream.Broadcaster) playback.SinkFactory {
	frame := cfg.FrameSize()
	interval := time.Second / time.Duration(cfg.FrameRate)
	return func(p audio.Puller) (output.Sink, error) {
		switch cfg.AudioOutput {
		case "oto":
			return output.NewOto(p, cfg.SampleRate), nil
		case "portaudio":
			return output.NewPortAudio(p, cfg.SampleRate, frame), nil
		case "stream":
			return stream.NewPacer(p, b, frame, interval), nil
		}
		return output.NewNull(p, frame, interval), nil
	}
}

// keyHandler maps front-end actions onto the controller.
func keyHandler(ctx context.Context, ctrl *playback.Controller, log logging.LeveledLogger, after func()) func(render.Action) {
	return func(a render.Action) {
		var err error
		switch a {
		case render.ActNextSong:
			err = ctrl.NextSong(ctx)
		case render.ActPrevSong:
			err = ctrl.PreviousSong(ctx)
		case render.ActPlay:
			err = ctrl.PlaySelected(ctx)
		case render.ActStop:
			ctrl.Stop()
		case render.ActNextEffect:
			err = ctrl.NextEffect(ctx)
		case render.ActPrevEffect:
			err = ctrl.PreviousEffect(ctx)
		case render.ActPlayEffect:
			err = ctrl.PlaySelectedEffect(ctx)
		}
		if err != nil && !errors.Is(err, playback.ErrSuperseded) {
			log.Warnf("%s: %v", a, err)
		}
		after()
	}
}

func statusLine(st playback.Status) string {
	song := st.NowPlaying
	if song == "" {
		song = st.SongID
	}
	fx := "-"
	if st.EffectCount > 0 {
		fx = fmt.Sprintf("%d/%d %s", st.Effect+1, st.EffectCount, st.EffectName)
	}
	return fmt.Sprintf("[%s] %d/%d %s | sfx [%s] %s | n/p song  enter play  s stop  [ ] sfx  space fire  q quit",
		st.Music, st.Song+1, st.Songs, filepath.Base(song), st.Effects, fx)
}

type statusSetter interface {
	SetStatus(string)
}

func run(cfg config.Config) error {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	vis := pickVis(cfg)

	// The terminal view owns the screen, so logs go to a file.
	var logOut io.Writer = os.Stderr
	if vis == "terminal" {
		path := filepath.Join(os.TempDir(), "pt3play.log")
		f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		logOut = f
		fmt.Fprintf(os.Stderr, "pt3play: logging to %s\n", path)
	}
	lf := newLoggerFactory(cfg, logOut)
	log := lf.NewLogger("pt3play")

	fetch := newFetcher(ctx, cfg, lf.NewLogger("assets"))
	store := spectrum.NewStore(cfg.Bands)
	music := source.NewMusic(cfg.SampleRate, cfg.Bands, cfg.SpecHeight)
	sfx := source.NewEffects(cfg.SampleRate)
	ctrl := playback.NewController(fetch, music, sfx, store, cfg.Songs, cfg.EffectBank, lf.NewLogger("playback"))

	var hist *history.Store
	if cfg.HistoryDB != "" {
		var err error
		if hist, err = history.Open(cfg.HistoryDB, lf.NewLogger("history")); err != nil {
			return err
		}
		defer hist.Close()
		ctrl.SetRecorder(hist)
	}

	// Front end
	var (
		canvas render.Canvas
		window *ebitenview.View
		tty    *render.Terminal
	)
	switch vis {
	case "ebiten":
		window = ebitenview.New(cfg.Width, cfg.Height, lf.NewLogger("view"))
		canvas = window
	case "terminal":
		screen, err := tcell.NewScreen()
		if err != nil {
			return fmt.Errorf("open terminal: %w", err)
		}
		if tty, err = render.NewTerminal(screen); err != nil {
			return err
		}
		defer tty.Close()
		canvas = tty
	}
	var view playback.Redrawer
	if canvas != nil {
		view = render.NewRenderer(store, cfg.SpecHeight, canvas, spectrum.Viewport{Width: cfg.Width, Height: cfg.Height})
	}

	broadcaster := stream.NewBroadcaster()
	sess := playback.NewSession(sessionConfig(cfg), ctrl, store, music, sfx, sinkFactory(cfg, broadcaster), view, lf.NewLogger("session"))
	defer sess.Shutdown()

	if err := ctrl.LoadEffectBank(ctx); err != nil {
		log.Warnf("Effects unavailable: %v", err)
	}

	updateStatus := func() {
		if s, ok := canvas.(statusSetter); ok {
			s.SetStatus(statusLine(ctrl.Status()))
		}
	}
	handle := keyHandler(ctx, ctrl, lf.NewLogger("keys"), updateStatus)
	updateStatus()

	g, gctx := errgroup.WithContext(ctx)

	if cfg.Port != 0 {
		mux := http.NewServeMux()
		srv := api.New(ctrl, sess, store, lf.NewLogger("api"))
		if hist != nil {
			srv.History = hist
		}
		if cfg.AudioOutput == "stream" {
			rtc := stream.NewWebRTCHandler(broadcaster, cfg.SampleRate, time.Second/time.Duration(cfg.FrameRate), lf)
			defer rtc.Close()
			mux.Handle("/stream", stream.NewMP3Handler(broadcaster, cfg.SampleRate, lf.NewLogger("stream")))
			mux.Handle("/offer", rtc)
			srv.Listeners = func() int { return broadcaster.ListenerCount() }
		}
		srv.Register(mux)

		server := &http.Server{Addr: ":" + strconv.Itoa(cfg.Port), Handler: mux}
		g.Go(func() error {
			log.Infof("pt3play API on %s", server.Addr)
			if err := server.ListenAndServe(); err != http.ErrServerClosed {
				return fmt.Errorf("HTTP server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutCtx, done := context.WithTimeout(context.Background(), 5*time.Second)
			defer done()
			return server.Shutdown(shutCtx)
		})
	}

	// Status text follows state changes made through the API too.
	g.Go(func() error {
		t := time.NewTicker(time.Second)
		defer t.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-t.C:
				updateStatus()
			}
		}
	})

	switch vis {
	case "terminal":
		g.Go(func() error {
			// Keys must not stall the event loop behind an asset fetch.
			err := tty.Run(gctx, func(a render.Action) { go handle(a) })
			cancel()
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	case "none":
		if err := ctrl.Play(ctx, 0); err != nil {
			log.Warnf("Autoplay: %v", err)
		}
	}

	log.Infof("pt3play ready: %d songs, %s output, %s display", len(cfg.Songs), cfg.AudioOutput, vis)

	if window != nil {
		// ebiten owns the main goroutine until the window closes.
		window.SetKeyHandler(handle)
		go func() {
			<-gctx.Done()
			window.Close()
		}()
		err := window.Run("pt3play")
		cancel()
		if err != nil {
			g.Wait()
			return fmt.Errorf("window: %w", err)
		}
	}

	err := g.Wait()
	log.Info("Shutting down")
	return err
}
