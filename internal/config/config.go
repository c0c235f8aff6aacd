package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/satindergrewal/pt3play/internal/spectrum"
)

// DefaultSongs is the built-in music catalog, relative to the asset root.
var DefaultSongs = []string{
	"music/199Xnostalgy.wav",
	"music/autumn_colors.wav",
	"music/a_little_journey.wav",
	"music/buhanidvebatonki.wav",
	"music/chinesewatch.wav",
	"music/durkadablues.wav",
	"music/enchanted_woods.wav",
	"music/hard.wav",
	"music/itscomefromthedark.wav",
	"music/kakvsegda.wav",
	"music/megamix.wav",
	"music/mehalanholia.wav",
	"music/moonlight.wav",
	"music/oldlove.wav",
	"music/proper_summer.wav",
	"music/p_pp.wav",
	"music/snowball_game.wav",
	"music/spring_came.wav",
	"music/summer.wav",
	"music/timeup.wav",
	"music/under_the_sun.wav",
	"music/vozhidaniitepla.wav",
}

// ErrInvalid wraps every validation failure.
var ErrInvalid = errors.New("invalid config")

// Config holds all runtime configuration, loaded from environment variables.
type Config struct {
	// Audio timing
	SampleRate int
	FrameRate  int // frame clock ticks per second
	BlockSize  int // samples per scheduler block

	// Scheduler watermarks, in blocks
	LowTide        int
	HighTide       int
	RequestSize    int
	UnderrunPolicy string // catchup or silence

	// Spectrum
	Bands      int
	SpecHeight int

	// Assets
	AssetDir   string
	AssetURL   string // overrides AssetDir when set
	AssetKey   string // bearer token for AssetURL
	Songs      []string
	EffectBank string

	// Front ends
	AudioOutput string // oto, portaudio, stream, none
	Vis         string // auto, ebiten, terminal, none
	Width       int
	Height      int
	Port        int // 0 disables the HTTP API
	HistoryDB   string
	LogLevel    string
}

// Load reads configuration from environment variables with sane defaults.
func Load() Config {
	return Config{
		SampleRate: envInt("PT3_SAMPLE_RATE", 48000),
		FrameRate:  envInt("PT3_FRAME_RATE", 50),
		BlockSize:  envInt("PT3_BLOCK_SIZE", 128),

		LowTide:        envInt("PT3_LOW_TIDE", 10),
		HighTide:       envInt("PT3_HIGH_TIDE", 50),
		RequestSize:    envInt("PT3_REQUEST_SIZE", 10),
		UnderrunPolicy: envStr("PT3_UNDERRUN_POLICY", "catchup"),

		Bands:      envInt("PT3_BANDS", 32),
		SpecHeight: envInt("PT3_SPEC_HEIGHT", 64),

		AssetDir:   envStr("PT3_ASSET_DIR", "assets"),
		AssetURL:   envStr("PT3_ASSET_URL", ""),
		AssetKey:   envStr("PT3_ASSET_KEY", ""),
		Songs:      envList("PT3_SONGS", DefaultSongs),
		EffectBank: envStr("PT3_SFX_BANK", "sfx/bank.json"),

		AudioOutput: envStr("PT3_AUDIO_OUTPUT", "oto"),
		Vis:         envStr("PT3_VIS", "auto"),
		Width:       envInt("PT3_WIDTH", 640),
		Height:      envInt("PT3_HEIGHT", 256),
		Port:        envInt("PT3_PORT", 8080),
		HistoryDB:   envStr("PT3_HISTORY_DB", ""),
		LogLevel:    envStr("PT3_LOG_LEVEL", "info"),
	}
}

// FrameSize returns the number of samples in one frame clock tick.
func (c Config) FrameSize() int {
	return c.SampleRate / c.FrameRate
}

// Validate reports the first inconsistent setting.
func (c Config) Validate() error {
	switch {
	case c.SampleRate <= 0:
		return fmt.Errorf("%w: sample rate %d", ErrInvalid, c.SampleRate)
	case c.FrameRate <= 0 || c.SampleRate%c.FrameRate != 0:
		return fmt.Errorf("%w: frame rate %d must divide sample rate %d", ErrInvalid, c.FrameRate, c.SampleRate)
	case c.BlockSize <= 0:
		return fmt.Errorf("%w: block size %d", ErrInvalid, c.BlockSize)
	case c.LowTide < 0 || c.HighTide <= c.LowTide || c.RequestSize <= 0:
		return fmt.Errorf("%w: watermarks low=%d high=%d request=%d", ErrInvalid, c.LowTide, c.HighTide, c.RequestSize)
	case c.Bands <= 0 || c.SpecHeight <= 0:
		return fmt.Errorf("%w: spectrum %d bands x %d", ErrInvalid, c.Bands, c.SpecHeight)
	case c.Bands > spectrum.MaxBands:
		return fmt.Errorf("%w: %d bands exceeds %d", ErrInvalid, c.Bands, spectrum.MaxBands)
	case len(c.Songs) == 0:
		return fmt.Errorf("%w: empty song list", ErrInvalid)
	}
	switch c.AudioOutput {
	case "oto", "portaudio", "stream", "none":
	default:
		return fmt.Errorf("%w: audio output %q", ErrInvalid, c.AudioOutput)
	}
	switch c.Vis {
	case "auto", "ebiten", "terminal", "none":
	default:
		return fmt.Errorf("%w: visualization %q", ErrInvalid, c.Vis)
	}
	return nil
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

// envList splits a comma-separated value, dropping empty entries.
func envList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return fallback
	}
	return out
}
