// Package playback owns the player state: song and effect catalogs, the
// per-channel Idle/Loading/Playing machines, the frame clock and the audio
// session tying scheduler, sink and renderer together.
package playback

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/pion/logging"

	"github.com/satindergrewal/pt3play/internal/assets"
	"github.com/satindergrewal/pt3play/internal/audio"
	"github.com/satindergrewal/pt3play/internal/spectrum"
)

var (
	// ErrAssetLoad wraps fetch and decode failures. The channel returns to
	// Idle; a song already sounding keeps playing and stays in NowPlaying.
	ErrAssetLoad = errors.New("asset load failed")
	// ErrSuperseded is returned when a newer request, Stop or Release
	// replaced this one while it was loading. Its result is discarded.
	ErrSuperseded = errors.New("load superseded")
	// ErrNoEffectBank is returned when triggering effects before a bank loaded.
	ErrNoEffectBank = errors.New("no effect bank loaded")
	// ErrEmptyCatalog is returned when playing from an empty song list.
	ErrEmptyCatalog = errors.New("song catalog is empty")
)

// State of one playback channel.
type State int

const (
	Idle State = iota
	Loading
	Playing
)

func (s State) String() string {
	switch s {
	case Loading:
		return "loading"
	case Playing:
		return "playing"
	}
	return "idle"
}

// MarshalText renders the state name in JSON.
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EffectSource is the effects channel: a SampleSource with a bank of
// triggerable effects.
type EffectSource interface {
	audio.SampleSource
	Trigger(i int) error
	Count() int
	Name(i int) string
	Active() bool
}

// Event is one play attempt, reported to the Recorder.
type Event struct {
	Kind  string // "song" or "effect"
	Index int
	ID    string
	Err   error
	At    time.Time
}

// Recorder receives play attempts, for example to keep a history.
type Recorder interface {
	Record(Event)
}

// Status is a point-in-time view of the controller.
type Status struct {
	Music       State  `json:"music"`
	Effects     State  `json:"effects"`
	Song        int    `json:"song"`
	SongID      string `json:"song_id"`
	NowPlaying  string `json:"now_playing"`
	Songs       int    `json:"songs"`
	Effect      int    `json:"effect"`
	EffectName  string `json:"effect_name"`
	EffectCount int    `json:"effect_count"`
}

// Controller drives both channels. Navigation never starts playback; Play
// and PlayEffect do.
type Controller struct {
	fetch  assets.Fetcher
	music  audio.SampleSource
	sfx    EffectSource
	store  *spectrum.Store
	songs  []string
	bankID string
	log    logging.LeveledLogger

	mu          sync.Mutex
	songIndex   int
	effectIndex int
	musicState  State
	fxState     State
	musicGen    uint64
	fxGen       uint64
	nowPlaying  string
	recorder    Recorder
	activate    func(context.Context) error

	// loadMu serializes source mutation so a stale load can never land
	// after the Stop or newer Play that superseded it.
	loadMu sync.Mutex
}

// NewController creates a controller over a song catalog and an effect
// bank id, both resolved through fetch.
func NewController(fetch assets.Fetcher, music audio.SampleSource, sfx EffectSource, store *spectrum.Store, songs []string, bankID string, log logging.LeveledLogger) *Controller {
	return &Controller{
		fetch:  fetch,
		music:  music,
		sfx:    sfx,
		store:  store,
		songs:  append([]string(nil), songs...),
		bankID: bankID,
		log:    log,
	}
}

// SetRecorder sets the play history hook. Pass nil to disable.
func (c *Controller) SetRecorder(r Recorder) {
	c.mu.Lock()
	c.recorder = r
	c.mu.Unlock()
}

// OnFirstPlay sets a hook run before every Play and PlayEffect. The audio
// session uses it to start lazily; it must be idempotent.
func (c *Controller) OnFirstPlay(fn func(context.Context) error) {
	c.mu.Lock()
	c.activate = fn
	c.mu.Unlock()
}

func wrap(i, n int) int {
	return ((i % n) + n) % n
}

// SelectNext advances the song index without playing.
func (c *Controller) SelectNext() int { return c.selectSong(1) }

// SelectPrevious moves the song index back without playing.
func (c *Controller) SelectPrevious() int { return c.selectSong(-1) }

func (c *Controller) selectSong(delta int) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.songs) == 0 {
		return 0
	}
	c.songIndex = wrap(c.songIndex+delta, len(c.songs))
	return c.songIndex
}

// SelectNextEffect advances the effect index without triggering.
func (c *Controller) SelectNextEffect() int { return c.selectEffect(1) }

// SelectPreviousEffect moves the effect index back without triggering.
func (c *Controller) SelectPreviousEffect() int { return c.selectEffect(-1) }

func (c *Controller) selectEffect(delta int) int {
	n := c.sfx.Count()
	c.mu.Lock()
	defer c.mu.Unlock()
	if n == 0 {
		return 0
	}
	c.effectIndex = wrap(c.effectIndex+delta, n)
	return c.effectIndex
}

func (c *Controller) runActivate(ctx context.Context) error {
	c.mu.Lock()
	fn := c.activate
	c.mu.Unlock()
	if fn == nil {
		return nil
	}
	if err := fn(ctx); err != nil {
		return fmt.Errorf("start audio: %w", err)
	}
	return nil
}

// Play loads song index (wrapped) and starts it. On failure the music
// channel returns to Idle and the error wraps ErrAssetLoad.
func (c *Controller) Play(ctx context.Context, index int) error {
	c.mu.Lock()
	if len(c.songs) == 0 {
		c.mu.Unlock()
		return ErrEmptyCatalog
	}
	index = wrap(index, len(c.songs))
	c.mu.Unlock()

	if err := c.runActivate(ctx); err != nil {
		return err
	}

	c.mu.Lock()
	c.musicGen++
	gen := c.musicGen
	c.musicState = Loading
	c.songIndex = index
	id := c.songs[index]
	c.mu.Unlock()

	c.log.Debugf("Loading song %d: %s", index, id)
	err := c.loadSong(ctx, gen, id)
	c.record(Event{Kind: "song", Index: index, ID: id, Err: err, At: time.Now()})

	if errors.Is(err, ErrSuperseded) {
		c.log.Debugf("Discarded stale load of %s", id)
	} else if err != nil {
		c.log.Warnf("Play %s: %v", id, err)
	} else {
		c.log.Infof("Now playing %s", id)
	}
	return err
}

func (c *Controller) loadSong(ctx context.Context, gen uint64, id string) error {
	data, fetchErr := c.fetch.Fetch(ctx, id)

	c.loadMu.Lock()
	var loadErr error
	if fetchErr == nil && c.currentMusicGen() == gen {
		loadErr = c.music.LoadAsset(data)
	}
	c.loadMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.musicGen != gen {
		return ErrSuperseded
	}
	if err := errors.Join(fetchErr, loadErr); err != nil {
		c.musicState = Idle
		return fmt.Errorf("%w: %s: %w", ErrAssetLoad, id, err)
	}
	c.musicState = Playing
	c.nowPlaying = id
	return nil
}

func (c *Controller) currentMusicGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.musicGen
}

// PlaySelected plays the selected song.
func (c *Controller) PlaySelected(ctx context.Context) error {
	c.mu.Lock()
	i := c.songIndex
	c.mu.Unlock()
	return c.Play(ctx, i)
}

// NextSong selects and plays the next song.
func (c *Controller) NextSong(ctx context.Context) error {
	return c.Play(ctx, c.SelectNext())
}

// PreviousSong selects and plays the previous song.
func (c *Controller) PreviousSong(ctx context.Context) error {
	return c.Play(ctx, c.SelectPrevious())
}

// Stop silences the music channel. A load in flight is superseded.
func (c *Controller) Stop() {
	c.mu.Lock()
	c.musicGen++
	c.musicState = Idle
	c.nowPlaying = ""
	c.mu.Unlock()

	c.loadMu.Lock()
	c.music.Release()
	c.loadMu.Unlock()
}

// LoadEffectBank fetches and loads the effect bank. The effect index
// resets to the first effect.
func (c *Controller) LoadEffectBank(ctx context.Context) error {
	c.mu.Lock()
	c.fxGen++
	gen := c.fxGen
	c.fxState = Loading
	c.mu.Unlock()

	data, err := c.fetch.Fetch(ctx, c.bankID)

	c.loadMu.Lock()
	if err == nil && c.currentFxGen() == gen {
		err = c.sfx.LoadAsset(data)
	}
	c.loadMu.Unlock()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fxGen != gen {
		return ErrSuperseded
	}
	c.fxState = Idle
	if err != nil {
		return fmt.Errorf("%w: effect bank %s: %w", ErrAssetLoad, c.bankID, err)
	}
	c.effectIndex = 0
	c.log.Infof("Loaded effect bank %s (%d effects)", c.bankID, c.sfx.Count())
	return nil
}

func (c *Controller) currentFxGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fxGen
}

// PlayEffect triggers effect index (wrapped) and selects it.
func (c *Controller) PlayEffect(ctx context.Context, index int) error {
	if err := c.runActivate(ctx); err != nil {
		return err
	}
	n := c.sfx.Count()
	if n == 0 {
		return ErrNoEffectBank
	}
	index = wrap(index, n)

	c.mu.Lock()
	c.effectIndex = index
	c.mu.Unlock()

	err := c.sfx.Trigger(index)
	c.record(Event{Kind: "effect", Index: index, ID: c.sfx.Name(index), Err: err, At: time.Now()})
	return err
}

// PlaySelectedEffect triggers the selected effect.
func (c *Controller) PlaySelectedEffect(ctx context.Context) error {
	c.mu.Lock()
	i := c.effectIndex
	c.mu.Unlock()
	return c.PlayEffect(ctx, i)
}

// NextEffect selects and triggers the next effect.
func (c *Controller) NextEffect(ctx context.Context) error {
	if c.sfx.Count() == 0 {
		return ErrNoEffectBank
	}
	return c.PlayEffect(ctx, c.SelectNextEffect())
}

// PreviousEffect selects and triggers the previous effect.
func (c *Controller) PreviousEffect(ctx context.Context) error {
	if c.sfx.Count() == 0 {
		return ErrNoEffectBank
	}
	return c.PlayEffect(ctx, c.SelectPreviousEffect())
}

// Release stops both channels and drops their assets. Loads in flight are
// superseded. Used by session teardown.
func (c *Controller) Release() {
	c.mu.Lock()
	c.musicGen++
	c.fxGen++
	c.musicState, c.fxState = Idle, Idle
	c.nowPlaying = ""
	c.mu.Unlock()

	c.loadMu.Lock()
	c.music.Release()
	c.sfx.Release()
	c.loadMu.Unlock()
}

// RefreshSnapshot publishes the music source's current spectrum, or an
// all-zero snapshot when no song is sounding. Called once per frame.
func (c *Controller) RefreshSnapshot() {
	snap := spectrum.NewSnapshot(c.store.Bands())

	c.mu.Lock()
	sounding := c.nowPlaying != ""
	c.mu.Unlock()

	if ss, ok := c.music.(audio.SpectrumSource); ok && sounding {
		ss.Spectrum(snap.Levels, snap.Colors)
	}
	c.store.Swap(snap)
}

// Status returns the current state of both channels.
func (c *Controller) Status() Status {
	n := c.sfx.Count()
	active := c.sfx.Active()

	c.mu.Lock()
	defer c.mu.Unlock()
	st := Status{
		Music:       c.musicState,
		Effects:     c.fxState,
		Song:        c.songIndex,
		NowPlaying:  c.nowPlaying,
		Songs:       len(c.songs),
		Effect:      c.effectIndex,
		EffectCount: n,
	}
	if len(c.songs) > 0 {
		st.SongID = c.songs[c.songIndex]
	}
	if st.Effects == Idle && active {
		st.Effects = Playing
	}
	if n > 0 {
		st.EffectName = c.sfx.Name(c.effectIndex)
	}
	return st
}

// Songs returns the song catalog.
func (c *Controller) Songs() []string {
	return append([]string(nil), c.songs...)
}

func (c *Controller) record(e Event) {
	c.mu.Lock()
	r := c.recorder
	c.mu.Unlock()
	if r != nil {
		r.Record(e)
	}
}
