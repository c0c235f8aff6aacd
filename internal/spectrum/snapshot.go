// Package spectrum holds the per-frame band snapshot shared between the
// playback path and the renderer, the FFT analyzer that produces it and the
// batcher that turns it into draw geometry.
package spectrum

import "sync/atomic"

const (
	DefaultBands  = 32
	DefaultHeight = 64 // maximum band level
)

// Snapshot is one frame of band levels and packed 0xRRGGBB colors. Levels
// and Colors always have equal length. A published snapshot is never
// modified.
type Snapshot struct {
	Levels []uint16 `json:"levels"`
	Colors []uint32 `json:"colors"`
}

// NewSnapshot returns an all-zero snapshot with n bands.
func NewSnapshot(n int) *Snapshot {
	return &Snapshot{
		Levels: make([]uint16, n),
		Colors: make([]uint32, n),
	}
}

// Bands returns the band count.
func (s *Snapshot) Bands() int {
	return len(s.Levels)
}

// Store publishes snapshots to concurrent readers. Readers always observe a
// complete snapshot, either the previous or the new one.
type Store struct {
	cur   atomic.Pointer[Snapshot]
	bands int
	swaps atomic.Uint64
}

// NewStore creates a store holding an all-zero snapshot of n bands.
func NewStore(n int) *Store {
	s := &Store{bands: n}
	s.Reset()
	return s
}

// Load returns the current snapshot.
func (s *Store) Load() *Snapshot {
	return s.cur.Load()
}

// Swap publishes snap. The caller must not modify it afterwards.
func (s *Store) Swap(snap *Snapshot) {
	s.cur.Store(snap)
	s.swaps.Add(1)
}

// Reset publishes an all-zero snapshot.
func (s *Store) Reset() {
	s.cur.Store(NewSnapshot(s.bands))
}

// Bands returns the configured band count.
func (s *Store) Bands() int {
	return s.bands
}

// Swaps returns how many snapshots have been published.
func (s *Store) Swaps() uint64 {
	return s.swaps.Load()
}
