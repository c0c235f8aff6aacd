package audio

import "encoding/binary"

const (
	SampleRate   = 48000
	FrameRate    = 50 // chip frames per second
	Channels     = 2
	BitDepth     = 16
	FrameSize    = SampleRate / FrameRate // samples per channel per frame
	FrameSamples = FrameSize * Channels   // total interleaved samples per frame
	BlockSize    = 128                    // default samples per mixed block
	BytesPerPair = Channels * 2           // bytes per stereo pair (int16 LE)
)

// StereoSample is one left/right pair of signed 16-bit amplitudes.
type StereoSample struct {
	L, R int16
}

// SampleSource produces one stereo pair per call. EmulateSample runs on the
// audio production path only; LoadAsset and Release may be called from other
// goroutines and must be safe against a concurrent EmulateSample.
type SampleSource interface {
	EmulateSample() StereoSample
	// LoadAsset replaces the per-asset state. On error the previous state is kept.
	LoadAsset(data []byte) error
	// Release drops the per-asset state; the source emits silence afterwards.
	Release()
}

// SpectrumSource is implemented by sources that expose per-band levels.
// Spectrum fills levels and colors (equal length) and is safe to call
// concurrently with EmulateSample.
type SpectrumSource interface {
	Spectrum(levels []uint16, colors []uint32)
}

// Puller is the audio sink's view of the scheduler.
type Puller interface {
	Pull(dst []StereoSample) int
}

// Silence is a SampleSource that always emits zero.
type Silence struct{}

func (Silence) EmulateSample() StereoSample { return StereoSample{} }
func (Silence) LoadAsset([]byte) error      { return nil }
func (Silence) Release()                    {}

// PutSamples encodes pairs as interleaved little-endian int16 into buf.
// buf must hold at least len(samples)*BytesPerPair bytes.
func PutSamples(buf []byte, samples []StereoSample) int {
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*4:], uint16(s.L))
		binary.LittleEndian.PutUint16(buf[i*4+2:], uint16(s.R))
	}
	return len(samples) * BytesPerPair
}

// Interleave writes pairs into an interleaved int16 slice of len(samples)*2.
func Interleave(dst []int16, samples []StereoSample) {
	for i, s := range samples {
		dst[i*2] = s.L
		dst[i*2+1] = s.R
	}
}

// SamplesToBytes converts interleaved int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}
