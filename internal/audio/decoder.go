package audio

import (
	"bytes"
	"errors"
	"fmt"
	"io"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/mp3"
	"github.com/gopxl/beep/wav"
)

// ErrUnsupportedAsset is returned for asset bytes that are neither WAV nor MP3.
var ErrUnsupportedAsset = errors.New("unsupported asset format")

// DecodeAsset decodes a WAV or MP3 asset held in memory into stereo pairs at
// the given output rate. Mono input is duplicated onto both channels.
func DecodeAsset(data []byte, rate int) ([]StereoSample, error) {
	var (
		s      beep.StreamSeekCloser
		format beep.Format
		err    error
	)
	switch {
	case isWAV(data):
		s, format, err = wav.Decode(bytes.NewReader(data))
	case isMP3(data):
		s, format, err = mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	default:
		return nil, ErrUnsupportedAsset
	}
	if err != nil {
		return nil, fmt.Errorf("decode asset: %w", err)
	}
	defer s.Close()

	var streamer beep.Streamer = s
	if int(format.SampleRate) != rate {
		streamer = beep.Resample(4, format.SampleRate, beep.SampleRate(rate), s)
	}
	return Drain(streamer, s.Len())
}

// Drain reads a finite streamer to the end and converts it to int16 pairs.
// sizeHint preallocates the result and may be zero.
func Drain(s beep.Streamer, sizeHint int) ([]StereoSample, error) {
	out := make([]StereoSample, 0, sizeHint)
	buf := make([][2]float64, 1024)
	for {
		n, ok := s.Stream(buf)
		for _, f := range buf[:n] {
			out = append(out, StereoSample{L: floatToInt16(f[0]), R: floatToInt16(f[1])})
		}
		if !ok {
			break
		}
	}
	if err := s.Err(); err != nil {
		return nil, fmt.Errorf("stream asset: %w", err)
	}
	return out, nil
}

func floatToInt16(v float64) int16 {
	// Clip to int16 range
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	return int16(v * 32767)
}

func isWAV(data []byte) bool {
	return len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func isMP3(data []byte) bool {
	if len(data) >= 3 && string(data[:3]) == "ID3" {
		return true
	}
	// MPEG frame sync
	return len(data) >= 2 && data[0] == 0xFF && data[1]&0xE0 == 0xE0
}
