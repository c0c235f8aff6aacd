package audio

import (
	"encoding/binary"
	"testing"
)

// --- Constants ---

func TestConstants(t *testing.T) {
	if FrameSize*FrameRate != SampleRate {
		t.Errorf("FrameSize*FrameRate = %d, want %d", FrameSize*FrameRate, SampleRate)
	}
	if FrameSamples != FrameSize*Channels {
		t.Errorf("FrameSamples = %d, want %d", FrameSamples, FrameSize*Channels)
	}
	if BytesPerPair != 4 {
		t.Errorf("BytesPerPair = %d, want 4", BytesPerPair)
	}
}

// --- Mix ---

func TestMixAverages(t *testing.T) {
	tests := []struct {
		music, sfx, want StereoSample
	}{
		{StereoSample{30000, 30000}, StereoSample{10000, 10000}, StereoSample{20000, 20000}},
		{StereoSample{32000, -100}, StereoSample{32000, 100}, StereoSample{32000, 0}},
		{StereoSample{32767, 32767}, StereoSample{32767, 32767}, StereoSample{32767, 32767}},
		{StereoSample{-32768, -32768}, StereoSample{-32768, -32768}, StereoSample{-32768, -32768}},
		{StereoSample{3, -3}, StereoSample{0, 0}, StereoSample{1, -1}}, // truncation toward zero
		{StereoSample{0, 0}, StereoSample{0, 0}, StereoSample{0, 0}},
	}
	for _, tt := range tests {
		got := Mix(tt.music, tt.sfx)
		if got != tt.want {
			t.Errorf("Mix(%v, %v) = %v, want %v", tt.music, tt.sfx, got, tt.want)
		}
	}
}

func TestMixMatchesFormula(t *testing.T) {
	values := []int16{-32768, -32767, -20000, -1, 0, 1, 12345, 32000, 32767}
	for _, a := range values {
		for _, b := range values {
			want := min(32767, (int(a)+int(b))/2)
			got := Mix(StereoSample{L: a, R: b}, StereoSample{L: b, R: a})
			if int(got.L) != want || int(got.R) != want {
				t.Errorf("Mix(%d, %d) = %v, want %d on both channels", a, b, got, want)
			}
		}
	}
}

func TestMixDoesNotAllocate(t *testing.T) {
	m, s := StereoSample{1000, 2000}, StereoSample{-500, 700}
	allocs := testing.AllocsPerRun(100, func() {
		m = Mix(m, s)
	})
	if allocs != 0 {
		t.Errorf("Mix allocated %v times per call, want 0", allocs)
	}
}

func TestToFloat(t *testing.T) {
	l, r := ToFloat(StereoSample{L: -32768, R: 16384})
	if l != -1 || r != 0.5 {
		t.Errorf("ToFloat = (%v, %v), want (-1, 0.5)", l, r)
	}
}

// --- Smoothstep / envelope ---

func TestSmoothstepBoundaries(t *testing.T) {
	tests := []struct {
		input float64
		want  float64
	}{
		{-0.5, 0},
		{0, 0},
		{0.5, 0.5},
		{1, 1},
		{1.5, 1},
	}
	for _, tt := range tests {
		got := Smoothstep(tt.input)
		if got != tt.want {
			t.Errorf("Smoothstep(%v) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestSmoothstepMonotonic(t *testing.T) {
	prev := 0.0
	for i := 1; i <= 100; i++ {
		x := float64(i) / 100.0
		val := Smoothstep(x)
		if val < prev {
			t.Errorf("Smoothstep not monotonic: f(%v)=%v < f(%v)=%v", x, val, float64(i-1)/100.0, prev)
		}
		prev = val
	}
}

func TestApplyEnvelopeRamps(t *testing.T) {
	samples := make([]StereoSample, 100)
	for i := range samples {
		samples[i] = StereoSample{10000, -10000}
	}
	ApplyEnvelope(samples, 10, 20)

	if samples[0] != (StereoSample{}) {
		t.Errorf("first sample = %v, want silence", samples[0])
	}
	if samples[99] != (StereoSample{}) {
		t.Errorf("last sample = %v, want silence", samples[99])
	}
	if samples[50] != (StereoSample{10000, -10000}) {
		t.Errorf("middle sample = %v, want untouched", samples[50])
	}
	if samples[5].L <= 0 || samples[5].L >= 10000 {
		t.Errorf("attack sample = %d, want partial gain", samples[5].L)
	}
}

func TestApplyEnvelopeShortBuffer(t *testing.T) {
	samples := []StereoSample{{100, 100}, {100, 100}, {100, 100}}
	ApplyEnvelope(samples, 50, 50) // must not index out of range
}

// --- Encoding ---

func TestPutSamples(t *testing.T) {
	buf := make([]byte, 8)
	n := PutSamples(buf, []StereoSample{{256, -1}, {1, 2}})
	if n != 8 {
		t.Fatalf("PutSamples wrote %d bytes, want 8", n)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[0:])); got != 256 {
		t.Errorf("L0 = %d, want 256", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[2:])); got != -1 {
		t.Errorf("R0 = %d, want -1", got)
	}
	if got := int16(binary.LittleEndian.Uint16(buf[6:])); got != 2 {
		t.Errorf("R1 = %d, want 2", got)
	}
}

func TestInterleave(t *testing.T) {
	dst := make([]int16, 4)
	Interleave(dst, []StereoSample{{1, 2}, {3, 4}})
	for i, want := range []int16{1, 2, 3, 4} {
		if dst[i] != want {
			t.Errorf("dst[%d] = %d, want %d", i, dst[i], want)
		}
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0, 1, -1, 32767, -32768, 256}
	buf := SamplesToBytes(samples)
	if len(buf) != len(samples)*2 {
		t.Fatalf("SamplesToBytes length = %d, want %d", len(buf), len(samples)*2)
	}

	// 256 = 0x0100 -> bytes [0x00, 0x01]
	idx := 5 * 2
	if buf[idx] != 0x00 || buf[idx+1] != 0x01 {
		t.Errorf("Sample 256 encoded as [%02x, %02x], want [00, 01]", buf[idx], buf[idx+1])
	}
}
