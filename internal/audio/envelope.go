package audio

// Smoothstep returns the smoothstep interpolation for t in [0,1].
func Smoothstep(t float64) float64 {
	if t <= 0 {
		return 0
	}
	if t >= 1 {
		return 1
	}
	return t * t * (3 - 2*t)
}

// ApplyEnvelope shapes samples in place with a smoothstep fade-in over the
// first attack samples and a fade-out over the last release samples.
// Ramps longer than half the buffer are shortened so they never overlap.
func ApplyEnvelope(samples []StereoSample, attack, release int) {
	half := len(samples) / 2
	attack = min(attack, half)
	release = min(release, half)

	for i := 0; i < attack; i++ {
		scale(&samples[i], Smoothstep(float64(i)/float64(attack)))
	}
	for i := 0; i < release; i++ {
		idx := len(samples) - 1 - i
		scale(&samples[idx], Smoothstep(float64(i)/float64(release)))
	}
}

func scale(s *StereoSample, gain float64) {
	s.L = int16(float64(s.L) * gain)
	s.R = int16(float64(s.R) * gain)
}
