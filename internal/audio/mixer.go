package audio

// Mix averages a music pair with an effects pair. Only the upper bound is
// clamped: two int16 inputs cannot average below -32768.
func Mix(music, sfx StereoSample) StereoSample {
	l := (int(music.L) + int(sfx.L)) / 2
	r := (int(music.R) + int(sfx.R)) / 2
	if l > 32767 {
		l = 32767
	}
	if r > 32767 {
		r = 32767
	}
	return StereoSample{L: int16(l), R: int16(r)}
}

// ToFloat maps a pair onto the [-1, 1) device range.
func ToFloat(s StereoSample) (float32, float32) {
	return float32(s.L) / 32768, float32(s.R) / 32768
}
