package audio

// The telephony leg runs at 8 kHz and the realtime endpoint at 24 kHz.
// The 1:3 integer ratio keeps resampling exact: linear interpolation on
// the way up, a 3-tap mean on the way down. Per 20 ms frame (160 samples
// in, 480 out) this stays well under the per-frame CPU budget.

// Upsample8to24 converts 8 kHz samples to 24 kHz by linear interpolation.
func Upsample8to24(in []int16) []int16 {
	if len(in) == 0 {
		return nil
	}
	out := make([]int16, len(in)*3)
	for i, s := range in {
		next := s
		if i+1 < len(in) {
			next = in[i+1]
		}
		a := int32(s)
		b := int32(next)
		out[3*i] = s
		out[3*i+1] = int16(a + (b-a)/3)
		out[3*i+2] = int16(a + 2*(b-a)/3)
	}
	return out
}

// Downsample24to8 converts 24 kHz samples to 8 kHz by averaging each
// group of three. Trailing samples that do not fill a group are dropped.
func Downsample24to8(in []int16) []int16 {
	n := len(in) / 3
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		sum := int32(in[3*i]) + int32(in[3*i+1]) + int32(in[3*i+2])
		out[i] = int16(sum / 3)
	}
	return out
}
