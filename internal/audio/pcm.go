package audio

// PCM16LEBytes serializes samples as little-endian PCM16, the layout the
// realtime endpoint consumes.
func PCM16LEBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		out[2*i] = byte(s)
		out[2*i+1] = byte(s >> 8)
	}
	return out
}

// SamplesFromPCM16LE parses little-endian PCM16 bytes into samples.
// A trailing odd byte is ignored.
func SamplesFromPCM16LE(data []byte) []int16 {
	n := len(data) / 2
	out := make([]int16, n)
	for i := 0; i < n; i++ {
		out[i] = int16(uint16(data[2*i]) | uint16(data[2*i+1])<<8)
	}
	return out
}
