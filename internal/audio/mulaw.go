package audio

import "math/bits"

// G.711 mu-law companding constants.
const (
	mulawBias = 0x84
	mulawClip = 32635
)

// decodeTable expands every mu-law code word to its linear PCM16 value.
// Built once at init so per-frame decoding is a table walk.
var decodeTable [256]int16

func init() {
	for i := 0; i < 256; i++ {
		u := ^uint8(i)
		exponent := (u >> 4) & 0x07
		mantissa := u & 0x0F
		sample := ((int32(mantissa) << 3) + mulawBias) << exponent
		sample -= mulawBias
		if u&0x80 != 0 {
			sample = -sample
		}
		decodeTable[i] = int16(sample)
	}
}

// DecodeMulaw expands mu-law code words into linear PCM16 samples.
func DecodeMulaw(src []byte) []int16 {
	out := make([]int16, len(src))
	for i, b := range src {
		out[i] = decodeTable[b]
	}
	return out
}

// EncodeMulaw compresses linear PCM16 samples into mu-law code words.
//
// The encoder emits the canonical zero code 0xFF for silence; the
// negative-zero code 0x7F is never produced, so a decode/encode round
// trip maps 0x7F to 0xFF and is the identity on every other code word.
func EncodeMulaw(samples []int16) []byte {
	out := make([]byte, len(samples))
	for i, s := range samples {
		out[i] = encodeMulawSample(s)
	}
	return out
}

func encodeMulawSample(s int16) byte {
	sign := byte(0)
	v := int32(s)
	if v < 0 {
		v = -v
		sign = 0x80
	}
	if v > mulawClip {
		v = mulawClip
	}
	v += mulawBias

	exponent := 0
	if seg := uint8(v >> 7); seg != 0 {
		exponent = bits.Len8(seg) - 1
	}
	mantissa := byte(v>>(uint(exponent)+3)) & 0x0F

	return ^(sign | byte(exponent)<<4 | mantissa)
}
