package audio

import "testing"

func TestMulawRoundTripAllCodes(t *testing.T) {
	for i := 0; i < 256; i++ {
		code := byte(i)
		samples := DecodeMulaw([]byte{code})
		got := EncodeMulaw(samples)[0]

		want := code
		if code == 0x7F {
			// Negative zero normalizes to the canonical zero code.
			want = 0xFF
		}
		if got != want {
			t.Fatalf("round trip code %#02x: got %#02x, want %#02x (linear %d)", code, got, want, samples[0])
		}
	}
}

func TestMulawKnownValues(t *testing.T) {
	cases := []struct {
		code   byte
		linear int16
	}{
		{0xFF, 0},      // canonical zero
		{0x7F, 0},      // negative zero
		{0x00, -32124}, // most negative
		{0x80, 32124},  // most positive
		{0xED, 164},
	}
	for _, tc := range cases {
		got := DecodeMulaw([]byte{tc.code})[0]
		if got != tc.linear {
			t.Errorf("DecodeMulaw(%#02x) = %d, want %d", tc.code, got, tc.linear)
		}
	}
}

func TestEncodeMulawClamps(t *testing.T) {
	if got := EncodeMulaw([]int16{32767})[0]; got != 0x80 {
		t.Fatalf("EncodeMulaw(32767) = %#02x, want 0x80", got)
	}
	if got := EncodeMulaw([]int16{-32768})[0]; got != 0x00 {
		t.Fatalf("EncodeMulaw(-32768) = %#02x, want 0x00", got)
	}
}

func TestEncodeMulawSilence(t *testing.T) {
	if got := EncodeMulaw([]int16{0})[0]; got != 0xFF {
		t.Fatalf("EncodeMulaw(0) = %#02x, want 0xFF", got)
	}
}
