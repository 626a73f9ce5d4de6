package checksum

import "testing"

func TestSum(t *testing.T) {
	tests := []struct {
		name string
		data []byte
		want uint32
	}{
		{
			name: "empty",
			data: nil,
			want: 0,
		},
		{
			// First word folds against a zero seed: ((0<<5)+0)^w = w.
			name: "single word",
			data: []byte{0x50, 0x45, 0x44, 0x48}, // "HDEP" magic, LE
			want: 0x48444550,
		},
		{
			// 1*33 ^ 2 = 0x21 ^ 0x02.
			name: "two words",
			data: []byte{0x01, 0x00, 0x00, 0x00, 0x02, 0x00, 0x00, 0x00},
			want: 0x23,
		},
		{
			name: "zero words accumulate nothing",
			data: make([]byte, 16),
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Sum(tt.data); got != tt.want {
				t.Errorf("Sum: got 0x%08x, want 0x%08x", got, tt.want)
			}
		})
	}
}

func TestSumIgnoresTrailingPartialWord(t *testing.T) {
	full := []byte{0x01, 0x00, 0x00, 0x00}
	withTail := append(append([]byte{}, full...), 0xff, 0xff, 0xff)

	if Sum(full) != Sum(withTail) {
		t.Error("trailing partial word must not affect the sum")
	}
}

func TestSumShiftWrapsWithoutPanic(t *testing.T) {
	// 64 high-bit words force the <<5 to overflow uint32 repeatedly.
	data := make([]byte, 256)
	for i := 0; i < len(data); i += 4 {
		data[i+3] = 0xff
	}
	first := Sum(data)
	second := Sum(data)
	if first != second {
		t.Error("Sum must be deterministic")
	}
}
