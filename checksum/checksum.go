// Package checksum implements the rolling hash used to detect
// corruption of a module's embedded self-description. It is a
// DJB2-style fold over 32-bit words and provides no cryptographic
// guarantee; it must not be used for trust decisions.
package checksum

import "encoding/binary"

// Sum folds data as little-endian 32-bit words with
// sum = ((sum << 5) + sum) ^ word, seeded at 0.
// A trailing partial word is ignored.
func Sum(data []byte) uint32 {
	var sum uint32
	for len(data) >= 4 {
		word := binary.LittleEndian.Uint32(data)
		sum = ((sum << 5) + sum) ^ word
		data = data[4:]
	}
	return sum
}
