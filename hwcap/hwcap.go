// Package hwcap probes host hardware capability flags once at startup
// by scanning the ELF auxiliary vector the kernel hands every process.
// Detection failure degrades silently to "feature absent"; it never
// blocks initialization.
package hwcap

import (
	"encoding/binary"
	"io"
	"math/bits"
	"os"
)

// DefaultAuxvPath is the kernel's auxiliary vector stream for the
// current process.
const DefaultAuxvPath = "/proc/self/auxv"

// Auxiliary vector key and HWCAP bits for the ARMv7a target.
const (
	atHWCAP   = 16
	hwcapNEON = 1 << 12
)

// Features holds the detected hardware capability flags.
type Features struct {
	// NEON reports SIMD acceleration availability, gating the
	// hardware-accelerated compression module in the stack policy.
	NEON bool
}

// Detect scans the process auxiliary vector. A missing stream or an
// absent HWCAP entry yields the zero value; no error is surfaced.
func Detect() Features {
	return DetectPath(DefaultAuxvPath)
}

// DetectPath scans the auxiliary vector stream at path.
func DetectPath(path string) Features {
	f, err := os.Open(path)
	if err != nil {
		return Features{}
	}
	defer f.Close()
	return parse(f, bits.UintSize/8)
}

// parse scans key/value pairs of wordSize bytes each, in host byte
// order, until the HWCAP entry or the end of the stream.
func parse(r io.Reader, wordSize int) Features {
	buf := make([]byte, 2*wordSize)
	for {
		if _, err := io.ReadFull(r, buf); err != nil {
			return Features{}
		}
		var key, val uint64
		switch wordSize {
		case 4:
			key = uint64(binary.NativeEndian.Uint32(buf))
			val = uint64(binary.NativeEndian.Uint32(buf[4:]))
		default:
			key = binary.NativeEndian.Uint64(buf)
			val = binary.NativeEndian.Uint64(buf[8:])
		}
		if key == atHWCAP {
			return Features{NEON: val&hwcapNEON != 0}
		}
	}
}
