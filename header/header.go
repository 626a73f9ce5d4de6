// Package header implements the on-disk module header of the .hmod
// container: a fixed-size, packed, little-endian descriptor embedded at
// the start of every loadable module file.
package header

import (
	"encoding/binary"
	"io"
	"os"
	"strings"

	"github.com/lumen-os/hdep/checksum"
	"github.com/lumen-os/hdep/errors"
)

// Header layout constants. Field order and widths are part of the wire
// contract; any file shorter than Size at its start is rejected.
const (
	// Magic is the module header magic number: the ASCII bytes of
	// "HDEP" packed big-endian, stored little-endian on the wire
	// (file bytes "PEDH").
	Magic uint32 = 0x48444550

	// MaxDeps is the capacity of the dependency list. The list is
	// zero-terminated; entries after the first zero are ignored.
	MaxDeps = 16

	nameLen   = 64
	authorLen = 32

	// Size is the total encoded header size in bytes.
	Size = 4 + 4 + 4 + 4 + MaxDeps*4 + nameLen + authorLen + 8 + 4

	// ChecksumOffset is where the stored checksum field begins. The
	// checksum covers everything before it.
	ChecksumOffset = Size - 4
)

// ModuleType is the module-type bitmask. A module may carry several
// type bits; a dependency entry names exactly one.
type ModuleType uint32

const (
	TypeCore     ModuleType = 0x01
	TypeCompress ModuleType = 0x02
	TypeEncrypt  ModuleType = 0x04
	TypeNetwork  ModuleType = 0x08
	TypeStorage  ModuleType = 0x10
	TypeHardware ModuleType = 0x20
)

var typeNames = []struct {
	bit  ModuleType
	name string
}{
	{TypeCore, "core"},
	{TypeCompress, "compress"},
	{TypeEncrypt, "encrypt"},
	{TypeNetwork, "network"},
	{TypeStorage, "storage"},
	{TypeHardware, "hardware"},
}

// Name returns the canonical name for a single-bit type, used to
// synthesize the expected module name for a dependency entry.
func (t ModuleType) Name() string {
	for _, tn := range typeNames {
		if t == tn.bit {
			return tn.name
		}
	}
	return "unknown"
}

// TypeFromName resolves a canonical type name back to its bit.
func TypeFromName(name string) (ModuleType, bool) {
	for _, tn := range typeNames {
		if name == tn.name {
			return tn.bit, true
		}
	}
	return 0, false
}

// String renders a bitmask as a pipe-joined list, e.g. "compress|hardware".
func (t ModuleType) String() string {
	if t == 0 {
		return "none"
	}
	var parts []string
	for _, tn := range typeNames {
		if t&tn.bit != 0 {
			parts = append(parts, tn.name)
		}
	}
	if rest := t &^ (TypeCore | TypeCompress | TypeEncrypt | TypeNetwork | TypeStorage | TypeHardware); rest != 0 {
		parts = append(parts, "unknown")
	}
	return strings.Join(parts, "|")
}

// Intersects reports whether any bit of mask is set in t.
func (t ModuleType) Intersects(mask ModuleType) bool {
	return t&mask != 0
}

// Version packs a major.minor pair into a u32 (major in the high 16 bits).
type Version uint32

// MakeVersion packs major and minor into a Version.
func MakeVersion(major, minor uint16) Version {
	return Version(uint32(major)<<16 | uint32(minor))
}

func (v Version) Major() uint16 { return uint16(v >> 16) }
func (v Version) Minor() uint16 { return uint16(v) }

func (v Version) String() string {
	var b strings.Builder
	b.WriteString(uitoa(uint(v.Major())))
	b.WriteByte('.')
	b.WriteString(uitoa(uint(v.Minor())))
	return b.String()
}

func uitoa(v uint) string {
	if v == 0 {
		return "0"
	}
	var buf [10]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Descriptor is the parsed, validated in-memory form of a module's
// on-disk header.
type Descriptor struct {
	Name        string
	Author      string
	Deps        []ModuleType
	Version     Version
	Type        ModuleType
	RequiredAPI uint32
	Timestamp   uint64
	Checksum    uint32
}

// Parse reads exactly Size bytes from r and decodes them. It fails with
// a header_invalid error on a short read or a magic mismatch; no
// partial or garbled header is accepted past this point.
func Parse(r io.Reader) (Descriptor, error) {
	var buf [Size]byte
	n, err := io.ReadFull(r, buf[:])
	if err != nil {
		return Descriptor{}, errors.HeaderInvalid("short read: %d of %d bytes", n, Size)
	}
	return Decode(buf[:])
}

// ParseFile opens path and parses the header at its start.
func ParseFile(path string) (Descriptor, error) {
	f, err := os.Open(path)
	if err != nil {
		return Descriptor{}, errors.HeaderInvalid("open %s: %v", path, err)
	}
	defer f.Close()
	return Parse(f)
}

// Decode interprets buf (at least Size bytes) as a packed header.
func Decode(buf []byte) (Descriptor, error) {
	if len(buf) < Size {
		return Descriptor{}, errors.HeaderInvalid("short read: %d of %d bytes", len(buf), Size)
	}

	magic := binary.LittleEndian.Uint32(buf[0:])
	if magic != Magic {
		return Descriptor{}, errors.HeaderInvalid("magic mismatch: got 0x%08x, want 0x%08x", magic, Magic)
	}

	d := Descriptor{
		Version:     Version(binary.LittleEndian.Uint32(buf[4:])),
		Type:        ModuleType(binary.LittleEndian.Uint32(buf[8:])),
		RequiredAPI: binary.LittleEndian.Uint32(buf[12:]),
	}

	for i := 0; i < MaxDeps; i++ {
		dep := ModuleType(binary.LittleEndian.Uint32(buf[16+i*4:]))
		if dep == 0 {
			break
		}
		d.Deps = append(d.Deps, dep)
	}

	d.Name = cString(buf[80 : 80+nameLen])
	d.Author = cString(buf[80+nameLen : 80+nameLen+authorLen])
	d.Timestamp = binary.LittleEndian.Uint64(buf[176:])
	d.Checksum = binary.LittleEndian.Uint32(buf[ChecksumOffset:])

	return d, nil
}

// Encode serializes the descriptor into its fixed wire form. The stored
// Checksum field is written verbatim; use EncodeWithChecksum to compute
// it.
func (d Descriptor) Encode() ([]byte, error) {
	if len(d.Deps) > MaxDeps {
		return nil, errors.HeaderInvalid("%d dependencies exceed the maximum of %d", len(d.Deps), MaxDeps)
	}
	if len(d.Name) > nameLen-1 {
		return nil, errors.HeaderInvalid("module name %q exceeds %d bytes", d.Name, nameLen-1)
	}
	if len(d.Author) > authorLen-1 {
		return nil, errors.HeaderInvalid("author %q exceeds %d bytes", d.Author, authorLen-1)
	}

	buf := make([]byte, Size)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	binary.LittleEndian.PutUint32(buf[4:], uint32(d.Version))
	binary.LittleEndian.PutUint32(buf[8:], uint32(d.Type))
	binary.LittleEndian.PutUint32(buf[12:], d.RequiredAPI)
	for i, dep := range d.Deps {
		binary.LittleEndian.PutUint32(buf[16+i*4:], uint32(dep))
	}
	copy(buf[80:], d.Name)
	copy(buf[80+nameLen:], d.Author)
	binary.LittleEndian.PutUint64(buf[176:], d.Timestamp)
	binary.LittleEndian.PutUint32(buf[ChecksumOffset:], d.Checksum)

	return buf, nil
}

// EncodeWithChecksum serializes the descriptor, stamping the checksum
// field with the hash of the bytes that precede it.
func (d Descriptor) EncodeWithChecksum() ([]byte, error) {
	buf, err := d.Encode()
	if err != nil {
		return nil, err
	}
	sum := checksum.Sum(buf[:ChecksumOffset])
	binary.LittleEndian.PutUint32(buf[ChecksumOffset:], sum)
	return buf, nil
}

// Verify recomputes the checksum of an encoded header region and
// compares it against the stored field.
func Verify(buf []byte) (stored, computed uint32, ok bool) {
	if len(buf) < Size {
		return 0, 0, false
	}
	stored = binary.LittleEndian.Uint32(buf[ChecksumOffset:])
	computed = checksum.Sum(buf[:ChecksumOffset])
	return stored, computed, stored == computed
}

func cString(b []byte) string {
	for i, c := range b {
		if c == 0 {
			return string(b[:i])
		}
	}
	return string(b)
}
