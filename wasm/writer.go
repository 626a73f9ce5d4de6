package wasm

import (
	"bytes"
	"encoding/binary"
)

// writer provides buffered writing utilities for binary encoding.
type writer struct {
	buf bytes.Buffer
}

func newWriter() *writer {
	return &writer{}
}

func (w *writer) bytes() []byte {
	return w.buf.Bytes()
}

func (w *writer) byte(b byte) {
	w.buf.WriteByte(b)
}

func (w *writer) write(data []byte) {
	w.buf.Write(data)
}

// u32 writes an unsigned LEB128 encoded uint32.
func (w *writer) u32(v uint32) {
	for {
		b := byte(v & 0x7f)
		v >>= 7
		if v != 0 {
			b |= 0x80
		}
		w.buf.WriteByte(b)
		if v == 0 {
			break
		}
	}
}

// s64 writes a signed LEB128 encoded int64.
func (w *writer) s64(v int64) {
	more := true
	for more {
		b := byte(v & 0x7f)
		v >>= 7
		if (v == 0 && (b&0x40) == 0) || (v == -1 && (b&0x40) != 0) {
			more = false
		} else {
			b |= 0x80
		}
		w.buf.WriteByte(b)
	}
}

// name writes a UTF-8 encoded name (length-prefixed).
func (w *writer) name(s string) {
	w.u32(uint32(len(s)))
	w.buf.WriteString(s)
}

// u32le writes a little-endian uint32 (fixed 4 bytes).
func (w *writer) u32le(v uint32) {
	var buf [4]byte
	binary.LittleEndian.PutUint32(buf[:], v)
	w.buf.Write(buf[:])
}

func (w *writer) valTypes(vts []ValType) {
	w.u32(uint32(len(vts)))
	for _, vt := range vts {
		w.byte(byte(vt))
	}
}

func (w *writer) limits(l Limits) {
	if l.Max != nil {
		w.byte(1)
		w.u32(l.Min)
		w.u32(*l.Max)
	} else {
		w.byte(0)
		w.u32(l.Min)
	}
}
