package wasm

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestWriterU32(t *testing.T) {
	tests := []struct {
		v    uint32
		want []byte
	}{
		{0, []byte{0x00}},
		{1, []byte{0x01}},
		{127, []byte{0x7f}},
		{128, []byte{0x80, 0x01}},
		{624485, []byte{0xe5, 0x8e, 0x26}},
		{0xFFFFFFFF, []byte{0xff, 0xff, 0xff, 0xff, 0x0f}},
	}

	for _, tt := range tests {
		w := newWriter()
		w.u32(tt.v)
		if !bytes.Equal(w.bytes(), tt.want) {
			t.Errorf("u32(%d): got %x, want %x", tt.v, w.bytes(), tt.want)
		}
	}
}

func TestWriterS64(t *testing.T) {
	tests := []struct {
		v    int64
		want []byte
	}{
		{0, []byte{0x00}},
		{8, []byte{0x08}},
		{63, []byte{0x3f}},
		{64, []byte{0xc0, 0x00}},
		{-1, []byte{0x7f}},
		{-64, []byte{0x40}},
		{-65, []byte{0xbf, 0x7f}},
	}

	for _, tt := range tests {
		w := newWriter()
		w.s64(tt.v)
		if !bytes.Equal(w.bytes(), tt.want) {
			t.Errorf("s64(%d): got %x, want %x", tt.v, w.bytes(), tt.want)
		}
	}
}

func TestEncodeHeaderPrefix(t *testing.T) {
	m := &Module{Memories: []Limits{{Min: 1}}}
	bin := m.Encode()

	if len(bin) < 8 {
		t.Fatalf("binary too short: %d bytes", len(bin))
	}
	if got := binary.LittleEndian.Uint32(bin); got != Magic {
		t.Errorf("magic: got 0x%08x", got)
	}
	if got := binary.LittleEndian.Uint32(bin[4:]); got != Version {
		t.Errorf("version: got %d", got)
	}
}

func sectionIDs(t *testing.T, bin []byte) []byte {
	t.Helper()
	var ids []byte
	pos := 8
	for pos < len(bin) {
		id := bin[pos]
		pos++
		// single-pass LEB128 size decode
		var size, shift uint32
		for {
			b := bin[pos]
			pos++
			size |= uint32(b&0x7f) << shift
			if b&0x80 == 0 {
				break
			}
			shift += 7
		}
		ids = append(ids, id)
		pos += int(size)
	}
	if pos != len(bin) {
		t.Fatalf("section sizes do not cover the binary: pos %d, len %d", pos, len(bin))
	}
	return ids
}

func TestPayloadSpecSections(t *testing.T) {
	status := int32(0)
	hdr := make([]byte, 188)

	tests := []struct {
		name string
		spec PayloadSpec
		want []byte
	}{
		{
			name: "bare memory",
			spec: PayloadSpec{},
			want: []byte{SectionMemory, SectionExport},
		},
		{
			name: "with header",
			spec: PayloadSpec{Header: hdr},
			want: []byte{SectionMemory, SectionGlobal, SectionExport, SectionData},
		},
		{
			name: "with header and init",
			spec: PayloadSpec{Header: hdr, InitStatus: &status},
			want: []byte{
				SectionType, SectionFunction, SectionMemory,
				SectionGlobal, SectionExport, SectionCode, SectionData,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := sectionIDs(t, tt.spec.Encode())
			if !bytes.Equal(ids, tt.want) {
				t.Errorf("sections: got %v, want %v", ids, tt.want)
			}
		})
	}
}

func TestPayloadEmbedsHeaderBytes(t *testing.T) {
	hdr := []byte{0x50, 0x45, 0x44, 0x48, 0xaa, 0xbb, 0xcc, 0xdd}
	bin := PayloadSpec{Header: hdr}.Encode()

	if !bytes.Contains(bin, hdr) {
		t.Error("encoded payload must carry the header bytes in its data segment")
	}
}
