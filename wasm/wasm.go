package wasm

// WebAssembly binary format magic number and version.
const (
	// Magic is the WebAssembly binary magic number ("\0asm" in little-endian).
	Magic uint32 = 0x6D736100

	// Version is the supported WebAssembly binary format version.
	Version uint32 = 0x01
)

// Section IDs define the binary identifiers for each module section.
const (
	SectionCustom   byte = 0
	SectionType     byte = 1
	SectionImport   byte = 2
	SectionFunction byte = 3
	SectionTable    byte = 4
	SectionMemory   byte = 5
	SectionGlobal   byte = 6
	SectionExport   byte = 7
	SectionStart    byte = 8
	SectionElement  byte = 9
	SectionCode     byte = 10
	SectionData     byte = 11
)

// Import/Export descriptor kinds.
const (
	KindFunc   byte = 0
	KindTable  byte = 1
	KindMemory byte = 2
	KindGlobal byte = 3
)

// ValType is a value type encoding.
type ValType byte

const (
	ValI32 ValType = 0x7F
	ValI64 ValType = 0x7E
	ValF32 ValType = 0x7D
	ValF64 ValType = 0x7C
)

// FuncTypeByte prefixes every function type entry.
const FuncTypeByte byte = 0x60

// Instruction opcodes used in init expressions and stub bodies.
const (
	OpEnd      byte = 0x0B
	OpI32Const byte = 0x41
	OpI64Const byte = 0x42
)

// FuncType is a function signature.
type FuncType struct {
	Params  []ValType
	Results []ValType
}

// Limits bounds a memory. Max is optional.
type Limits struct {
	Max *uint32
	Min uint32
}

// Global is a global definition with a raw init expression.
type Global struct {
	Init    []byte
	Type    ValType
	Mutable bool
}

// Export names a module index for the host.
type Export struct {
	Name string
	Kind byte
	Idx  uint32
}

// Data is an active data segment for memory 0 at a constant offset.
type Data struct {
	Init   []byte
	Offset uint32
}

// Module is a minimal core WebAssembly module.
type Module struct {
	Types    []FuncType
	Funcs    []uint32 // type index per function
	Memories []Limits
	Globals  []Global
	Exports  []Export
	Code     [][]byte // one raw body (locals + instructions) per function
	Data     []Data
}

// I32Const encodes an i32.const init expression.
func I32Const(v int32) []byte {
	w := newWriter()
	w.byte(OpI32Const)
	w.s64(int64(v))
	w.byte(OpEnd)
	return w.bytes()
}

// Encode encodes the module to WebAssembly binary format.
func (m *Module) Encode() []byte {
	w := newWriter()

	w.u32le(Magic)
	w.u32le(Version)

	if len(m.Types) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Types)))
		for _, ft := range m.Types {
			sec.byte(FuncTypeByte)
			sec.valTypes(ft.Params)
			sec.valTypes(ft.Results)
		}
		writeSection(w, SectionType, sec.bytes())
	}

	if len(m.Funcs) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Funcs)))
		for _, typeIdx := range m.Funcs {
			sec.u32(typeIdx)
		}
		writeSection(w, SectionFunction, sec.bytes())
	}

	if len(m.Memories) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Memories)))
		for _, mem := range m.Memories {
			sec.limits(mem)
		}
		writeSection(w, SectionMemory, sec.bytes())
	}

	if len(m.Globals) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Globals)))
		for _, g := range m.Globals {
			sec.byte(byte(g.Type))
			if g.Mutable {
				sec.byte(1)
			} else {
				sec.byte(0)
			}
			sec.write(g.Init)
		}
		writeSection(w, SectionGlobal, sec.bytes())
	}

	if len(m.Exports) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Exports)))
		for _, exp := range m.Exports {
			sec.name(exp.Name)
			sec.byte(exp.Kind)
			sec.u32(exp.Idx)
		}
		writeSection(w, SectionExport, sec.bytes())
	}

	if len(m.Code) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Code)))
		for _, body := range m.Code {
			sec.u32(uint32(len(body)))
			sec.write(body)
		}
		writeSection(w, SectionCode, sec.bytes())
	}

	if len(m.Data) > 0 {
		sec := newWriter()
		sec.u32(uint32(len(m.Data)))
		for _, d := range m.Data {
			sec.u32(0) // active segment, memory 0
			sec.write(I32Const(int32(d.Offset)))
			sec.u32(uint32(len(d.Init)))
			sec.write(d.Init)
		}
		writeSection(w, SectionData, sec.bytes())
	}

	return w.bytes()
}

// Body encodes a function body with no locals.
func Body(instrs ...byte) []byte {
	w := newWriter()
	w.u32(0) // no locals
	w.write(instrs)
	w.byte(OpEnd)
	return w.bytes()
}

func writeSection(w *writer, id byte, data []byte) {
	w.byte(id)
	w.u32(uint32(len(data)))
	w.write(data)
}
