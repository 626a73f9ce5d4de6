package wasm

// Export names forming the hdep module ABI. A payload may embed a copy
// of its container header in linear memory and point at it with the
// locator global; the loader re-verifies the header checksum through
// it after every open. Both exports are optional.
const (
	// ExportMemory is the linear memory the locator global points into.
	ExportMemory = "memory"

	// ExportHeader is an immutable i32 global holding the byte offset
	// of the embedded header copy within the exported memory.
	ExportHeader = "hdep_header"

	// ExportInit is the module's initialization entry point. It takes
	// no arguments and returns an i32 status, zero meaning success.
	ExportInit = "hdep_init"
)

// HeaderOffset is where stub payloads place the embedded header copy.
const HeaderOffset = 8

// PayloadSpec describes a stub module payload to synthesize.
type PayloadSpec struct {
	// Header is the embedded self-description. When nil the payload
	// carries no hdep_header export and skips post-load verification.
	Header []byte

	// InitStatus, when non-nil, adds an hdep_init entry point that
	// returns the given status.
	InitStatus *int32
}

// Encode builds the stub payload binary.
func (s PayloadSpec) Encode() []byte {
	m := &Module{
		Memories: []Limits{{Min: 1}},
		Exports:  []Export{{Name: ExportMemory, Kind: KindMemory, Idx: 0}},
	}

	if s.Header != nil {
		m.Globals = append(m.Globals, Global{
			Type: ValI32,
			Init: I32Const(HeaderOffset),
		})
		m.Exports = append(m.Exports, Export{Name: ExportHeader, Kind: KindGlobal, Idx: 0})
		m.Data = append(m.Data, Data{Offset: HeaderOffset, Init: s.Header})
	}

	if s.InitStatus != nil {
		m.Types = append(m.Types, FuncType{Results: []ValType{ValI32}})
		m.Funcs = append(m.Funcs, 0)
		body := newWriter()
		body.byte(OpI32Const)
		body.s64(int64(*s.InitStatus))
		m.Code = append(m.Code, Body(body.bytes()...))
		m.Exports = append(m.Exports, Export{Name: ExportInit, Kind: KindFunc, Idx: 0})
	}

	return m.Encode()
}
