// Package wasm provides a minimal WebAssembly binary builder: just
// enough of the core module format (types, functions, memories,
// globals, exports, data segments) to emit the payloads carried by
// .hmod containers. It also defines the export names that form the
// hdep module ABI.
//
// The builder is used by cmd/hmodgen to synthesize stub payloads and
// by tests to produce loadable modules without an external toolchain.
package wasm
