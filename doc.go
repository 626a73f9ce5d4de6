// Package hdep implements the Lumen OS hibernation module dependency
// manager: discovery, validation, dependency resolution, and reference
// counted loading of dynamically loadable hibernation modules.
//
// A module ships as a .hmod container: a fixed 188-byte packed header
// (see the header package) followed by a WebAssembly payload that is
// loaded into the process with wazero. The manager keeps a catalog of
// validated modules and loads them on demand, resolving each module's
// declared dependency types recursively before the module itself is
// opened.
//
// # Architecture Overview
//
// The library is organized into several packages with distinct
// responsibilities:
//
//	hdep/                Root package (documentation only)
//	├── manager/         Catalog, load/unload, dependency resolution, stack policy
//	├── engine/          wazero integration: open/close module payloads
//	├── header/          On-disk module header codec and type bitmask
//	├── checksum/        Rolling integrity hash for header self-verification
//	├── hwcap/           Hardware capability detection (auxiliary vector)
//	├── wasm/            Minimal WebAssembly binary builder for module payloads
//	├── errors/          Structured error types shared by all packages
//	└── cmd/             hdep operator CLI and the hmodgen packer
//
// # Quick Start
//
// Scan the module directory and bring up the hibernation stack:
//
//	mgr, err := manager.New(ctx, manager.Options{Features: hwcap.Detect()})
//	if err != nil {
//		return err
//	}
//	defer mgr.Close(ctx)
//
//	if _, err := mgr.Scan(ctx, manager.DefaultModuleDir); err != nil {
//		return err
//	}
//	for _, step := range mgr.LoadStack(ctx) {
//		if step.Err != nil {
//			log.Warn("stack step failed", zap.String("module", step.Name))
//		}
//	}
package hdep
