// Package engine wraps wazero as the host dynamic-loading facility:
// it opens a module payload into the running process, resolves the
// optional hdep ABI exports, and closes it again. Policy (catalogs,
// refcounts, dependencies) lives in the manager package.
package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/lumen-os/hdep/errors"
	"github.com/lumen-os/hdep/wasm"
)

// Options holds configuration for engine creation.
type Options struct {
	// MemoryLimitPages caps memory per open library in 64KB pages.
	// 0 means the wazero default.
	MemoryLimitPages uint32
}

// Engine owns the wazero runtime shared by all open libraries.
type Engine struct {
	runtime wazero.Runtime
}

// New creates a wazero-backed engine. The runtime is configured to
// abort in-flight work when the context of an Open call is cancelled,
// which is what bounds a load by the manager's timeout.
func New(ctx context.Context, opts Options) (*Engine, error) {
	cfg := wazero.NewRuntimeConfig().WithCloseOnContextDone(true)
	if opts.MemoryLimitPages > 0 {
		cfg = cfg.WithMemoryLimitPages(opts.MemoryLimitPages)
	}
	return &Engine{runtime: wazero.NewRuntimeWithConfig(ctx, cfg)}, nil
}

// Close releases the runtime and every library still open in it.
func (e *Engine) Close(ctx context.Context) error {
	return e.runtime.Close(ctx)
}

// Open compiles and instantiates a module payload. name must be unique
// among currently open libraries; closing the library frees it again.
// Failures carry the underlying wazero diagnostic.
func (e *Engine) Open(ctx context.Context, payload []byte, name string) (*Library, error) {
	compiled, err := e.runtime.CompileModule(ctx, payload)
	if err != nil {
		return nil, errors.LoadFailure(name, fmt.Errorf("compile: %w", err))
	}

	modCfg := wazero.NewModuleConfig().WithName(name).WithStartFunctions()
	instance, err := e.runtime.InstantiateModule(ctx, compiled, modCfg)
	if err != nil {
		_ = compiled.Close(ctx)
		return nil, errors.LoadFailure(name, fmt.Errorf("instantiate: %w", err))
	}

	Logger().Debug("library opened",
		zap.String("name", name),
		zap.Int("payload_bytes", len(payload)))

	return &Library{name: name, instance: instance, compiled: compiled}, nil
}

// Library is an open handle to a loaded module payload.
type Library struct {
	instance api.Module
	compiled wazero.CompiledModule
	name     string
}

// Name returns the name the library was opened under.
func (l *Library) Name() string {
	return l.name
}

// EmbeddedHeader reads size bytes of the module's self-description
// through the hdep_header locator export. It returns false when the
// payload does not expose one, which is not an error.
func (l *Library) EmbeddedHeader(size uint32) ([]byte, bool) {
	g := l.instance.ExportedGlobal(wasm.ExportHeader)
	if g == nil {
		return nil, false
	}
	mem := l.instance.ExportedMemory(wasm.ExportMemory)
	if mem == nil {
		return nil, false
	}

	view, ok := mem.Read(uint32(g.Get()), size)
	if !ok {
		return nil, false
	}
	// Read returns a view into guest memory; detach it.
	out := make([]byte, size)
	copy(out, view)
	return out, true
}

// Initializer resolves the module's designated entry point as a typed
// handle. A module without one is valid; ok is false.
func (l *Library) Initializer() (*Initializer, bool) {
	fn := l.instance.ExportedFunction(wasm.ExportInit)
	if fn == nil {
		return nil, false
	}
	return &Initializer{name: l.name, fn: fn}, true
}

// Close releases the instance and its compiled code.
func (l *Library) Close(ctx context.Context) error {
	if err := l.instance.Close(ctx); err != nil {
		_ = l.compiled.Close(ctx)
		return err
	}
	return l.compiled.Close(ctx)
}

// Initializer is the strongly-typed handle to a module's optional
// initialization entry point.
type Initializer struct {
	fn   api.Function
	name string
}

// Init invokes the entry point. A trap or a non-zero status is an
// initialization failure.
func (i *Initializer) Init(ctx context.Context) error {
	results, err := i.fn.Call(ctx)
	if err != nil {
		return errors.LoadFailure(i.name, fmt.Errorf("init trapped: %w", err))
	}
	if len(results) > 0 && int32(results[0]) != 0 {
		return errors.LoadFailure(i.name, fmt.Errorf("init returned status %d", int32(results[0])))
	}
	return nil
}
