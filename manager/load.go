package manager

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/lumen-os/hdep/errors"
	"github.com/lumen-os/hdep/header"
)

// resolution tracks one recursive load: the set of modules whose load
// is in progress on this call chain, and the chain itself for
// diagnostics. It is what turns a dependency cycle into an explicit
// error instead of unbounded recursion.
type resolution struct {
	visiting map[string]bool
	chain    []string
}

func newResolution() *resolution {
	return &resolution{visiting: make(map[string]bool)}
}

func (r *resolution) enter(name string) bool {
	if r.visiting[name] {
		return false
	}
	r.visiting[name] = true
	r.chain = append(r.chain, name)
	return true
}

func (r *resolution) leave(name string) {
	delete(r.visiting, name)
	r.chain = r.chain[:len(r.chain)-1]
}

// Load loads the cataloged module with the given canonical name,
// provided its type bitmask intersects mask (a zero mask matches any
// type). Dependencies declared in the module's header are loaded
// first, recursively. Repeated loads of an already-loaded module only
// increment its reference count.
func (m *Manager) Load(ctx context.Context, name string, mask header.ModuleType) error {
	return m.load(ctx, name, mask, newResolution())
}

func (m *Manager) load(ctx context.Context, name string, mask header.ModuleType, res *resolution) error {
	m.mu.Lock()
	slot := m.lookup(name, mask)
	m.mu.Unlock()

	if slot == nil {
		m.log.Warn("module not found",
			zap.String("name", name), zap.Stringer("type", mask))
		return errors.NotFound(errors.OpLoad, name)
	}

	canonical := slot.desc.Name
	if !res.enter(canonical) {
		return errors.CyclicDependency(canonical, append(res.chain, canonical))
	}
	defer res.leave(canonical)

	// Fast path: already loaded, bump the refcount.
	slot.mu.Lock()
	if slot.loaded {
		slot.refcount++
		refs := slot.refcount
		slot.mu.Unlock()
		m.log.Debug("module already loaded",
			zap.String("name", canonical), zap.Int("refcount", refs))
		return nil
	}
	slot.mu.Unlock()

	// Resolve dependencies with no locks held. The resolution set
	// guarantees this chain never re-enters a module already being
	// loaded, so slot locks are never nested.
	if err := m.resolve(ctx, slot.desc, res); err != nil {
		return err
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	// Another goroutine may have finished the load while dependencies
	// were being resolved.
	if slot.loaded {
		slot.refcount++
		return nil
	}

	payload, err := readPayload(slot.path)
	if err != nil {
		return errors.LoadFailure(canonical, err)
	}

	openCtx := ctx
	if m.loadTimeout > 0 {
		var cancel context.CancelFunc
		openCtx, cancel = context.WithTimeout(ctx, m.loadTimeout)
		defer cancel()
	}

	// wazero observes the deadline only inside guest execution, so
	// compilation can outlive it. Check the budget on both sides of
	// the open; an expired deadline fails the load either way.
	if err := openCtx.Err(); err != nil {
		return errors.LoadFailure(canonical, err)
	}

	lib, err := m.engine.Open(openCtx, payload, canonical)
	if err != nil {
		return err
	}

	if err := openCtx.Err(); err != nil {
		_ = lib.Close(ctx)
		return errors.LoadFailure(canonical, err)
	}

	if region, ok := lib.EmbeddedHeader(header.Size); ok {
		if stored, computed, ok := header.Verify(region); !ok {
			_ = lib.Close(ctx)
			m.log.Error("checksum mismatch",
				zap.String("name", canonical),
				zap.Uint32("stored", stored),
				zap.Uint32("computed", computed))
			return errors.ChecksumMismatch(canonical, stored, computed)
		}
	}

	init, hasInit := lib.Initializer()
	slot.lib = lib
	slot.init = init
	slot.loaded = true
	slot.refcount = 1

	m.log.Info("module loaded",
		zap.String("name", canonical),
		zap.String("version", slot.desc.Version.String()),
		zap.Bool("entry_point", hasInit))
	return nil
}

// resolve loads every dependency declared in desc, in order. The first
// failure aborts the resolution; dependencies already loaded stay
// loaded with their incremented reference counts.
func (m *Manager) resolve(ctx context.Context, desc header.Descriptor, res *resolution) error {
	for _, dep := range desc.Deps {
		depName := dep.Name()
		if err := m.load(ctx, depName, dep, res); err != nil {
			return errors.DependencyUnresolved(desc.Name, depName, err)
		}
	}
	return nil
}

// Unload decrements the module's reference count and releases the
// library once it reaches zero. No type filter applies.
func (m *Manager) Unload(ctx context.Context, name string) error {
	m.mu.Lock()
	slot := m.byName[name]
	m.mu.Unlock()

	if slot == nil {
		return errors.NotFound(errors.OpUnload, name)
	}

	slot.mu.Lock()
	defer slot.mu.Unlock()

	if !slot.loaded {
		return errors.NotLoaded(name)
	}

	slot.refcount--
	if slot.refcount > 0 {
		m.log.Debug("module still referenced",
			zap.String("name", name), zap.Int("refcount", slot.refcount))
		return nil
	}

	err := slot.lib.Close(ctx)
	slot.lib = nil
	slot.init = nil
	slot.loaded = false
	slot.refcount = 0
	if err != nil {
		return errors.UnloadFailure(name, err)
	}

	m.log.Info("module unloaded", zap.String("name", name))
	return nil
}

// Init invokes the loaded module's initialization entry point through
// its typed handle. Modules without an entry point succeed trivially.
func (m *Manager) Init(ctx context.Context, name string) error {
	m.mu.Lock()
	slot := m.byName[name]
	m.mu.Unlock()

	if slot == nil {
		return errors.NotFound(errors.OpLoad, name)
	}

	slot.mu.Lock()
	init := slot.init
	loaded := slot.loaded
	slot.mu.Unlock()

	if !loaded {
		return errors.NotLoaded(name)
	}
	if init == nil {
		return nil
	}
	return init.Init(ctx)
}

// readPayload returns the wasm payload following the fixed header of a
// .hmod container.
func readPayload(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) <= header.Size {
		return nil, fmt.Errorf("container %s has no payload after the header", path)
	}
	return data[header.Size:], nil
}
