// Package manager implements the hibernation module dependency
// manager: an explicit catalog of validated .hmod modules with
// reference-counted loading, recursive dependency resolution, and the
// fixed hibernation stack policy.
//
// A Manager is created with New and passed by reference to every
// operation; there is no process-wide singleton. Multiple independent
// managers may coexist, each with its own engine runtime.
package manager

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-os/hdep/engine"
	"github.com/lumen-os/hdep/errors"
	"github.com/lumen-os/hdep/header"
	"github.com/lumen-os/hdep/hwcap"
)

const (
	// DefaultModuleDir is where the hibernation modules live on the
	// target image.
	DefaultModuleDir = "/lumen-motonexus6/system/core/hibernate/modules"

	// ModuleExt marks discoverable module files. Scan matches it as a
	// substring of the entry name.
	ModuleExt = ".hmod"

	// DefaultCapacity bounds the catalog.
	DefaultCapacity = 64

	// DefaultLoadTimeout bounds a single library open.
	DefaultLoadTimeout = 5 * time.Second
)

// DefaultAPIVersion is the hibernation API version this manager
// expects, packed major.minor.
var DefaultAPIVersion = uint32(header.MakeVersion(1, 2))

// StackNames selects which canonical module names the hibernation
// stack policy loads. Empty fields fall back to the defaults.
type StackNames struct {
	Core         string
	SIMDCompress string
	Compress     string
	Encrypt      string
	Network      string
	Storage      string
}

func (s StackNames) withDefaults() StackNames {
	def := StackNames{
		Core:         "core",
		SIMDCompress: "neon-compress",
		Compress:     "compress",
		Encrypt:      "encrypt",
		Network:      "network",
		Storage:      "storage",
	}
	if s.Core != "" {
		def.Core = s.Core
	}
	if s.SIMDCompress != "" {
		def.SIMDCompress = s.SIMDCompress
	}
	if s.Compress != "" {
		def.Compress = s.Compress
	}
	if s.Encrypt != "" {
		def.Encrypt = s.Encrypt
	}
	if s.Network != "" {
		def.Network = s.Network
	}
	if s.Storage != "" {
		def.Storage = s.Storage
	}
	return def
}

// Options holds configuration for manager creation.
type Options struct {
	// Logger receives manager events. Nil means no logging.
	Logger *zap.Logger

	// Stack overrides the hibernation stack module names.
	Stack StackNames

	// Engine configures the underlying wazero runtime.
	Engine engine.Options

	// Features are the detected hardware capabilities, normally from
	// hwcap.Detect at startup.
	Features hwcap.Features

	// Capacity caps the catalog. 0 means DefaultCapacity.
	Capacity int

	// APIVersion is the expected hibernation API version. 0 means
	// DefaultAPIVersion.
	APIVersion uint32

	// LoadTimeout bounds each library open. 0 means
	// DefaultLoadTimeout; negative disables the bound.
	LoadTimeout time.Duration
}

// Manager owns the module catalog and the engine runtime.
//
// Locking protocol: mu guards catalog membership (byName, byType,
// order). Each catalog slot carries its own mutex guarding its mutable
// load state, and mu is never held across a library open or close.
type Manager struct {
	engine   *engine.Engine
	log      *zap.Logger
	byName   map[string]*moduleSlot
	byType   map[header.ModuleType][]*moduleSlot
	order    []*moduleSlot
	stack    StackNames
	features hwcap.Features

	capacity    int
	apiVersion  uint32
	loadTimeout time.Duration

	mu sync.Mutex
}

// moduleSlot is one catalog entry: the parsed descriptor plus runtime
// load state, guarded by its own lock.
type moduleSlot struct {
	lib      *engine.Library
	init     *engine.Initializer
	path     string
	desc     header.Descriptor
	refcount int
	loaded   bool

	mu sync.Mutex
}

// New creates a manager and its engine runtime.
func New(ctx context.Context, opts Options) (*Manager, error) {
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	capacity := opts.Capacity
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	apiVersion := opts.APIVersion
	if apiVersion == 0 {
		apiVersion = DefaultAPIVersion
	}
	timeout := opts.LoadTimeout
	if timeout == 0 {
		timeout = DefaultLoadTimeout
	}

	eng, err := engine.New(ctx, opts.Engine)
	if err != nil {
		return nil, err
	}

	m := &Manager{
		engine:      eng,
		log:         log,
		byName:      make(map[string]*moduleSlot),
		byType:      make(map[header.ModuleType][]*moduleSlot),
		stack:       opts.Stack.withDefaults(),
		features:    opts.Features,
		capacity:    capacity,
		apiVersion:  apiVersion,
		loadTimeout: timeout,
	}

	log.Info("dependency manager initialized",
		zap.Bool("neon", m.features.NEON),
		zap.String("api_version", header.Version(apiVersion).String()))

	return m, nil
}

// Close unloads every loaded module and releases the engine runtime.
// The manager must not be used afterwards.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	slots := append([]*moduleSlot(nil), m.order...)
	m.mu.Unlock()

	for _, slot := range slots {
		slot.mu.Lock()
		if slot.loaded {
			if err := slot.lib.Close(ctx); err != nil {
				m.log.Warn("close during teardown failed",
					zap.String("module", slot.desc.Name), zap.Error(err))
			}
			slot.lib = nil
			slot.init = nil
			slot.loaded = false
			slot.refcount = 0
		}
		slot.mu.Unlock()
	}

	return m.engine.Close(ctx)
}

// Scan lists dir for module files, validates each header, and catalogs
// the valid ones until the capacity is reached. It returns the total
// number of cataloged modules. Valid modules found past capacity are
// counted and reported through a capacity_exceeded error; entries
// already cataloged under the same canonical name are skipped, first
// scan wins.
func (m *Manager) Scan(ctx context.Context, dir string) (int, error) {
	_ = ctx

	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(dir)
	if err != nil {
		return len(m.order), errors.DirectoryUnreadable(dir, err)
	}

	m.log.Info("scanning modules", zap.String("dir", dir))

	dropped := 0
	for _, entry := range entries {
		if !strings.Contains(entry.Name(), ModuleExt) {
			continue
		}
		info, err := entry.Info()
		if err != nil || !info.Mode().IsRegular() {
			continue
		}

		path := filepath.Join(dir, entry.Name())
		desc, err := header.ParseFile(path)
		if err != nil {
			m.log.Debug("skipping invalid module file",
				zap.String("path", path), zap.Error(err))
			continue
		}
		if desc.Name == "" {
			m.log.Warn("skipping module with empty name", zap.String("path", path))
			continue
		}
		if _, dup := m.byName[desc.Name]; dup {
			m.log.Warn("duplicate module name, keeping first",
				zap.String("name", desc.Name), zap.String("path", path))
			continue
		}
		if len(m.order) >= m.capacity {
			dropped++
			continue
		}

		if desc.RequiredAPI > m.apiVersion {
			m.log.Warn("module requires newer API",
				zap.String("name", desc.Name),
				zap.String("required", header.Version(desc.RequiredAPI).String()),
				zap.String("have", header.Version(m.apiVersion).String()))
		}

		slot := &moduleSlot{path: path, desc: desc}
		m.byName[desc.Name] = slot
		m.order = append(m.order, slot)
		for _, tn := range []header.ModuleType{
			header.TypeCore, header.TypeCompress, header.TypeEncrypt,
			header.TypeNetwork, header.TypeStorage, header.TypeHardware,
		} {
			if desc.Type.Intersects(tn) {
				m.byType[tn] = append(m.byType[tn], slot)
			}
		}

		m.log.Info("found module",
			zap.String("name", desc.Name),
			zap.String("version", desc.Version.String()),
			zap.Stringer("type", desc.Type))
	}

	if dropped > 0 {
		return len(m.order), errors.CapacityExceeded(m.capacity, dropped)
	}
	return len(m.order), nil
}

// ByType returns the canonical names of cataloged modules whose type
// bitmask intersects mask, in catalog order.
func (m *Manager) ByType(mask header.ModuleType) []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	var names []string
	seen := make(map[string]bool)
	for _, slot := range m.order {
		if slot.desc.Type.Intersects(mask) && !seen[slot.desc.Name] {
			seen[slot.desc.Name] = true
			names = append(names, slot.desc.Name)
		}
	}
	return names
}

// lookup finds a slot by exact canonical name, filtered by type mask
// when mask is non-zero. Callers hold m.mu.
func (m *Manager) lookup(name string, mask header.ModuleType) *moduleSlot {
	slot, ok := m.byName[name]
	if !ok {
		return nil
	}
	if mask != 0 && !slot.desc.Type.Intersects(mask) {
		return nil
	}
	return slot
}
