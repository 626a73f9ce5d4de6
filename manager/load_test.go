package manager

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/lumen-os/hdep/errors"
	"github.com/lumen-os/hdep/header"
)

func TestLoadRefcountLifecycle(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("first Load: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); !ms.Loaded || ms.Refcount != 1 {
		t.Fatalf("after first load: loaded=%v refcount=%d", ms.Loaded, ms.Refcount)
	}

	// Repeated load only increments the refcount.
	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("second Load: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Refcount != 2 {
		t.Fatalf("after second load: refcount=%d", ms.Refcount)
	}

	if err := m.Unload(ctx, "core"); err != nil {
		t.Fatalf("first Unload: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); !ms.Loaded || ms.Refcount != 1 {
		t.Fatalf("after first unload: loaded=%v refcount=%d", ms.Loaded, ms.Refcount)
	}

	if err := m.Unload(ctx, "core"); err != nil {
		t.Fatalf("second Unload: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Loaded || ms.Refcount != 0 {
		t.Fatalf("after final unload: loaded=%v refcount=%d", ms.Loaded, ms.Refcount)
	}

	// The library handle was released; a subsequent load reopens it.
	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); !ms.Loaded || ms.Refcount != 1 {
		t.Fatalf("after reload: loaded=%v refcount=%d", ms.Loaded, ms.Refcount)
	}
}

func TestLoadNotFound(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "missing", 0); !errors.IsKind(err, errors.KindModuleNotFound) {
		t.Errorf("unknown name: got %v", err)
	}
	// Known name but the type mask does not intersect.
	if err := m.Load(ctx, "core", header.TypeNetwork); !errors.IsKind(err, errors.KindModuleNotFound) {
		t.Errorf("mask mismatch: got %v", err)
	}
	// A zero mask matches any type.
	if err := m.Load(ctx, "core", 0); err != nil {
		t.Errorf("zero mask: %v", err)
	}
}

func TestLoadChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	bad := basicModule("core", header.TypeCore)
	bad.corruptEmbedded = true
	bad.write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	err := m.Load(ctx, "core", header.TypeCore)
	if !errors.IsKind(err, errors.KindChecksumMismatch) {
		t.Fatalf("expected checksum_mismatch, got %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Loaded || ms.Refcount != 0 {
		t.Fatalf("mismatched module must stay unloaded: %+v", ms)
	}

	// The library was closed on the failing path, so its engine name is
	// free again; a retry fails the same way rather than colliding.
	err = m.Load(ctx, "core", header.TypeCore)
	if !errors.IsKind(err, errors.KindChecksumMismatch) {
		t.Fatalf("retry: expected checksum_mismatch, got %v", err)
	}
}

func TestLoadTimeoutExpired(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	// A one-nanosecond budget is spent before the open ever starts;
	// the deadline must fail the load even though wazero itself never
	// observes it during compilation.
	m, ctx := newManager(t, Options{LoadTimeout: time.Nanosecond})
	scanDir(t, m, ctx, dir)

	err := m.Load(ctx, "core", header.TypeCore)
	if !errors.IsKind(err, errors.KindLoadFailure) {
		t.Fatalf("expected load_failure, got %v", err)
	}
	if !stderrors.Is(err, context.DeadlineExceeded) {
		t.Errorf("cause should be the exceeded deadline, got %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Loaded || ms.Refcount != 0 {
		t.Fatalf("timed-out module must stay unloaded: %+v", ms)
	}
}

func TestLoadNegativeTimeoutDisablesBound(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	m, ctx := newManager(t, Options{LoadTimeout: -1})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if ms := moduleStatus(t, m, "core"); !ms.Loaded || ms.Refcount != 1 {
		t.Fatalf("unbounded load: %+v", ms)
	}
}

func TestLoadWithoutSelfDescription(t *testing.T) {
	dir := t.TempDir()
	plain := basicModule("core", header.TypeCore)
	plain.omitEmbedded = true
	plain.write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	// No embedded header means no verification, not a failure.
	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("Load: %v", err)
	}
}

func TestDependencyResolution(t *testing.T) {
	dir := t.TempDir()
	// Type bitmask 0x05 (core|encrypt) with one encrypt dependency; the
	// module's own name does not satisfy the dependency lookup.
	basicModule("bundle", header.TypeCore|header.TypeEncrypt, header.TypeEncrypt).write(t, dir)
	basicModule("encrypt", header.TypeEncrypt).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "bundle", header.TypeCore); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if ms := moduleStatus(t, m, "bundle"); !ms.Loaded || ms.Refcount != 1 {
		t.Errorf("bundle: %+v", ms)
	}
	// Exactly one nested load happened for the dependency.
	if ms := moduleStatus(t, m, "encrypt"); !ms.Loaded || ms.Refcount != 1 {
		t.Errorf("encrypt: %+v", ms)
	}
}

func TestDependencyFailureLeavesEarlierDepsLoaded(t *testing.T) {
	dir := t.TempDir()
	basicModule("bundle", header.TypeCore, header.TypeEncrypt, header.TypeNetwork).write(t, dir)
	basicModule("encrypt", header.TypeEncrypt).write(t, dir)
	// No network module is cataloged.

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	err := m.Load(ctx, "bundle", header.TypeCore)
	if !errors.IsKind(err, errors.KindDependencyUnresolved) {
		t.Fatalf("expected dependency_unresolved, got %v", err)
	}
	if !errors.IsKind(err, errors.KindModuleNotFound) {
		t.Errorf("cause chain should name the missing module, got %v", err)
	}

	if ms := moduleStatus(t, m, "bundle"); ms.Loaded {
		t.Error("bundle must stay unloaded after a dependency failure")
	}
	// No rollback: the encrypt dependency keeps its incremented refcount.
	if ms := moduleStatus(t, m, "encrypt"); !ms.Loaded || ms.Refcount != 1 {
		t.Errorf("encrypt: %+v", ms)
	}
}

func TestTrivialDependencyList(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)
	basicModule("encrypt", header.TypeEncrypt).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "core", header.TypeCore); err != nil {
		t.Fatalf("Load: %v", err)
	}
	// A descriptor with an empty dependency list triggers no nested loads.
	if ms := moduleStatus(t, m, "encrypt"); ms.Loaded || ms.Refcount != 0 {
		t.Errorf("encrypt should be untouched: %+v", ms)
	}
}

func TestCyclicDependencySelf(t *testing.T) {
	dir := t.TempDir()
	// A compress-typed module that depends on the compress type names
	// itself through the canonical type mapping.
	basicModule("compress", header.TypeCompress, header.TypeCompress).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	err := m.Load(ctx, "compress", header.TypeCompress)
	if !errors.IsKind(err, errors.KindCyclicDependency) {
		t.Fatalf("expected cyclic_dependency, got %v", err)
	}
	if ms := moduleStatus(t, m, "compress"); ms.Loaded {
		t.Error("cyclic module must stay unloaded")
	}
}

func TestCyclicDependencyIndirect(t *testing.T) {
	dir := t.TempDir()
	basicModule("encrypt", header.TypeEncrypt, header.TypeStorage).write(t, dir)
	basicModule("storage", header.TypeStorage, header.TypeEncrypt).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	// Must fail cleanly rather than recurse or deadlock.
	err := m.Load(ctx, "encrypt", header.TypeEncrypt)
	if !errors.IsKind(err, errors.KindCyclicDependency) {
		t.Fatalf("expected cyclic_dependency, got %v", err)
	}
}

func TestUnloadErrors(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Unload(ctx, "missing"); !errors.IsKind(err, errors.KindModuleNotFound) {
		t.Errorf("unknown module: got %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Loaded || ms.Refcount != 0 {
		t.Errorf("failed unload must not mutate state: %+v", ms)
	}

	// Cataloged but never loaded: the refcount must not go negative.
	if err := m.Unload(ctx, "core"); !errors.IsKind(err, errors.KindNotLoaded) {
		t.Errorf("unloaded module: got %v", err)
	}
	if ms := moduleStatus(t, m, "core"); ms.Refcount != 0 {
		t.Errorf("refcount drifted: %+v", ms)
	}
}

func TestInitEntryPoint(t *testing.T) {
	dir := t.TempDir()

	failing := int32(3)
	bad := basicModule("encrypt", header.TypeEncrypt)
	bad.initStatus = &failing
	bad.write(t, dir)

	ok := int32(0)
	good := basicModule("core", header.TypeCore)
	good.initStatus = &ok
	good.write(t, dir)

	noEntry := basicModule("storage", header.TypeStorage)
	noEntry.write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	for _, name := range []string{"core", "encrypt", "storage"} {
		if err := m.Load(ctx, name, 0); err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
	}

	if err := m.Init(ctx, "core"); err != nil {
		t.Errorf("core init: %v", err)
	}
	if err := m.Init(ctx, "storage"); err != nil {
		t.Errorf("entry-point-less init should succeed trivially: %v", err)
	}
	if err := m.Init(ctx, "encrypt"); !errors.IsKind(err, errors.KindLoadFailure) {
		t.Errorf("failing init: got %v", err)
	}

	if err := m.Init(ctx, "missing"); !errors.IsKind(err, errors.KindModuleNotFound) {
		t.Errorf("unknown module init: got %v", err)
	}
	if err := m.Unload(ctx, "core"); err != nil {
		t.Fatal(err)
	}
	if err := m.Init(ctx, "core"); !errors.IsKind(err, errors.KindNotLoaded) {
		t.Errorf("unloaded module init: got %v", err)
	}
}

func TestConcurrentLoadsSerializeOnSlot(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	const workers = 16
	var wg sync.WaitGroup
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = m.Load(ctx, "core", header.TypeCore)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("worker %d: %v", i, err)
		}
	}
	if ms := moduleStatus(t, m, "core"); ms.Refcount != workers {
		t.Fatalf("refcount: got %d, want %d", ms.Refcount, workers)
	}

	for i := 0; i < workers; i++ {
		if err := m.Unload(ctx, "core"); err != nil {
			t.Fatalf("unload %d: %v", i, err)
		}
	}
	if ms := moduleStatus(t, m, "core"); ms.Loaded || ms.Refcount != 0 {
		t.Fatalf("after draining: %+v", ms)
	}
}

func TestCloseUnloadsEverything(t *testing.T) {
	dir := t.TempDir()
	basicModule("core", header.TypeCore).write(t, dir)
	basicModule("encrypt", header.TypeEncrypt).write(t, dir)

	m, ctx := newManager(t, Options{})
	scanDir(t, m, ctx, dir)

	if err := m.Load(ctx, "core", 0); err != nil {
		t.Fatal(err)
	}
	if err := m.Load(ctx, "encrypt", 0); err != nil {
		t.Fatal(err)
	}

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	for _, ms := range m.Status().Modules {
		if ms.Loaded || ms.Refcount != 0 {
			t.Errorf("module %s still loaded after Close", ms.Name)
		}
	}
}
