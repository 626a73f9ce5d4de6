package manager

import (
	"github.com/lumen-os/hdep/header"
	"github.com/lumen-os/hdep/hwcap"
)

// ModuleStatus is a point-in-time view of one catalog slot.
type ModuleStatus struct {
	Name     string
	Path     string
	Author   string
	Deps     []header.ModuleType
	Version  header.Version
	Type     header.ModuleType
	Refcount int
	Loaded   bool
}

// Snapshot is a point-in-time view of the whole manager, in catalog
// order.
type Snapshot struct {
	Modules    []ModuleStatus
	Features   hwcap.Features
	APIVersion header.Version
	Capacity   int
}

// Status reports the manager's catalog and load state. The snapshot is
// consistent per slot, not across slots.
func (m *Manager) Status() Snapshot {
	m.mu.Lock()
	slots := append([]*moduleSlot(nil), m.order...)
	m.mu.Unlock()

	snap := Snapshot{
		Features:   m.features,
		APIVersion: header.Version(m.apiVersion),
		Capacity:   m.capacity,
		Modules:    make([]ModuleStatus, 0, len(slots)),
	}

	for _, slot := range slots {
		slot.mu.Lock()
		snap.Modules = append(snap.Modules, ModuleStatus{
			Name:     slot.desc.Name,
			Path:     slot.path,
			Author:   slot.desc.Author,
			Deps:     append([]header.ModuleType(nil), slot.desc.Deps...),
			Version:  slot.desc.Version,
			Type:     slot.desc.Type,
			Refcount: slot.refcount,
			Loaded:   slot.loaded,
		})
		slot.mu.Unlock()
	}

	return snap
}
