package manager

import (
	"context"

	"go.uber.org/zap"

	"github.com/lumen-os/hdep/header"
)

// StackStep records the outcome of one step of the hibernation stack
// policy.
type StackStep struct {
	Err  error
	Name string
	Type header.ModuleType
}

// LoadStack loads the fixed, ordered hibernation module stack on a
// best-effort basis: the core module, then a compression module chosen
// by the detected hardware features, then encryption, network, and
// storage. Each step's failure is tolerated independently; hibernation
// may proceed in a degraded mode with whatever subset loaded. The
// returned report carries the per-step diagnostics.
func (m *Manager) LoadStack(ctx context.Context) []StackStep {
	type step struct {
		name string
		mask header.ModuleType
	}

	steps := []step{{m.stack.Core, header.TypeCore}}
	if m.features.NEON {
		steps = append(steps, step{m.stack.SIMDCompress, header.TypeCompress | header.TypeHardware})
	} else {
		steps = append(steps, step{m.stack.Compress, header.TypeCompress})
	}
	steps = append(steps,
		step{m.stack.Encrypt, header.TypeEncrypt},
		step{m.stack.Network, header.TypeNetwork},
		step{m.stack.Storage, header.TypeStorage},
	)

	m.log.Info("loading hibernation stack", zap.Bool("neon", m.features.NEON))

	report := make([]StackStep, 0, len(steps))
	for _, s := range steps {
		err := m.Load(ctx, s.name, s.mask)
		if err != nil {
			m.log.Warn("stack step failed",
				zap.String("name", s.name),
				zap.Stringer("type", s.mask),
				zap.Error(err))
		}
		report = append(report, StackStep{Name: s.name, Type: s.mask, Err: err})
	}
	return report
}
