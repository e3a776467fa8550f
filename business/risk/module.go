// Package risk implements the risk bounded context: the process-wide
// kill-switch and daily-loss tracker.
package risk

import (
	"context"

	"github.com/bud42069/Arbeit-Trage/internal/di"
	"github.com/bud42069/Arbeit-Trage/internal/monolith"
)

// Module implements the risk bounded context. The RiskService itself is
// built eagerly in monolith.New (it is a process-wide singleton every other
// module's connectors and engines must be able to consult before they even
// register their own services), so this module has nothing left to
// register - it exists to give risk a place in the startup-ordered module
// list and a place to log readiness.
type Module struct{}

// RegisterServices is a no-op: the RiskService singleton is registered by
// the composition root before any module runs.
func (m *Module) RegisterServices(c di.Container) error {
	return nil
}

// Startup logs readiness; risk must start first so every other module's
// Startup can safely call mono.RiskService().
func (m *Module) Startup(ctx context.Context, mono monolith.Monolith) error {
	mono.Logger().Info(ctx, "risk module started", "observe_only", mono.RiskService().ObserveOnly())
	return nil
}
