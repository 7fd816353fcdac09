package marketplace

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/storeops/backend/internal/domain/integration"
)

// Registry resolves platform connectors. Connectors register at startup;
// lookups after that are read-only, so no locking is needed.
type Registry struct {
	connectors map[integration.Platform]integration.PlatformConnector
}

// NewRegistry creates an empty connector registry
func NewRegistry() *Registry {
	return &Registry{
		connectors: make(map[integration.Platform]integration.PlatformConnector),
	}
}

// Register adds a connector for its platform, replacing any previous one
func (r *Registry) Register(connector integration.PlatformConnector) {
	r.connectors[connector.Platform()] = connector
}

// Connector returns the adapter for the given platform
func (r *Registry) Connector(platform integration.Platform) (integration.PlatformConnector, error) {
	connector, ok := r.connectors[platform]
	if !ok {
		return nil, fmt.Errorf("%w: %s", integration.ErrPlatformNotFound, platform)
	}
	return connector, nil
}

// ConfiguredConnectors returns the adapters the store has credentials for
func (r *Registry) ConfiguredConnectors(ctx context.Context, tenantID uuid.UUID) []integration.PlatformConnector {
	var configured []integration.PlatformConnector
	for _, connector := range r.connectors {
		if connector.IsConfigured(ctx, tenantID) {
			configured = append(configured, connector)
		}
	}
	return configured
}
