package price

import (
	"context"
	"time"

	"github.com/rovshanmuradov/losscheck/internal/registry"
)

// RegistryResolver translates asset ids to the provider's pricing ids before
// delegating. Assets absent from the registry are looked up by their own id.
type RegistryResolver struct {
	next     Resolver
	registry registry.Registry
}

// NewRegistryResolver wraps next.
func NewRegistryResolver(next Resolver, reg registry.Registry) *RegistryResolver {
	return &RegistryResolver{next: next, registry: reg}
}

func (r *RegistryResolver) Resolve(ctx context.Context, assetID string, date time.Time) (Quote, error) {
	id := assetID
	if m, ok := r.registry.Resolve(assetID); ok && m.PriceID != "" {
		id = m.PriceID
	}
	return r.next.Resolve(ctx, id, date)
}
