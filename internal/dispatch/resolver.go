package dispatch

import (
	"context"
	"fmt"

	"github.com/formwork/platform/internal/domain"
)

// Resolver computes the ordered action chain for a lifecycle event.
// Resource-scoped definitions, when present for a trigger, replace the
// namespace-level defaults wholesale — override, never merge.
type Resolver struct {
	defs DefinitionSource
}

// NewResolver creates a resolver over a definition source.
func NewResolver(defs DefinitionSource) *Resolver {
	return &Resolver{defs: defs}
}

// Resolve returns the chain to run, ordered by ordinal (ties broken by
// insertion order, which the source guarantees). An empty chain is the
// common case and not an error. Every definition's config is validated
// here so a bad configuration fails fast, before anything enqueues.
func (r *Resolver) Resolve(ctx context.Context, event domain.LifecycleEvent) ([]domain.ActionDefinition, error) {
	chain, err := r.defs.ListForResource(ctx, event.ResourceID, event.Trigger)
	if err != nil {
		return nil, fmt.Errorf("load resource actions: %w", err)
	}
	if len(chain) == 0 {
		chain, err = r.defs.ListForNamespace(ctx, event.NamespaceID, event.Trigger)
		if err != nil {
			return nil, fmt.Errorf("load namespace actions: %w", err)
		}
	}
	if len(chain) == 0 {
		return nil, nil
	}

	for _, def := range chain {
		if err := domain.ValidateActionConfig(def.Type, def.Config); err != nil {
			return nil, domain.ErrConfig(fmt.Sprintf("action %s (%s): %v", def.ID, def.Type, err))
		}
	}
	return chain, nil
}
