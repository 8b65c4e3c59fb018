package dispatch

import (
	"context"
	"encoding/json"

	"github.com/formwork/platform/internal/domain"
)

// Kind is one action type's execution capability. Response relevance is a
// declared property of the kind, not a special case in the partition logic:
// response-relevant kinds run inline during request handling because their
// effect must be known before the response is built; all other kinds run on
// the queue. New kinds extend the registry, not a switch.
type Kind interface {
	Type() domain.ActionType
	ResponseRelevant() bool
	Run(ctx context.Context, job domain.ActionJob) (json.RawMessage, error)
}

// Registry maps action types to their kinds.
type Registry struct {
	kinds map[domain.ActionType]Kind
}

// NewRegistry builds a registry from the given kinds.
func NewRegistry(kinds ...Kind) *Registry {
	r := &Registry{kinds: make(map[domain.ActionType]Kind, len(kinds))}
	for _, k := range kinds {
		r.kinds[k.Type()] = k
	}
	return r
}

// Lookup returns the kind for an action type.
func (r *Registry) Lookup(t domain.ActionType) (Kind, bool) {
	k, ok := r.kinds[t]
	return k, ok
}

// ResponseRelevant reports whether the action type must resolve before the
// originating response is sent. Unknown types are not response-relevant.
func (r *Registry) ResponseRelevant(t domain.ActionType) bool {
	k, ok := r.kinds[t]
	return ok && k.ResponseRelevant()
}
