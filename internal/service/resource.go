package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/formwork/platform/internal/dispatch"
	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResourceService orchestrates resource mutations. Each mutation attempt
// emits exactly one lifecycle event into the dispatch engine; the returned
// hint carries the engine's response decision (redirect, serve file, or the
// default path with an optional flash message).
type ResourceService struct {
	pool       *pgxpool.Pool
	namespaces repository.NamespaceRepository
	resources  repository.ResourceRepository
	dispatcher *dispatch.Coordinator
	logger     *slog.Logger
}

// NewResourceService creates a ResourceService.
func NewResourceService(
	pool *pgxpool.Pool,
	namespaces repository.NamespaceRepository,
	resources repository.ResourceRepository,
	dispatcher *dispatch.Coordinator,
	logger *slog.Logger,
) *ResourceService {
	return &ResourceService{
		pool:       pool,
		namespaces: namespaces,
		resources:  resources,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// MutationResult pairs the mutated resource with the engine's response hint.
type MutationResult struct {
	Resource *domain.Resource    `json:"resource,omitempty"`
	Hint     domain.ResponseHint `json:"hint"`
}

// Create persists a new resource under the namespace and fires the
// on_create chain. A rejected submission fires on_error instead and
// returns the validation error alongside any hint the error chain produced.
func (s *ResourceService) Create(ctx context.Context, namespaceSlug string, properties map[string]any, adminCaller bool) (*MutationResult, error) {
	ns, err := s.namespaces.FindBySlug(ctx, s.pool, namespaceSlug)
	if err != nil {
		return nil, err
	}

	if len(properties) == 0 {
		valErr := domain.ErrValidation("properties must be a non-empty object")
		hint := s.emit(ctx, domain.NewLifecycleEvent(ns.ID, uuid.Nil, domain.TriggerError, domain.OutcomeFailure, adminCaller, properties))
		return &MutationResult{Hint: hint}, valErr
	}

	now := time.Now().UTC()
	res := &domain.Resource{
		ID:          uuid.New(),
		NamespaceID: ns.ID,
		Properties:  properties,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.resources.Create(ctx, s.pool, res); err != nil {
		hint := s.emit(ctx, domain.NewLifecycleEvent(ns.ID, res.ID, domain.TriggerError, domain.OutcomeFailure, adminCaller, properties))
		return &MutationResult{Hint: hint}, domain.ErrInternal("create resource", err)
	}

	hint := s.emit(ctx, domain.NewLifecycleEvent(ns.ID, res.ID, domain.TriggerCreate, domain.OutcomeSuccess, adminCaller, res.Properties))
	return &MutationResult{Resource: res, Hint: hint}, nil
}

// Update replaces a resource's properties and fires the on_update chain.
func (s *ResourceService) Update(ctx context.Context, resourceID uuid.UUID, properties map[string]any, adminCaller bool) (*MutationResult, error) {
	existing, err := s.resources.FindByID(ctx, s.pool, resourceID)
	if err != nil {
		return nil, err
	}

	if len(properties) == 0 {
		valErr := domain.ErrValidation("properties must be a non-empty object")
		hint := s.emit(ctx, domain.NewLifecycleEvent(existing.NamespaceID, existing.ID, domain.TriggerError, domain.OutcomeFailure, adminCaller, properties))
		return &MutationResult{Hint: hint}, valErr
	}

	updated, err := s.resources.UpdateProperties(ctx, s.pool, resourceID, properties)
	if err != nil {
		hint := s.emit(ctx, domain.NewLifecycleEvent(existing.NamespaceID, existing.ID, domain.TriggerError, domain.OutcomeFailure, adminCaller, properties))
		return &MutationResult{Hint: hint}, domain.ErrInternal("update resource", err)
	}

	hint := s.emit(ctx, domain.NewLifecycleEvent(updated.NamespaceID, updated.ID, domain.TriggerUpdate, domain.OutcomeSuccess, adminCaller, updated.Properties))
	return &MutationResult{Resource: updated, Hint: hint}, nil
}

// Destroy deletes a resource and fires the on_destroy chain with the final
// property snapshot taken before deletion.
func (s *ResourceService) Destroy(ctx context.Context, resourceID uuid.UUID, adminCaller bool) (*MutationResult, error) {
	existing, err := s.resources.FindByID(ctx, s.pool, resourceID)
	if err != nil {
		return nil, err
	}

	if err := s.resources.Delete(ctx, s.pool, resourceID); err != nil {
		return nil, err
	}

	hint := s.emit(ctx, domain.NewLifecycleEvent(existing.NamespaceID, existing.ID, domain.TriggerDestroy, domain.OutcomeSuccess, adminCaller, existing.Properties))
	return &MutationResult{Hint: hint}, nil
}

// emit hands the event to the dispatch engine. Dispatch errors (bad action
// configuration, enqueue failure) never fail the mutation that already
// happened; they are logged and visible to operators through the recorded
// results and the audit stream.
func (s *ResourceService) emit(ctx context.Context, event domain.LifecycleEvent) domain.ResponseHint {
	hint, err := s.dispatcher.Dispatch(ctx, event)
	if err != nil {
		s.logger.Error("action dispatch failed",
			"correlation_id", event.CorrelationID,
			"namespace_id", event.NamespaceID,
			"trigger", event.Trigger,
			"error", err,
		)
	}
	return hint
}
