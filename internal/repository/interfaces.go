package repository

import (
	"context"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DBTX abstracts pgx.Tx and pgxpool.Pool so repositories work with both.
type DBTX interface {
	Exec(ctx context.Context, sql string, arguments ...interface{}) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}

// NamespaceRepository provides access to namespaces.
type NamespaceRepository interface {
	// FindByID returns a namespace by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Namespace, error)

	// FindBySlug returns a namespace by its URL slug.
	FindBySlug(ctx context.Context, db DBTX, slug string) (*domain.Namespace, error)

	// Create inserts a new namespace.
	Create(ctx context.Context, db DBTX, ns *domain.Namespace) error

	// Update modifies name and success message.
	Update(ctx context.Context, db DBTX, ns *domain.Namespace) error

	// List returns all namespaces ordered by slug.
	List(ctx context.Context, db DBTX) ([]domain.Namespace, error)
}

// ResourceRepository provides access to resources.
type ResourceRepository interface {
	// FindByID returns a resource by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.Resource, error)

	// Create inserts a new resource with its property set.
	Create(ctx context.Context, db DBTX, res *domain.Resource) error

	// UpdateProperties replaces the property set of a resource.
	UpdateProperties(ctx context.Context, db DBTX, id uuid.UUID, properties map[string]any) (*domain.Resource, error)

	// Delete removes a resource.
	Delete(ctx context.Context, db DBTX, id uuid.UUID) error

	// ListByNamespace returns resources for a namespace, newest first.
	ListByNamespace(ctx context.Context, db DBTX, namespaceID uuid.UUID, limit int) ([]domain.Resource, error)
}

// ActionDefinitionRepository provides access to action_definitions.
// The store is read-mostly; operator edits never affect in-flight jobs
// because jobs carry a config snapshot.
type ActionDefinitionRepository interface {
	// FindByID returns a definition by ID.
	FindByID(ctx context.Context, db DBTX, id uuid.UUID) (*domain.ActionDefinition, error)

	// ListForNamespace returns namespace-level definitions for a trigger,
	// ordered by ordinal then created_at.
	ListForNamespace(ctx context.Context, db DBTX, namespaceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error)

	// ListForResource returns resource-scoped definitions for a trigger,
	// ordered by ordinal then created_at.
	ListForResource(ctx context.Context, db DBTX, resourceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error)

	// Create inserts a new definition.
	Create(ctx context.Context, db DBTX, def *domain.ActionDefinition) error

	// Update modifies a definition's ordinal and config.
	Update(ctx context.Context, db DBTX, def *domain.ActionDefinition) error

	// Delete removes a definition.
	Delete(ctx context.Context, db DBTX, id uuid.UUID) error
}

// JobRepository provides access to the durable action_jobs queue table.
type JobRepository interface {
	// InsertBatch enqueues a chain of jobs. Callers pass a pgx.Tx so the
	// batch commits atomically (all-or-nothing per event).
	InsertBatch(ctx context.Context, db DBTX, jobs []domain.ActionJob) error

	// Claim locks up to limit due jobs for this worker using
	// FOR UPDATE SKIP LOCKED, marking them in-flight.
	Claim(ctx context.Context, db DBTX, limit int) ([]domain.ActionJob, error)

	// Ack removes a completed job from the queue.
	Ack(ctx context.Context, db DBTX, seqID int64) error

	// Nack releases a job back to the queue with a bumped attempt count,
	// due again at retryAt.
	Nack(ctx context.Context, db DBTX, seqID int64, retryAt time.Time) error

	// ReleaseStale returns in-flight jobs claimed before the cutoff to
	// pending, recovering claims abandoned by a dead worker.
	ReleaseStale(ctx context.Context, db DBTX, olderThan time.Duration) (int, error)

	// PendingByCorrelation counts jobs still queued or in flight for an event.
	PendingByCorrelation(ctx context.Context, db DBTX, correlationID uuid.UUID) (int, error)
}

// ResultRepository provides access to action_results.
type ResultRepository interface {
	// Record upserts a terminal result. First write wins on
	// (correlation_id, action_definition_id); redeliveries are no-ops.
	Record(ctx context.Context, db DBTX, result domain.ActionResult) error

	// ListByCorrelation returns all recorded results for an event.
	ListByCorrelation(ctx context.Context, db DBTX, correlationID uuid.UUID) ([]domain.ActionResult, error)

	// FetchUnpublished returns results not yet published to the audit stream.
	FetchUnpublished(ctx context.Context, db DBTX, limit int) ([]PublishableResult, error)

	// MarkPublished flags results as published to the audit stream.
	MarkPublished(ctx context.Context, db DBTX, seqIDs []int64) error
}

// PublishableResult pairs a result with its queue sequence for publishing.
type PublishableResult struct {
	SeqID  int64
	Result domain.ActionResult
}
