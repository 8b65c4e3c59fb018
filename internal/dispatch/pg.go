package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/repository"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PgQueue is the durable Postgres-backed JobQueue. Enqueue wraps the batch
// in one transaction so the chain commits all-or-nothing.
type PgQueue struct {
	pool *pgxpool.Pool
	jobs repository.JobRepository
}

// NewPgQueue creates a Postgres-backed queue.
func NewPgQueue(pool *pgxpool.Pool, jobs repository.JobRepository) *PgQueue {
	return &PgQueue{pool: pool, jobs: jobs}
}

func (q *PgQueue) Enqueue(ctx context.Context, jobs []domain.ActionJob) error {
	if len(jobs) == 0 {
		return nil
	}
	tx, err := q.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin enqueue tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := q.jobs.InsertBatch(ctx, tx, jobs); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit enqueue tx: %w", err)
	}
	return nil
}

func (q *PgQueue) Claim(ctx context.Context, limit int) ([]domain.ActionJob, error) {
	return q.jobs.Claim(ctx, q.pool, limit)
}

func (q *PgQueue) Ack(ctx context.Context, job domain.ActionJob) error {
	return q.jobs.Ack(ctx, q.pool, job.SeqID)
}

func (q *PgQueue) Nack(ctx context.Context, job domain.ActionJob, retryAt time.Time) error {
	return q.jobs.Nack(ctx, q.pool, job.SeqID, retryAt)
}

func (q *PgQueue) ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error) {
	return q.jobs.ReleaseStale(ctx, q.pool, olderThan)
}

func (q *PgQueue) PendingByCorrelation(ctx context.Context, correlationID uuid.UUID) (int, error) {
	return q.jobs.PendingByCorrelation(ctx, q.pool, correlationID)
}

// PgResultStore binds the result repository to the shared pool.
type PgResultStore struct {
	pool    *pgxpool.Pool
	results repository.ResultRepository
}

// NewPgResultStore creates a Postgres-backed result store.
func NewPgResultStore(pool *pgxpool.Pool, results repository.ResultRepository) *PgResultStore {
	return &PgResultStore{pool: pool, results: results}
}

func (s *PgResultStore) Record(ctx context.Context, result domain.ActionResult) error {
	return s.results.Record(ctx, s.pool, result)
}

func (s *PgResultStore) ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]domain.ActionResult, error) {
	return s.results.ListByCorrelation(ctx, s.pool, correlationID)
}

// PgDefinitionSource binds the action definition repository to the pool.
type PgDefinitionSource struct {
	pool *pgxpool.Pool
	defs repository.ActionDefinitionRepository
}

// NewPgDefinitionSource creates a Postgres-backed definition source.
func NewPgDefinitionSource(pool *pgxpool.Pool, defs repository.ActionDefinitionRepository) *PgDefinitionSource {
	return &PgDefinitionSource{pool: pool, defs: defs}
}

func (s *PgDefinitionSource) ListForNamespace(ctx context.Context, namespaceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	return s.defs.ListForNamespace(ctx, s.pool, namespaceID, trigger)
}

func (s *PgDefinitionSource) ListForResource(ctx context.Context, resourceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	return s.defs.ListForResource(ctx, s.pool, resourceID, trigger)
}

// PgMessageSource reads the form-level success message from namespaces.
type PgMessageSource struct {
	pool       *pgxpool.Pool
	namespaces repository.NamespaceRepository
}

// NewPgMessageSource creates a Postgres-backed message source.
func NewPgMessageSource(pool *pgxpool.Pool, namespaces repository.NamespaceRepository) *PgMessageSource {
	return &PgMessageSource{pool: pool, namespaces: namespaces}
}

func (s *PgMessageSource) SuccessMessage(ctx context.Context, namespaceID uuid.UUID) (string, error) {
	ns, err := s.namespaces.FindByID(ctx, s.pool, namespaceID)
	if err != nil {
		return "", err
	}
	return ns.SuccessMessage, nil
}
