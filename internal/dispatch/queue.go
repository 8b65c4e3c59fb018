package dispatch

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
)

// JobQueue is the durable at-least-once boundary between the synchronous
// request path and asynchronous execution. Enqueue submits a whole chain
// atomically: partial enqueue must never leave a subset of actions
// scheduled. A claim holds a job exclusively but never forgets it:
// Ack or Nack releases it explicitly, and ReleaseStale returns claims
// abandoned by a dead worker to the pending set. The queue is always
// injected, never a singleton, so tests can substitute a deterministic
// in-memory double.
type JobQueue interface {
	Enqueue(ctx context.Context, jobs []domain.ActionJob) error
	Claim(ctx context.Context, limit int) ([]domain.ActionJob, error)
	Ack(ctx context.Context, job domain.ActionJob) error
	Nack(ctx context.Context, job domain.ActionJob, retryAt time.Time) error
	ReleaseStale(ctx context.Context, olderThan time.Duration) (int, error)
	PendingByCorrelation(ctx context.Context, correlationID uuid.UUID) (int, error)
}

// ResultStore accepts concurrent terminal writes keyed by
// (correlation_id, action_definition_id). Writes are idempotent upserts:
// the first terminal result wins, redeliveries are no-ops.
type ResultStore interface {
	Record(ctx context.Context, result domain.ActionResult) error
	ListByCorrelation(ctx context.Context, correlationID uuid.UUID) ([]domain.ActionResult, error)
}

// DefinitionSource loads configured action chains for the resolver.
type DefinitionSource interface {
	ListForNamespace(ctx context.Context, namespaceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error)
	ListForResource(ctx context.Context, resourceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error)
}

// MessageSource supplies the form-level success message for a namespace.
type MessageSource interface {
	SuccessMessage(ctx context.Context, namespaceID uuid.UUID) (string, error)
}

// MemoryQueue is an in-process JobQueue with deterministic delivery,
// used in tests and single-process deployments. Claimed jobs move to an
// in-flight set and stay there until Ack, Nack, or ReleaseStale, matching
// the durable queue's no-loss claim semantics.
type MemoryQueue struct {
	mu       sync.Mutex
	next     int64
	pending  []memoryJob
	inFlight map[int64]memoryClaim
}

type memoryJob struct {
	job   domain.ActionJob
	runAt time.Time
}

type memoryClaim struct {
	job       domain.ActionJob
	claimedAt time.Time
}

// NewMemoryQueue creates an empty in-memory queue.
func NewMemoryQueue() *MemoryQueue {
	return &MemoryQueue{inFlight: make(map[int64]memoryClaim)}
}

func (q *MemoryQueue) Enqueue(_ context.Context, jobs []domain.ActionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	now := time.Now()
	for _, job := range jobs {
		q.next++
		job.SeqID = q.next
		q.pending = append(q.pending, memoryJob{job: job, runAt: now})
	}
	return nil
}

func (q *MemoryQueue) Claim(_ context.Context, limit int) ([]domain.ActionJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	now := time.Now()
	var claimed []domain.ActionJob
	var rest []memoryJob
	for _, mj := range q.pending {
		if len(claimed) < limit && !mj.runAt.After(now) {
			claimed = append(claimed, mj.job)
			q.inFlight[mj.job.SeqID] = memoryClaim{job: mj.job, claimedAt: now}
			continue
		}
		rest = append(rest, mj)
	}
	q.pending = rest
	sort.Slice(claimed, func(i, j int) bool { return claimed[i].SeqID < claimed[j].SeqID })
	return claimed, nil
}

func (q *MemoryQueue) Ack(_ context.Context, job domain.ActionJob) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, job.SeqID)
	return nil
}

func (q *MemoryQueue) Nack(_ context.Context, job domain.ActionJob, retryAt time.Time) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, job.SeqID)
	job.Attempt++
	q.pending = append(q.pending, memoryJob{job: job, runAt: retryAt})
	return nil
}

// ReleaseStale returns claims older than the cutoff to the pending set
// without bumping the attempt count.
func (q *MemoryQueue) ReleaseStale(_ context.Context, olderThan time.Duration) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	cutoff := time.Now().Add(-olderThan)
	released := 0
	for seqID, claim := range q.inFlight {
		if claim.claimedAt.After(cutoff) {
			continue
		}
		delete(q.inFlight, seqID)
		q.pending = append(q.pending, memoryJob{job: claim.job, runAt: time.Now()})
		released++
	}
	return released, nil
}

// PendingByCorrelation counts jobs queued or in flight for an event.
func (q *MemoryQueue) PendingByCorrelation(_ context.Context, correlationID uuid.UUID) (int, error) {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := 0
	for _, mj := range q.pending {
		if mj.job.CorrelationID == correlationID {
			n++
		}
	}
	for _, claim := range q.inFlight {
		if claim.job.CorrelationID == correlationID {
			n++
		}
	}
	return n, nil
}

// Len reports the number of jobs awaiting claim.
func (q *MemoryQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.pending)
}

// MemoryResultStore is an in-process ResultStore with first-write-wins
// upsert semantics, used in tests.
type MemoryResultStore struct {
	mu      sync.Mutex
	results map[uuid.UUID]map[uuid.UUID]domain.ActionResult
}

// NewMemoryResultStore creates an empty in-memory result store.
func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[uuid.UUID]map[uuid.UUID]domain.ActionResult)}
}

func (s *MemoryResultStore) Record(_ context.Context, result domain.ActionResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	byDef, ok := s.results[result.CorrelationID]
	if !ok {
		byDef = make(map[uuid.UUID]domain.ActionResult)
		s.results[result.CorrelationID] = byDef
	}
	if _, exists := byDef[result.ActionDefinitionID]; exists {
		return nil
	}
	byDef[result.ActionDefinitionID] = result
	return nil
}

func (s *MemoryResultStore) ListByCorrelation(_ context.Context, correlationID uuid.UUID) ([]domain.ActionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []domain.ActionResult
	for _, res := range s.results[correlationID] {
		out = append(out, res)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}
