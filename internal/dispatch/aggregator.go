package dispatch

import (
	"context"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
)

// AggregatedOutcome is the collected set of action results for one event.
// Complete is false when the timeout elapsed before every expected result
// arrived.
type AggregatedOutcome struct {
	CorrelationID uuid.UUID             `json:"correlation_id"`
	Results       []domain.ActionResult `json:"results"`
	Complete      bool                  `json:"complete"`
}

// PendingSource counts jobs not yet at a terminal result for an event.
// The durable queue satisfies this: completed jobs are acked away, so a
// zero count means every queued action has been recorded.
type PendingSource interface {
	PendingByCorrelation(ctx context.Context, correlationID uuid.UUID) (int, error)
}

// Aggregator collects action results per correlation ID. Await blocks up to
// a bounded timeout: bounded wait for correctness, bounded timeout for
// availability. Results arrive out of order from concurrent workers.
type Aggregator struct {
	results      ResultStore
	pending      PendingSource
	pollInterval time.Duration
}

// NewAggregator creates an aggregator. pollInterval zero selects 50ms.
func NewAggregator(results ResultStore, pending PendingSource, pollInterval time.Duration) *Aggregator {
	if pollInterval <= 0 {
		pollInterval = 50 * time.Millisecond
	}
	return &Aggregator{results: results, pending: pending, pollInterval: pollInterval}
}

// Await returns once the correlation ID's results are complete, or the
// timeout elapses, whichever comes first. With expected > 0 completeness
// means that many recorded results; with expected <= 0 it is derived from
// the queue, complete once no jobs remain pending for the event. On timeout
// the partial set is returned with Complete=false; the caller falls back to
// its default outcome.
func (a *Aggregator) Await(ctx context.Context, correlationID uuid.UUID, expected int, timeout time.Duration) (AggregatedOutcome, error) {
	deadline := time.Now().Add(timeout)
	ticker := time.NewTicker(a.pollInterval)
	defer ticker.Stop()

	for {
		results, err := a.results.ListByCorrelation(ctx, correlationID)
		if err != nil {
			return AggregatedOutcome{CorrelationID: correlationID}, err
		}
		done := false
		if expected > 0 {
			done = len(results) >= expected
		} else {
			pending, err := a.pending.PendingByCorrelation(ctx, correlationID)
			if err != nil {
				return AggregatedOutcome{CorrelationID: correlationID, Results: results}, err
			}
			done = pending == 0
		}
		if done {
			return AggregatedOutcome{CorrelationID: correlationID, Results: results, Complete: true}, nil
		}
		if time.Now().After(deadline) {
			return AggregatedOutcome{CorrelationID: correlationID, Results: results, Complete: false}, nil
		}
		select {
		case <-ctx.Done():
			return AggregatedOutcome{CorrelationID: correlationID, Results: results, Complete: false}, ctx.Err()
		case <-ticker.C:
		}
	}
}
