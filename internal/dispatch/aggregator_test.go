package dispatch

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recordedResult(correlationID uuid.UUID) domain.ActionResult {
	job := domain.ActionJob{
		CorrelationID:      correlationID,
		ActionDefinitionID: uuid.New(),
		ActionType:         domain.ActionSendEmail,
	}
	return domain.SucceededResult(job, json.RawMessage(`{}`))
}

func TestAwait_ReturnsImmediatelyWhenComplete(t *testing.T) {
	store := NewMemoryResultStore()
	correlationID := uuid.New()
	require.NoError(t, store.Record(context.Background(), recordedResult(correlationID)))
	require.NoError(t, store.Record(context.Background(), recordedResult(correlationID)))

	agg := NewAggregator(store, NewMemoryQueue(), 5*time.Millisecond)
	outcome, err := agg.Await(context.Background(), correlationID, 2, time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Len(t, outcome.Results, 2)
}

func TestAwait_TimeoutReturnsPartialSet(t *testing.T) {
	store := NewMemoryResultStore()
	correlationID := uuid.New()
	require.NoError(t, store.Record(context.Background(), recordedResult(correlationID)))

	agg := NewAggregator(store, NewMemoryQueue(), 5*time.Millisecond)
	outcome, err := agg.Await(context.Background(), correlationID, 3, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, outcome.Complete)
	assert.Len(t, outcome.Results, 1)
}

func TestAwait_PicksUpLateResults(t *testing.T) {
	store := NewMemoryResultStore()
	correlationID := uuid.New()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = store.Record(context.Background(), recordedResult(correlationID))
	}()

	agg := NewAggregator(store, NewMemoryQueue(), 5*time.Millisecond)
	outcome, err := agg.Await(context.Background(), correlationID, 1, time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Len(t, outcome.Results, 1)
}

func TestAwait_ContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(15 * time.Millisecond)
		cancel()
	}()

	agg := NewAggregator(NewMemoryResultStore(), NewMemoryQueue(), 5*time.Millisecond)
	outcome, err := agg.Await(ctx, uuid.New(), 1, time.Minute)
	require.Error(t, err)
	assert.False(t, outcome.Complete)
}

func TestAwait_DerivedCompletionFollowsQueue(t *testing.T) {
	store := NewMemoryResultStore()
	queue := NewMemoryQueue()
	job := stubJob(domain.ActionSendEmail)
	require.NoError(t, queue.Enqueue(context.Background(), []domain.ActionJob{job}))

	agg := NewAggregator(store, queue, 5*time.Millisecond)

	// A queued job keeps the report incomplete regardless of result count.
	outcome, err := agg.Await(context.Background(), job.CorrelationID, 0, 30*time.Millisecond)
	require.NoError(t, err)
	assert.False(t, outcome.Complete)

	// Work the job to a terminal result; the derived view then completes.
	claimed, err := queue.Claim(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.Record(context.Background(), domain.SucceededResult(claimed[0], json.RawMessage(`{}`))))
	require.NoError(t, queue.Ack(context.Background(), claimed[0]))

	outcome, err = agg.Await(context.Background(), job.CorrelationID, 0, time.Second)
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Len(t, outcome.Results, 1)
}

func TestAwait_DerivedCompletionForEventWithoutJobs(t *testing.T) {
	agg := NewAggregator(NewMemoryResultStore(), NewMemoryQueue(), 5*time.Millisecond)

	outcome, err := agg.Await(context.Background(), uuid.New(), 0, 30*time.Millisecond)
	require.NoError(t, err)
	assert.True(t, outcome.Complete)
	assert.Empty(t, outcome.Results)
}
