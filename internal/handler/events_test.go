package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/formwork/platform/internal/dispatch"
	"github.com/formwork/platform/internal/domain"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultsRouter(store *dispatch.MemoryResultStore, queue *dispatch.MemoryQueue) chi.Router {
	r := chi.NewRouter()
	h := NewEventHandler(dispatch.NewAggregator(store, queue, 5*time.Millisecond))
	r.Get("/events/{correlationID}/results", h.GetResults)
	return r
}

func TestGetResults_ReturnsRecordedOutcomes(t *testing.T) {
	store := dispatch.NewMemoryResultStore()
	correlationID := uuid.New()
	job := domain.ActionJob{
		CorrelationID:      correlationID,
		ActionDefinitionID: uuid.New(),
		ActionType:         domain.ActionSendEmail,
	}
	require.NoError(t, store.Record(context.Background(), domain.SucceededResult(job, json.RawMessage(`{}`))))

	req := httptest.NewRequest(http.MethodGet, "/events/"+correlationID.String()+"/results?expected=1", nil)
	rec := httptest.NewRecorder()
	resultsRouter(store, dispatch.NewMemoryQueue()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome dispatch.AggregatedOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Complete)
	require.Len(t, outcome.Results, 1)
	assert.Equal(t, domain.ResultSucceeded, outcome.Results[0].Status)
}

func TestGetResults_IncompleteWithinWait(t *testing.T) {
	store := dispatch.NewMemoryResultStore()
	correlationID := uuid.New()

	req := httptest.NewRequest(http.MethodGet, "/events/"+correlationID.String()+"/results?expected=2&wait_ms=20", nil)
	rec := httptest.NewRecorder()
	resultsRouter(store, dispatch.NewMemoryQueue()).ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome dispatch.AggregatedOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.False(t, outcome.Complete)
	assert.Empty(t, outcome.Results)
}

func TestGetResults_DefaultExpectedTracksQueuedJobs(t *testing.T) {
	store := dispatch.NewMemoryResultStore()
	queue := dispatch.NewMemoryQueue()
	correlationID := uuid.New()
	job := domain.ActionJob{
		CorrelationID:      correlationID,
		ActionDefinitionID: uuid.New(),
		ActionType:         domain.ActionSendEmail,
	}
	require.NoError(t, queue.Enqueue(context.Background(), []domain.ActionJob{job}))
	router := resultsRouter(store, queue)

	// Without ?expected the report must not claim completeness while a job
	// for the event is still queued.
	req := httptest.NewRequest(http.MethodGet, "/events/"+correlationID.String()+"/results?wait_ms=20", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var outcome dispatch.AggregatedOutcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.False(t, outcome.Complete)

	// Once the job reaches a terminal result the same request completes.
	claimed, err := queue.Claim(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	require.NoError(t, store.Record(context.Background(), domain.SucceededResult(claimed[0], json.RawMessage(`{}`))))
	require.NoError(t, queue.Ack(context.Background(), claimed[0]))

	req = httptest.NewRequest(http.MethodGet, "/events/"+correlationID.String()+"/results", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.True(t, outcome.Complete)
	require.Len(t, outcome.Results, 1)
}

func TestGetResults_RejectsBadCorrelationID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/events/not-a-uuid/results", nil)
	rec := httptest.NewRecorder()
	resultsRouter(dispatch.NewMemoryResultStore(), dispatch.NewMemoryQueue()).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
