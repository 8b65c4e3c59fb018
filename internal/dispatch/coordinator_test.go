package dispatch

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type coordinatorFixture struct {
	nsID    uuid.UUID
	defs    *fakeDefinitionSource
	queue   *MemoryQueue
	results *MemoryResultStore
	coord   *Coordinator
}

func newCoordinatorFixture(t *testing.T, kinds ...Kind) *coordinatorFixture {
	t.Helper()
	if len(kinds) == 0 {
		kinds = []Kind{
			NewRedirectKind(),
			NewServeFileKind(),
			NewEmailKind(&LogMailer{Logger: testLogger()}),
		}
	}
	registry := NewRegistry(kinds...)
	queue := NewMemoryQueue()
	results := NewMemoryResultStore()
	defs := newFakeDefinitionSource()
	coord := NewCoordinator(
		NewResolver(defs),
		registry,
		NewExecutor(registry, testLogger()),
		queue,
		results,
		&fakeMessageSource{message: "Thanks for your submission!"},
		testLogger(),
		0,
	)
	return &coordinatorFixture{nsID: uuid.New(), defs: defs, queue: queue, results: results, coord: coord}
}

func (f *coordinatorFixture) event(adminCaller bool) domain.LifecycleEvent {
	return domain.NewLifecycleEvent(f.nsID, uuid.New(), domain.TriggerCreate, domain.OutcomeSuccess, adminCaller, map[string]any{"name": "Ada"})
}

func TestDispatch_RedirectDecidesResponseBeforeAsyncWork(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		emailDef(f.nsID, domain.TriggerCreate, 1, "ops@example.com"),
		redirectDef(f.nsID, domain.TriggerCreate, 2, "/thanks"),
	}

	event := f.event(false)
	hint, err := f.coord.Dispatch(context.Background(), event)
	require.NoError(t, err)

	// The redirect resolved inline even though the email precedes it in
	// ordinal order: the email ran nowhere yet, it only got enqueued.
	assert.Equal(t, "/thanks", hint.RedirectTo)
	assert.Empty(t, hint.FlashMessage)
	assert.Equal(t, 1, f.queue.Len())

	results, err := f.results.ListByCorrelation(context.Background(), event.CorrelationID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ActionRedirect, results[0].ActionType)
	assert.Equal(t, domain.ResultSucceeded, results[0].Status)
}

func TestDispatch_InlineFailureFallsBackToDefaultResponse(t *testing.T) {
	broken := &stubKind{actionType: domain.ActionRedirect, inline: true, err: domain.ErrPermanent("boom", nil)}
	f := newCoordinatorFixture(t, broken, NewEmailKind(&LogMailer{Logger: testLogger()}))
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		redirectDef(f.nsID, domain.TriggerCreate, 1, "/thanks"),
		emailDef(f.nsID, domain.TriggerCreate, 2, "ops@example.com"),
	}

	event := f.event(false)
	hint, err := f.coord.Dispatch(context.Background(), event)
	require.NoError(t, err)

	// Default response with the form message; the async remainder still
	// enqueued despite the inline failure.
	assert.Empty(t, hint.RedirectTo)
	assert.Equal(t, "Thanks for your submission!", hint.FlashMessage)
	assert.Equal(t, 1, f.queue.Len())

	results, err := f.results.ListByCorrelation(context.Background(), event.CorrelationID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Equal(t, domain.CodePermanent, results[0].ErrorCode)
}

func TestDispatch_InlineTransientErrorIsNotRetried(t *testing.T) {
	flaky := &stubKind{actionType: domain.ActionRedirect, inline: true, err: domain.ErrTransient("slow upstream", nil)}
	f := newCoordinatorFixture(t, flaky)
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		redirectDef(f.nsID, domain.TriggerCreate, 1, "/thanks"),
	}

	event := f.event(false)
	hint, err := f.coord.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, hint.RedirectTo)
	assert.Equal(t, 1, flaky.calls)

	results, err := f.results.ListByCorrelation(context.Background(), event.CorrelationID)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, domain.ResultFailed, results[0].Status)
	assert.Equal(t, domain.CodeTransient, results[0].ErrorCode)
}

func TestDispatch_FlashMessageSuppressedForAdminCaller(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		emailDef(f.nsID, domain.TriggerCreate, 1, "ops@example.com"),
	}

	hint, err := f.coord.Dispatch(context.Background(), f.event(true))
	require.NoError(t, err)
	assert.Empty(t, hint.FlashMessage)
	assert.Equal(t, 1, f.queue.Len())
}

func TestDispatch_FlashMessageSuppressedOnFailureOutcome(t *testing.T) {
	f := newCoordinatorFixture(t)

	event := domain.NewLifecycleEvent(f.nsID, uuid.Nil, domain.TriggerError, domain.OutcomeFailure, false, nil)
	hint, err := f.coord.Dispatch(context.Background(), event)
	require.NoError(t, err)
	assert.Empty(t, hint.FlashMessage)
}

func TestDispatch_EmptyChainGetsDefaultResponse(t *testing.T) {
	f := newCoordinatorFixture(t)

	hint, err := f.coord.Dispatch(context.Background(), f.event(false))
	require.NoError(t, err)
	assert.Empty(t, hint.RedirectTo)
	assert.Equal(t, "Thanks for your submission!", hint.FlashMessage)
	assert.Equal(t, 0, f.queue.Len())
}

func TestDispatch_ServeFileDecidesResponse(t *testing.T) {
	f := newCoordinatorFixture(t)
	cfg, _ := json.Marshal(domain.ServeFileConfig{FilePath: "/downloads/receipt.pdf"})
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		{
			ID:          uuid.New(),
			NamespaceID: f.nsID,
			Trigger:     domain.TriggerCreate,
			Type:        domain.ActionServeFile,
			Config:      cfg,
		},
	}

	hint, err := f.coord.Dispatch(context.Background(), f.event(false))
	require.NoError(t, err)
	assert.Equal(t, "/downloads/receipt.pdf", hint.ServeFile)
	assert.Empty(t, hint.FlashMessage)
}

func TestDispatch_FirstRedirectWins(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		redirectDef(f.nsID, domain.TriggerCreate, 1, "/first"),
		redirectDef(f.nsID, domain.TriggerCreate, 2, "/second"),
	}

	hint, err := f.coord.Dispatch(context.Background(), f.event(false))
	require.NoError(t, err)
	assert.Equal(t, "/first", hint.RedirectTo)
}

func TestDispatch_EnqueueFailureSurfacesButKeepsHint(t *testing.T) {
	registry := NewRegistry(NewRedirectKind(), NewEmailKind(&LogMailer{Logger: testLogger()}))
	defs := newFakeDefinitionSource()
	nsID := uuid.New()
	defs.byNamespace[nsID] = []domain.ActionDefinition{
		redirectDef(nsID, domain.TriggerCreate, 1, "/thanks"),
		emailDef(nsID, domain.TriggerCreate, 2, "ops@example.com"),
	}

	coord := NewCoordinator(
		NewResolver(defs),
		registry,
		NewExecutor(registry, testLogger()),
		&failingQueue{},
		NewMemoryResultStore(),
		&fakeMessageSource{},
		testLogger(),
		0,
	)

	event := domain.NewLifecycleEvent(nsID, uuid.New(), domain.TriggerCreate, domain.OutcomeSuccess, false, nil)
	hint, err := coord.Dispatch(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, "/thanks", hint.RedirectTo)
}

func TestDispatch_ConfigErrorAbortsBeforeAnythingRuns(t *testing.T) {
	f := newCoordinatorFixture(t)
	f.defs.byNamespace[f.nsID] = []domain.ActionDefinition{
		redirectDef(f.nsID, domain.TriggerCreate, 1, "/thanks"),
		{
			ID:          uuid.New(),
			NamespaceID: f.nsID,
			Trigger:     domain.TriggerCreate,
			Type:        domain.ActionSendEmail,
			Ordinal:     2,
			Config:      json.RawMessage(`{"to":"not-an-address"}`),
		},
	}

	event := f.event(false)
	_, err := f.coord.Dispatch(context.Background(), event)
	require.Error(t, err)
	assert.Equal(t, domain.CodeConfigError, domain.ErrorCode(err))
	assert.Equal(t, 0, f.queue.Len())

	results, _ := f.results.ListByCorrelation(context.Background(), event.CorrelationID)
	assert.Empty(t, results)
}
