package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"

	"github.com/formwork/platform/internal/domain"
	"github.com/google/uuid"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// fakeDefinitionSource serves canned chains keyed by scope.
type fakeDefinitionSource struct {
	byNamespace map[uuid.UUID][]domain.ActionDefinition
	byResource  map[uuid.UUID][]domain.ActionDefinition
}

func newFakeDefinitionSource() *fakeDefinitionSource {
	return &fakeDefinitionSource{
		byNamespace: make(map[uuid.UUID][]domain.ActionDefinition),
		byResource:  make(map[uuid.UUID][]domain.ActionDefinition),
	}
}

func (f *fakeDefinitionSource) ListForNamespace(_ context.Context, namespaceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	return filterTrigger(f.byNamespace[namespaceID], trigger), nil
}

func (f *fakeDefinitionSource) ListForResource(_ context.Context, resourceID uuid.UUID, trigger domain.Trigger) ([]domain.ActionDefinition, error) {
	return filterTrigger(f.byResource[resourceID], trigger), nil
}

func filterTrigger(defs []domain.ActionDefinition, trigger domain.Trigger) []domain.ActionDefinition {
	var out []domain.ActionDefinition
	for _, def := range defs {
		if def.Trigger == trigger {
			out = append(out, def)
		}
	}
	return out
}

// fakeMessageSource returns a fixed success message.
type fakeMessageSource struct {
	message string
}

func (f *fakeMessageSource) SuccessMessage(_ context.Context, _ uuid.UUID) (string, error) {
	return f.message, nil
}

// stubKind lets tests script arbitrary kind behavior.
type stubKind struct {
	actionType domain.ActionType
	inline     bool
	effect     json.RawMessage
	err        error
	panicMsg   string
	calls      int
}

func (k *stubKind) Type() domain.ActionType { return k.actionType }
func (k *stubKind) ResponseRelevant() bool  { return k.inline }

func (k *stubKind) Run(_ context.Context, _ domain.ActionJob) (json.RawMessage, error) {
	k.calls++
	if k.panicMsg != "" {
		panic(k.panicMsg)
	}
	if k.err != nil {
		return nil, k.err
	}
	return k.effect, nil
}

// failingQueue rejects every enqueue.
type failingQueue struct {
	MemoryQueue
}

func (q *failingQueue) Enqueue(_ context.Context, _ []domain.ActionJob) error {
	return errors.New("queue unavailable")
}

func redirectDef(namespaceID uuid.UUID, trigger domain.Trigger, ordinal int, target string) domain.ActionDefinition {
	cfg, _ := json.Marshal(domain.RedirectConfig{RedirectURL: target})
	return domain.ActionDefinition{
		ID:          uuid.New(),
		NamespaceID: namespaceID,
		Trigger:     trigger,
		Type:        domain.ActionRedirect,
		Ordinal:     ordinal,
		Config:      cfg,
	}
}

func emailDef(namespaceID uuid.UUID, trigger domain.Trigger, ordinal int, to string) domain.ActionDefinition {
	cfg, _ := json.Marshal(domain.EmailConfig{To: to, Subject: "New submission", Body: "Hello {{name}}"})
	return domain.ActionDefinition{
		ID:          uuid.New(),
		NamespaceID: namespaceID,
		Trigger:     trigger,
		Type:        domain.ActionSendEmail,
		Ordinal:     ordinal,
		Config:      cfg,
	}
}
