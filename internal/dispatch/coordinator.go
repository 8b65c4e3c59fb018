package dispatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/formwork/platform/internal/domain"
)

// Coordinator is the entry point of the dispatch engine. For one lifecycle
// event it resolves the configured chain, runs response-relevant actions
// inline so their effect is known before the HTTP response, enqueues the
// remainder for asynchronous execution, and reconciles the inline outcomes
// into a ResponseHint.
//
// State machine per event:
// Emitted -> Resolved -> inline actions run, response decided ->
// remainder enqueued -> terminal (all results recorded). No transition is
// skipped; the remainder enqueues even when inline actions fail.
type Coordinator struct {
	resolver     *Resolver
	registry     *Registry
	executor     *Executor
	queue        JobQueue
	results      ResultStore
	messages     MessageSource
	logger       *slog.Logger
	inlineBudget time.Duration
}

// NewCoordinator assembles the dispatch engine. inlineBudget bounds each
// inline action's latency; zero selects the 250ms default.
func NewCoordinator(resolver *Resolver, registry *Registry, executor *Executor, queue JobQueue, results ResultStore, messages MessageSource, logger *slog.Logger, inlineBudget time.Duration) *Coordinator {
	if inlineBudget <= 0 {
		inlineBudget = 250 * time.Millisecond
	}
	return &Coordinator{
		resolver:     resolver,
		registry:     registry,
		executor:     executor,
		queue:        queue,
		results:      results,
		messages:     messages,
		logger:       logger,
		inlineBudget: inlineBudget,
	}
}

// Dispatch handles one lifecycle event and returns the response hint for
// the originating request. It returns an error only when resolution fails
// (bad configuration, surfaced to the operator) or the async remainder
// cannot be enqueued; inline action failures degrade to the default
// response and are recorded, never raised.
func (c *Coordinator) Dispatch(ctx context.Context, event domain.LifecycleEvent) (domain.ResponseHint, error) {
	chain, err := c.resolver.Resolve(ctx, event)
	if err != nil {
		return domain.ResponseHint{}, err
	}

	var inline, remainder []domain.ActionDefinition
	for _, def := range chain {
		if c.registry.ResponseRelevant(def.Type) {
			inline = append(inline, def)
		} else {
			remainder = append(remainder, def)
		}
	}

	hint := c.runInline(ctx, event, inline)

	// The remainder enqueues unconditionally, independent of inline outcomes.
	if len(remainder) > 0 {
		jobs := make([]domain.ActionJob, 0, len(remainder))
		for _, def := range remainder {
			jobs = append(jobs, domain.NewActionJob(def, event))
		}
		if err := c.queue.Enqueue(ctx, jobs); err != nil {
			c.logger.Error("enqueue action chain failed",
				"correlation_id", event.CorrelationID,
				"jobs", len(jobs),
				"error", err,
			)
			return hint, domain.ErrInternal("enqueue action chain", err)
		}
	}

	c.applyDefaultResponse(ctx, event, &hint)
	return hint, nil
}

// runInline executes response-relevant actions synchronously, each under
// the inline latency budget. The first succeeded effect of each shape wins;
// failures record an ActionResult and fall through to the default response.
func (c *Coordinator) runInline(ctx context.Context, event domain.LifecycleEvent, inline []domain.ActionDefinition) domain.ResponseHint {
	var hint domain.ResponseHint
	for _, def := range inline {
		job := domain.NewActionJob(def, event)

		runCtx, cancel := context.WithTimeout(ctx, c.inlineBudget)
		result, execErr := c.executor.Execute(runCtx, job)
		cancel()
		if execErr != nil {
			// Inline kinds are side-effect-light; a transient error here is
			// recorded as failed rather than retried, keeping the response bounded.
			result = domain.FailedResult(job, domain.ErrorCode(execErr), execErr.Error())
		}

		if err := c.results.Record(ctx, result); err != nil {
			c.logger.Error("record inline result failed",
				"correlation_id", event.CorrelationID,
				"action_definition_id", def.ID,
				"error", err,
			)
		}

		if result.Status != domain.ResultSucceeded {
			continue
		}
		c.applyEffect(&hint, result.Effect)
	}
	return hint
}

func (c *Coordinator) applyEffect(hint *domain.ResponseHint, effect json.RawMessage) {
	if hint.RedirectTo == "" {
		var redirect domain.RedirectEffect
		if json.Unmarshal(effect, &redirect) == nil && redirect.RedirectURL != "" {
			hint.RedirectTo = redirect.RedirectURL
			return
		}
	}
	if hint.ServeFile == "" {
		var file domain.ServeFileEffect
		if json.Unmarshal(effect, &file) == nil && file.FilePath != "" {
			hint.ServeFile = file.FilePath
		}
	}
}

// applyDefaultResponse fills the form-level flash message on the default
// (non-redirect) path. The message is suppressed for administrative callers
// and for failed mutations.
func (c *Coordinator) applyDefaultResponse(ctx context.Context, event domain.LifecycleEvent, hint *domain.ResponseHint) {
	if hint.RedirectTo != "" || hint.ServeFile != "" {
		return
	}
	if event.AdminCaller || event.Outcome != domain.OutcomeSuccess {
		return
	}
	msg, err := c.messages.SuccessMessage(ctx, event.NamespaceID)
	if err != nil {
		c.logger.Warn("load success message failed",
			"namespace_id", event.NamespaceID,
			"error", err,
		)
		return
	}
	hint.FlashMessage = msg
}
