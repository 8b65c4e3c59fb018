package dispatch

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/formwork/platform/internal/domain"
)

// Executor runs one action job and produces its terminal result. Failures
// are caught and converted to Failed results; a single action can never
// crash the worker or abort its sibling actions.
//
// Execute returns a non-nil error only for transient failures, which the
// caller may retry; every other path yields a terminal result.
type Executor struct {
	registry *Registry
	logger   *slog.Logger
}

// NewExecutor creates an executor over the given kind registry.
func NewExecutor(registry *Registry, logger *slog.Logger) *Executor {
	return &Executor{registry: registry, logger: logger}
}

// Execute dispatches the job to its kind.
func (e *Executor) Execute(ctx context.Context, job domain.ActionJob) (result domain.ActionResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("action panicked",
				"correlation_id", job.CorrelationID,
				"action_definition_id", job.ActionDefinitionID,
				"action_type", job.ActionType,
				"panic", r,
			)
			result = domain.FailedResult(job, domain.CodePermanent, fmt.Sprintf("panic: %v", r))
			err = nil
		}
	}()

	kind, ok := e.registry.Lookup(job.ActionType)
	if !ok {
		return domain.FailedResult(job, domain.CodeConfigError, fmt.Sprintf("unknown action type %q", job.ActionType)), nil
	}

	effect, runErr := kind.Run(ctx, job)
	if runErr != nil {
		if domain.IsTransient(runErr) {
			return domain.ActionResult{}, runErr
		}
		e.logger.Warn("action failed",
			"correlation_id", job.CorrelationID,
			"action_type", job.ActionType,
			"error", runErr,
		)
		return domain.FailedResult(job, domain.ErrorCode(runErr), runErr.Error()), nil
	}

	return domain.SucceededResult(job, effect), nil
}
