package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Outcome is the result of the resource mutation that produced an event.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// LifecycleEvent is the ephemeral value object produced once per resource
// mutation attempt and consumed exactly once by the resolver. It is never
// persisted; the correlation ID ties it to its eventual action results.
// AdminCaller is an explicit flag set by the caller, never inferred from
// ambient request state.
type LifecycleEvent struct {
	CorrelationID uuid.UUID      `json:"correlation_id"`
	NamespaceID   uuid.UUID      `json:"namespace_id"`
	ResourceID    uuid.UUID      `json:"resource_id"`
	Trigger       Trigger        `json:"trigger"`
	Outcome       Outcome        `json:"outcome"`
	AdminCaller   bool           `json:"admin_caller"`
	Properties    map[string]any `json:"properties,omitempty"`
	OccurredAt    time.Time      `json:"occurred_at"`
}

// NewLifecycleEvent builds an event with a fresh correlation ID.
func NewLifecycleEvent(namespaceID, resourceID uuid.UUID, trigger Trigger, outcome Outcome, adminCaller bool, properties map[string]any) LifecycleEvent {
	return LifecycleEvent{
		CorrelationID: uuid.New(),
		NamespaceID:   namespaceID,
		ResourceID:    resourceID,
		Trigger:       trigger,
		Outcome:       outcome,
		AdminCaller:   adminCaller,
		Properties:    properties,
		OccurredAt:    time.Now().UTC(),
	}
}

// ActionJob is the unit enqueued on the durable queue. Config is a snapshot
// taken at enqueue time, so a later edit to the action definition never
// changes an in-flight job's behavior.
type ActionJob struct {
	SeqID              int64           `json:"-"`
	CorrelationID      uuid.UUID       `json:"correlation_id"`
	ActionDefinitionID uuid.UUID       `json:"action_definition_id"`
	ActionType         ActionType      `json:"action_type"`
	Config             json.RawMessage `json:"config"`
	Event              LifecycleEvent  `json:"event"`
	Attempt            int             `json:"attempt"`
}

// NewActionJob snapshots a resolved definition into a queueable job.
func NewActionJob(def ActionDefinition, event LifecycleEvent) ActionJob {
	cfg := make(json.RawMessage, len(def.Config))
	copy(cfg, def.Config)
	return ActionJob{
		CorrelationID:      event.CorrelationID,
		ActionDefinitionID: def.ID,
		ActionType:         def.Type,
		Config:             cfg,
		Event:              event,
	}
}

// ResultStatus is the terminal status of one executed action.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
	ResultSkipped   ResultStatus = "skipped"
)

// ActionResult records the terminal outcome of one action for one event.
// Results are immutable once written; the store upserts first-write-wins on
// (correlation_id, action_definition_id) to tolerate at-least-once redelivery.
type ActionResult struct {
	CorrelationID      uuid.UUID       `json:"correlation_id"`
	ActionDefinitionID uuid.UUID       `json:"action_definition_id"`
	ActionType         ActionType      `json:"action_type"`
	Status             ResultStatus    `json:"status"`
	Effect             json.RawMessage `json:"effect,omitempty"`
	ErrorCode          string          `json:"error_code,omitempty"`
	ErrorDetail        string          `json:"error_detail,omitempty"`
	RecordedAt         time.Time       `json:"recorded_at"`
}

// SucceededResult builds a success result for a job.
func SucceededResult(job ActionJob, effect json.RawMessage) ActionResult {
	return ActionResult{
		CorrelationID:      job.CorrelationID,
		ActionDefinitionID: job.ActionDefinitionID,
		ActionType:         job.ActionType,
		Status:             ResultSucceeded,
		Effect:             effect,
		RecordedAt:         time.Now().UTC(),
	}
}

// FailedResult builds a failure result for a job.
func FailedResult(job ActionJob, code, detail string) ActionResult {
	return ActionResult{
		CorrelationID:      job.CorrelationID,
		ActionDefinitionID: job.ActionDefinitionID,
		ActionType:         job.ActionType,
		Status:             ResultFailed,
		ErrorCode:          code,
		ErrorDetail:        detail,
		RecordedAt:         time.Now().UTC(),
	}
}

// RedirectEffect is the structured effect of a succeeded redirect action.
type RedirectEffect struct {
	RedirectURL string `json:"redirect_url"`
}

// ServeFileEffect is the structured effect of a succeeded serve_file action.
type ServeFileEffect struct {
	FilePath string `json:"file_path"`
}

// ResponseHint is what the dispatch engine hands back to the originating
// request: either a redirect target resolved by an inline action, or the
// default path with an optional form-level flash message.
type ResponseHint struct {
	RedirectTo   string `json:"redirect_to,omitempty"`
	ServeFile    string `json:"serve_file,omitempty"`
	FlashMessage string `json:"flash_message,omitempty"`
}
