package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Trigger is the lifecycle point that activates an action chain.
type Trigger string

const (
	TriggerCreate  Trigger = "on_create"
	TriggerUpdate  Trigger = "on_update"
	TriggerDestroy Trigger = "on_destroy"
	TriggerError   Trigger = "on_error"
)

// Valid reports whether t is a known trigger.
func (t Trigger) Valid() bool {
	switch t {
	case TriggerCreate, TriggerUpdate, TriggerDestroy, TriggerError:
		return true
	}
	return false
}

// ActionType enumerates the configured action kinds.
type ActionType string

const (
	ActionRedirect       ActionType = "redirect"
	ActionServeFile      ActionType = "serve_file"
	ActionSendEmail      ActionType = "send_email"
	ActionSendWebRequest ActionType = "send_web_request"
)

// ActionDefinition is one configured action, scoped either to a namespace
// (ResourceID nil, the default chain) or to an individual resource (an
// override that replaces the namespace chain wholesale for its trigger).
// Ordinal defines execution order within a chain; ties break by CreatedAt.
type ActionDefinition struct {
	ID          uuid.UUID       `json:"id"`
	NamespaceID uuid.UUID       `json:"namespace_id"`
	ResourceID  *uuid.UUID      `json:"resource_id,omitempty"`
	Trigger     Trigger         `json:"trigger"`
	Type        ActionType      `json:"action_type"`
	Ordinal     int             `json:"ordinal"`
	Config      json.RawMessage `json:"config"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// RedirectConfig is the config payload for redirect actions.
type RedirectConfig struct {
	RedirectURL string `json:"redirect_url"`
}

// ServeFileConfig is the config payload for serve_file actions.
type ServeFileConfig struct {
	FilePath string `json:"file_path"`
}

// EmailConfig is the config payload for send_email actions. Subject and
// body support {{property}} interpolation from the event snapshot.
type EmailConfig struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// WebRequestConfig is the config payload for send_web_request actions.
// The event's property snapshot is sent as the JSON body for mutating methods.
type WebRequestConfig struct {
	URL     string            `json:"url"`
	Method  string            `json:"method,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}
