package domain

import (
	"time"

	"github.com/google/uuid"
)

// Namespace is an operator-defined resource type. It owns the action
// definitions that fire around its resources' lifecycle, plus the
// form-level presentation settings (success message).
type Namespace struct {
	ID             uuid.UUID `json:"id"`
	Slug           string    `json:"slug"`
	Name           string    `json:"name"`
	SuccessMessage string    `json:"success_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Resource is one instance of schema-less data submitted under a namespace.
// Properties are validated upstream; the dispatch engine treats them as an
// opaque payload handed to actions.
type Resource struct {
	ID          uuid.UUID      `json:"id"`
	NamespaceID uuid.UUID      `json:"namespace_id"`
	Properties  map[string]any `json:"properties"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}
