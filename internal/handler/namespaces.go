package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/repository"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// NamespaceHandler serves the operator CRUD surface for namespaces and
// their action definitions.
type NamespaceHandler struct {
	namespaces repository.NamespaceRepository
	defs       repository.ActionDefinitionRepository
	resources  repository.ResourceRepository
	pool       *pgxpool.Pool
}

// NewNamespaceHandler creates a NamespaceHandler.
func NewNamespaceHandler(namespaces repository.NamespaceRepository, defs repository.ActionDefinitionRepository, resources repository.ResourceRepository, pool *pgxpool.Pool) *NamespaceHandler {
	return &NamespaceHandler{namespaces: namespaces, defs: defs, resources: resources, pool: pool}
}

type namespaceRequest struct {
	Slug           string `json:"slug"`
	Name           string `json:"name"`
	SuccessMessage string `json:"success_message"`
}

// List returns all namespaces.
func (h *NamespaceHandler) List(w http.ResponseWriter, r *http.Request) {
	out, err := h.namespaces.List(r.Context(), h.pool)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// Create registers a new namespace.
func (h *NamespaceHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req namespaceRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}
	if err := domain.ValidateSlug(req.Slug); err != nil {
		RespondError(w, domain.ErrValidation(err.Error()))
		return
	}
	if req.Name == "" {
		RespondError(w, domain.ErrValidation("name is required"))
		return
	}

	now := time.Now().UTC()
	ns := &domain.Namespace{
		ID:             uuid.New(),
		Slug:           req.Slug,
		Name:           req.Name,
		SuccessMessage: req.SuccessMessage,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := h.namespaces.Create(r.Context(), h.pool, ns); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, ns)
}

// Update modifies a namespace's name and success message.
func (h *NamespaceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid namespace id"))
		return
	}

	ns, err := h.namespaces.FindByID(r.Context(), h.pool, id)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req namespaceRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}
	if req.Name != "" {
		ns.Name = req.Name
	}
	ns.SuccessMessage = req.SuccessMessage

	if err := h.namespaces.Update(r.Context(), h.pool, ns); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, ns)
}

// ListResources returns recent resources under a namespace.
func (h *NamespaceHandler) ListResources(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid namespace id"))
		return
	}
	out, err := h.resources.ListByNamespace(r.Context(), h.pool, id, 100)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

type actionDefinitionRequest struct {
	ResourceID *uuid.UUID      `json:"resource_id,omitempty"`
	Trigger    string          `json:"trigger"`
	ActionType string          `json:"action_type"`
	Ordinal    int             `json:"ordinal"`
	Config     json.RawMessage `json:"config"`
}

// CreateAction configures a new action definition under a namespace.
// Configs are validated up front so operators learn about mistakes here,
// not at dispatch time.
func (h *NamespaceHandler) CreateAction(w http.ResponseWriter, r *http.Request) {
	namespaceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid namespace id"))
		return
	}

	var req actionDefinitionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	trigger := domain.Trigger(req.Trigger)
	if !trigger.Valid() {
		RespondError(w, domain.ErrValidation("unknown trigger: "+req.Trigger))
		return
	}
	actionType := domain.ActionType(req.ActionType)
	if err := domain.ValidateActionConfig(actionType, req.Config); err != nil {
		RespondError(w, domain.ErrConfig(err.Error()))
		return
	}

	now := time.Now().UTC()
	def := &domain.ActionDefinition{
		ID:          uuid.New(),
		NamespaceID: namespaceID,
		ResourceID:  req.ResourceID,
		Trigger:     trigger,
		Type:        actionType,
		Ordinal:     req.Ordinal,
		Config:      req.Config,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := h.defs.Create(r.Context(), h.pool, def); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, def)
}

// ListActions returns the namespace-level chain for a trigger.
func (h *NamespaceHandler) ListActions(w http.ResponseWriter, r *http.Request) {
	namespaceID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid namespace id"))
		return
	}
	trigger := domain.Trigger(r.URL.Query().Get("trigger"))
	if !trigger.Valid() {
		RespondError(w, domain.ErrValidation("unknown trigger"))
		return
	}
	out, err := h.defs.ListForNamespace(r.Context(), h.pool, namespaceID, trigger)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, out)
}

// UpdateAction modifies an action definition's ordinal and config.
// In-flight jobs are unaffected: they run the config snapshot taken when
// they were enqueued.
func (h *NamespaceHandler) UpdateAction(w http.ResponseWriter, r *http.Request) {
	actionID, err := uuid.Parse(chi.URLParam(r, "actionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid action id"))
		return
	}

	def, err := h.defs.FindByID(r.Context(), h.pool, actionID)
	if err != nil {
		RespondError(w, err)
		return
	}

	var req actionDefinitionRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}
	if req.Config != nil {
		if err := domain.ValidateActionConfig(def.Type, req.Config); err != nil {
			RespondError(w, domain.ErrConfig(err.Error()))
			return
		}
		def.Config = req.Config
	}
	def.Ordinal = req.Ordinal

	if err := h.defs.Update(r.Context(), h.pool, def); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, def)
}

// DeleteAction removes an action definition.
func (h *NamespaceHandler) DeleteAction(w http.ResponseWriter, r *http.Request) {
	actionID, err := uuid.Parse(chi.URLParam(r, "actionID"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid action id"))
		return
	}
	if err := h.defs.Delete(r.Context(), h.pool, actionID); err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusNoContent, nil)
}
