package handler

import (
	"net/http"

	"github.com/formwork/platform/internal/auth"
	"github.com/formwork/platform/internal/domain"
	"github.com/formwork/platform/internal/repository"
	"github.com/formwork/platform/internal/service"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ResourceHandler serves resource submission and management endpoints.
type ResourceHandler struct {
	svc        *service.ResourceService
	resources  repository.ResourceRepository
	namespaces repository.NamespaceRepository
	pool       *pgxpool.Pool
}

// NewResourceHandler creates a ResourceHandler.
func NewResourceHandler(svc *service.ResourceService, resources repository.ResourceRepository, namespaces repository.NamespaceRepository, pool *pgxpool.Pool) *ResourceHandler {
	return &ResourceHandler{svc: svc, resources: resources, namespaces: namespaces, pool: pool}
}

type resourceRequest struct {
	Properties map[string]any `json:"properties"`
}

type mutationResponse struct {
	Resource     *domain.Resource `json:"resource,omitempty"`
	RedirectTo   string           `json:"redirect_to,omitempty"`
	ServeFile    string           `json:"serve_file,omitempty"`
	FlashMessage string           `json:"flash_message,omitempty"`
}

func mutationResponseFrom(result *service.MutationResult) mutationResponse {
	return mutationResponse{
		Resource:     result.Resource,
		RedirectTo:   result.Hint.RedirectTo,
		ServeFile:    result.Hint.ServeFile,
		FlashMessage: result.Hint.FlashMessage,
	}
}

// Create handles resource submission. End-user submissions arrive without
// auth; operator-side submissions come through the authenticated admin
// routes and carry the admin flag into the lifecycle event.
func (h *ResourceHandler) Create(w http.ResponseWriter, r *http.Request) {
	slug := chi.URLParam(r, "slug")

	var req resourceRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	result, err := h.svc.Create(r.Context(), slug, req.Properties, auth.IsAdminCaller(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, mutationResponseFrom(result))
}

// CreateInNamespace handles operator-side submission addressed by namespace
// ID instead of slug.
func (h *ResourceHandler) CreateInNamespace(w http.ResponseWriter, r *http.Request) {
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

	var req resourceRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	result, err := h.svc.Create(r.Context(), ns.Slug, req.Properties, auth.IsAdminCaller(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusCreated, mutationResponseFrom(result))
}

// Get returns one resource.
func (h *ResourceHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid resource id"))
		return
	}
	res, err := h.resources.FindByID(r.Context(), h.pool, id)
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, res)
}

// Update replaces a resource's properties.
func (h *ResourceHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid resource id"))
		return
	}

	var req resourceRequest
	if err := DecodeJSON(r, &req); err != nil {
		RespondError(w, domain.ErrValidation("invalid JSON body"))
		return
	}

	result, err := h.svc.Update(r.Context(), id, req.Properties, auth.IsAdminCaller(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, mutationResponseFrom(result))
}

// Delete removes a resource.
func (h *ResourceHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		RespondError(w, domain.ErrValidation("invalid resource id"))
		return
	}

	result, err := h.svc.Destroy(r.Context(), id, auth.IsAdminCaller(r.Context()))
	if err != nil {
		RespondError(w, err)
		return
	}
	RespondJSON(w, http.StatusOK, mutationResponseFrom(result))
}
