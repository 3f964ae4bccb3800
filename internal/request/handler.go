package request

import (
	"context"
	"net/http"

	"github.com/frahmantamala/procurement-workflow/internal"
	"github.com/frahmantamala/procurement-workflow/internal/identity"
	"github.com/frahmantamala/procurement-workflow/internal/transport"
	"github.com/go-chi/chi"
)

type ServiceAPI interface {
	Create(ctx context.Context, actor *identity.User, dto CreateRequestDTO) (*Request, error)
	Get(ctx context.Context, actor *identity.User, id string) (*Request, error)
	List(ctx context.Context, actor *identity.User) ([]*Request, error)
	Update(ctx context.Context, actor *identity.User, id string, dto UpdateRequestDTO) (*Request, error)
	Submit(ctx context.Context, actor *identity.User, id string) (*Request, error)
	Delete(ctx context.Context, actor *identity.User, id string) error
	ProcessItem(ctx context.Context, actor *identity.User, id, itemID string, dto ProcessItemDTO) (*Request, error)
	SubmitForApproval(ctx context.Context, actor *identity.User, id string) (*Request, error)
	ApproveItem(ctx context.Context, actor *identity.User, id, itemID string, dto ApproveItemDTO) (*Request, error)
	CompleteReview(ctx context.Context, actor *identity.User, id string) (*Request, error)
	SeedSampleData(ctx context.Context, domain string) (*SeedResult, error)
}

type Handler struct {
	*transport.BaseHandler
	Service    ServiceAPI
	seedDomain string
}

func NewHandler(baseHandler *transport.BaseHandler, service ServiceAPI, seedDomain string) *Handler {
	return &Handler{
		BaseHandler: baseHandler,
		Service:     service,
		seedDomain:  seedDomain,
	}
}

func (h *Handler) actor(w http.ResponseWriter, r *http.Request) (*identity.User, bool) {
	user, ok := internal.UserFromContext(r.Context())
	if !ok {
		h.HandleServiceError(w, internal.ErrAuthenticationRequired)
		return nil, false
	}
	return user, true
}

// List handles GET /requests
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	requests, err := h.Service.List(r.Context(), user)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, ListResponse{Requests: requests, Total: len(requests)})
}

// Create handles POST /requests
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto CreateRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Create(r.Context(), user, dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, req)
}

// Get handles GET /requests/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Get(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// Update handles PUT /requests/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto UpdateRequestDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	req, err := h.Service.Update(r.Context(), user, chi.URLParam(r, "id"), dto)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// Delete handles DELETE /requests/{id}
func (h *Handler) Delete(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	if err := h.Service.Delete(r.Context(), user, chi.URLParam(r, "id")); err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, MessageResponse{Message: "Request deleted successfully"})
}

// Submit handles POST /requests/{id}/submit
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.Submit(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransitionResponse{Message: "Request submitted successfully", Request: req})
}

// ProcessItem handles PUT /requests/{id}/process
func (h *Handler) ProcessItem(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto ProcessingUpdateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.ItemID == "" {
		h.HandleServiceError(w, internal.NewValidationFieldError("itemId", "itemId is required", internal.ErrCodeMissingParameter))
		return
	}

	req, err := h.Service.ProcessItem(r.Context(), user, chi.URLParam(r, "id"), dto.ItemID, dto.Data)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// SubmitForApproval handles POST /requests/{id}/process
func (h *Handler) SubmitForApproval(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.SubmitForApproval(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransitionResponse{Message: "Request submitted for approval successfully", Request: req})
}

// ApproveItem handles PUT /requests/{id}/approve
func (h *Handler) ApproveItem(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	var dto ApprovalUpdateDTO
	if err := h.DecodeJSON(r, &dto); err != nil {
		h.HandleServiceError(w, err)
		return
	}
	if dto.ItemID == "" {
		h.HandleServiceError(w, internal.NewValidationFieldError("itemId", "itemId is required", internal.ErrCodeMissingParameter))
		return
	}

	req, err := h.Service.ApproveItem(r.Context(), user, chi.URLParam(r, "id"), dto.ItemID, dto.Data)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, req)
}

// CompleteReview handles POST /requests/{id}/approve
func (h *Handler) CompleteReview(w http.ResponseWriter, r *http.Request) {
	user, ok := h.actor(w, r)
	if !ok {
		return
	}

	req, err := h.Service.CompleteReview(r.Context(), user, chi.URLParam(r, "id"))
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, TransitionResponse{Message: "Request approval completed successfully", Request: req})
}

// SeedSampleData handles POST /dev/sample-data; only mounted outside production.
func (h *Handler) SeedSampleData(w http.ResponseWriter, r *http.Request) {
	result, err := h.Service.SeedSampleData(r.Context(), h.seedDomain)
	if err != nil {
		h.HandleServiceError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"message": "Sample requests created successfully",
		"created": result.Created,
		"skipped": result.Skipped,
	})
}
