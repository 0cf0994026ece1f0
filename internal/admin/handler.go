package admin

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the admin module.
type Handler struct {
	service   *Service
	validator *validator.Validate
}

// NewHandler creates a new admin handler.
func NewHandler(service *Service) *Handler {
	return &Handler{
		service:   service,
		validator: validator.New(),
	}
}

// RegisterRoutes registers admin routes (requires auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/admin/users", h.ListUsers)
	r.Put("/admin/users/{id}/role", h.SetRole)
}

// SetRoleRequest represents the request body for assigning a role.
type SetRoleRequest struct {
	Role string `json:"role" validate:"required,oneof=student staff admin"`
}

// ListUsers handles GET /admin/users.
func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	users, err := h.service.ListUsers(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, users)
}

// SetRole handles PUT /admin/users/{id}/role.
func (h *Handler) SetRole(w http.ResponseWriter, r *http.Request) {
	var req SetRoleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	user, err := h.service.SetRole(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), domain.Role(req.Role))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}
