package identity

import (
	"net/http"

	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the identity module.
type Handler struct {
	service *Service
}

// NewHandler creates a new identity handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterProtectedRoutes registers routes that require authentication.
func (h *Handler) RegisterProtectedRoutes(r chi.Router) {
	r.Get("/me", h.Me)
}

// Me handles GET /me.
func (h *Handler) Me(w http.ResponseWriter, r *http.Request) {
	userID := httputil.GetUserID(r.Context())

	user, err := h.service.GetUserWithRole(r.Context(), userID)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, user)
}
