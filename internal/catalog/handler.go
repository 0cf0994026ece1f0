package catalog

import (
	"net/http"

	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
)

// Handler handles HTTP requests for the catalog module.
type Handler struct {
	service *Service
}

// NewHandler creates a new catalog handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterPublicRoutes registers catalog routes readable without authentication.
func (h *Handler) RegisterPublicRoutes(r chi.Router) {
	r.Get("/equipment", h.ListEquipment)
	r.Get("/equipment/{id}", h.GetEquipment)
}

// ListEquipment handles GET /equipment.
func (h *Handler) ListEquipment(w http.ResponseWriter, r *http.Request) {
	var filter EquipmentFilter
	if category := r.URL.Query().Get("category"); category != "" {
		filter.Category = &category
	}

	items, err := h.service.List(r.Context(), filter)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// GetEquipment handles GET /equipment/{id}.
func (h *Handler) GetEquipment(w http.ResponseWriter, r *http.Request) {
	item, err := h.service.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, item)
}
