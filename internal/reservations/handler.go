package reservations

import (
	"encoding/json"
	"net/http"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/httputil"
	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
)

// Handler handles HTTP requests for the reservations module.
type Handler struct {
	service   *Service
	limiter   *httputil.UserRateLimiter
	validator *validator.Validate
}

// NewHandler creates a new reservations handler. A nil limiter disables
// submission rate limiting.
func NewHandler(service *Service, limiter *httputil.UserRateLimiter) *Handler {
	return &Handler{
		service:   service,
		limiter:   limiter,
		validator: validator.New(),
	}
}

// RegisterRoutes registers reservation routes (requires auth).
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/me/reservations", h.ListMine)
	r.Get("/reservations", h.ListAll)
	r.With(h.rateLimit).Post("/reservations", h.Submit)
	r.Get("/reservations/{id}", h.Get)
	r.Post("/reservations/{id}/transitions", h.Transition)
}

func (h *Handler) rateLimit(next http.Handler) http.Handler {
	if h.limiter == nil {
		return next
	}
	return h.limiter.Middleware(next)
}

// SubmitRequest represents the request body for submitting a reservation.
type SubmitRequest struct {
	Equipment       string  `json:"equipment" validate:"required,max=255"`
	ReservationDate string  `json:"reservation_date" validate:"required"`
	TimeSlot        string  `json:"time_slot" validate:"required"`
	Notes           *string `json:"notes" validate:"omitempty,max=500"`
}

// TransitionRequest represents the request body for a status transition.
type TransitionRequest struct {
	Status string  `json:"status" validate:"required,oneof=pending approved rejected completed"`
	Notes  *string `json:"notes" validate:"omitempty,max=500"`
}

// Submit handles POST /reservations.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	var req SubmitRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	reservation, err := h.service.Submit(r.Context(), httputil.GetUserID(r.Context()), SubmitInput{
		EquipmentRef: req.Equipment,
		Date:         req.ReservationDate,
		TimeSlot:     req.TimeSlot,
		Notes:        req.Notes,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusCreated, reservation)
}

// ListMine handles GET /me/reservations.
func (h *Handler) ListMine(w http.ResponseWriter, r *http.Request) {
	items, err := h.service.ListForStudent(r.Context(), httputil.GetUserID(r.Context()))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// ListAll handles GET /reservations.
func (h *Handler) ListAll(w http.ResponseWriter, r *http.Request) {
	var status *domain.ReservationStatus
	if s := r.URL.Query().Get("status"); s != "" {
		st := domain.ReservationStatus(s)
		status = &st
	}

	items, err := h.service.ListAll(r.Context(), httputil.GetUserID(r.Context()), status)
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, items)
}

// Get handles GET /reservations/{id}.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	reservation, err := h.service.Get(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, reservation)
}

// Transition handles POST /reservations/{id}/transitions.
func (h *Handler) Transition(w http.ResponseWriter, r *http.Request) {
	var req TransitionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		httputil.Error(w, http.StatusBadRequest, "invalid json")
		return
	}

	if err := h.validator.Struct(req); err != nil {
		httputil.ValidationError(w, err)
		return
	}

	reservation, err := h.service.Transition(r.Context(), httputil.GetUserID(r.Context()), chi.URLParam(r, "id"), TransitionInput{
		Status: domain.ReservationStatus(req.Status),
		Notes:  req.Notes,
	})
	if err != nil {
		httputil.HandleError(r.Context(), w, err, httputil.DomainErrorMappings)
		return
	}

	httputil.Success(w, http.StatusOK, reservation)
}
