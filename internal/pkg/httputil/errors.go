package httputil

import (
	"context"
	"errors"
	"net/http"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/bissquit/campus-reservations/internal/pkg/ctxlog"
)

// ErrorMapping defines how a domain error maps to an HTTP response.
type ErrorMapping struct {
	Error   error
	Status  int
	Message string // if empty, uses err.Error()
}

// DomainErrorMappings maps the shared error taxonomy. Modules append their own
// mappings in front when they need a more specific message.
var DomainErrorMappings = []ErrorMapping{
	{Error: domain.ErrNotAuthenticated, Status: http.StatusUnauthorized, Message: "not authenticated"},
	{Error: domain.ErrPermissionDenied, Status: http.StatusForbidden, Message: "insufficient permissions"},
	{Error: domain.ErrUnknownEquipment, Status: http.StatusUnprocessableEntity, Message: "unknown equipment"},
	{Error: domain.ErrInvalidTransition, Status: http.StatusConflict},
	{Error: domain.ErrConcurrentModification, Status: http.StatusConflict, Message: "reservation was modified concurrently, reload and retry"},
	{Error: domain.ErrNotFound, Status: http.StatusNotFound},
}

// HandleError maps a domain error to an HTTP response using provided mappings.
// Validation errors are always rendered with field details.
// If no mapping matches, logs the error and returns 500 Internal Server Error.
func HandleError(ctx context.Context, w http.ResponseWriter, err error, mappings []ErrorMapping) {
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		FieldError(w, validationErr.Field, validationErr.Message)
		return
	}

	for _, m := range mappings {
		if errors.Is(err, m.Error) {
			msg := m.Message
			if msg == "" {
				msg = err.Error()
			}
			ErrorWithCode(w, m.Status, domain.ErrorCode(err), msg)
			return
		}
	}
	ctxlog.FromContext(ctx).Error("internal error", "error", err)
	Error(w, http.StatusInternalServerError, "internal error")
}
