// Package httputil provides HTTP response helpers and middleware.
package httputil

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/bissquit/campus-reservations/internal/domain"
	"github.com/go-playground/validator/v10"
)

// Codes for errors raised by the HTTP layer itself.
const (
	CodeBadRequest  = "bad_request"
	CodeRateLimited = "rate_limited"
)

// JSON writes a raw JSON response without envelope.
// Use Success for {"data": ...} wrapped responses.
func JSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("failed to encode response", "error", err)
		}
	}
}

// Text writes a plain text response.
func Text(w http.ResponseWriter, statusCode int, text string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(statusCode)
	if _, err := w.Write([]byte(text)); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// Success writes a JSON response with {"data": ...} envelope.
func Success(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"data": data}); err != nil {
		slog.Error("failed to encode response", "error", err)
	}
}

// Error writes a JSON response with {"error": {"code": ..., "message": ...}} envelope.
// The code is derived from the HTTP status.
func Error(w http.ResponseWriter, status int, message string) {
	ErrorWithCode(w, status, codeForStatus(status), message)
}

// ErrorWithCode writes an error envelope with an explicit code.
func ErrorWithCode(w http.ResponseWriter, status int, code, message string) {
	writeError(w, status, map[string]interface{}{
		"code":    code,
		"message": message,
	})
}

// FieldError writes a validation error for a single field.
func FieldError(w http.ResponseWriter, field, message string) {
	writeError(w, http.StatusBadRequest, map[string]interface{}{
		"code":    domain.CodeValidation,
		"message": "validation error",
		"details": []map[string]string{{"field": field, "message": message}},
	})
}

// ValidationError writes a validation error response.
// If err is validator.ValidationErrors, returns structured field details.
// Otherwise, returns err.Error() as details string.
func ValidationError(w http.ResponseWriter, err error) {
	var details interface{}
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		fieldErrors := make([]map[string]string, 0, len(validationErrors))
		for _, e := range validationErrors {
			fieldErrors = append(fieldErrors, map[string]string{
				"field":   e.Field(),
				"message": e.Tag(),
			})
		}
		details = fieldErrors
	} else {
		details = err.Error()
	}

	writeError(w, http.StatusBadRequest, map[string]interface{}{
		"code":    domain.CodeValidation,
		"message": "validation error",
		"details": details,
	})
}

func writeError(w http.ResponseWriter, status int, body map[string]interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(map[string]interface{}{"error": body}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

func codeForStatus(status int) string {
	switch status {
	case http.StatusUnauthorized:
		return domain.CodeNotAuthenticated
	case http.StatusForbidden:
		return domain.CodePermissionDenied
	case http.StatusNotFound:
		return domain.CodeNotFound
	case http.StatusTooManyRequests:
		return CodeRateLimited
	case http.StatusInternalServerError, http.StatusServiceUnavailable:
		return domain.CodeInternal
	}
	return CodeBadRequest
}
