package response

import (
	"errors"
	"net/http"

	"github.com/cmlabs-hris/payroll-engine/internal/domain/payroll"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/jwt"
	"github.com/cmlabs-hris/payroll-engine/internal/pkg/validator"
)

// retryAfterSeconds is advertised on 503 responses caused by store failures.
const retryAfterSeconds = 5

// HandleError maps domain errors to HTTP responses
func HandleError(w http.ResponseWriter, err error) {
	// Check if it's a validation error
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		ValidationError(w, validationErrs.ToMap())
		return
	}

	switch {
	// Auth
	case errors.Is(err, jwt.ErrInvalidClaims):
		Unauthorized(w, "Invalid token")
	case errors.Is(err, payroll.ErrUnauthorized):
		Forbidden(w, err.Error())

	// Payroll domain errors
	case errors.Is(err, payroll.ErrRunNotFound):
		NotFound(w, "Payroll run not found")
	case errors.Is(err, payroll.ErrItemNotFound):
		NotFound(w, "Payroll item not found")
	case errors.Is(err, payroll.ErrDuplicateRun):
		Conflict(w, payroll.ErrDuplicateRun.Error())
	case errors.Is(err, payroll.ErrRunLocked):
		Conflict(w, payroll.ErrRunLocked.Error())
	case errors.Is(err, payroll.ErrInvalidTransition):
		Conflict(w, err.Error())
	case errors.Is(err, payroll.ErrPersistence):
		ServiceUnavailable(w, "PERSISTENCE_UNAVAILABLE", "Payroll storage is temporarily unavailable, please retry", retryAfterSeconds)

	// Default
	default:
		InternalServerError(w, "An unexpected error occurred")
	}
}
