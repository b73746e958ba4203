package common

import (
	"errors"
	"net/http"

	"github.com/hylla/taskmon/internal/app"
	"github.com/hylla/taskmon/internal/domain"
)

// ErrInvalidRequest reports malformed transport input.
var ErrInvalidRequest = errors.New("invalid request")

// ErrUnauthenticated reports a missing or rejected bearer token.
var ErrUnauthenticated = errors.New("authentication required")

// Failure is the transport-visible classification of one error.
type Failure struct {
	Status  int
	Code    string
	Message string
	// Internal marks failures whose cause must stay out of responses.
	Internal bool
}

// Classify maps service errors to a status code and a stable error code. Storage and
// unknown failures collapse to "operation failed".
func Classify(err error) Failure {
	switch {
	case err == nil:
		return Failure{Status: http.StatusInternalServerError, Code: "internal_error", Message: "unknown error", Internal: true}
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, domain.ErrValidation):
		return Failure{Status: http.StatusBadRequest, Code: "invalid_request", Message: err.Error()}
	case errors.Is(err, ErrUnauthenticated), errors.Is(err, app.ErrActorRequired):
		return Failure{Status: http.StatusUnauthorized, Code: "unauthenticated", Message: "authentication required"}
	case errors.Is(err, app.ErrInvalidCredentials):
		return Failure{Status: http.StatusUnauthorized, Code: "invalid_credentials", Message: "invalid credentials"}
	case errors.Is(err, app.ErrForbidden):
		return Failure{Status: http.StatusForbidden, Code: "forbidden", Message: "forbidden"}
	case errors.Is(err, app.ErrNotFound):
		return Failure{Status: http.StatusNotFound, Code: "not_found", Message: err.Error()}
	case errors.Is(err, domain.ErrDependencyUnmet):
		return Failure{Status: http.StatusConflict, Code: "dependency_unmet", Message: err.Error()}
	case errors.Is(err, domain.ErrCycle):
		return Failure{Status: http.StatusConflict, Code: "dependency_cycle", Message: err.Error()}
	case errors.Is(err, app.ErrConflict), errors.Is(err, app.ErrAlreadyProvisioned):
		return Failure{Status: http.StatusConflict, Code: "conflict", Message: err.Error()}
	default:
		return Failure{Status: http.StatusInternalServerError, Code: "internal_error", Message: "operation failed", Internal: true}
	}
}
