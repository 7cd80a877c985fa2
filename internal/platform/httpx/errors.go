package httpx

import (
	"errors"
	"net/http"

	"github.com/chorale-hq/chorale/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
// Forbidden denials keep the permission name in the detail field so clients
// render a uniform error regardless of which operation was denied.
func RespondError(w http.ResponseWriter, err error) {
	var forbidden *shared.ForbiddenError
	var badRequest *shared.BadRequestError
	switch {
	case errors.As(err, &forbidden):
		Problem(w, http.StatusForbidden, "Forbidden", forbidden.Permission)
	case errors.As(err, &badRequest):
		Problem(w, http.StatusBadRequest, "Bad Request", badRequest.Message)
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
