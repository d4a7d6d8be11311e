package httpx

import (
	"errors"
	"net/http"

	"github.com/openshelf/openshelf/internal/shared"
)

// RespondError maps domain errors to HTTP responses using RFC7807.
//
// Authorization failures surface as a generic denial. The specific reason is
// kept server-side so the response never enumerates which roles exist.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, shared.ErrDenied):
		Problem(w, http.StatusForbidden, "Forbidden", "you do not have permission to execute this action")
	case errors.Is(err, shared.ErrProcessing):
		Problem(w, http.StatusUnprocessableEntity, "Processing Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
