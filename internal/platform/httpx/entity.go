package httpx

import (
	"errors"
	"net/http"

	"github.com/coreframe/coreframe/internal/entity"
)

// RespondEntityError maps an entity.Kind six-way taxonomy error to an
// RFC7807 problem+json response (spec §4.C "error taxonomy"). Field-level
// validation errors are flattened into the problem detail's Errors map.
func RespondEntityError(w http.ResponseWriter, err error) {
	var ve *entity.ValidationErrors
	if errors.As(err, &ve) {
		ProblemWithErrors(w, http.StatusUnprocessableEntity, "Validation Failed", ve.Error(), ve.Fields)
		return
	}

	switch entity.KindOf(err) {
	case entity.KindNotFound, entity.KindPermissionDenied:
		// Rendered identically (spec §6): disclosing which one applies would
		// leak the existence of a record the caller cannot see.
		Problem(w, http.StatusNotFound, "Not Found", "resource not found")
	case entity.KindConflict:
		Problem(w, http.StatusConflict, "Conflict", err.Error())
	case entity.KindPreconditionFailed:
		Problem(w, http.StatusPreconditionFailed, "Precondition Failed", err.Error())
	case entity.KindValidation:
		Problem(w, http.StatusUnprocessableEntity, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// ProblemWithErrors extends ProblemDetail with a per-field error map.
func ProblemWithErrors(w http.ResponseWriter, status int, title, detail string, fields map[string]string) {
	JSON(w, status, ProblemDetail{
		Title:  title,
		Status: status,
		Detail: detail,
		Errors: fields,
	})
}
