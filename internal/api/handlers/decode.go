package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/rungomx/server/internal/action"
	"github.com/rungomx/server/internal/api/render"
)

// decodeJSON reads a single JSON object from the request body into dst.
// Failures are VALIDATION_ERROR action errors.
func decodeJSON(r *http.Request, dst any) error {
	if r.Body == nil {
		return action.Fail(action.CodeValidation, "Request body is required")
	}

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			return action.Fail(action.CodeValidation, "Request body too large")
		case errors.Is(err, io.EOF):
			return action.Fail(action.CodeValidation, "Request body is required")
		default:
			return action.Fail(action.CodeValidation, "Invalid request body")
		}
	}
	if dec.More() {
		return action.Fail(action.CodeValidation, "Request body must contain a single JSON object")
	}
	return nil
}

// done writes an ok envelope without data.
func done(w http.ResponseWriter) {
	render.OK[any](w, http.StatusOK, nil)
}
