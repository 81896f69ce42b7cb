// Package render writes JSON responses, including the action result
// envelope shared by every action endpoint.
package render

import (
	"encoding/json"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/rungomx/server/internal/action"
)

const contentType = "application/json"

// statusByCode maps action codes onto HTTP statuses. Codes not listed are
// server errors.
var statusByCode = map[action.Code]int{
	action.CodeUnauthenticated: http.StatusUnauthorized,
	action.CodeValidation:      http.StatusBadRequest,
	action.CodeRateLimited:     http.StatusTooManyRequests,
	action.CodeNotFound:        http.StatusNotFound,
	action.CodeNotAvailable:    http.StatusConflict,
	action.CodeInvalidDistance: http.StatusUnprocessableEntity,
	action.CodeRetry:           http.StatusConflict,
	action.CodeDisabled:        http.StatusGone,
	action.CodeAlreadyInGroup:  http.StatusConflict,
	action.CodeGroupFull:       http.StatusConflict,
	action.CodeForbidden:       http.StatusForbidden,
	action.CodeInvalidMember:   http.StatusUnprocessableEntity,
	action.CodeServerError:     http.StatusInternalServerError,
}

// Status returns the HTTP status for code.
func Status(code action.Code) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// JSON writes v with the given status.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// OK writes a successful envelope around data.
func OK[T any](w http.ResponseWriter, status int, data T) {
	JSON(w, status, action.Ok(data))
}

// Error writes the failed envelope for err. Server errors are logged at error
// level through the request logger; client errors at debug.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	result := action.From[any](err)
	status := Status(result.Code)

	logger := zerolog.Ctx(r.Context())
	if status >= http.StatusInternalServerError {
		logger.Error().
			Err(err).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Msg("action failed")
	} else {
		logger.Debug().
			Str("code", string(result.Code)).
			Str("path", r.URL.Path).
			Msg("action rejected")
	}

	JSON(w, status, result)
}

// Fail writes a failed envelope for code without logging.
func Fail(w http.ResponseWriter, code action.Code, message string) {
	JSON(w, Status(code), action.From[any](action.Fail(code, message)))
}
