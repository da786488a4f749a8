// Package response provides helpers for writing consistent JSON HTTP responses.
//
// Every handler in this application sends JSON back to the client.
// Rather than repeating the same three lines (set header, set status,
// encode JSON) in every handler, we centralise them here — together with
// the one mapping from directory faults to HTTP status codes.
package response

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/storage"
)

// ─────────────────────────────────────────────────────────────────────────────
// Response is the standard envelope returned for error cases.
//
// Success responses may return any JSON shape (a student, a list, an id…).
// Error responses always look like:
//
//	{ "status": "error", "kind": "validation", "error": "invalid student details: name is required" }
//
// ─────────────────────────────────────────────────────────────────────────────
type Response struct {
	Status string `json:"status"`         // "ok" or "error"
	Kind   string `json:"kind,omitempty"` // fault kind, when known
	Error  string `json:"error"`          // human-readable error detail
}

// Status string constants — use these instead of raw string literals so
// a typo is caught by the compiler rather than silently sending "eroor".
const (
	StatusOK    = "ok"
	StatusError = "error"
)

// WriteJSON writes a JSON-encoded response with the given HTTP status code.
//
// IMPORTANT ORDER: Header() → WriteHeader() → body writes.
// Once WriteHeader is called (or the first Write), headers are locked.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	return json.NewEncoder(w).Encode(data)
}

// GeneralError wraps any Go error into our standard Response shape.
// Use this for errors that are not directory faults (bad JSON, bad id…).
func GeneralError(err error) Response {
	return Response{
		Status: StatusError,
		Error:  err.Error(),
	}
}

// WriteError picks the status code for err and writes it.
//
//	validation, missing photo → 400 Bad Request
//	photo copy failed         → 422 Unprocessable Entity
//	another change running    → 409 Conflict
//	unknown id                → 404 Not Found
//	record store failure      → 500 Internal Server Error
//
// Directory faults are reported with their user message only; the
// underlying cause stays in the server log.
func WriteError(w http.ResponseWriter, err error) error {
	var fault *directory.Fault
	if errors.As(err, &fault) {
		return WriteJSON(w, faultStatus(fault.Kind), Response{
			Status: StatusError,
			Kind:   fault.Kind.String(),
			Error:  fault.UserMessage(),
		})
	}
	if errors.Is(err, storage.ErrNotFound) {
		return WriteJSON(w, http.StatusNotFound, Response{
			Status: StatusError,
			Kind:   "not_found",
			Error:  err.Error(),
		})
	}
	return WriteJSON(w, http.StatusInternalServerError, GeneralError(err))
}

func faultStatus(k directory.Kind) int {
	switch k {
	case directory.KindValidation, directory.KindMissingAsset:
		return http.StatusBadRequest
	case directory.KindAsset:
		return http.StatusUnprocessableEntity
	case directory.KindBusy:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
