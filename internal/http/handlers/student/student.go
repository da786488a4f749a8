// Package student contains all HTTP handlers related to the Student resource.
//
// HANDLER PATTERN USED HERE — THE CLOSURE / FACTORY PATTERN:
// ────────────────────────────────────────────────────────────
// Go's router expects handler functions with the signature:
//
//	func(http.ResponseWriter, *http.Request)
//
// That signature has no room for extra parameters like the directory
// service. A factory function accepts the dependency and returns a
// function with the exact signature the router needs; the inner function
// "closes over" the dependency.
//
// Every handler goes through the directory service, never the record
// store: the service is the only place that validates, persists photos
// and notifies subscribers.
package student

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/aanand-mishra/student-directory/internal/directory"
	"github.com/aanand-mishra/student-directory/internal/types"
	"github.com/aanand-mishra/student-directory/internal/utils/response"
)

// RegisterRoutes wires every student route onto router.
//
// Route table:
//
//	POST   /api/students        → create a student (JSON draft with image_path)
//	GET    /api/students        → current list; ?q= filters by name
//	GET    /api/students/{id}   → one student
//	PUT    /api/students/{id}   → replace a student's fields
//	DELETE /api/students/{id}   → delete a student
//	GET    /api/events          → server-sent "changed" events
//
// Closing shutdown ends every open event stream.
func RegisterRoutes(router *http.ServeMux, dir *directory.Service, shutdown <-chan struct{}) {
	router.HandleFunc("POST /api/students", New(dir))
	router.HandleFunc("GET /api/students", GetList(dir))
	router.HandleFunc("GET /api/students/{id}", GetByID(dir))
	router.HandleFunc("PUT /api/students/{id}", Update(dir))
	router.HandleFunc("DELETE /api/students/{id}", Delete(dir))
	router.HandleFunc("GET /api/events", Events(dir, shutdown))
}

// ─────────────────────────────────────────────────────────────────────────────
// New handles POST /api/students
//
// Request body (JSON):
//
//	{ "name": "Asha Rao", "place": "Pune", "contact": "9876543210",
//	  "image_path": "/sdcard/DCIM/IMG_0042.jpg" }
//
// Success response (201 Created): the stored student, whose image_path is
// the persisted copy of the photo.
// ─────────────────────────────────────────────────────────────────────────────
func New(dir *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		slog.Info("creating a student")

		draft, ok := decodeDraft(w, r)
		if !ok {
			return
		}

		rec, err := dir.Create(r.Context(), draft)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		response.WriteJSON(w, http.StatusCreated, rec)
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// GetList handles GET /api/students[?q=name]
//
// Reloads the directory (filtered by q when given) and returns the
// service state:
//
//	{ "students": [...], "loading": false, "query": "asha", "no_results": false }
//
// If another change is in flight the cached state is returned as is,
// provided it was loaded for the same query; otherwise 409 Conflict.
// ─────────────────────────────────────────────────────────────────────────────
func GetList(dir *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query().Get("q")
		slog.Info("listing students", slog.String("query", query))

		err := dir.Search(r.Context(), query)
		if err != nil && !errors.Is(err, directory.ErrBusy) {
			response.WriteError(w, err)
			return
		}

		st := dir.State()
		if err != nil && st.Query != query {
			response.WriteError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, st)
	}
}

// Detail is one student plus whether its photo file is gone from the
// asset store.
type Detail struct {
	types.Student
	PhotoMissing bool `json:"photo_missing,omitempty"`
}

// GetByID handles GET /api/students/{id}
//
// The body is the student, with "photo_missing": true added when the
// referenced photo no longer exists.
func GetByID(dir *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}

		rec, err := dir.Get(r.Context(), id)
		if err != nil {
			response.WriteError(w, err)
			return
		}

		present, err := dir.HasPhoto(r.Context(), rec)
		if err != nil {
			// The record itself is fine; report it without the flag.
			slog.Warn("photo check failed", slog.Int64("id", id), slog.String("error", err.Error()))
			present = true
		}
		response.WriteJSON(w, http.StatusOK, Detail{Student: rec, PhotoMissing: !present})
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Update handles PUT /api/students/{id}
// Replaces ALL fields of an existing student. Omit image_path (or send the
// current one) to keep the photo.
//
// Success response (200 OK) — the updated student.
//
// When no student has that id nothing is changed and the response says
// so, still with 200 OK:
//
//	{ "rows_affected": 0, "message": "no student with id 7; nothing was changed" }
//
// ─────────────────────────────────────────────────────────────────────────────
func Update(dir *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("updating a student", slog.Int64("id", id))

		draft, ok := decodeDraft(w, r)
		if !ok {
			return
		}

		n, err := dir.Update(r.Context(), id, draft)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		if n == 0 {
			response.WriteJSON(w, http.StatusOK, NoChange{
				RowsAffected: 0,
				Message:      fmt.Sprintf("no student with id %d; nothing was changed", id),
			})
			return
		}

		rec, err := dir.Get(r.Context(), id)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		response.WriteJSON(w, http.StatusOK, rec)
	}
}

// NoChange is the body of an update that matched no student.
type NoChange struct {
	RowsAffected int64  `json:"rows_affected"`
	Message      string `json:"message"`
}

// Delete handles DELETE /api/students/{id}
//
//	200 OK        { "status": "deleted" }
//	404 Not Found when no student has that id
func Delete(dir *directory.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r)
		if !ok {
			return
		}
		slog.Info("deleting a student", slog.Int64("id", id))

		n, err := dir.Delete(r.Context(), id)
		if err != nil {
			response.WriteError(w, err)
			return
		}
		if n == 0 {
			response.WriteJSON(w, http.StatusNotFound, response.Response{
				Status: response.StatusError,
				Kind:   "not_found",
				Error:  fmt.Sprintf("no student found with id %d", id),
			})
			return
		}

		response.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
	}
}

// pathID parses the {id} path segment, answering 400 when it is not an
// integer.
func pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("invalid id: must be an integer")))
		return 0, false
	}
	return id, true
}

// decodeDraft reads the JSON body into a draft, answering 400 for an
// empty or malformed body. Field rules are the directory's business.
func decodeDraft(w http.ResponseWriter, r *http.Request) (types.Draft, bool) {
	var draft types.Draft
	err := json.NewDecoder(r.Body).Decode(&draft)
	if errors.Is(err, io.EOF) {
		response.WriteJSON(w, http.StatusBadRequest,
			response.GeneralError(errors.New("request body is empty")))
		return types.Draft{}, false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return types.Draft{}, false
	}
	return draft, true
}
