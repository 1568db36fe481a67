package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/usageview/usageview/internal/db"
)

// timeoutBody is the canned payload http.TimeoutHandler writes
// verbatim when a handler overruns the write timeout.
var timeoutBody = func() string {
	b, _ := json.Marshal(map[string]string{
		"error": "request timed out",
	})
	return string(b)
}()

// writeJSON writes v as JSON with the given HTTP status code.
// Logs a warning if JSON encoding fails.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("writeJSON: encoding response: %v", err)
	}
}

// writeError writes a JSON error response with the given status
// and message.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// handleContextError detects context.Canceled and
// context.DeadlineExceeded errors, returning true so the
// caller stops processing. It does NOT write an HTTP
// response — the withTimeout middleware handles that via
// http.TimeoutHandler (503). Writing here would race with
// the middleware's buffered response.
func handleContextError(_ http.ResponseWriter, err error) bool {
	return errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}

// writeStoreError maps store sentinel errors to HTTP statuses.
// Returns true when it handled the error.
func writeStoreError(w http.ResponseWriter, err error) bool {
	switch {
	case err == nil:
		return false
	case handleContextError(w, err):
		return true
	case errors.Is(err, db.ErrInvalidDuration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrDuplicateIdentifier):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, db.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, db.ErrUnavailable):
		writeError(w, http.StatusServiceUnavailable,
			"storage temporarily unavailable")
	default:
		// ErrCreateRace and anything unclassified is a server
		// fault; log the detail, hide it from the client.
		log.Printf("store error: %v", err)
		writeError(w, http.StatusInternalServerError,
			"internal server error")
	}
	return true
}
