package server

import (
	"net/http"
	"time"
)

// withTimeout bounds a handler with the configured write timeout.
// http.TimeoutHandler writes its canned 503 body without headers
// beyond the status, so the writer is wrapped to keep the timeout
// response on the same JSON contract as every other error this
// API emits.
func (s *Server) withTimeout(h http.HandlerFunc) http.Handler {
	inner := h
	if s.handlerDelay > 0 {
		delay := s.handlerDelay
		inner = func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(delay)
			h(w, r)
		}
	}

	timed := http.TimeoutHandler(inner, s.cfg.WriteTimeout, timeoutBody)

	return http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			timed.ServeHTTP(&jsonStatusWriter{ResponseWriter: w}, r)
		},
	)
}

// jsonStatusWriter stamps the JSON content-type on the 503 that
// http.TimeoutHandler writes. Handlers that respond themselves
// set their own headers and pass through untouched.
type jsonStatusWriter struct {
	http.ResponseWriter
	wroteHeader bool
}

func (w *jsonStatusWriter) WriteHeader(code int) {
	if w.wroteHeader {
		return
	}
	w.wroteHeader = true
	if code == http.StatusServiceUnavailable &&
		w.Header().Get("Content-Type") == "" {
		w.Header().Set("Content-Type", "application/json")
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *jsonStatusWriter) Write(b []byte) (int, error) {
	if !w.wroteHeader {
		w.WriteHeader(http.StatusOK)
	}
	return w.ResponseWriter.Write(b)
}
