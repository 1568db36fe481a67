package server

import (
	"net/http"
	"strconv"

	"github.com/usageview/usageview/internal/db"
)

func (s *Server) handleMostUsed(
	w http.ResponseWriter, r *http.Request,
) {
	days := db.DefaultWindowDays
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < db.MinWindowDays || n > db.MaxWindowDays {
			writeError(w, http.StatusBadRequest,
				"days must be 1-365")
			return
		}
		days = n
	}

	result, err := s.db.MostUsed(r.Context(), days)
	if writeStoreError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, result)
}
