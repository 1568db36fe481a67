package server

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
)

type chatbotRequest struct {
	Query  string `json:"query"`
	Locale string `json:"locale"`
}

// requireAPIKey gates a handler behind the configured API key.
// No key configured means open access.
func (s *Server) requireAPIKey(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := s.apiKey()
		if key == "" {
			h(w, r)
			return
		}
		auth := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok || subtle.ConstantTimeCompare(
			[]byte(token), []byte(key),
		) != 1 {
			writeError(w, http.StatusUnauthorized,
				"invalid or missing API key")
			return
		}
		h(w, r)
	}
}

func (s *Server) handleChatbotQuery(
	w http.ResponseWriter, r *http.Request,
) {
	var req chatbotRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	ans, err := s.bot.Answer(r.Context(), req.Query)
	if writeStoreError(w, err) {
		return
	}

	chatbotQueries.WithLabelValues(string(ans.Intent)).Inc()
	writeJSON(w, http.StatusOK, ans)
}
