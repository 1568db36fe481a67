package server

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
)

type identifierRequest struct {
	Identifier string `json:"identifier"`
}

type identifierResponse struct {
	Status     string `json:"status"`
	Identifier string `json:"identifier"`
}

func (s *Server) handleListIdentifiers(
	w http.ResponseWriter, r *http.Request,
) {
	list, err := s.db.ListIdentifiers(r.Context())
	if writeStoreError(w, err) {
		return
	}
	// The tracker consumes this as a flat list of strings.
	idents := []string{}
	for _, ti := range list {
		idents = append(idents, ti.Identifier)
	}
	writeJSON(w, http.StatusOK, idents)
}

func (s *Server) handleAddIdentifier(
	w http.ResponseWriter, r *http.Request,
) {
	var req identifierRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	ident := strings.TrimSpace(req.Identifier)
	if ident == "" {
		writeError(w, http.StatusBadRequest,
			"identifier is required")
		return
	}

	ti, err := s.db.AddIdentifier(r.Context(), ident)
	if writeStoreError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, identifierResponse{
		Status:     "added",
		Identifier: ti.Identifier,
	})
}

func (s *Server) handleRemoveIdentifier(
	w http.ResponseWriter, r *http.Request,
) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid id")
		return
	}

	removed, err := s.db.RemoveIdentifier(r.Context(), id)
	if writeStoreError(w, err) {
		return
	}
	writeJSON(w, http.StatusOK, identifierResponse{
		Status:     "removed",
		Identifier: removed.Identifier,
	})
}
