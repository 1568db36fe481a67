package server

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/usageview/usageview/internal/db"
	"github.com/usageview/usageview/internal/timeutil"
)

type recordActivityRequest struct {
	UserID      string `json:"user_id"`
	AppName     string `json:"app_name"`
	WindowTitle string `json:"window_title"`
	Duration    int64  `json:"duration"`
	Timestamp   string `json:"timestamp"`
}

type recordActivityResponse struct {
	Status       string `json:"status"`
	AppID        int64  `json:"app_id"`
	ActivityDate string `json:"activity_date"`
}

func (s *Server) handleRecordActivity(
	w http.ResponseWriter, r *http.Request,
) {
	var req recordActivityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.UserID == "" || req.AppName == "" {
		writeError(w, http.StatusBadRequest,
			"user_id and app_name are required")
		return
	}

	res, err := s.db.RecordUsage(
		r.Context(),
		req.UserID, req.AppName, req.WindowTitle,
		req.Duration, req.Timestamp,
	)
	if writeStoreError(w, err) {
		return
	}

	activitiesRecorded.Inc()
	writeJSON(w, http.StatusOK, recordActivityResponse{
		Status:       "logged",
		AppID:        res.AppID,
		ActivityDate: res.ActivityDate,
	})
}

func (s *Server) handleListApps(
	w http.ResponseWriter, r *http.Request,
) {
	apps, err := s.db.ListApplications(r.Context())
	if writeStoreError(w, err) {
		return
	}
	if apps == nil {
		apps = []db.Application{}
	}
	writeJSON(w, http.StatusOK, apps)
}

func (s *Server) handleListUsage(
	w http.ResponseWriter, r *http.Request,
) {
	q := r.URL.Query()
	var filter db.UsageFilter

	if v := q.Get("app_id"); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id <= 0 {
			writeError(w, http.StatusBadRequest, "invalid app_id")
			return
		}
		filter.AppID = id
	}
	for _, p := range []struct {
		name  string
		value string
		dst   *string
	}{
		{"start_date", q.Get("start_date"), &filter.StartDate},
		{"end_date", q.Get("end_date"), &filter.EndDate},
	} {
		if p.value == "" {
			continue
		}
		if !timeutil.IsValidDate(p.value) {
			writeError(w, http.StatusBadRequest,
				"invalid "+p.name+": use YYYY-MM-DD")
			return
		}
		*p.dst = p.value
	}

	rows, err := s.db.ListUsage(r.Context(), filter)
	if writeStoreError(w, err) {
		return
	}
	if rows == nil {
		rows = []db.UsageRow{}
	}
	writeJSON(w, http.StatusOK, rows)
}
