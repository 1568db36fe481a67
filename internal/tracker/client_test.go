package tracker

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClientReport(t *testing.T) {
	var got map[string]any
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, http.MethodPost, r.Method)
			require.Equal(t, "/activity/", r.URL.Path)
			require.NoError(t,
				json.NewDecoder(r.Body).Decode(&got))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(
				`{"status":"logged","app_id":1,"activity_date":"2025-06-15"}`,
			))
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL+"/", "alice")
	err := c.Report(context.Background(), Sample{
		AppName:     "chrome.exe",
		WindowTitle: "YouTube",
		Duration:    120,
		StartedAt: time.Date(
			2025, 6, 15, 9, 0, 0, 0, time.UTC,
		),
	})
	require.NoError(t, err)

	assert.Equal(t, "alice", got["user_id"])
	assert.Equal(t, "chrome.exe", got["app_name"])
	assert.Equal(t, "YouTube", got["window_title"])
	assert.Equal(t, float64(120), got["duration"])
	assert.Equal(t, "2025-06-15T09:00:00Z", got["timestamp"])
}

func TestClientReportErrors(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadRequest)
			w.Write([]byte(`{"error":"duration must be non-negative"}`))
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL, "alice")
	err := c.Report(context.Background(), Sample{Duration: -1})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duration must be non-negative")
}

func TestClientReportRejectsUnexpectedStatus(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"status":"maybe"}`))
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL, "alice")
	err := c.Report(context.Background(), Sample{Duration: 5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maybe")
}

func TestClientFetchIdentifiers(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			require.Equal(t, "/tracked-identifiers/", r.URL.Path)
			w.Write([]byte(`["YouTube","chrome"]`))
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL, "alice")
	snap, err := c.FetchIdentifiers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, snap.Len())
	assert.True(t, snap.Tracks("chrome.exe", ""))
}

func TestClientFetchIdentifiersBadPayload(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"not":"an array"}`))
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL, "alice")
	_, err := c.FetchIdentifiers(context.Background())
	require.Error(t, err)
}

func TestClientHealthy(t *testing.T) {
	healthy := true
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			if healthy {
				w.Write([]byte(`{"status":"ok"}`))
				return
			}
			w.WriteHeader(http.StatusServiceUnavailable)
		},
	))
	defer ts.Close()

	c := NewClient(ts.URL, "alice")
	assert.True(t, c.Healthy(context.Background()))
	healthy = false
	assert.False(t, c.Healthy(context.Background()))
}
