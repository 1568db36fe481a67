package tracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"
)

// Client talks to the usage server on behalf of the tracker.
type Client struct {
	baseURL string
	userID  string
	httpc   *http.Client
}

// NewClient creates a Client for the given server base URL,
// reporting activity as userID.
func NewClient(baseURL, userID string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		userID:  userID,
		httpc:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Report posts one completed window session.
func (c *Client) Report(ctx context.Context, s Sample) error {
	body, err := json.Marshal(map[string]any{
		"user_id":      c.userID,
		"app_name":     s.AppName,
		"window_title": s.WindowTitle,
		"duration":     s.Duration,
		"timestamp":    s.StartedAt.Format(time.RFC3339),
	})
	if err != nil {
		return fmt.Errorf("encoding sample: %w", err)
	}

	data, err := c.post(ctx, "/activity/", body)
	if err != nil {
		return err
	}
	if status := gjson.GetBytes(data, "status").String(); status != "logged" {
		return fmt.Errorf("server rejected sample: status=%q", status)
	}
	return nil
}

// FetchIdentifiers retrieves the current allow-list as a
// Snapshot.
func (c *Client) FetchIdentifiers(
	ctx context.Context,
) (Snapshot, error) {
	data, err := c.get(ctx, "/tracked-identifiers/")
	if err != nil {
		return Snapshot{}, err
	}

	parsed := gjson.ParseBytes(data)
	if !parsed.IsArray() {
		return Snapshot{}, fmt.Errorf(
			"unexpected identifiers payload: %s", data,
		)
	}
	var idents []string
	parsed.ForEach(func(_, v gjson.Result) bool {
		idents = append(idents, v.String())
		return true
	})
	return NewSnapshot(idents), nil
}

// Healthy reports whether the server answers its liveness check.
func (c *Client) Healthy(ctx context.Context) bool {
	data, err := c.get(ctx, "/healthz")
	if err != nil {
		return false
	}
	return gjson.GetBytes(data, "status").String() == "ok"
}

func (c *Client) get(
	ctx context.Context, path string,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodGet, c.baseURL+path, nil,
	)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	return c.do(req)
}

func (c *Client) post(
	ctx context.Context, path string, body []byte,
) ([]byte, error) {
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body),
	)
	if err != nil {
		return nil, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		msg := gjson.GetBytes(data, "error").String()
		if msg == "" {
			msg = resp.Status
		}
		return nil, fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, msg)
	}
	return data, nil
}
