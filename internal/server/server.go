// Package server exposes the aggregation store over HTTP: the
// tracker posts completed window sessions, interactive clients
// read usage, stats, and the tracked-identifier allow-list.
package server

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/http"
	"strconv"
	gosync "sync"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/usageview/usageview/internal/chatbot"
	"github.com/usageview/usageview/internal/config"
	"github.com/usageview/usageview/internal/db"
)

// VersionInfo holds build-time version metadata.
type VersionInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildDate string `json:"build_date"`
}

// Server is the HTTP server for the usage API.
type Server struct {
	mu      gosync.RWMutex
	cfg     config.Config
	db      *db.DB
	bot     *chatbot.Bot
	mux     *http.ServeMux
	httpSrv *http.Server
	version VersionInfo

	// handlerDelay is injected before each timeout-wrapped
	// handler, used only by tests to guarantee handlers
	// exceed a short timeout. Zero in production.
	handlerDelay time.Duration
}

// New creates a new Server.
func New(
	cfg config.Config, database *db.DB, opts ...Option,
) *Server {
	s := &Server{
		cfg: cfg,
		db:  database,
		bot: chatbot.New(database),
		mux: http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

// Option configures a Server.
type Option func(*Server)

// WithVersion sets the build-time version metadata.
func WithVersion(v VersionInfo) Option {
	return func(s *Server) { s.version = v }
}

func (s *Server) routes() {
	s.mux.Handle("POST /activity/", s.withTimeout(s.handleRecordActivity))
	s.mux.Handle("GET /apps/", s.withTimeout(s.handleListApps))
	s.mux.Handle("GET /activity-logs/", s.withTimeout(s.handleListUsage))

	s.mux.Handle("GET /stats/most-used/", s.withTimeout(s.handleMostUsed))

	s.mux.Handle(
		"GET /tracked-identifiers/", s.withTimeout(s.handleListIdentifiers),
	)
	s.mux.Handle(
		"POST /tracked-identifiers/", s.withTimeout(s.handleAddIdentifier),
	)
	s.mux.Handle(
		"DELETE /tracked-identifiers/{id}",
		s.withTimeout(s.handleRemoveIdentifier),
	)

	s.mux.Handle(
		"POST /api/chatbot/query",
		s.withTimeout(s.requireAPIKey(s.handleChatbotQuery)),
	)

	s.mux.Handle("GET /api/version", s.withTimeout(s.handleGetVersion))
	s.mux.HandleFunc("GET /healthz", s.handleHealthz)
	// Prometheus text format, not JSON: skip the timeout wrapper's
	// content-type shim.
	s.mux.Handle("GET /metrics", promhttp.Handler())
}

func (s *Server) handleGetVersion(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, s.version)
}

func (s *Server) handleHealthz(
	w http.ResponseWriter, _ *http.Request,
) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// apiKey returns the configured chatbot API key (thread-safe).
func (s *Server) apiKey() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cfg.APIKey
}

// SetAPIKey updates the chatbot API key for testing.
func (s *Server) SetAPIKey(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.APIKey = key
}

// SetPort updates the listen port (for testing).
func (s *Server) SetPort(port int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg.Port = port
}

// Handler returns the http.Handler with middleware applied.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(logMiddleware(s.mux))
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	srv := &http.Server{
		Addr:        addr,
		Handler:     s.Handler(),
		ReadTimeout: 10 * time.Second,
		IdleTimeout: 120 * time.Second,
	}
	s.mu.Lock()
	s.httpSrv = srv
	s.mu.Unlock()
	log.Printf("Starting server at http://%s", addr)
	return srv.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.mu.RLock()
	srv := s.httpSrv
	s.mu.RUnlock()
	if srv == nil {
		return nil
	}
	return srv.Shutdown(ctx)
}

// FindAvailablePort finds an available port starting from the
// given port, binding to the specified host.
func FindAvailablePort(host string, start int) int {
	for port := start; port < start+100; port++ {
		addr := net.JoinHostPort(host, strconv.Itoa(port))
		ln, err := net.Listen("tcp", addr)
		if err == nil {
			ln.Close()
			return port
		}
	}
	return start
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set(
			"Access-Control-Allow-Methods",
			"GET, POST, DELETE, OPTIONS",
		)
		w.Header().Set(
			"Access-Control-Allow-Headers",
			"Content-Type, Authorization",
		)
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			log.Printf("%s %s", r.Method, r.URL.Path)
		}
		next.ServeHTTP(w, r)
	})
}
