package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fathom-ai/fathom-go/internal/docstore"
	"github.com/fathom-ai/fathom-go/internal/retrieval"
	"github.com/fathom-ai/fathom-go/internal/vector"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Vectors is the vector index child vectors are evicted from when a
	// document is deleted. May be nil when no dense path is configured.
	Vectors vector.Index
	// Registry receives the server's own metrics and backs GET /metrics. Pass
	// the registry the retrieval pipeline metrics are registered on so one
	// scrape covers both. If nil, a private registry is created.
	Registry *prometheus.Registry
}

// searcher is the interface handleSearch calls to run a query.
// *retrieval.Pipeline satisfies it; tests inject a fake.
type searcher interface {
	// Search runs the full retrieval pipeline for the raw user query.
	Search(ctx context.Context, query string) (*retrieval.Response, error)
}

// Server is the HTTP server that exposes the retrieval pipeline.
type Server struct {
	// searcher runs queries; set to the pipeline in production, overridden
	// by a fake in tests.
	searcher searcher
	// store backs the document listing and deletion endpoints.
	store docstore.Store
	// vectors receives child-vector evictions on document delete; may be nil.
	vectors vector.Index
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the user's natural language search query.
	Query string `json:"query"`
}

// documentsResponse is the JSON response for GET /api/documents.
type documentsResponse struct {
	// Documents lists every ingested document with its chunk counts.
	Documents []docstore.DocumentInfo `json:"documents"`
}

// errorResponse is the JSON body for all error status codes.
type errorResponse struct {
	// Error is a human-readable description of what went wrong.
	Error string `json:"error"`
}
