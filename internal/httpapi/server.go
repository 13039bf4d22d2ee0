// Package httpapi is the HTTP collaborator from CORE-6: a single
// POST /execute endpoint plus health and metrics surfaces, dispatched
// through a bounded worker pool the way the reference server bounds its
// blocking evaluation threads.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/oriys/sandboxd/internal/audit"
	"github.com/oriys/sandboxd/internal/config"
	"github.com/oriys/sandboxd/internal/events"
	"github.com/oriys/sandboxd/internal/initregistry"
	"github.com/oriys/sandboxd/internal/logging"
	"github.com/oriys/sandboxd/internal/metrics"
	"github.com/oriys/sandboxd/internal/sandboxstore"
	"github.com/oriys/sandboxd/internal/telemetry"
)

// Deps collects every collaborator the HTTP surface needs. The serve
// command wires no-op Audit and Events implementations when their
// backing stores are disabled; a nil Metrics, Audit or Events is skipped.
type Deps struct {
	Config   *config.Config
	Store    *sandboxstore.Store
	Metrics  *metrics.Metrics
	Audit    audit.Sink
	Events   events.Publisher
	Registry *initregistry.Registry // nil disables init_script_ref
}

// Server holds the HTTP handlers and the semaphore that bounds
// concurrent evaluations, standing in for the reference server's
// spawn_blocking thread pool.
type Server struct {
	deps Deps
	sem  chan struct{}
}

// NewServer constructs a Server, sizing its worker pool from
// deps.Config.Server.WorkerPoolSize (at least 1).
func NewServer(deps Deps) *Server {
	size := deps.Config.Server.WorkerPoolSize
	if size < 1 {
		size = 1
	}
	return &Server{deps: deps, sem: make(chan struct{}, size)}
}

// Mux builds the complete routing table.
func (s *Server) Mux() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)
	mux.HandleFunc("GET /healthz", s.handleHealthz)
	if s.deps.Metrics != nil {
		mux.Handle("GET /metrics", promhttp.HandlerFor(s.deps.Metrics.Registry, promhttp.HandlerOpts{}))
	}
	mux.HandleFunc("POST /execute", s.handleExecute)
	return mux
}

// StartHTTPServer builds the Server and starts it listening on addr,
// mirroring the reference daemon's StartHTTPServer shape.
func StartHTTPServer(addr string, deps Deps) *http.Server {
	s := NewServer(deps)
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Mux(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logging.Op().Error("httpapi: server exited", "error", err)
		}
	}()
	return srv
}

// handleRoot reports the running configuration and a point-in-time
// store snapshot, matching CORE-6's GET / collaborator.
func (s *Server) handleRoot(w http.ResponseWriter, r *http.Request) {
	snapshot := map[string]any{
		"sandbox": s.deps.Config.Sandbox,
		"store": map[string]any{
			"memory_budget_bytes": s.deps.Config.Store.MemoryBudgetBytes,
			"memory_consumed":     s.deps.Store.MemoryConsumed(),
			"entries":             s.deps.Store.Len(),
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(snapshot)
}

// handleHealthz reports process liveness only; it never touches the
// sandbox store or any backing service.
func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handleExecute decodes the request body, dispatches execution through
// the bounded worker pool, and writes the resulting responseBody.
func (s *Server) handleExecute(w http.ResponseWriter, r *http.Request) {
	requestID := uuid.NewString()

	var req requestBody
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeResponse(w, responseBody{status: statusInvalidRequest, message: "malformed JSON request body"})
		return
	}
	if req.Script == "" {
		writeResponse(w, responseBody{status: statusInvalidRequest, message: "script must not be empty"})
		return
	}

	ctx, span := telemetry.StartExecute(r.Context(), derefOr(req.SandboxID, ""))
	defer span.End()

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		writeResponse(w, responseBody{status: statusInternalServerErr, message: "request cancelled while waiting for a worker"})
		return
	}

	resultCh := make(chan responseBody, 1)
	go func() {
		defer func() { <-s.sem }()
		defer func() {
			if r := recover(); r != nil {
				logging.Op().Error("httpapi: host-side fault during evaluation", "request_id", requestID, "panic", r)
				resultCh <- responseBody{status: statusInternalServerErr, message: "internal error while evaluating the script"}
			}
		}()
		resultCh <- s.executeRequest(ctx, requestID, req)
	}()

	select {
	case resp := <-resultCh:
		writeResponse(w, resp)
	case <-ctx.Done():
		writeResponse(w, responseBody{status: statusInternalServerErr, message: "request cancelled"})
	}
}

func writeResponse(w http.ResponseWriter, resp responseBody) {
	body, err := resp.toJSON()
	if err != nil {
		logging.Op().Error("httpapi: failed to encode response", "error", err)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(resp.httpStatusCode())
	_, _ = w.Write(body)
}

func derefOr(s *string, fallback string) string {
	if s == nil {
		return fallback
	}
	return *s
}
