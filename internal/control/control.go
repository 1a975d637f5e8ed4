// Package control implements the request/response control surface:
// topic administration, health, stats, and metrics, per spec.md
// section 6. Grounded on
// adred-codev-ws_poc/go-server-3/internal/transport/server.go's HTTP
// wiring conventions, using Go 1.22's net/http pattern routing the way
// the rest of the retrieved pack's newer services do.
package control

import (
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pubsub-broker/internal/dashboard"
	"pubsub-broker/internal/metrics"
	"pubsub-broker/internal/registry"
	"pubsub-broker/internal/snapshot"
	"pubsub-broker/internal/sysmetrics"
)

// Server exposes the control-plane HTTP handlers.
type Server struct {
	registry  *registry.Registry
	logger    *zap.Logger
	sampler   *sysmetrics.Sampler
	prom      *metrics.Registry
	startedAt time.Time

	shuttingDown atomic.Bool
	server       *http.Server
}

// NewServer constructs a control Server bound to reg. sampler and prom
// may be nil when system metrics/ambient Prometheus instrumentation are
// unavailable.
func NewServer(addr string, reg *registry.Registry, logger *zap.Logger, sampler *sysmetrics.Sampler, prom *metrics.Registry) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		registry:  reg,
		logger:    logger,
		sampler:   sampler,
		prom:      prom,
		startedAt: time.Now(),
	}
	s.server = &http.Server{Addr: addr, Handler: s.routes()}
	return s
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /topics", s.handleCreateTopic)
	mux.HandleFunc("GET /topics", s.handleListTopics)
	mux.HandleFunc("DELETE /topics/{name}", s.handleDeleteTopic)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /stats", s.handleStats)
	mux.HandleFunc("GET /metrics", s.handleMetrics)
	mux.Handle("GET /dashboard", dashboard.Handler(s.registry, s.uptimeSeconds))
	if s.prom != nil {
		mux.Handle("GET /internal/prometheus", s.prom.Handler())
	}
	return mux
}

// Start begins serving control requests in the background.
func (s *Server) Start() {
	go func() {
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			s.logger.Error("control server error", zap.Error(err))
		}
	}()
}

// BeginShutdown flips the shutting-down gate so new topic create and
// delete requests are rejected with 503, per spec.md's graceful
// shutdown sequence. Read-only endpoints keep serving.
func (s *Server) BeginShutdown() {
	s.shuttingDown.Store(true)
}

// Stop closes the control listener.
func (s *Server) Stop() error {
	return s.server.Close()
}

func (s *Server) uptimeSeconds() float64 {
	return time.Since(s.startedAt).Seconds()
}

type createTopicRequest struct {
	Name string `json:"name"`
}

type createTopicResponse struct {
	Name    string `json:"name"`
	Created bool   `json:"created"`
}

func (s *Server) handleCreateTopic(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	var req createTopicRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.registry.Create(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, createTopicResponse{Name: req.Name, Created: true})
}

func (s *Server) handleListTopics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.registry.List())
}

func (s *Server) handleDeleteTopic(w http.ResponseWriter, r *http.Request) {
	if s.shuttingDown.Load() {
		writeError(w, http.StatusServiceUnavailable, "server is shutting down")
		return
	}

	name := r.PathValue("name")
	if !s.registry.Delete(name) {
		w.WriteHeader(http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	var sys *snapshot.SystemStats
	if s.sampler != nil {
		sys = s.sampler.Snapshot()
	}
	writeJSON(w, http.StatusOK, snapshot.BuildHealth(s.registry, s.uptimeSeconds(), sys))
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshot.BuildStats(s.registry))
}

func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, snapshot.BuildMetrics(s.registry, s.uptimeSeconds()))
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}
