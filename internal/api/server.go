package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"creator-outreach/internal/campaign"
	"creator-outreach/internal/config"
	"creator-outreach/internal/queue"
	"creator-outreach/internal/store"
	"creator-outreach/internal/telemetry"
)

// Server wires HTTP handlers for the coordinating process. It only enqueues;
// run statistics reflect the enqueue phase and jobs finish later.
type Server struct {
	cfg   config.Config
	orch  *campaign.Orchestrator
	store *store.Store
	queue *queue.RedisQueue
}

// New constructs the API server.
func New(cfg config.Config, orch *campaign.Orchestrator, st *store.Store, q *queue.RedisQueue) *Server {
	return &Server{cfg: cfg, orch: orch, store: st, queue: q}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})

	r.Mount("/metrics", telemetry.Handler())

	r.Post("/campaigns/run", s.handleRunAll)
	r.Post("/contacts/{id}/run", s.handleRunOne)
	r.Get("/jobs/{id}", s.handleGetJob)
	r.Get("/queue/stats", s.handleQueueStats)
	r.Post("/queue/drain", s.handleDrain)
	r.Post("/queue/cleanup", s.handleCleanup)
	r.Get("/dlq", s.handleDLQ)
	return r
}

type runRequest struct {
	Limit int `json:"limit"`
}

func (s *Server) handleRunAll(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means no limit
	}
	stats, err := s.orch.RunAll(r.Context(), req.Limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusAccepted, stats)
}

type runOneRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
}

func (s *Server) handleRunOne(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil || id < 1 {
		http.Error(w, "invalid row id", http.StatusBadRequest)
		return
	}
	var req runOneRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req) // empty body means no dedup
	}
	stats, err := s.orch.RunOne(r.Context(), id, req.IdempotencyKey)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusAccepted, stats)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, err := s.store.GetJob(r.Context(), id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleQueueStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.store.StatusCounts(r.Context())
	if err != nil {
		http.Error(w, "failed to count jobs", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

// handleDrain cancels all waiting jobs. Active jobs run to completion; there
// is no mid-job cancellation.
func (s *Server) handleDrain(w http.ResponseWriter, r *http.Request) {
	ids, err := s.queue.Drain(r.Context())
	if err != nil {
		http.Error(w, "failed to drain queue", http.StatusInternalServerError)
		return
	}
	for _, id := range ids {
		_ = s.store.MarkCancelled(r.Context(), id)
		_ = s.store.AppendAudit(r.Context(), id, "cancelled", "queue drained via API")
	}
	writeJSON(w, http.StatusOK, map[string]int{"drained": len(ids)})
}

type cleanupRequest struct {
	Keep int `json:"keep"`
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	req := cleanupRequest{Keep: s.cfg.HistoryKeep}
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}
	removed, err := s.store.Cleanup(r.Context(), req.Keep)
	if err != nil {
		http.Error(w, "cleanup failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"removed": removed})
}

// handleDLQ returns the DLQ contents (IDs only).
func (s *Server) handleDLQ(w http.ResponseWriter, r *http.Request) {
	items, err := s.queue.DLQPeek(r.Context(), 100)
	if err != nil {
		http.Error(w, "failed to read dlq", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": items})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}
