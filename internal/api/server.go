// Package api exposes the HTTP interface for the scrape job service.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/scrapekit/browserjobs/internal/config"
	"github.com/scrapekit/browserjobs/internal/jobs"
	"github.com/scrapekit/browserjobs/internal/metrics"
	"github.com/scrapekit/browserjobs/internal/registry"
	"github.com/scrapekit/browserjobs/internal/scrape"
)

// Server wires HTTP handlers to the job manager.
type Server struct {
	router   chi.Router
	manager  *jobs.Manager
	registry *registry.Registry
	cfg      config.Config
	logger   *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(manager *jobs.Manager, reg *registry.Registry, cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		manager:  manager,
		registry: reg,
		cfg:      cfg,
		logger:   logger,
	}
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(logger))
	r.Use(recoverMiddleware(logger))
	r.Use(metrics.Middleware)
	r.Use(timeoutMiddleware(60 * time.Second))

	r.Get("/healthz", s.healthz)
	r.Get("/metrics", s.metricsHandler)

	r.Group(func(r chi.Router) {
		if cfg.Auth.Enabled {
			r.Use(apiKeyMiddleware(cfg.Auth.APIKey))
		}
		r.Post("/jobs/{task_name}", s.submitJob)
		r.Get("/jobs/{job_id}", s.getJob)
		r.Get("/stats", s.getStats)
		r.Get("/tasks", s.listTasks)
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) metricsHandler(w http.ResponseWriter, r *http.Request) {
	metrics.Handler().ServeHTTP(w, r)
}

// submitJob accepts a task submission and returns the job ID for
// polling. The request body is optional; an empty body means an
// empty parameter set.
func (s *Server) submitJob(w http.ResponseWriter, r *http.Request) {
	taskName := chi.URLParam(r, "task_name")

	var params scrape.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	jobID, err := s.manager.Submit(r.Context(), taskName, params)
	if err != nil {
		switch {
		case errors.Is(err, scrape.ErrUnknownTask):
			writeError(w, http.StatusNotFound, "unknown task: "+registry.Normalise(taskName))
		case errors.Is(err, scrape.ErrQueueFull):
			writeError(w, http.StatusTooManyRequests, "job queue is full, retry later")
		default:
			s.logger.Error("job submission failed", zap.String("task", taskName), zap.Error(err))
			writeError(w, http.StatusInternalServerError, "job submission failed")
		}
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"job_id": jobID})
}

func (s *Server) getJob(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "job_id")
	view, err := s.manager.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, scrape.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, "job not found")
			return
		}
		s.logger.Error("job lookup failed", zap.String("job_id", jobID), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "job lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, jobResponse(view))
}

func (s *Server) getStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.manager.Stats(r.Context())
	if err != nil {
		s.logger.Error("stats lookup failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "stats lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, stats)
}

func (s *Server) listTasks(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"tasks": s.registry.Names()})
}

// jobResponse shapes a job view for polling clients.
func jobResponse(view jobs.JobView) map[string]any {
	job := view.Job
	resp := map[string]any{
		"job_id":              job.ID,
		"task_name":           job.TaskName,
		"status":              job.Status,
		"status_with_elapsed": view.StatusWithElapsed,
		"created_at":          job.Created,
	}
	if job.Started != nil {
		resp["started_at"] = job.Started
	}
	if job.Finished != nil {
		resp["finished_at"] = job.Finished
	}
	if job.Result != nil {
		resp["result"] = job.Result
	}
	if job.Error != nil {
		resp["error"] = job.Error
	}
	return resp
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
