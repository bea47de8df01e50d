package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/codeatlas/codeatlas/internal/analyzer"
	"github.com/codeatlas/codeatlas/internal/config"
	"github.com/codeatlas/codeatlas/internal/graph"
	"github.com/codeatlas/codeatlas/internal/jobs"
	"github.com/codeatlas/codeatlas/internal/parse"
)

// Server holds the HTTP server dependencies
type Server struct {
	store  graph.Store
	jobs   *jobs.Store
	cfg    *config.Config
	loader *parse.Loader
}

// New creates a new API server
func New(store graph.Store, jobStore *jobs.Store, cfg *config.Config, loader *parse.Loader) *Server {
	return &Server{store: store, jobs: jobStore, cfg: cfg, loader: loader}
}

// Router builds the chi router with all routes mounted.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)

	r.Get("/health", s.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Post("/jobs", s.StartJob)
		r.Get("/jobs", s.ListJobs)
		r.Get("/jobs/{id}", s.GetJob)
		r.Post("/analysis/detect", s.Detect)
		r.Post("/analysis/enrich", s.Enrich)
		r.Get("/graph/modules/{name}/summary", s.ModuleSummary)
	})

	return r
}

// StartJobRequest is the request body for starting an analysis job.
// Module is optional; when empty, every module of the repository is
// analyzed in one job.
type StartJobRequest struct {
	Repository string `json:"repository"`
	Module     string `json:"module,omitempty"`
}

// StartJobResponse is the response for starting an analysis job
type StartJobResponse struct {
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

// StartJob handles POST /api/jobs
func (s *Server) StartJob(w http.ResponseWriter, r *http.Request) {
	var req StartJobRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Repository == "" {
		http.Error(w, "repository is required", http.StatusBadRequest)
		return
	}

	repo, err := s.cfg.Repository(req.Repository)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	target := req.Module
	var mods []config.ModuleConfig
	if target == "" {
		mods = repo.Modules
	} else {
		for _, m := range repo.Modules {
			if m.Name == target {
				mods = []config.ModuleConfig{m}
				break
			}
		}
		if len(mods) == 0 {
			http.Error(w, fmt.Sprintf("module %q not found in repository %q", target, req.Repository), http.StatusBadRequest)
			return
		}
	}
	if len(mods) == 0 {
		http.Error(w, fmt.Sprintf("repository %q has no modules configured", req.Repository), http.StatusBadRequest)
		return
	}

	job := s.jobs.Create(repo.Path, target)
	go s.runJob(job.ID, repo, mods, target == "")

	message := fmt.Sprintf("Job started for module '%s'", target)
	if target == "" {
		message = fmt.Sprintf("Job started for repository '%s' (%d modules)", req.Repository, len(mods))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(StartJobResponse{JobID: job.ID, Message: message})
}

// runJob drives one analysis job to completion in the background. A
// whole-repository job takes the destructive full-pipeline path; a
// single-module job rebuilds only its own subtree.
func (s *Server) runJob(jobID string, repo *config.RepositoryConfig, mods []config.ModuleConfig, fullRepo bool) {
	ctx := context.Background()
	s.jobs.SetStatus(jobID, jobs.StatusRunning, "", "")

	log := s.jobs.Logger(jobID)
	pipeline := analyzer.NewPipeline(s.store, s.loader, log)

	fail := func(err error) {
		log.Log("error", "Job failed: %v", err)
		s.jobs.SetStatus(jobID, jobs.StatusFailed, "", err.Error())
	}

	if fullRepo {
		specs := make([]analyzer.ModuleSpec, len(mods))
		for i, m := range mods {
			specs[i] = analyzer.ModuleSpec{
				Name:         m.Name,
				RelativePath: m.RelativePath,
				Technologies: m.Technologies,
			}
		}
		if err := pipeline.Run(ctx, repo.Path, repo.Name, specs); err != nil {
			fail(err)
			return
		}
		s.jobs.SetStatus(jobID, jobs.StatusCompleted, fmt.Sprintf("%d modules analyzed", len(mods)), "")
		return
	}

	mod := mods[0]
	if err := s.store.EnsureRepository(ctx, repo.Path, repo.Name); err != nil {
		fail(err)
		return
	}
	summary, err := pipeline.RunModule(ctx, repo.Path, repo.Name, mod.Name, mod.RelativePath)
	if err != nil {
		fail(err)
		return
	}
	tags, err := pipeline.Detect(ctx, mod.Name, mod.Technologies)
	if err != nil {
		fail(err)
		return
	}
	if _, err := pipeline.Enrich(ctx, mod.Name, tags); err != nil {
		fail(err)
		return
	}
	s.jobs.SetStatus(jobID, jobs.StatusCompleted, summary, "")
}

// ListJobs handles GET /api/jobs
func (s *Server) ListJobs(w http.ResponseWriter, r *http.Request) {
	all := s.jobs.All()

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"jobs":  all,
		"count": len(all),
	})
}

// GetJob handles GET /api/jobs/{id}
func (s *Server) GetJob(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	job, ok := s.jobs.Get(id)
	if !ok {
		http.Error(w, "job not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(job)
}

// DetectRequest is the request body for technology detection.
// Technologies, when set, is stored as a manual override instead of
// scanning.
type DetectRequest struct {
	Module       string   `json:"module"`
	Technologies []string `json:"technologies,omitempty"`
}

// Detect handles POST /api/analysis/detect
func (s *Server) Detect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Module == "" {
		http.Error(w, "module is required", http.StatusBadRequest)
		return
	}

	pipeline := analyzer.NewPipeline(s.store, s.loader, jobs.NoopLogger{})
	tags, err := pipeline.Detect(r.Context(), req.Module, req.Technologies)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"module":       req.Module,
		"technologies": tags,
	})
}

// EnrichRequest is the request body for overlay enrichment. Empty tags
// fall back to the module's detected technologies.
type EnrichRequest struct {
	Module string   `json:"module"`
	Tags   []string `json:"tags,omitempty"`
}

// Enrich handles POST /api/analysis/enrich
func (s *Server) Enrich(w http.ResponseWriter, r *http.Request) {
	var req EnrichRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Module == "" {
		http.Error(w, "module is required", http.StatusBadRequest)
		return
	}

	tags := req.Tags
	if len(tags) == 0 {
		stored, err := s.store.Technologies(r.Context(), req.Module)
		if err != nil {
			status := http.StatusInternalServerError
			if errors.Is(err, graph.ErrNotFound) {
				status = http.StatusNotFound
			}
			http.Error(w, err.Error(), status)
			return
		}
		tags = stored
	}

	pipeline := analyzer.NewPipeline(s.store, s.loader, jobs.NoopLogger{})
	stats, err := pipeline.Enrich(r.Context(), req.Module, tags)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"module": req.Module,
		"tags":   tags,
		"stats":  stats,
	})
}

// ModuleSummary handles GET /api/graph/modules/{name}/summary
func (s *Server) ModuleSummary(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")

	summary, err := s.store.Summary(r.Context(), name)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, graph.ErrNotFound) {
			status = http.StatusNotFound
		}
		http.Error(w, err.Error(), status)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"module":  name,
		"summary": summary,
	})
}

// HealthCheck handles GET /health
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{
		"status": "ok",
	})
}
