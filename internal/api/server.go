package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"media-studio/internal/config"
	"media-studio/internal/generation"
	"media-studio/internal/models"
	"media-studio/internal/storage"
	"media-studio/internal/store"
	"media-studio/internal/telemetry"
)

// JobStore persists generation jobs.
type JobStore interface {
	CreateJob(ctx context.Context, p store.CreateJobParams) (models.Job, error)
	GetJob(ctx context.Context, id string) (models.Job, error)
	ListJobs(ctx context.Context, limit int) ([]models.Job, error)
	MarkFailed(ctx context.Context, id, reason string) error
}

// TemplateStore persists prompt templates.
type TemplateStore interface {
	ListTemplates(ctx context.Context) ([]models.Template, error)
	GetTemplate(ctx context.Context, id int64) (models.Template, error)
	CreateTemplate(ctx context.Context, t models.Template) (models.Template, error)
	UpdateTemplate(ctx context.Context, t models.Template) (models.Template, error)
	DeleteTemplate(ctx context.Context, id int64) error
}

type Enqueuer interface {
	Enqueue(ctx context.Context, jobID string) error
}

type Limiter interface {
	Allow(ctx context.Context, tenant string) (bool, float64, error)
}

// Deps are the collaborators of the API server. Limiter may be nil.
type Deps struct {
	Jobs      JobStore
	Templates TemplateStore
	Queue     Enqueuer
	Limiter   Limiter
	Objects   storage.Store
	Generator generation.Generator
	Logger    zerolog.Logger
	// Health is checked by /healthz when set.
	Health func(ctx context.Context) error
}

// Server wires HTTP handlers for the generation backend.
type Server struct {
	cfg       config.Config
	jobs      JobStore
	templates TemplateStore
	queue     Enqueuer
	limiter   Limiter
	objects   storage.Store
	resolver  storage.Resolver
	generator generation.Generator
	health    func(ctx context.Context) error
	log       zerolog.Logger
}

// New constructs the API server.
func New(cfg config.Config, deps Deps) *Server {
	return &Server{
		cfg:       cfg,
		jobs:      deps.Jobs,
		templates: deps.Templates,
		queue:     deps.Queue,
		limiter:   deps.Limiter,
		objects:   deps.Objects,
		resolver:  storage.NewResolver(cfg),
		generator: deps.Generator,
		health:    deps.Health,
		log:       deps.Logger,
	}
}

// Router builds the HTTP router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RequestID)
	r.Use(AccessLog(s.log))
	r.Use(chimw.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Mount("/metrics", telemetry.Handler())

	r.Route("/video", func(r chi.Router) {
		r.Post("/generate", s.handleGenerate)
		r.Get("/jobs", s.handleListJobs)
		r.Get("/jobs/{id}", s.handleGetJob)
	})

	r.Route("/templates", func(r chi.Router) {
		r.Get("/", s.handleListTemplates)
		r.Post("/", s.handleCreateTemplate)
		r.Get("/{id}", s.handleGetTemplate)
		r.Put("/{id}", s.handleUpdateTemplate)
		r.Delete("/{id}", s.handleDeleteTemplate)
	})

	r.Route("/assets", func(r chi.Router) {
		r.Get("/", s.handleListAssets)
		r.Post("/upload", s.handleUploadAsset)
	})

	r.Post("/training/start", s.handleStartTraining)

	if local, ok := s.objects.(*storage.Local); ok {
		r.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(local.Dir()))))
	}
	return r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.health != nil {
		if err := s.health(r.Context()); err != nil {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func tenantFromRequest(r *http.Request) string {
	if v := r.Header.Get("X-Tenant-ID"); v != "" {
		return v
	}
	return "default"
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
