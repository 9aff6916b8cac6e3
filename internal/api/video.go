package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"media-studio/internal/generation"
	"media-studio/internal/store"
	"media-studio/internal/telemetry"
)

type generateRequest struct {
	AssetImagePath   string `json:"asset_image_path"`
	UserTemplateText string `json:"user_template_text"`
	IncludeMusic     bool   `json:"include_music"`
}

// handleGenerate refines the prompt, records a queued job and hands its ID to
// the workers. Every call creates a new job.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	req.AssetImagePath = strings.TrimSpace(req.AssetImagePath)
	if req.AssetImagePath == "" {
		writeError(w, http.StatusBadRequest, "asset_image_path is required")
		return
	}
	if strings.TrimSpace(req.UserTemplateText) == "" {
		writeError(w, http.StatusBadRequest, "user_template_text is required")
		return
	}

	tenant := tenantFromRequest(r)
	if s.limiter != nil {
		allowed, _, err := s.limiter.Allow(r.Context(), tenant)
		if err != nil {
			s.log.Error().Err(err).Str("tenant", tenant).Msg("rate limit check")
			writeError(w, http.StatusInternalServerError, "rate limit error")
			return
		}
		if !allowed {
			telemetry.RateLimitRejects.Inc()
			writeError(w, http.StatusTooManyRequests, "rate limited")
			return
		}
	}

	prompt, err := s.generator.RefinePrompt(r.Context(), req.UserTemplateText)
	if err != nil {
		if errors.Is(err, generation.ErrRejected) {
			writeError(w, http.StatusUnprocessableEntity, err.Error())
			return
		}
		s.log.Error().Err(err).Msg("refine prompt")
		writeError(w, http.StatusBadGateway, "prompt refinement failed")
		return
	}

	job, err := s.jobs.CreateJob(r.Context(), store.CreateJobParams{
		Tenant:       tenant,
		ImagePath:    req.AssetImagePath,
		Prompt:       prompt,
		IncludeMusic: req.IncludeMusic,
	})
	if err != nil {
		s.log.Error().Err(err).Msg("create job")
		writeError(w, http.StatusInternalServerError, "failed to create job")
		return
	}

	if err := s.queue.Enqueue(r.Context(), job.ID); err != nil {
		s.log.Error().Err(err).Str("job_id", job.ID).Msg("enqueue job")
		if markErr := s.jobs.MarkFailed(r.Context(), job.ID, "enqueue failed: "+err.Error()); markErr != nil {
			s.log.Error().Err(markErr).Str("job_id", job.ID).Msg("mark unqueued job failed")
		}
		writeError(w, http.StatusInternalServerError, "enqueue failed")
		return
	}
	telemetry.JobsSubmitted.Inc()
	s.log.Info().Str("job_id", job.ID).Str("tenant", tenant).Bool("include_music", job.IncludeMusic).Msg("job queued")

	writeJSON(w, http.StatusOK, job)
}

func (s *Server) handleListJobs(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	jobs, err := s.jobs.ListJobs(r.Context(), limit)
	if err != nil {
		s.log.Error().Err(err).Msg("list jobs")
		writeError(w, http.StatusInternalServerError, "failed to list jobs")
		return
	}
	writeJSON(w, http.StatusOK, jobs)
}

func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	job, err := s.jobs.GetJob(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusNotFound, "Job not found")
		return
	}
	if err != nil {
		s.log.Error().Err(err).Msg("get job")
		writeError(w, http.StatusInternalServerError, "failed to load job")
		return
	}
	writeJSON(w, http.StatusOK, job)
}
