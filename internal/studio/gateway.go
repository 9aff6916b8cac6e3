package studio

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"media-studio/internal/client"
	"media-studio/internal/models"
)

// JobCreator issues the job-creation call.
type JobCreator interface {
	GenerateVideo(ctx context.Context, req client.GenerateRequest) (models.Job, error)
}

// JobHandle identifies a newly created job.
type JobHandle struct {
	ID        string
	Status    models.Status
	CreatedAt time.Time
}

// ShortID is the abbreviated form shown to operators.
func (h JobHandle) ShortID() string {
	if len(h.ID) <= 8 {
		return h.ID
	}
	return h.ID[:8]
}

// Gateway turns a generation request into exactly one create call. It never
// retries and never touches a Poller's collection; new jobs show up on the
// next poll.
type Gateway struct {
	creator JobCreator
	log     zerolog.Logger
}

// NewGateway builds a gateway around creator.
func NewGateway(creator JobCreator, log zerolog.Logger) *Gateway {
	return &Gateway{creator: creator, log: log}
}

// Submit validates req and sends it. A missing asset or template yields a
// *ValidationError without a network call; any failure after that is a
// *SubmissionError.
func (g *Gateway) Submit(ctx context.Context, req models.GenerationRequest) (JobHandle, error) {
	if err := validateRequest(req); err != nil {
		return JobHandle{}, err
	}

	job, err := g.creator.GenerateVideo(ctx, client.GenerateRequest{
		AssetImagePath:   strings.TrimSpace(req.AssetRef),
		UserTemplateText: req.TemplateText,
		IncludeMusic:     req.IncludeMusic,
	})
	if err != nil {
		g.log.Warn().Err(err).Str("asset", req.AssetRef).Msg("generation request rejected")
		return JobHandle{}, &SubmissionError{Cause: err}
	}
	if job.ID == "" {
		return JobHandle{}, &SubmissionError{Cause: errors.New("response carried no job id")}
	}
	if job.Status != models.StatusQueued {
		return JobHandle{}, &SubmissionError{Cause: fmt.Errorf("new job %s reported status %q", job.ID, job.Status)}
	}

	g.log.Info().Str("job_id", job.ID).Bool("include_music", req.IncludeMusic).Msg("generation job submitted")
	return JobHandle{ID: job.ID, Status: job.Status, CreatedAt: job.CreatedAt.Time}, nil
}

func validateRequest(req models.GenerationRequest) error {
	if strings.TrimSpace(req.AssetRef) == "" {
		return &ValidationError{Field: "asset", Reason: "must be selected"}
	}
	if strings.TrimSpace(req.TemplateText) == "" {
		return &ValidationError{Field: "template", Reason: "must be selected"}
	}
	return nil
}
