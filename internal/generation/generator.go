// Package generation wraps the external AI services that turn a template and a
// source image into a video: prompt refinement, music analysis, video rendering.
package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// ErrRejected marks a request the generator refused outright. Callers should
// not retry it.
var ErrRejected = errors.New("generation rejected")

// VideoRequest describes one render.
type VideoRequest struct {
	JobID    string
	ImageURI string
	Prompt   string
}

// Video is the rendered output, ready for upload.
type Video struct {
	Body        []byte
	ContentType string
	Model       string
	Duration    time.Duration
}

// Generator is the boundary to the external generation backend.
type Generator interface {
	RefinePrompt(ctx context.Context, templateText string) (string, error)
	MusicPrompt(ctx context.Context, videoPrompt string) (string, error)
	GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error)
}

// FailMarker in a prompt makes the simulated generator reject the render, which
// lets operators exercise the failure path end to end.
const FailMarker = "#fail"

// Simulated stands in for the real model. Renders take delay and produce a
// small deterministic payload.
type Simulated struct {
	model string
	delay time.Duration
	after func(time.Duration) <-chan time.Time
}

// NewSimulated returns a simulated generator reporting model.
func NewSimulated(model string, delay time.Duration) *Simulated {
	if model == "" {
		model = "veo-simulated"
	}
	return &Simulated{model: model, delay: delay, after: time.After}
}

func (s *Simulated) RefinePrompt(ctx context.Context, templateText string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	concept := strings.TrimSpace(templateText)
	if concept == "" {
		return "", fmt.Errorf("refine prompt: empty template: %w", ErrRejected)
	}
	c := cases.Title(language.Und, cases.NoLower)
	return fmt.Sprintf("%s. Cinematic lighting, photorealistic, 8K resolution, smooth camera motion.", c.String(concept)), nil
}

func (s *Simulated) MusicPrompt(ctx context.Context, videoPrompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	mood := "warm, uplifting"
	lower := strings.ToLower(videoPrompt)
	switch {
	case strings.Contains(lower, "night"), strings.Contains(lower, "rain"):
		mood = "moody, ambient"
	case strings.Contains(lower, "action"), strings.Contains(lower, "fast"):
		mood = "driving, energetic"
	}
	return fmt.Sprintf("Background score, %s; soft piano and strings at 90 BPM.", mood), nil
}

func (s *Simulated) GenerateVideo(ctx context.Context, req VideoRequest) (*Video, error) {
	if req.ImageURI == "" {
		return nil, fmt.Errorf("generate video %s: no source image: %w", req.JobID, ErrRejected)
	}
	if strings.Contains(strings.ToLower(req.Prompt), FailMarker) {
		return nil, fmt.Errorf("generate video %s: prompt blocked by safety filter: %w", req.JobID, ErrRejected)
	}
	if s.delay > 0 {
		select {
		case <-s.after(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	body := fmt.Sprintf("model=%s\njob=%s\nsource=%s\nprompt=%s\n", s.model, req.JobID, req.ImageURI, req.Prompt)
	return &Video{
		Body:        []byte(body),
		ContentType: "video/mp4",
		Model:       s.model,
		Duration:    8 * time.Second,
	}, nil
}

var _ Generator = (*Simulated)(nil)
