package worker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"time"

	"github.com/rs/zerolog"

	"media-studio/internal/config"
	"media-studio/internal/generation"
	"media-studio/internal/models"
	"media-studio/internal/storage"
	"media-studio/internal/store"
	"media-studio/internal/telemetry"
)

// JobStore is the subset of the Postgres store the worker drives.
type JobStore interface {
	GetJob(ctx context.Context, id string) (models.Job, error)
	MarkProcessing(ctx context.Context, id string) error
	SetMusicPrompt(ctx context.Context, id, prompt string) error
	SetThumbnail(ctx context.Context, id, url string) error
	MarkCompleted(ctx context.Context, id, resultPath, resultURL string) error
	MarkFailed(ctx context.Context, id, reason string) error
}

// Queue is the leasing work queue.
type Queue interface {
	DequeueWithLease(ctx context.Context) (string, error)
	ExtendLease(ctx context.Context, jobID string, extension time.Duration) error
	Ack(ctx context.Context, jobID string) error
	DeadLetter(ctx context.Context, jobID string) error
	RequeueExpired(ctx context.Context, limit int64) ([]string, error)
	ReadyDepth(ctx context.Context) (int64, error)
	InFlight(ctx context.Context) (int64, error)
}

// Processor drives jobs from queued to a terminal status.
type Processor struct {
	cfg         config.Config
	queue       Queue
	store       JobStore
	objects     storage.Store
	resolver    storage.Resolver
	generator   generation.Generator
	thumbnailer *Thumbnailer
	log         zerolog.Logger
	workerID    string
}

type Deps struct {
	Queue     Queue
	Store     JobStore
	Objects   storage.Store
	Generator generation.Generator
	Logger    zerolog.Logger
}

// NewProcessor wires a processor; workerID is attached to every log line.
func NewProcessor(cfg config.Config, deps Deps, workerID string) *Processor {
	resolver := storage.NewResolver(cfg)
	return &Processor{
		cfg:         cfg,
		queue:       deps.Queue,
		store:       deps.Store,
		objects:     deps.Objects,
		resolver:    resolver,
		generator:   deps.Generator,
		thumbnailer: NewThumbnailer(deps.Objects, resolver, cfg),
		log:         deps.Logger.With().Str("worker_id", workerID).Logger(),
		workerID:    workerID,
	}
}

// Run leases and processes jobs until ctx is cancelled.
func (p *Processor) Run(ctx context.Context) error {
	idle := p.cfg.WorkerPollInterval
	if idle <= 0 {
		idle = time.Second
	}
	failures := 0

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		if reclaimed, err := p.queue.RequeueExpired(ctx, 100); err == nil && len(reclaimed) > 0 {
			p.log.Warn().Strs("job_ids", reclaimed).Msg("requeued expired leases")
		}
		if depth, err := p.queue.ReadyDepth(ctx); err == nil {
			telemetry.QueueDepthGauge.Set(float64(depth))
		}
		if leased, err := p.queue.InFlight(ctx); err == nil {
			telemetry.InFlightGauge.Set(float64(leased))
		}

		jobID, err := p.queue.DequeueWithLease(ctx)
		if err != nil {
			failures++
			wait := backoffWithJitter(p.cfg.BackoffInitial, p.cfg.BackoffMax, failures)
			p.log.Error().Err(err).Dur("retry_in", wait).Msg("dequeue failed")
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
			continue
		}
		failures = 0
		if jobID == "" {
			if !sleep(ctx, idle) {
				return ctx.Err()
			}
			continue
		}

		if err := p.Process(ctx, jobID); err != nil && ctx.Err() == nil {
			p.log.Error().Err(err).Str("job_id", jobID).Msg("process job")
		}
	}
}

// Process runs one leased job. The lease is acked once the job reaches a
// terminal status; if ctx is cancelled midway the lease is left to expire so
// another worker picks the job up.
func (p *Processor) Process(ctx context.Context, jobID string) error {
	log := p.log.With().Str("job_id", jobID).Logger()

	job, err := p.store.GetJob(ctx, jobID)
	if errors.Is(err, store.ErrNotFound) {
		log.Warn().Msg("leased job has no row, dropping")
		return p.queue.Ack(ctx, jobID)
	}
	if err != nil {
		return fmt.Errorf("load job: %w", err)
	}
	if job.Status.IsTerminal() {
		log.Debug().Str("status", string(job.Status)).Msg("job already terminal")
		return p.queue.Ack(ctx, jobID)
	}

	if job.Status == models.StatusQueued {
		if err := p.store.MarkProcessing(ctx, jobID); err != nil {
			return fmt.Errorf("mark processing: %w", err)
		}
		log.Info().Msg("job processing")
	} else {
		log.Info().Msg("resuming reclaimed job")
	}

	stopHeartbeat := p.heartbeat(ctx, jobID)
	resultPath, resultURL, runErr := p.generate(ctx, job, log)
	stopHeartbeat()

	if runErr != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	if runErr != nil {
		return p.fail(ctx, job.ID, runErr, log)
	}
	if err := p.store.MarkCompleted(ctx, job.ID, resultPath, resultURL); err != nil {
		return p.fail(ctx, job.ID, fmt.Errorf("record result: %w", err), log)
	}
	telemetry.JobsCompleted.Inc()
	log.Info().Str("result_url", resultURL).Msg("job completed")
	return p.queue.Ack(ctx, job.ID)
}

func (p *Processor) generate(ctx context.Context, job models.Job, log zerolog.Logger) (string, string, error) {
	if job.IncludeMusic && !job.HasMusicPrompt() {
		music, err := p.generator.MusicPrompt(ctx, job.RequestPrompt)
		switch {
		case err != nil:
			log.Warn().Err(err).Msg("music analysis failed, continuing without music")
		default:
			if err := p.store.SetMusicPrompt(ctx, job.ID, music); err != nil {
				log.Warn().Err(err).Msg("store music prompt")
			}
		}
	}

	if job.ThumbnailURL == nil {
		p.storeThumbnail(ctx, job, log)
	}

	start := time.Now()
	video, err := p.generator.GenerateVideo(ctx, generation.VideoRequest{
		JobID:    job.ID,
		ImageURI: job.RequestImagePath,
		Prompt:   job.RequestPrompt,
	})
	telemetry.GenerationTime.Observe(time.Since(start).Seconds())
	if err != nil {
		return "", "", err
	}

	obj, err := p.objects.Put(ctx, ResultKey(job.ID), video.Body, video.ContentType)
	if err != nil {
		return "", "", fmt.Errorf("upload result: %w", err)
	}
	url, err := p.resolver.Resolve(obj.URI)
	if err != nil {
		return "", "", fmt.Errorf("resolve result: %w", err)
	}
	return obj.URI, url, nil
}

// storeThumbnail renders the preview and records its URL on the job. Failures
// only cost the preview.
func (p *Processor) storeThumbnail(ctx context.Context, job models.Job, log zerolog.Logger) {
	obj, err := p.thumbnailer.Render(ctx, job.ID, job.RequestImagePath)
	if err != nil {
		log.Warn().Err(err).Msg("thumbnail render failed")
		return
	}
	url, err := p.resolver.Resolve(obj.URI)
	if err != nil {
		log.Warn().Err(err).Msg("resolve thumbnail")
		return
	}
	if err := p.store.SetThumbnail(ctx, job.ID, url); err != nil {
		log.Warn().Err(err).Msg("store thumbnail url")
	}
}

// fail records err on the job. If even that fails the job is parked on the
// dead-letter list for an operator.
func (p *Processor) fail(ctx context.Context, jobID string, cause error, log zerolog.Logger) error {
	telemetry.JobsFailed.Inc()
	log.Error().Err(cause).Msg("job failed")
	if err := p.store.MarkFailed(ctx, jobID, cause.Error()); err != nil {
		if dlErr := p.queue.DeadLetter(ctx, jobID); dlErr != nil {
			log.Error().Err(dlErr).Msg("dead letter")
		}
		return fmt.Errorf("mark failed: %w", err)
	}
	return p.queue.Ack(ctx, jobID)
}

// heartbeat keeps the lease alive while a job runs.
func (p *Processor) heartbeat(ctx context.Context, jobID string) func() {
	visibility := p.cfg.VisibilityTimeout
	if visibility <= 0 {
		return func() {}
	}
	hbCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(visibility / 2)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := p.queue.ExtendLease(hbCtx, jobID, visibility); err != nil && hbCtx.Err() == nil {
					p.log.Warn().Err(err).Str("job_id", jobID).Msg("extend lease")
				}
			}
		}
	}()
	return func() {
		cancel()
		<-done
	}
}

// ResultKey is where the rendered video of jobID is stored.
func ResultKey(jobID string) string {
	return "generated_videos/" + jobID + ".mp4"
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

func backoffWithJitter(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if attempt <= 0 {
		return base
	}
	exp := float64(base) * math.Pow(2, float64(attempt-1))
	wait := time.Duration(exp)
	if wait > max || exp > float64(math.MaxInt64) {
		wait = max
	}
	jitter := time.Duration(rand.Int63n(int64(wait/2) + 1))
	return wait/2 + jitter
}
