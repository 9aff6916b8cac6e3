package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"media-studio/internal/models"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrInvalidTransition = errors.New("invalid status transition")
)

// Store wraps pgxpool for Postgres persistence.
type Store struct {
	pool *pgxpool.Pool
}

// New creates a pooled connection to Postgres.
func New(ctx context.Context, dsn string) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	return &Store{pool: pool}, nil
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// Ping checks connectivity for health probes.
func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const jobColumns = `id, status, request_image_path, request_prompt, include_music, music_prompt, music_url,
	result_gcs_path, result_public_url, error_message, thumbnail_url, created_at, updated_at`

// CreateJobParams collects inputs required to insert a job.
type CreateJobParams struct {
	Tenant       string
	ImagePath    string
	Prompt       string
	IncludeMusic bool
}

// CreateJob inserts a queued job with a fresh id.
func (s *Store) CreateJob(ctx context.Context, p CreateJobParams) (models.Job, error) {
	if p.Tenant == "" {
		p.Tenant = "default"
	}
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return models.Job{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // safe no-op on commit

	id := uuid.New().String()
	now := time.Now().UTC()
	_, err = tx.Exec(ctx, `
		INSERT INTO jobs (id, status, tenant, request_image_path, request_prompt, include_music, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
	`, id, models.StatusQueued, p.Tenant, p.ImagePath, p.Prompt, p.IncludeMusic, now)
	if err != nil {
		return models.Job{}, fmt.Errorf("insert job: %w", err)
	}
	if err := appendEvent(ctx, tx, id, nil, models.StatusQueued, "tenant="+p.Tenant); err != nil {
		return models.Job{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return models.Job{}, fmt.Errorf("commit: %w", err)
	}

	return models.Job{
		ID:               id,
		Status:           models.StatusQueued,
		CreatedAt:        models.NewTimestamp(now),
		UpdatedAt:        models.NewTimestamp(now),
		RequestImagePath: p.ImagePath,
		RequestPrompt:    p.Prompt,
		IncludeMusic:     p.IncludeMusic,
	}, nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+jobColumns+` FROM jobs WHERE id = $1`, id)
	job, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return models.Job{}, fmt.Errorf("job %s: %w", id, ErrNotFound)
	}
	return job, err
}

// ListJobs returns the newest jobs first.
func (s *Store) ListJobs(ctx context.Context, limit int) ([]models.Job, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := s.pool.Query(ctx, `SELECT `+jobColumns+` FROM jobs ORDER BY created_at DESC, id DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query jobs: %w", err)
	}
	defer rows.Close()

	jobs := make([]models.Job, 0)
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate jobs: %w", err)
	}
	return jobs, nil
}

// MarkProcessing moves a queued job to processing.
func (s *Store) MarkProcessing(ctx context.Context, id string) error {
	return s.transition(ctx, id, models.StatusProcessing, "worker picked up job", `status = $2`)
}

// MarkCompleted records the generated result.
func (s *Store) MarkCompleted(ctx context.Context, id, resultPath, resultURL string) error {
	return s.transition(ctx, id, models.StatusCompleted, resultPath,
		`status = $2, result_gcs_path = $3, result_public_url = $4, error_message = NULL`, resultPath, resultURL)
}

// MarkFailed records the failure reason.
func (s *Store) MarkFailed(ctx context.Context, id, reason string) error {
	if reason == "" {
		reason = "unknown error"
	}
	return s.transition(ctx, id, models.StatusFailed, reason,
		`status = $2, error_message = $3, result_gcs_path = NULL, result_public_url = NULL`, reason)
}

// SetMusicPrompt stores the music analysis of a processing job.
func (s *Store) SetMusicPrompt(ctx context.Context, id, prompt string) error {
	return s.setWhileProcessing(ctx, id, "music_prompt", prompt)
}

// SetThumbnail stores the preview URL of a processing job.
func (s *Store) SetThumbnail(ctx context.Context, id, url string) error {
	return s.setWhileProcessing(ctx, id, "thumbnail_url", url)
}

// setWhileProcessing updates one column of a job that is still processing.
// column is always a literal from this package.
func (s *Store) setWhileProcessing(ctx context.Context, id, column, value string) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE jobs SET `+column+` = $2, updated_at = GREATEST(NOW(), updated_at + INTERVAL '1 microsecond')
		WHERE id = $1 AND status = $3
	`, id, value, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("set %s: %w", column, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("set %s on %s: %w", column, id, ErrInvalidTransition)
	}
	return nil
}

// transition locks the row, checks the move is forward-only, applies set and
// appends an event, all in one transaction. updated_at always advances.
func (s *Store) transition(ctx context.Context, id string, to models.Status, detail, set string, args ...any) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current models.Status
	if err := tx.QueryRow(ctx, `SELECT status FROM jobs WHERE id = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("job %s: %w", id, ErrNotFound)
		}
		return fmt.Errorf("lock job: %w", err)
	}
	if current == to || !models.CanTransition(current, to) {
		return fmt.Errorf("job %s %s -> %s: %w", id, current, to, ErrInvalidTransition)
	}

	params := append([]any{id, to}, args...)
	if _, err := tx.Exec(ctx, `
		UPDATE jobs SET `+set+`, updated_at = GREATEST(NOW(), updated_at + INTERVAL '1 microsecond')
		WHERE id = $1
	`, params...); err != nil {
		return fmt.Errorf("update job: %w", err)
	}
	if err := appendEvent(ctx, tx, id, &current, to, detail); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func appendEvent(ctx context.Context, tx pgx.Tx, jobID string, from *models.Status, to models.Status, detail string) error {
	_, err := tx.Exec(ctx, `
		INSERT INTO job_events (job_id, from_status, to_status, detail, recorded_at)
		VALUES ($1, $2, $3, $4, NOW())
	`, jobID, from, to, detail)
	if err != nil {
		return fmt.Errorf("append job event: %w", err)
	}
	return nil
}

func scanJob(row pgx.Row) (models.Job, error) {
	var (
		job                   models.Job
		music, musicURL       pgtype.Text
		resultPath, resultURL pgtype.Text
		errMsg, thumbnail     pgtype.Text
		createdAt, updatedAt  time.Time
	)
	if err := row.Scan(&job.ID, &job.Status, &job.RequestImagePath, &job.RequestPrompt, &job.IncludeMusic,
		&music, &musicURL, &resultPath, &resultURL, &errMsg, &thumbnail, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, err
		}
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.MusicPrompt = textPtr(music)
	job.MusicURL = textPtr(musicURL)
	job.ResultPath = textPtr(resultPath)
	job.ResultURL = textPtr(resultURL)
	job.ErrorMessage = textPtr(errMsg)
	job.ThumbnailURL = textPtr(thumbnail)
	job.CreatedAt = models.NewTimestamp(createdAt)
	job.UpdatedAt = models.NewTimestamp(updatedAt)
	return job, nil
}

func textPtr(t pgtype.Text) *string {
	if t.Valid {
		return &t.String
	}
	return nil
}
