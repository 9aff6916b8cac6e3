package store

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/internal/models"
)

// newTestStore connects to TEST_POSTGRES_DSN and applies migrations.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set")
	}
	ctx := context.Background()
	s, err := New(ctx, dsn)
	require.NoError(t, err)
	t.Cleanup(s.Close)
	require.NoError(t, s.RunMigrations(ctx))
	return s
}

func createTestJob(t *testing.T, s *Store) models.Job {
	t.Helper()
	job, err := s.CreateJob(context.Background(), CreateJobParams{
		Tenant:       "store-test",
		ImagePath:    "s3://media/assets/cat.png",
		Prompt:       "A cat surfing",
		IncludeMusic: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = s.pool.Exec(context.Background(), `DELETE FROM jobs WHERE id = $1`, job.ID)
	})
	return job
}

func TestJobTransitionsMoveForwardOnly(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, s)

	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusQueued, got.Status)
	last := got.UpdatedAt

	require.NoError(t, s.MarkProcessing(ctx, job.ID))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusProcessing, got.Status)
	assert.True(t, got.UpdatedAt.After(last.Time), "updated_at must advance")
	last = got.UpdatedAt

	require.NoError(t, s.SetMusicPrompt(ctx, job.ID, "ambient pad"))
	require.NoError(t, s.SetThumbnail(ctx, job.ID, "https://cdn/thumbnails/x.jpg"))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.True(t, got.UpdatedAt.After(last.Time))
	require.NotNil(t, got.ThumbnailURL)
	assert.True(t, got.HasMusicPrompt())
	last = got.UpdatedAt

	require.NoError(t, s.MarkCompleted(ctx, job.ID, "s3://media/generated_videos/x.mp4", "https://cdn/x.mp4"))
	got, err = s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCompleted, got.Status)
	assert.True(t, got.UpdatedAt.After(last.Time))
	assert.NoError(t, got.Validate())

	assert.ErrorIs(t, s.MarkProcessing(ctx, job.ID), ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkFailed(ctx, job.ID, "late failure"), ErrInvalidTransition)
	assert.ErrorIs(t, s.MarkCompleted(ctx, job.ID, "p", "u"), ErrInvalidTransition)
	assert.ErrorIs(t, s.SetMusicPrompt(ctx, job.ID, "late"), ErrInvalidTransition)

	final, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, got, final)
}

func TestMarkFailedFromQueued(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	job := createTestJob(t, s)

	require.NoError(t, s.MarkFailed(ctx, job.ID, ""))
	got, err := s.GetJob(ctx, job.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusFailed, got.Status)
	require.NotNil(t, got.ErrorMessage)
	assert.Equal(t, "unknown error", *got.ErrorMessage)
	assert.Nil(t, got.ResultURL)
	assert.ErrorIs(t, s.MarkProcessing(ctx, job.ID), ErrInvalidTransition)
}

func TestMissingJob(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetJob(ctx, "00000000-0000-0000-0000-000000000000")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.MarkProcessing(ctx, "00000000-0000-0000-0000-000000000000"), ErrNotFound)
}

func TestTemplateCRUD(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	created, err := s.CreateTemplate(ctx, models.Template{Name: "Sunset", UserTemplateText: "a slow pan at dusk"})
	require.NoError(t, err)
	require.NotZero(t, created.ID)
	t.Cleanup(func() { _ = s.DeleteTemplate(context.Background(), created.ID) })

	created.Description = "golden hour"
	_, err = s.UpdateTemplate(ctx, created)
	require.NoError(t, err)

	got, err := s.GetTemplate(ctx, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created, got)

	require.NoError(t, s.DeleteTemplate(ctx, created.ID))
	_, err = s.GetTemplate(ctx, created.ID)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.ErrorIs(t, s.DeleteTemplate(ctx, created.ID), ErrNotFound)
}
