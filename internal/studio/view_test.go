package studio

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/internal/models"
)

type resolverFunc func(string) (string, error)

func (f resolverFunc) Resolve(p string) (string, error) { return f(p) }

func gcsResolver() ThumbnailResolver {
	return resolverFunc(func(p string) (string, error) {
		if !strings.HasPrefix(p, "gs://") {
			return "", errors.New("unsupported scheme")
		}
		return "https://storage.googleapis.com/" + strings.TrimPrefix(p, "gs://"), nil
	})
}

func TestRenderPreservesOrderAndBundles(t *testing.T) {
	url := "https://cdn.example.com/out.mp4"
	msg := "safety filter rejected the prompt"
	jobs := []models.Job{
		{ID: "c", Status: models.StatusCompleted, ResultURL: &url, RequestImagePath: "gs://b/assets/c.png"},
		{ID: "f", Status: models.StatusFailed, ErrorMessage: &msg, RequestImagePath: "gs://b/assets/f.png"},
		{ID: "q", Status: models.StatusQueued, RequestImagePath: "gs://b/assets/q.png"},
		{ID: "p", Status: models.StatusProcessing, RequestImagePath: "gs://b/assets/p.png"},
	}

	rows := Render(jobs, gcsResolver())
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"c", "f", "q", "p"}, []string{rows[0].JobID, rows[1].JobID, rows[2].JobID, rows[3].JobID})

	assert.Equal(t, IndicatorCompleted, rows[0].Indicator)
	assert.Equal(t, url, rows[0].ResultURL)
	assert.Empty(t, rows[0].ErrorText)
	assert.Equal(t, "https://storage.googleapis.com/b/assets/c.png", rows[0].Thumbnail)
	assert.Equal(t, "c.png", rows[0].AssetName)

	assert.Equal(t, IndicatorFailed, rows[1].Indicator)
	assert.Equal(t, msg, rows[1].ErrorText)
	assert.Empty(t, rows[1].ResultURL)

	for _, r := range rows[2:] {
		assert.Equal(t, IndicatorPending, r.Indicator)
		assert.Empty(t, r.ResultURL)
		assert.Empty(t, r.ErrorText)
		assert.NoError(t, r.Degraded)
	}
}

func TestRenderDegradesContractViolations(t *testing.T) {
	jobs := []models.Job{
		{ID: "no-url", Status: models.StatusCompleted},
		{ID: "no-msg", Status: models.StatusFailed},
		{ID: "odd", Status: "archived"},
	}
	rows := Render(jobs, nil)
	require.Len(t, rows, 3)
	for _, r := range rows {
		assert.Equal(t, IndicatorFailed, r.Indicator, r.JobID)
		assert.Equal(t, GenericFailureText, r.ErrorText, r.JobID)
		var cv *models.ContractViolation
		assert.True(t, errors.As(r.Degraded, &cv), r.JobID)
	}
}

func TestRenderThumbnailFailureIsPerRow(t *testing.T) {
	jobs := []models.Job{
		{ID: "bad", Status: models.StatusQueued, RequestImagePath: "/tmp/local.png"},
		{ID: "good", Status: models.StatusQueued, RequestImagePath: "gs://b/assets/ok.png"},
	}
	rows := Render(jobs, gcsResolver())
	assert.Equal(t, PlaceholderThumbnail, rows[0].Thumbnail)
	assert.Error(t, rows[0].ThumbnailErr)
	assert.Equal(t, "https://storage.googleapis.com/b/assets/ok.png", rows[1].Thumbnail)
	assert.NoError(t, rows[1].ThumbnailErr)
}

func TestRenderPrefersRenderedThumbnail(t *testing.T) {
	jobs := []models.Job{
		{ID: "rendered", Status: models.StatusCompleted, RequestImagePath: "/tmp/local.png",
			ResultURL: models.StringPtr("https://cdn/x.mp4"), ThumbnailURL: models.StringPtr("https://cdn/thumbnails/rendered.jpg")},
		{ID: "pending", Status: models.StatusQueued, RequestImagePath: "gs://b/assets/ok.png"},
	}
	rows := Render(jobs, gcsResolver())
	assert.Equal(t, "https://cdn/thumbnails/rendered.jpg", rows[0].Thumbnail)
	assert.NoError(t, rows[0].ThumbnailErr)
	assert.Equal(t, "https://storage.googleapis.com/b/assets/ok.png", rows[1].Thumbnail)
}

func TestRenderSurvivesPanickingResolver(t *testing.T) {
	panicky := resolverFunc(func(p string) (string, error) {
		if strings.Contains(p, "boom") {
			panic("nil bucket")
		}
		return "https://ok/" + p, nil
	})
	rows := Render([]models.Job{
		{ID: "1", Status: models.StatusQueued, RequestImagePath: "boom"},
		{ID: "2", Status: models.StatusQueued, RequestImagePath: "fine"},
	}, panicky)
	assert.Equal(t, PlaceholderThumbnail, rows[0].Thumbnail)
	assert.Equal(t, "https://ok/fine", rows[1].Thumbnail)
}

// A music-enabled job observed over three polls renders pending, then pending
// with the music prompt, then completed with a link and no subtext.
func TestMusicJobLifecycleAcrossPolls(t *testing.T) {
	created := models.NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	music := "ambient synth pad, 90bpm"
	result := "https://cdn.example.com/videos/out.mp4"
	base := models.Job{
		ID:               "7d1c",
		CreatedAt:        created,
		UpdatedAt:        created,
		RequestImagePath: "gs://media/assets/beach.png",
		RequestPrompt:    "waves at dusk",
		IncludeMusic:     true,
	}
	queued := base
	queued.Status = models.StatusQueued
	processing := base
	processing.Status = models.StatusProcessing
	processing.MusicPrompt = &music
	completed := base
	completed.Status = models.StatusCompleted
	completed.MusicPrompt = &music
	completed.ResultURL = &result

	clk := clockwork.NewFakeClock()
	lister := newScriptedLister(
		listResult{jobs: []models.Job{queued}},
		listResult{jobs: []models.Job{processing}},
		listResult{jobs: []models.Job{completed}},
	)
	p := NewPoller(lister, WithClock(clk))
	updates, unsubscribe := p.Subscribe()
	defer unsubscribe()
	require.NoError(t, p.Start(context.Background()))
	defer p.Stop()

	var rendered []Row
	for i := 1; i <= 3; i++ {
		if i > 1 {
			waitTimer(t, clk)
			clk.Advance(DefaultPollInterval)
		}
		select {
		case snap := <-updates:
			rows := Render(snap.Jobs, gcsResolver())
			require.Len(t, rows, 1)
			rendered = append(rendered, rows[0])
		case <-time.After(2 * time.Second):
			t.Fatalf("no snapshot for poll %d", i)
		}
	}

	assert.Equal(t, IndicatorPending, rendered[0].Indicator)
	assert.Empty(t, rendered[0].Subtext)

	assert.Equal(t, IndicatorPending, rendered[1].Indicator)
	assert.Equal(t, music, rendered[1].Subtext)

	assert.Equal(t, IndicatorCompleted, rendered[2].Indicator)
	assert.Equal(t, result, rendered[2].ResultURL)
	assert.Empty(t, rendered[2].Subtext)
}
