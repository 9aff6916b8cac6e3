package worker

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"media-studio/internal/config"
	"media-studio/internal/generation"
	"media-studio/internal/models"
	"media-studio/internal/storage"
	"media-studio/internal/store"
)

func TestBackoffWithJitter(t *testing.T) {
	rand.Seed(1)
	base := time.Second
	max := 8 * time.Second

	b1 := backoffWithJitter(base, max, 1)
	if b1 < base/2 || b1 > max {
		t.Fatalf("backoff out of range: %s", b1)
	}

	b3 := backoffWithJitter(base, max, 3)
	if b3 < 2*base || b3 > max {
		t.Fatalf("backoff out of range for attempt 3: %s", b3)
	}

	b50 := backoffWithJitter(base, max, 50)
	if b50 < max/2 || b50 > max {
		t.Fatalf("backoff not capped: %s", b50)
	}
}

type memStore struct {
	mu   sync.Mutex
	jobs map[string]models.Job
}

func newMemStore(jobs ...models.Job) *memStore {
	s := &memStore{jobs: map[string]models.Job{}}
	for _, j := range jobs {
		s.jobs[j.ID] = j
	}
	return s
}

func (s *memStore) GetJob(_ context.Context, id string) (models.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return models.Job{}, fmt.Errorf("job %s: %w", id, store.ErrNotFound)
	}
	return j, nil
}

func (s *memStore) move(id string, to models.Status, apply func(*models.Job)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return store.ErrNotFound
	}
	if j.Status == to || !models.CanTransition(j.Status, to) {
		return store.ErrInvalidTransition
	}
	j.Status = to
	if apply != nil {
		apply(&j)
	}
	s.jobs[id] = j
	return nil
}

func (s *memStore) MarkProcessing(_ context.Context, id string) error {
	return s.move(id, models.StatusProcessing, nil)
}

func (s *memStore) SetMusicPrompt(_ context.Context, id, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status != models.StatusProcessing {
		return store.ErrInvalidTransition
	}
	j.MusicPrompt = &prompt
	s.jobs[id] = j
	return nil
}

func (s *memStore) SetThumbnail(_ context.Context, id, url string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	j := s.jobs[id]
	if j.Status != models.StatusProcessing {
		return store.ErrInvalidTransition
	}
	j.ThumbnailURL = &url
	s.jobs[id] = j
	return nil
}

func (s *memStore) MarkCompleted(_ context.Context, id, path, url string) error {
	return s.move(id, models.StatusCompleted, func(j *models.Job) {
		j.ResultPath, j.ResultURL = &path, &url
	})
}

func (s *memStore) MarkFailed(_ context.Context, id, reason string) error {
	return s.move(id, models.StatusFailed, func(j *models.Job) { j.ErrorMessage = &reason })
}

type memQueue struct {
	mu    sync.Mutex
	acked []string
	dead  []string
}

func (q *memQueue) DequeueWithLease(context.Context) (string, error) { return "", nil }
func (q *memQueue) ExtendLease(context.Context, string, time.Duration) error { return nil }
func (q *memQueue) RequeueExpired(context.Context, int64) ([]string, error) { return nil, nil }
func (q *memQueue) ReadyDepth(context.Context) (int64, error) { return 0, nil }
func (q *memQueue) InFlight(context.Context) (int64, error) { return 0, nil }
func (q *memQueue) Ack(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.acked = append(q.acked, id)
	return nil
}
func (q *memQueue) DeadLetter(_ context.Context, id string) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.dead = append(q.dead, id)
	return nil
}

func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 200, G: 40, B: 40, A: 255})
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

type fixture struct {
	proc    *Processor
	store   *memStore
	queue   *memQueue
	objects *storage.Local
}

func newFixture(t *testing.T, jobs ...models.Job) fixture {
	t.Helper()
	cfg := config.Config{
		PublicBaseURL:  "http://studio.test",
		ThumbnailWidth: 8,
	}
	objects := storage.NewLocal(t.TempDir())
	_, err := objects.Put(context.Background(), "assets/cat.png", pngBytes(t, 32, 16), "image/png")
	require.NoError(t, err)

	st := newMemStore(jobs...)
	q := &memQueue{}
	proc := NewProcessor(cfg, Deps{
		Queue:     q,
		Store:     st,
		Objects:   objects,
		Generator: generation.NewSimulated("veo-test", 0),
		Logger:    zerolog.Nop(),
	}, "w-1")
	return fixture{proc: proc, store: st, queue: q, objects: objects}
}

func queuedJob(id, prompt string, music bool) models.Job {
	now := models.NewTimestamp(time.Now())
	return models.Job{
		ID:               id,
		Status:           models.StatusQueued,
		CreatedAt:        now,
		UpdatedAt:        now,
		RequestImagePath: "file://assets/cat.png",
		RequestPrompt:    prompt,
		IncludeMusic:     music,
	}
}

func TestProcessCompletesJob(t *testing.T) {
	f := newFixture(t, queuedJob("job-1", "A cat surfing", true))

	require.NoError(t, f.proc.Process(context.Background(), "job-1"))

	job, _ := f.store.GetJob(context.Background(), "job-1")
	assert.Equal(t, models.StatusCompleted, job.Status)
	require.NotNil(t, job.ResultURL)
	assert.Equal(t, "http://studio.test/files/generated_videos/job-1.mp4", *job.ResultURL)
	assert.Equal(t, "file://generated_videos/job-1.mp4", *job.ResultPath)
	assert.True(t, job.HasMusicPrompt())
	assert.NoError(t, job.Validate())
	assert.Equal(t, []string{"job-1"}, f.queue.acked)
	require.NotNil(t, job.ThumbnailURL)
	assert.Equal(t, "http://studio.test/files/thumbnails/job-1.jpg", *job.ThumbnailURL)

	thumb, contentType, err := f.objects.Get(context.Background(), ThumbnailKey("job-1"))
	require.NoError(t, err)
	assert.Equal(t, "image/jpeg", contentType)
	img, _, err := image.Decode(bytes.NewReader(thumb))
	require.NoError(t, err)
	assert.Equal(t, 8, img.Bounds().Dx())
	assert.Equal(t, 4, img.Bounds().Dy())
}

func TestProcessRecordsFailure(t *testing.T) {
	f := newFixture(t, queuedJob("job-2", "explode "+generation.FailMarker, false))

	require.NoError(t, f.proc.Process(context.Background(), "job-2"))

	job, _ := f.store.GetJob(context.Background(), "job-2")
	assert.Equal(t, models.StatusFailed, job.Status)
	require.NotNil(t, job.ErrorMessage)
	assert.Contains(t, *job.ErrorMessage, "safety filter")
	assert.Nil(t, job.ResultURL)
	assert.False(t, job.HasMusicPrompt())
	assert.Equal(t, []string{"job-2"}, f.queue.acked)
}

func TestProcessMissingSourceStillGenerates(t *testing.T) {
	j := queuedJob("job-3", "A dog", false)
	j.RequestImagePath = "file://assets/missing.png"
	f := newFixture(t, j)

	require.NoError(t, f.proc.Process(context.Background(), "job-3"))

	job, _ := f.store.GetJob(context.Background(), "job-3")
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Nil(t, job.ThumbnailURL)
	_, _, err := f.objects.Get(context.Background(), ThumbnailKey("job-3"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestProcessSkipsTerminalAndUnknown(t *testing.T) {
	done := queuedJob("job-4", "p", false)
	done.Status = models.StatusCompleted
	done.ResultURL = models.StringPtr("https://cdn/x.mp4")
	f := newFixture(t, done)

	require.NoError(t, f.proc.Process(context.Background(), "job-4"))
	require.NoError(t, f.proc.Process(context.Background(), "ghost"))

	job, _ := f.store.GetJob(context.Background(), "job-4")
	assert.Equal(t, "https://cdn/x.mp4", *job.ResultURL)
	assert.Equal(t, []string{"job-4", "ghost"}, f.queue.acked)
}

func TestProcessResumesReclaimedJob(t *testing.T) {
	j := queuedJob("job-5", "A bird", false)
	j.Status = models.StatusProcessing
	f := newFixture(t, j)

	require.NoError(t, f.proc.Process(context.Background(), "job-5"))

	job, _ := f.store.GetJob(context.Background(), "job-5")
	assert.Equal(t, models.StatusCompleted, job.Status)
	require.NotNil(t, job.ThumbnailURL)
}

func TestProcessKeepsExistingThumbnail(t *testing.T) {
	j := queuedJob("job-6", "A fox", false)
	j.Status = models.StatusProcessing
	j.ThumbnailURL = models.StringPtr("http://studio.test/files/thumbnails/job-6.jpg")
	f := newFixture(t, j)

	require.NoError(t, f.proc.Process(context.Background(), "job-6"))

	job, _ := f.store.GetJob(context.Background(), "job-6")
	assert.Equal(t, models.StatusCompleted, job.Status)
	assert.Equal(t, "http://studio.test/files/thumbnails/job-6.jpg", *job.ThumbnailURL)
	_, _, err := f.objects.Get(context.Background(), ThumbnailKey("job-6"))
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestThumbnailerDownloadsRemoteSource(t *testing.T) {
	src := pngBytes(t, 10, 10)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		_, _ = w.Write(src)
	}))
	defer srv.Close()

	objects := storage.NewLocal(t.TempDir())
	thumbs := NewThumbnailer(objects, storage.NewResolver(config.Config{}), config.Config{ThumbnailWidth: 5})

	obj, err := thumbs.Render(context.Background(), "job-9", srv.URL+"/cat.png")
	require.NoError(t, err)
	assert.Equal(t, "file://thumbnails/job-9.jpg", obj.URI)

	data, _, err := objects.Get(context.Background(), "thumbnails/job-9.jpg")
	require.NoError(t, err)
	img, _, err := image.Decode(bytes.NewReader(data))
	require.NoError(t, err)
	assert.Equal(t, 5, img.Bounds().Dx())
}

func TestThumbnailerRejectsOversizedDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(bytes.Repeat([]byte("x"), 64))
	}))
	defer srv.Close()

	thumbs := NewThumbnailer(storage.NewLocal(t.TempDir()), storage.NewResolver(config.Config{}), config.Config{AssetMaxBytes: 16})
	_, err := thumbs.Render(context.Background(), "job-10", srv.URL)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "too large")
}
