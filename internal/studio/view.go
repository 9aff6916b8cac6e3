package studio

import (
	"errors"
	"path"
	"strings"
	"time"

	"media-studio/internal/models"
)

// PlaceholderThumbnail is shown when a job has no rendered preview and its source
// image cannot be resolved.
const PlaceholderThumbnail = "https://placehold.co/48x48/png?text=IMG"

// GenericFailureText stands in for a missing or unusable failure reason.
const GenericFailureText = "generation failed"

// ThumbnailResolver maps a stored image path to a displayable URL.
type ThumbnailResolver interface {
	Resolve(path string) (string, error)
}

// Indicator is the presentation bucket of a row.
type Indicator string

const (
	IndicatorPending   Indicator = "pending"
	IndicatorCompleted Indicator = "completed"
	IndicatorFailed    Indicator = "failed"
)

// Row is the displayable form of one job.
type Row struct {
	JobID     string
	Status    models.Status
	Indicator Indicator
	Label     string
	// Subtext carries the music prompt while the job is pending.
	Subtext      string
	ResultURL    string
	ErrorText    string
	AssetName    string
	Thumbnail    string
	ThumbnailErr error
	CreatedAt    time.Time
	// Degraded holds the contract violation when the job's fields disagree with its status.
	Degraded error
}

// Render derives display rows from jobs, preserving their order. It never fails:
// inconsistent jobs render degraded and thumbnail failures stay local to their row.
func Render(jobs []models.Job, resolver ThumbnailResolver) []Row {
	rows := make([]Row, 0, len(jobs))
	for _, job := range jobs {
		rows = append(rows, renderRow(job, resolver))
	}
	return rows
}

func renderRow(job models.Job, resolver ThumbnailResolver) Row {
	row := Row{
		JobID:     job.ID,
		Status:    job.Status,
		AssetName: path.Base(job.RequestImagePath),
		CreatedAt: job.CreatedAt.Time,
	}
	if job.RequestImagePath == "" {
		row.AssetName = ""
	}

	state, verr := job.State()
	var cv *models.ContractViolation
	if errors.As(verr, &cv) {
		row.Degraded = cv
	}

	switch st := state.(type) {
	case models.Queued:
		row.Indicator, row.Label = IndicatorPending, "Queued"
		row.Subtext = musicSubtext(job)
	case models.Processing:
		row.Indicator, row.Label = IndicatorPending, "Processing"
		row.Subtext = musicSubtext(job)
	case models.Completed:
		row.Indicator, row.Label = IndicatorCompleted, "Completed"
		row.ResultURL = st.ResultURL
	case models.Failed:
		row.Indicator, row.Label = IndicatorFailed, "Failed"
		row.ErrorText = strings.TrimSpace(st.ErrorMessage)
		if row.ErrorText == "" || job.Status != models.StatusFailed {
			row.ErrorText = GenericFailureText
		}
	}

	if job.ThumbnailURL != nil && strings.TrimSpace(*job.ThumbnailURL) != "" {
		row.Thumbnail = strings.TrimSpace(*job.ThumbnailURL)
		return row
	}
	row.Thumbnail, row.ThumbnailErr = resolveThumbnail(resolver, job.RequestImagePath)
	return row
}

func musicSubtext(job models.Job) string {
	if !job.HasMusicPrompt() {
		return ""
	}
	return strings.TrimSpace(*job.MusicPrompt)
}

func resolveThumbnail(resolver ThumbnailResolver, imagePath string) (url string, err error) {
	if resolver == nil {
		return "", nil
	}
	defer func() {
		if r := recover(); r != nil {
			url, err = PlaceholderThumbnail, errors.New("thumbnail resolver panicked")
		}
	}()
	url, err = resolver.Resolve(imagePath)
	if err != nil || url == "" {
		if err == nil {
			err = errors.New("empty thumbnail url")
		}
		return PlaceholderThumbnail, err
	}
	return url, nil
}
