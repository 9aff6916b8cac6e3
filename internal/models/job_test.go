package models

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusQueued, StatusQueued, true},
		{StatusQueued, StatusProcessing, true},
		{StatusQueued, StatusFailed, true},
		{StatusProcessing, StatusCompleted, true},
		{StatusProcessing, StatusFailed, true},
		{StatusProcessing, StatusQueued, false},
		{StatusCompleted, StatusProcessing, false},
		{StatusCompleted, StatusFailed, false},
		{StatusFailed, StatusQueued, false},
		{Status("paused"), StatusQueued, false},
	}
	for _, tc := range cases {
		t.Run(string(tc.from)+"->"+string(tc.to), func(t *testing.T) {
			assert.Equal(t, tc.want, CanTransition(tc.from, tc.to))
		})
	}
}

func TestJobValidate(t *testing.T) {
	created := NewTimestamp(time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC))
	url := "https://cdn.example.com/out.mp4"
	msg := "veo quota exceeded"

	cases := []struct {
		name    string
		job     Job
		wantErr bool
	}{
		{name: "queued", job: Job{ID: "a", Status: StatusQueued, CreatedAt: created, UpdatedAt: created}},
		{name: "completed with url", job: Job{ID: "a", Status: StatusCompleted, ResultURL: &url}},
		{name: "failed with message", job: Job{ID: "a", Status: StatusFailed, ErrorMessage: &msg}},
		{name: "completed without url", job: Job{ID: "a", Status: StatusCompleted}, wantErr: true},
		{name: "failed without message", job: Job{ID: "a", Status: StatusFailed}, wantErr: true},
		{name: "processing with result", job: Job{ID: "a", Status: StatusProcessing, ResultURL: &url}, wantErr: true},
		{name: "completed with error", job: Job{ID: "a", Status: StatusCompleted, ResultURL: &url, ErrorMessage: &msg}, wantErr: true},
		{name: "unknown status", job: Job{ID: "a", Status: "paused"}, wantErr: true},
		{
			name: "updated before created",
			job: Job{ID: "a", Status: StatusQueued, CreatedAt: created,
				UpdatedAt: NewTimestamp(created.Add(-time.Minute))},
			wantErr: true,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.job.Validate()
			if !tc.wantErr {
				require.NoError(t, err)
				return
			}
			var cv *ContractViolation
			require.True(t, errors.As(err, &cv), "expected ContractViolation, got %v", err)
			assert.Equal(t, tc.job.ID, cv.JobID)
		})
	}
}

func TestJobState(t *testing.T) {
	url := "https://cdn.example.com/out.mp4"
	path := "s3://media/videos/a.mp4"

	st, err := Job{ID: "a", Status: StatusCompleted, ResultURL: &url, ResultPath: &path}.State()
	require.NoError(t, err)
	assert.Equal(t, Completed{ResultURL: url, ResultPath: path}, st)

	st, err = Job{ID: "a", Status: StatusCompleted}.State()
	require.Error(t, err)
	assert.Equal(t, StatusFailed, st.Status())

	st, err = Job{ID: "a", Status: StatusFailed}.State()
	require.Error(t, err)
	assert.Equal(t, Failed{}, st)

	st, err = Job{ID: "a", Status: StatusProcessing}.State()
	require.NoError(t, err)
	assert.Equal(t, Processing{}, st)
}

func TestJobJSONNullableFields(t *testing.T) {
	raw := `{
		"id": "3f2a",
		"status": "queued",
		"created_at": "2024-05-01T10:00:00.123456",
		"updated_at": "2024-05-01T10:00:00.123456",
		"request_image_path": "gs://bucket/assets/cat.png",
		"request_prompt": "a cat on a boat",
		"include_music": true,
		"music_prompt": null,
		"result_gcs_path": null,
		"result_public_url": null,
		"error_message": null
	}`
	var job Job
	require.NoError(t, json.Unmarshal([]byte(raw), &job))
	assert.Equal(t, StatusQueued, job.Status)
	assert.Nil(t, job.MusicPrompt)
	assert.False(t, job.HasMusicPrompt())
	assert.Equal(t, 2024, job.CreatedAt.Year())
	assert.Equal(t, 123456000, job.CreatedAt.Nanosecond())
	require.NoError(t, job.Validate())

	out, err := json.Marshal(job)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"music_prompt":null`)
	assert.Contains(t, string(out), `"created_at":"2024-05-01T10:00:00.123456Z"`)
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-05-01T10:00:00+09:00")
	require.NoError(t, err)
	assert.Equal(t, 1, ts.Hour())

	_, err = ParseTimestamp("yesterday")
	assert.Error(t, err)
}

func TestJobJSONUnreadableTimestampDegradesRow(t *testing.T) {
	raw := `[
		{"id": "a", "status": "queued", "created_at": "2024-05-01T10:00:00", "updated_at": "2024-05-01T10:00:00"},
		{"id": "b", "status": "queued", "created_at": "yesterday", "updated_at": "2024-05-01T10:00:00"}
	]`
	var jobs []Job
	require.NoError(t, json.Unmarshal([]byte(raw), &jobs))
	require.Len(t, jobs, 2)
	require.NoError(t, jobs[0].Validate())

	assert.True(t, jobs[1].CreatedAt.IsZero())
	got, bad := jobs[1].CreatedAt.Malformed()
	assert.True(t, bad)
	assert.Equal(t, "yesterday", got)
	_, bad = jobs[1].UpdatedAt.Malformed()
	assert.False(t, bad)

	var cv *ContractViolation
	require.True(t, errors.As(jobs[1].Validate(), &cv))
	assert.Equal(t, "b", cv.JobID)
	assert.Contains(t, cv.Reason, "created_at")

	st, err := jobs[1].State()
	assert.Equal(t, Queued{}, st)
	assert.Error(t, err)
}
