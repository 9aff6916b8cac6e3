package models

import (
	"fmt"
	"strings"
)

// Status enumerates the lifecycle states of a generation job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Valid reports whether s is one of the known lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// IsTerminal reports whether no further transitions are possible.
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

func (s Status) rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	}
	return -1
}

// CanTransition reports whether a job may move from one status to another.
// Staying in the same status is allowed; moving backwards or out of a terminal
// status is not.
func CanTransition(from, to Status) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	if from.IsTerminal() {
		return false
	}
	return to.rank() > from.rank()
}

// Job is one generation request and its server-tracked outcome.
type Job struct {
	ID               string    `json:"id"`
	Status           Status    `json:"status"`
	CreatedAt        Timestamp `json:"created_at"`
	UpdatedAt        Timestamp `json:"updated_at"`
	RequestImagePath string    `json:"request_image_path"`
	RequestPrompt    string    `json:"request_prompt"`
	IncludeMusic     bool      `json:"include_music"`
	MusicPrompt      *string   `json:"music_prompt"`
	MusicURL         *string   `json:"music_url"`
	ResultPath       *string   `json:"result_gcs_path"`
	ResultURL        *string   `json:"result_public_url"`
	ErrorMessage     *string   `json:"error_message"`
	ThumbnailURL     *string   `json:"thumbnail_url"`
}

// Validate checks the field invariants implied by the job's status.
func (j Job) Validate() error {
	var problems []string
	if j.ID == "" {
		problems = append(problems, "missing id")
	}
	if !j.Status.Valid() {
		problems = append(problems, fmt.Sprintf("unknown status %q", j.Status))
	}
	hasResult := present(j.ResultURL)
	hasError := present(j.ErrorMessage)
	switch j.Status {
	case StatusCompleted:
		if !hasResult {
			problems = append(problems, "completed without result url")
		}
		if hasError {
			problems = append(problems, "completed with error message")
		}
	case StatusFailed:
		if !hasError {
			problems = append(problems, "failed without error message")
		}
		if hasResult {
			problems = append(problems, "failed with result url")
		}
	default:
		if hasResult {
			problems = append(problems, "result url before completion")
		}
		if hasError {
			problems = append(problems, "error message before failure")
		}
	}
	if raw, bad := j.CreatedAt.Malformed(); bad {
		problems = append(problems, fmt.Sprintf("unreadable created_at %q", raw))
	}
	if raw, bad := j.UpdatedAt.Malformed(); bad {
		problems = append(problems, fmt.Sprintf("unreadable updated_at %q", raw))
	}
	if !j.CreatedAt.IsZero() && !j.UpdatedAt.IsZero() && j.UpdatedAt.Before(j.CreatedAt.Time) {
		problems = append(problems, "updated_at precedes created_at")
	}
	if len(problems) == 0 {
		return nil
	}
	return &ContractViolation{JobID: j.ID, Status: j.Status, Reason: strings.Join(problems, "; ")}
}

// HasMusicPrompt reports whether music analysis produced a prompt for the job.
func (j Job) HasMusicPrompt() bool {
	return present(j.MusicPrompt)
}

// ContractViolation reports a job whose fields disagree with its status.
type ContractViolation struct {
	JobID  string
	Status Status
	Reason string
}

func (e *ContractViolation) Error() string {
	return fmt.Sprintf("job %s (%s): %s", e.JobID, e.Status, e.Reason)
}

// GenerationRequest is the client-side input bundle for one submission.
type GenerationRequest struct {
	AssetRef     string
	TemplateText string
	IncludeMusic bool
}

func present(v *string) bool {
	return v != nil && strings.TrimSpace(*v) != ""
}

// StringPtr returns a pointer to v, or nil when v is empty.
func StringPtr(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
