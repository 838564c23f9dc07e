package models

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/desertthunder/playlist-converter/internal/shared"
)

// Status is the lifecycle state of a conversion job.
type Status string

const (
	StatusQueued     Status = "queued"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
)

// Rank orders statuses along the lifecycle. Both terminal statuses share the highest rank.
func (s Status) Rank() int {
	switch s {
	case StatusQueued:
		return 0
	case StatusProcessing:
		return 1
	case StatusCompleted, StatusFailed:
		return 2
	default:
		return -1
	}
}

// Terminal reports whether s is completed or failed.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	return s.Rank() >= 0
}

// CanTransition reports whether a job may move from s to next.
func (s Status) CanTransition(next Status) bool {
	switch s {
	case StatusQueued:
		return next == StatusProcessing
	case StatusProcessing:
		return next == StatusCompleted || next == StatusFailed
	default:
		return false
	}
}

// ConversionJob is one request to migrate one playlist from a source to a destination catalog.
//
// The JSON form is the queue payload pushed by the upstream service.
type ConversionJob struct {
	ID                   string    `json:"id"`
	SourcePlaylistID     string    `json:"source_playlist_id"`
	SourcePlaylistName   string    `json:"source_playlist_name"`
	SourceSessionID      string    `json:"source_session_id"`
	DestinationSessionID string    `json:"destination_session_id"`
	CreatedAt            time.Time `json:"created_at"`

	Total     int    `json:"total,omitempty"`
	Processed int    `json:"processed,omitempty"`
	Status    Status `json:"status,omitempty"`
}

// NewConversionJob creates a queued job with a generated ID.
func NewConversionJob(playlistID, playlistName, sourceSession, destinationSession string) *ConversionJob {
	return &ConversionJob{
		ID:                   shared.GenerateID(),
		SourcePlaylistID:     playlistID,
		SourcePlaylistName:   playlistName,
		SourceSessionID:      sourceSession,
		DestinationSessionID: destinationSession,
		CreatedAt:            time.Now().UTC(),
		Status:               StatusQueued,
	}
}

// DecodeJob parses a queue payload. Any decoding or validation failure wraps [shared.ErrMalformedJob].
//
// Only queued jobs are accepted and the progress counters are cleared; both belong to the worker.
func DecodeJob(data []byte) (*ConversionJob, error) {
	var job ConversionJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedJob, err)
	}

	if job.Status == "" {
		job.Status = StatusQueued
	}
	if err := job.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrMalformedJob, err)
	}
	if job.Status != StatusQueued {
		return nil, fmt.Errorf("%w: job %s arrived as %s", shared.ErrMalformedJob, job.ID, job.Status)
	}
	job.Total, job.Processed = 0, 0

	return &job, nil
}

// Encode returns the queue payload for j.
func (j *ConversionJob) Encode() ([]byte, error) {
	return json.Marshal(j)
}

// Validate checks that the identifiers needed to process the job are present.
func (j *ConversionJob) Validate() error {
	switch {
	case j.ID == "":
		return fmt.Errorf("%w: job id is required", shared.ErrInvalidInput)
	case j.SourcePlaylistID == "":
		return fmt.Errorf("%w: source playlist id is required", shared.ErrInvalidInput)
	case j.SourceSessionID == "":
		return fmt.Errorf("%w: source session id is required", shared.ErrInvalidInput)
	case j.DestinationSessionID == "":
		return fmt.Errorf("%w: destination session id is required", shared.ErrInvalidInput)
	case !j.Status.Valid():
		return fmt.Errorf("%w: unknown status %q", shared.ErrInvalidInput, j.Status)
	}
	return nil
}

// Transition moves the job to next, rejecting anything outside queued -> processing -> {completed, failed}.
func (j *ConversionJob) Transition(next Status) error {
	if !j.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", shared.ErrInvalidTransition, j.Status, next)
	}
	j.Status = next
	return nil
}

// Snapshot projects the job's current counters into a [ConversionStatus].
func (j *ConversionJob) Snapshot() ConversionStatus {
	return ConversionStatus{
		JobID:     j.ID,
		Status:    j.Status,
		Total:     j.Total,
		Processed: j.Processed,
		UpdatedAt: time.Now().UTC(),
	}
}
