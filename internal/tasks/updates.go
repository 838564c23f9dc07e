package tasks

import (
	"fmt"

	"github.com/desertthunder/playlist-converter/internal/models"
)

// ProgressUpdate represents a progress event while a job is processed.
//
// Used to send real-time updates to the CLI or log output of the worker.
type ProgressUpdate struct {
	JobID   string
	Stage   models.Stage
	Step    int    // Current step number within stage
	Total   int    // Total steps in this stage
	Message string // Human-readable message for display
	Data    any    // Optional stage-specific data
}

func credentialsUpdate(job *models.ConversionJob) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   models.StageCredentials,
		Step:    1,
		Total:   1,
		Message: "Resolving source and destination sessions...",
	}
}

func fetchTracksUpdate(job *models.ConversionJob, count int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   models.StageFetchTracks,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found playlist: %s (%d tracks)", job.SourcePlaylistName, count),
	}
}

func matchUpdate(job *models.ConversionJob, processed, total int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   models.StageMatch,
		Step:    processed,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Matching tracks...", processed, total),
	}
}

func createPlaylistUpdate(job *models.ConversionJob, matched int) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   models.StageCreatePlaylist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Creating destination playlist with %d tracks...", matched),
	}
}

func completedUpdate(job *models.ConversionJob, outcome *Outcome) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   models.StagePersist,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("✓ %s: %d/%d matched (playlist %s)", job.SourcePlaylistName, outcome.Matched, outcome.Total, outcome.DestinationPlaylistID),
		Data:    outcome,
	}
}

func failedUpdate(job *models.ConversionJob, stage models.Stage, cause models.Cause, err error) ProgressUpdate {
	return ProgressUpdate{
		JobID:   job.ID,
		Stage:   stage,
		Message: fmt.Sprintf("✗ %s failed at %s (%s): %v", job.SourcePlaylistName, stage, cause, err),
	}
}
