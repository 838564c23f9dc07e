package models

import (
	"fmt"
	"time"

	"github.com/desertthunder/playlist-converter/internal/shared"
)

// ConversionRecord is the durable outcome of one job.
//
// Append-only: once written, only the completion timestamp may change.
type ConversionRecord struct {
	id                    string
	sequence              int
	sourcePlaylistID      string
	sourcePlaylistName    string
	totalTracks           int
	matchedTracks         int
	destinationPlaylistID string
	status                Status
	failureCause          Cause
	failureStage          Stage
	createdAt             time.Time
	completedAt           *time.Time
}

// NewConversionRecord builds a record with the given terminal status for job.
func NewConversionRecord(job *ConversionJob, status Status, matched int, destinationPlaylistID string) *ConversionRecord {
	return &ConversionRecord{
		id:                    job.ID,
		sourcePlaylistID:      job.SourcePlaylistID,
		sourcePlaylistName:    job.SourcePlaylistName,
		totalTracks:           job.Total,
		matchedTracks:         matched,
		destinationPlaylistID: destinationPlaylistID,
		status:                status,
		createdAt:             job.CreatedAt,
	}
}

// NewFailureRecord builds the minimal record for a job that failed at stage.
func NewFailureRecord(job *ConversionJob, stage Stage, cause Cause) *ConversionRecord {
	r := NewConversionRecord(job, StatusFailed, 0, "")
	r.failureStage = stage
	r.failureCause = cause
	return r
}

// RestoreConversionRecord rebuilds a record from stored columns.
func RestoreConversionRecord(
	id string, sequence int, playlistID, playlistName string, total, matched int,
	destinationPlaylistID string, status Status, cause Cause, stage Stage,
	createdAt time.Time, completedAt *time.Time,
) *ConversionRecord {
	return &ConversionRecord{
		id:                    id,
		sequence:              sequence,
		sourcePlaylistID:      playlistID,
		sourcePlaylistName:    playlistName,
		totalTracks:           total,
		matchedTracks:         matched,
		destinationPlaylistID: destinationPlaylistID,
		status:                status,
		failureCause:          cause,
		failureStage:          stage,
		createdAt:             createdAt,
		completedAt:           completedAt,
	}
}

func (r *ConversionRecord) ID() string                    { return r.id }
func (r *ConversionRecord) Sequence() int                 { return r.sequence }
func (r *ConversionRecord) SourcePlaylistID() string      { return r.sourcePlaylistID }
func (r *ConversionRecord) SourcePlaylistName() string    { return r.sourcePlaylistName }
func (r *ConversionRecord) TotalTracks() int              { return r.totalTracks }
func (r *ConversionRecord) MatchedTracks() int            { return r.matchedTracks }
func (r *ConversionRecord) DestinationPlaylistID() string { return r.destinationPlaylistID }
func (r *ConversionRecord) Status() Status                { return r.status }
func (r *ConversionRecord) FailureCause() Cause           { return r.failureCause }
func (r *ConversionRecord) FailureStage() Stage           { return r.failureStage }
func (r *ConversionRecord) CreatedAt() time.Time          { return r.createdAt }
func (r *ConversionRecord) CompletedAt() *time.Time       { return r.completedAt }

func (r *ConversionRecord) SetSequence(seq int)         { r.sequence = seq }
func (r *ConversionRecord) SetCompletedAt(t *time.Time) { r.completedAt = t }

// Validate checks the record against the durable schema's constraints.
func (r *ConversionRecord) Validate() error {
	if r.id == "" {
		return fmt.Errorf("%w: conversion id is required", shared.ErrInvalidInput)
	}
	if r.sourcePlaylistID == "" {
		return fmt.Errorf("%w: source playlist id is required", shared.ErrInvalidInput)
	}
	if !r.status.Terminal() {
		return fmt.Errorf("%w: record status must be terminal, got %q", shared.ErrInvalidInput, r.status)
	}
	if r.matchedTracks < 0 || r.matchedTracks > r.totalTracks {
		return fmt.Errorf("%w: matched tracks %d out of range [0, %d]", shared.ErrInvalidInput, r.matchedTracks, r.totalTracks)
	}
	if r.status == StatusFailed && r.failureCause == CauseNone {
		return fmt.Errorf("%w: failed record needs a cause", shared.ErrInvalidInput)
	}
	return nil
}

// TrackLog is the durable audit row for one track of one conversion.
type TrackLog struct {
	id                string
	conversionID      string
	position          int
	trackName         string
	artistName        string
	destinationItemID string
	matchScore        *float64
	outcome           Outcome
	cause             Cause
	createdAt         time.Time
}

// NewTrackLog builds the audit row for result. A score is stored only when a candidate was scored.
func NewTrackLog(conversionID string, result MatchResult, at time.Time) *TrackLog {
	l := &TrackLog{
		id:                shared.GenerateID(),
		conversionID:      conversionID,
		position:          result.Track.Position,
		trackName:         result.Track.Title,
		artistName:        result.Track.ArtistName(),
		destinationItemID: result.DestinationID,
		outcome:           result.Outcome,
		cause:             result.Cause,
		createdAt:         at,
	}
	if result.Outcome != OutcomeErrored && result.Score > 0 {
		score := result.Score
		l.matchScore = &score
	}
	return l
}

// RestoreTrackLog rebuilds a log row from stored columns.
func RestoreTrackLog(
	id, conversionID string, position int, trackName, artistName, destinationItemID string,
	matchScore *float64, outcome Outcome, cause Cause, createdAt time.Time,
) *TrackLog {
	return &TrackLog{
		id:                id,
		conversionID:      conversionID,
		position:          position,
		trackName:         trackName,
		artistName:        artistName,
		destinationItemID: destinationItemID,
		matchScore:        matchScore,
		outcome:           outcome,
		cause:             cause,
		createdAt:         createdAt,
	}
}

func (l *TrackLog) ID() string                { return l.id }
func (l *TrackLog) ConversionID() string      { return l.conversionID }
func (l *TrackLog) Position() int             { return l.position }
func (l *TrackLog) TrackName() string         { return l.trackName }
func (l *TrackLog) ArtistName() string        { return l.artistName }
func (l *TrackLog) DestinationItemID() string { return l.destinationItemID }
func (l *TrackLog) MatchScore() *float64      { return l.matchScore }
func (l *TrackLog) Outcome() Outcome          { return l.outcome }
func (l *TrackLog) Cause() Cause              { return l.cause }
func (l *TrackLog) CreatedAt() time.Time      { return l.createdAt }

// Validate enforces that matched rows, and only matched rows, carry a destination item.
func (l *TrackLog) Validate() error {
	if l.conversionID == "" {
		return fmt.Errorf("%w: conversion id is required", shared.ErrInvalidInput)
	}
	matched := l.outcome == OutcomeMatched
	if matched != (l.destinationItemID != "") {
		return fmt.Errorf("%w: track %d outcome %q inconsistent with destination id %q",
			shared.ErrInvalidInput, l.position, l.outcome, l.destinationItemID)
	}
	if l.outcome == OutcomeErrored && l.cause == CauseNone {
		return fmt.Errorf("%w: errored track %d needs a cause", shared.ErrInvalidInput, l.position)
	}
	return nil
}
