package models

import (
	"context"
	"errors"

	"github.com/desertthunder/playlist-converter/internal/shared"
)

// Outcome tags a [MatchResult].
type Outcome string

const (
	OutcomeMatched   Outcome = "matched"
	OutcomeUnmatched Outcome = "unmatched"
	OutcomeErrored   Outcome = "errored"
)

// Cause is a machine-readable failure code, used for errored tracks and failed jobs.
type Cause string

const (
	CauseNone Cause = ""

	// per-track
	CauseTimeout      Cause = "timeout"
	CauseRateLimited  Cause = "rate_limited"
	CauseLookupFailed Cause = "lookup_failed"

	// job-level
	CauseCredentialsExpired     Cause = "credentials_expired"
	CauseSourceFetchFailed      Cause = "source_fetch_failed"
	CausePlaylistCreationFailed Cause = "playlist_creation_failed"
	CausePersistenceFailed      Cause = "persistence_failed"
	CauseUnknown                Cause = "unknown"
)

// Stage names the orchestrator step at which a job failed.
type Stage string

const (
	StageCredentials    Stage = "credentials"
	StageFetchTracks    Stage = "fetch_tracks"
	StageMatch          Stage = "match"
	StageCreatePlaylist Stage = "create_playlist"
	StagePersist        Stage = "persist"
)

// CauseFromError maps an error chain to its [Cause] using the shared sentinels.
//
// Stage sentinels win over whatever they wrap, so a token rejected while fetching is [CauseSourceFetchFailed].
func CauseFromError(err error) Cause {
	switch {
	case err == nil:
		return CauseNone
	case errors.Is(err, shared.ErrSourceFetchFailed):
		return CauseSourceFetchFailed
	case errors.Is(err, shared.ErrPlaylistCreationFailed):
		return CausePlaylistCreationFailed
	case errors.Is(err, shared.ErrPersistenceFailed):
		return CausePersistenceFailed
	case errors.Is(err, shared.ErrCredentialsExpired),
		errors.Is(err, shared.ErrSessionNotFound),
		errors.Is(err, shared.ErrTokenExpired),
		errors.Is(err, shared.ErrInvalidCredentials),
		errors.Is(err, shared.ErrMissingCredentials):
		return CauseCredentialsExpired
	case errors.Is(err, shared.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return CauseTimeout
	case errors.Is(err, shared.ErrRateLimited):
		return CauseRateLimited
	default:
		return CauseUnknown
	}
}

// JobLevel reports whether c can describe a failed job rather than a single track.
func (c Cause) JobLevel() bool {
	switch c {
	case CauseCredentialsExpired, CauseSourceFetchFailed, CausePlaylistCreationFailed, CausePersistenceFailed, CauseUnknown:
		return true
	}
	return false
}

// MatchResult is the outcome of matching one [Track]. Never mutated after creation.
//
// DestinationID is non-empty exactly when Outcome is [OutcomeMatched]; Cause is set only when errored.
type MatchResult struct {
	Track         Track
	Outcome       Outcome
	DestinationID string
	Score         float64
	Cause         Cause
	Err           error
}

// Matched builds a matched result.
func Matched(t Track, destinationID string, score float64) MatchResult {
	return MatchResult{Track: t, Outcome: OutcomeMatched, DestinationID: destinationID, Score: score}
}

// Unmatched builds a result for a track with no acceptable candidate; score is the best seen, if any.
func Unmatched(t Track, score float64) MatchResult {
	return MatchResult{Track: t, Outcome: OutcomeUnmatched, Score: score}
}

// Errored builds a result for a lookup that failed.
func Errored(t Track, cause Cause, err error) MatchResult {
	return MatchResult{Track: t, Outcome: OutcomeErrored, Cause: cause, Err: err}
}

// IsMatched reports whether r carries a destination item.
func (r MatchResult) IsMatched() bool {
	return r.Outcome == OutcomeMatched && r.DestinationID != ""
}

// Partition splits results into matched destination IDs (in input order) and everything else.
func Partition(results []MatchResult) (matchedIDs []string, rest []MatchResult) {
	for _, r := range results {
		if r.IsMatched() {
			matchedIDs = append(matchedIDs, r.DestinationID)
		} else {
			rest = append(rest, r)
		}
	}
	return matchedIDs, rest
}
