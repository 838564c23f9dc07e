package tasks

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

// DefaultMatchThreshold is the score a candidate must exceed to be accepted.
const DefaultMatchThreshold = 0.65

const (
	titleWeight    = 0.40
	artistWeight   = 0.40
	durationWeight = 0.20

	// durations closer than exactDuration score 1, farther than maxDurationDrift score 0
	exactDuration    = 2 * time.Second
	maxDurationDrift = 30 * time.Second
)

// ScoreCandidate rates how well c corresponds to t, in [0, 1].
//
// Equal ISRCs score 1. Otherwise the score weighs title similarity, artist similarity and duration proximity;
// when either side lacks a duration the remaining weights are rescaled.
func ScoreCandidate(t models.Track, c models.Candidate) float64 {
	if t.ISRC != "" && strings.EqualFold(t.ISRC, c.ISRC) {
		return 1
	}

	title := similarity(shared.CleanTitle(t.Title), shared.CleanTitle(c.Title))
	artist := artistSimilarity(t.Artists, c.Artists)

	duration, ok := durationSimilarity(t.Duration, c.Duration)
	if !ok {
		return (titleWeight*title + artistWeight*artist) / (titleWeight + artistWeight)
	}
	return titleWeight*title + artistWeight*artist + durationWeight*duration
}

// BestCandidate returns the highest scoring candidate with a non-empty ID. Ties keep catalog order.
func BestCandidate(t models.Track, candidates []models.Candidate) (*models.Candidate, float64) {
	var (
		best      *models.Candidate
		bestScore float64
	)
	for i := range candidates {
		if candidates[i].ID == "" {
			continue
		}
		if score := ScoreCandidate(t, candidates[i]); best == nil || score > bestScore {
			best, bestScore = &candidates[i], score
		}
	}
	return best, bestScore
}

// similarity is 1 minus the normalized Levenshtein distance.
func similarity(a, b string) float64 {
	if a == b {
		return 1
	}
	if a == "" || b == "" {
		return 0
	}

	longest := max(utf8.RuneCountInString(a), utf8.RuneCountInString(b))
	return 1 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// artistSimilarity takes the best pairing between the credited artists of both sides.
func artistSimilarity(source, candidate []string) float64 {
	var best float64
	for _, a := range source {
		fa := shared.FoldText(a)
		for _, b := range candidate {
			if s := similarity(fa, shared.FoldText(b)); s > best {
				best = s
			}
		}
	}
	return best
}

func durationSimilarity(a, b time.Duration) (float64, bool) {
	if a <= 0 || b <= 0 {
		return 0, false
	}

	diff := a - b
	if diff < 0 {
		diff = -diff
	}

	switch {
	case diff <= exactDuration:
		return 1, true
	case diff >= maxDurationDrift:
		return 0, true
	default:
		return 1 - float64(diff-exactDuration)/float64(maxDurationDrift-exactDuration), true
	}
}
