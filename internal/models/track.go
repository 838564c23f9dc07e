package models

import (
	"strings"
	"time"
)

// Track is one song entry of a source playlist. Immutable once fetched.
type Track struct {
	ID       string        `json:"id"`
	Title    string        `json:"title"`
	Artists  []string      `json:"artists"`
	Album    string        `json:"album,omitempty"`
	Duration time.Duration `json:"duration,omitempty"` // hint; zero when the source does not report it
	ISRC     string        `json:"isrc,omitempty"`     // International Standard Recording Code for matching
	Position int           `json:"position"`           // index in the source playlist
}

// ArtistName joins all credited artists.
func (t Track) ArtistName() string {
	return strings.Join(t.Artists, ", ")
}

// Candidate is a destination catalog search hit.
type Candidate struct {
	ID       string
	Title    string
	Artists  []string
	Album    string
	Duration time.Duration
	ISRC     string
}
