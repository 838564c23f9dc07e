package tasks

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

const defaultPlaylistName = "Converted playlist"

// PlaylistBuilder creates the destination playlist from matched item IDs.
type PlaylistBuilder struct {
	logger *log.Logger
}

// NewPlaylistBuilder creates a PlaylistBuilder. A nil logger uses the default.
func NewPlaylistBuilder(logger *log.Logger) *PlaylistBuilder {
	if logger == nil {
		logger = shared.NewLogger(nil)
	}
	return &PlaylistBuilder{logger: logger}
}

// Build creates a playlist named name holding itemIDs in the given order and returns its ID.
//
// Destinations implementing [services.ChunkedPlaylistWriter] receive the first batch on create and the remainder
// through ordered appends. Every rejection is wrapped in [shared.ErrPlaylistCreationFailed]; a failed append leaves
// the partially filled playlist behind.
func (b *PlaylistBuilder) Build(
	ctx context.Context,
	dest services.DestinationCatalog,
	creds services.Credentials,
	name string,
	itemIDs []string,
) (string, error) {
	if name == "" {
		name = defaultPlaylistName
	}

	first, rest := itemIDs, [][]string(nil)
	writer, chunked := dest.(services.ChunkedPlaylistWriter)
	if chunked {
		if limit := writer.BatchLimit(); limit > 0 && len(itemIDs) > limit {
			chunks := chunk(itemIDs, limit)
			first, rest = chunks[0], chunks[1:]
		}
	}

	started := time.Now()
	playlistID, err := dest.CreateDestinationPlaylist(ctx, creds, name, first)
	if err != nil {
		return "", fmt.Errorf("%w: %w", shared.ErrPlaylistCreationFailed, err)
	}

	for i, batch := range rest {
		if err := writer.AppendToPlaylist(ctx, creds, playlistID, batch); err != nil {
			return playlistID, fmt.Errorf("%w: append batch %d/%d to %s: %w",
				shared.ErrPlaylistCreationFailed, i+2, len(rest)+1, playlistID, err)
		}
	}

	b.logger.Info("destination playlist created",
		"playlist_id", playlistID,
		"items", len(itemIDs),
		"batches", len(rest)+1,
		"elapsed", time.Since(started),
	)
	return playlistID, nil
}

// chunk splits ids into consecutive slices of at most size items.
func chunk(ids []string, size int) [][]string {
	chunks := make([][]string, 0, (len(ids)+size-1)/size)
	for start := 0; start < len(ids); start += size {
		chunks = append(chunks, ids[start:min(start+size, len(ids))])
	}
	return chunks
}
