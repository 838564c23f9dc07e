package services

import (
	"errors"
	"testing"

	"github.com/desertthunder/playlist-converter/internal/shared"
)

func TestRegistry(t *testing.T) {
	reg := NewRegistry(NewSpotifyService(shared.SpotifyConfig{}, nil), NewYouTubeService("", nil))

	t.Run("Lookup is case insensitive", func(t *testing.T) {
		c, err := reg.Lookup("Spotify")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := c.(ChunkedPlaylistWriter); !ok {
			t.Error("spotify catalog should support chunked writes")
		}
	})

	t.Run("youtube is not chunked", func(t *testing.T) {
		c, err := reg.Lookup(ServiceYouTube)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if _, ok := c.(ChunkedPlaylistWriter); ok {
			t.Error("youtube catalog should not implement ChunkedPlaylistWriter")
		}
	})

	t.Run("unknown service", func(t *testing.T) {
		if _, err := reg.Lookup("tidal"); !errors.Is(err, shared.ErrUnknownService) {
			t.Errorf("expected ErrUnknownService, got %v", err)
		}
	})

	t.Run("Names", func(t *testing.T) {
		names := reg.Names()
		if len(names) != 2 || names[0] != ServiceSpotify || names[1] != ServiceYouTube {
			t.Errorf("unexpected names %v", names)
		}
	})
}
