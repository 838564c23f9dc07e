// YouTube Music implementation of [Catalog]
//
// Communicates with the FastAPI proxy server wrapping the ytmusicapi Python library.
package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
)

const defaultYTBaseURL string = "http://localhost:8080"

// YouTubeArtist represents an artist in YouTube Music responses.
type YouTubeArtist struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

type youtubeAlbum struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

// YouTubeTrack represents a track/video in YouTube Music responses.
type YouTubeTrack struct {
	VideoID     string          `json:"videoId"`
	Title       string          `json:"title"`
	Artists     []YouTubeArtist `json:"artists"`
	Album       *youtubeAlbum   `json:"album"`
	Duration    string          `json:"duration"`
	DurationSec int             `json:"duration_seconds"`
	ISRC        string          `json:"isrc,omitempty"`
}

// YouTubePlaylist represents a playlist from YouTube Music.
type YouTubePlaylist struct {
	ID         string         `json:"id"`
	Title      string         `json:"title"`
	Privacy    string         `json:"privacy"`
	TrackCount int            `json:"trackCount"`
	Tracks     []YouTubeTrack `json:"tracks,omitempty"`
}

// YouTubeService implements [Catalog] for YouTube Music via the proxy.
//
// The proxy accepts the whole item list on create, so it does not implement [ChunkedPlaylistWriter].
type YouTubeService struct {
	api apiClient
}

// NewYouTubeService creates a new YouTube Music service instance.
func NewYouTubeService(baseURL string, client *http.Client) *YouTubeService {
	baseURL = strings.TrimRight(baseURL, "/")
	if baseURL == "" {
		baseURL = defaultYTBaseURL
	}
	return &YouTubeService{api: newAPIClient("youtube", baseURL, client)}
}

// Name returns the service name.
func (y *YouTubeService) Name() string {
	return ServiceYouTube
}

func (y *YouTubeService) doRequest(ctx context.Context, creds Credentials, method, endpoint string, body, result any) error {
	return y.api.do(ctx, method, endpoint, func(req *http.Request) {
		if creds.AuthFile != "" {
			req.Header.Set("X-Auth-File", creds.AuthFile)
			return
		}
		creds.authorize(req)
	}, body, result)
}

// FetchSourceTracks returns every track of the playlist.
//
// Calls GET /api/playlists/{id} on the proxy, which resolves all pages itself.
func (y *YouTubeService) FetchSourceTracks(ctx context.Context, creds Credentials, playlistID string) ([]models.Track, error) {
	var playlist YouTubePlaylist

	endpoint := fmt.Sprintf("/api/playlists/%s", url.PathEscape(playlistID))
	if err := y.doRequest(ctx, creds, http.MethodGet, endpoint, nil, &playlist); err != nil {
		return nil, err
	}

	tracks := make([]models.Track, 0, len(playlist.Tracks))
	for _, ytt := range playlist.Tracks {
		if ytt.VideoID == "" {
			continue
		}
		track := ytt.toModel()
		track.Position = len(tracks)
		tracks = append(tracks, track)
	}

	return tracks, nil
}

// SearchDestinationCatalog searches songs only.
//
// Calls GET /api/search?q={query}&filter=songs on the proxy.
func (y *YouTubeService) SearchDestinationCatalog(ctx context.Context, creds Credentials, query string) ([]models.Candidate, error) {
	endpoint := fmt.Sprintf("/api/search?q=%s&filter=songs", url.QueryEscape(query))

	var results []YouTubeTrack
	if err := y.doRequest(ctx, creds, http.MethodGet, endpoint, nil, &results); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(results))
	for _, r := range results {
		if r.VideoID == "" {
			continue
		}
		t := r.toModel()
		candidates = append(candidates, models.Candidate{
			ID:       t.ID,
			Title:    t.Title,
			Artists:  t.Artists,
			Album:    t.Album,
			Duration: t.Duration,
			ISRC:     t.ISRC,
		})
	}

	return candidates, nil
}

// CreateDestinationPlaylist creates a private playlist with all items in a single call.
//
// Calls POST /api/playlists on the proxy.
func (y *YouTubeService) CreateDestinationPlaylist(ctx context.Context, creds Credentials, name string, itemIDs []string) (string, error) {
	if itemIDs == nil {
		itemIDs = []string{}
	}

	body := struct {
		Title         string   `json:"title"`
		Description   string   `json:"description"`
		PrivacyStatus string   `json:"privacy_status"`
		VideoIDs      []string `json:"video_ids"`
	}{
		Title:         name,
		Description:   "Converted by plconv",
		PrivacyStatus: "PRIVATE",
		VideoIDs:      itemIDs,
	}

	var created struct {
		PlaylistID string `json:"playlist_id"`
	}
	if err := y.doRequest(ctx, creds, http.MethodPost, "/api/playlists", body, &created); err != nil {
		return "", err
	}
	if created.PlaylistID == "" {
		return "", fmt.Errorf("%w: proxy returned no playlist id", shared.ErrAPIRequest)
	}

	return created.PlaylistID, nil
}

func (t YouTubeTrack) toModel() models.Track {
	artists := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		artists = append(artists, a.Name)
	}

	track := models.Track{
		ID:       t.VideoID,
		Title:    t.Title,
		Artists:  artists,
		Duration: time.Duration(t.DurationSec) * time.Second,
		ISRC:     t.ISRC,
	}
	if t.Album != nil {
		track.Album = t.Album.Name
	}
	return track
}
