// Spotify Web API implementation of [Catalog]
//
// Spotify API response types based on https://developer.spotify.com/documentation/web-api/reference/
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

const (
	spotifyBaseURL = "https://api.spotify.com/v1"

	// Spotify accepts at most 100 URIs per add-items request
	spotifyBatchLimit = 100
	spotifyPageLimit  = 100
	spotifySearchSize = 5
)

// SpotifyUser represents a Spotify user profile.
type SpotifyUser struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type externalIDs struct {
	ISRC string `json:"isrc"`
}

// SpotifyTrack represents a Spotify track.
type SpotifyTrack struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Artists     []SpotifyArtist `json:"artists"`
	Album       SpotifyAlbum    `json:"album"`
	DurationMS  int             `json:"duration_ms"`
	ExternalIDs externalIDs     `json:"external_ids"`
	IsLocal     bool            `json:"is_local"`
	URI         string          `json:"uri"`
}

// SpotifyArtist represents a Spotify artist.
type SpotifyArtist struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyAlbum represents a Spotify album.
type SpotifyAlbum struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// SpotifyPlaylistTrack represents a track within a playlist context. Track is nil for removed items.
type SpotifyPlaylistTrack struct {
	AddedAt string        `json:"added_at"`
	Track   *SpotifyTrack `json:"track"`
}

// SpotifyPaginatedPlaylistTracks represents one page of a playlist's items.
type SpotifyPaginatedPlaylistTracks struct {
	Items  []SpotifyPlaylistTrack `json:"items"`
	Total  int                    `json:"total"`
	Limit  int                    `json:"limit"`
	Offset int                    `json:"offset"`
	Next   *string                `json:"next"`
}

type spotifySearchResponse struct {
	Tracks struct {
		Items []SpotifyTrack `json:"items"`
	} `json:"tracks"`
}

// SpotifyService implements [Catalog] and [ChunkedPlaylistWriter] against the Spotify Web API.
//
// It holds no tokens; every call carries the [Credentials] resolved from the job's session.
type SpotifyService struct {
	api apiClient
}

// NewSpotifyService creates a Spotify catalog client. An empty baseURL uses the public API.
func NewSpotifyService(cfg shared.SpotifyConfig, client *http.Client) *SpotifyService {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = spotifyBaseURL
	}
	return &SpotifyService{api: newAPIClient("spotify", baseURL, client)}
}

func (s *SpotifyService) Name() string {
	return ServiceSpotify
}

// BatchLimit implements [ChunkedPlaylistWriter].
func (s *SpotifyService) BatchLimit() int {
	return spotifyBatchLimit
}

func (s *SpotifyService) doRequest(ctx context.Context, creds Credentials, method, endpoint string, body, result any) error {
	if creds.Token == nil || creds.Token.AccessToken == "" {
		return fmt.Errorf("%w: spotify request without access token", shared.ErrMissingCredentials)
	}
	return s.api.do(ctx, method, endpoint, creds.authorize, body, result)
}

// UserProfile retrieves the profile of the user owning creds.
func (s *SpotifyService) UserProfile(ctx context.Context, creds Credentials) (*SpotifyUser, error) {
	var user SpotifyUser
	if err := s.doRequest(ctx, creds, http.MethodGet, "/me", nil, &user); err != nil {
		return nil, err
	}
	return &user, nil
}

// PlaylistTracks retrieves one page of a playlist's items.
func (s *SpotifyService) PlaylistTracks(ctx context.Context, creds Credentials, playlistID string, limit, offset int) (*SpotifyPaginatedPlaylistTracks, error) {
	if limit <= 0 || limit > spotifyPageLimit {
		limit = spotifyPageLimit
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks?limit=%d&offset=%d", url.PathEscape(playlistID), limit, offset)

	var page SpotifyPaginatedPlaylistTracks
	if err := s.doRequest(ctx, creds, http.MethodGet, endpoint, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// FetchSourceTracks pages through the whole playlist. Local files and removed items are skipped.
func (s *SpotifyService) FetchSourceTracks(ctx context.Context, creds Credentials, playlistID string) ([]models.Track, error) {
	var tracks []models.Track
	offset := 0

	for {
		page, err := s.PlaylistTracks(ctx, creds, playlistID, spotifyPageLimit, offset)
		if err != nil {
			return nil, err
		}

		for _, item := range page.Items {
			if item.Track == nil || item.Track.IsLocal || item.Track.ID == "" {
				continue
			}
			track := toModelTrack(*item.Track)
			track.Position = len(tracks)
			tracks = append(tracks, track)
		}

		if page.Next == nil || len(page.Items) == 0 {
			break
		}
		offset += len(page.Items)
	}

	return tracks, nil
}

// SearchDestinationCatalog runs a track search. Candidate IDs are Spotify URIs, ready for playlist writes.
func (s *SpotifyService) SearchDestinationCatalog(ctx context.Context, creds Credentials, query string) ([]models.Candidate, error) {
	params := url.Values{}
	params.Set("q", query)
	params.Set("type", "track")
	params.Set("limit", fmt.Sprint(spotifySearchSize))

	var response spotifySearchResponse
	if err := s.doRequest(ctx, creds, http.MethodGet, "/search?"+params.Encode(), nil, &response); err != nil {
		return nil, err
	}

	candidates := make([]models.Candidate, 0, len(response.Tracks.Items))
	for _, st := range response.Tracks.Items {
		track := toModelTrack(st)
		id := st.URI
		if id == "" {
			id = "spotify:track:" + st.ID
		}
		candidates = append(candidates, models.Candidate{
			ID:       id,
			Title:    track.Title,
			Artists:  track.Artists,
			Album:    track.Album,
			Duration: track.Duration,
			ISRC:     track.ISRC,
		})
	}

	return candidates, nil
}

// CreateDestinationPlaylist creates a private playlist for the session's user and adds itemIDs in one call.
//
// itemIDs must not exceed [SpotifyService.BatchLimit]; longer lists go through [SpotifyService.AppendToPlaylist].
func (s *SpotifyService) CreateDestinationPlaylist(ctx context.Context, creds Credentials, name string, itemIDs []string) (string, error) {
	if len(itemIDs) > spotifyBatchLimit {
		return "", fmt.Errorf("%w: %d items exceeds spotify batch limit %d", shared.ErrInvalidInput, len(itemIDs), spotifyBatchLimit)
	}

	user, err := s.UserProfile(ctx, creds)
	if err != nil {
		return "", err
	}

	body := map[string]any{
		"name":        name,
		"public":      false,
		"description": "Converted by plconv",
	}

	var created struct {
		ID string `json:"id"`
	}
	endpoint := fmt.Sprintf("/users/%s/playlists", url.PathEscape(user.ID))
	if err := s.doRequest(ctx, creds, http.MethodPost, endpoint, body, &created); err != nil {
		return "", err
	}

	if len(itemIDs) > 0 {
		if err := s.AppendToPlaylist(ctx, creds, created.ID, itemIDs); err != nil {
			return created.ID, err
		}
	}

	return created.ID, nil
}

// AppendToPlaylist implements [ChunkedPlaylistWriter].
func (s *SpotifyService) AppendToPlaylist(ctx context.Context, creds Credentials, playlistID string, itemIDs []string) error {
	if len(itemIDs) > spotifyBatchLimit {
		return fmt.Errorf("%w: %d items exceeds spotify batch limit %d", shared.ErrInvalidInput, len(itemIDs), spotifyBatchLimit)
	}

	endpoint := fmt.Sprintf("/playlists/%s/tracks", url.PathEscape(playlistID))
	return s.doRequest(ctx, creds, http.MethodPost, endpoint, map[string]any{"uris": itemIDs}, nil)
}

func toModelTrack(st SpotifyTrack) models.Track {
	artists := make([]string, 0, len(st.Artists))
	for _, a := range st.Artists {
		artists = append(artists, a.Name)
	}
	return models.Track{
		ID:       st.ID,
		Title:    st.Name,
		Artists:  artists,
		Album:    st.Album.Name,
		Duration: time.Duration(st.DurationMS) * time.Millisecond,
		ISRC:     st.ExternalIDs.ISRC,
	}
}
