// package services defines the catalog contracts consumed by the conversion worker
//
// Spotify, YouTube Music (via proxy)
package services

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/desertthunder/playlist-converter/internal/models"
	"github.com/desertthunder/playlist-converter/internal/shared"
	"golang.org/x/oauth2"
)

const (
	ServiceSpotify = "spotify"
	ServiceYouTube = "youtube"
)

// Credentials are the resolved credentials of one session.
type Credentials struct {
	Service  string
	Token    *oauth2.Token
	AuthFile string // YouTube proxy only: browser.json/oauth.json path sent as X-Auth-File
}

// authorize sets the bearer header from the session token, if any.
func (c Credentials) authorize(req *http.Request) {
	if c.Token != nil && c.Token.AccessToken != "" {
		c.Token.SetAuthHeader(req)
	}
}

// SourceCatalog reads the full track list of a source playlist.
type SourceCatalog interface {
	// FetchSourceTracks returns every track of playlistID in playlist order, with Position set.
	FetchSourceTracks(ctx context.Context, creds Credentials, playlistID string) ([]models.Track, error)
}

// DestinationCatalog searches a destination catalog and creates playlists in it.
type DestinationCatalog interface {
	// SearchDestinationCatalog returns candidates for a normalized "artist title" query; an empty slice means no hits.
	SearchDestinationCatalog(ctx context.Context, creds Credentials, query string) ([]models.Candidate, error)

	// CreateDestinationPlaylist creates a playlist named name containing itemIDs and returns its ID.
	CreateDestinationPlaylist(ctx context.Context, creds Credentials, name string, itemIDs []string) (string, error)
}

// ChunkedPlaylistWriter is implemented by destinations that cap how many items one request may carry.
type ChunkedPlaylistWriter interface {
	// BatchLimit is the maximum number of items per create or append call.
	BatchLimit() int

	// AppendToPlaylist appends itemIDs, in order, to an existing playlist.
	AppendToPlaylist(ctx context.Context, creds Credentials, playlistID string, itemIDs []string) error
}

// Catalog is a streaming service usable as both source and destination.
type Catalog interface {
	SourceCatalog
	DestinationCatalog
	Name() string
}

// Registry resolves a [Catalog] by the service name stored on a session.
type Registry struct {
	mu       sync.RWMutex
	catalogs map[string]Catalog
}

// NewRegistry creates a Registry holding catalogs, keyed by their Name.
func NewRegistry(catalogs ...Catalog) *Registry {
	r := &Registry{catalogs: make(map[string]Catalog)}
	for _, c := range catalogs {
		r.Register(c)
	}
	return r
}

// Register adds or replaces c.
func (r *Registry) Register(c Catalog) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.catalogs[strings.ToLower(c.Name())] = c
}

// Lookup returns the catalog for service or [shared.ErrUnknownService].
func (r *Registry) Lookup(service string) (Catalog, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.catalogs[strings.ToLower(service)]
	if !ok {
		return nil, fmt.Errorf("%w: %q", shared.ErrUnknownService, service)
	}
	return c, nil
}

// Names lists registered services in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.catalogs))
	for name := range r.catalogs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
