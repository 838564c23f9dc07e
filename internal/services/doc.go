// Package services defines the catalog contracts the conversion worker consumes and ships clients for Spotify and
// YouTube Music.
//
// # Contracts
//
// [SourceCatalog] reads a playlist's full track list. [DestinationCatalog] searches for candidates and creates the
// destination playlist. Destinations that cap items per request also implement [ChunkedPlaylistWriter]; the playlist
// builder then creates with the first chunk and appends the rest in order.
//
// A [Registry] maps the service name stored on a session ("spotify", "youtube") to its [Catalog].
//
// # Credentials
//
// Clients hold no tokens. Each call takes the [Credentials] the worker resolved from the job's session; the bearer
// header is set from the session's [oauth2.Token]. Token issuance and refresh happen elsewhere.
//
// # Error Handling
//
// Non-2xx responses become an [*APIError] unwrapping to a shared sentinel:
//   - 429 : [shared.ErrRateLimited] (the matcher records the track as rate limited and does not retry)
//   - 401 : [shared.ErrTokenExpired]
//   - 403 : [shared.ErrInvalidCredentials]
//   - 404 : [shared.ErrPlaylistNotFound]
//   - 5xx : [shared.ErrServiceUnavailable]
//   - other : [shared.ErrAPIRequest]
//
// Transport errors wrap the request context's error, so a per-lookup deadline is visible as
// [context.DeadlineExceeded].
package services
