package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")
	ErrInvalidCredentials = fmt.Errorf("invalid credentials")

	// Session errors
	ErrSessionNotFound    = fmt.Errorf("session not found")
	ErrTokenExpired       = fmt.Errorf("access token expired")
	ErrCredentialsExpired = fmt.Errorf("credentials missing or expired")

	// API and service errors
	ErrAPIRequest         = fmt.Errorf("API request failed")
	ErrServiceUnavailable = fmt.Errorf("service unavailable")
	ErrUnknownService     = fmt.Errorf("unknown catalog service")
	ErrPlaylistNotFound   = fmt.Errorf("playlist not found")
	ErrRateLimited        = fmt.Errorf("rate limited by upstream")
	ErrTimeout            = fmt.Errorf("operation timed out")

	// Job lifecycle errors
	ErrMalformedJob           = fmt.Errorf("malformed job payload")
	ErrInvalidTransition      = fmt.Errorf("invalid status transition")
	ErrSourceFetchFailed      = fmt.Errorf("source track fetch failed")
	ErrPlaylistCreationFailed = fmt.Errorf("playlist creation failed")
	ErrPersistenceFailed      = fmt.Errorf("persistence failed")
	ErrStatusNotFound         = fmt.Errorf("status not found")
	ErrRecordNotFound         = fmt.Errorf("conversion record not found")
	ErrRecordConflict         = fmt.Errorf("conversion already recorded")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
)
