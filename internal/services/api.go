// Shared HTTP plumbing for the catalog clients
package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/desertthunder/playlist-converter/internal/shared"
)

// APIError describes a non-2xx catalog response. It unwraps to the sentinel chosen by [classifyStatus].
type APIError struct {
	Service    string
	StatusCode int
	Detail     string
	RetryAfter time.Duration
	sentinel   error
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("%s: %s API error: status %d", e.sentinel, e.Service, e.StatusCode)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

func (e *APIError) Unwrap() error { return e.sentinel }

// classifyStatus maps an HTTP status to a shared sentinel.
//
// 429 must stay distinguishable from other failures so the matcher can classify it as rate limited.
func classifyStatus(code int) error {
	switch {
	case code == http.StatusTooManyRequests:
		return shared.ErrRateLimited
	case code == http.StatusUnauthorized:
		return shared.ErrTokenExpired
	case code == http.StatusForbidden:
		return shared.ErrInvalidCredentials
	case code == http.StatusNotFound:
		return shared.ErrPlaylistNotFound
	case code >= 500:
		return shared.ErrServiceUnavailable
	default:
		return shared.ErrAPIRequest
	}
}

// apiClient performs JSON requests against one catalog base URL.
type apiClient struct {
	service    string
	baseURL    string
	httpClient *http.Client
}

func newAPIClient(service, baseURL string, client *http.Client) apiClient {
	if client == nil {
		client = http.DefaultClient
	}
	return apiClient{service: service, baseURL: baseURL, httpClient: client}
}

// do sends body (JSON-encoded when non-nil) and decodes a 2xx response into result when non-nil.
func (a apiClient) do(ctx context.Context, method, endpoint string, authorize func(*http.Request), body, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, a.baseURL+endpoint, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if authorize != nil {
		authorize(req)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s request failed: %w", a.service, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return a.errorFrom(resp)
	}

	if result != nil {
		if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}

func (a apiClient) errorFrom(resp *http.Response) error {
	apiErr := &APIError{
		Service:    a.service,
		StatusCode: resp.StatusCode,
		sentinel:   classifyStatus(resp.StatusCode),
	}

	if secs, err := strconv.Atoi(resp.Header.Get("Retry-After")); err == nil {
		apiErr.RetryAfter = time.Duration(secs) * time.Second
	}

	// Spotify nests {"error":{"message"}}, the proxy returns {"detail"}
	var errResp struct {
		Detail string `json:"detail"`
		Error  struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&errResp); err == nil {
		apiErr.Detail = errResp.Detail
		if apiErr.Detail == "" {
			apiErr.Detail = errResp.Error.Message
		}
	}

	return apiErr
}
