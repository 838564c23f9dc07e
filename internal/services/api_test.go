package services_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/playlist-converter/internal/services"
	"github.com/desertthunder/playlist-converter/internal/shared"
	th "github.com/desertthunder/playlist-converter/internal/testing"
)

func response(code int, body string, header http.Header) *http.Response {
	if header == nil {
		header = http.Header{}
	}
	return &http.Response{
		StatusCode: code,
		Header:     header,
		Body:       io.NopCloser(strings.NewReader(body)),
	}
}

func TestAPIErrors(t *testing.T) {
	creds := services.Credentials{Service: services.ServiceYouTube}

	tests := []struct {
		name     string
		resp     *http.Response
		err      error
		sentinel error
		detail   string
	}{
		{
			name:     "rate limited with retry-after",
			resp:     response(http.StatusTooManyRequests, `{"detail":"slow down"}`, http.Header{"Retry-After": []string{"3"}}),
			sentinel: shared.ErrRateLimited,
			detail:   "slow down",
		},
		{
			name:     "unauthorized",
			resp:     response(http.StatusUnauthorized, `{"error":{"message":"token expired"}}`, nil),
			sentinel: shared.ErrTokenExpired,
			detail:   "token expired",
		},
		{
			name:     "server error without body",
			resp:     response(http.StatusBadGateway, "", nil),
			sentinel: shared.ErrServiceUnavailable,
		},
		{
			name:     "other client error",
			resp:     response(http.StatusBadRequest, "not json", nil),
			sentinel: shared.ErrAPIRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &http.Client{Transport: th.NewMockRoundTripper(tt.resp, nil)}
			svc := services.NewYouTubeService("http://proxy.test", client)

			_, err := svc.SearchDestinationCatalog(context.Background(), creds, "query")
			if !errors.Is(err, tt.sentinel) {
				t.Fatalf("error = %v, want %v", err, tt.sentinel)
			}

			var apiErr *services.APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("expected *APIError, got %T", err)
			}
			if apiErr.StatusCode != tt.resp.StatusCode {
				t.Errorf("status = %d, want %d", apiErr.StatusCode, tt.resp.StatusCode)
			}
			if apiErr.Detail != tt.detail {
				t.Errorf("detail = %q, want %q", apiErr.Detail, tt.detail)
			}
		})
	}

	t.Run("retry-after is parsed", func(t *testing.T) {
		resp := response(http.StatusTooManyRequests, "", http.Header{"Retry-After": []string{"3"}})
		svc := services.NewYouTubeService("http://proxy.test", &http.Client{Transport: th.NewMockRoundTripper(resp, nil)})

		_, err := svc.SearchDestinationCatalog(context.Background(), creds, "query")

		var apiErr *services.APIError
		if !errors.As(err, &apiErr) || apiErr.RetryAfter != 3*time.Second {
			t.Errorf("expected RetryAfter of 3s, got %v", err)
		}
	})

	t.Run("transport failure", func(t *testing.T) {
		transportErr := errors.New("connection refused")
		svc := services.NewYouTubeService("http://proxy.test", &http.Client{Transport: th.NewMockRoundTripper(nil, transportErr)})

		_, err := svc.FetchSourceTracks(context.Background(), creds, "PL1")
		if !errors.Is(err, transportErr) {
			t.Errorf("error = %v, want wrapped transport error", err)
		}
		var apiErr *services.APIError
		if errors.As(err, &apiErr) {
			t.Error("transport failures are not API errors")
		}
	})

	t.Run("undecodable success body", func(t *testing.T) {
		resp := response(http.StatusOK, "<html>", nil)
		svc := services.NewYouTubeService("http://proxy.test", &http.Client{Transport: th.NewMockRoundTripper(resp, nil)})

		_, err := svc.SearchDestinationCatalog(context.Background(), creds, "query")
		if err == nil || !strings.Contains(err.Error(), "failed to decode response") {
			t.Errorf("expected decode error, got %v", err)
		}
	})
}
