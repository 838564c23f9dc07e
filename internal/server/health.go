package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

const defaultCheckTimeout = 2 * time.Second

// HealthCheck probes one dependency.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// HealthResponse is the body of GET /healthz.
type HealthResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// HealthHandler reports whether the worker's stores are reachable.
type HealthHandler struct {
	checks  []HealthCheck
	timeout time.Duration
}

// NewHealthHandler creates a HealthHandler running checks on every request.
func NewHealthHandler(checks ...HealthCheck) *HealthHandler {
	return &HealthHandler{checks: checks, timeout: defaultCheckTimeout}
}

func (h *HealthHandler) Routes() []string {
	return []string{"GET /healthz"}
}

// ServeHTTP answers 200 when every check passes and 503 otherwise.
func (h *HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := HealthResponse{Status: "ok", Checks: make(map[string]string, len(h.checks))}
	code := http.StatusOK

	for _, check := range h.checks {
		if err := check.Check(ctx); err != nil {
			resp.Checks[check.Name] = err.Error()
			resp.Status = "unavailable"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[check.Name] = "ok"
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(resp)
}
