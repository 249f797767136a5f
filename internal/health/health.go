// SPDX-License-Identifier: Apache-2.0

// Package health provides liveness and readiness checks for the daemon,
// suitable for Docker HEALTHCHECK and Kubernetes probes.
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/asankah/chromium-api-list/internal/fsutil"
	"github.com/asankah/chromium-api-list/internal/log"
)

// Status represents the overall health/readiness status.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the result of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the full liveness response.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness response.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component health check.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs registered checks.
type Manager struct {
	version  string
	checkers []Checker
}

// NewManager creates a health check manager.
func NewManager(version string) *Manager {
	return &Manager{version: version}
}

// RegisterChecker adds a checker.
func (m *Manager) RegisterChecker(c Checker) {
	m.checkers = append(m.checkers, c)
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	if len(m.checkers) == 0 {
		return nil, StatusHealthy
	}
	checks := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy
	for _, c := range m.checkers {
		result := c.Check(ctx)
		checks[c.Name()] = result
		switch result.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return checks, overall
}

// Health is the liveness probe: the process is alive. Component checks are
// reported but never fail liveness.
func (m *Manager) Health(ctx context.Context) HealthResponse {
	checks, _ := m.runChecks(ctx)
	return HealthResponse{
		Status:    StatusHealthy,
		Version:   m.version,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// Ready is the readiness probe: traffic should only arrive once every
// component check passes.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	checks, overall := m.runChecks(ctx)
	return ReadinessResponse{
		Ready:     overall != StatusUnhealthy,
		Status:    overall,
		Timestamp: time.Now(),
		Checks:    checks,
	}
}

// ServeHealth answers GET /healthz.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, m.Health(r.Context()))
}

// ServeReady answers GET /readyz with 503 when not ready.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	resp := m.Ready(r.Context())
	code := http.StatusOK
	if !resp.Ready {
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, resp)
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger := log.WithComponent("health")
		logger.Error().Err(err).Msg("failed to encode response")
	}
}

// PublishedListChecker verifies the published CSV is present and regular.
// A daemon that has not yet completed its first update reports degraded, not
// unhealthy: it can still serve the update endpoint.
type PublishedListChecker struct {
	Path string
}

func (c *PublishedListChecker) Name() string { return "published_list" }

func (c *PublishedListChecker) Check(ctx context.Context) CheckResult {
	if err := fsutil.IsRegularFile(c.Path); err != nil {
		return CheckResult{
			Status:  StatusDegraded,
			Message: "published list not available yet",
			Error:   err.Error(),
		}
	}
	return CheckResult{Status: StatusHealthy, Message: fmt.Sprintf("serving %s", c.Path)}
}

// BuildTreeChecker verifies the configured build directory exists. Without it
// update cycles cannot run.
type BuildTreeChecker struct {
	Path string
}

func (c *BuildTreeChecker) Name() string { return "build_tree" }

func (c *BuildTreeChecker) Check(ctx context.Context) CheckResult {
	if c.Path == "" {
		return CheckResult{Status: StatusDegraded, Message: "no build path configured"}
	}
	if _, err := os.Stat(c.Path); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy}
}
