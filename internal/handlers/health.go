package handlers

import (
	"context"
	"sort"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	statusHealthy   = "healthy"
	statusUnhealthy = "unhealthy"
)

// Pinger is a dependency probed by the readiness check.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler serves liveness and readiness
type HealthHandler struct {
	service string
	version string
	timeout time.Duration
	checks  map[string]Pinger
}

// NewHealthHandler creates a handler. checks maps a dependency name to its probe.
func NewHealthHandler(service, version string, timeout time.Duration, checks map[string]Pinger) *HealthHandler {
	return &HealthHandler{
		service: service,
		version: version,
		timeout: timeout,
		checks:  checks,
	}
}

type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp string            `json:"timestamp"`
	Services  map[string]string `json:"services"`
}

// Root handles GET /
func (h *HealthHandler) Root(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{
		"service": h.service,
		"version": h.version,
		"status":  statusHealthy,
	})
}

// HealthCheck handles GET /health
func (h *HealthHandler) HealthCheck(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), h.timeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	services := make(map[string]string, len(names))
	status := statusHealthy
	for _, name := range names {
		if err := h.checks[name].Ping(ctx); err != nil {
			services[name] = statusUnhealthy + ": " + err.Error()
			status = statusUnhealthy
			continue
		}
		services[name] = statusHealthy
	}

	response := HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		Services:  services,
	}

	if status == statusUnhealthy {
		return c.Status(fiber.StatusServiceUnavailable).JSON(response)
	}
	return c.JSON(response)
}

// NotFound is the fallback for unmatched routes.
func NotFound(c *fiber.Ctx) error {
	return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
		"error": "Not found",
	})
}
