package handlers

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/labstack/echo/v4"
)

const healthCheckTimeout = 2 * time.Second

// Pinger is anything health checks can ping. *pgxpool.Pool and
// caching.CacheService both implement it.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandlers handles health check and monitoring endpoints
type HealthHandlers struct {
	db        Pinger
	cache     Pinger
	version   string
	startedAt time.Time
}

func NewHealthHandlers(db, cache Pinger, version string) *HealthHandlers {
	return &HealthHandlers{db: db, cache: cache, version: version, startedAt: time.Now()}
}

// HealthStatus represents the overall health status
type HealthStatus struct {
	Status     string            `json:"status"`
	Timestamp  string            `json:"timestamp"`
	Services   map[string]string `json:"services"`
	Uptime     string            `json:"uptime"`
	Version    string            `json:"version"`
	Goroutines int               `json:"goroutines"`
}

// HealthCheck handles GET /health. A failing dependency degrades the
// status but the process is still reported up.
func (h *HealthHandlers) HealthCheck(c echo.Context) error {
	health := &HealthStatus{
		Status:     "healthy",
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		Services:   h.checkServices(c.Request().Context()),
		Uptime:     time.Since(h.startedAt).Round(time.Second).String(),
		Version:    h.version,
		Goroutines: runtime.NumGoroutine(),
	}
	for _, s := range health.Services {
		if s == "unhealthy" {
			health.Status = "degraded"
		}
	}
	return c.JSON(http.StatusOK, health)
}

// ReadinessCheck handles GET /health/ready. Profile lookups and tenant
// status both need the database and the cache.
func (h *HealthHandlers) ReadinessCheck(c echo.Context) error {
	services := h.checkServices(c.Request().Context())
	for _, s := range services {
		if s == "unhealthy" {
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status":   "not_ready",
				"services": services,
			})
		}
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"status":   "ready",
		"services": services,
	})
}

// LivenessCheck handles GET /health/live
func (h *HealthHandlers) LivenessCheck(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{
		"status":    "alive",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func (h *HealthHandlers) checkServices(ctx context.Context) map[string]string {
	ctx, cancel := context.WithTimeout(ctx, healthCheckTimeout)
	defer cancel()

	services := map[string]string{}
	for name, p := range map[string]Pinger{"database": h.db, "redis": h.cache} {
		switch {
		case p == nil:
			services[name] = "disabled"
		case p.Ping(ctx) != nil:
			services[name] = "unhealthy"
		default:
			services[name] = "healthy"
		}
	}
	return services
}
