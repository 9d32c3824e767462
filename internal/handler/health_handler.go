package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"
)

// Pinger reports whether a backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler exposes liveness, readiness and Prometheus endpoints.
type HealthHandler struct {
	metrics  http.Handler
	backends map[string]Pinger
	timeout  time.Duration
}

// NewHealthHandler constructs the handler. backends maps a name such as
// "mongo" to its probe; nil probes are skipped.
func NewHealthHandler(metrics http.Handler, backends map[string]Pinger) *HealthHandler {
	return &HealthHandler{metrics: metrics, backends: backends, timeout: 2 * time.Second}
}

// Prometheus serves the Prometheus metrics endpoint.
func (h *HealthHandler) Prometheus(c *gin.Context) {
	if h.metrics == nil {
		c.Status(http.StatusServiceUnavailable)
		return
	}
	h.metrics.ServeHTTP(c.Writer, c.Request)
}

// Health responds with a generic OK payload for liveness usage.
func (h *HealthHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready probes every backend concurrently and reports 503 if any is down.
func (h *HealthHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.timeout)
	defer cancel()

	results := make(map[string]string, len(h.backends))
	statuses := make([]string, 0, len(h.backends))
	names := make([]string, 0, len(h.backends))
	for name, p := range h.backends {
		if p == nil {
			continue
		}
		names = append(names, name)
		statuses = append(statuses, "")
	}

	var g errgroup.Group
	for i, name := range names {
		i, p := i, h.backends[name]
		g.Go(func() error {
			if err := p.Ping(ctx); err != nil {
				statuses[i] = err.Error()
				return err
			}
			statuses[i] = "ok"
			return nil
		})
	}
	err := g.Wait()

	for i, name := range names {
		results[name] = statuses[i]
	}
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "checks": results})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ready", "checks": results})
}
