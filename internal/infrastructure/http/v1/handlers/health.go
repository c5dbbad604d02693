package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"metaschema/internal/infrastructure/storage/postgres"
	"metaschema/internal/metadata"
)

// ReadinessProbe reports whether the document source is reachable.
type ReadinessProbe interface {
	Info(ctx context.Context) error
}

// HealthHandler provides health check endpoints.
type HealthHandler struct {
	store   *metadata.Store
	source  ReadinessProbe
	pool    *postgres.Pool
	version string
}

// NewHealthHandler creates a health handler. source and pool may be nil.
func NewHealthHandler(store *metadata.Store, source ReadinessProbe, pool *postgres.Pool, version string) *HealthHandler {
	return &HealthHandler{store: store, source: source, pool: pool, version: version}
}

// Live handles the liveness probe.
// GET /health/live
func (h *HealthHandler) Live(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// Ready reports ready once metadata is loaded and the source answers.
// GET /health/ready
func (h *HealthHandler) Ready(c *gin.Context) {
	checks := map[string]string{"metadata": "loaded", "source": "healthy"}
	healthy := true

	if !h.store.Loaded() {
		checks["metadata"] = "not loaded"
		healthy = false
	}
	if h.source != nil {
		if err := h.source.Info(c.Request.Context()); err != nil {
			checks["source"] = "unhealthy: " + err.Error()
			healthy = false
		}
	}

	if !healthy {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "error", "checks": checks})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "checks": checks})
}

// Info returns application information.
// GET /health/info
func (h *HealthHandler) Info(c *gin.Context) {
	classes := 0
	kinds := make(map[string]int)
	for kind, names := range h.store.Classes() {
		kinds[string(kind)] = len(names)
		classes += len(names)
	}

	body := gin.H{
		"app":     "metaschema",
		"version": h.version,
		"metadata": map[string]any{
			"loaded":   h.store.Loaded(),
			"classes":  classes,
			"kinds":    kinds,
			"synonyms": h.store.Names().Len(),
		},
	}
	if h.pool != nil {
		stat := h.pool.Stat()
		body["database"] = map[string]any{
			"total_conns":    stat.TotalConns(),
			"acquired_conns": stat.AcquiredConns(),
			"idle_conns":     stat.IdleConns(),
			"max_conns":      stat.MaxConns(),
		}
	}
	c.JSON(http.StatusOK, body)
}
