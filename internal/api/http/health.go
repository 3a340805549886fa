package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/GriffinCanCode/nodegraph/internal/domain/catalog"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// System serves the endpoints that are not tied to one catalog
type System struct {
	name     string
	version  string
	catalogs []*catalog.Service
	metrics  *monitoring.Metrics
}

// NewSystem creates the root and health handlers
func NewSystem(name, version string, metrics *monitoring.Metrics, catalogs ...*catalog.Service) *System {
	return &System{name: name, version: version, catalogs: catalogs, metrics: metrics}
}

// Root handles liveness checks
func (s *System) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "online",
		"service": s.name,
		"version": s.version,
	})
}

// Health reports per-catalog statistics and a metrics summary
func (s *System) Health(c *gin.Context) {
	stats := make([]types.CatalogStats, 0, len(s.catalogs))
	healthy := true
	for _, svc := range s.catalogs {
		stats = append(stats, svc.Stats())
		if !svc.Exists() {
			healthy = false
		}
	}

	status, code := "healthy", http.StatusOK
	if !healthy {
		status, code = "degraded", http.StatusServiceUnavailable
	}
	c.JSON(code, gin.H{
		"status":   status,
		"version":  s.version,
		"catalogs": stats,
		"metrics":  s.metrics.Snapshot(),
	})
}

// Metrics exposes the prometheus registry
func (s *System) Metrics() gin.HandlerFunc {
	return gin.WrapH(monitoring.Handler(s.metrics))
}
