package api

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// healthHandler handles GET /health: a minimal, unauthenticated liveness
// check covering the worker pool only. The Store Gateway's own reachability
// is implied by the pool's CountActiveTasks check.
func (s *Server) healthHandler(c *gin.Context) {
	_, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	if s.pool == nil {
		c.JSON(http.StatusOK, healthResponse{Status: "healthy"})
		return
	}

	health := s.pool.Health(c.Request.Context())
	status := "healthy"
	httpStatus := http.StatusOK
	if !health.IsHealthy {
		status = "unhealthy"
		httpStatus = http.StatusServiceUnavailable
	}

	c.JSON(httpStatus, healthResponse{
		Status: status,
		Pool: &poolSummary{
			IsHealthy:      health.IsHealthy,
			StoreReachable: health.StoreReachable,
			ActiveWorkers:  health.ActiveWorkers,
			ActiveTasks:    health.ActiveTasks,
		},
	})
}
