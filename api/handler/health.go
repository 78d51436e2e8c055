package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/sitelens/browser"
	"github.com/use-agent/sitelens/models"
)

// Health returns a handler for GET /api/v1/health.
//
// Reports pool utilisation and degrades status when > 80% of sessions
// are busy.
func Health(pool *browser.Pool, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		maxSize, live, busy, waiting := pool.Stats()

		status := "healthy"
		if maxSize > 0 && busy > int(float64(maxSize)*0.8) {
			status = "degraded"
		}

		c.JSON(http.StatusOK, models.HealthResponse{
			Status: status,
			Uptime: time.Since(startTime).Round(time.Second).String(),
			PoolStats: models.PoolStats{
				MaxSessions:  maxSize,
				LiveSessions: live,
				BusySessions: busy,
				Waiting:      waiting,
			},
			Version: "0.1.0",
		})
	}
}
