package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/models"
)

// Version is reported by the health endpoint. Overridden at build time with
// -ldflags "-X github.com/use-agent/scrapekit/api/handler.Version=...".
var Version = "0.1.0"

// Health returns a handler for GET /health.
//
// Reports "starting" with 503 until the browser is up.
func Health(rd Renderer, startTime time.Time) gin.HandlerFunc {
	return func(c *gin.Context) {
		stats := rd.Stats()

		status, code := "healthy", http.StatusOK
		if !stats.Started {
			status, code = "starting", http.StatusServiceUnavailable
		}

		c.JSON(code, models.HealthResponse{
			Status:  status,
			Uptime:  time.Since(startTime).Round(time.Second).String(),
			Browser: stats,
			Version: Version,
		})
	}
}
