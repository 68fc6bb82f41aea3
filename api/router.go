package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/api/handler"
	"github.com/use-agent/scrapekit/api/middleware"
	"github.com/use-agent/scrapekit/cleaner"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/metrics"
)

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → RequestID → Observe
//	Render:  Auth (if tokens are configured)
//
// Health and metrics stay outside auth so probes and scrapers always work.
func NewRouter(rd handler.Renderer, cl *cleaner.Cleaner, cfg *config.Config, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Observe())

	r.GET("/health", handler.Health(rd, startTime))
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	protected := r.Group("")
	protected.Use(middleware.Auth(cfg.Auth.Tokens))

	render := handler.Render(rd, cl, cfg.Render)
	protected.POST("/render", render)
	// Path served by the first release of the service.
	protected.POST("/html", render)

	return r
}
