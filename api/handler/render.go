package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/scrapekit/cleaner"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/renderer"
)

// statusClientClosedRequest is reported when the caller went away before
// the render finished.
const statusClientClosedRequest = 499

// Renderer is the browser backend the handlers drive.
type Renderer interface {
	Render(ctx context.Context, req *models.RenderRequest) (*renderer.RenderResult, error)
	Stats() models.BrowserStats
}

// Render returns a handler for POST /render (and its /html alias).
//
// Orchestration flow:
//  1. Parse & validate request, apply defaults and limits.
//  2. Renderer.Render → rendered HTML + title   (records render_ms)
//  3. Cleaner.Clean   → html/markdown/text      (records cleaning_ms)
//  4. Fill Timing, return 200.
func Render(rd Renderer, cl *cleaner.Cleaner, cfg config.RenderConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		totalStart := time.Now()

		// ── 1. Parse request ────────────────────────────────────────
		var req models.RenderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, models.RenderResponse{
				Success: false,
				Error: &models.ErrorDetail{
					Code:    models.ErrCodeInvalidInput,
					Message: err.Error(),
				},
			})
			return
		}
		applyLimits(&req, cfg)

		// ── 2. Render ───────────────────────────────────────────────
		renderStart := time.Now()
		result, err := rd.Render(c.Request.Context(), &req)
		renderMs := time.Since(renderStart).Milliseconds()
		if err != nil {
			respondError(c, err, &models.TimingInfo{
				TotalMs:  time.Since(totalStart).Milliseconds(),
				RenderMs: renderMs,
			})
			return
		}

		// ── 3. Clean ────────────────────────────────────────────────
		content := result.HTML
		var cleaningMs int64
		if req.NeedsCleaning() {
			cleanStart := time.Now()
			content, err = cl.Clean(result.HTML, req.URL, cleaner.Options{
				Format:          req.Format,
				OnlyMainContent: req.OnlyMainContent,
				CSSSelector:     req.CSSSelector,
			})
			cleaningMs = time.Since(cleanStart).Milliseconds()
			if err != nil {
				respondError(c, err, &models.TimingInfo{
					TotalMs:    time.Since(totalStart).Milliseconds(),
					RenderMs:   renderMs,
					CleaningMs: cleaningMs,
				})
				return
			}
		}

		// ── 4. Respond ──────────────────────────────────────────────
		c.JSON(http.StatusOK, models.RenderResponse{
			Success: true,
			Content: content,
			Title:   result.Title,
			Format:  req.Format,
			Timing: &models.TimingInfo{
				TotalMs:    time.Since(totalStart).Milliseconds(),
				RenderMs:   renderMs,
				CleaningMs: cleaningMs,
			},
		})
	}
}

// applyLimits fills defaults from cfg and clamps the client-supplied
// timeout and settle delay to the configured maximums.
func applyLimits(req *models.RenderRequest, cfg config.RenderConfig) {
	if req.Timeout == 0 && cfg.DefaultTimeout > 0 {
		req.Timeout = int(cfg.DefaultTimeout.Milliseconds())
	}
	req.Defaults()

	if maxMs := int(cfg.MaxTimeout.Milliseconds()); maxMs > 0 && req.Timeout > maxMs {
		req.Timeout = maxMs
	}
	if req.Wait != nil && cfg.MaxWait > 0 {
		if maxMs := int(cfg.MaxWait.Milliseconds()); *req.Wait > maxMs {
			wait := maxMs
			req.Wait = &wait
		}
	}
}

// respondError maps a ScrapeError to the correct HTTP status code and writes
// a structured JSON error response.
func respondError(c *gin.Context, err error, timing *models.TimingInfo) {
	var scrapeErr *models.ScrapeError
	if !errors.As(err, &scrapeErr) {
		scrapeErr = models.NewScrapeError(models.ErrCodeInternal, "internal error", err)
	}

	c.JSON(mapErrorToStatus(scrapeErr), models.RenderResponse{
		Success: false,
		Error:   scrapeErr.ToDetail(),
		Timing:  timing,
	})
}

// mapErrorToStatus translates error codes to HTTP status codes.
func mapErrorToStatus(e *models.ScrapeError) int {
	switch e.Code {
	case models.ErrCodeTimeout:
		return http.StatusGatewayTimeout // 504
	case models.ErrCodeNavigation:
		return http.StatusBadGateway // 502
	case models.ErrCodeInvalidInput:
		return http.StatusBadRequest // 400
	case models.ErrCodeUnauthorized:
		return http.StatusUnauthorized // 401
	case models.ErrCodeNotReady:
		return http.StatusServiceUnavailable // 503
	case models.ErrCodeCanceled:
		return statusClientClosedRequest
	default:
		return http.StatusInternalServerError // 500
	}
}
