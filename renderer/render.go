package renderer

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/scrapekit/metrics"
	"github.com/use-agent/scrapekit/models"
)

// RenderResult is the output of a single render.
type RenderResult struct {
	HTML  string
	Title string
}

// Render loads req.URL in a fresh isolated session and returns the
// rendered document.
//
// Lifecycle:
//
//  1. Acquire browser   – fail fast if Start has not completed
//  2. Create session    – proxy, media filter, stealth, headers
//  3. DEFER: destroy    – runs on every exit path, exactly once
//  4. Navigate          – bounded by req.Timeout, waits for load
//  5. Settle            – optional req.Wait idle, cancellable by ctx only
//  6. Extract           – outer HTML + document title
//
// Nothing is retried. Cancelling ctx aborts steps 4-6.
func (s *Service) Render(ctx context.Context, req *models.RenderRequest) (result *RenderResult, err error) {
	start := time.Now()
	defer func() {
		metrics.ObserveRender(outcome(err), time.Since(start))
	}()

	// ── 1. Acquire browser ───────────────────────────────────────────
	browser, err := s.acquire()
	if err != nil {
		return nil, err
	}

	// ── 2. Create session ────────────────────────────────────────────
	sess, err := browser.NewSession(ctx, s.sessionOptions(req))
	if err != nil {
		return nil, categorizeError(ctx, err, models.ErrCodeSession, "failed to create browser session")
	}
	s.activeSessions.Add(1)
	metrics.IncActiveSessions()

	// ── 3. CRITICAL DEFER: destroy session ───────────────────────────
	defer func() {
		if closeErr := sess.Close(); closeErr != nil {
			slog.Warn("cleanup: failed to destroy browser session",
				"url", req.URL,
				"error", closeErr,
			)
		}
		s.activeSessions.Add(-1)
		metrics.DecActiveSessions()
	}()

	// ── 4. Navigate ──────────────────────────────────────────────────
	navCtx, cancel := context.WithTimeout(ctx, req.TimeoutDuration())
	err = sess.Navigate(navCtx, req.URL)
	timedOut := errors.Is(navCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil
	cancel()
	if err != nil {
		if timedOut {
			return nil, models.NewScrapeError(models.ErrCodeTimeout, "navigation timed out", err)
		}
		return nil, categorizeError(ctx, err, models.ErrCodeNavigation, "navigation to target URL failed")
	}

	// ── 5. Settle ────────────────────────────────────────────────────
	if wait := req.WaitDuration(); wait > 0 {
		timer := time.NewTimer(wait)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return nil, categorizeError(ctx, ctx.Err(), models.ErrCodeCanceled, "request canceled during settle delay")
		}
	}

	// ── 6. Extract ───────────────────────────────────────────────────
	html, err := sess.HTML(ctx)
	if err != nil {
		return nil, categorizeError(ctx, err, models.ErrCodeExtraction, "failed to extract page HTML")
	}

	return &RenderResult{
		HTML:  html,
		Title: extractTitle(html),
	}, nil
}

// categorizeError wraps raw errors into typed ScrapeErrors so the API layer
// can map them to appropriate HTTP status codes. Cancellation by the caller
// takes precedence over code.
func categorizeError(ctx context.Context, err error, code, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "request canceled", err)
	case errors.Is(err, context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	default:
		return models.NewScrapeError(code, msg, err)
	}
}

// extractTitle returns the document title, or "" if there is none.
func extractTitle(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}
	return strings.TrimSpace(doc.Find("title").First().Text())
}

// outcome labels a render result for metrics.
func outcome(err error) string {
	if err == nil {
		return "success"
	}
	var se *models.ScrapeError
	if errors.As(err, &se) {
		return strings.ToLower(se.Code)
	}
	return "error"
}
