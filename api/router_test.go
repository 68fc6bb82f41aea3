package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/api/middleware"
	"github.com/use-agent/scrapekit/cleaner"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
	"github.com/use-agent/scrapekit/renderer"
)

type fakeRenderer struct {
	mu      sync.Mutex
	result  *renderer.RenderResult
	err     error
	started bool
	got     []models.RenderRequest
}

func (f *fakeRenderer) Render(_ context.Context, req *models.RenderRequest) (*renderer.RenderResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, *req)
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeRenderer) Stats() models.BrowserStats {
	return models.BrowserStats{Started: f.started}
}

func (f *fakeRenderer) lastRequest(t *testing.T) models.RenderRequest {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.got)
	return f.got[len(f.got)-1]
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{Mode: "test"},
		Render: config.RenderConfig{
			DefaultTimeout: 15 * time.Second,
			MaxTimeout:     30 * time.Second,
			MaxWait:        5 * time.Second,
		},
	}
}

const pageHTML = `<html><head><title>Example</title></head><body><h1>Hi</h1><p>there</p></body></html>`

func newTestRouter(rd *fakeRenderer, cfg *config.Config) http.Handler {
	return NewRouter(rd, cleaner.NewCleaner(), cfg, time.Now())
}

func doJSON(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) (*httptest.ResponseRecorder, models.RenderResponse) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp models.RenderResponse
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	}
	return rec, resp
}

func TestRender_Success(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML, Title: "Example"}}
	h := newTestRouter(rd, testConfig())

	rec, resp := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)
	require.Equal(t, pageHTML, resp.Content)
	require.Equal(t, "Example", resp.Title)
	require.Equal(t, models.FormatHTML, resp.Format)

	got := rd.lastRequest(t)
	require.Equal(t, 15000, got.Timeout)
	require.Nil(t, got.Wait)
}

func TestRender_HTMLAlias(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML}}
	h := newTestRouter(rd, testConfig())

	rec, resp := doJSON(t, h, http.MethodPost, "/html", map[string]any{"url": "https://example.com", "wait": 250, "timeout": 5000}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, pageHTML, resp.Content)

	got := rd.lastRequest(t)
	require.Equal(t, 5000, got.Timeout)
	require.NotNil(t, got.Wait)
	require.Equal(t, 250, *got.Wait)
}

func TestRender_LimitsClamped(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML}}
	h := newTestRouter(rd, testConfig())

	rec, _ := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com", "wait": 600000, "timeout": 600000}, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	got := rd.lastRequest(t)
	require.Equal(t, 30000, got.Timeout)
	require.Equal(t, 5000, *got.Wait)
}

func TestRender_Markdown(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML, Title: "Example"}}
	h := newTestRouter(rd, testConfig())

	rec, resp := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com", "format": "markdown"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, models.FormatMarkdown, resp.Format)
	require.Contains(t, resp.Content, "# Hi")
}

func TestRender_EmptyContentIsPresent(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: "<html><body></body></html>"}}
	h := newTestRouter(rd, testConfig())

	rec, resp := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com", "format": "text"}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, resp.Success)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	require.Contains(t, raw, "content")
	require.Equal(t, "", raw["content"])
}

func TestRender_InvalidInput(t *testing.T) {
	tests := []struct {
		name string
		body any
	}{
		{"missing url", map[string]any{"wait": 10}},
		{"bad url", map[string]any{"url": "not a url"}},
		{"negative wait", map[string]any{"url": "https://example.com", "wait": -1}},
		{"unknown format", map[string]any{"url": "https://example.com", "format": "pdf"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := &fakeRenderer{started: true}
			h := newTestRouter(rd, testConfig())

			rec, resp := doJSON(t, h, http.MethodPost, "/render", tt.body, nil)
			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.False(t, resp.Success)
			require.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
			require.Empty(t, rd.got)
		})
	}
}

func TestRender_ErrorStatus(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not started", models.NewScrapeError(models.ErrCodeNotReady, "browser is not ready", renderer.ErrNotStarted), http.StatusServiceUnavailable, models.ErrCodeNotReady},
		{"timeout", models.NewScrapeError(models.ErrCodeTimeout, "navigation timed out", context.DeadlineExceeded), http.StatusGatewayTimeout, models.ErrCodeTimeout},
		{"navigation", models.NewScrapeError(models.ErrCodeNavigation, "navigation failed", errors.New("net::ERR_NAME_NOT_RESOLVED")), http.StatusBadGateway, models.ErrCodeNavigation},
		{"untyped", errors.New("boom"), http.StatusInternalServerError, models.ErrCodeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rd := &fakeRenderer{started: true, err: tt.err}
			h := newTestRouter(rd, testConfig())

			rec, resp := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com"}, nil)
			require.Equal(t, tt.status, rec.Code)
			require.False(t, resp.Success)
			require.Equal(t, tt.code, resp.Error.Code)
		})
	}
}

func TestRender_InvalidSelector(t *testing.T) {
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML}}
	h := newTestRouter(rd, testConfig())

	rec, resp := doJSON(t, h, http.MethodPost, "/render", map[string]any{"url": "https://example.com", "css_selector": "p["}, nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, models.ErrCodeInvalidInput, resp.Error.Code)
}

func TestAuth(t *testing.T) {
	cfg := testConfig()
	cfg.Auth.Tokens = []string{"secret"}
	rd := &fakeRenderer{started: true, result: &renderer.RenderResult{HTML: pageHTML}}
	h := newTestRouter(rd, cfg)
	body := map[string]any{"url": "https://example.com"}

	rec, resp := doJSON(t, h, http.MethodPost, "/render", body, nil)
	require.Equal(t, http.StatusUnauthorized, rec.Code)
	require.Equal(t, models.ErrCodeUnauthorized, resp.Error.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/render", body, map[string]string{"Authorization": "Bearer wrong"})
	require.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/render", body, map[string]string{"Authorization": "Bearer secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, h, http.MethodPost, "/html", body, map[string]string{"X-API-Key": "secret"})
	require.Equal(t, http.StatusOK, rec.Code)

	// Health stays open.
	rec, _ = doJSON(t, h, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealth(t *testing.T) {
	rd := &fakeRenderer{started: false}
	h := newTestRouter(rd, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var health models.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "starting", health.Status)
	require.False(t, health.Browser.Started)

	rd.started = true
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	require.Equal(t, "healthy", health.Status)
}

func TestRequestID(t *testing.T) {
	rd := &fakeRenderer{started: true}
	h := newTestRouter(rd, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(middleware.RequestIDHeader, "abc-123")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	require.Equal(t, "abc-123", rec.Header().Get(middleware.RequestIDHeader))

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Len(t, rec.Header().Get(middleware.RequestIDHeader), 36)
}

func TestMetricsEndpoint(t *testing.T) {
	rd := &fakeRenderer{started: true}
	h := newTestRouter(rd, testConfig())

	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/health", nil))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "http_requests_total")
}
