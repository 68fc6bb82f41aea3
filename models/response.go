package models

// RenderResponse is the response for POST /render.
type RenderResponse struct {
	// Success indicates whether the render completed without errors.
	Success bool `json:"success"`

	// Content is the rendered document, or its cleaned form when a non-html
	// format or a content filter was requested.
	Content string `json:"content"`

	// Title is the document title.
	Title string `json:"title,omitempty"`

	// Format echoes the output format of Content.
	Format string `json:"format,omitempty"`

	// Timing provides duration breakdowns for the operation.
	Timing *TimingInfo `json:"timing,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TimingInfo breaks down the time spent in each phase.
type TimingInfo struct {
	// TotalMs is the end-to-end duration in milliseconds.
	TotalMs int64 `json:"total_ms"`

	// RenderMs is the time spent in the browser session.
	RenderMs int64 `json:"render_ms"`

	// CleaningMs is the time spent converting the rendered HTML.
	CleaningMs int64 `json:"cleaning_ms,omitempty"`
}

// HealthResponse is the response for GET /health.
type HealthResponse struct {
	Status  string       `json:"status"` // "healthy" or "starting"
	Uptime  string       `json:"uptime"`
	Browser BrowserStats `json:"browser"`
	Version string       `json:"version"`
}

// BrowserStats reports the state of the shared browser.
type BrowserStats struct {
	Started        bool `json:"started"`
	ActiveSessions int  `json:"active_sessions"`
}
