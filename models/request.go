package models

import "time"

// Output formats accepted by RenderRequest.Format.
const (
	FormatHTML     = "html"
	FormatMarkdown = "markdown"
	FormatText     = "text"
)

// DefaultRenderTimeoutMs is the navigation timeout applied when the client
// sends none.
const DefaultRenderTimeoutMs = 15000

// RenderRequest is the payload for POST /render.
type RenderRequest struct {
	// URL is the target page to render. Required.
	URL string `json:"url" binding:"required,url"`

	// Wait is an optional settle delay in milliseconds applied after the
	// load event. It is not a deadline.
	Wait *int `json:"wait,omitempty" binding:"omitempty,min=0"`

	// Timeout bounds navigation (up to the load event) in milliseconds.
	// Default: 15000.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1"`

	// Headers are extra HTTP headers sent with every request of the session.
	Headers map[string]string `json:"headers,omitempty"`

	// Format controls the response content.
	// Allowed: "html" (default, the rendered document), "markdown", "text".
	Format string `json:"format,omitempty" binding:"omitempty,oneof=html markdown text"`

	// OnlyMainContent strips navigation, footers and sidebars using
	// readability before formatting.
	OnlyMainContent bool `json:"only_main_content,omitempty"`

	// CSSSelector keeps only the matching elements before formatting.
	CSSSelector string `json:"css_selector,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *RenderRequest) Defaults() {
	if r.Timeout == 0 {
		r.Timeout = DefaultRenderTimeoutMs
	}
	if r.Format == "" {
		r.Format = FormatHTML
	}
}

// TimeoutDuration returns the navigation timeout as a time.Duration.
func (r *RenderRequest) TimeoutDuration() time.Duration {
	return time.Duration(r.Timeout) * time.Millisecond
}

// WaitDuration returns the post-load settle delay, or zero if none was set.
func (r *RenderRequest) WaitDuration() time.Duration {
	if r.Wait == nil || *r.Wait <= 0 {
		return 0
	}
	return time.Duration(*r.Wait) * time.Millisecond
}

// NeedsCleaning reports whether the rendered HTML must go through the
// cleaner before it is returned.
func (r *RenderRequest) NeedsCleaning() bool {
	return r.Format != FormatHTML || r.OnlyMainContent || r.CSSSelector != ""
}
