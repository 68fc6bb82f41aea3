package renderer

import (
	"context"

	"github.com/use-agent/scrapekit/config"
)

// Launcher starts the browser process a Service renders with.
type Launcher interface {
	Launch(ctx context.Context, cfg config.BrowserConfig) (Browser, error)
}

// Browser is a running browser process that can host isolated sessions.
// Implementations must be safe for concurrent NewSession calls.
type Browser interface {
	NewSession(ctx context.Context, opts SessionOptions) (Session, error)
	Close() error
}

// Session is one isolated browsing environment (its own cookies, storage
// and proxy binding) holding a single page.
type Session interface {
	// Navigate loads url and returns once the load event has fired.
	Navigate(ctx context.Context, url string) error
	// HTML returns the outer HTML of the current document.
	HTML(ctx context.Context) (string, error)
	// Close destroys the session. Calls after the first are no-ops.
	Close() error
}

// SessionOptions configures a new session.
type SessionOptions struct {
	// Proxy routes all session traffic through an authenticated proxy.
	// Nil means direct connections.
	Proxy *config.ProxyConfig

	// BlockMedia fails image, audio and video requests before they leave
	// the browser. See IsBlockedMedia.
	BlockMedia bool

	// Stealth injects the stealth evasion script before navigation.
	Stealth bool

	// Headers are sent with every request the session makes.
	Headers map[string]string
}

// intercepts reports whether the session needs request interception.
func (o SessionOptions) intercepts() bool {
	return o.BlockMedia || o.Proxy != nil
}
