// Package renderer owns the shared headless browser and turns render
// requests into fully rendered HTML, one isolated session per request.
package renderer

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
)

var (
	// ErrNotStarted is returned by Render before Start has completed.
	ErrNotStarted = errors.New("renderer: browser not started")
	// ErrAlreadyStarted is returned by a second call to Start.
	ErrAlreadyStarted = errors.New("renderer: browser already started")
	// ErrStopped is returned by Render and Start once Stop has been called.
	ErrStopped = errors.New("renderer: service stopped")
)

type state int

const (
	stateNew state = iota
	stateStarting
	stateRunning
	stateStopped
)

// Service manages the browser lifecycle. Exactly one browser process
// exists per Service between Start and Stop. It is safe for concurrent use.
type Service struct {
	cfg      config.BrowserConfig
	launcher Launcher

	mu        sync.RWMutex
	state     state
	browser   Browser
	startedAt time.Time

	activeSessions atomic.Int32
}

// Option configures a Service.
type Option func(*Service)

// WithLauncher replaces the rod launcher used by Start.
func WithLauncher(l Launcher) Option {
	return func(s *Service) {
		s.launcher = l
	}
}

// New creates a Service. No browser is launched until Start.
func New(cfg config.BrowserConfig, opts ...Option) *Service {
	s := &Service{
		cfg:      cfg,
		launcher: rodLauncher{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start launches the browser. Render calls made while Start is still
// running fail with ErrNotStarted instead of waiting.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case stateStarting, stateRunning:
		s.mu.Unlock()
		return ErrAlreadyStarted
	case stateStopped:
		s.mu.Unlock()
		return ErrStopped
	}
	s.state = stateStarting
	s.mu.Unlock()

	browser, err := s.launcher.Launch(ctx, s.cfg)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		if s.state == stateStarting {
			s.state = stateNew
		}
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to launch browser", err)
	}
	if s.state == stateStopped {
		// Stop raced with the launch.
		_ = browser.Close()
		return ErrStopped
	}
	s.browser = browser
	s.state = stateRunning
	s.startedAt = time.Now()

	slog.Info("browser started",
		"headless", s.cfg.Headless,
		"proxy", s.cfg.Proxy.Enabled(),
		"blockMedia", s.cfg.BlockMedia,
		"stealth", s.cfg.Stealth,
	)
	return nil
}

// Stop closes the browser and releases its process. It is idempotent;
// after Stop no new sessions are created.
func (s *Service) Stop() error {
	s.mu.Lock()
	browser := s.browser
	s.browser = nil
	s.state = stateStopped
	s.mu.Unlock()

	if browser == nil {
		return nil
	}
	slog.Info("browser shutting down", "activeSessions", s.activeSessions.Load())
	if err := browser.Close(); err != nil {
		return models.NewScrapeError(models.ErrCodeBrowserCrash, "failed to close browser", err)
	}
	slog.Info("browser shutdown complete")
	return nil
}

// Stats returns a snapshot of the browser state.
func (s *Service) Stats() models.BrowserStats {
	s.mu.RLock()
	started := s.state == stateRunning
	s.mu.RUnlock()
	return models.BrowserStats{
		Started:        started,
		ActiveSessions: int(s.activeSessions.Load()),
	}
}

// acquire returns the running browser or the lifecycle error explaining
// why there is none.
func (s *Service) acquire() (Browser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch s.state {
	case stateRunning:
		return s.browser, nil
	case stateStopped:
		return nil, models.NewScrapeError(models.ErrCodeNotReady, "renderer is shut down", ErrStopped)
	default:
		return nil, models.NewScrapeError(models.ErrCodeNotReady, "browser is not ready", ErrNotStarted)
	}
}

// sessionOptions derives the per-request session settings. The proxy is
// attached only when server, username and password are all set.
func (s *Service) sessionOptions(req *models.RenderRequest) SessionOptions {
	opts := SessionOptions{
		BlockMedia: s.cfg.BlockMedia,
		Stealth:    s.cfg.Stealth,
		Headers:    req.Headers,
	}
	if s.cfg.Proxy.Enabled() {
		proxy := s.cfg.Proxy
		opts.Proxy = &proxy
	}
	return opts
}
