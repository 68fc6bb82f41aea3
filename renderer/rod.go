package renderer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/launcher/flags"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/metrics"
	"github.com/ysmood/gson"
)

// rodLauncher launches a local Chromium through go-rod.
type rodLauncher struct{}

// Launch starts Chromium and connects to it over CDP.
func (rodLauncher) Launch(ctx context.Context, cfg config.BrowserConfig) (Browser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New().
		Headless(cfg.Headless).
		NoSandbox(cfg.NoSandbox)

	if cfg.BrowserBin != "" {
		l = l.Bin(cfg.BrowserBin)
	}

	// ── Hardening flags ──────────────────────────────────────────────
	l.Set(flags.Flag("disable-blink-features"), "AutomationControlled")
	l.Delete(flags.Flag("enable-automation"))
	l.Set(flags.Flag("disable-features"), "AudioServiceOutOfProcess,TranslateUI")
	l.Set(flags.Flag("disable-background-timer-throttling"))
	l.Set(flags.Flag("disable-backgrounding-occluded-windows"))
	l.Set(flags.Flag("disable-renderer-backgrounding"))
	l.Set(flags.Flag("disable-component-update"))
	l.Set(flags.Flag("disable-default-apps"))
	l.Set(flags.Flag("disable-dev-shm-usage"))
	l.Set(flags.Flag("disable-extensions"))
	l.Set(flags.Flag("no-first-run"))

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("launch chromium: %w", err)
	}
	slog.Info("browser launched", "controlURL", controlURL)

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("connect to chromium: %w", err)
	}

	return &rodBrowser{browser: browser, launcher: l}, nil
}

// rodBrowser is a connected Chromium process.
type rodBrowser struct {
	browser  *rod.Browser
	launcher *launcher.Launcher
}

// NewSession creates a fresh browser context (isolated cookies, storage
// and proxy) and opens one blank page inside it.
func (b *rodBrowser) NewSession(ctx context.Context, opts SessionOptions) (Session, error) {
	browser := b.browser.Context(ctx)

	create := proto.TargetCreateBrowserContext{DisposeOnDetach: true}
	if opts.Proxy != nil {
		create.ProxyServer = opts.Proxy.Server
	}
	bc, err := create.Call(browser)
	if err != nil {
		return nil, fmt.Errorf("create browser context: %w", err)
	}

	// browser.Page would replace BrowserContextID with the default
	// context, so the target is created directly.
	target, err := proto.TargetCreateTarget{
		URL:              "about:blank",
		BrowserContextID: bc.BrowserContextID,
	}.Call(browser)
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(b.browser)
		return nil, fmt.Errorf("create page: %w", err)
	}

	page, err := b.browser.PageFromTarget(target.TargetID)
	if err != nil {
		_ = proto.TargetDisposeBrowserContext{BrowserContextID: bc.BrowserContextID}.Call(b.browser)
		return nil, fmt.Errorf("attach page: %w", err)
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	s := &rodSession{
		browser:   b.browser,
		page:      page,
		contextID: bc.BrowserContextID,
		cancel:    cancel,
	}

	if err := s.setup(sessCtx, opts); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the browser over CDP and waits for the process to exit.
func (b *rodBrowser) Close() error {
	err := b.browser.Close()
	b.launcher.Cleanup()
	return err
}

// rodSession is a browser context with a single page.
type rodSession struct {
	browser   *rod.Browser
	page      *rod.Page
	contextID proto.BrowserBrowserContextID
	cancel    context.CancelFunc

	closeOnce sync.Once
	closeErr  error
}

// setup installs everything that must be in place before navigation.
// Order matters: stealth JS and request interception only apply to
// navigations that start after they are installed.
func (s *rodSession) setup(ctx context.Context, opts SessionOptions) error {
	if opts.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth",
				"error", err,
			)
		}
	}

	if len(opts.Headers) > 0 {
		if err := (proto.NetworkEnable{}).Call(s.page); err != nil {
			return fmt.Errorf("enable network domain: %w", err)
		}
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(opts.Headers)}).Call(s.page); err != nil {
			return fmt.Errorf("set extra headers: %w", err)
		}
	}

	if opts.intercepts() {
		if err := s.intercept(ctx, opts); err != nil {
			return fmt.Errorf("enable request interception: %w", err)
		}
	}
	return nil
}

// intercept pauses every request of the page in the Fetch domain. Media
// requests are failed when blocking is on, proxy auth challenges are
// answered with the configured credentials, and everything else continues
// untouched. A single Fetch session serves both so they cannot conflict.
func (s *rodSession) intercept(ctx context.Context, opts SessionOptions) error {
	p := s.page.Context(ctx)

	// The listener must be subscribed before Fetch is enabled, or the
	// first paused request would never be answered.
	wait := p.EachEvent(
		func(e *proto.FetchRequestPaused) {
			if opts.BlockMedia && IsBlockedMedia(e.Request.URL) {
				metrics.ObserveBlockedMedia()
				_ = proto.FetchFailRequest{
					RequestID:   e.RequestID,
					ErrorReason: proto.NetworkErrorReasonBlockedByClient,
				}.Call(p)
				return
			}
			_ = proto.FetchContinueRequest{RequestID: e.RequestID}.Call(p)
		},
		func(e *proto.FetchAuthRequired) {
			resp := &proto.FetchAuthChallengeResponse{
				Response: proto.FetchAuthChallengeResponseResponseDefault,
			}
			if opts.Proxy != nil && e.AuthChallenge != nil &&
				e.AuthChallenge.Source == proto.FetchAuthChallengeSourceProxy {
				resp = &proto.FetchAuthChallengeResponse{
					Response: proto.FetchAuthChallengeResponseResponseProvideCredentials,
					Username: opts.Proxy.Username,
					Password: opts.Proxy.Password,
				}
			}
			_ = proto.FetchContinueWithAuth{
				RequestID:             e.RequestID,
				AuthChallengeResponse: resp,
			}.Call(p)
		},
	)
	// wait returns once ctx is canceled by Close.
	go wait()

	return proto.FetchEnable{
		Patterns:           []*proto.FetchRequestPattern{{URLPattern: "*"}},
		HandleAuthRequests: opts.Proxy != nil,
	}.Call(p)
}

// Navigate loads url and waits for the load event. ctx bounds both.
func (s *rodSession) Navigate(ctx context.Context, url string) error {
	p := s.page.Context(ctx)
	if err := p.Navigate(url); err != nil {
		return err
	}
	return p.WaitLoad()
}

// HTML returns the outer HTML of the document.
func (s *rodSession) HTML(ctx context.Context) (string, error) {
	return s.page.Context(ctx).HTML()
}

// Close stops interception, closes the page and disposes the browser
// context. It uses the original page reference (without the request
// context), so cleanup succeeds even if the request context has expired.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.cancel()
		pageErr := s.page.Close()
		disposeErr := proto.TargetDisposeBrowserContext{BrowserContextID: s.contextID}.Call(s.browser)
		s.closeErr = errors.Join(pageErr, disposeErr)
	})
	return s.closeErr
}

// toHeadersMap converts a plain string map to the proto.NetworkHeaders type
// (map[string]gson.JSON) required by NetworkSetExtraHTTPHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
