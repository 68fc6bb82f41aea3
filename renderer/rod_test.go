package renderer

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/models"
)

// chromiumConfig returns a config for a locally installed Chromium, or
// skips the test when there is none.
func chromiumConfig(t *testing.T) config.BrowserConfig {
	t.Helper()
	if testing.Short() {
		t.Skip("browser tests disabled in short mode")
	}
	bin, ok := launcher.LookPath()
	if !ok {
		t.Skip("no Chromium binary found")
	}
	return config.BrowserConfig{
		Headless:   true,
		NoSandbox:  true,
		BrowserBin: bin,
	}
}

func startChromium(t *testing.T, cfg config.BrowserConfig) *Service {
	t.Helper()
	svc := New(cfg)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	require.NoError(t, svc.Start(ctx))
	t.Cleanup(func() { _ = svc.Stop() })
	return svc
}

// openContexts lists the non-default browser contexts still alive.
func openContexts(t *testing.T, svc *Service) []proto.BrowserBrowserContextID {
	t.Helper()
	svc.mu.RLock()
	rb := svc.browser.(*rodBrowser)
	svc.mu.RUnlock()
	res, err := proto.TargetGetBrowserContexts{}.Call(rb.browser)
	require.NoError(t, err)
	return res.BrowserContextIDs
}

// imagePage serves a page referencing /photo.png and counts image hits.
func imagePage(t *testing.T) (*httptest.Server, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>Gallery</title></head><body><img src="/photo.png"></body></html>`))
	})
	mux.HandleFunc("/photo.png", func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		w.WriteHeader(http.StatusOK)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, &hits
}

func TestRod_MediaBlocking(t *testing.T) {
	base := chromiumConfig(t)

	tests := []struct {
		name       string
		blockMedia bool
		wantHits   bool
	}{
		{"blocked", true, false},
		{"allowed", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := base
			cfg.BlockMedia = tt.blockMedia
			svc := startChromium(t, cfg)
			srv, hits := imagePage(t)

			res, err := svc.Render(context.Background(), renderRequest(srv.URL+"/"))
			require.NoError(t, err)
			require.Equal(t, "Gallery", res.Title)
			require.Contains(t, res.HTML, `src="/photo.png"`)

			if tt.wantHits {
				require.Positive(t, hits.Load())
			} else {
				require.Zero(t, hits.Load())
			}
			require.Zero(t, svc.Stats().ActiveSessions)
			require.Empty(t, openContexts(t, svc))
		})
	}
}

func TestRod_NavigationTimeoutDestroysSession(t *testing.T) {
	cfg := chromiumConfig(t)
	cfg.BlockMedia = true
	svc := startChromium(t, cfg)

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(srv.Close)
	t.Cleanup(func() { close(release) })

	req := renderRequest(srv.URL + "/slow")
	req.Timeout = 300

	_, err := svc.Render(context.Background(), req)
	requireCode(t, err, models.ErrCodeTimeout)
	require.Zero(t, svc.Stats().ActiveSessions)
	require.Empty(t, openContexts(t, svc))
}

func TestRod_ProxyCredentials(t *testing.T) {
	cfg := chromiumConfig(t)

	want := "Basic " + base64.StdEncoding.EncodeToString([]byte("scraper:hunter2"))
	var challenged atomic.Int32
	proxy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Proxy-Authorization") != want {
			challenged.Add(1)
			w.Header().Set("Proxy-Authenticate", `Basic realm="scrapekit"`)
			w.WriteHeader(http.StatusProxyAuthRequired)
			return
		}
		// The proxy answers as the origin for the requested host.
		w.Header().Set("Content-Type", "text/html")
		_, _ = w.Write([]byte(`<html><head><title>via ` + r.Host + `</title></head><body></body></html>`))
	}))
	t.Cleanup(proxy.Close)

	cfg.Proxy = config.ProxyConfig{Server: proxy.URL, Username: "scraper", Password: "hunter2"}
	svc := startChromium(t, cfg)

	res, err := svc.Render(context.Background(), renderRequest("http://scrapekit.test/"))
	require.NoError(t, err)
	require.Equal(t, "via scrapekit.test", res.Title)
	require.Positive(t, challenged.Load())
	require.Empty(t, openContexts(t, svc))
}

func TestRod_SessionCloseOnce(t *testing.T) {
	cfg := chromiumConfig(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	b, err := rodLauncher{}.Launch(ctx, cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = b.Close() })

	sess, err := b.NewSession(ctx, SessionOptions{BlockMedia: true, Headers: map[string]string{"X-Test": "1"}})
	require.NoError(t, err)

	rb := b.(*rodBrowser)
	res, err := proto.TargetGetBrowserContexts{}.Call(rb.browser)
	require.NoError(t, err)
	require.Len(t, res.BrowserContextIDs, 1)

	require.NoError(t, sess.Close())
	require.NoError(t, sess.Close())

	res, err = proto.TargetGetBrowserContexts{}.Call(rb.browser)
	require.NoError(t, err)
	require.Empty(t, res.BrowserContextIDs)
}
