package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/use-agent/scrapekit/api"
	"github.com/use-agent/scrapekit/cleaner"
	"github.com/use-agent/scrapekit/config"
	"github.com/use-agent/scrapekit/metrics"
	"github.com/use-agent/scrapekit/renderer"
)

// shutdownGrace is how long in-flight renders get to finish on shutdown.
const shutdownGrace = 10 * time.Second

func main() {
	// ── 1. Load configuration ───────────────────────────────────────
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// ── 2. Initialise structured logging ────────────────────────────
	slog.SetDefault(config.NewLogger(cfg.Log, os.Stdout))
	slog.Info("scrapekit starting",
		"host", cfg.Server.Host,
		"port", cfg.Server.Port,
		"mode", cfg.Server.Mode,
		"proxy", cfg.Browser.Proxy.Enabled(),
		"blockMedia", cfg.Browser.BlockMedia,
	)
	metrics.Init()

	// ── 3. Launch browser ───────────────────────────────────────────
	// The listener opens only after this succeeds.
	svc := renderer.New(cfg.Browser)
	startCtx, cancelStart := context.WithTimeout(context.Background(), time.Minute)
	err = svc.Start(startCtx)
	cancelStart()
	if err != nil {
		slog.Error("failed to start browser", "error", err)
		os.Exit(1)
	}

	// ── 4. Setup router ─────────────────────────────────────────────
	startTime := time.Now()
	router := api.NewRouter(svc, cleaner.NewCleaner(), cfg, startTime)

	// ── 5. Start HTTP server ────────────────────────────────────────
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	// ── 6. Graceful shutdown ────────────────────────────────────────
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	exitCode := 0
	select {
	case sig := <-quit:
		slog.Info("shutdown signal received", "signal", sig.String())
	case err := <-serveErr:
		slog.Error("HTTP server error", "error", err)
		exitCode = 1
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownGrace)
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("HTTP server forced shutdown", "error", err)
	} else {
		slog.Info("HTTP server drained gracefully")
	}
	cancel()

	// Browser closes after the server has drained.
	if err := svc.Stop(); err != nil {
		slog.Error("browser shutdown failed", "error", err)
		exitCode = 1
	}

	slog.Info("scrapekit stopped")
	os.Exit(exitCode)
}
