package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/scrapekit/client"
	"github.com/use-agent/scrapekit/config"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	// stdout carries the MCP protocol, so logs go to stderr.
	logger := config.NewLogger(cfg.Log, os.Stderr)
	slog.SetDefault(logger)

	if cfg.Client.APIKey == "" {
		fmt.Fprintln(os.Stderr, "FIRECRAWL_API_KEY is required")
		os.Exit(1)
	}

	transport := client.NewRetryTransport(nil)
	transport.MaxAttempts = cfg.Client.MaxAttempts
	transport.BaseDelay = cfg.Client.BaseDelay

	c, err := client.New(cfg.Client.APIKey,
		client.WithURL(cfg.Client.APIURL),
		client.WithTransport(transport),
		client.WithLogger(logger),
	)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"scrapekit",
		"1.0.0",
		server.WithToolCapabilities(false),
	)
	registerTools(s, c, cfg.Client)

	logger.Info("MCP server ready", "apiURL", cfg.Client.APIURL)
	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}
