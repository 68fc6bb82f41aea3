package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/require"
	"github.com/use-agent/scrapekit/client"
	"github.com/use-agent/scrapekit/config"
)

func newToolClient(t *testing.T, h http.HandlerFunc) *client.Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := client.New("fc-test",
		client.WithURL(srv.URL),
		client.WithSleeper(func(context.Context, time.Duration) error { return nil }),
	)
	require.NoError(t, err)
	return c
}

func callTool(args map[string]any) mcp.CallToolRequest {
	var req mcp.CallToolRequest
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotEmpty(t, res.Content)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok)
	return text.Text
}

func TestScrapeURLTool(t *testing.T) {
	var got map[string]any
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/scrape", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"success":true,"data":{"markdown":"# Hi"}}`))
	})

	res, err := handleScrapeURL(c)(context.Background(), callTool(map[string]any{
		"url":               "https://example.com",
		"only_main_content": true,
		"schema":            `{"type":"object"}`,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), `"markdown": "# Hi"`)

	require.Equal(t, "https://example.com", got["url"])
	extractor := got["extractorOptions"].(map[string]any)
	require.Equal(t, client.ExtractionModeLLM, extractor["mode"])
}

func TestScrapeURLTool_Validation(t *testing.T) {
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})

	res, err := handleScrapeURL(c)(context.Background(), callTool(map[string]any{}))
	require.NoError(t, err)
	require.True(t, res.IsError)

	res, err = handleScrapeURL(c)(context.Background(), callTool(map[string]any{
		"url":    "https://example.com",
		"schema": "{not json",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "valid JSON")
}

func TestCrawlURLTool_NoWait(t *testing.T) {
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/crawl", r.URL.Path)
		_, _ = w.Write([]byte(`{"jobId":"job-1"}`))
	})

	res, err := handleCrawlURL(c, config.ClientConfig{})(context.Background(), callTool(map[string]any{
		"url":             "https://example.com",
		"wait_until_done": false,
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), `"jobId": "job-1"`)
}

func TestCrawlURLTool_Wait(t *testing.T) {
	checks := 0
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/v0/crawl":
			_, _ = w.Write([]byte(`{"jobId":"job-2"}`))
		case "/v0/crawl/status/job-2":
			checks++
			if checks < 2 {
				_, _ = w.Write([]byte(`{"status":"active","current":1,"total":2}`))
				return
			}
			_, _ = w.Write([]byte(`{"status":"completed","data":[{"url":"https://example.com"}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	})

	res, err := handleCrawlURL(c, config.ClientConfig{PollInterval: time.Second})(context.Background(), callTool(map[string]any{
		"url":      "https://example.com",
		"includes": []any{"/blog/*"},
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), `"url": "https://example.com"`)
	require.Equal(t, 2, checks)
}

func TestCrawlURLTool_JobFailed(t *testing.T) {
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v0/crawl" {
			_, _ = w.Write([]byte(`{"jobId":"job-3"}`))
			return
		}
		_, _ = w.Write([]byte(`{"status":"failed"}`))
	})

	res, err := handleCrawlURL(c, config.ClientConfig{})(context.Background(), callTool(map[string]any{
		"url": "https://example.com",
	}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "job-3")
}

func TestCheckCrawlStatusTool(t *testing.T) {
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/crawl/status/job-4", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"active","current":3,"total":10}`))
	})

	res, err := handleCheckCrawlStatus(c)(context.Background(), callTool(map[string]any{
		"job_id": "job-4",
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Contains(t, resultText(t, res), "active (3/10)")
}

func TestSearchTool(t *testing.T) {
	var got map[string]any
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v0/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"success":true,"data":[]}`))
	})

	res, err := handleSearch(c)(context.Background(), callTool(map[string]any{
		"query": "golang",
		"limit": float64(5),
	}))
	require.NoError(t, err)
	require.False(t, res.IsError)
	require.Equal(t, "golang", got["query"])
	require.Equal(t, float64(5), got["searchOptions"].(map[string]any)["limit"])
}

func TestSearchTool_RemoteError(t *testing.T) {
	c := newToolClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"search backend down"}`))
	})

	res, err := handleSearch(c)(context.Background(), callTool(map[string]any{"query": "golang"}))
	require.NoError(t, err)
	require.True(t, res.IsError)
	require.Contains(t, resultText(t, res), "search backend down")
}
