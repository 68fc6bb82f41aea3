package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/use-agent/scrapekit/client"
	"github.com/use-agent/scrapekit/config"
)

// registerTools exposes the client operations as MCP tools.
func registerTools(s *server.MCPServer, c *client.Client, cfg config.ClientConfig) {
	scrapeURLTool := mcp.NewTool("scrape_url",
		mcp.WithDescription("Scrape a single web page and return its content. Optionally extract structured data with a JSON schema."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the web page to scrape"),
		),
		mcp.WithBoolean("only_main_content",
			mcp.Description("Drop navigation, headers and footers (default: false)"),
		),
		mcp.WithString("schema",
			mcp.Description("JSON schema describing structured data to extract from the page"),
		),
		mcp.WithString("extraction_prompt",
			mcp.Description("Instructions for the structured extraction"),
		),
		mcp.WithNumber("timeout",
			mcp.Description("Page timeout in milliseconds"),
		),
	)
	s.AddTool(scrapeURLTool, handleScrapeURL(c))

	crawlURLTool := mcp.NewTool("crawl_url",
		mcp.WithDescription("Crawl a website starting from a URL. Waits for the crawl job to finish and returns every page, or returns the job id immediately when wait_until_done is false."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The starting URL to crawl from"),
		),
		mcp.WithNumber("max_depth",
			mcp.Description("Maximum link depth from the starting URL"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of pages to crawl"),
		),
		mcp.WithArray("includes",
			mcp.Description("URL patterns to include"),
			mcp.WithStringItems(),
		),
		mcp.WithArray("excludes",
			mcp.Description("URL patterns to exclude"),
			mcp.WithStringItems(),
		),
		mcp.WithBoolean("only_main_content",
			mcp.Description("Drop navigation, headers and footers on every page"),
		),
		mcp.WithBoolean("wait_until_done",
			mcp.Description("Poll the job until it finishes (default: true)"),
		),
		mcp.WithNumber("poll_interval",
			mcp.Description("Seconds between status checks (minimum 2)"),
		),
	)
	s.AddTool(crawlURLTool, handleCrawlURL(c, cfg))

	statusTool := mcp.NewTool("check_crawl_status",
		mcp.WithDescription("Report the status and progress of a crawl job."),
		mcp.WithString("job_id",
			mcp.Required(),
			mcp.Description("The id returned by crawl_url"),
		),
	)
	s.AddTool(statusTool, handleCheckCrawlStatus(c))

	searchTool := mcp.NewTool("search",
		mcp.WithDescription("Search the web and return the content of the result pages."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("The search query"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results"),
		),
	)
	s.AddTool(searchTool, handleSearch(c))
}

func handleScrapeURL(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		params := &client.ScrapeParams{
			PageOptions: &client.PageOptions{
				OnlyMainContent: request.GetBool("only_main_content", false),
			},
			Timeout: request.GetInt("timeout", 0),
		}

		schema := request.GetString("schema", "")
		prompt := request.GetString("extraction_prompt", "")
		if schema != "" || prompt != "" {
			params.ExtractorOptions = &client.ExtractorOptions{ExtractionPrompt: prompt}
			if schema != "" {
				if !json.Valid([]byte(schema)) {
					return mcp.NewToolResultError("schema must be valid JSON"), nil
				}
				params.ExtractorOptions.ExtractionSchema = json.RawMessage(schema)
			}
		}

		data, err := c.ScrapeURL(ctx, url, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(data), nil
	}
}

func handleCrawlURL(c *client.Client, cfg config.ClientConfig) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		params := &client.CrawlParams{
			CrawlerOptions: &client.CrawlerOptions{
				Includes: request.GetStringSlice("includes", nil),
				Excludes: request.GetStringSlice("excludes", nil),
				MaxDepth: request.GetInt("max_depth", 0),
				Limit:    request.GetInt("limit", 0),
			},
		}
		if request.GetBool("only_main_content", false) {
			params.PageOptions = &client.PageOptions{OnlyMainContent: true}
		}

		poll := client.PollOptions{
			Interval: cfg.PollInterval,
			Timeout:  cfg.PollTimeout,
		}
		if secs := request.GetFloat("poll_interval", 0); secs > 0 {
			poll.Interval = time.Duration(secs * float64(time.Second))
		}

		data, err := c.CrawlURL(ctx, url, params, request.GetBool("wait_until_done", true), poll)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(data), nil
	}
}

func handleCheckCrawlStatus(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		jobID, err := request.RequireString("job_id")
		if err != nil {
			return mcp.NewToolResultError("job_id is required"), nil
		}

		job, err := c.CheckCrawlStatus(ctx, jobID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		text := fmt.Sprintf("Job %s: %s (%d/%d)", job.JobID, job.Status, job.Current, job.Total)
		if job.Error != "" {
			text += "\nError: " + job.Error
		}
		if job.Status == client.StatusCompleted && job.HasData() {
			text += "\n\n" + indent(job.Data)
		}
		return mcp.NewToolResultText(text), nil
	}
}

func handleSearch(c *client.Client) server.ToolHandlerFunc {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		query, err := request.RequireString("query")
		if err != nil {
			return mcp.NewToolResultError("query is required"), nil
		}

		var params *client.SearchParams
		if limit := request.GetInt("limit", 0); limit > 0 {
			params = &client.SearchParams{SearchOptions: &client.SearchOptions{Limit: limit}}
		}

		data, err := c.Search(ctx, query, params)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return jsonResult(data), nil
	}
}

func jsonResult(data json.RawMessage) *mcp.CallToolResult {
	return mcp.NewToolResultText(indent(data))
}

// indent pretty-prints JSON, returning it unchanged if it does not parse.
func indent(data json.RawMessage) string {
	var buf bytes.Buffer
	if err := json.Indent(&buf, data, "", "  "); err != nil {
		return string(data)
	}
	return buf.String()
}
