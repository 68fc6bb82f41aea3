// Package client talks to a remote scraping API: it submits crawl jobs,
// polls them to completion and runs synchronous scrapes and searches.
// Every call goes through RetryTransport.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
)

// DefaultURL is the hosted API.
const DefaultURL = "https://api.firecrawl.dev"

// Client is safe for concurrent use.
type Client struct {
	client    *http.Client
	transport *RetryTransport

	url    string
	apiKey string

	sleep  Sleeper
	logger *slog.Logger
}

type Option func(*Client)

// WithURL points the client at a self-hosted API.
func WithURL(url string) Option {
	return func(c *Client) {
		c.url = url
	}
}

// WithHTTPClient sets the http.Client. Its Transport becomes the base of
// the retry transport.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.client = client
	}
}

// WithTransport replaces the default retry transport, e.g. to change the
// attempt budget or the transient status set.
func WithTransport(t *RetryTransport) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithSleeper replaces the wait used between poll checks and, unless the
// transport has its own, between retries.
func WithSleeper(s Sleeper) Option {
	return func(c *Client) {
		c.sleep = s
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// New creates a Client authenticated with apiKey.
func New(apiKey string, options ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("client: no API key provided")
	}

	c := &Client{
		client: http.DefaultClient,

		url:    DefaultURL,
		apiKey: apiKey,

		sleep:  sleepContext,
		logger: slog.Default(),
	}

	for _, option := range options {
		option(c)
	}

	if c.url == "" {
		c.url = DefaultURL
	}
	c.url = strings.TrimRight(c.url, "/")

	// Defaults are filled in on copies so a transport or http.Client shared
	// between clients is never modified.
	if c.transport == nil {
		c.transport = NewRetryTransport(nil)
	} else {
		t := *c.transport
		t.TransientStatuses = slices.Clone(t.TransientStatuses)
		c.transport = &t
	}
	if c.transport.Sleep == nil {
		c.transport.Sleep = c.sleep
	}

	if c.client == nil {
		c.client = http.DefaultClient
	}
	hc := *c.client
	if c.transport.Base == nil {
		c.transport.Base = hc.Transport
	}
	hc.Transport = c.transport
	c.client = &hc

	return c, nil
}

// SubmitCrawl starts a crawl job and returns its id.
func (c *Client) SubmitCrawl(ctx context.Context, target string, params *CrawlParams) (string, error) {
	const action = "start crawl job"

	resp, err := c.do(ctx, http.MethodPost, "/v0/crawl", crawlRequest{URL: target, CrawlParams: params})
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", c.convertError(resp, action)
	}

	var result crawlResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", err
	}
	if result.JobID == "" {
		return "", &Error{Code: CodeRemoteError, Action: action, StatusCode: resp.StatusCode, Message: "response carried no job id"}
	}

	c.logger.Info("crawl job submitted", "job_id", result.JobID, "url", target)
	return result.JobID, nil
}

// CheckCrawlStatus fetches the current state of a crawl job.
func (c *Client) CheckCrawlStatus(ctx context.Context, jobID string) (*CrawlJob, error) {
	resp, err := c.do(ctx, http.MethodGet, "/v0/crawl/status/"+url.PathEscape(jobID), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.convertError(resp, "check crawl status")
	}

	var job CrawlJob
	if err := json.NewDecoder(resp.Body).Decode(&job); err != nil {
		return nil, err
	}
	job.JobID = jobID
	return &job, nil
}

// CrawlURL submits a crawl. With waitUntilDone it polls the job and returns
// its data; otherwise it returns {"jobId": "..."} right away.
func (c *Client) CrawlURL(ctx context.Context, target string, params *CrawlParams, waitUntilDone bool, poll PollOptions) (json.RawMessage, error) {
	jobID, err := c.SubmitCrawl(ctx, target, params)
	if err != nil {
		return nil, err
	}
	if !waitUntilDone {
		return json.Marshal(crawlResponse{JobID: jobID})
	}
	return c.Poll(ctx, jobID, poll)
}

// ScrapeURL scrapes a single page synchronously and returns the data
// payload.
func (c *Client) ScrapeURL(ctx context.Context, target string, params *ScrapeParams) (json.RawMessage, error) {
	return c.fetchData(ctx, "/v0/scrape", "scrape URL", scrapeRequest{URL: target, ScrapeParams: params.withDefaults()})
}

// Search runs a web search and returns the data payload.
func (c *Client) Search(ctx context.Context, query string, params *SearchParams) (json.RawMessage, error) {
	return c.fetchData(ctx, "/v0/search", "search", searchRequest{Query: query, SearchParams: params})
}

// fetchData posts body and unwraps the {success, data, error} envelope.
func (c *Client) fetchData(ctx context.Context, path, action string, body any) (json.RawMessage, error) {
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.convertError(resp, action)
	}

	var result dataResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if !result.Success {
		return nil, &Error{Code: CodeRemoteError, Action: action, StatusCode: resp.StatusCode, Message: result.Error}
	}
	return result.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	return c.client.Do(req)
}
