package client

import (
	"bytes"
	"encoding/json"
)

// JobStatus is the state a crawl job reports.
type JobStatus string

const (
	StatusQueued    JobStatus = "queued"
	StatusPending   JobStatus = "pending"
	StatusActive    JobStatus = "active"
	StatusPaused    JobStatus = "paused"
	StatusCompleted JobStatus = "completed"
	StatusFailed    JobStatus = "failed"
)

// InProgress reports whether the job may still change state. Anything not
// in progress is terminal; only completed is a success.
func (s JobStatus) InProgress() bool {
	switch s {
	case StatusQueued, StatusPending, StatusActive, StatusPaused:
		return true
	default:
		return false
	}
}

// metricLabel returns the status for use as a metric label. Values the
// remote API may invent are folded into "other".
func (s JobStatus) metricLabel() string {
	if s.InProgress() || s == StatusCompleted || s == StatusFailed {
		return string(s)
	}
	return "other"
}

// CrawlJob is the response of a crawl status check.
type CrawlJob struct {
	JobID   string          `json:"jobId,omitempty"`
	Status  JobStatus       `json:"status"`
	Current int             `json:"current,omitempty"`
	Total   int             `json:"total,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// HasData reports whether the job carries a payload. JSON null counts as
// no payload.
func (j *CrawlJob) HasData() bool {
	trimmed := bytes.TrimSpace(j.Data)
	return len(trimmed) > 0 && !bytes.Equal(trimmed, []byte("null"))
}

// PageOptions controls how each page is fetched.
type PageOptions struct {
	OnlyMainContent bool `json:"onlyMainContent,omitempty"`
	IncludeHTML     bool `json:"includeHtml,omitempty"`
	Screenshot      bool `json:"screenshot,omitempty"`
	// WaitFor is a delay in milliseconds before the page is captured.
	WaitFor int `json:"waitFor,omitempty"`
}

// CrawlerOptions controls which pages a crawl visits.
type CrawlerOptions struct {
	Includes           []string `json:"includes,omitempty"`
	Excludes           []string `json:"excludes,omitempty"`
	GenerateImgAltText bool     `json:"generateImgAltText,omitempty"`
	ReturnOnlyURLs     bool     `json:"returnOnlyUrls,omitempty"`
	MaxDepth           int      `json:"maxDepth,omitempty"`
	Limit              int      `json:"limit,omitempty"`
	// Mode is "default" or "fast".
	Mode string `json:"mode,omitempty"`
}

// CrawlParams are the optional settings of a crawl job.
type CrawlParams struct {
	CrawlerOptions *CrawlerOptions `json:"crawlerOptions,omitempty"`
	PageOptions    *PageOptions    `json:"pageOptions,omitempty"`
}

// ExtractionModeLLM is applied when a schema is given without a mode.
const ExtractionModeLLM = "llm-extraction"

// ExtractorOptions asks the API for structured extraction.
type ExtractorOptions struct {
	Mode             string          `json:"mode,omitempty"`
	ExtractionPrompt string          `json:"extractionPrompt,omitempty"`
	ExtractionSchema json.RawMessage `json:"extractionSchema,omitempty"`
}

// ScrapeParams are the optional settings of a single-page scrape.
type ScrapeParams struct {
	PageOptions      *PageOptions      `json:"pageOptions,omitempty"`
	ExtractorOptions *ExtractorOptions `json:"extractorOptions,omitempty"`
	// Timeout in milliseconds, enforced by the API.
	Timeout int `json:"timeout,omitempty"`
}

// withDefaults returns a copy with the extraction mode filled in.
func (p *ScrapeParams) withDefaults() *ScrapeParams {
	if p == nil {
		return nil
	}
	out := *p
	if p.ExtractorOptions != nil {
		eo := *p.ExtractorOptions
		if len(eo.ExtractionSchema) > 0 && eo.Mode == "" {
			eo.Mode = ExtractionModeLLM
		}
		out.ExtractorOptions = &eo
	}
	return &out
}

// SearchOptions limits search results.
type SearchOptions struct {
	Limit int `json:"limit,omitempty"`
}

// SearchParams are the optional settings of a search.
type SearchParams struct {
	PageOptions   *PageOptions   `json:"pageOptions,omitempty"`
	SearchOptions *SearchOptions `json:"searchOptions,omitempty"`
}

// wire payloads

type crawlRequest struct {
	URL string `json:"url"`
	*CrawlParams
}

type crawlResponse struct {
	JobID string `json:"jobId"`
}

type scrapeRequest struct {
	URL string `json:"url"`
	*ScrapeParams
}

type searchRequest struct {
	Query string `json:"query"`
	*SearchParams
}

// dataResponse is the envelope of the synchronous endpoints.
type dataResponse struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}
