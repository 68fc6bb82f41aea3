// Package cleaner post-processes rendered HTML: CSS selection, main-content
// extraction and conversion to markdown or plain text.
package cleaner

import (
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/scrapekit/models"
)

// Options selects the post-processing steps for one document.
type Options struct {
	// Format is one of models.FormatHTML, FormatMarkdown or FormatText.
	Format string
	// OnlyMainContent runs readability before formatting.
	OnlyMainContent bool
	// CSSSelector keeps only matching elements. Empty keeps everything.
	CSSSelector string
}

// Cleaner converts rendered HTML according to Options. The markdown
// converter is created once and shared, so a Cleaner is safe for
// concurrent use.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Clean runs the pipeline and returns the converted content.
//
// Flow:
//  1. CSS selector filter (invalid selector is an INVALID_INPUT error).
//  2. Readability main-content extraction, falling back to the full
//     document when extraction finds too little.
//  3. Conversion to the requested output format.
func (c *Cleaner) Clean(rawHTML, sourceURL string, opts Options) (string, error) {
	// ── 1. CSS selector ─────────────────────────────────────────────
	doc := rawHTML
	if opts.CSSSelector != "" {
		selected, err := ApplyCSSSelector(doc, opts.CSSSelector)
		if err != nil {
			return "", models.NewScrapeError(
				models.ErrCodeInvalidInput,
				"invalid css_selector",
				err,
			)
		}
		doc = selected
	}

	// ── 2. Main content ─────────────────────────────────────────────
	if opts.OnlyMainContent {
		article, _ := ExtractContent(doc, sourceURL)
		doc = article.Content
	}

	// ── 3. Format conversion ────────────────────────────────────────
	switch opts.Format {
	case models.FormatMarkdown:
		md, err := c.markdown(doc, sourceURL)
		if err != nil {
			return "", models.NewScrapeError(
				models.ErrCodeExtraction,
				"markdown conversion failed",
				err,
			)
		}
		return md, nil
	case models.FormatText:
		return stripTags(doc), nil
	default:
		return doc, nil
	}
}

// stripTags extracts the visible text of an HTML fragment, dropping
// script and style bodies and collapsing runs of blank lines.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	doc.Find("script, style, noscript, template").Remove()

	lines := strings.Split(doc.Text(), "\n")
	kept := lines[:0]
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	return strings.Join(kept, "\n")
}
