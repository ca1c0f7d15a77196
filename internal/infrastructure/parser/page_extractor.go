package parser

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const (
	// DefaultMaxTextLength keeps the analyzer prompt within a predictable size.
	DefaultMaxTextLength = 8000
	maxPageBytes         = 2 << 20
)

// Blocks whose content never reaches the analyzer.
const droppedSelector = "script, style, noscript, nav, header, footer"

var blockElements = map[string]struct{}{
	"p": {}, "div": {}, "li": {}, "tr": {},
	"h1": {}, "h2": {}, "h3": {}, "h4": {}, "h5": {}, "h6": {},
}

// PageExtractor fetches tender detail pages and reduces them to bounded plain text.
type PageExtractor struct {
	client    *http.Client
	userAgent string
	maxLength int
	limiter   *rate.Limiter
	logger    *slog.Logger
}

var _ ports.PageExtractor = (*PageExtractor)(nil)

// PageExtractorOptions tunes the outbound fetch.
type PageExtractorOptions struct {
	Timeout           time.Duration
	UserAgent         string
	MaxTextLength     int
	RequestsPerSecond float64
}

// NewPageExtractor wires an HTTP client; a nil client gets one with opts.Timeout (15s by default).
func NewPageExtractor(client *http.Client, opts PageExtractorOptions, log *slog.Logger) *PageExtractor {
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "Mozilla/5.0 (compatible; TenderBot/1.0)"
	}
	if log == nil {
		log = logging.Discard()
	}

	var limiter *rate.Limiter
	if opts.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), 1)
	}

	return &PageExtractor{
		client:    client,
		userAgent: opts.UserAgent,
		maxLength: opts.MaxTextLength,
		limiter:   limiter,
		logger:    log,
	}
}

// ExtractText downloads the page and returns its cleaned text.
// Any transport or status failure is soft: ok=false and the caller falls back to feed text.
func (p *PageExtractor) ExtractText(ctx context.Context, pageURL string) (string, bool) {
	if p.limiter != nil {
		if err := p.limiter.Wait(ctx); err != nil {
			p.logger.Warn("page fetch not admitted", "url", pageURL, "error", err)
			return "", false
		}
	}

	doc, err := p.fetchDocument(ctx, pageURL)
	if err != nil {
		p.logger.Warn("page fetch failed", "url", pageURL, "error", err)
		return "", false
	}

	text := Truncate(documentText(doc), p.maxLength)
	if text == "" {
		p.logger.Debug("page has no text", "url", pageURL)
		return "", false
	}
	return text, true
}

func (p *PageExtractor) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", p.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("page returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(io.LimitReader(resp.Body, maxPageBytes))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	return doc, nil
}

// CleanHTML reduces markup to single-spaced plain text without a length bound.
func CleanHTML(markup string) string {
	if strings.TrimSpace(markup) == "" {
		return ""
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return collapseWhitespace(markup)
	}
	return documentText(doc)
}

// Truncate cuts text to at most limit runes, always keeping the beginning.
func Truncate(text string, limit int) string {
	if limit <= 0 {
		return text
	}
	count := 0
	for i := range text {
		if count == limit {
			return strings.TrimRightFunc(text[:i], unicode.IsSpace)
		}
		count++
	}
	return text
}

func documentText(doc *goquery.Document) string {
	doc.Find(droppedSelector).Remove()

	var b strings.Builder
	for _, n := range doc.Nodes {
		writeText(&b, n)
	}
	return collapseWhitespace(b.String())
}

// writeText emits text nodes; tags become separators, block ends and <br> become newlines.
func writeText(b *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		b.WriteString(n.Data)
		return
	case html.CommentNode, html.DoctypeNode:
		return
	case html.ElementNode:
		if n.Data == "br" {
			b.WriteByte('\n')
			return
		}
		b.WriteByte(' ')
	}

	for c := n.FirstChild; c != nil; c = c.NextSibling {
		writeText(b, c)
	}

	if n.Type == html.ElementNode {
		if _, ok := blockElements[n.Data]; ok {
			b.WriteByte('\n')
		} else {
			b.WriteByte(' ')
		}
	}
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
