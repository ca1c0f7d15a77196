package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const maxSummaryLength = 2000

// RSSReader fetches the tender feed and maps its entries to candidates.
type RSSReader struct {
	feedURL   string
	userAgent string
	client    *http.Client
	parser    *gofeed.Parser
	logger    *slog.Logger
}

var _ ports.FeedSource = (*RSSReader)(nil)

// NewRSSReader wires an HTTP client; a nil client gets a 20 second timeout.
func NewRSSReader(feedURL, userAgent string, client *http.Client, log *slog.Logger) *RSSReader {
	if client == nil {
		client = &http.Client{Timeout: 20 * time.Second}
	}
	if log == nil {
		log = logging.Discard()
	}
	return &RSSReader{
		feedURL:   feedURL,
		userAgent: userAgent,
		client:    client,
		parser:    gofeed.NewParser(),
		logger:    log,
	}
}

// FetchCandidates performs one GET against the feed. No retry happens here.
func (r *RSSReader) FetchCandidates(ctx context.Context) ([]domain.CandidateItem, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %w", domain.ErrFeedUnavailable, err)
	}
	if r.userAgent != "" {
		req.Header.Set("User-Agent", r.userAgent)
	}
	req.Header.Set("Accept", "application/rss+xml, application/atom+xml, application/xml;q=0.9, */*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("%w: feed returned %s", domain.ErrFeedUnavailable, resp.Status)
	}

	feed, err := r.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domain.ErrFeedParse, err)
	}

	candidates := make([]domain.CandidateItem, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		candidates = append(candidates, toCandidate(item))
	}

	r.logger.Debug("feed parsed", "url", r.feedURL, "entries", len(candidates))
	return candidates, nil
}

func toCandidate(item *gofeed.Item) domain.CandidateItem {
	summary := item.Description
	if strings.TrimSpace(summary) == "" {
		summary = item.Content
	}

	published := item.PublishedParsed
	if published == nil {
		published = item.UpdatedParsed
	}
	if published != nil {
		utc := published.UTC()
		published = &utc
	}

	return domain.CandidateItem{
		Title:       strings.TrimSpace(item.Title),
		Link:        strings.TrimSpace(item.Link),
		Summary:     Truncate(CleanHTML(summary), maxSummaryLength),
		PublishedAt: published,
	}
}
