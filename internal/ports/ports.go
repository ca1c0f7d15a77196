package ports

import (
	"context"
	"time"

	"TenderScanner/internal/domain"
)

// FeedSource pulls candidate tenders from the syndication feed.
type FeedSource interface {
	FetchCandidates(ctx context.Context) ([]domain.CandidateItem, error)
}

// TenderRepository is the store contract used by the ingestion run.
type TenderRepository interface {
	// ExistingSourceURLs answers with a single batched query.
	ExistingSourceURLs(ctx context.Context, urls []string) (map[string]struct{}, error)
	InsertTender(ctx context.Context, record domain.TenderRecord) (string, error)
}

// TenderCatalog serves read access for display collaborators.
type TenderCatalog interface {
	ListTenders(ctx context.Context, limit int) ([]domain.TenderRecord, error)
	Ping(ctx context.Context) error
}

// PageExtractor reduces a tender detail page to plain text; ok=false is a soft failure.
type PageExtractor interface {
	ExtractText(ctx context.Context, url string) (text string, ok bool)
}

// Analyzer turns tender text into a schema-conformant extraction.
type Analyzer interface {
	// Ready fails with domain.ErrMissingCredential when the provider cannot be called at all.
	Ready() error
	Analyze(ctx context.Context, text string) (domain.Extraction, error)
}

// Notifier streams run digests to Telegram or other channels.
type Notifier interface {
	PublishDigest(ctx context.Context, digest string) error
}

// EventPublisher announces newly stored tenders to downstream matchers.
type EventPublisher interface {
	PublishTenderCreated(ctx context.Context, record domain.TenderRecord) error
}

// TenderIndexer mirrors stored tenders into a search index.
type TenderIndexer interface {
	IndexTender(ctx context.Context, record domain.TenderRecord) error
}

// PageArchive keeps the extracted page text next to the record.
type PageArchive interface {
	StorePage(ctx context.Context, tenderID, text string) error
}

// Scheduler controls when scan runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func(time.Time)) error
	Stop(ctx context.Context) error
}
