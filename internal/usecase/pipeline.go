package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const (
	DefaultMaxNewItems = 10
	DefaultConcurrency = 3
)

const (
	msgEmptyFeed   = "Keine Items im Feed gefunden"
	msgNothingNew  = "Keine neuen Ausschreibungen gefunden"
	msgAnalyzedFmt = "%d von %d neuen Einträgen analysiert"
)

type runState string

const (
	stateFeedFetching  runState = "feed_fetching"
	stateDeduplicating runState = "deduplicating"
	stateEmptyExit     runState = "empty_exit"
	stateScheduling    runState = "scheduling"
	stateAggregating   runState = "aggregating"
	stateDone          runState = "done"
)

// IngestorDeps wires all driven adapters into the ingestion run.
// Notifier, Events, Index and Archive are optional.
type IngestorDeps struct {
	Feed       ports.FeedSource
	Repository ports.TenderRepository
	Pages      ports.PageExtractor
	Analyzer   ports.Analyzer
	Notifier   ports.Notifier
	Events     ports.EventPublisher
	Index      ports.TenderIndexer
	Archive    ports.PageArchive
	Logger     *slog.Logger
}

// IngestOptions caps the cost of a single run.
type IngestOptions struct {
	MaxNewItems int
	Concurrency int
}

// Ingestor implements the tender scan run.
type Ingestor struct {
	feed       ports.FeedSource
	repository ports.TenderRepository
	gate       *DedupGate
	pages      ports.PageExtractor
	analyzer   ports.Analyzer
	notifier   ports.Notifier
	events     ports.EventPublisher
	index      ports.TenderIndexer
	archive    ports.PageArchive
	logger     *slog.Logger

	maxNewItems int
	concurrency int
}

// NewIngestor constructs the orchestration component.
func NewIngestor(deps IngestorDeps, opts IngestOptions) *Ingestor {
	if opts.MaxNewItems <= 0 {
		opts.MaxNewItems = DefaultMaxNewItems
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	log := deps.Logger
	if log == nil {
		log = logging.Discard()
	}

	return &Ingestor{
		feed:        deps.Feed,
		repository:  deps.Repository,
		gate:        NewDedupGate(deps.Repository),
		pages:       deps.Pages,
		analyzer:    deps.Analyzer,
		notifier:    deps.Notifier,
		events:      deps.Events,
		index:       deps.Index,
		archive:     deps.Archive,
		logger:      log,
		maxNewItems: opts.MaxNewItems,
		concurrency: opts.Concurrency,
	}
}

// Scan runs feed fetch, dedup, bounded per-item analysis and aggregation once.
// A non-nil error means the run failed before any item was processed.
func (in *Ingestor) Scan(ctx context.Context) (domain.ScanSummary, error) {
	summary := domain.ScanSummary{
		RunID:     uuid.NewString(),
		StartedAt: time.Now().UTC(),
	}
	log := in.logger.With("run_id", summary.RunID)

	fail := func(err error) (domain.ScanSummary, error) {
		summary.FinishedAt = time.Now().UTC()
		log.Error("scan run failed", "error", err)
		return summary, err
	}

	if in.analyzer == nil {
		return fail(fmt.Errorf("preflight: %w", domain.ErrMissingCredential))
	}
	if err := in.analyzer.Ready(); err != nil {
		return fail(fmt.Errorf("preflight: %w", err))
	}

	in.transition(log, stateFeedFetching)
	candidates, err := in.feed.FetchCandidates(ctx)
	if err != nil {
		return fail(fmt.Errorf("fetch feed: %w", err))
	}
	summary.Stats.Found = len(candidates)

	if len(candidates) == 0 {
		in.transition(log, stateEmptyExit)
		return in.finish(log, summary, msgEmptyFeed), nil
	}

	in.transition(log, stateDeduplicating)
	fresh, skipped, err := in.gate.FilterNew(ctx, candidates)
	if err != nil {
		return fail(err)
	}
	summary.Stats.Skipped = skipped

	if len(fresh) == 0 {
		in.transition(log, stateEmptyExit)
		return in.finish(log, summary, msgNothingNew), nil
	}

	batch := fresh
	if len(batch) > in.maxNewItems {
		batch = batch[:in.maxNewItems]
	}
	summary.Stats.Remaining = len(fresh) - len(batch)

	log.Info("scan batch ready",
		"found", summary.Stats.Found,
		"new", len(fresh),
		"processing", len(batch),
		"skipped", skipped)

	in.transition(log, stateScheduling)
	results := runLanes(ctx, batch, in.concurrency, func(ctx context.Context, item domain.CandidateItem) (domain.ProcessedTender, error) {
		return in.processItem(ctx, log, item)
	})

	in.transition(log, stateAggregating)
	summary.Processed = make([]domain.ProcessedTender, 0, len(batch))
	for i, res := range results {
		if res.err != nil {
			log.Warn("tender failed", "url", batch[i].Link, "error", res.err)
			summary.Errors = append(summary.Errors, domain.ItemError{URL: batch[i].Link, Error: res.err.Error()})
			continue
		}
		summary.Processed = append(summary.Processed, res.value)
	}
	summary.Stats.Analyzed = len(summary.Processed)
	summary.Stats.Failed = len(summary.Errors)

	summary = in.finish(log, summary, fmt.Sprintf(msgAnalyzedFmt, summary.Stats.Analyzed, len(fresh)))
	in.notify(ctx, log, summary.Processed)
	return summary, nil
}

// processItem is one lane unit: page fetch, analysis, persist, then best-effort fan-out.
func (in *Ingestor) processItem(ctx context.Context, runLog *slog.Logger, item domain.CandidateItem) (domain.ProcessedTender, error) {
	log := runLog.With("url", item.Link)

	var (
		pageText string
		pageOK   bool
	)
	if in.pages != nil {
		pageText, pageOK = in.pages.ExtractText(ctx, item.Link)
	}
	if !pageOK {
		log.Debug("using feed text for analysis")
	}
	input := itemText(item, pageText, pageOK)

	extraction, err := in.analyzer.Analyze(ctx, input)
	if err != nil {
		return domain.ProcessedTender{}, fmt.Errorf("analyze: %w", err)
	}

	record := buildRecord(item, extraction)
	if record.Deadline == nil && extraction.Deadline != domain.UnknownValue {
		log.Debug("deadline discarded", "deadline", extraction.Deadline)
	}

	id, err := in.repository.InsertTender(ctx, record)
	if err != nil {
		return domain.ProcessedTender{}, fmt.Errorf("persist: %w", err)
	}
	record.ID = id
	now := time.Now().UTC()
	record.CreatedAt, record.UpdatedAt = now, now

	in.fanOut(ctx, log, record, input)
	log.Info("tender stored", "id", id, "category", record.Category)

	return domain.ProcessedTender{
		Title:     record.Title,
		SourceURL: record.SourceURL,
		Budget:    extraction.Budget,
		Location:  extraction.Location,
		Category:  extraction.Category,
	}, nil
}

// fanOut feeds the optional sinks; their failures never fail the item.
func (in *Ingestor) fanOut(ctx context.Context, log *slog.Logger, record domain.TenderRecord, analyzedText string) {
	if in.archive != nil {
		if err := in.archive.StorePage(ctx, record.ID, analyzedText); err != nil {
			log.Warn("archive page failed", "error", err)
		}
	}
	if in.index != nil {
		if err := in.index.IndexTender(ctx, record); err != nil {
			log.Warn("index tender failed", "error", err)
		}
	}
	if in.events != nil {
		if err := in.events.PublishTenderCreated(ctx, record); err != nil {
			log.Warn("publish tender event failed", "error", err)
		}
	}
}

func (in *Ingestor) notify(ctx context.Context, log *slog.Logger, processed []domain.ProcessedTender) {
	if in.notifier == nil || len(processed) == 0 {
		return
	}
	if err := in.notifier.PublishDigest(ctx, buildDigestMessage(processed)); err != nil {
		log.Warn("publish digest failed", "error", err)
	}
}

func (in *Ingestor) finish(log *slog.Logger, summary domain.ScanSummary, message string) domain.ScanSummary {
	summary.Message = message
	summary.FinishedAt = time.Now().UTC()
	in.transition(log, stateDone)
	log.Info("scan run finished",
		"found", summary.Stats.Found,
		"skipped", summary.Stats.Skipped,
		"analyzed", summary.Stats.Analyzed,
		"failed", summary.Stats.Failed,
		"remaining", summary.Stats.Remaining,
		"duration", summary.FinishedAt.Sub(summary.StartedAt))
	return summary
}

func (in *Ingestor) transition(log *slog.Logger, state runState) {
	log.Debug("scan state", "state", string(state))
}

func buildDigestMessage(processed []domain.ProcessedTender) string {
	if len(processed) == 0 {
		return ""
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Neue Ausschreibungen: %d\n\n", len(processed))
	for _, tender := range processed {
		fmt.Fprintf(&b, "- %s\nBudget: %s\nOrt: %s\nGewerk: %s\n%s\n\n",
			tender.Title,
			displayOr(tender.Budget, domain.UnknownValue),
			displayOr(tender.Location, "Deutschland"),
			displayOr(tender.Category, "Allgemein"),
			tender.SourceURL)
	}
	return strings.TrimRight(b.String(), "\n")
}

func displayOr(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
