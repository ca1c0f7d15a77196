package domain

import (
	"errors"
	"time"
)

// UnknownValue is the canonical "not stated" marker used for budget and deadline.
const UnknownValue = "k.A."

var (
	ErrMissingCredential = errors.New("llm credential missing")
	ErrFeedUnavailable   = errors.New("feed unavailable")
	ErrFeedParse         = errors.New("feed payload is not a valid feed")
	ErrStoreUnavailable  = errors.New("store unavailable")
	ErrAnalysis          = errors.New("analysis failed")
	// ErrUnknownColumn marks an insert/select rejected because an optional column is absent.
	ErrUnknownColumn = errors.New("unknown column")
	// ErrDuplicate marks a record whose source URL is already stored.
	ErrDuplicate = errors.New("tender already stored")
)

// CandidateItem is one feed entry not yet known to be persisted.
type CandidateItem struct {
	Title       string
	Link        string
	Summary     string
	PublishedAt *time.Time
}

// Extraction is the typed result of analyzing a tender text.
type Extraction struct {
	Budget           string   `json:"budget"`
	BudgetIsEstimate bool     `json:"budget_is_estimate"`
	Location         string   `json:"location"`
	Category         string   `json:"category"`
	Deadline         string   `json:"deadline"`
	Summary          string   `json:"description_short"`
	Requirements     []string `json:"requirements"`
}

// TenderRecord is the persisted unit; SourceURL is unique across scans.
type TenderRecord struct {
	ID               string
	Title            string
	Description      string
	Location         string
	Budget           string
	BudgetIsEstimate bool
	Deadline         *time.Time
	Category         string
	SourceURL        string
	PublishedAt      *time.Time
	Requirements     []string
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// ScanStats carries the counters reported to the caller of a scan run.
type ScanStats struct {
	Found     int `json:"gefunden"`
	Skipped   int `json:"uebersprungen"`
	Analyzed  int `json:"analysiert"`
	Failed    int `json:"fehler"`
	Remaining int `json:"verbleibend"`
}

// ProcessedTender is the short view of a record created during a run.
type ProcessedTender struct {
	Title     string `json:"title"`
	SourceURL string `json:"source_url"`
	Budget    string `json:"budget"`
	Location  string `json:"location"`
	Category  string `json:"category"`
}

// ItemError captures a per-item failure; it never aborts the run.
type ItemError struct {
	URL   string `json:"url,omitempty"`
	Error string `json:"error"`
}

// ScanSummary is returned by every completed scan run.
type ScanSummary struct {
	RunID      string
	Stats      ScanStats
	Message    string
	Processed  []ProcessedTender
	Errors     []ItemError
	StartedAt  time.Time
	FinishedAt time.Time
}
