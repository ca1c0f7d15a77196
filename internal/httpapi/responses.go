package httpapi

import (
	"strings"
	"time"

	"TenderScanner/internal/domain"
)

// Shown in place of missing values.
const (
	defaultLocation = "Deutschland"
	defaultCategory = "Allgemein"
)

type errorResponse struct {
	Error string `json:"error"`
}

type scanResponse struct {
	Success   bool                     `json:"success"`
	RunID     string                   `json:"run_id,omitempty"`
	Stats     *domain.ScanStats        `json:"stats,omitempty"`
	Message   string                   `json:"message,omitempty"`
	Processed []domain.ProcessedTender `json:"processed,omitempty"`
	Errors    []domain.ItemError       `json:"errors,omitempty"`
	Error     string                   `json:"error,omitempty"`
}

func newScanResponse(summary domain.ScanSummary) scanResponse {
	stats := summary.Stats
	return scanResponse{
		Success:   true,
		RunID:     summary.RunID,
		Stats:     &stats,
		Message:   summary.Message,
		Processed: summary.Processed,
		Errors:    summary.Errors,
	}
}

type tenderView struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	Location         string     `json:"location"`
	Budget           string     `json:"budget"`
	BudgetIsEstimate bool       `json:"budget_is_estimate"`
	Deadline         *string    `json:"deadline"`
	Category         string     `json:"category"`
	SourceURL        string     `json:"source_url"`
	PublishedAt      *time.Time `json:"published_at"`
	Requirements     []string   `json:"requirements"`
	CreatedAt        time.Time  `json:"created_at"`
}

type tenderList struct {
	Tenders []tenderView `json:"tenders"`
	Count   int          `json:"count"`
}

func newTenderView(rec domain.TenderRecord) tenderView {
	view := tenderView{
		ID:               rec.ID,
		Title:            rec.Title,
		Description:      rec.Description,
		Location:         orDefault(rec.Location, defaultLocation),
		Budget:           orDefault(rec.Budget, domain.UnknownValue),
		BudgetIsEstimate: rec.BudgetIsEstimate,
		Category:         orDefault(rec.Category, defaultCategory),
		SourceURL:        rec.SourceURL,
		PublishedAt:      rec.PublishedAt,
		Requirements:     rec.Requirements,
		CreatedAt:        rec.CreatedAt,
	}
	if rec.Deadline != nil {
		deadline := rec.Deadline.Format("2006-01-02")
		view.Deadline = &deadline
	}
	if view.Requirements == nil {
		view.Requirements = []string{}
	}
	return view
}

func orDefault(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
