package usecase

import (
	"strings"
	"time"

	"TenderScanner/internal/domain"
)

const untitled = "Unbekannt"

var deadlineLayouts = []string{"2006-01-02", "02.01.2006"}

// buildRecord maps an analyzed feed entry onto the persisted shape.
func buildRecord(item domain.CandidateItem, ext domain.Extraction) domain.TenderRecord {
	title := strings.TrimSpace(item.Title)
	if title == "" {
		title = untitled
	}

	requirements := make([]string, 0, len(ext.Requirements))
	requirements = append(requirements, ext.Requirements...)

	return domain.TenderRecord{
		Title:            title,
		Description:      strings.TrimSpace(ext.Summary),
		Location:         strings.TrimSpace(ext.Location),
		Budget:           strings.TrimSpace(ext.Budget),
		BudgetIsEstimate: ext.BudgetIsEstimate,
		Deadline:         parseDeadline(ext.Deadline),
		Category:         strings.TrimSpace(ext.Category),
		SourceURL:        item.Link,
		PublishedAt:      item.PublishedAt,
		Requirements:     requirements,
	}
}

// parseDeadline returns nil for the unknown marker and for anything that is not a calendar date.
func parseDeadline(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.EqualFold(raw, domain.UnknownValue) {
		return nil
	}

	for _, layout := range deadlineLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t
		}
	}

	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		return &day
	}
	return nil
}

// itemText builds the analyzer input; without page text the feed fields stand in.
func itemText(item domain.CandidateItem, pageText string, pageOK bool) string {
	if pageOK && strings.TrimSpace(pageText) != "" {
		return "TITEL: " + item.Title + "\n\nVOLLSTÄNDIGER AUSSCHREIBUNGSTEXT:\n" + pageText
	}
	return "TITEL: " + item.Title + "\nBESCHREIBUNG: " + item.Summary + "\nLINK: " + item.Link
}
