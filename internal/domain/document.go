package domain

import "time"

// TenderDocument is the external JSON shape of a stored tender, shared by events and the search index.
type TenderDocument struct {
	ID               string     `json:"id"`
	Title            string     `json:"title"`
	Description      string     `json:"description,omitempty"`
	SourceURL        string     `json:"source_url"`
	Budget           string     `json:"budget,omitempty"`
	BudgetIsEstimate bool       `json:"budget_is_estimate"`
	Location         string     `json:"location,omitempty"`
	Category         string     `json:"category,omitempty"`
	Deadline         string     `json:"deadline,omitempty"`
	Requirements     []string   `json:"requirements"`
	PublishedAt      *time.Time `json:"published_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
}

// NewTenderDocument flattens a record; the deadline is rendered as YYYY-MM-DD.
func NewTenderDocument(rec TenderRecord) TenderDocument {
	doc := TenderDocument{
		ID:               rec.ID,
		Title:            rec.Title,
		Description:      rec.Description,
		SourceURL:        rec.SourceURL,
		Budget:           rec.Budget,
		BudgetIsEstimate: rec.BudgetIsEstimate,
		Location:         rec.Location,
		Category:         rec.Category,
		Requirements:     rec.Requirements,
		PublishedAt:      rec.PublishedAt,
		CreatedAt:        rec.CreatedAt,
	}
	if rec.Deadline != nil {
		doc.Deadline = rec.Deadline.Format("2006-01-02")
	}
	if doc.Requirements == nil {
		doc.Requirements = []string{}
	}
	return doc
}
