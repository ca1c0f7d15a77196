package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/ports"
)

// DedupGate drops candidates whose link is already stored before any page or model work happens.
type DedupGate struct {
	repository ports.TenderRepository
}

// NewDedupGate wraps the store's batched existence check.
func NewDedupGate(repository ports.TenderRepository) *DedupGate {
	return &DedupGate{repository: repository}
}

// FilterNew returns the unseen candidates in feed order and how many were skipped.
// Entries without a link and repeated links inside the same feed count as skipped.
func (g *DedupGate) FilterNew(ctx context.Context, candidates []domain.CandidateItem) ([]domain.CandidateItem, int, error) {
	seen := make(map[string]struct{}, len(candidates))
	unique := make([]domain.CandidateItem, 0, len(candidates))
	keys := make([]string, 0, len(candidates))

	for _, item := range candidates {
		link := strings.TrimSpace(item.Link)
		if link == "" {
			continue
		}
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		item.Link = link
		unique = append(unique, item)
		keys = append(keys, link)
	}

	if len(keys) == 0 {
		return nil, len(candidates), nil
	}

	existing, err := g.repository.ExistingSourceURLs(ctx, keys)
	if err != nil {
		if !errors.Is(err, domain.ErrStoreUnavailable) {
			err = fmt.Errorf("%w: %w", domain.ErrStoreUnavailable, err)
		}
		return nil, 0, fmt.Errorf("check existing tenders: %w", err)
	}

	fresh := make([]domain.CandidateItem, 0, len(unique))
	for _, item := range unique {
		if _, known := existing[item.Link]; known {
			continue
		}
		fresh = append(fresh, item)
	}

	return fresh, len(candidates) - len(fresh), nil
}
