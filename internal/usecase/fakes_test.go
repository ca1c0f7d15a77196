package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/brianvoe/gofakeit/v6"

	"TenderScanner/internal/domain"
)

func tenderURL(i int) string {
	return fmt.Sprintf("https://vergabe.example.org/tender/%03d", i)
}

func makeCandidates(n int) []domain.CandidateItem {
	items := make([]domain.CandidateItem, n)
	for i := range items {
		items[i] = domain.CandidateItem{
			Title:   gofakeit.Sentence(4),
			Link:    tenderURL(i),
			Summary: gofakeit.Sentence(12),
		}
	}
	return items
}

type fakeFeed struct {
	items []domain.CandidateItem
	err   error
	calls atomic.Int32
}

func (f *fakeFeed) FetchCandidates(context.Context) ([]domain.CandidateItem, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return f.items, nil
}

type fakeRepo struct {
	mu         sync.Mutex
	existing   map[string]struct{}
	inserted   []domain.TenderRecord
	queries    int
	queryErr   error
	insertErrs map[string]error
}

func newFakeRepo(existing ...string) *fakeRepo {
	repo := &fakeRepo{existing: map[string]struct{}{}, insertErrs: map[string]error{}}
	for _, url := range existing {
		repo.existing[url] = struct{}{}
	}
	return repo
}

func (r *fakeRepo) ExistingSourceURLs(_ context.Context, urls []string) (map[string]struct{}, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries++
	if r.queryErr != nil {
		return nil, r.queryErr
	}
	out := map[string]struct{}{}
	for _, url := range urls {
		if _, ok := r.existing[url]; ok {
			out[url] = struct{}{}
		}
	}
	return out, nil
}

func (r *fakeRepo) InsertTender(_ context.Context, record domain.TenderRecord) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.insertErrs[record.SourceURL]; err != nil {
		return "", err
	}
	if _, dup := r.existing[record.SourceURL]; dup {
		return "", domain.ErrDuplicate
	}
	r.existing[record.SourceURL] = struct{}{}
	r.inserted = append(r.inserted, record)
	return fmt.Sprintf("id-%d", len(r.inserted)), nil
}

func (r *fakeRepo) record(url string) (domain.TenderRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, rec := range r.inserted {
		if rec.SourceURL == url {
			return rec, true
		}
	}
	return domain.TenderRecord{}, false
}

type fakePages struct {
	texts map[string]string
}

func (p *fakePages) ExtractText(_ context.Context, url string) (string, bool) {
	text, ok := p.texts[url]
	return text, ok
}

type fakeAnalyzer struct {
	readyErr    error
	failFor     map[string]bool
	panicFor    map[string]bool
	deadline    string
	delay       time.Duration
	inFlight    atomic.Int32
	maxInFlight atomic.Int32
	calls       atomic.Int32

	mu     sync.Mutex
	inputs []string
}

func (a *fakeAnalyzer) Ready() error { return a.readyErr }

func (a *fakeAnalyzer) Analyze(_ context.Context, text string) (domain.Extraction, error) {
	a.calls.Add(1)
	current := a.inFlight.Add(1)
	defer a.inFlight.Add(-1)
	for {
		seen := a.maxInFlight.Load()
		if current <= seen || a.maxInFlight.CompareAndSwap(seen, current) {
			break
		}
	}

	a.mu.Lock()
	a.inputs = append(a.inputs, text)
	a.mu.Unlock()

	if a.delay > 0 {
		time.Sleep(a.delay)
	}

	for marker := range a.panicFor {
		if strings.Contains(text, marker) {
			panic("analyzer exploded")
		}
	}
	for marker := range a.failFor {
		if strings.Contains(text, marker) {
			return domain.Extraction{}, fmt.Errorf("%w: schema violation", domain.ErrAnalysis)
		}
	}

	deadline := a.deadline
	if deadline == "" {
		deadline = "2026-05-01"
	}
	return domain.Extraction{
		Budget:           "ca. 25.000 - 100.000 € (geschätzt)",
		BudgetIsEstimate: true,
		Location:         "Berlin",
		Category:         "Tiefbau",
		Deadline:         deadline,
		Summary:          "Kurzbeschreibung.",
		Requirements:     []string{"Referenzen"},
	}, nil
}

func (a *fakeAnalyzer) recordedInputs() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.inputs...)
}

type fakeSinks struct {
	mu       sync.Mutex
	err      error
	digests  []string
	archived []string
	indexed  []string
	events   []string
}

func (s *fakeSinks) PublishDigest(_ context.Context, digest string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.digests = append(s.digests, digest)
	return s.err
}

func (s *fakeSinks) StorePage(_ context.Context, id, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.archived = append(s.archived, id)
	return s.err
}

func (s *fakeSinks) IndexTender(_ context.Context, record domain.TenderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.indexed = append(s.indexed, record.ID)
	return s.err
}

func (s *fakeSinks) PublishTenderCreated(_ context.Context, record domain.TenderRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, record.SourceURL)
	return s.err
}
