package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

const indexMapping = `{
  "mappings": {
    "properties": {
      "id":                 {"type": "keyword"},
      "title":              {"type": "text"},
      "description":        {"type": "text"},
      "source_url":         {"type": "keyword"},
      "budget":             {"type": "text"},
      "budget_is_estimate": {"type": "boolean"},
      "location":           {"type": "text", "fields": {"raw": {"type": "keyword"}}},
      "category":           {"type": "keyword"},
      "deadline":           {"type": "date", "format": "yyyy-MM-dd"},
      "requirements":       {"type": "text"},
      "published_at":       {"type": "date"},
      "created_at":         {"type": "date"}
    }
  }
}`

// ElasticIndexer mirrors stored tenders into an Elasticsearch index.
type ElasticIndexer struct {
	es    *elasticsearch.Client
	index string
	log   *slog.Logger
}

var _ ports.TenderIndexer = (*ElasticIndexer)(nil)

// NewElasticIndexer instantiates the Elasticsearch client.
func NewElasticIndexer(addr, index string, logger *slog.Logger) (*ElasticIndexer, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: []string{addr},
	})
	if err != nil {
		return nil, fmt.Errorf("create elasticsearch client: %w", err)
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return &ElasticIndexer{es: es, index: index, log: logger}, nil
}

// EnsureIndex creates the index with its mapping when it is missing.
func (c *ElasticIndexer) EnsureIndex(ctx context.Context) error {
	res, err := esapi.IndicesExistsRequest{Index: []string{c.index}}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("check index: %w", err)
	}
	res.Body.Close()

	switch res.StatusCode {
	case http.StatusOK:
		return nil
	case http.StatusNotFound:
	default:
		return fmt.Errorf("check index failed: %s", res.Status())
	}

	res, err = esapi.IndicesCreateRequest{
		Index: c.index,
		Body:  strings.NewReader(indexMapping),
	}.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("create index failed: %s", strings.TrimSpace(string(body)))
	}

	c.log.Info("elasticsearch index created", "index", c.index)
	return nil
}

// IndexTender writes the tender document under its store id.
func (c *ElasticIndexer) IndexTender(ctx context.Context, record domain.TenderRecord) error {
	payload, err := json.Marshal(domain.NewTenderDocument(record))
	if err != nil {
		return fmt.Errorf("marshal doc: %w", err)
	}

	req := esapi.IndexRequest{
		Index:      c.index,
		DocumentID: record.ID,
		Body:       bytes.NewReader(payload),
		Refresh:    "false",
	}

	res, err := req.Do(ctx, c.es)
	if err != nil {
		return fmt.Errorf("index doc: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		body, _ := io.ReadAll(res.Body)
		return fmt.Errorf("index doc failed: %s", strings.TrimSpace(string(body)))
	}

	return nil
}
