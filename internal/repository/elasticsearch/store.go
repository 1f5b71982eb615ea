// Package elasticsearch provides the Elasticsearch-backed PlaceAggregateStore.
package elasticsearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/dinewise/analysis/internal/domain"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// Store persists place aggregates as Elasticsearch documents keyed by place
// ID. Writes use external versioning: each Put carries the version the caller
// intends to install, and Elasticsearch rejects the write with a 409 when the
// stored document already moved past it. That makes the read-merge-write
// cycle safe across concurrent consumers without any coordination.
type Store struct {
	client    *elasticsearch.Client
	indexName string
	logger    *slog.Logger
}

// esDocument is the wire shape of a stored aggregate. ReviewIDs duplicates
// the review_sentiment keys as a flat keyword field so FindByReviewID can use
// a term query.
type esDocument struct {
	domain.PlaceAggregate
	ReviewIDs []string `json:"review_ids"`
}

// esGetResponse decodes a document GET.
type esGetResponse struct {
	Found  bool       `json:"found"`
	Source esDocument `json:"_source"`
}

// esSearchResponse decodes a search over aggregate documents.
type esSearchResponse struct {
	Hits struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []struct {
			Source esDocument `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// esErrorResponse decodes Elasticsearch error bodies.
type esErrorResponse struct {
	Error struct {
		Type   string `json:"type"`
		Reason string `json:"reason"`
	} `json:"error"`
	Status int `json:"status"`
}

// New creates a Store connected to the given URL and ensures the index
// exists. An empty indexName falls back to DefaultIndexName.
func New(esURL string, indexName string, logger *slog.Logger) (*Store, error) {
	if indexName == "" {
		indexName = DefaultIndexName
	}

	cfg := elasticsearch.Config{
		Addresses: []string{esURL},
	}

	client, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to create client: %w", err)
	}

	s := &Store{
		client:    client,
		indexName: indexName,
		logger:    logger,
	}

	if err := s.ensureIndex(); err != nil {
		return nil, fmt.Errorf("elasticsearch: failed to ensure index: %w", err)
	}

	return s, nil
}

// Ping checks whether the Elasticsearch cluster is reachable.
func (s *Store) Ping(ctx context.Context) error {
	res, err := s.client.Ping(s.client.Ping.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("elasticsearch ping: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		return fmt.Errorf("elasticsearch ping: unexpected status %s", res.Status())
	}
	return nil
}

// ensureIndex checks whether the insights index exists and creates it if not.
func (s *Store) ensureIndex() error {
	res, err := s.client.Indices.Exists([]string{s.indexName})
	if err != nil {
		return fmt.Errorf("check index exists: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 200 {
		s.logger.Info("elasticsearch index already exists", "index", s.indexName)
		return nil
	}

	mapping := buildIndexMapping()
	res, err = s.client.Indices.Create(
		s.indexName,
		s.client.Indices.Create.WithBody(strings.NewReader(mapping)),
	)
	if err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return fmt.Errorf("create index: %s — %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return fmt.Errorf("create index: unexpected status %s", res.Status())
	}

	s.logger.Info("elasticsearch index created", "index", s.indexName)
	return nil
}

// Get retrieves the aggregate document for a place.
func (s *Store) Get(ctx context.Context, placeID string) (*domain.PlaceAggregate, error) {
	res, err := s.client.Get(
		s.indexName,
		placeID,
		s.client.Get.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch get: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 404 {
		return nil, apperrors.NotFound("place aggregate", placeID)
	}
	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return nil, fmt.Errorf("elasticsearch get: %s — %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return nil, fmt.Errorf("elasticsearch get: unexpected status %s", res.Status())
	}

	var getResp esGetResponse
	if err := json.NewDecoder(res.Body).Decode(&getResp); err != nil {
		return nil, fmt.Errorf("elasticsearch get: decode response: %w", err)
	}
	if !getResp.Found {
		return nil, apperrors.NotFound("place aggregate", placeID)
	}

	agg := getResp.Source.PlaceAggregate
	return &agg, nil
}

// Put writes the aggregate, conditional on its version. On success the
// aggregate's Version is advanced to the version just installed.
func (s *Store) Put(ctx context.Context, agg *domain.PlaceAggregate) error {
	next := agg.Version + 1

	doc := esDocument{
		PlaceAggregate: *agg,
		ReviewIDs:      agg.ReviewIDs(),
	}
	doc.Version = next

	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("elasticsearch put: marshal document: %w", err)
	}

	res, err := s.client.Index(
		s.indexName,
		bytes.NewReader(data),
		s.client.Index.WithDocumentID(agg.PlaceID),
		s.client.Index.WithVersion(int(next)),
		s.client.Index.WithVersionType("external"),
		s.client.Index.WithRefresh("true"),
		s.client.Index.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch put: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode == 409 {
		return apperrors.ErrVersionConflict
	}
	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return fmt.Errorf("elasticsearch put: %s — %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return fmt.Errorf("elasticsearch put: unexpected status %s", res.Status())
	}

	agg.Version = next
	s.logger.Debug("indexed place aggregate",
		"place_id", agg.PlaceID,
		"version", strconv.FormatInt(next, 10),
		"reviews", len(agg.ReviewSentiment),
	)
	return nil
}

// FindByReviewID locates the aggregate document that contains the given
// review's sentiment record.
func (s *Store) FindByReviewID(ctx context.Context, reviewID string) (*domain.PlaceAggregate, error) {
	query := map[string]interface{}{
		"query": map[string]interface{}{
			"term": map[string]interface{}{
				"review_ids": reviewID,
			},
		},
		"size": 1,
	}

	data, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch find by review: marshal query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithIndex(s.indexName),
		s.client.Search.WithBody(bytes.NewReader(data)),
		s.client.Search.WithContext(ctx),
	)
	if err != nil {
		return nil, fmt.Errorf("elasticsearch find by review: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return nil, fmt.Errorf("elasticsearch find by review: %s — %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return nil, fmt.Errorf("elasticsearch find by review: unexpected status %s", res.Status())
	}

	var searchResp esSearchResponse
	if err := json.NewDecoder(res.Body).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("elasticsearch find by review: decode response: %w", err)
	}

	if len(searchResp.Hits.Hits) == 0 {
		return nil, apperrors.NotFound("review analysis", reviewID)
	}

	agg := searchResp.Hits.Hits[0].Source.PlaceAggregate
	return &agg, nil
}

// DeleteIndex removes the entire index. Intended for tests and administrative
// operations; a 404 is treated as success.
func (s *Store) DeleteIndex(ctx context.Context) error {
	res, err := s.client.Indices.Delete(
		[]string{s.indexName},
		s.client.Indices.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("elasticsearch delete index: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.IsError() && res.StatusCode != 404 {
		var errResp esErrorResponse
		if decErr := json.NewDecoder(res.Body).Decode(&errResp); decErr == nil {
			return fmt.Errorf("elasticsearch delete index: %s — %s", errResp.Error.Type, errResp.Error.Reason)
		}
		return fmt.Errorf("elasticsearch delete index: unexpected status %s", res.Status())
	}

	s.logger.Info("elasticsearch index deleted", "index", s.indexName)
	return nil
}
