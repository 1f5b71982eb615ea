// Package memory provides an in-process PlaceAggregateStore used in tests and
// for running the service without Elasticsearch.
package memory

import (
	"context"
	"sync"

	"github.com/dinewise/analysis/internal/domain"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// Store keeps place aggregates in a map guarded by a RWMutex. Writes apply
// the same compare-and-swap version check as the Elasticsearch backend, so
// concurrency behavior is identical across engines.
type Store struct {
	mu   sync.RWMutex
	docs map[string]*domain.PlaceAggregate
}

func NewStore() *Store {
	return &Store{docs: make(map[string]*domain.PlaceAggregate)}
}

func (s *Store) Get(ctx context.Context, placeID string) (*domain.PlaceAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	doc, ok := s.docs[placeID]
	if !ok {
		return nil, apperrors.NotFound("place aggregate", placeID)
	}
	return clone(doc), nil
}

func (s *Store) Put(ctx context.Context, agg *domain.PlaceAggregate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.docs[agg.PlaceID]
	if !ok {
		if agg.Version != 0 {
			return apperrors.ErrVersionConflict
		}
	} else if stored.Version != agg.Version {
		return apperrors.ErrVersionConflict
	}

	agg.Version++
	s.docs[agg.PlaceID] = clone(agg)
	return nil
}

func (s *Store) FindByReviewID(ctx context.Context, reviewID string) (*domain.PlaceAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, doc := range s.docs {
		if _, ok := doc.ReviewSentiment[reviewID]; ok {
			return clone(doc), nil
		}
	}
	return nil, apperrors.NotFound("review analysis", reviewID)
}

// Len reports the number of stored aggregates.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docs)
}

// clone deep-copies an aggregate so callers can never mutate the stored copy.
func clone(a *domain.PlaceAggregate) *domain.PlaceAggregate {
	out := *a
	out.AITags = append([]string(nil), a.AITags...)

	out.ReviewSentiment = make(map[string]domain.ReviewSentimentRecord, len(a.ReviewSentiment))
	for id, rec := range a.ReviewSentiment {
		rec.Tags = append([]string(nil), rec.Tags...)
		out.ReviewSentiment[id] = rec
	}

	out.AggregatedTags = make(map[string]domain.TagStat, len(a.AggregatedTags))
	for tag, st := range a.AggregatedTags {
		out.AggregatedTags[tag] = st
	}
	return &out
}
