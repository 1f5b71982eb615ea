// Package service implements the business logic of the analysis service.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/dinewise/analysis/internal/classifier"
	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/internal/repository"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// maxMergeAttempts bounds how often a review merge is retried after losing an
// optimistic concurrency race.
const maxMergeAttempts = 5

// AggregationService classifies review text and merges the result into the
// owning place's aggregate document.
type AggregationService struct {
	store  repository.PlaceAggregateStore
	logger *slog.Logger
}

// NewAggregationService creates a new aggregation service.
func NewAggregationService(store repository.PlaceAggregateStore, logger *slog.Logger) *AggregationService {
	return &AggregationService{
		store:  store,
		logger: logger,
	}
}

// ProcessReview classifies the review text and merges the resulting sentiment
// record into the place's aggregate. The merge is a read-merge-write cycle
// under optimistic concurrency: a version conflict means another consumer got
// there first, so the whole cycle is re-run against the fresh document. The
// operation is idempotent; reprocessing a review replaces its previous record
// and converges to the same aggregate state.
func (s *AggregationService) ProcessReview(ctx context.Context, reviewID, placeID, text string) error {
	result := classifier.Classify(text)

	rec := domain.ReviewSentimentRecord{
		ReviewID:   reviewID,
		Tags:       result.TagNames(),
		Confidence: result.OverallConfidence(),
		Sentiment:  result.Sentiment,
	}

	var lastErr error
	for attempt := 1; attempt <= maxMergeAttempts; attempt++ {
		agg, err := s.store.Get(ctx, placeID)
		if err != nil {
			if !errors.Is(err, apperrors.ErrNotFound) {
				return fmt.Errorf("get place aggregate: %w", err)
			}
			agg = domain.NewPlaceAggregate(placeID)
		}

		agg.ApplyReview(rec)

		err = s.store.Put(ctx, agg)
		if err == nil {
			s.logger.InfoContext(ctx, "review merged into place aggregate",
				slog.String("review_id", reviewID),
				slog.String("place_id", placeID),
				slog.String("sentiment", string(rec.Sentiment)),
				slog.Int("tags", len(rec.Tags)),
				slog.Int("attempt", attempt),
			)
			return nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return fmt.Errorf("put place aggregate: %w", err)
		}

		lastErr = err
		s.logger.WarnContext(ctx, "aggregate version conflict, retrying merge",
			slog.String("place_id", placeID),
			slog.String("review_id", reviewID),
			slog.Int("attempt", attempt),
		)
	}

	return fmt.Errorf("merge review %s after %d attempts: %w", reviewID, maxMergeAttempts, lastErr)
}

// RemoveReview drops a review's record from its place aggregate, e.g. when
// the review is deleted upstream. Unknown reviews are a no-op.
func (s *AggregationService) RemoveReview(ctx context.Context, reviewID string) error {
	var lastErr error
	for attempt := 1; attempt <= maxMergeAttempts; attempt++ {
		agg, err := s.store.FindByReviewID(ctx, reviewID)
		if err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil
			}
			return fmt.Errorf("find aggregate by review: %w", err)
		}

		if !agg.RemoveReview(reviewID) {
			return nil
		}

		err = s.store.Put(ctx, agg)
		if err == nil {
			s.logger.InfoContext(ctx, "review removed from place aggregate",
				slog.String("review_id", reviewID),
				slog.String("place_id", agg.PlaceID),
			)
			return nil
		}
		if !errors.Is(err, apperrors.ErrVersionConflict) {
			return fmt.Errorf("put place aggregate: %w", err)
		}
		lastErr = err
	}

	return fmt.Errorf("remove review %s after %d attempts: %w", reviewID, maxMergeAttempts, lastErr)
}

// GetPlaceInsights returns the aggregate document for a place.
func (s *AggregationService) GetPlaceInsights(ctx context.Context, placeID string) (*domain.PlaceAggregate, error) {
	agg, err := s.store.Get(ctx, placeID)
	if err != nil {
		return nil, err
	}
	return agg, nil
}

// GetReviewInsights returns the stored sentiment record for a single review.
func (s *AggregationService) GetReviewInsights(ctx context.Context, reviewID string) (*domain.ReviewSentimentRecord, error) {
	agg, err := s.store.FindByReviewID(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	rec, ok := agg.ReviewSentiment[reviewID]
	if !ok {
		return nil, apperrors.NotFound("review analysis", reviewID)
	}
	return &rec, nil
}
