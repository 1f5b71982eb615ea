package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinewise/analysis/internal/domain"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

func TestStore_PutAndGet(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	agg := domain.NewPlaceAggregate("place-1")
	agg.ApplyReview(domain.ReviewSentimentRecord{
		ReviewID:   "rev-1",
		Tags:       []string{"delicious"},
		Confidence: 0.9,
		Sentiment:  domain.SentimentPositive,
	})

	require.NoError(t, s.Put(ctx, agg))
	assert.Equal(t, int64(1), agg.Version)

	got, err := s.Get(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Version)
	assert.Equal(t, []string{"delicious"}, got.AITags)
}

func TestStore_GetNotFound(t *testing.T) {
	s := NewStore()

	_, err := s.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_PutVersionConflict(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	agg := domain.NewPlaceAggregate("place-1")
	require.NoError(t, s.Put(ctx, agg))

	// Two readers take the same snapshot; the second writer must lose.
	a, err := s.Get(ctx, "place-1")
	require.NoError(t, err)
	b, err := s.Get(ctx, "place-1")
	require.NoError(t, err)

	require.NoError(t, s.Put(ctx, a))
	err = s.Put(ctx, b)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestStore_PutStaleCreate(t *testing.T) {
	s := NewStore()

	agg := domain.NewPlaceAggregate("place-1")
	agg.Version = 3

	err := s.Put(context.Background(), agg)
	assert.ErrorIs(t, err, apperrors.ErrVersionConflict)
}

func TestStore_FindByReviewID(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	agg := domain.NewPlaceAggregate("place-1")
	agg.ApplyReview(domain.ReviewSentimentRecord{ReviewID: "rev-7", Sentiment: domain.SentimentNeutral})
	require.NoError(t, s.Put(ctx, agg))

	got, err := s.FindByReviewID(ctx, "rev-7")
	require.NoError(t, err)
	assert.Equal(t, "place-1", got.PlaceID)

	_, err = s.FindByReviewID(ctx, "rev-unknown")
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestStore_GetReturnsCopy(t *testing.T) {
	s := NewStore()
	ctx := context.Background()

	agg := domain.NewPlaceAggregate("place-1")
	agg.ApplyReview(domain.ReviewSentimentRecord{ReviewID: "rev-1", Tags: []string{"cozy-atmosphere"}})
	require.NoError(t, s.Put(ctx, agg))

	got, err := s.Get(ctx, "place-1")
	require.NoError(t, err)
	got.AITags[0] = "mutated"
	delete(got.ReviewSentiment, "rev-1")

	again, err := s.Get(ctx, "place-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"cozy-atmosphere"}, again.AITags)
	assert.Contains(t, again.ReviewSentiment, "rev-1")
}
