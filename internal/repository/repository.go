package repository

import (
	"context"

	"github.com/dinewise/analysis/internal/domain"
)

// PlaceAggregateStore persists per-place analysis documents.
//
// Put uses optimistic concurrency: the write succeeds only if the stored
// document still carries the version the caller read (version 0 means "must
// not exist yet"). On success the document's Version is advanced in place.
// A lost race returns apperrors.ErrVersionConflict and the caller re-runs its
// read-merge-write cycle.
type PlaceAggregateStore interface {
	// Get retrieves the aggregate for a place, or apperrors.ErrNotFound.
	Get(ctx context.Context, placeID string) (*domain.PlaceAggregate, error)

	// Put writes the aggregate conditionally on its Version.
	Put(ctx context.Context, agg *domain.PlaceAggregate) error

	// FindByReviewID locates the aggregate containing a given review's
	// sentiment record, or apperrors.ErrNotFound.
	FindByReviewID(ctx context.Context, reviewID string) (*domain.PlaceAggregate, error)
}

// VoteApplied is the outcome of recording a helpfulness vote: the voter's
// prior verdict (nil on first vote) and the review's counters after the
// transition.
type VoteApplied struct {
	Prior    *bool
	Counters domain.VoteCounters
}

// VoteRepository owns the helpfulness vote ledger and the reviews' derived
// counters. Apply mutates both in a single transaction.
type VoteRepository interface {
	// EnsureReview registers a review so it can receive votes. Idempotent.
	EnsureReview(ctx context.Context, reviewID, placeID, authorID string) error

	// Apply records or mutates the (reviewID, userID) vote and adjusts the
	// review's counters accordingly, atomically. The prior verdict is read
	// under lock before being overwritten. Returns apperrors.ErrNotFound if
	// the review is unknown.
	Apply(ctx context.Context, reviewID, userID string, isHelpful bool) (*VoteApplied, error)

	// GetCounters returns a review's current counters.
	GetCounters(ctx context.Context, reviewID string) (*domain.VoteCounters, error)

	// Reconcile recomputes the counters from the ledger, repairs the review
	// row if it drifted, and returns the corrected counters.
	Reconcile(ctx context.Context, reviewID string) (*domain.VoteCounters, error)
}

// CertificationRepository persists dietary certifications.
type CertificationRepository interface {
	Create(ctx context.Context, cert *domain.DietaryCertification) error
	GetByID(ctx context.Context, id string) (*domain.DietaryCertification, error)
	Update(ctx context.Context, cert *domain.DietaryCertification) error
	ListByPlace(ctx context.Context, placeID string) ([]domain.DietaryCertification, error)
}
