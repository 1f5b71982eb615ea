// Package postgres implements the vote ledger and certification repositories
// on PostgreSQL.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/internal/repository"
	"github.com/dinewise/analysis/pkg/database"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// VoteRepository stores helpfulness votes and the per-review counters they
// roll up into. The ledger (review_votes) is the source of truth; the
// counters on the reviews row are a denormalization kept in sync inside the
// same transaction as every ledger write.
type VoteRepository struct {
	pool database.DBTX
}

// NewVoteRepository creates a PostgreSQL-backed vote repository.
func NewVoteRepository(pool database.DBTX) *VoteRepository {
	return &VoteRepository{pool: pool}
}

// EnsureReview registers a review row with zeroed counters. Replayed events
// hit the conflict clause and change nothing.
func (r *VoteRepository) EnsureReview(ctx context.Context, reviewID, placeID, authorID string) error {
	query := `
		INSERT INTO reviews (id, place_id, author_id, helpful_count, not_helpful_count, created_at)
		VALUES ($1, $2, $3, 0, 0, NOW())
		ON CONFLICT (id) DO NOTHING`

	_, err := r.pool.Exec(ctx, query, reviewID, placeID, authorID)
	if err != nil {
		return fmt.Errorf("ensure review: %w", err)
	}

	return nil
}

// Apply records the (reviewID, userID) vote and adjusts the review's counters
// in one transaction. The review row is locked first, so concurrent votes on
// the same review serialize and the counters never drift from the ledger.
func (r *VoteRepository) Apply(ctx context.Context, reviewID, userID string, isHelpful bool) (*repository.VoteApplied, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockQuery := `
		SELECT author_id
		FROM reviews
		WHERE id = $1
		FOR UPDATE`

	var authorID string
	err = tx.QueryRow(ctx, lockQuery, reviewID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("lock review: %w", err)
	}

	// Read the voter's prior verdict before overwriting it.
	priorQuery := `
		SELECT is_helpful
		FROM review_votes
		WHERE review_id = $1 AND user_id = $2`

	var prior *bool
	var priorVal bool
	err = tx.QueryRow(ctx, priorQuery, reviewID, userID).Scan(&priorVal)
	switch {
	case err == nil:
		prior = &priorVal
	case errors.Is(err, pgx.ErrNoRows):
		// first vote
	default:
		return nil, fmt.Errorf("get prior vote: %w", err)
	}

	upsertQuery := `
		INSERT INTO review_votes (review_id, user_id, is_helpful, created_at, updated_at)
		VALUES ($1, $2, $3, NOW(), NOW())
		ON CONFLICT (review_id, user_id) DO UPDATE SET
			is_helpful = EXCLUDED.is_helpful,
			updated_at = NOW()`

	if _, err := tx.Exec(ctx, upsertQuery, reviewID, userID, isHelpful); err != nil {
		return nil, fmt.Errorf("upsert vote: %w", err)
	}

	helpfulDelta, notHelpfulDelta := domain.CounterAdjustment(prior, isHelpful)

	countersQuery := `
		UPDATE reviews
		SET helpful_count = helpful_count + $1,
		    not_helpful_count = not_helpful_count + $2
		WHERE id = $3
		RETURNING helpful_count, not_helpful_count`

	var counters domain.VoteCounters
	counters.ReviewID = reviewID
	counters.AuthorID = authorID
	err = tx.QueryRow(ctx, countersQuery, helpfulDelta, notHelpfulDelta, reviewID).Scan(
		&counters.HelpfulCount,
		&counters.NotHelpfulCount,
	)
	if err != nil {
		return nil, fmt.Errorf("update review counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &repository.VoteApplied{
		Prior:    prior,
		Counters: counters,
	}, nil
}

// GetCounters returns a review's current counters.
func (r *VoteRepository) GetCounters(ctx context.Context, reviewID string) (*domain.VoteCounters, error) {
	query := `
		SELECT id, author_id, helpful_count, not_helpful_count
		FROM reviews
		WHERE id = $1`

	var c domain.VoteCounters
	err := r.pool.QueryRow(ctx, query, reviewID).Scan(
		&c.ReviewID,
		&c.AuthorID,
		&c.HelpfulCount,
		&c.NotHelpfulCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("get review counters: %w", err)
	}

	return &c, nil
}

// Reconcile recomputes the counters from the vote ledger and repairs the
// review row. The corrected counters are returned.
func (r *VoteRepository) Reconcile(ctx context.Context, reviewID string) (*domain.VoteCounters, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	lockQuery := `
		SELECT author_id
		FROM reviews
		WHERE id = $1
		FOR UPDATE`

	var authorID string
	err = tx.QueryRow(ctx, lockQuery, reviewID).Scan(&authorID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("review", reviewID)
		}
		return nil, fmt.Errorf("lock review: %w", err)
	}

	tallyQuery := `
		SELECT
			COUNT(*) FILTER (WHERE is_helpful),
			COUNT(*) FILTER (WHERE NOT is_helpful)
		FROM review_votes
		WHERE review_id = $1`

	var helpful, notHelpful int
	if err := tx.QueryRow(ctx, tallyQuery, reviewID).Scan(&helpful, &notHelpful); err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}

	repairQuery := `
		UPDATE reviews
		SET helpful_count = $1,
		    not_helpful_count = $2
		WHERE id = $3`

	if _, err := tx.Exec(ctx, repairQuery, helpful, notHelpful, reviewID); err != nil {
		return nil, fmt.Errorf("repair review counters: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	return &domain.VoteCounters{
		ReviewID:        reviewID,
		AuthorID:        authorID,
		HelpfulCount:    helpful,
		NotHelpfulCount: notHelpful,
	}, nil
}
