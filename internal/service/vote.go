package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/internal/repository"
)

// ReputationAdjuster applies reputation point deltas to users.
type ReputationAdjuster interface {
	AdjustPoints(ctx context.Context, userID string, points float64, reason string) error
}

// VoteService records helpfulness votes and forwards the resulting reputation
// deltas to the reputation service.
type VoteService struct {
	repo       repository.VoteRepository
	reputation ReputationAdjuster
	repTimeout time.Duration
	logger     *slog.Logger
}

// NewVoteService creates a new vote service. repTimeout bounds each
// reputation call; zero falls back to 5 seconds.
func NewVoteService(repo repository.VoteRepository, reputation ReputationAdjuster, repTimeout time.Duration, logger *slog.Logger) *VoteService {
	if repTimeout <= 0 {
		repTimeout = 5 * time.Second
	}
	return &VoteService{
		repo:       repo,
		reputation: reputation,
		repTimeout: repTimeout,
		logger:     logger,
	}
}

// CastVote records the voter's verdict and adjusts counters atomically, then
// notifies the reputation service about the author's point change. The
// reputation call is best-effort: the vote is already committed, so a
// downstream failure is logged and swallowed rather than unwinding the vote.
func (s *VoteService) CastVote(ctx context.Context, reviewID, userID string, isHelpful bool) (*domain.VoteCounters, error) {
	applied, err := s.repo.Apply(ctx, reviewID, userID, isHelpful)
	if err != nil {
		return nil, err
	}

	delta := domain.ReputationDelta(applied.Prior, isHelpful)

	s.logger.InfoContext(ctx, "helpfulness vote recorded",
		slog.String("review_id", reviewID),
		slog.String("voter_id", userID),
		slog.Bool("is_helpful", isHelpful),
		slog.Float64("reputation_delta", delta),
	)

	if delta != 0 {
		repCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.repTimeout)
		defer cancel()

		reason := "review_vote"
		if applied.Prior != nil {
			reason = "review_vote_changed"
		}

		if err := s.reputation.AdjustPoints(repCtx, applied.Counters.AuthorID, delta, reason); err != nil {
			s.logger.WarnContext(ctx, "reputation adjustment failed, vote kept",
				slog.String("review_id", reviewID),
				slog.String("author_id", applied.Counters.AuthorID),
				slog.Float64("delta", delta),
				slog.String("error", err.Error()),
			)
		}
	}

	return &applied.Counters, nil
}

// GetCounters returns a review's helpfulness counters.
func (s *VoteService) GetCounters(ctx context.Context, reviewID string) (*domain.VoteCounters, error) {
	return s.repo.GetCounters(ctx, reviewID)
}

// ReconcileCounters recomputes a review's counters from the vote ledger and
// repairs any drift.
func (s *VoteService) ReconcileCounters(ctx context.Context, reviewID string) (*domain.VoteCounters, error) {
	counters, err := s.repo.Reconcile(ctx, reviewID)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "vote counters reconciled",
		slog.String("review_id", reviewID),
		slog.Int("helpful", counters.HelpfulCount),
		slog.Int("not_helpful", counters.NotHelpfulCount),
	)
	return counters, nil
}

// RegisterReview makes a review known to the vote ledger with zeroed
// counters. Called from the review-created consumer; replays are no-ops.
func (s *VoteService) RegisterReview(ctx context.Context, reviewID, placeID, authorID string) error {
	return s.repo.EnsureReview(ctx, reviewID, placeID, authorID)
}
