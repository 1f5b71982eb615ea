package domain

import (
	"time"
)

// HelpfulnessVote is one user's verdict on one review. The (ReviewID, UserID)
// pair is unique; re-voting mutates the existing record.
type HelpfulnessVote struct {
	ReviewID  string    `json:"review_id"`
	UserID    string    `json:"user_id"`
	IsHelpful bool      `json:"is_helpful"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Reputation point values for a helpfulness verdict on the review's author.
const (
	reputationHelpful    = 1.0
	reputationNotHelpful = -0.5
)

// ReputationDelta returns the signed reputation adjustment for a vote
// transition. prior is nil when the user has not voted before. A repeated
// identical vote yields zero; a flipped vote undoes the prior value and
// applies the new one.
func ReputationDelta(prior *bool, next bool) float64 {
	if prior == nil {
		if next {
			return reputationHelpful
		}
		return reputationNotHelpful
	}
	if *prior == next {
		return 0
	}
	if next {
		// not-helpful -> helpful
		return reputationHelpful - reputationNotHelpful
	}
	// helpful -> not-helpful
	return reputationNotHelpful - reputationHelpful
}

// CounterAdjustment returns the increments to apply to a review's
// (helpfulCount, notHelpfulCount) for a vote transition.
func CounterAdjustment(prior *bool, next bool) (helpful int, notHelpful int) {
	if prior == nil {
		if next {
			return 1, 0
		}
		return 0, 1
	}
	if *prior == next {
		return 0, 0
	}
	if next {
		return 1, -1
	}
	return -1, 1
}

// VoteCounters is the denormalized helpfulness tally a review carries. It
// must always equal the per-value counts of the vote ledger; drift is
// repaired by reconciliation, not tolerated.
type VoteCounters struct {
	ReviewID        string `json:"review_id"`
	AuthorID        string `json:"author_id"`
	HelpfulCount    int    `json:"helpful_count"`
	NotHelpfulCount int    `json:"not_helpful_count"`
}
