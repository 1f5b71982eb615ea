package domain

import (
	"time"
)

// CertificationStatus is the verification lifecycle state of a dietary
// certification. Sub-scores and the trust score evolve independently of it.
type CertificationStatus string

const (
	CertificationPending  CertificationStatus = "pending"
	CertificationVerified CertificationStatus = "verified"
	CertificationRejected CertificationStatus = "rejected"
	CertificationExpired  CertificationStatus = "expired"
)

// Weights applied to the four certification sub-scores.
const (
	weightOfficialCert = 0.50
	weightCommunity    = 0.30
	weightMenu         = 0.10
	weightVisit        = 0.10
)

// DietaryCertification is a place's claim of a dietary standard (halal,
// kosher, vegan, gluten-free, ...) plus the evidence scores backing it.
type DietaryCertification struct {
	ID      string `json:"id"`
	PlaceID string `json:"place_id"`
	Type    string `json:"type"`

	Status      CertificationStatus `json:"status"`
	SubmittedBy string              `json:"submitted_by"`

	// Sub-scores, each maintained by its own verification workflow and
	// clamped to [0,100] on write.
	OfficialCertScore float64 `json:"official_cert_score"`
	CommunityScore    float64 `json:"community_score"`
	MenuScore         float64 `json:"menu_score"`
	VisitScore        float64 `json:"visit_score"`

	// TrustScore is derived from the sub-scores; each recomputation
	// overwrites the previous value, no history is kept.
	TrustScore      float64   `json:"trust_score"`
	LastScoreUpdate time.Time `json:"last_score_update"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ClampScore corrects a sub-score into [0,100]. Out-of-range values come from
// trusted internal callers, so they are clamped rather than rejected.
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 100 {
		return 100
	}
	return s
}

// ComputeTrustScore combines the four sub-scores into a single 0-100 trust
// figure. Inputs are clamped independently before weighting, so the result
// is always within bounds.
func ComputeTrustScore(official, community, menu, visit float64) float64 {
	return ClampScore(official)*weightOfficialCert +
		ClampScore(community)*weightCommunity +
		ClampScore(menu)*weightMenu +
		ClampScore(visit)*weightVisit
}

// RecalculateTrust clamps the stored sub-scores, recomputes TrustScore, and
// stamps LastScoreUpdate.
func (c *DietaryCertification) RecalculateTrust(now time.Time) {
	c.OfficialCertScore = ClampScore(c.OfficialCertScore)
	c.CommunityScore = ClampScore(c.CommunityScore)
	c.MenuScore = ClampScore(c.MenuScore)
	c.VisitScore = ClampScore(c.VisitScore)

	c.TrustScore = ComputeTrustScore(c.OfficialCertScore, c.CommunityScore, c.MenuScore, c.VisitScore)
	c.LastScoreUpdate = now
}

// CanTransitionTo reports whether the status change is legal. Pending may move
// to any terminal state; verified may expire; terminal states stay put.
func (c *DietaryCertification) CanTransitionTo(next CertificationStatus) bool {
	switch c.Status {
	case CertificationPending:
		return next == CertificationVerified || next == CertificationRejected || next == CertificationExpired
	case CertificationVerified:
		return next == CertificationExpired
	default:
		return false
	}
}
