package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/internal/repository"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// CertificationService manages dietary certifications and their trust scores.
type CertificationService struct {
	repo   repository.CertificationRepository
	logger *slog.Logger
	now    func() time.Time
}

// NewCertificationService creates a new certification service.
func NewCertificationService(repo repository.CertificationRepository, logger *slog.Logger) *CertificationService {
	return &CertificationService{
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// CreateCertificationInput holds the fields for submitting a certification
// claim.
type CreateCertificationInput struct {
	PlaceID     string `json:"place_id" validate:"required"`
	Type        string `json:"type" validate:"required,oneof=halal kosher vegan vegetarian gluten-free organic"`
	SubmittedBy string `json:"submitted_by" validate:"required"`
}

// Create submits a new certification claim. It starts in pending with all
// sub-scores at zero.
func (s *CertificationService) Create(ctx context.Context, input CreateCertificationInput) (*domain.DietaryCertification, error) {
	now := s.now().UTC()
	cert := &domain.DietaryCertification{
		ID:          uuid.New().String(),
		PlaceID:     input.PlaceID,
		Type:        input.Type,
		Status:      domain.CertificationPending,
		SubmittedBy: input.SubmittedBy,
	}
	cert.CreatedAt = now
	cert.UpdatedAt = now
	cert.RecalculateTrust(now)

	if err := s.repo.Create(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "certification submitted",
		slog.String("certification_id", cert.ID),
		slog.String("place_id", cert.PlaceID),
		slog.String("type", cert.Type),
	)
	return cert, nil
}

// GetByID returns a certification.
func (s *CertificationService) GetByID(ctx context.Context, id string) (*domain.DietaryCertification, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByPlace returns all certifications held by a place.
func (s *CertificationService) ListByPlace(ctx context.Context, placeID string) ([]domain.DietaryCertification, error) {
	return s.repo.ListByPlace(ctx, placeID)
}

// UpdateScoresInput carries partial sub-score updates; nil fields keep their
// stored value.
type UpdateScoresInput struct {
	OfficialCertScore *float64 `json:"official_cert_score" validate:"omitempty"`
	CommunityScore    *float64 `json:"community_score" validate:"omitempty"`
	MenuScore         *float64 `json:"menu_score" validate:"omitempty"`
	VisitScore        *float64 `json:"visit_score" validate:"omitempty"`
}

// UpdateScores applies the provided sub-scores and recomputes the trust
// score. Out-of-range inputs are clamped, not rejected. The new trust score
// replaces the previous one.
func (s *CertificationService) UpdateScores(ctx context.Context, id string, input UpdateScoresInput) (*domain.DietaryCertification, error) {
	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if input.OfficialCertScore != nil {
		cert.OfficialCertScore = *input.OfficialCertScore
	}
	if input.CommunityScore != nil {
		cert.CommunityScore = *input.CommunityScore
	}
	if input.MenuScore != nil {
		cert.MenuScore = *input.MenuScore
	}
	if input.VisitScore != nil {
		cert.VisitScore = *input.VisitScore
	}

	now := s.now().UTC()
	cert.RecalculateTrust(now)
	cert.UpdatedAt = now

	if err := s.repo.Update(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "certification scores updated",
		slog.String("certification_id", cert.ID),
		slog.Float64("trust_score", cert.TrustScore),
	)
	return cert, nil
}

// UpdateStatus moves a certification through its verification lifecycle.
// Illegal transitions are rejected with a conflict error.
func (s *CertificationService) UpdateStatus(ctx context.Context, id string, next domain.CertificationStatus) (*domain.DietaryCertification, error) {
	switch next {
	case domain.CertificationVerified, domain.CertificationRejected, domain.CertificationExpired:
	default:
		return nil, apperrors.InvalidInput(fmt.Sprintf("unknown certification status %q", next))
	}

	cert, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if !cert.CanTransitionTo(next) {
		return nil, apperrors.Conflict(fmt.Sprintf("certification cannot move from %s to %s", cert.Status, next))
	}

	cert.Status = next
	cert.UpdatedAt = s.now().UTC()

	if err := s.repo.Update(ctx, cert); err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "certification status changed",
		slog.String("certification_id", cert.ID),
		slog.String("status", string(next)),
	)
	return cert, nil
}
