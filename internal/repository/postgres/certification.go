package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/dinewise/analysis/internal/domain"
	"github.com/dinewise/analysis/pkg/database"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

// CertificationRepository stores dietary certifications.
type CertificationRepository struct {
	pool database.DBTX
}

// NewCertificationRepository creates a PostgreSQL-backed certification repository.
func NewCertificationRepository(pool database.DBTX) *CertificationRepository {
	return &CertificationRepository{pool: pool}
}

const certificationColumns = `
	id, place_id, type, status, submitted_by,
	official_cert_score, community_score, menu_score, visit_score,
	trust_score, last_score_update, created_at, updated_at`

// Create inserts a new certification. A place may hold at most one
// certification per dietary type.
func (r *CertificationRepository) Create(ctx context.Context, cert *domain.DietaryCertification) error {
	query := `
		INSERT INTO dietary_certifications (
			id, place_id, type, status, submitted_by,
			official_cert_score, community_score, menu_score, visit_score,
			trust_score, last_score_update, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := r.pool.Exec(ctx, query,
		cert.ID,
		cert.PlaceID,
		cert.Type,
		cert.Status,
		cert.SubmittedBy,
		cert.OfficialCertScore,
		cert.CommunityScore,
		cert.MenuScore,
		cert.VisitScore,
		cert.TrustScore,
		cert.LastScoreUpdate,
		cert.CreatedAt,
		cert.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperrors.AlreadyExists("certification", "type", cert.Type)
		}
		return fmt.Errorf("create certification: %w", err)
	}

	return nil
}

// GetByID retrieves a certification by its identifier.
func (r *CertificationRepository) GetByID(ctx context.Context, id string) (*domain.DietaryCertification, error) {
	query := `
		SELECT ` + certificationColumns + `
		FROM dietary_certifications
		WHERE id = $1`

	cert, err := scanCertification(r.pool.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("certification", id)
		}
		return nil, fmt.Errorf("get certification by id: %w", err)
	}

	return cert, nil
}

// Update persists the certification's status, sub-scores, and derived trust
// score.
func (r *CertificationRepository) Update(ctx context.Context, cert *domain.DietaryCertification) error {
	query := `
		UPDATE dietary_certifications
		SET status = $1,
		    official_cert_score = $2,
		    community_score = $3,
		    menu_score = $4,
		    visit_score = $5,
		    trust_score = $6,
		    last_score_update = $7,
		    updated_at = $8
		WHERE id = $9`

	ct, err := r.pool.Exec(ctx, query,
		cert.Status,
		cert.OfficialCertScore,
		cert.CommunityScore,
		cert.MenuScore,
		cert.VisitScore,
		cert.TrustScore,
		cert.LastScoreUpdate,
		cert.UpdatedAt,
		cert.ID,
	)
	if err != nil {
		return fmt.Errorf("update certification: %w", err)
	}

	if ct.RowsAffected() == 0 {
		return apperrors.NotFound("certification", cert.ID)
	}

	return nil
}

// ListByPlace returns all certifications held by a place, newest first.
func (r *CertificationRepository) ListByPlace(ctx context.Context, placeID string) ([]domain.DietaryCertification, error) {
	query := `
		SELECT ` + certificationColumns + `
		FROM dietary_certifications
		WHERE place_id = $1
		ORDER BY created_at DESC`

	rows, err := r.pool.Query(ctx, query, placeID)
	if err != nil {
		return nil, fmt.Errorf("list certifications by place: %w", err)
	}
	defer rows.Close()

	var certs []domain.DietaryCertification
	for rows.Next() {
		cert, err := scanCertification(rows)
		if err != nil {
			return nil, fmt.Errorf("scan certification row: %w", err)
		}
		certs = append(certs, *cert)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate certification rows: %w", err)
	}

	if certs == nil {
		certs = []domain.DietaryCertification{}
	}

	return certs, nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "23505")
}

// scanCertification reads one certification row.
func scanCertification(row pgx.Row) (*domain.DietaryCertification, error) {
	var c domain.DietaryCertification
	err := row.Scan(
		&c.ID,
		&c.PlaceID,
		&c.Type,
		&c.Status,
		&c.SubmittedBy,
		&c.OfficialCertScore,
		&c.CommunityScore,
		&c.MenuScore,
		&c.VisitScore,
		&c.TrustScore,
		&c.LastScoreUpdate,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}
