package postgres

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dinewise/analysis/pkg/database"
	apperrors "github.com/dinewise/analysis/pkg/errors"
)

func setupVoteRepo(t *testing.T) (*VoteRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	repo := NewVoteRepository(mock)
	return repo, mock
}

// ---------------------------------------------------------------------------
// EnsureReview
// ---------------------------------------------------------------------------

func TestVoteRepository_EnsureReview(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectExec("INSERT INTO reviews").
		WithArgs("rev-1", "place-1", "author-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	err := repo.EnsureReview(context.Background(), "rev-1", "place-1", "author-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_EnsureReview_Replay(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	// ON CONFLICT DO NOTHING: zero rows affected is still success.
	mock.ExpectExec("INSERT INTO reviews").
		WithArgs("rev-1", "place-1", "author-1").
		WillReturnResult(pgxmock.NewResult("INSERT", 0))

	err := repo.EnsureReview(context.Background(), "rev-1", "place-1", "author-1")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Apply
// ---------------------------------------------------------------------------

func TestVoteRepository_Apply_FirstVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("author-1"))
	mock.ExpectQuery("SELECT is_helpful FROM review_votes").
		WithArgs("rev-1", "user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO review_votes").
		WithArgs("rev-1", "user-1", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE reviews SET helpful_count").
		WithArgs(1, 0, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count", "not_helpful_count"}).AddRow(5, 2))
	mock.ExpectCommit()

	applied, err := repo.Apply(context.Background(), "rev-1", "user-1", true)
	require.NoError(t, err)
	assert.Nil(t, applied.Prior)
	assert.Equal(t, "author-1", applied.Counters.AuthorID)
	assert.Equal(t, 5, applied.Counters.HelpfulCount)
	assert.Equal(t, 2, applied.Counters.NotHelpfulCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Apply_FlippedVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("author-1"))
	mock.ExpectQuery("SELECT is_helpful FROM review_votes").
		WithArgs("rev-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"is_helpful"}).AddRow(true))
	mock.ExpectExec("INSERT INTO review_votes").
		WithArgs("rev-1", "user-1", false).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// helpful -> not-helpful moves one count across.
	mock.ExpectQuery("UPDATE reviews SET helpful_count").
		WithArgs(-1, 1, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count", "not_helpful_count"}).AddRow(4, 3))
	mock.ExpectCommit()

	applied, err := repo.Apply(context.Background(), "rev-1", "user-1", false)
	require.NoError(t, err)
	require.NotNil(t, applied.Prior)
	assert.True(t, *applied.Prior)
	assert.Equal(t, 4, applied.Counters.HelpfulCount)
	assert.Equal(t, 3, applied.Counters.NotHelpfulCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Apply_RepeatedVote(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("author-1"))
	mock.ExpectQuery("SELECT is_helpful FROM review_votes").
		WithArgs("rev-1", "user-1").
		WillReturnRows(pgxmock.NewRows([]string{"is_helpful"}).AddRow(true))
	mock.ExpectExec("INSERT INTO review_votes").
		WithArgs("rev-1", "user-1", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	// Identical verdict: counters unchanged.
	mock.ExpectQuery("UPDATE reviews SET helpful_count").
		WithArgs(0, 0, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count", "not_helpful_count"}).AddRow(5, 2))
	mock.ExpectCommit()

	applied, err := repo.Apply(context.Background(), "rev-1", "user-1", true)
	require.NoError(t, err)
	require.NotNil(t, applied.Prior)
	assert.True(t, *applied.Prior)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Apply_ReviewNotFound(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	applied, err := repo.Apply(context.Background(), "rev-missing", "user-1", true)
	assert.Nil(t, applied)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Apply_CommitError(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("author-1"))
	mock.ExpectQuery("SELECT is_helpful FROM review_votes").
		WithArgs("rev-1", "user-1").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectExec("INSERT INTO review_votes").
		WithArgs("rev-1", "user-1", true).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectQuery("UPDATE reviews SET helpful_count").
		WithArgs(1, 0, "rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful_count", "not_helpful_count"}).AddRow(1, 0))
	mock.ExpectCommit().WillReturnError(errors.New("connection reset"))

	applied, err := repo.Apply(context.Background(), "rev-1", "user-1", true)
	assert.Nil(t, applied)
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// GetCounters
// ---------------------------------------------------------------------------

func TestVoteRepository_GetCounters_Success(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, author_id, helpful_count, not_helpful_count FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(
			pgxmock.NewRows([]string{"id", "author_id", "helpful_count", "not_helpful_count"}).
				AddRow("rev-1", "author-1", 7, 3),
		)

	c, err := repo.GetCounters(context.Background(), "rev-1")
	require.NoError(t, err)
	assert.Equal(t, 7, c.HelpfulCount)
	assert.Equal(t, 3, c.NotHelpfulCount)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_GetCounters_NotFound(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectQuery("SELECT id, author_id, helpful_count, not_helpful_count FROM reviews").
		WithArgs("rev-missing").
		WillReturnError(pgx.ErrNoRows)

	c, err := repo.GetCounters(context.Background(), "rev-missing")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

// ---------------------------------------------------------------------------
// Reconcile
// ---------------------------------------------------------------------------

func TestVoteRepository_Reconcile_RepairsDrift(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"author_id"}).AddRow("author-1"))
	mock.ExpectQuery("SELECT .+ FROM review_votes").
		WithArgs("rev-1").
		WillReturnRows(pgxmock.NewRows([]string{"helpful", "not_helpful"}).AddRow(9, 4))
	mock.ExpectExec("UPDATE reviews SET helpful_count").
		WithArgs(9, 4, "rev-1").
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	c, err := repo.Reconcile(context.Background(), "rev-1")
	require.NoError(t, err)
	assert.Equal(t, 9, c.HelpfulCount)
	assert.Equal(t, 4, c.NotHelpfulCount)
	assert.Equal(t, "author-1", c.AuthorID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVoteRepository_Reconcile_NotFound(t *testing.T) {
	repo, mock := setupVoteRepo(t)
	defer mock.Close()

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT author_id FROM reviews").
		WithArgs("rev-missing").
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	c, err := repo.Reconcile(context.Background(), "rev-missing")
	assert.Nil(t, c)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
