package repository

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorely/backend/internal/models"
)

type ReviewerRepo struct {
	pool *pgxpool.Pool
}

func NewReviewerRepo(pool *pgxpool.Pool) *ReviewerRepo {
	return &ReviewerRepo{pool: pool}
}

const reviewerColumns = `id, account_id, specialties, availability, max_open_reviews, avg_review_time_ms, created_at, updated_at`

func scanReviewer(row pgx.Row) (*models.Reviewer, error) {
	var rv models.Reviewer
	err := row.Scan(&rv.ID, &rv.AccountID, &rv.Specialties, &rv.Availability, &rv.MaxOpenReviews, &rv.AvgReviewTimeMs, &rv.CreatedAt, &rv.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return &rv, nil
}

func (r *ReviewerRepo) Create(ctx context.Context, rv *models.Reviewer) error {
	return r.pool.QueryRow(ctx, `
		INSERT INTO reviewers (id, account_id, specialties, availability, max_open_reviews, avg_review_time_ms)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at
	`, rv.ID, rv.AccountID, rv.Specialties, rv.Availability, rv.MaxOpenReviews, rv.AvgReviewTimeMs).Scan(&rv.CreatedAt, &rv.UpdatedAt)
}

func (r *ReviewerRepo) GetByID(ctx context.Context, id uuid.UUID) (*models.Reviewer, error) {
	return scanReviewer(r.pool.QueryRow(ctx, `
		SELECT `+reviewerColumns+` FROM reviewers WHERE id = $1
	`, id))
}

func (r *ReviewerRepo) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Reviewer, error) {
	return scanReviewer(r.pool.QueryRow(ctx, `
		SELECT `+reviewerColumns+` FROM reviewers WHERE account_id = $1
	`, accountID))
}

func (r *ReviewerRepo) UpdateAvailability(ctx context.Context, id uuid.UUID, availability string) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE reviewers SET availability = $2, updated_at = now() WHERE id = $1
	`, id, availability)
	return err
}

func (r *ReviewerRepo) List(ctx context.Context) ([]*models.Reviewer, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+reviewerColumns+` FROM reviewers ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectReviewers(rows)
}

// ReviewerLoad is a reviewer profile joined with their current number
// of open REVIEWING submissions.
type ReviewerLoad struct {
	Reviewer    models.Reviewer
	OpenReviews int
}

// FindAvailable returns online reviewers whose specialties include the
// given quality tier and who are under their open-review cap, least
// loaded first.
func (r *ReviewerRepo) FindAvailable(ctx context.Context, tier string) ([]*ReviewerLoad, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT rv.id, rv.account_id, rv.specialties, rv.availability, rv.max_open_reviews, rv.avg_review_time_ms, rv.created_at, rv.updated_at,
		       count(ps.id) AS open_reviews
		FROM reviewers rv
		LEFT JOIN proof_submissions ps ON ps.reviewer_id = rv.id AND ps.status = 'REVIEWING'
		WHERE rv.availability = 'online' AND rv.specialties @> ARRAY[$1]::text[]
		GROUP BY rv.id
		HAVING count(ps.id) < rv.max_open_reviews
		ORDER BY count(ps.id) ASC, rv.created_at ASC
	`, tier)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*ReviewerLoad
	for rows.Next() {
		var rl ReviewerLoad
		if err := rows.Scan(&rl.Reviewer.ID, &rl.Reviewer.AccountID, &rl.Reviewer.Specialties, &rl.Reviewer.Availability,
			&rl.Reviewer.MaxOpenReviews, &rl.Reviewer.AvgReviewTimeMs, &rl.Reviewer.CreatedAt, &rl.Reviewer.UpdatedAt,
			&rl.OpenReviews); err != nil {
			return nil, err
		}
		list = append(list, &rl)
	}
	return list, rows.Err()
}

func collectReviewers(rows pgx.Rows) ([]*models.Reviewer, error) {
	var list []*models.Reviewer
	for rows.Next() {
		var rv models.Reviewer
		if err := rows.Scan(&rv.ID, &rv.AccountID, &rv.Specialties, &rv.Availability, &rv.MaxOpenReviews, &rv.AvgReviewTimeMs, &rv.CreatedAt, &rv.UpdatedAt); err != nil {
			return nil, err
		}
		list = append(list, &rv)
	}
	return list, rows.Err()
}
