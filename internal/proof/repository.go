package proof

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ActiveIndexName is the partial unique index on proof_submissions that
// allows at most one PENDING/REVIEWING/ACCEPTED row per task. The
// engine translates violations of it into submit conflicts.
const ActiveIndexName = "uq_proof_submissions_active_task"

type Repository struct {
	pool *pgxpool.Pool
}

func NewRepository(pool *pgxpool.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Begin(ctx context.Context) (pgx.Tx, error) {
	return r.pool.Begin(ctx)
}

const submissionColumns = `id, task_id, worker_id, status, description, photo_urls, has_before_after, quality_tier, created_at, expires_at, reviewed_at, reviewer_id, ai_score, rejection_reason`

func scanSubmission(row pgx.Row) (*Submission, error) {
	var s Submission
	err := row.Scan(&s.ID, &s.TaskID, &s.WorkerID, &s.State, &s.Description, &s.PhotoURLs, &s.HasBeforeAfter,
		&s.QualityTier, &s.CreatedAt, &s.ExpiresAt, &s.ReviewedAt, &s.ReviewerID, &s.AIScore, &s.RejectReason)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// InsertTx inserts a new PENDING submission inside the caller's
// transaction. The partial unique index closes the concurrent-submit
// race; IsActiveConflict recognises the resulting error.
func (r *Repository) InsertTx(ctx context.Context, tx pgx.Tx, s *Submission) error {
	return tx.QueryRow(ctx, `
		INSERT INTO proof_submissions (id, task_id, worker_id, status, description, photo_urls, has_before_after, quality_tier, expires_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at
	`, s.ID, s.TaskID, s.WorkerID, s.State, s.Description, s.PhotoURLs, s.HasBeforeAfter, s.QualityTier, s.ExpiresAt).Scan(&s.CreatedAt)
}

// IsActiveConflict reports whether err is a unique violation of the
// single-active-proof index.
func IsActiveConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == ActiveIndexName
}

// GetForUpdateTx locks the submission row for the duration of the
// caller's transaction so the state check and update cannot interleave
// with a concurrent transition.
func (r *Repository) GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Submission, error) {
	return scanSubmission(tx.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM proof_submissions WHERE id = $1 FOR UPDATE
	`, id))
}

// UpdateStateTx writes the new state and review metadata. Only the
// fields a transition may touch are updated; expires_at is immutable.
func (r *Repository) UpdateStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, to State, rc ReviewContext, reviewedAt time.Time) error {
	var reason *string
	if rc.RejectReason != "" {
		reason = &rc.RejectReason
	}
	_, err := tx.Exec(ctx, `
		UPDATE proof_submissions
		SET status = $2,
		    reviewer_id = COALESCE($3, reviewer_id),
		    ai_score = COALESCE($4, ai_score),
		    rejection_reason = COALESCE($5, rejection_reason),
		    reviewed_at = COALESCE(reviewed_at, $6)
		WHERE id = $1
	`, id, to, rc.ReviewerID, rc.AIScore, reason, reviewedAt)
	return err
}

// AppendLogTx appends one transition log entry inside the caller's
// transaction. The table is append-only; there is no update or delete.
func (r *Repository) AppendLogTx(ctx context.Context, tx pgx.Tx, e *LogEntry) error {
	return tx.QueryRow(ctx, `
		INSERT INTO proof_transitions (id, submission_id, task_id, from_state, to_state, context)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at
	`, e.ID, e.SubmissionID, e.TaskID, e.FromState, e.ToState, e.Context).Scan(&e.CreatedAt)
}

func (r *Repository) GetByID(ctx context.Context, id uuid.UUID) (*Submission, error) {
	return scanSubmission(r.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM proof_submissions WHERE id = $1
	`, id))
}

// ActiveByTask returns the task's PENDING/REVIEWING/ACCEPTED submission,
// or nil if none exists. The partial unique index guarantees at most one.
func (r *Repository) ActiveByTask(ctx context.Context, taskID uuid.UUID) (*Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM proof_submissions
		WHERE task_id = $1 AND status IN ('PENDING', 'REVIEWING', 'ACCEPTED')
	`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// LatestByTask returns the most recent submission for the task by
// creation time, or nil if the task has never had one.
func (r *Repository) LatestByTask(ctx context.Context, taskID uuid.UUID) (*Submission, error) {
	s, err := scanSubmission(r.pool.QueryRow(ctx, `
		SELECT `+submissionColumns+` FROM proof_submissions
		WHERE task_id = $1 ORDER BY created_at DESC LIMIT 1
	`, taskID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return s, nil
}

// CountAccepted returns the number of ACCEPTED submissions for the task.
func (r *Repository) CountAccepted(ctx context.Context, taskID uuid.UUID) (int, error) {
	var n int
	err := r.pool.QueryRow(ctx, `
		SELECT count(*) FROM proof_submissions WHERE task_id = $1 AND status = 'ACCEPTED'
	`, taskID).Scan(&n)
	return n, err
}

// FindExpirable returns ids of PENDING/REVIEWING submissions whose
// review window elapsed before now.
func (r *Repository) FindExpirable(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id FROM proof_submissions
		WHERE status IN ('PENDING', 'REVIEWING') AND expires_at <= $1
		ORDER BY expires_at
	`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ListLog returns the transition log for a submission in append order.
func (r *Repository) ListLog(ctx context.Context, submissionID uuid.UUID) ([]*LogEntry, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, submission_id, task_id, from_state, to_state, context, created_at
		FROM proof_transitions WHERE submission_id = $1 ORDER BY created_at
	`, submissionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var list []*LogEntry
	for rows.Next() {
		var e LogEntry
		var ctxBlob json.RawMessage
		if err := rows.Scan(&e.ID, &e.SubmissionID, &e.TaskID, &e.FromState, &e.ToState, &ctxBlob, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Context = ctxBlob
		list = append(list, &e)
	}
	return list, rows.Err()
}
