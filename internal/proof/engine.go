package proof

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chorely/backend/internal/notify"
)

// Service is the single entry point for every proof state change. No
// other component writes submission rows or transition log entries.
type Service interface {
	Submit(ctx context.Context, taskID, workerID uuid.UUID, ev Evidence) (*Submission, error)
	Transition(ctx context.Context, submissionID uuid.UUID, target State, rc ReviewContext) (*TransitionResult, error)
	Expire(ctx context.Context, submissionID uuid.UUID) (*TransitionResult, error)
	FindExpirable(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	GetTaskProofState(ctx context.Context, taskID uuid.UUID) (*Submission, error)
	HasAcceptedProof(ctx context.Context, taskID uuid.UUID) (bool, error)
	AuditTrail(ctx context.Context, submissionID uuid.UUID) ([]*LogEntry, error)
}

// Store is the persistence boundary the engine writes through. It is
// satisfied by *Repository; tests provide an in-memory implementation.
type Store interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	InsertTx(ctx context.Context, tx pgx.Tx, s *Submission) error
	GetByID(ctx context.Context, id uuid.UUID) (*Submission, error)
	GetForUpdateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*Submission, error)
	UpdateStateTx(ctx context.Context, tx pgx.Tx, id uuid.UUID, to State, rc ReviewContext, reviewedAt time.Time) error
	AppendLogTx(ctx context.Context, tx pgx.Tx, e *LogEntry) error
	ActiveByTask(ctx context.Context, taskID uuid.UUID) (*Submission, error)
	LatestByTask(ctx context.Context, taskID uuid.UUID) (*Submission, error)
	CountAccepted(ctx context.Context, taskID uuid.UUID) (int, error)
	FindExpirable(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	ListLog(ctx context.Context, submissionID uuid.UUID) ([]*LogEntry, error)
}

var _ Store = (*Repository)(nil)

// EnqueueNotifyTxFunc enqueues a lifecycle webhook within the given
// transaction. Provided by main using river.Client.InsertTx; may be nil
// when notifications are disabled.
type EnqueueNotifyTxFunc func(ctx context.Context, tx pgx.Tx, args notify.ProofEventArgs) error

type engine struct {
	store         Store
	enqueueNotify EnqueueNotifyTxFunc
	log           *slog.Logger
	now           func() time.Time
}

// NewEngine creates the proof lifecycle engine. The engine is stateless;
// all cross-request coordination lives in the store, so any number of
// instances may run concurrently.
func NewEngine(store Store, enqueueNotify EnqueueNotifyTxFunc, log *slog.Logger) *engine {
	if log == nil {
		log = slog.Default()
	}
	return &engine{store: store, enqueueNotify: enqueueNotify, log: log, now: time.Now}
}

var _ Service = (*engine)(nil)

// submitContext is the audit context blob for the initial PENDING entry.
type submitContext struct {
	WorkerID    uuid.UUID   `json:"worker_id"`
	QualityTier QualityTier `json:"quality_tier"`
}

// Submit persists a new PENDING submission with a fixed review window.
// At most one PENDING/REVIEWING/ACCEPTED submission may exist per task;
// the check is backed by a partial unique index in the store, so the
// pre-read here only serves the friendly error message and the race is
// still closed under concurrent submits.
func (e *engine) Submit(ctx context.Context, taskID, workerID uuid.UUID, ev Evidence) (*Submission, error) {
	active, err := e.store.ActiveByTask(ctx, taskID)
	if err != nil {
		e.log.Error("proof submit: active lookup failed", "task_id", taskID, "error", err)
		return nil, storeErr("active lookup", err)
	}
	if active != nil {
		e.log.Info("proof submit blocked", "task_id", taskID, "blocking_id", active.ID, "blocking_state", active.State)
		return nil, &ConflictError{BlockingID: active.ID, State: active.State}
	}

	now := e.now()
	s := &Submission{
		ID:             uuid.New(),
		TaskID:         taskID,
		WorkerID:       workerID,
		State:          StatePending,
		Description:    ev.Description,
		PhotoURLs:      ev.PhotoURLs,
		HasBeforeAfter: ev.HasBeforeAfter,
		QualityTier:    Classify(ev),
		ExpiresAt:      now.Add(ReviewWindow),
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	if err := e.store.InsertTx(ctx, tx, s); err != nil {
		if IsActiveConflict(err) {
			// Lost a concurrent submit race; re-read for the blocking id.
			if active, lookupErr := e.store.ActiveByTask(ctx, taskID); lookupErr == nil && active != nil {
				return nil, &ConflictError{BlockingID: active.ID, State: active.State}
			}
			return nil, &ConflictError{State: StatePending}
		}
		e.log.Error("proof submit: insert failed", "task_id", taskID, "error", err)
		return nil, storeErr("insert", err)
	}

	entry := &LogEntry{
		ID:           uuid.New(),
		SubmissionID: s.ID,
		TaskID:       taskID,
		ToState:      StatePending,
		Context:      mustJSON(submitContext{WorkerID: workerID, QualityTier: s.QualityTier}),
	}
	if err := e.store.AppendLogTx(ctx, tx, entry); err != nil {
		e.log.Error("proof submit: log append failed", "submission_id", s.ID, "error", err)
		return nil, storeErr("append log", err)
	}

	if e.enqueueNotify != nil {
		args := notify.ProofEventArgs{
			SubmissionID: s.ID,
			TaskID:       taskID,
			WorkerID:     workerID,
			Event:        notify.EventSubmitted,
		}
		if err := e.enqueueNotify(ctx, tx, args); err != nil {
			e.log.Error("proof submit: notify enqueue failed", "submission_id", s.ID, "error", err)
			return nil, storeErr("enqueue notify", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	e.log.Info("proof submitted", "submission_id", s.ID, "task_id", taskID, "quality_tier", s.QualityTier)
	return s, nil
}

// Transition applies one legal state change. The row update and the log
// append happen in one transaction, so no reachable state is ever
// un-audited. The row is locked for the duration, which serialises
// concurrent reviewer decisions on the same submission.
func (e *engine) Transition(ctx context.Context, submissionID uuid.UUID, target State, rc ReviewContext) (*TransitionResult, error) {
	cur, err := e.store.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		e.log.Error("proof transition: lookup failed", "submission_id", submissionID, "error", err)
		return nil, storeErr("lookup", err)
	}
	if refusal := checkTransition(cur, target, rc); refusal != nil {
		e.log.Info("proof transition refused", "submission_id", submissionID, "from", cur.State, "to", target, "error", refusal)
		return nil, refusal
	}

	tx, err := e.store.Begin(ctx)
	if err != nil {
		return nil, storeErr("begin", err)
	}
	defer tx.Rollback(ctx)

	locked, err := e.store.GetForUpdateTx(ctx, tx, submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, storeErr("lock", err)
	}
	// Re-check under the lock: a concurrent transition may have landed
	// between the read above and here.
	if refusal := checkTransition(locked, target, rc); refusal != nil {
		e.log.Info("proof transition refused under lock", "submission_id", submissionID, "from", locked.State, "to", target)
		return nil, refusal
	}

	now := e.now()
	if err := e.store.UpdateStateTx(ctx, tx, submissionID, target, rc, now); err != nil {
		e.log.Error("proof transition: update failed", "submission_id", submissionID, "from", locked.State, "to", target, "error", err)
		return nil, storeErr("update", err)
	}
	from := locked.State
	entry := &LogEntry{
		ID:           uuid.New(),
		SubmissionID: submissionID,
		TaskID:       locked.TaskID,
		FromState:    &from,
		ToState:      target,
		Context:      mustJSON(rc),
	}
	if err := e.store.AppendLogTx(ctx, tx, entry); err != nil {
		e.log.Error("proof transition: log append failed", "submission_id", submissionID, "error", err)
		return nil, storeErr("append log", err)
	}

	if e.enqueueNotify != nil {
		if event, ok := notifyEvent(target); ok {
			args := notify.ProofEventArgs{
				SubmissionID: submissionID,
				TaskID:       locked.TaskID,
				WorkerID:     locked.WorkerID,
				Event:        event,
				Reason:       rc.RejectReason,
			}
			if err := e.enqueueNotify(ctx, tx, args); err != nil {
				e.log.Error("proof transition: notify enqueue failed", "submission_id", submissionID, "error", err)
				return nil, storeErr("enqueue notify", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, storeErr("commit", err)
	}
	e.log.Info("proof transitioned", "submission_id", submissionID, "from", from, "to", target)
	return &TransitionResult{SubmissionID: submissionID, TaskID: locked.TaskID, From: from, To: target}, nil
}

// checkTransition returns the business refusal for an illegal move, or
// nil when the move is allowed.
func checkTransition(cur *Submission, target State, rc ReviewContext) error {
	if !CanTransition(cur.State, target) {
		return &TransitionError{SubmissionID: cur.ID, From: cur.State, To: target}
	}
	if target == StateRejected && rc.RejectReason == "" {
		return &TransitionError{SubmissionID: cur.ID, From: cur.State, To: target, Reason: "rejection requires a reason"}
	}
	return nil
}

// notifyEvent maps a target state to its webhook event, if any.
func notifyEvent(target State) (string, bool) {
	switch target {
	case StateAccepted:
		return notify.EventAccepted, true
	case StateRejected:
		return notify.EventRejected, true
	case StateExpired:
		return notify.EventExpired, true
	default:
		return "", false
	}
}

// Expire moves a submission whose review window elapsed to EXPIRED. The
// engine runs no timer of its own; an external sweep calls this once
// FindExpirable reports the id.
func (e *engine) Expire(ctx context.Context, submissionID uuid.UUID) (*TransitionResult, error) {
	return e.Transition(ctx, submissionID, StateExpired, ReviewContext{})
}

func (e *engine) FindExpirable(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	ids, err := e.store.FindExpirable(ctx, now)
	if err != nil {
		return nil, storeErr("find expirable", err)
	}
	return ids, nil
}

// GetTaskProofState returns the task's most recent submission, or nil
// if the task has never had one.
func (e *engine) GetTaskProofState(ctx context.Context, taskID uuid.UUID) (*Submission, error) {
	s, err := e.store.LatestByTask(ctx, taskID)
	if err != nil {
		return nil, storeErr("latest by task", err)
	}
	return s, nil
}

// HasAcceptedProof reports whether the task has exactly one ACCEPTED
// submission. This is the sole authorization signal for escrow release.
func (e *engine) HasAcceptedProof(ctx context.Context, taskID uuid.UUID) (bool, error) {
	n, err := e.store.CountAccepted(ctx, taskID)
	if err != nil {
		return false, storeErr("count accepted", err)
	}
	return n == 1, nil
}

// AuditTrail returns the submission's transition log in append order.
func (e *engine) AuditTrail(ctx context.Context, submissionID uuid.UUID) ([]*LogEntry, error) {
	entries, err := e.store.ListLog(ctx, submissionID)
	if err != nil {
		return nil, storeErr("list log", err)
	}
	return entries, nil
}

func mustJSON(v any) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage(`{}`)
	}
	return b
}
