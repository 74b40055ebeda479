package sweep

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"

	"github.com/chorely/backend/internal/proof"
)

// Interval is how often the periodic sweep job runs. The review window
// itself is fixed per submission; the sweep only discovers rows whose
// window has already elapsed.
const Interval = 5 * time.Minute

type ExpireSweepArgs struct{}

func (ExpireSweepArgs) Kind() string { return "proof_expire_sweep" }

// ProofEngine is the subset of the lifecycle engine the sweep needs.
type ProofEngine interface {
	FindExpirable(ctx context.Context, now time.Time) ([]uuid.UUID, error)
	Expire(ctx context.Context, submissionID uuid.UUID) (*proof.TransitionResult, error)
}

// ExpireSweepWorker moves overdue PENDING/REVIEWING submissions to
// EXPIRED. A submission reviewed between discovery and expiry loses the
// race cleanly: the engine refuses the transition and the sweep moves on.
type ExpireSweepWorker struct {
	river.WorkerDefaults[ExpireSweepArgs]
	engine ProofEngine
	log    *slog.Logger
}

func NewExpireSweepWorker(engine ProofEngine, log *slog.Logger) *ExpireSweepWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ExpireSweepWorker{engine: engine, log: log}
}

func (w *ExpireSweepWorker) Work(ctx context.Context, job *river.Job[ExpireSweepArgs]) error {
	ids, err := w.engine.FindExpirable(ctx, time.Now())
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	var expired, skipped int
	for _, id := range ids {
		if _, err := w.engine.Expire(ctx, id); err != nil {
			if proof.IsStoreError(err) {
				// Transient; leave the row for the next sweep run.
				w.log.Error("expire sweep: store failure", "submission_id", id, "error", err)
				return err
			}
			// A reviewer got there first. Nothing to do.
			skipped++
			continue
		}
		expired++
	}
	w.log.Info("expire sweep finished", "expired", expired, "skipped", skipped)
	return nil
}
