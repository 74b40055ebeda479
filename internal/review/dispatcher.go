package review

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/google/uuid"

	"github.com/chorely/backend/internal/proof"
)

// Automated review thresholds. A score at or above AutoAcceptThreshold
// accepts without human review; below AutoRejectThreshold rejects with
// a stated reason; everything between goes to a human reviewer.
const (
	AutoAcceptThreshold = 0.95
	AutoRejectThreshold = 0.40
)

// autoRejectReason is recorded on automated rejections so the worker
// always sees why, same as a human rejection.
const autoRejectReason = "evidence did not meet the automated quality bar"

// TransitionEngine is the subset of the proof lifecycle engine the
// dispatcher drives. Every move still goes through the engine; the
// dispatcher never touches the store.
type TransitionEngine interface {
	Transition(ctx context.Context, submissionID uuid.UUID, target proof.State, rc proof.ReviewContext) (*proof.TransitionResult, error)
}

// Dispatcher routes a fresh submission: scores it, auto-decides clear
// cases, and hands the rest to the least-loaded human reviewer.
type Dispatcher struct {
	Engine TransitionEngine
	Router *Router
	Logger *slog.Logger
}

func NewDispatcher(engine TransitionEngine, router *Router, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{Engine: engine, Router: router, Logger: logger}
}

// Score computes a heuristic confidence score in [0, 1] from the
// evidence package. It is deliberately cheap and deterministic; richer
// signals would slot in here without changing the routing contract.
func Score(ev proof.Evidence) float64 {
	score := 0.2
	if len(ev.PhotoURLs) >= 1 {
		score += 0.25
	}
	if len(ev.PhotoURLs) >= 2 {
		score += 0.15
	}
	if len(ev.Description) > 50 {
		score += 0.2
	}
	if ev.HasBeforeAfter {
		score += 0.2
	}
	if score > 1 {
		score = 1
	}
	return score
}

// Route runs after a successful submit. It is best effort: any failure
// here leaves the submission PENDING, never un-submits it.
func (d *Dispatcher) Route(ctx context.Context, sub *proof.Submission) error {
	score := Score(proof.Evidence{
		Description:    sub.Description,
		PhotoURLs:      sub.PhotoURLs,
		HasBeforeAfter: sub.HasBeforeAfter,
	})

	switch {
	case score >= AutoAcceptThreshold:
		_, err := d.Engine.Transition(ctx, sub.ID, proof.StateAccepted, proof.ReviewContext{AIScore: &score})
		if err != nil {
			return fmt.Errorf("auto-accept: %w", err)
		}
		d.Logger.Info("proof auto-accepted", "submission_id", sub.ID, "score", score)
		return nil

	case score < AutoRejectThreshold:
		_, err := d.Engine.Transition(ctx, sub.ID, proof.StateRejected, proof.ReviewContext{
			AIScore:      &score,
			RejectReason: autoRejectReason,
		})
		if err != nil {
			return fmt.Errorf("auto-reject: %w", err)
		}
		d.Logger.Info("proof auto-rejected", "submission_id", sub.ID, "score", score)
		return nil

	default:
		reviewer, err := d.Router.FindBestReviewer(ctx, sub.QualityTier)
		if err != nil {
			return fmt.Errorf("find reviewer: %w", err)
		}
		if reviewer == nil {
			d.Logger.Info("no reviewer available, leaving pending", "submission_id", sub.ID, "tier", sub.QualityTier)
			return nil
		}
		_, err = d.Engine.Transition(ctx, sub.ID, proof.StateReviewing, proof.ReviewContext{
			ReviewerID: &reviewer.ID,
			AIScore:    &score,
		})
		if err != nil {
			return fmt.Errorf("assign reviewer: %w", err)
		}
		d.Logger.Info("proof assigned for review", "submission_id", sub.ID, "reviewer_id", reviewer.ID)
		return nil
	}
}
