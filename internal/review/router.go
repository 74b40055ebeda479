package review

import (
	"context"

	"github.com/chorely/backend/internal/models"
	"github.com/chorely/backend/internal/proof"
	"github.com/chorely/backend/internal/repository"
)

// ReviewerSource is the minimal reviewer repository interface required
// for routing.
type ReviewerSource interface {
	FindAvailable(ctx context.Context, tier string) ([]*repository.ReviewerLoad, error)
}

// Router picks a human reviewer for a submission based on its quality
// tier and reviewer workload.
type Router struct {
	Reviewers ReviewerSource
}

func NewRouter(reviewers ReviewerSource) *Router {
	return &Router{Reviewers: reviewers}
}

// FindBestReviewer returns the least-loaded online reviewer whose
// specialties cover the tier, or nil when nobody is available. A nil
// result is not an error; the submission simply stays PENDING until a
// reviewer claims it or the window expires.
func (r *Router) FindBestReviewer(ctx context.Context, tier proof.QualityTier) (*models.Reviewer, error) {
	candidates, err := r.Reviewers.FindAvailable(ctx, string(tier))
	if err != nil {
		return nil, err
	}
	if len(candidates) == 0 {
		return nil, nil
	}
	// FindAvailable orders least loaded first.
	best := candidates[0].Reviewer
	return &best, nil
}
