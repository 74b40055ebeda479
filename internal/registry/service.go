package registry

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chorely/backend/internal/models"
	"github.com/chorely/backend/internal/proof"
)

// ErrUnknownSpecialty is returned when a reviewer registers with a
// specialty outside the known quality tiers.
var ErrUnknownSpecialty = errors.New("unknown specialty tier")

// ErrAlreadyRegistered is returned when an account already has a
// reviewer profile.
var ErrAlreadyRegistered = errors.New("account already has a reviewer profile")

// DefaultMaxOpenReviews caps concurrent assignments for reviewers who
// do not state their own limit.
const DefaultMaxOpenReviews = 5

type Service interface {
	RegisterReviewer(ctx context.Context, accountID uuid.UUID, specialties []string, maxOpenReviews int) (*models.Reviewer, error)
	ListReviewers(ctx context.Context) ([]*models.Reviewer, error)
	SetAvailability(ctx context.Context, accountID uuid.UUID, availability string) (*models.Reviewer, error)
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Reviewer, error)
}

// ReviewerStore is the persistence surface the registry needs.
// *repository.ReviewerRepo satisfies it.
type ReviewerStore interface {
	Create(ctx context.Context, rv *models.Reviewer) error
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Reviewer, error)
	UpdateAvailability(ctx context.Context, id uuid.UUID, availability string) error
	List(ctx context.Context) ([]*models.Reviewer, error)
}

type service struct {
	repo ReviewerStore
}

func NewService(repo ReviewerStore) *service {
	return &service{repo: repo}
}

var _ Service = (*service)(nil)

// normalizeSpecialties uppercases and de-duplicates the requested
// tiers so matching against submission quality tiers is exact.
func normalizeSpecialties(specialties []string) ([]string, error) {
	seen := make(map[string]bool, len(specialties))
	out := make([]string, 0, len(specialties))
	for _, s := range specialties {
		tier := strings.ToUpper(strings.TrimSpace(s))
		switch proof.QualityTier(tier) {
		case proof.TierBasic, proof.TierStandard, proof.TierComprehensive:
		default:
			return nil, ErrUnknownSpecialty
		}
		if seen[tier] {
			continue
		}
		seen[tier] = true
		out = append(out, tier)
	}
	if len(out) == 0 {
		return nil, ErrUnknownSpecialty
	}
	return out, nil
}

func (s *service) RegisterReviewer(ctx context.Context, accountID uuid.UUID, specialties []string, maxOpenReviews int) (*models.Reviewer, error) {
	tiers, err := normalizeSpecialties(specialties)
	if err != nil {
		return nil, err
	}
	if existing, err := s.repo.GetByAccountID(ctx, accountID); err == nil && existing != nil {
		return nil, ErrAlreadyRegistered
	}
	if maxOpenReviews <= 0 {
		maxOpenReviews = DefaultMaxOpenReviews
	}
	rv := &models.Reviewer{
		ID:             uuid.New(),
		AccountID:      accountID,
		Specialties:    tiers,
		Availability:   models.ReviewerOffline,
		MaxOpenReviews: maxOpenReviews,
	}
	if err := s.repo.Create(ctx, rv); err != nil {
		// The pre-read is advisory; a concurrent registration lands on
		// the reviewers.account_id unique constraint.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return nil, ErrAlreadyRegistered
		}
		return nil, err
	}
	return rv, nil
}

func (s *service) ListReviewers(ctx context.Context) ([]*models.Reviewer, error) {
	return s.repo.List(ctx)
}

func (s *service) SetAvailability(ctx context.Context, accountID uuid.UUID, availability string) (*models.Reviewer, error) {
	switch availability {
	case models.ReviewerOnline, models.ReviewerOffline:
	default:
		return nil, errors.New("availability must be online or offline")
	}
	rv, err := s.repo.GetByAccountID(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if err := s.repo.UpdateAvailability(ctx, rv.ID, availability); err != nil {
		return nil, err
	}
	rv.Availability = availability
	return rv, nil
}

func (s *service) GetByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Reviewer, error) {
	return s.repo.GetByAccountID(ctx, accountID)
}
