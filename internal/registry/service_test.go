package registry

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chorely/backend/internal/models"
)

type memReviewerStore struct {
	byAccount map[uuid.UUID]*models.Reviewer
}

func newMemReviewerStore() *memReviewerStore {
	return &memReviewerStore{byAccount: make(map[uuid.UUID]*models.Reviewer)}
}

func (m *memReviewerStore) Create(_ context.Context, rv *models.Reviewer) error {
	cp := *rv
	m.byAccount[rv.AccountID] = &cp
	return nil
}

func (m *memReviewerStore) GetByAccountID(_ context.Context, accountID uuid.UUID) (*models.Reviewer, error) {
	rv, ok := m.byAccount[accountID]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	cp := *rv
	return &cp, nil
}

func (m *memReviewerStore) UpdateAvailability(_ context.Context, id uuid.UUID, availability string) error {
	for _, rv := range m.byAccount {
		if rv.ID == id {
			rv.Availability = availability
			return nil
		}
	}
	return pgx.ErrNoRows
}

func (m *memReviewerStore) List(context.Context) ([]*models.Reviewer, error) {
	out := make([]*models.Reviewer, 0, len(m.byAccount))
	for _, rv := range m.byAccount {
		cp := *rv
		out = append(out, &cp)
	}
	return out, nil
}

func TestRegisterReviewer(t *testing.T) {
	t.Run("normalizes specialties", func(t *testing.T) {
		svc := NewService(newMemReviewerStore())

		rv, err := svc.RegisterReviewer(context.Background(), uuid.New(), []string{" basic ", "COMPREHENSIVE", "basic"}, 0)
		if err != nil {
			t.Fatalf("RegisterReviewer: %v", err)
		}
		if len(rv.Specialties) != 2 {
			t.Fatalf("specialties: got %v, want 2 deduplicated tiers", rv.Specialties)
		}
		if rv.Specialties[0] != "BASIC" || rv.Specialties[1] != "COMPREHENSIVE" {
			t.Errorf("specialties: got %v, want [BASIC COMPREHENSIVE]", rv.Specialties)
		}
		if rv.MaxOpenReviews != DefaultMaxOpenReviews {
			t.Errorf("max open reviews: got %d, want default %d", rv.MaxOpenReviews, DefaultMaxOpenReviews)
		}
		// New reviewers start offline and opt in explicitly.
		if rv.Availability != models.ReviewerOffline {
			t.Errorf("availability: got %s, want offline", rv.Availability)
		}
	})

	t.Run("rejects unknown tiers", func(t *testing.T) {
		svc := NewService(newMemReviewerStore())
		cases := [][]string{
			{"PLATINUM"},
			{"basic", "deluxe"},
			{},
		}
		for _, specialties := range cases {
			if _, err := svc.RegisterReviewer(context.Background(), uuid.New(), specialties, 3); !errors.Is(err, ErrUnknownSpecialty) {
				t.Errorf("specialties %v: got %v, want ErrUnknownSpecialty", specialties, err)
			}
		}
	})

	// A concurrent duplicate slips past the pre-read and hits the
	// unique constraint; the caller still sees the typed error.
	t.Run("concurrent duplicate caught by unique constraint", func(t *testing.T) {
		store := &racedReviewerStore{memReviewerStore: newMemReviewerStore()}
		svc := NewService(store)
		accountID := uuid.New()

		if _, err := svc.RegisterReviewer(context.Background(), accountID, []string{"standard"}, 3); !errors.Is(err, ErrAlreadyRegistered) {
			t.Errorf("raced registration: got %v, want ErrAlreadyRegistered", err)
		}
	})

	t.Run("one profile per account", func(t *testing.T) {
		svc := NewService(newMemReviewerStore())
		accountID := uuid.New()

		if _, err := svc.RegisterReviewer(context.Background(), accountID, []string{"standard"}, 3); err != nil {
			t.Fatalf("first registration: %v", err)
		}
		if _, err := svc.RegisterReviewer(context.Background(), accountID, []string{"basic"}, 3); !errors.Is(err, ErrAlreadyRegistered) {
			t.Errorf("second registration: got %v, want ErrAlreadyRegistered", err)
		}
	})
}

// racedReviewerStore simulates a registration that lost an insert race:
// the pre-read sees nothing, the insert violates the account_id unique
// constraint.
type racedReviewerStore struct {
	*memReviewerStore
}

func (r *racedReviewerStore) Create(context.Context, *models.Reviewer) error {
	return &pgconn.PgError{Code: "23505", ConstraintName: "reviewers_account_id_key"}
}

func TestSetAvailability(t *testing.T) {
	store := newMemReviewerStore()
	svc := NewService(store)
	accountID := uuid.New()

	if _, err := svc.RegisterReviewer(context.Background(), accountID, []string{"standard"}, 3); err != nil {
		t.Fatalf("RegisterReviewer: %v", err)
	}

	rv, err := svc.SetAvailability(context.Background(), accountID, models.ReviewerOnline)
	if err != nil {
		t.Fatalf("SetAvailability: %v", err)
	}
	if rv.Availability != models.ReviewerOnline {
		t.Errorf("availability: got %s, want online", rv.Availability)
	}
	stored, _ := store.GetByAccountID(context.Background(), accountID)
	if stored.Availability != models.ReviewerOnline {
		t.Error("availability change should be persisted")
	}

	if _, err := svc.SetAvailability(context.Background(), accountID, "away"); err == nil {
		t.Error("expected error for unknown availability value")
	}
	if _, err := svc.SetAvailability(context.Background(), uuid.New(), models.ReviewerOnline); err == nil {
		t.Error("expected error for unregistered account")
	}
}
