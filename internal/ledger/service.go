package ledger

import (
	"context"
	"errors"
	"sort"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chorely/backend/internal/models"
)

// ErrInsufficientFunds is returned when the requester's balance is too
// low for the escrow lock.
var ErrInsufficientFunds = errors.New("insufficient funds")

// ErrNoAcceptedProof is returned when a settlement is attempted for a
// task without an accepted proof. Acceptance is the only signal that
// authorizes release; nothing else is trusted.
var ErrNoAcceptedProof = errors.New("task has no accepted proof")

// ErrProofAccepted is returned when a refund is attempted for a task
// whose proof has been accepted. The worker is owed settlement then; a
// refund would strand their earning.
var ErrProofAccepted = errors.New("task has an accepted proof; settle instead of refunding")

// platformFeePercent is the platform's cut of each settled reward.
const platformFeePercent = 10

// AccountRepo is the minimal account repository interface for escrow.
type AccountRepo interface {
	GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*models.Account, error)
	DeductCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
	AddCredits(ctx context.Context, tx pgx.Tx, id uuid.UUID, amount int) (newBalance int, err error)
}

// CreditRepo is the minimal credit ledger interface for escrow.
type CreditRepo interface {
	CreateTx(ctx context.Context, tx pgx.Tx, c *models.CreditLedger) error
}

// ProofGate answers whether a task's proof has been accepted. Satisfied
// by the proof lifecycle engine.
type ProofGate interface {
	HasAcceptedProof(ctx context.Context, taskID uuid.UUID) (bool, error)
}

// Service performs double-entry credit escrow over the accounts and
// credit_ledger tables. Funds release is gated strictly on ProofGate.
type Service struct {
	Accounts AccountRepo
	Credits  CreditRepo
	Gate     ProofGate
}

func NewService(accounts AccountRepo, credits CreditRepo, gate ProofGate) *Service {
	return &Service{Accounts: accounts, Credits: credits, Gate: gate}
}

// LockCredits deducts the task reward from the requester's balance and
// writes an escrow_lock entry. Call within a transaction at task
// funding time.
func (s *Service) LockCredits(ctx context.Context, tx pgx.Tx, requesterID, taskID uuid.UUID, amount int) error {
	acc, err := s.Accounts.GetByIDForUpdate(ctx, tx, requesterID)
	if err != nil {
		return err
	}
	if acc.CreditBalance < amount {
		return ErrInsufficientFunds
	}
	newBalance, err := s.Accounts.DeductCredits(ctx, tx, requesterID, amount)
	if err != nil {
		return err
	}
	return s.Credits.CreateTx(ctx, tx, &models.CreditLedger{
		ID:           uuid.New(),
		AccountID:    requesterID,
		TaskID:       &taskID,
		EntryType:    models.CreditEntryEscrowLock,
		Amount:       amount,
		BalanceAfter: intPtr(newBalance),
	})
}

// SettleAccepted pays out a completed task: worker earning plus platform
// fee, from the escrowed reward. Refused unless the task has exactly one
// accepted proof; the caller cannot override this check.
// Locks all affected accounts in deterministic order to avoid deadlock.
func (s *Service) SettleAccepted(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID, reward int) error {
	ok, err := s.Gate.HasAcceptedProof(ctx, taskID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNoAcceptedProof
	}

	fee := reward * platformFeePercent / 100
	earning := reward - fee

	ids := []uuid.UUID{workerID, models.SystemPlatformAccountID}
	sort.Slice(ids, func(i, j int) bool { return ids[i].String() < ids[j].String() })
	for _, id := range ids {
		if _, err := s.Accounts.GetByIDForUpdate(ctx, tx, id); err != nil {
			return err
		}
	}

	newWorker, err := s.Accounts.AddCredits(ctx, tx, workerID, earning)
	if err != nil {
		return err
	}
	if err := s.Credits.CreateTx(ctx, tx, &models.CreditLedger{
		ID: uuid.New(), AccountID: workerID, TaskID: &taskID,
		EntryType: models.CreditEntryTaskEarning, Amount: earning, BalanceAfter: intPtr(newWorker),
	}); err != nil {
		return err
	}

	newPlatform, err := s.Accounts.AddCredits(ctx, tx, models.SystemPlatformAccountID, fee)
	if err != nil {
		return err
	}
	return s.Credits.CreateTx(ctx, tx, &models.CreditLedger{
		ID: uuid.New(), AccountID: models.SystemPlatformAccountID, TaskID: &taskID,
		EntryType: models.CreditEntryPlatformFee, Amount: fee, BalanceAfter: intPtr(newPlatform),
	})
}

// RefundUnproven returns the escrowed reward to the requester, for
// tasks cancelled or expired without an accepted proof. Refused when an
// accepted proof exists, since the worker is then owed settlement.
func (s *Service) RefundUnproven(ctx context.Context, tx pgx.Tx, taskID, requesterID uuid.UUID, amount int) error {
	ok, err := s.Gate.HasAcceptedProof(ctx, taskID)
	if err != nil {
		return err
	}
	if ok {
		return ErrProofAccepted
	}
	if amount <= 0 {
		return nil
	}
	if _, err := s.Accounts.GetByIDForUpdate(ctx, tx, requesterID); err != nil {
		return err
	}
	newBalance, err := s.Accounts.AddCredits(ctx, tx, requesterID, amount)
	if err != nil {
		return err
	}
	return s.Credits.CreateTx(ctx, tx, &models.CreditLedger{
		ID: uuid.New(), AccountID: requesterID, TaskID: &taskID,
		EntryType: models.CreditEntryRefund, Amount: amount, BalanceAfter: intPtr(newBalance),
	})
}

func intPtr(n int) *int { return &n }
