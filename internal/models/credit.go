package models

import (
	"time"

	"github.com/google/uuid"
)

// Credit ledger entry types. escrow_lock is written when a task is
// funded; task_earning, platform_fee and escrow_release are written at
// settlement; refund when an unproven task is cancelled or expires.
const (
	CreditEntryEscrowLock    = "escrow_lock"
	CreditEntryEscrowRelease = "escrow_release"
	CreditEntryTaskEarning   = "task_earning"
	CreditEntryPlatformFee   = "platform_fee"
	CreditEntryRefund        = "refund"
)

type CreditLedger struct {
	ID           uuid.UUID  `json:"id"`
	AccountID    uuid.UUID  `json:"account_id"`
	TaskID       *uuid.UUID `json:"task_id,omitempty"`
	EntryType    string     `json:"entry_type"`
	Amount       int        `json:"amount"`
	BalanceAfter *int       `json:"balance_after,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}
