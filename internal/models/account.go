package models

import (
	"time"

	"github.com/google/uuid"
)

// Platform-owned system accounts.
var (
	SystemPlatformAccountID = uuid.MustParse("00000000-0000-0000-0000-000000000001")
	SystemEscrowAccountID   = uuid.MustParse("00000000-0000-0000-0000-000000000002")
)

// Account roles. A worker submits proofs; a requester posts and funds
// tasks; a reviewer decides proof outcomes.
const (
	RoleRequester = "requester"
	RoleWorker    = "worker"
	RoleReviewer  = "reviewer"
)

type Account struct {
	ID              uuid.UUID `json:"id"`
	Email           string    `json:"email"`
	DisplayName     string    `json:"display_name"`
	Role            string    `json:"role"`
	PasswordHash    string    `json:"-"`
	CreditBalance   int       `json:"credit_balance"`
	HoldBalance     int       `json:"hold_balance"`
	IsSystemAccount bool      `json:"is_system_account"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
