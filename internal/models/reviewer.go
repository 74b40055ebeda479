package models

import (
	"time"

	"github.com/google/uuid"
)

// Reviewer availability.
const (
	ReviewerOnline  = "online"
	ReviewerOffline = "offline"
)

// Reviewer is a human reviewer profile. Specialties lists the quality
// tiers the reviewer handles; routing prefers the least-loaded online
// reviewer whose specialties cover the submission's tier.
type Reviewer struct {
	ID              uuid.UUID `json:"id"`
	AccountID       uuid.UUID `json:"account_id"`
	Specialties     []string  `json:"specialties"`
	Availability    string    `json:"availability"`
	MaxOpenReviews  int       `json:"max_open_reviews"`
	AvgReviewTimeMs *int      `json:"avg_review_time_ms,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}
