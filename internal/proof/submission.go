package proof

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// ReviewWindow is the fixed period after submission during which a
// proof may be reviewed. It is stamped onto the row at submit time and
// never renewed or extended.
const ReviewWindow = 24 * time.Hour

// Submission is one worker's evidence package for one task. Rows are
// never physically deleted; rejected and expired rows stay in history.
type Submission struct {
	ID             uuid.UUID   `json:"id"`
	TaskID         uuid.UUID   `json:"task_id"`
	WorkerID       uuid.UUID   `json:"worker_id"`
	State          State       `json:"state"`
	Description    string      `json:"description"`
	PhotoURLs      []string    `json:"photo_urls"`
	HasBeforeAfter bool        `json:"has_before_after"`
	QualityTier    QualityTier `json:"quality_tier"`
	CreatedAt      time.Time   `json:"created_at"`
	ExpiresAt      time.Time   `json:"expires_at"`
	ReviewedAt     *time.Time  `json:"reviewed_at,omitempty"`
	ReviewerID     *uuid.UUID  `json:"reviewer_id,omitempty"`
	AIScore        *float64    `json:"ai_score,omitempty"`
	RejectReason   *string     `json:"rejection_reason,omitempty"`
}

// ReviewContext carries who or what caused a transition. It is stored
// verbatim in the transition log's context column.
type ReviewContext struct {
	ReviewerID   *uuid.UUID `json:"reviewer_id,omitempty"`
	AIScore      *float64   `json:"ai_score,omitempty"`
	RejectReason string     `json:"rejection_reason,omitempty"`
}

// LogEntry is one append-only audit record per state change. The log is
// the sole source of truth for why a proof is in its current state.
type LogEntry struct {
	ID           uuid.UUID       `json:"id"`
	SubmissionID uuid.UUID       `json:"submission_id"`
	TaskID       uuid.UUID       `json:"task_id"`
	FromState    *State          `json:"from_state,omitempty"` // nil on the initial PENDING insert
	ToState      State           `json:"to_state"`
	Context      json.RawMessage `json:"context,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// TransitionResult reports a successful state change.
type TransitionResult struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	TaskID       uuid.UUID `json:"task_id"`
	From         State     `json:"previous_state"`
	To           State     `json:"state"`
}
