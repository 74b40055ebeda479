package proof

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chorely/backend/internal/middleware"
	"github.com/chorely/backend/internal/models"
)

// EvidenceValidator validates the raw evidence payload before it
// reaches the engine. Satisfied by services.Validator.
type EvidenceValidator interface {
	ValidateEvidence(ctx context.Context, evidence json.RawMessage) error
}

// SubmissionRouter routes a fresh submission to automated or human
// review. Satisfied by review.Dispatcher.
type SubmissionRouter interface {
	Route(ctx context.Context, sub *Submission) error
}

// ReviewerLookup resolves the reviewer profile for an authenticated
// account.
type ReviewerLookup interface {
	GetByAccountID(ctx context.Context, accountID uuid.UUID) (*models.Reviewer, error)
}

// Handler serves the /v1 proof endpoints.
type Handler struct {
	Engine    Service
	Validator EvidenceValidator
	Router    SubmissionRouter
	Reviewers ReviewerLookup
	Logger    *slog.Logger
}

func NewHandler(engine Service, validator EvidenceValidator, router SubmissionRouter, reviewers ReviewerLookup, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{Engine: engine, Validator: validator, Router: router, Reviewers: reviewers, Logger: logger}
}

// Request/response structs use snake_case JSON.

type submitRequest struct {
	TaskID         string   `json:"task_id"`
	Description    string   `json:"description"`
	PhotoURLs      []string `json:"photo_urls"`
	HasBeforeAfter bool     `json:"has_before_after"`
}

type submitResponse struct {
	SubmissionID string    `json:"submission_id"`
	State        State     `json:"state"`
	QualityTier  string    `json:"quality_tier"`
	ExpiresAt    time.Time `json:"expires_at"`
}

type conflictResponse struct {
	Error      string `json:"error"`
	BlockingID string `json:"blocking_submission_id,omitempty"`
}

// Submit handles POST /v1/proofs. The caller is the authenticated
// worker; evidence is validated here, the invariant checks live in the
// engine.
func (h *Handler) Submit(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	var req submitRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	taskID, err := uuid.Parse(req.TaskID)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task_id")
		return
	}
	if h.Validator != nil {
		if err := h.Validator.ValidateEvidence(r.Context(), body); err != nil {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": err.Error()})
			return
		}
	}

	sub, err := h.Engine.Submit(r.Context(), taskID, acc.ID, Evidence{
		Description:    req.Description,
		PhotoURLs:      req.PhotoURLs,
		HasBeforeAfter: req.HasBeforeAfter,
	})
	if err != nil {
		var conflict *ConflictError
		switch {
		case errors.Is(err, ErrAlreadyAccepted):
			resp := conflictResponse{Error: "this task already has an accepted proof"}
			if errors.As(err, &conflict) {
				resp.BlockingID = conflict.BlockingID.String()
			}
			writeJSON(w, http.StatusConflict, resp)
		case errors.Is(err, ErrReviewInProgress):
			resp := conflictResponse{Error: "this task already has a proof under review"}
			if errors.As(err, &conflict) {
				resp.BlockingID = conflict.BlockingID.String()
			}
			writeJSON(w, http.StatusConflict, resp)
		default:
			h.Logger.Error("proof submit failed", "task_id", taskID, "error", err)
			writeError(w, http.StatusInternalServerError, "submit failed")
		}
		return
	}

	// Routing is best effort; a failure leaves the submission PENDING.
	if h.Router != nil {
		if routeErr := h.Router.Route(r.Context(), sub); routeErr != nil {
			h.Logger.Error("review routing failed", "submission_id", sub.ID, "error", routeErr)
		}
	}
	if refreshed, err := h.Engine.GetTaskProofState(r.Context(), taskID); err == nil && refreshed != nil && refreshed.ID == sub.ID {
		sub = refreshed
	}

	writeJSON(w, http.StatusCreated, submitResponse{
		SubmissionID: sub.ID.String(),
		State:        sub.State,
		QualityTier:  string(sub.QualityTier),
		ExpiresAt:    sub.ExpiresAt,
	})
}

type reviewRequest struct {
	TargetState     State    `json:"target_state"`
	RejectionReason string   `json:"rejection_reason"`
	AIScore         *float64 `json:"ai_score"`
}

type reviewResponse struct {
	SubmissionID  string `json:"submission_id"`
	PreviousState State  `json:"previous_state"`
	State         State  `json:"state"`
}

// Review handles POST /v1/proofs/{id}/review. Restricted to reviewer
// accounts by middleware; the reviewer's profile id is recorded in the
// transition context.
func (h *Handler) Review(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		writeError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	submissionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid submission id")
		return
	}
	var req reviewRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if !req.TargetState.Valid() {
		writeError(w, http.StatusBadRequest, "unknown target_state")
		return
	}

	rc := ReviewContext{AIScore: req.AIScore, RejectReason: req.RejectionReason}
	if reviewer, err := h.Reviewers.GetByAccountID(r.Context(), acc.ID); err == nil && reviewer != nil {
		rc.ReviewerID = &reviewer.ID
	}

	result, err := h.Engine.Transition(r.Context(), submissionID, req.TargetState, rc)
	if err != nil {
		switch {
		case errors.Is(err, ErrNotFound):
			writeError(w, http.StatusNotFound, "submission not found")
		case errors.Is(err, ErrInvalidTransition):
			writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
		default:
			h.Logger.Error("proof review failed", "submission_id", submissionID, "target", req.TargetState, "error", err)
			writeError(w, http.StatusInternalServerError, "review failed")
		}
		return
	}

	writeJSON(w, http.StatusOK, reviewResponse{
		SubmissionID:  result.SubmissionID.String(),
		PreviousState: result.From,
		State:         result.To,
	})
}

// GetTaskProof handles GET /v1/tasks/{taskID}/proof: the most recent
// submission for the task, if any.
func (h *Handler) GetTaskProof(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("taskID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid task id")
		return
	}
	sub, err := h.Engine.GetTaskProofState(r.Context(), taskID)
	if err != nil {
		h.Logger.Error("get task proof failed", "task_id", taskID, "error", err)
		writeError(w, http.StatusInternalServerError, "lookup failed")
		return
	}
	if sub == nil {
		writeError(w, http.StatusNotFound, "no proof submitted for this task")
		return
	}
	writeJSON(w, http.StatusOK, sub)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
