package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chorely/backend/internal/ledger"
	"github.com/chorely/backend/internal/middleware"
	"github.com/chorely/backend/internal/models"
)

// TaskRepoForHandler is the subset of task repository needed by the handler.
type TaskRepoForHandler interface {
	CreateTx(ctx context.Context, tx pgx.Tx, t *models.Task) error
	GetByID(ctx context.Context, id uuid.UUID) (*models.Task, error)
	AssignWorker(ctx context.Context, id, workerID uuid.UUID) (bool, error)
	MarkCompletedTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
	MarkCancelledTx(ctx context.Context, tx pgx.Tx, id uuid.UUID) (bool, error)
}

// TxBeginner abstracts transaction creation so tests don't need a pgxpool.Pool.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// Escrow abstracts the escrow operations needed by the handler.
type Escrow interface {
	LockCredits(ctx context.Context, tx pgx.Tx, requesterID, taskID uuid.UUID, amount int) error
	SettleAccepted(ctx context.Context, tx pgx.Tx, taskID, workerID uuid.UUID, reward int) error
	RefundUnproven(ctx context.Context, tx pgx.Tx, taskID, requesterID uuid.UUID, amount int) error
}

// TaskHandler serves /v1/tasks endpoints.
type TaskHandler struct {
	Pool     TxBeginner
	TaskRepo TaskRepoForHandler
	Escrow   Escrow
	Logger   *slog.Logger
}

// --- POST /v1/tasks ---

type createTaskRequest struct {
	Title         string `json:"title"`
	Description   string `json:"description"`
	RewardCredits int    `json:"reward_credits"`
}

// CreateTask handles POST /v1/tasks.
// Auth (requester role via middleware) -> Lock Credits -> Persist -> 201.
// Funding and task creation commit in one transaction, so an open task
// always has its reward escrowed.
func (h *TaskHandler) CreateTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}

	var req createTaskRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, `{"error":"invalid JSON"}`, http.StatusBadRequest)
		return
	}
	if req.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if req.RewardCredits <= 0 {
		http.Error(w, `{"error":"reward_credits must be > 0"}`, http.StatusBadRequest)
		return
	}

	task := &models.Task{
		ID:            uuid.New(),
		RequesterID:   acc.ID,
		Title:         req.Title,
		Description:   req.Description,
		Status:        models.TaskStatusOpen,
		RewardCredits: req.RewardCredits,
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Escrow.LockCredits(r.Context(), tx, acc.ID, task.ID, task.RewardCredits); err != nil {
		if errors.Is(err, ledger.ErrInsufficientFunds) {
			http.Error(w, `{"error":"insufficient funds"}`, http.StatusPaymentRequired)
			return
		}
		h.Logger.Error("lock credits", "error", err)
		http.Error(w, `{"error":"failed to lock credits"}`, http.StatusInternalServerError)
		return
	}

	if err := h.TaskRepo.CreateTx(r.Context(), tx, task); err != nil {
		h.Logger.Error("create task", "error", err)
		http.Error(w, `{"error":"failed to create task"}`, http.StatusInternalServerError)
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusCreated, task)
}

// --- POST /v1/tasks/{id}/claim ---

// ClaimTask handles POST /v1/tasks/{id}/claim: a worker takes an open task.
func (h *TaskHandler) ClaimTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	claimed, err := h.TaskRepo.AssignWorker(r.Context(), taskID, acc.ID)
	if err != nil {
		h.Logger.Error("claim task", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !claimed {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not open"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"task_id": taskID.String(), "status": models.TaskStatusAssigned})
}

// --- POST /v1/tasks/{id}/complete ---

// CompleteTask handles POST /v1/tasks/{id}/complete.
// Settlement is gated on an accepted proof; the request carries no
// payload because nothing in it could override that gate. Completion
// and payout commit in one transaction.
func (h *TaskHandler) CompleteTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.TaskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if task.RequesterID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "caller is not the requester"})
		return
	}
	if task.Status != models.TaskStatusAssigned {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not completable", "status": task.Status})
		return
	}
	if task.WorkerID == nil {
		h.Logger.Error("assigned task has no worker", "task_id", taskID)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin settle tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Escrow.SettleAccepted(r.Context(), tx, task.ID, *task.WorkerID, task.RewardCredits); err != nil {
		if errors.Is(err, ledger.ErrNoAcceptedProof) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "task has no accepted proof"})
			return
		}
		h.Logger.Error("settle task", "error", err)
		http.Error(w, `{"error":"settlement failed"}`, http.StatusInternalServerError)
		return
	}

	completed, err := h.TaskRepo.MarkCompletedTx(r.Context(), tx, task.ID)
	if err != nil {
		h.Logger.Error("mark completed", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !completed {
		// Someone else completed or cancelled between our read and the lock.
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not completable"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit settle tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"task_id": task.ID.String(), "status": models.TaskStatusCompleted})
}

// --- POST /v1/tasks/{id}/cancel ---

// CancelTask handles POST /v1/tasks/{id}/cancel: the requester pulls an
// unfinished task and gets the escrowed reward back. Refused once a
// proof has been accepted. Refund and cancel commit in one transaction,
// so a refused or failed refund leaves the task in its current status
// and the worker's settlement path intact.
func (h *TaskHandler) CancelTask(w http.ResponseWriter, r *http.Request) {
	acc := middleware.AccountFromCtx(r.Context())
	if acc == nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return
	}
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.TaskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}
	if task.RequesterID != acc.ID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "caller is not the requester"})
		return
	}
	if task.Status == models.TaskStatusCompleted || task.Status == models.TaskStatusCancelled {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is already closed", "status": task.Status})
		return
	}

	tx, err := h.Pool.Begin(r.Context())
	if err != nil {
		h.Logger.Error("begin refund tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	defer tx.Rollback(r.Context())

	if err := h.Escrow.RefundUnproven(r.Context(), tx, task.ID, task.RequesterID, task.RewardCredits); err != nil {
		if errors.Is(err, ledger.ErrProofAccepted) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "task has an accepted proof; complete it instead"})
			return
		}
		h.Logger.Error("refund", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"refund failed"}`, http.StatusInternalServerError)
		return
	}

	cancelled, err := h.TaskRepo.MarkCancelledTx(r.Context(), tx, task.ID)
	if err != nil {
		h.Logger.Error("mark cancelled", "task_id", taskID, "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}
	if !cancelled {
		// Someone completed or cancelled between our read and the update;
		// the rollback takes the refund with it.
		writeJSON(w, http.StatusConflict, map[string]string{"error": "task is not cancellable"})
		return
	}

	if err := tx.Commit(r.Context()); err != nil {
		h.Logger.Error("commit refund tx", "error", err)
		http.Error(w, `{"error":"internal error"}`, http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"task_id": task.ID.String(), "status": models.TaskStatusCancelled})
}

// --- GET /v1/tasks/{id} ---

// GetTask handles GET /v1/tasks/{id}.
func (h *TaskHandler) GetTask(w http.ResponseWriter, r *http.Request) {
	taskID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, `{"error":"invalid task id"}`, http.StatusBadRequest)
		return
	}

	task, err := h.TaskRepo.GetByID(r.Context(), taskID)
	if err != nil {
		http.Error(w, `{"error":"task not found"}`, http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, task)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
