package dashboard

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/chorely/backend/internal/auth"
	"github.com/chorely/backend/internal/models"
	"github.com/chorely/backend/internal/proof"
	"github.com/chorely/backend/internal/repository"
)

type Handler struct {
	authSvc  auth.Service
	accountR *repository.AccountRepo
	creditR  *repository.CreditRepo
	apiKeyR  *repository.APIKeyRepo
	taskR    *repository.TaskRepo
	proofs   proof.Service
	log      *slog.Logger
}

func NewHandler(
	authSvc auth.Service,
	accountR *repository.AccountRepo,
	creditR *repository.CreditRepo,
	apiKeyR *repository.APIKeyRepo,
	taskR *repository.TaskRepo,
	proofs proof.Service,
	log *slog.Logger,
) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{
		authSvc:  authSvc,
		accountR: accountR,
		creditR:  creditR,
		apiKeyR:  apiKeyR,
		taskR:    taskR,
		proofs:   proofs,
		log:      log,
	}
}

func (h *Handler) identityFromRequest(r *http.Request) (uuid.UUID, string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, "", fmt.Errorf("missing authorization")
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, "", fmt.Errorf("bad authorization format")
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, "", fmt.Errorf("empty token")
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// GET /api/v1/account/me
func (h *Handler) GetMe(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	acc, err := h.accountR.GetByID(r.Context(), accountID)
	if err != nil {
		h.log.Error("get account failed", "error", err)
		http.Error(w, "account not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"id":             acc.ID,
		"email":          acc.Email,
		"display_name":   acc.DisplayName,
		"role":           acc.Role,
		"credit_balance": acc.CreditBalance,
		"hold_balance":   acc.HoldBalance,
		"created_at":     acc.CreatedAt,
	})
}

// PATCH /api/v1/account/settings
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var body struct {
		DisplayName *string `json:"display_name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if body.DisplayName == nil || *body.DisplayName == "" {
		http.Error(w, "display_name required", http.StatusBadRequest)
		return
	}
	if err := h.accountR.UpdateProfile(r.Context(), accountID, *body.DisplayName); err != nil {
		h.log.Error("update settings failed", "error", err)
		http.Error(w, "update failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// GET /api/v1/credit-ledger
func (h *Handler) ListCreditLedger(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	entries, err := h.creditR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list credit ledger failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if entries == nil {
		entries = []*models.CreditLedger{}
	}
	writeJSON(w, http.StatusOK, entries)
}

// GET /api/v1/api-keys
func (h *Handler) ListAPIKeys(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	keys, err := h.apiKeyR.ListByAccountID(r.Context(), accountID)
	if err != nil {
		h.log.Error("list api keys failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, keys)
}

// POST /api/v1/api-keys
func (h *Handler) CreateAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	rawBytes := make([]byte, 32)
	if _, err := rand.Read(rawBytes); err != nil {
		http.Error(w, "key generation failed", http.StatusInternalServerError)
		return
	}
	rawKey := "chor_" + hex.EncodeToString(rawBytes)
	hash := sha256.Sum256([]byte(rawKey))
	keyHash := hex.EncodeToString(hash[:])
	keyPrefix := rawKey[:12]

	k := &models.APIKey{
		ID:        uuid.New(),
		AccountID: accountID,
		KeyHash:   keyHash,
		KeyPrefix: keyPrefix,
		IsActive:  true,
	}
	if err := h.apiKeyR.Create(r.Context(), k); err != nil {
		h.log.Error("create api key failed", "error", err)
		http.Error(w, "create failed", http.StatusInternalServerError)
		return
	}
	// The raw key is shown exactly once; only its hash is stored.
	writeJSON(w, http.StatusCreated, map[string]any{
		"id":         k.ID,
		"key_prefix": k.KeyPrefix,
		"is_active":  k.IsActive,
		"raw_key":    rawKey,
	})
}

// DELETE /api/v1/api-keys/{id}
func (h *Handler) DeleteAPIKey(w http.ResponseWriter, r *http.Request) {
	accountID, _, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	keyID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid key ID", http.StatusBadRequest)
		return
	}
	ok, err := h.apiKeyR.Deactivate(r.Context(), keyID, accountID)
	if err != nil {
		h.log.Error("deactivate api key failed", "error", err)
		http.Error(w, "delete failed", http.StatusInternalServerError)
		return
	}
	if !ok {
		http.Error(w, "key not found", http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// TaskView is a task joined with the state of its latest proof, if any.
type TaskView struct {
	Task       *models.Task `json:"task"`
	ProofState *proof.State `json:"proof_state,omitempty"`
	ProofID    *uuid.UUID   `json:"proof_id,omitempty"`
}

// GET /api/v1/tasks
func (h *Handler) ListTasks(w http.ResponseWriter, r *http.Request) {
	accountID, role, err := h.identityFromRequest(r)
	if err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var tasks []*models.Task
	switch role {
	case models.RoleWorker:
		tasks, err = h.taskR.ListByWorker(r.Context(), accountID)
	default:
		tasks, err = h.taskR.ListByRequester(r.Context(), accountID)
	}
	if err != nil {
		h.log.Error("list tasks failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		v := TaskView{Task: t}
		sub, err := h.proofs.GetTaskProofState(r.Context(), t.ID)
		if err != nil {
			h.log.Error("load proof state failed", "task_id", t.ID, "error", err)
		} else if sub != nil {
			v.ProofState = &sub.State
			v.ProofID = &sub.ID
		}
		views = append(views, v)
	}
	writeJSON(w, http.StatusOK, views)
}

// GET /api/v1/proofs/{id}/audit
func (h *Handler) ProofAuditTrail(w http.ResponseWriter, r *http.Request) {
	if _, _, err := h.identityFromRequest(r); err != nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	submissionID, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid submission ID", http.StatusBadRequest)
		return
	}
	entries, err := h.proofs.AuditTrail(r.Context(), submissionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, proof.ErrNotFound) {
			http.Error(w, "submission not found", http.StatusNotFound)
			return
		}
		h.log.Error("load audit trail failed", "error", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	// Every submission writes a log row at submit time, so an empty
	// trail means the id does not exist.
	if len(entries) == 0 {
		http.Error(w, "submission not found", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, entries)
}
