package registry

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/chorely/backend/internal/auth"
	"github.com/chorely/backend/internal/models"
)

// Request/response structs use snake_case JSON.

type RegisterReviewerRequest struct {
	Specialties    []string `json:"specialties"`
	MaxOpenReviews int      `json:"max_open_reviews"`
}

type SetAvailabilityRequest struct {
	Availability string `json:"availability"`
}

type ReviewerResponse struct {
	ID             string   `json:"id"`
	AccountID      string   `json:"account_id"`
	Specialties    []string `json:"specialties"`
	Availability   string   `json:"availability"`
	MaxOpenReviews int      `json:"max_open_reviews"`
}

type Handler struct {
	svc     Service
	authSvc auth.Service
	log     *slog.Logger
}

func NewHandler(svc Service, authSvc auth.Service, log *slog.Logger) *Handler {
	if log == nil {
		log = slog.Default()
	}
	return &Handler{svc: svc, authSvc: authSvc, log: log}
}

func (h *Handler) RegisterReviewer(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, role, err := h.identityFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleReviewer {
		http.Error(w, "reviewer role required", http.StatusForbidden)
		return
	}
	var req RegisterReviewerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	if len(req.Specialties) == 0 {
		http.Error(w, "missing required fields", http.StatusBadRequest)
		return
	}
	rv, err := h.svc.RegisterReviewer(r.Context(), accountID, req.Specialties, req.MaxOpenReviews)
	if err != nil {
		if errors.Is(err, ErrUnknownSpecialty) {
			http.Error(w, "unknown specialty tier", http.StatusBadRequest)
			return
		}
		if errors.Is(err, ErrAlreadyRegistered) {
			http.Error(w, "reviewer profile already exists", http.StatusConflict)
			return
		}
		h.log.Error("register reviewer failed", "error", err)
		http.Error(w, "register reviewer failed", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	_ = json.NewEncoder(w).Encode(reviewerToResponse(rv))
}

func (h *Handler) ListReviewers(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	list, err := h.svc.ListReviewers(r.Context())
	if err != nil {
		h.log.Error("list reviewers failed", "error", err)
		http.Error(w, "list reviewers failed", http.StatusInternalServerError)
		return
	}
	resp := make([]ReviewerResponse, 0, len(list))
	for _, rv := range list {
		resp = append(resp, reviewerToResponse(rv))
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(resp)
}

func (h *Handler) SetAvailability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPut {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	accountID, role, err := h.identityFromRequest(r)
	if err != nil || accountID == uuid.Nil {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	if role != models.RoleReviewer {
		http.Error(w, "reviewer role required", http.StatusForbidden)
		return
	}
	var req SetAvailabilityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON", http.StatusBadRequest)
		return
	}
	rv, err := h.svc.SetAvailability(r.Context(), accountID, req.Availability)
	if err != nil {
		h.log.Error("set availability failed", "error", err)
		http.Error(w, "set availability failed", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(reviewerToResponse(rv))
}

func (h *Handler) identityFromRequest(r *http.Request) (uuid.UUID, string, error) {
	authz := r.Header.Get("Authorization")
	if authz == "" {
		return uuid.Nil, "", nil
	}
	const prefix = "Bearer "
	if !strings.HasPrefix(authz, prefix) {
		return uuid.Nil, "", nil
	}
	token := strings.TrimSpace(authz[len(prefix):])
	if token == "" {
		return uuid.Nil, "", nil
	}
	return h.authSvc.ValidateToken(r.Context(), token)
}

func reviewerToResponse(rv *models.Reviewer) ReviewerResponse {
	return ReviewerResponse{
		ID:             rv.ID.String(),
		AccountID:      rv.AccountID.String(),
		Specialties:    rv.Specialties,
		Availability:   rv.Availability,
		MaxOpenReviews: rv.MaxOpenReviews,
	}
}
