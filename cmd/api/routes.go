package main

import (
	"log/slog"
	"net/http"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/chorely/backend/internal/handlers"
	"github.com/chorely/backend/internal/ledger"
	"github.com/chorely/backend/internal/middleware"
	"github.com/chorely/backend/internal/models"
	"github.com/chorely/backend/internal/proof"
	"github.com/chorely/backend/internal/repository"
	"github.com/chorely/backend/internal/review"
	"github.com/chorely/backend/internal/services"
)

// RegisterV1Routes adds the machine-facing /v1/ endpoints to the mux.
// Middleware chain: APIKeyAuth -> RequireRole -> handler.
func RegisterV1Routes(
	mux *http.ServeMux,
	pool *pgxpool.Pool,
	apiKeyRepo *repository.APIKeyRepo,
	taskRepo *repository.TaskRepo,
	reviewerRepo *repository.ReviewerRepo,
	engine proof.Service,
	escrow *ledger.Service,
	validator *services.Validator,
	logger *slog.Logger,
) {
	reviewRouter := review.NewRouter(reviewerRepo)
	dispatcher := review.NewDispatcher(engine, reviewRouter, logger)

	// A typed nil in the interface field would still be non-nil; only
	// wire the validator when it actually initialised.
	var evidenceValidator proof.EvidenceValidator
	if validator != nil {
		evidenceValidator = validator
	}
	ph := proof.NewHandler(engine, evidenceValidator, dispatcher, reviewerRepo, logger)
	th := &handlers.TaskHandler{
		Pool:     pool,
		TaskRepo: taskRepo,
		Escrow:   escrow,
		Logger:   logger,
	}

	auth := middleware.APIKeyAuth(apiKeyRepo)
	requester := middleware.RequireRole(models.RoleRequester)
	worker := middleware.RequireRole(models.RoleWorker)
	reviewer := middleware.RequireRole(models.RoleReviewer)

	mux.Handle("POST /v1/tasks", auth(requester(http.HandlerFunc(th.CreateTask))))
	mux.Handle("GET /v1/tasks/{id}", auth(http.HandlerFunc(th.GetTask)))
	mux.Handle("POST /v1/tasks/{id}/claim", auth(worker(http.HandlerFunc(th.ClaimTask))))
	mux.Handle("POST /v1/tasks/{id}/complete", auth(requester(http.HandlerFunc(th.CompleteTask))))
	mux.Handle("POST /v1/tasks/{id}/cancel", auth(requester(http.HandlerFunc(th.CancelTask))))

	mux.Handle("POST /v1/proofs", auth(worker(http.HandlerFunc(ph.Submit))))
	mux.Handle("POST /v1/proofs/{id}/review", auth(reviewer(http.HandlerFunc(ph.Review))))
	mux.Handle("GET /v1/tasks/{taskID}/proof", auth(http.HandlerFunc(ph.GetTaskProof)))
}
