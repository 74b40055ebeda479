package router

import (
	"net/http"

	"github.com/chorely/backend/internal/auth"
	"github.com/chorely/backend/internal/dashboard"
	"github.com/chorely/backend/internal/registry"
)

// New returns an http.Handler that serves the dashboard API under
// /api/v1. These endpoints authenticate with JWTs; the machine-facing
// /v1 surface uses API keys and is registered separately.
func New(authHandler *auth.Handler, registryHandler *registry.Handler, dashHandler *dashboard.Handler) http.Handler {
	mux := http.NewServeMux()
	base := "/api/v1"

	mux.HandleFunc("POST "+base+"/auth/register", authHandler.Register)
	mux.HandleFunc("POST "+base+"/auth/login", authHandler.Login)

	mux.HandleFunc("POST "+base+"/reviewers", registryHandler.RegisterReviewer)
	mux.HandleFunc("GET "+base+"/reviewers", registryHandler.ListReviewers)
	mux.HandleFunc("PUT "+base+"/reviewers/availability", registryHandler.SetAvailability)

	mux.HandleFunc("GET "+base+"/account/me", dashHandler.GetMe)
	mux.HandleFunc("PATCH "+base+"/account/settings", dashHandler.UpdateSettings)
	mux.HandleFunc("GET "+base+"/credit-ledger", dashHandler.ListCreditLedger)
	mux.HandleFunc("GET "+base+"/tasks", dashHandler.ListTasks)
	mux.HandleFunc("GET "+base+"/proofs/{id}/audit", dashHandler.ProofAuditTrail)

	mux.HandleFunc("GET "+base+"/api-keys", dashHandler.ListAPIKeys)
	mux.HandleFunc("POST "+base+"/api-keys", dashHandler.CreateAPIKey)
	mux.HandleFunc("DELETE "+base+"/api-keys/{id}", dashHandler.DeleteAPIKey)

	return mux
}
