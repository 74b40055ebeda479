package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/riverqueue/river"
)

// Lifecycle events announced to the notification collaborator.
const (
	EventSubmitted = "proof.submitted"
	EventAccepted  = "proof.accepted"
	EventRejected  = "proof.rejected"
	EventExpired   = "proof.expired"
)

// ProofEventArgs is the river job payload for one lifecycle webhook.
// Jobs are enqueued in the same transaction as the transition they
// announce, so a committed transition is never silently unannounced.
type ProofEventArgs struct {
	SubmissionID uuid.UUID `json:"submission_id"`
	TaskID       uuid.UUID `json:"task_id"`
	WorkerID     uuid.UUID `json:"worker_id"`
	Event        string    `json:"event"`
	Reason       string    `json:"reason,omitempty"`
}

func (ProofEventArgs) Kind() string { return "proof_event" }

// ProofEventWorker delivers lifecycle webhooks to the configured
// endpoint. Delivery failures are returned to river, which retries with
// backoff; the proof state itself is unaffected.
type ProofEventWorker struct {
	river.WorkerDefaults[ProofEventArgs]
	webhookURL string
	httpClient *http.Client
	log        *slog.Logger
}

func NewProofEventWorker(webhookURL string, log *slog.Logger) *ProofEventWorker {
	if log == nil {
		log = slog.Default()
	}
	return &ProofEventWorker{
		webhookURL: webhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

func (w *ProofEventWorker) Work(ctx context.Context, job *river.Job[ProofEventArgs]) error {
	args := job.Args

	body, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("marshal proof event: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build notify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("deliver proof event %s: %w", args.Event, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification endpoint returned status %d for %s", resp.StatusCode, args.Event)
	}
	w.log.Info("proof event delivered", "event", args.Event, "submission_id", args.SubmissionID)
	return nil
}
