package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/chorely/backend/internal/ledger"
	"github.com/chorely/backend/internal/middleware"
	"github.com/chorely/backend/internal/models"
)

type noopTx struct{}

func (noopTx) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }
func (noopTx) Commit(context.Context) error          { return nil }
func (noopTx) Rollback(context.Context) error        { return nil }
func (noopTx) Exec(context.Context, string, ...any) (pgconn.CommandTag, error) {
	return pgconn.NewCommandTag(""), nil
}
func (noopTx) Query(context.Context, string, ...any) (pgx.Rows, error) { return nil, nil }
func (noopTx) QueryRow(context.Context, string, ...any) pgx.Row        { return nil }
func (noopTx) CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error) {
	return 0, nil
}
func (noopTx) SendBatch(context.Context, *pgx.Batch) pgx.BatchResults { return nil }
func (noopTx) LargeObjects() pgx.LargeObjects                         { return pgx.LargeObjects{} }
func (noopTx) Prepare(context.Context, string, string) (*pgconn.StatementDescription, error) {
	return nil, nil
}
func (noopTx) Conn() *pgx.Conn { return nil }

type mockPool struct{}

func (mockPool) Begin(context.Context) (pgx.Tx, error) { return noopTx{}, nil }

type mockTaskRepo struct {
	tasks map[uuid.UUID]*models.Task

	created      *models.Task
	assignOK     bool
	completeOK   bool
	cancelOK     bool
	cancelCalled int
}

func (m *mockTaskRepo) CreateTx(_ context.Context, _ pgx.Tx, t *models.Task) error {
	m.created = t
	return nil
}

func (m *mockTaskRepo) GetByID(_ context.Context, id uuid.UUID) (*models.Task, error) {
	t, ok := m.tasks[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return t, nil
}

func (m *mockTaskRepo) AssignWorker(_ context.Context, id, workerID uuid.UUID) (bool, error) {
	if !m.assignOK {
		return false, nil
	}
	if t, ok := m.tasks[id]; ok {
		t.Status = models.TaskStatusAssigned
		t.WorkerID = &workerID
	}
	return true, nil
}

func (m *mockTaskRepo) MarkCompletedTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	if !m.completeOK {
		return false, nil
	}
	if t, ok := m.tasks[id]; ok {
		t.Status = models.TaskStatusCompleted
	}
	return true, nil
}

func (m *mockTaskRepo) MarkCancelledTx(_ context.Context, _ pgx.Tx, id uuid.UUID) (bool, error) {
	m.cancelCalled++
	if !m.cancelOK {
		return false, nil
	}
	if t, ok := m.tasks[id]; ok {
		t.Status = models.TaskStatusCancelled
	}
	return true, nil
}

type mockEscrow struct {
	lockErr   error
	settleErr error
	refundErr error

	lockCalled   bool
	settleCalled bool
	refundCalled int
}

func (m *mockEscrow) LockCredits(context.Context, pgx.Tx, uuid.UUID, uuid.UUID, int) error {
	m.lockCalled = true
	return m.lockErr
}

func (m *mockEscrow) SettleAccepted(context.Context, pgx.Tx, uuid.UUID, uuid.UUID, int) error {
	m.settleCalled = true
	return m.settleErr
}

func (m *mockEscrow) RefundUnproven(context.Context, pgx.Tx, uuid.UUID, uuid.UUID, int) error {
	m.refundCalled++
	return m.refundErr
}

func newHandler(repo *mockTaskRepo, escrow *mockEscrow) *TaskHandler {
	return &TaskHandler{
		Pool:     mockPool{},
		TaskRepo: repo,
		Escrow:   escrow,
		Logger:   slog.New(slog.DiscardHandler),
	}
}

func asAccount(r *http.Request, acc *models.Account) *http.Request {
	return r.WithContext(middleware.WithAccount(r.Context(), acc))
}

func TestCreateTask(t *testing.T) {
	requester := &models.Account{ID: uuid.New(), Role: models.RoleRequester}

	t.Run("creates funded open task", func(t *testing.T) {
		repo := &mockTaskRepo{}
		escrow := &mockEscrow{}
		h := newHandler(repo, escrow)

		body := `{"title":"Mow the lawn","description":"front and back","reward_credits":50}`
		req := asAccount(httptest.NewRequest("POST", "/v1/tasks", strings.NewReader(body)), requester)
		rr := httptest.NewRecorder()
		h.CreateTask(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
		}
		if !escrow.lockCalled {
			t.Error("reward must be escrowed at creation")
		}
		if repo.created == nil || repo.created.Status != models.TaskStatusOpen {
			t.Error("task should be persisted as open")
		}
		if repo.created.RequesterID != requester.ID {
			t.Error("task should belong to the authenticated requester")
		}
	})

	t.Run("insufficient funds", func(t *testing.T) {
		repo := &mockTaskRepo{}
		escrow := &mockEscrow{lockErr: ledger.ErrInsufficientFunds}
		h := newHandler(repo, escrow)

		body := `{"title":"Mow the lawn","reward_credits":5000}`
		req := asAccount(httptest.NewRequest("POST", "/v1/tasks", strings.NewReader(body)), requester)
		rr := httptest.NewRecorder()
		h.CreateTask(rr, req)

		if rr.Code != http.StatusPaymentRequired {
			t.Fatalf("status: got %d, want 402", rr.Code)
		}
		if repo.created != nil {
			t.Error("task must not be persisted when funding fails")
		}
	})

	t.Run("validation", func(t *testing.T) {
		cases := []struct {
			name string
			body string
		}{
			{"missing title", `{"reward_credits":10}`},
			{"zero reward", `{"title":"x","reward_credits":0}`},
			{"negative reward", `{"title":"x","reward_credits":-5}`},
		}
		for _, tc := range cases {
			t.Run(tc.name, func(t *testing.T) {
				h := newHandler(&mockTaskRepo{}, &mockEscrow{})
				req := asAccount(httptest.NewRequest("POST", "/v1/tasks", strings.NewReader(tc.body)), requester)
				rr := httptest.NewRecorder()
				h.CreateTask(rr, req)
				if rr.Code != http.StatusBadRequest {
					t.Errorf("status: got %d, want 400", rr.Code)
				}
			})
		}
	})
}

func TestClaimTask(t *testing.T) {
	worker := &models.Account{ID: uuid.New(), Role: models.RoleWorker}
	taskID := uuid.New()

	t.Run("claims open task", func(t *testing.T) {
		repo := &mockTaskRepo{
			tasks:    map[uuid.UUID]*models.Task{taskID: {ID: taskID, Status: models.TaskStatusOpen}},
			assignOK: true,
		}
		h := newHandler(repo, &mockEscrow{})

		req := asAccount(httptest.NewRequest("POST", "/v1/tasks/"+taskID.String()+"/claim", nil), worker)
		req.SetPathValue("id", taskID.String())
		rr := httptest.NewRecorder()
		h.ClaimTask(rr, req)

		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200", rr.Code)
		}
		if repo.tasks[taskID].WorkerID == nil || *repo.tasks[taskID].WorkerID != worker.ID {
			t.Error("worker should be recorded on the task")
		}
	})

	t.Run("conflict when not open", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: map[uuid.UUID]*models.Task{}, assignOK: false}
		h := newHandler(repo, &mockEscrow{})

		req := asAccount(httptest.NewRequest("POST", "/v1/tasks/"+taskID.String()+"/claim", nil), worker)
		req.SetPathValue("id", taskID.String())
		rr := httptest.NewRecorder()
		h.ClaimTask(rr, req)

		if rr.Code != http.StatusConflict {
			t.Errorf("status: got %d, want 409", rr.Code)
		}
	})
}

func TestCompleteTask(t *testing.T) {
	requester := &models.Account{ID: uuid.New(), Role: models.RoleRequester}
	workerID := uuid.New()
	taskID := uuid.New()

	assignedTask := func() map[uuid.UUID]*models.Task {
		return map[uuid.UUID]*models.Task{taskID: {
			ID:            taskID,
			RequesterID:   requester.ID,
			WorkerID:      &workerID,
			Status:        models.TaskStatusAssigned,
			RewardCredits: 50,
		}}
	}

	completeReq := func(acc *models.Account) *http.Request {
		req := asAccount(httptest.NewRequest("POST", "/v1/tasks/"+taskID.String()+"/complete", nil), acc)
		req.SetPathValue("id", taskID.String())
		return req
	}

	t.Run("settles with accepted proof", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: assignedTask(), completeOK: true}
		escrow := &mockEscrow{}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CompleteTask(rr, completeReq(requester))

		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
		}
		if !escrow.settleCalled {
			t.Error("settlement should run")
		}
		if repo.tasks[taskID].Status != models.TaskStatusCompleted {
			t.Error("task should be marked completed")
		}
	})

	t.Run("refused without accepted proof", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: assignedTask(), completeOK: true}
		escrow := &mockEscrow{settleErr: ledger.ErrNoAcceptedProof}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CompleteTask(rr, completeReq(requester))

		if rr.Code != http.StatusConflict {
			t.Fatalf("status: got %d, want 409", rr.Code)
		}
		if repo.tasks[taskID].Status != models.TaskStatusAssigned {
			t.Error("task must stay assigned when settlement is refused")
		}
		var resp map[string]string
		_ = json.Unmarshal(rr.Body.Bytes(), &resp)
		if !strings.Contains(resp["error"], "no accepted proof") {
			t.Errorf("error message: got %q", resp["error"])
		}
	})

	t.Run("only requester may complete", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: assignedTask(), completeOK: true}
		h := newHandler(repo, &mockEscrow{})

		stranger := &models.Account{ID: uuid.New(), Role: models.RoleRequester}
		rr := httptest.NewRecorder()
		h.CompleteTask(rr, completeReq(stranger))

		if rr.Code != http.StatusForbidden {
			t.Errorf("status: got %d, want 403", rr.Code)
		}
	})

	t.Run("unassigned task is not completable", func(t *testing.T) {
		tasks := assignedTask()
		tasks[taskID].Status = models.TaskStatusOpen
		repo := &mockTaskRepo{tasks: tasks}
		escrow := &mockEscrow{}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CompleteTask(rr, completeReq(requester))

		if rr.Code != http.StatusConflict {
			t.Errorf("status: got %d, want 409", rr.Code)
		}
		if escrow.settleCalled {
			t.Error("settlement must not run for an open task")
		}
	})
}

func TestCancelTask(t *testing.T) {
	requester := &models.Account{ID: uuid.New(), Role: models.RoleRequester}
	taskID := uuid.New()

	openTask := func() map[uuid.UUID]*models.Task {
		return map[uuid.UUID]*models.Task{taskID: {
			ID:            taskID,
			RequesterID:   requester.ID,
			Status:        models.TaskStatusOpen,
			RewardCredits: 30,
		}}
	}

	cancelReq := func() *http.Request {
		req := asAccount(httptest.NewRequest("POST", "/v1/tasks/"+taskID.String()+"/cancel", nil), requester)
		req.SetPathValue("id", taskID.String())
		return req
	}

	t.Run("cancels and refunds", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: openTask(), cancelOK: true}
		escrow := &mockEscrow{}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CancelTask(rr, cancelReq())

		if rr.Code != http.StatusOK {
			t.Fatalf("status: got %d, want 200 (body %s)", rr.Code, rr.Body.String())
		}
		if escrow.refundCalled != 1 {
			t.Errorf("refund calls: got %d, want 1", escrow.refundCalled)
		}
		if repo.tasks[taskID].Status != models.TaskStatusCancelled {
			t.Error("task should be marked cancelled")
		}
	})

	t.Run("lost cancel race is a conflict", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: openTask(), cancelOK: false}
		escrow := &mockEscrow{}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CancelTask(rr, cancelReq())

		if rr.Code != http.StatusConflict {
			t.Fatalf("status: got %d, want 409", rr.Code)
		}
		if repo.tasks[taskID].Status == models.TaskStatusCancelled {
			t.Error("task must not end up cancelled when the update did not land")
		}
	})

	t.Run("closed task is not cancellable", func(t *testing.T) {
		tasks := openTask()
		tasks[taskID].Status = models.TaskStatusCompleted
		repo := &mockTaskRepo{tasks: tasks, cancelOK: true}
		h := newHandler(repo, &mockEscrow{})

		rr := httptest.NewRecorder()
		h.CancelTask(rr, cancelReq())

		if rr.Code != http.StatusConflict {
			t.Errorf("status: got %d, want 409", rr.Code)
		}
		if repo.cancelCalled != 0 {
			t.Error("cancel update must not run on a closed task")
		}
	})

	// A refused refund must leave the task in its current status: the
	// cancel runs in the same transaction as the refund, so the task stays
	// assigned and the worker's settlement path stays open.
	t.Run("refund refused after accepted proof", func(t *testing.T) {
		workerID := uuid.New()
		tasks := openTask()
		tasks[taskID].Status = models.TaskStatusAssigned
		tasks[taskID].WorkerID = &workerID
		repo := &mockTaskRepo{tasks: tasks, cancelOK: true}
		escrow := &mockEscrow{refundErr: ledger.ErrProofAccepted}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CancelTask(rr, cancelReq())

		if rr.Code != http.StatusConflict {
			t.Fatalf("status: got %d, want 409", rr.Code)
		}
		if got := repo.tasks[taskID].Status; got != models.TaskStatusAssigned {
			t.Errorf("task status after refused refund: got %q, want %q", got, models.TaskStatusAssigned)
		}
		if repo.cancelCalled != 0 {
			t.Error("cancel update must not run once the refund is refused")
		}
	})

	t.Run("transient refund failure leaves task cancellable", func(t *testing.T) {
		repo := &mockTaskRepo{tasks: openTask(), cancelOK: true}
		escrow := &mockEscrow{refundErr: errors.New("connection reset")}
		h := newHandler(repo, escrow)

		rr := httptest.NewRecorder()
		h.CancelTask(rr, cancelReq())

		if rr.Code != http.StatusInternalServerError {
			t.Fatalf("status: got %d, want 500", rr.Code)
		}
		if got := repo.tasks[taskID].Status; got != models.TaskStatusOpen {
			t.Errorf("task status after failed refund: got %q, want %q", got, models.TaskStatusOpen)
		}
	})
}

func TestGetTask(t *testing.T) {
	taskID := uuid.New()
	repo := &mockTaskRepo{tasks: map[uuid.UUID]*models.Task{taskID: {
		ID:     taskID,
		Title:  "Walk the dog",
		Status: models.TaskStatusOpen,
	}}}
	h := newHandler(repo, &mockEscrow{})

	req := httptest.NewRequest("GET", "/v1/tasks/"+taskID.String(), nil)
	req.SetPathValue("id", taskID.String())
	rr := httptest.NewRecorder()
	h.GetTask(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var got models.Task
	if err := json.Unmarshal(rr.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if got.Title != "Walk the dog" {
		t.Errorf("title: got %q", got.Title)
	}

	missing := uuid.New()
	req = httptest.NewRequest("GET", "/v1/tasks/"+missing.String(), nil)
	req.SetPathValue("id", missing.String())
	rr = httptest.NewRecorder()
	h.GetTask(rr, req)
	if rr.Code != http.StatusNotFound {
		t.Errorf("missing task status: got %d, want 404", rr.Code)
	}
}
