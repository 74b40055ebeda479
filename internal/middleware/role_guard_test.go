package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	"github.com/chorely/backend/internal/models"
)

func TestRequireRole(t *testing.T) {
	guard := RequireRole(models.RoleRequester, models.RoleWorker)(okHandler)

	cases := []struct {
		name string
		acc  *models.Account
		want int
	}{
		{"allowed role", &models.Account{ID: uuid.New(), Role: models.RoleRequester}, http.StatusOK},
		{"second allowed role", &models.Account{ID: uuid.New(), Role: models.RoleWorker}, http.StatusOK},
		{"wrong role", &models.Account{ID: uuid.New(), Role: models.RoleReviewer}, http.StatusForbidden},
		{"no account", nil, http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tc.acc != nil {
				req = req.WithContext(WithAccount(req.Context(), tc.acc))
			}
			rec := httptest.NewRecorder()
			guard.ServeHTTP(rec, req)

			if rec.Code != tc.want {
				t.Errorf("expected %d, got %d", tc.want, rec.Code)
			}
		})
	}
}
